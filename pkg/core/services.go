package core

import "context"

// WorkflowAction is one transition the workflow currently offers an
// item. ID addresses the transition; NativeID and Name are how the
// configuration labels it.
type WorkflowAction struct {
	ID       int
	NativeID string
	Name     string
}

// AttachmentInfo describes one stored attachment. Run, record and
// step attachments serve their content from the repository URL;
// work item attachments carry content inline instead.
type AttachmentInfo struct {
	FileName string
	Title    string
	URL      string
	AuthorID string
}

// TestStepTable is a test case's declared step table: the column keys
// and one row of rich text cells per step.
type TestStepTable struct {
	Keys  []string
	Steps [][]Text
}

// Searcher runs Lucene queries over one record kind. A negative limit
// means no limit.
type Searcher interface {
	Search(ctx context.Context, query, sort string, limit int) ([]Record, error)
}

// Commenter posts comments and replies. Replies thread under an
// existing comment and carry no title.
type Commenter interface {
	AddComment(ctx context.Context, itemURI, title string, body Text) error
	AddReply(ctx context.Context, commentURI string, body Text) error
}

// Linker mutates links and hyperlinks between items.
type Linker interface {
	AddLinkedItem(ctx context.Context, uri, linkedURI, role string) error
	RemoveLinkedItem(ctx context.Context, uri, linkedURI, role string) error
	AddHyperlink(ctx context.Context, uri, url, role string) error
	RemoveHyperlink(ctx context.Context, uri, url string) error
}

// Assignments mutates the assignee and approvee lists of an item.
type Assignments interface {
	AddAssignee(ctx context.Context, uri, userID string) error
	RemoveAssignee(ctx context.Context, uri, userID string) error
	AddApprovee(ctx context.Context, uri, userID string) error
	RemoveApprovee(ctx context.Context, uri, userID string) error
}

// EnumQueries resolves enumeration options: all options of a
// project-scoped enum, and the subset an item may currently move to.
type EnumQueries interface {
	EnumOptions(ctx context.Context, objectURI, enumID string) ([]string, error)
	AvailableEnumOptions(ctx context.Context, uri, enumID string) ([]string, error)
}

// Workflow lists and performs workflow transitions.
type Workflow interface {
	AvailableActions(ctx context.Context, uri string) ([]WorkflowAction, error)
	PerformAction(ctx context.Context, uri string, actionID int) error
}

// ItemAttachments stores attachment content on a work item.
type ItemAttachments interface {
	AttachmentData(ctx context.Context, uri, id string) ([]byte, error)
	CreateAttachment(ctx context.Context, uri, fileName, title string, data []byte) error
	UpdateAttachment(ctx context.Context, uri, id, fileName, title string, data []byte) error
	DeleteAttachment(ctx context.Context, uri, id string) error
}

// RunAttachments stores attachments on test runs, their records and
// single steps. Records and steps are addressed by index within the
// run.
type RunAttachments interface {
	RunAttachment(ctx context.Context, testRunURI, fileName string) (AttachmentInfo, error)
	AddRunAttachment(ctx context.Context, testRunURI, fileName, title string, data []byte) error
	UpdateRunAttachment(ctx context.Context, testRunURI, fileName, title string, data []byte) error
	DeleteRunAttachment(ctx context.Context, testRunURI, fileName string) error
	RecordAttachment(ctx context.Context, testRunURI string, index int, fileName string) (AttachmentInfo, error)
	AddRecordAttachment(ctx context.Context, testRunURI string, index int, fileName, title string, data []byte) error
	DeleteRecordAttachment(ctx context.Context, testRunURI string, index int, fileName string) error
	StepAttachment(ctx context.Context, testRunURI string, index, stepIndex int, fileName string) (AttachmentInfo, error)
	AddStepAttachment(ctx context.Context, testRunURI string, index, stepIndex int, fileName, title string, data []byte) error
	DeleteStepAttachment(ctx context.Context, testRunURI string, index, stepIndex int, fileName string) error
}

// Downloader fetches attachment content from the repository URL a
// service reported.
type Downloader interface {
	DownloadAttachment(ctx context.Context, url string) ([]byte, error)
}

// WorkItemService is the full tracker surface a transport provides.
type WorkItemService interface {
	RecordAccessor
	RequiredFieldsQuery
	CustomKeysQuery
	Searcher
	Commenter
	Linker
	Assignments
	EnumQueries
	Workflow
	ItemAttachments
	MoveToDocument(ctx context.Context, uri, documentURI, parentURI string) error
	TestSteps(ctx context.Context, uri string) (*TestStepTable, error)
}

// PlanService is the planning surface a transport provides. Plans are
// minted with CreatePlan rather than the generic Create.
type PlanService interface {
	RecordAccessor
	Searcher
	CreatePlan(ctx context.Context, projectID, name, id, parentID, templateID string) (string, error)
	AddItems(ctx context.Context, planURI string, itemURIs []string) error
	RemoveItems(ctx context.Context, planURI string, itemURIs []string) error
	AddAllowedType(ctx context.Context, planURI, typeName string) error
	RemoveAllowedType(ctx context.Context, planURI, typeName string) error
}

// TestRunService is the test management surface a transport provides.
type TestRunService interface {
	RecordAccessor
	Searcher
	RunAttachments
	CreateTestRun(ctx context.Context, projectID, id, title, templateID string) (string, error)
	ExecuteTest(ctx context.Context, testRunURI string, record Fields) error
	AddRecord(ctx context.Context, testRunURI string, record Fields) error
}

// ProjectService resolves projects and their user lists.
type ProjectService interface {
	RecordAccessor
	Users(ctx context.Context, projectID string) ([]Record, error)
}

// UserService resolves users from the directory.
type UserService interface {
	RecordAccessor
}

// DocumentService resolves LiveDoc modules. Documents are read-only
// handles here; they exist so work items can be located in and moved
// into them. FetchByID takes the space-qualified location, e.g.
// "Testing/Test Specification".
type DocumentService interface {
	RecordAccessor
	ItemURIs(ctx context.Context, moduleURI string) ([]string, error)
}
