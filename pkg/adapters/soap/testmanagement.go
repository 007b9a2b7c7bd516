package soap

import (
	"context"
	"fmt"
	"strings"

	"github.com/almforge/go-polarion/internal/soapenv"
	"github.com/almforge/go-polarion/pkg/core"
)

// TestRuns accesses test management records: runs, their records and
// the attachments hanging off both.
type TestRuns struct {
	client *Client
}

// TestRuns returns the test management accessor.
func (c *Client) TestRuns() *TestRuns { return &TestRuns{client: c} }

var _ core.TestRunService = (*TestRuns)(nil)

func (t *TestRuns) FetchByID(ctx context.Context, scope, id string) (core.Record, error) {
	resp, err := t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "getTestRunById",
		Args:    []element{stringArg("projectId", scope), stringArg("id", id)},
	})
	if err != nil {
		return core.Record{}, err
	}
	return returnedRecord(resp, core.KindTestRun), nil
}

func (t *TestRuns) FetchByURI(ctx context.Context, uri string) (core.Record, error) {
	resp, err := t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "getTestRunByUri",
		Args:    []element{stringArg("uri", uri)},
	})
	if err != nil {
		return core.Record{}, err
	}
	return returnedRecord(resp, core.KindTestRun), nil
}

// Create is not served generically; runs are minted with
// CreateTestRun, which instantiates a template.
func (t *TestRuns) Create(ctx context.Context, scope, typeName string, initial core.Fields) (string, error) {
	return "", fmt.Errorf("test runs are created with CreateTestRun")
}

// CreateTestRun instantiates a template and returns the new URI. The
// title is optional.
func (t *TestRuns) CreateTestRun(ctx context.Context, projectID, id, title, templateID string) (string, error) {
	op := operation{
		Service: "TestManagement",
		Name:    "createTestRun",
		Args: []element{
			stringArg("project", projectID), stringArg("id", id),
			stringArg("template", templateID),
		},
	}
	if title != "" {
		op.Name = "createTestRunWithTitle"
		op.Args = []element{
			stringArg("project", projectID), stringArg("id", id),
			stringArg("title", title), stringArg("template", templateID),
		}
	}
	resp, err := t.client.call(ctx, op)
	if err != nil {
		return "", err
	}
	ret := returnNode(resp)
	if ret == nil {
		return "", fmt.Errorf("%s returned no uri", op.Name)
	}
	return strings.TrimSpace(ret.Text), nil
}

func (t *TestRuns) Update(ctx context.Context, uri string, patch core.Fields) error {
	content, err := entityElement("content", uri, core.KindTestRun, patch)
	if err != nil {
		return err
	}
	_, err = t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "updateTestRun",
		Args:    []element{content},
	})
	return err
}

// Delete is not offered by the service; runs are retired through the
// web UI instead.
func (t *TestRuns) Delete(ctx context.Context, uri string) error {
	return fmt.Errorf("test runs cannot be deleted over the api")
}

// Search runs a Lucene query over test runs. A negative limit means
// no limit.
func (t *TestRuns) Search(ctx context.Context, query, sort string, limit int) ([]core.Record, error) {
	if sort == "" {
		sort = "Created"
	}
	resp, err := t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "searchTestRunsLimited",
		Args:    []element{stringArg("query", query), stringArg("sort", sort), intArg("limit", limit)},
	})
	if err != nil {
		return nil, err
	}
	return returnedRecords(resp, core.KindTestRun), nil
}

// ExecuteTest writes a test record into the run. The record's test
// case URI selects which record is updated.
func (t *TestRuns) ExecuteTest(ctx context.Context, testRunURI string, record core.Fields) error {
	content, err := entityElement("testRecord", "", "", record)
	if err != nil {
		return err
	}
	_, err = t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "executeTest",
		Args:    []element{stringArg("testRunURI", testRunURI), content},
	})
	return err
}

// AddRecord appends a fresh test record to the run.
func (t *TestRuns) AddRecord(ctx context.Context, testRunURI string, record core.Fields) error {
	content, err := entityElement("testRecord", "", "", record)
	if err != nil {
		return err
	}
	_, err = t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "addTestRecordToTestRun",
		Args:    []element{stringArg("testRunURI", testRunURI), content},
	})
	return err
}

func decodeAttachment(node *soapenv.Node) (core.AttachmentInfo, error) {
	if node == nil || node.Nil() {
		return core.AttachmentInfo{}, fmt.Errorf("no such attachment")
	}
	att := core.AttachmentInfo{
		FileName: node.ChildText("fileName"),
		Title:    node.ChildText("title"),
		URL:      strings.TrimSpace(node.ChildText("url")),
	}
	if author := node.Child("author"); author != nil {
		att.AuthorID = author.ChildText("id")
	}
	return att, nil
}

// RunAttachment fetches the descriptor of a run-level attachment.
// Content is downloaded separately from the returned URL.
func (t *TestRuns) RunAttachment(ctx context.Context, testRunURI, fileName string) (core.AttachmentInfo, error) {
	resp, err := t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "getTestRunAttachment",
		Args:    []element{stringArg("testRunURI", testRunURI), stringArg("fileName", fileName)},
	})
	if err != nil {
		return core.AttachmentInfo{}, err
	}
	return decodeAttachment(returnNode(resp))
}

func (t *TestRuns) AddRunAttachment(ctx context.Context, testRunURI, fileName, title string, data []byte) error {
	_, err := t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "addAttachmentToTestRun",
		Args: []element{
			stringArg("testRunURI", testRunURI), stringArg("fileName", fileName),
			stringArg("title", title), dataArg("data", data),
		},
	})
	return err
}

func (t *TestRuns) UpdateRunAttachment(ctx context.Context, testRunURI, fileName, title string, data []byte) error {
	_, err := t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "updateTestRunAttachment",
		Args: []element{
			stringArg("testRunURI", testRunURI), stringArg("fileName", fileName),
			stringArg("title", title), dataArg("data", data),
		},
	})
	return err
}

func (t *TestRuns) DeleteRunAttachment(ctx context.Context, testRunURI, fileName string) error {
	_, err := t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "deleteTestRunAttachment",
		Args:    []element{stringArg("testRunURI", testRunURI), stringArg("fileName", fileName)},
	})
	return err
}

// Record-level attachments address a record by its index in the run.

func (t *TestRuns) RecordAttachment(ctx context.Context, testRunURI string, index int, fileName string) (core.AttachmentInfo, error) {
	resp, err := t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "getTestRecordAttachment",
		Args: []element{
			stringArg("testRunURI", testRunURI), intArg("index", index),
			stringArg("fileName", fileName),
		},
	})
	if err != nil {
		return core.AttachmentInfo{}, err
	}
	return decodeAttachment(returnNode(resp))
}

func (t *TestRuns) AddRecordAttachment(ctx context.Context, testRunURI string, index int, fileName, title string, data []byte) error {
	_, err := t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "addAttachmentToTestRecord",
		Args: []element{
			stringArg("testRunURI", testRunURI), intArg("index", index),
			stringArg("fileName", fileName), stringArg("title", title), dataArg("data", data),
		},
	})
	return err
}

func (t *TestRuns) DeleteRecordAttachment(ctx context.Context, testRunURI string, index int, fileName string) error {
	_, err := t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "deleteAttachmentFromTestRecord",
		Args: []element{
			stringArg("testRunURI", testRunURI), intArg("index", index),
			stringArg("fileName", fileName),
		},
	})
	return err
}

// Step-level attachments additionally address one step of the record.

func (t *TestRuns) StepAttachment(ctx context.Context, testRunURI string, index, stepIndex int, fileName string) (core.AttachmentInfo, error) {
	resp, err := t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "getTestStepAttachment",
		Args: []element{
			stringArg("testRunURI", testRunURI), intArg("index", index),
			intArg("testStepIndex", stepIndex), stringArg("fileName", fileName),
		},
	})
	if err != nil {
		return core.AttachmentInfo{}, err
	}
	return decodeAttachment(returnNode(resp))
}

func (t *TestRuns) AddStepAttachment(ctx context.Context, testRunURI string, index, stepIndex int, fileName, title string, data []byte) error {
	_, err := t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "addAttachmentToTestStep",
		Args: []element{
			stringArg("testRunURI", testRunURI), intArg("index", index),
			intArg("testStepIndex", stepIndex), stringArg("fileName", fileName),
			stringArg("title", title), dataArg("data", data),
		},
	})
	return err
}

func (t *TestRuns) DeleteStepAttachment(ctx context.Context, testRunURI string, index, stepIndex int, fileName string) error {
	_, err := t.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "deleteAttachmentFromTestStep",
		Args: []element{
			stringArg("testRunURI", testRunURI), intArg("index", index),
			intArg("testStepIndex", stepIndex), stringArg("fileName", fileName),
		},
	})
	return err
}
