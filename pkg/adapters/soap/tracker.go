package soap

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/almforge/go-polarion/internal/soapenv"
	"github.com/almforge/go-polarion/pkg/core"
)

// workItemFields is the field list requested for full search hits.
var workItemFields = []string{
	"id", "title", "description", "type", "status", "resolution", "severity",
	"priority", "author", "assignee", "created", "updated", "dueDate",
	"plannedStart", "plannedEnd", "hyperlinks", "linkedWorkItems",
	"linkedWorkItemsDerived", "customFields", "project", "outlineNumber",
}

// WorkItems accesses tracker work items. It implements the accessor
// interfaces of the sync layer plus the tracker-only operations.
type WorkItems struct {
	client *Client
}

// WorkItems returns the tracker accessor.
func (c *Client) WorkItems() *WorkItems { return &WorkItems{client: c} }

var _ core.WorkItemService = (*WorkItems)(nil)

func (w *WorkItems) FetchByID(ctx context.Context, scope, id string) (core.Record, error) {
	resp, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "getWorkItemById",
		Args:    []element{stringArg("projectId", scope), stringArg("workitemId", id)},
	})
	if err != nil {
		return core.Record{}, err
	}
	return returnedRecord(resp, core.KindWorkItem), nil
}

func (w *WorkItems) FetchByURI(ctx context.Context, uri string) (core.Record, error) {
	resp, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "getWorkItemByUri",
		Args:    []element{stringArg("uri", uri)},
	})
	if err != nil {
		return core.Record{}, err
	}
	return returnedRecord(resp, core.KindWorkItem), nil
}

// Create makes a new work item from its initial fields and returns the
// minted URI. The type and project references are filled in from the
// arguments; everything else comes from the caller.
func (w *WorkItems) Create(ctx context.Context, scope, typeName string, initial core.Fields) (string, error) {
	fields := initial.Clone()
	if fields == nil {
		fields = core.Fields{}
	}
	fields["type"] = core.Enum{ID: typeName}
	content, err := entityElement("content", "", core.KindWorkItem, fields)
	if err != nil {
		return "", err
	}
	content.children = append(content.children, element{
		name:  "project",
		attrs: []xml.Attr{uriAttr(projectURI(scope))},
	})
	resp, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "createWorkItem",
		Args:    []element{content},
	})
	if err != nil {
		return "", err
	}
	ret := returnNode(resp)
	if ret == nil {
		return "", fmt.Errorf("createWorkItem returned no uri")
	}
	return strings.TrimSpace(ret.Text), nil
}

func (w *WorkItems) Update(ctx context.Context, uri string, patch core.Fields) error {
	content, err := entityElement("content", uri, core.KindWorkItem, patch)
	if err != nil {
		return err
	}
	_, err = w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "updateWorkItem",
		Args:    []element{content},
	})
	return err
}

func (w *WorkItems) Delete(ctx context.Context, uri string) error {
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "deleteWorkItem",
		Args:    []element{stringArg("uri", uri)},
	})
	return err
}

// RequiredFields asks the workflow which fields the initial action of
// the given type demands.
func (w *WorkItems) RequiredFields(ctx context.Context, scope, typeName string) ([]string, error) {
	resp, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "getInitialWorkflowActionForProjectAndType",
		Args:    []element{stringArg("projectId", scope), enumArg("workitemType", typeName)},
	})
	if err != nil {
		return nil, err
	}
	ret := returnNode(resp)
	if ret == nil || ret.Nil() {
		return nil, nil
	}
	return stringItems(ret.Child("requiredFeatures")), nil
}

// AllowedCustomKeys lists the custom field keys configured for the
// item's project and type.
func (w *WorkItems) AllowedCustomKeys(ctx context.Context, uri string) ([]string, error) {
	resp, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "getCustomFieldKeys",
		Args:    []element{stringArg("workitemURI", uri)},
	})
	if err != nil {
		return nil, err
	}
	return stringItems(returnNode(resp)), nil
}

// CustomFieldTypeIDs lists the declared custom field definitions for
// the item, by id.
func (w *WorkItems) CustomFieldTypeIDs(ctx context.Context, uri string) ([]string, error) {
	resp, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "getCustomFieldTypes",
		Args:    []element{stringArg("workitemURI", uri)},
	})
	if err != nil {
		return nil, err
	}
	return enumIDs(returnNode(resp)), nil
}

// Search runs a Lucene query and returns full records for every hit.
// A negative limit means no limit.
func (w *WorkItems) Search(ctx context.Context, query, sort string, limit int) ([]core.Record, error) {
	if sort == "" {
		sort = "Created"
	}
	fields := element{name: "fields"}
	for _, f := range workItemFields {
		fields.children = append(fields.children, stringArg("item", f))
	}
	resp, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "queryWorkItemsLimited",
		Args:    []element{stringArg("query", query), stringArg("sort", sort), fields, intArg("resultsLimit", limit)},
	})
	if err != nil {
		return nil, err
	}
	return returnedRecords(resp, core.KindWorkItem), nil
}

// EnumOptions lists the option ids of a project-scoped enumeration,
// e.g. "status" or "task-resolution". The object URI scopes the lookup
// to a project.
func (w *WorkItems) EnumOptions(ctx context.Context, objectURI, enumID string) ([]string, error) {
	resp, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "getEnumOptionsForId",
		Args:    []element{stringArg("objectURI", objectURI), stringArg("id", enumID)},
	})
	if err != nil {
		return nil, err
	}
	return enumIDs(returnNode(resp)), nil
}

// AvailableEnumOptions lists the option ids an item may move to for
// the given enum, honoring workflow restrictions.
func (w *WorkItems) AvailableEnumOptions(ctx context.Context, uri, enumID string) ([]string, error) {
	resp, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "getAvailableEnumOptionIdsForId",
		Args:    []element{stringArg("workitemURI", uri), stringArg("id", enumID)},
	})
	if err != nil {
		return nil, err
	}
	return enumIDs(returnNode(resp)), nil
}

func (w *WorkItems) AvailableActions(ctx context.Context, uri string) ([]core.WorkflowAction, error) {
	resp, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "getAvailableActions",
		Args:    []element{stringArg("workitemURI", uri)},
	})
	if err != nil {
		return nil, err
	}
	ret := returnNode(resp)
	if ret == nil {
		return nil, nil
	}
	actions := make([]core.WorkflowAction, 0, len(ret.Children))
	for _, node := range ret.Children {
		action := core.WorkflowAction{
			NativeID: node.ChildText("nativeActionId"),
			Name:     node.ChildText("actionName"),
		}
		action.ID, _ = strconv.Atoi(strings.TrimSpace(node.ChildText("actionId")))
		actions = append(actions, action)
	}
	return actions, nil
}

func (w *WorkItems) PerformAction(ctx context.Context, uri string, actionID int) error {
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "performWorkflowAction",
		Args:    []element{stringArg("workitemURI", uri), intArg("actionId", actionID)},
	})
	return err
}

func (w *WorkItems) AddHyperlink(ctx context.Context, uri, url, role string) error {
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "addHyperlink",
		Args:    []element{stringArg("workitemURI", uri), stringArg("url", url), enumArg("role", role)},
	})
	return err
}

func (w *WorkItems) RemoveHyperlink(ctx context.Context, uri, url string) error {
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "removeHyperlink",
		Args:    []element{stringArg("workitemURI", uri), stringArg("url", url)},
	})
	return err
}

func (w *WorkItems) AddLinkedItem(ctx context.Context, uri, linkedURI, role string) error {
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "addLinkedItem",
		Args:    []element{stringArg("workitemURI", uri), stringArg("linkedWorkitemURI", linkedURI), enumArg("role", role)},
	})
	return err
}

func (w *WorkItems) RemoveLinkedItem(ctx context.Context, uri, linkedURI, role string) error {
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "removeLinkedItem",
		Args:    []element{stringArg("workitemURI", uri), stringArg("linkedWorkitemURI", linkedURI), enumArg("role", role)},
	})
	return err
}

func (w *WorkItems) AddAssignee(ctx context.Context, uri, userID string) error {
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "addAssignee",
		Args:    []element{stringArg("workitemURI", uri), stringArg("assigneeId", userID)},
	})
	return err
}

func (w *WorkItems) RemoveAssignee(ctx context.Context, uri, userID string) error {
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "removeAssignee",
		Args:    []element{stringArg("workitemURI", uri), stringArg("assigneeId", userID)},
	})
	return err
}

func (w *WorkItems) AddApprovee(ctx context.Context, uri, userID string) error {
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "addApprovee",
		Args:    []element{stringArg("workitemURI", uri), stringArg("approveeId", userID)},
	})
	return err
}

func (w *WorkItems) RemoveApprovee(ctx context.Context, uri, userID string) error {
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "removeApprovee",
		Args:    []element{stringArg("workitemURI", uri), stringArg("approveeId", userID)},
	})
	return err
}

// AddComment posts a root comment on the work item.
func (w *WorkItems) AddComment(ctx context.Context, itemURI, title string, body core.Text) error {
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "addComment",
		Args:    []element{stringArg("parentURI", itemURI), stringArg("title", title), textArg("content", body)},
	})
	return err
}

// AddReply posts a reply under an existing comment. Replies must not
// carry a title; the server rejects them otherwise.
func (w *WorkItems) AddReply(ctx context.Context, commentURI string, body core.Text) error {
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "addComment",
		Args:    []element{stringArg("parentURI", commentURI), nilArg("title"), textArg("content", body)},
	})
	return err
}

// Attachment upload and download. Content travels base64-encoded in
// the envelope.

func (w *WorkItems) AttachmentData(ctx context.Context, uri, id string) ([]byte, error) {
	resp, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "getAttachment",
		Args:    []element{stringArg("workitemURI", uri), stringArg("id", id)},
	})
	if err != nil {
		return nil, err
	}
	ret := returnNode(resp)
	if ret == nil || ret.Nil() {
		return nil, fmt.Errorf("attachment %s has no content", id)
	}
	return decodeBinary(ret)
}

func (w *WorkItems) CreateAttachment(ctx context.Context, uri, fileName, title string, data []byte) error {
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "createAttachment",
		Args: []element{
			stringArg("workitemURI", uri), stringArg("fileName", fileName),
			stringArg("title", title), dataArg("data", data),
		},
	})
	return err
}

func (w *WorkItems) UpdateAttachment(ctx context.Context, uri, id, fileName, title string, data []byte) error {
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "updateAttachment",
		Args: []element{
			stringArg("workitemURI", uri), stringArg("id", id),
			stringArg("fileName", fileName), stringArg("title", title), dataArg("data", data),
		},
	})
	return err
}

func (w *WorkItems) DeleteAttachment(ctx context.Context, uri, id string) error {
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "deleteAttachment",
		Args:    []element{stringArg("workitemURI", uri), stringArg("id", id)},
	})
	return err
}

// MoveToDocument places the work item inside a document, under the
// given parent item or at top level when parentURI is empty.
func (w *WorkItems) MoveToDocument(ctx context.Context, uri, documentURI, parentURI string) error {
	parentArg := nilArg("parentURI")
	if parentURI != "" {
		parentArg = stringArg("parentURI", parentURI)
	}
	_, err := w.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "moveWorkItemToDocument",
		Args: []element{
			stringArg("workitemURI", uri), stringArg("documentURI", documentURI),
			parentArg, intArg("index", -1), boolArg("retainFlow", false),
		},
	})
	return err
}

// TestSteps fetches the declared test step table of a test case work
// item, or nil when it has none.
func (w *WorkItems) TestSteps(ctx context.Context, uri string) (*core.TestStepTable, error) {
	resp, err := w.client.call(ctx, operation{
		Service: "TestManagement",
		Name:    "getTestSteps",
		Args:    []element{stringArg("workitemURI", uri)},
	})
	if err != nil {
		return nil, err
	}
	ret := returnNode(resp)
	if ret == nil || ret.Nil() {
		return nil, nil
	}
	table := &core.TestStepTable{
		Keys: enumIDs(ret.Child("keys")),
	}
	if stepList := ret.Child("steps"); stepList != nil {
		for _, step := range stepList.Children {
			var values []core.Text
			if vals := step.Child("values"); vals != nil {
				for _, v := range vals.Children {
					values = append(values, decodeText(v))
				}
			}
			table.Steps = append(table.Steps, values)
		}
	}
	return table, nil
}

func enumIDs(node *soapenv.Node) []string {
	if node == nil {
		return nil
	}
	ids := make([]string, 0, len(node.Children))
	for _, child := range node.Children {
		ids = append(ids, child.ChildText("id"))
	}
	return ids
}

// projectURI derives the subterra identity of a project from its id.
func projectURI(projectID string) string {
	return "subterra:data-service:objects:/default/" + projectID + "${Project}" + projectID
}
