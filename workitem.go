package polarion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/almforge/go-polarion/pkg/core"
	"github.com/almforge/go-polarion/pkg/richtext"
)

// Hyperlink roles the server understands.
const (
	HyperlinkRoleInternal = "internal reference"
	HyperlinkRoleExternal = "external reference"
)

// Link is one link between work items, as seen from the item holding
// it: direct links name the target, derived links name the origin.
type Link struct {
	URI  string
	Role string
}

// Hyperlink is one URL attached to a work item.
type Hyperlink struct {
	URL  string
	Role string
}

// Attachment describes one stored work item attachment.
type Attachment struct {
	ID       string
	FileName string
	Title    string
	AuthorID string
	URL      string
	Updated  time.Time
}

// Approval is one approval entry: the reviewer and where their review
// stands.
type Approval struct {
	User   *User
	Status string
}

// WorkItem is a loaded tracker item. Field edits stay local until Save;
// relationship operations (links, assignees, comments, attachments) go
// through the server immediately and reload every entity they touched.
//
// Items loaded through a project carry it as context for enumeration
// lookups and reference resolution. Items resolved from a bare URI have
// none; the lookups then come back empty.
type WorkItem struct {
	client  *Client
	project *Project
	sync    core.Syncer
	steps   *core.TestStepTable
}

func (c *Client) newWorkItem(p *Project) *WorkItem {
	w := &WorkItem{client: c, project: p}
	scope := ""
	if p != nil {
		scope = p.ID()
	}
	w.sync = core.Syncer{
		Accessor: c.services.WorkItems,
		Kind:     core.KindWorkItem,
		Scope:    scope,
		Required: c.services.WorkItems,
		Logger:   c.logger,
	}
	return w
}

// workItemFromRecord adopts an already fetched record, as search
// results and plan records arrive.
func (c *Client) workItemFromRecord(ctx context.Context, p *Project, rec core.Record) (*WorkItem, error) {
	w := c.newWorkItem(p)
	if err := w.sync.Adopt(rec); err != nil {
		return nil, err
	}
	w.loadTestSteps(ctx)
	return w, nil
}

// loadTestSteps pulls the step table for step-bearing test cases. The
// custom field definitions are probed first so types without steps
// never provoke a fault; any failure leaves the item without steps.
func (w *WorkItem) loadTestSteps(ctx context.Context) {
	w.steps = nil
	svc := w.client.services.WorkItems
	ids, err := svc.CustomFieldTypeIDs(ctx, w.sync.URI())
	if err != nil || !slices.Contains(ids, "testSteps") {
		return
	}
	table, err := svc.TestSteps(ctx, w.sync.URI())
	if err != nil {
		if w.client.logger != nil {
			w.client.logger.Debug("test step fetch failed", "uri", w.sync.URI(), "error", err)
		}
		return
	}
	w.steps = table
}

// ID returns the work item id.
func (w *WorkItem) ID() string { return w.sync.ID() }

// URI returns the subterra URI of the item.
func (w *WorkItem) URI() string { return w.sync.URI() }

// Title returns the item title.
func (w *WorkItem) Title() string { return stringField(&w.sync, "title") }

// Type returns the work item type id, e.g. "task".
func (w *WorkItem) Type() string { return enumField(&w.sync, "type") }

// Status returns the current status id.
func (w *WorkItem) Status() string { return enumField(&w.sync, "status") }

// Resolution returns the resolution id, empty while unresolved.
func (w *WorkItem) Resolution() string { return enumField(&w.sync, "resolution") }

// Severity returns the severity id.
func (w *WorkItem) Severity() string { return enumField(&w.sync, "severity") }

// Created returns the creation time.
func (w *WorkItem) Created() (time.Time, bool) { return timeField(&w.sync, "created") }

// Updated returns the last server-side update time.
func (w *WorkItem) Updated() (time.Time, bool) { return timeField(&w.sync, "updated") }

// Project returns the project the item was loaded through, nil for
// items resolved from a bare URI.
func (w *WorkItem) Project() *Project { return w.project }

// Author returns the item author, nil when the server omitted it.
func (w *WorkItem) Author() (*User, error) {
	f := structField(&w.sync, "author")
	if f == nil {
		return nil, nil
	}
	return w.client.userFromFields(f)
}

// Get reads a raw working field value.
func (w *WorkItem) Get(name string) (any, bool) { return w.sync.Get(name) }

// Set records a local field edit. Nothing is sent until Save.
func (w *WorkItem) Set(name string, value any) { w.sync.Set(name, value) }

// Fields returns the working field state, read-only for callers.
func (w *WorkItem) Fields() core.Fields { return w.sync.Fields() }

// Dirty returns the names of locally edited fields.
func (w *WorkItem) Dirty() []string { return w.sync.Dirty() }

// Revert discards local edits without a remote call.
func (w *WorkItem) Revert() { w.sync.Revert() }

// Save pushes local edits: one update carrying only the changed fields,
// then a full reload. With nothing changed it costs no remote call.
func (w *WorkItem) Save(ctx context.Context) error {
	dirty := len(w.sync.Dirty()) > 0
	if err := w.sync.Save(ctx); err != nil {
		return err
	}
	if dirty {
		w.loadTestSteps(ctx)
	}
	return nil
}

// Reload refetches the item, discarding local edits.
func (w *WorkItem) Reload(ctx context.Context) error {
	if err := w.sync.Reload(ctx); err != nil {
		return err
	}
	w.loadTestSteps(ctx)
	return nil
}

// Delete removes the item on the server.
func (w *WorkItem) Delete(ctx context.Context) error { return w.sync.Delete(ctx) }

func (w *WorkItem) String() string {
	return fmt.Sprintf("%s: %s", w.ID(), w.Title())
}

// Description returns the raw description content, which may contain
// HTML when the item was edited in Polarion.
func (w *WorkItem) Description() string { return textField(&w.sync, "description") }

// PlainDescription renders the description as plain text: tags
// stripped, tables as fixed-width grids, item references and formulas
// expanded. With a project attached, long references resolve through
// it.
func (w *WorkItem) PlainDescription(ctx context.Context) (string, error) {
	conv := richtext.Converter{Logger: w.client.logger}
	if w.project != nil {
		conv.Resolver = w.project
	}
	return conv.Convert(ctx, w.Description())
}

// SetDescription sets the description and saves the item.
func (w *WorkItem) SetDescription(ctx context.Context, description string) error {
	w.sync.Set("description", core.HTML(description))
	return w.Save(ctx)
}

// SetResolution sets the resolution and saves the item.
func (w *WorkItem) SetResolution(ctx context.Context, resolution string) error {
	w.sync.Set("resolution", core.Enum{ID: resolution})
	return w.Save(ctx)
}

// SetStatus moves the item to the given status and saves it. Statuses
// the workflow does not currently offer are rejected with an error
// naming the reachable set.
func (w *WorkItem) SetStatus(ctx context.Context, status string) error {
	available, err := w.AvailableStatuses(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(available, status) {
		return fmt.Errorf("status %q is not reachable from %q (available: %s)",
			status, w.Status(), strings.Join(available, ", "))
	}
	w.sync.Set("status", core.Enum{ID: status})
	return w.Save(ctx)
}

// StatusOptions returns the status options configured for this item's
// type. Items without a project context, and types without a status
// enumeration, return nothing.
func (w *WorkItem) StatusOptions(ctx context.Context) []string {
	return w.typeEnum(ctx, "status")
}

// ResolutionOptions returns the resolution options for this item's
// type.
func (w *WorkItem) ResolutionOptions(ctx context.Context) []string {
	return w.typeEnum(ctx, "resolution")
}

// SeverityOptions returns the severity options for this item's type.
func (w *WorkItem) SeverityOptions(ctx context.Context) []string {
	return w.typeEnum(ctx, "severity")
}

func (w *WorkItem) typeEnum(ctx context.Context, name string) []string {
	if w.project == nil {
		return nil
	}
	options, err := w.project.Enum(ctx, w.Type()+"-"+name)
	if err != nil {
		return nil
	}
	return options
}

// AvailableStatuses returns the statuses the workflow currently allows
// the item to move to.
func (w *WorkItem) AvailableStatuses(ctx context.Context) ([]string, error) {
	options, err := w.client.services.WorkItems.AvailableEnumOptions(ctx, w.URI(), "status")
	if err != nil {
		return nil, &core.RemoteError{Op: "query available statuses", Identity: w.URI(), Err: err}
	}
	return options, nil
}

// AvailableActions returns the workflow transitions currently offered.
func (w *WorkItem) AvailableActions(ctx context.Context) ([]core.WorkflowAction, error) {
	actions, err := w.client.services.WorkItems.AvailableActions(ctx, w.URI())
	if err != nil {
		return nil, &core.RemoteError{Op: "query available actions", Identity: w.URI(), Err: err}
	}
	return actions, nil
}

// PerformAction performs the workflow action with the given native id
// or display name, then reloads the item. Actions the workflow does not
// currently offer are rejected.
func (w *WorkItem) PerformAction(ctx context.Context, name string) error {
	actions, err := w.AvailableActions(ctx)
	if err != nil {
		return err
	}
	for _, action := range actions {
		if action.NativeID == name || action.Name == name {
			return w.PerformActionID(ctx, action.ID)
		}
	}
	return fmt.Errorf("workflow action %q is not available on %s", name, w.ID())
}

// PerformActionID performs a workflow action by its transition id, then
// reloads the item.
func (w *WorkItem) PerformActionID(ctx context.Context, actionID int) error {
	if err := w.client.services.WorkItems.PerformAction(ctx, w.URI(), actionID); err != nil {
		return &core.RemoteError{Op: fmt.Sprintf("perform action %d", actionID), Identity: w.URI(), Err: err}
	}
	return w.Reload(ctx)
}

// Assignees returns the users the item is assigned to, built from the
// embedded records without a directory round trip.
func (w *WorkItem) Assignees() ([]*User, error) {
	var users []*User
	for _, entry := range listField(&w.sync, "assignee") {
		f, ok := entry.(core.Fields)
		if !ok {
			continue
		}
		u, err := w.client.userFromFields(f)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// AddAssignee assigns a user. With removeOthers the user becomes the
// only assignee.
func (w *WorkItem) AddAssignee(ctx context.Context, user *User, removeOthers bool) error {
	svc := w.client.services.WorkItems
	if removeOthers {
		current, err := w.Assignees()
		if err != nil {
			return err
		}
		for _, cu := range current {
			if err := svc.RemoveAssignee(ctx, w.URI(), cu.ID()); err != nil {
				return &core.RemoteError{Op: "remove assignee " + cu.ID(), Identity: w.URI(), Err: err}
			}
		}
	}
	if err := svc.AddAssignee(ctx, w.URI(), user.ID()); err != nil {
		return &core.RemoteError{Op: "add assignee " + user.ID(), Identity: w.URI(), Err: err}
	}
	return w.Reload(ctx)
}

// RemoveAssignee removes a user from the assignees.
func (w *WorkItem) RemoveAssignee(ctx context.Context, user *User) error {
	if err := w.client.services.WorkItems.RemoveAssignee(ctx, w.URI(), user.ID()); err != nil {
		return &core.RemoteError{Op: "remove assignee " + user.ID(), Identity: w.URI(), Err: err}
	}
	return w.Reload(ctx)
}

// Approvals returns the approval entries, reviewers built from the
// embedded records.
func (w *WorkItem) Approvals() ([]Approval, error) {
	var approvals []Approval
	for _, entry := range listField(&w.sync, "approvals") {
		f, ok := entry.(core.Fields)
		if !ok {
			continue
		}
		userFields, ok := f["user"].(core.Fields)
		if !ok {
			continue
		}
		u, err := w.client.userFromFields(userFields)
		if err != nil {
			return nil, err
		}
		status := ""
		if e, ok := f["status"].(core.Enum); ok {
			status = e.ID
		}
		approvals = append(approvals, Approval{User: u, Status: status})
	}
	return approvals, nil
}

// AddApprovee adds a user as approver. With removeOthers the user
// becomes the only approver.
func (w *WorkItem) AddApprovee(ctx context.Context, user *User, removeOthers bool) error {
	svc := w.client.services.WorkItems
	if removeOthers {
		current, err := w.Approvals()
		if err != nil {
			return err
		}
		for _, approval := range current {
			if err := svc.RemoveApprovee(ctx, w.URI(), approval.User.ID()); err != nil {
				return &core.RemoteError{Op: "remove approvee " + approval.User.ID(), Identity: w.URI(), Err: err}
			}
		}
	}
	if err := svc.AddApprovee(ctx, w.URI(), user.ID()); err != nil {
		return &core.RemoteError{Op: "add approvee " + user.ID(), Identity: w.URI(), Err: err}
	}
	return w.Reload(ctx)
}

// RemoveApprovee removes a user from the approvers.
func (w *WorkItem) RemoveApprovee(ctx context.Context, user *User) error {
	if err := w.client.services.WorkItems.RemoveApprovee(ctx, w.URI(), user.ID()); err != nil {
		return &core.RemoteError{Op: "remove approvee " + user.ID(), Identity: w.URI(), Err: err}
	}
	return w.Reload(ctx)
}

// LinkedWorkItems returns the links this item holds to others.
func (w *WorkItem) LinkedWorkItems() []Link {
	return w.links("linkedWorkItems")
}

// DerivedLinkedWorkItems returns the links other items hold to this
// one.
func (w *WorkItem) DerivedLinkedWorkItems() []Link {
	return w.links("linkedWorkItemsDerived")
}

func (w *WorkItem) links(name string) []Link {
	var links []Link
	for _, entry := range listField(&w.sync, name) {
		f, ok := entry.(core.Fields)
		if !ok {
			continue
		}
		uri, _ := f["workItemURI"].(string)
		role := ""
		if e, ok := f["role"].(core.Enum); ok {
			role = e.ID
		}
		links = append(links, Link{URI: uri, Role: role})
	}
	return links
}

// AddLinkedItem links this item to another with the given role, then
// reloads both sides.
func (w *WorkItem) AddLinkedItem(ctx context.Context, other *WorkItem, role string) error {
	if err := w.client.services.WorkItems.AddLinkedItem(ctx, w.URI(), other.URI(), role); err != nil {
		return &core.RemoteError{Op: "add link " + role, Identity: w.URI(), Err: err}
	}
	if err := w.Reload(ctx); err != nil {
		return err
	}
	return other.Reload(ctx)
}

// RemoveLinkedItem removes links to another item. With a role only that
// link goes; with an empty role every link between the two items goes,
// in both directions. Both sides reload afterwards.
func (w *WorkItem) RemoveLinkedItem(ctx context.Context, other *WorkItem, role string) error {
	svc := w.client.services.WorkItems
	if role != "" {
		if err := svc.RemoveLinkedItem(ctx, w.URI(), other.URI(), role); err != nil {
			return &core.RemoteError{Op: "remove link " + role, Identity: w.URI(), Err: err}
		}
	} else {
		for _, link := range w.LinkedWorkItems() {
			if link.URI != other.URI() {
				continue
			}
			if err := svc.RemoveLinkedItem(ctx, w.URI(), link.URI, link.Role); err != nil {
				return &core.RemoteError{Op: "remove link " + link.Role, Identity: w.URI(), Err: err}
			}
		}
		// Derived links originate at the other item, so the removal
		// call runs with the endpoints swapped.
		for _, link := range w.DerivedLinkedWorkItems() {
			if link.URI != other.URI() {
				continue
			}
			if err := svc.RemoveLinkedItem(ctx, link.URI, w.URI(), link.Role); err != nil {
				return &core.RemoteError{Op: "remove link " + link.Role, Identity: w.URI(), Err: err}
			}
		}
	}
	if err := w.Reload(ctx); err != nil {
		return err
	}
	return other.Reload(ctx)
}

// Hyperlinks returns the URLs attached to the item.
func (w *WorkItem) Hyperlinks() []Hyperlink {
	var links []Hyperlink
	for _, entry := range listField(&w.sync, "hyperlinks") {
		f, ok := entry.(core.Fields)
		if !ok {
			continue
		}
		url, _ := f["uri"].(string)
		role := ""
		if e, ok := f["role"].(core.Enum); ok {
			role = e.ID
		}
		links = append(links, Hyperlink{URL: url, Role: role})
	}
	return links
}

// AddHyperlink attaches a URL with the given role, one of
// HyperlinkRoleInternal or HyperlinkRoleExternal.
func (w *WorkItem) AddHyperlink(ctx context.Context, url, role string) error {
	if err := w.client.services.WorkItems.AddHyperlink(ctx, w.URI(), url, role); err != nil {
		return &core.RemoteError{Op: "add hyperlink", Identity: w.URI(), Err: err}
	}
	return w.Reload(ctx)
}

// RemoveHyperlink removes a URL from the item.
func (w *WorkItem) RemoveHyperlink(ctx context.Context, url string) error {
	if err := w.client.services.WorkItems.RemoveHyperlink(ctx, w.URI(), url); err != nil {
		return &core.RemoteError{Op: "remove hyperlink", Identity: w.URI(), Err: err}
	}
	return w.Reload(ctx)
}

// HasTestSteps reports whether a step table with at least one step was
// loaded.
func (w *WorkItem) HasTestSteps() bool {
	return w.steps != nil && len(w.steps.Steps) > 0
}

// TestSteps returns the raw step table, nil when the item's type
// declares none.
func (w *WorkItem) TestSteps() *core.TestStepTable { return w.steps }

// TestStepRows returns the steps as column-to-content rows, keyed by
// the table's declared column ids.
func (w *WorkItem) TestStepRows() []map[string]string {
	if w.steps == nil {
		return nil
	}
	rows := make([]map[string]string, 0, len(w.steps.Steps))
	for _, step := range w.steps.Steps {
		row := make(map[string]string, len(w.steps.Keys))
		for i, cell := range step {
			if i < len(w.steps.Keys) {
				row[w.steps.Keys[i]] = cell.Content
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// HasAttachments reports whether the item carries attachments.
func (w *WorkItem) HasAttachments() bool { return len(w.Attachments()) > 0 }

// Attachments lists the item's attachments.
func (w *WorkItem) Attachments() []Attachment {
	return attachmentList(&w.sync)
}

func attachmentList(s *core.Syncer) []Attachment {
	var attachments []Attachment
	for _, entry := range listField(s, "attachments") {
		f, ok := entry.(core.Fields)
		if !ok {
			continue
		}
		a := Attachment{}
		a.ID, _ = f["id"].(string)
		a.FileName, _ = f["fileName"].(string)
		a.Title, _ = f["title"].(string)
		a.URL, _ = f["url"].(string)
		if author, ok := f["author"].(core.Fields); ok {
			a.AuthorID, _ = author["id"].(string)
		}
		if updated, ok := f["updated"].(time.Time); ok {
			a.Updated = updated
		}
		attachments = append(attachments, a)
	}
	return attachments
}

// Attachment fetches the content of an attachment by id.
func (w *WorkItem) Attachment(ctx context.Context, id string) ([]byte, error) {
	data, err := w.client.services.WorkItems.AttachmentData(ctx, w.URI(), id)
	if err != nil {
		return nil, &core.RemoteError{Op: "fetch attachment " + id, Identity: w.URI(), Err: err}
	}
	return data, nil
}

// SaveAttachmentAsFile fetches an attachment and writes it to path.
func (w *WorkItem) SaveAttachmentAsFile(ctx context.Context, id, path string) error {
	data, err := w.Attachment(ctx, id)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// AddAttachment uploads a file as a new attachment and reloads the
// item. The attachment takes the file's base name.
func (w *WorkItem) AddAttachment(ctx context.Context, path, title string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := w.client.services.WorkItems.CreateAttachment(ctx, w.URI(), filepath.Base(path), title, data); err != nil {
		return &core.RemoteError{Op: "add attachment", Identity: w.URI(), Err: err}
	}
	return w.Reload(ctx)
}

// UpdateAttachment replaces an attachment's content and title, then
// reloads the item.
func (w *WorkItem) UpdateAttachment(ctx context.Context, id, path, title string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := w.client.services.WorkItems.UpdateAttachment(ctx, w.URI(), id, filepath.Base(path), title, data); err != nil {
		return &core.RemoteError{Op: "update attachment " + id, Identity: w.URI(), Err: err}
	}
	return w.Reload(ctx)
}

// DeleteAttachment removes an attachment and reloads the item.
func (w *WorkItem) DeleteAttachment(ctx context.Context, id string) error {
	if err := w.client.services.WorkItems.DeleteAttachment(ctx, w.URI(), id); err != nil {
		return &core.RemoteError{Op: "delete attachment " + id, Identity: w.URI(), Err: err}
	}
	return w.Reload(ctx)
}

// MoveToDocument moves the item into a document, under parent or at top
// level when parent is nil, then reloads the item.
func (w *WorkItem) MoveToDocument(ctx context.Context, document *Document, parent *WorkItem) error {
	parentURI := ""
	if parent != nil {
		parentURI = parent.URI()
	}
	if err := w.client.services.WorkItems.MoveToDocument(ctx, w.URI(), document.URI(), parentURI); err != nil {
		return &core.RemoteError{Op: "move to document", Identity: w.URI(), Err: err}
	}
	return w.Reload(ctx)
}
