package memory

import (
	"context"
	"fmt"

	"github.com/almforge/go-polarion/pkg/core"
)

// WorkItems serves the tracker surface from the store.
type WorkItems struct {
	store *Store
}

// WorkItems returns the tracker view.
func (s *Store) WorkItems() *WorkItems { return &WorkItems{store: s} }

var _ core.WorkItemService = (*WorkItems)(nil)

func (w *WorkItems) FetchByID(ctx context.Context, scope, id string) (core.Record, error) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.FetchByID")
	if err := s.failNext("WorkItems.FetchByID"); err != nil {
		return core.Record{}, err
	}
	uri, ok := s.lookup(core.KindWorkItem, scope, id)
	if !ok {
		return core.Record{Unresolvable: true}, nil
	}
	return s.snapshot(uri), nil
}

func (w *WorkItems) FetchByURI(ctx context.Context, uri string) (core.Record, error) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.FetchByURI")
	if err := s.failNext("WorkItems.FetchByURI"); err != nil {
		return core.Record{}, err
	}
	return s.snapshot(uri), nil
}

// Create mints an id in the project's sequence, stamps authorship and
// timestamps, and defaults the status to open the way a fresh workflow
// would.
func (w *WorkItems) Create(ctx context.Context, scope, typeName string, initial core.Fields) (string, error) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.Create")
	if err := s.failNext("WorkItems.Create"); err != nil {
		return "", err
	}
	if _, ok := s.lookup(core.KindProject, "", scope); !ok {
		return "", fmt.Errorf("no project %s", scope)
	}
	s.seq++
	id := fmt.Sprintf("%s-%d", scope, s.seq)
	f := initial.Clone()
	if f == nil {
		f = make(core.Fields)
	}
	f["type"] = core.Enum{ID: typeName}
	f["project"] = s.projectFields(scope)
	f["author"] = s.userFields(defaultAuthor)
	now := s.now()
	f["created"] = now
	f["updated"] = now
	if _, ok := f["status"]; !ok {
		f["status"] = core.Enum{ID: "open"}
	}
	return s.put(core.KindWorkItem, scope, id, f), nil
}

func (w *WorkItems) Update(ctx context.Context, uri string, patch core.Fields) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.Update")
	if err := s.failNext("WorkItems.Update"); err != nil {
		return err
	}
	return s.applyPatch(uri, patch)
}

func (w *WorkItems) Delete(ctx context.Context, uri string) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.Delete")
	if err := s.failNext("WorkItems.Delete"); err != nil {
		return err
	}
	if _, ok := s.base[uri]; !ok {
		return fmt.Errorf("no record at %s", uri)
	}
	s.drop(uri)
	kept := s.links[:0]
	for _, l := range s.links {
		if l.from != uri && l.to != uri {
			kept = append(kept, l)
		}
	}
	s.links = kept
	for planURI, items := range s.planItems {
		s.planItems[planURI] = removeString(items, uri)
	}
	return nil
}

func (w *WorkItems) RequiredFields(ctx context.Context, scope, typeName string) ([]string, error) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.RequiredFields")
	return append([]string(nil), s.required[typeName]...), nil
}

func (w *WorkItems) AllowedCustomKeys(ctx context.Context, uri string) ([]string, error) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.AllowedCustomKeys")
	typeName, err := s.recordType(uri)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), s.customKeys[typeName]...), nil
}

// CustomFieldTypeIDs reports the declared custom field definitions. A
// seeded step table surfaces as a testSteps definition, matching how a
// live server advertises step-bearing types.
func (w *WorkItems) CustomFieldTypeIDs(ctx context.Context, uri string) ([]string, error) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.CustomFieldTypeIDs")
	typeName, err := s.recordType(uri)
	if err != nil {
		return nil, err
	}
	ids := append([]string(nil), s.customKeys[typeName]...)
	if _, ok := s.testSteps[uri]; ok {
		ids = append(ids, "testSteps")
	}
	return ids, nil
}

func (w *WorkItems) Search(ctx context.Context, query, sort string, limit int) ([]core.Record, error) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.Search")
	return s.search(core.KindWorkItem, query, sort, limit), nil
}

func (w *WorkItems) EnumOptions(ctx context.Context, objectURI, enumID string) ([]string, error) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.EnumOptions")
	return append([]string(nil), s.enums[enumID]...), nil
}

func (w *WorkItems) AvailableEnumOptions(ctx context.Context, uri, enumID string) ([]string, error) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.AvailableEnumOptions")
	return append([]string(nil), s.enums[enumID]...), nil
}

func (w *WorkItems) AvailableActions(ctx context.Context, uri string) ([]core.WorkflowAction, error) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.AvailableActions")
	typeName, err := s.recordType(uri)
	if err != nil {
		return nil, err
	}
	return append([]core.WorkflowAction(nil), s.actions[typeName]...), nil
}

func (w *WorkItems) PerformAction(ctx context.Context, uri string, actionID int) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.PerformAction")
	typeName, err := s.recordType(uri)
	if err != nil {
		return err
	}
	offered := false
	for _, a := range s.actions[typeName] {
		if a.ID == actionID {
			offered = true
			break
		}
	}
	status, known := s.transitions[actionID]
	if !offered || !known {
		return fmt.Errorf("workflow action %d is not available", actionID)
	}
	s.base[uri]["status"] = core.Enum{ID: status}
	s.base[uri]["updated"] = s.now()
	return nil
}

func (w *WorkItems) AddHyperlink(ctx context.Context, uri, url, role string) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.AddHyperlink")
	if _, ok := s.base[uri]; !ok {
		return fmt.Errorf("no record at %s", uri)
	}
	s.hyperlinks[uri] = append(s.hyperlinks[uri], hyperlink{url: url, role: role})
	return nil
}

func (w *WorkItems) RemoveHyperlink(ctx context.Context, uri, url string) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.RemoveHyperlink")
	kept := s.hyperlinks[uri][:0]
	for _, h := range s.hyperlinks[uri] {
		if h.url != url {
			kept = append(kept, h)
		}
	}
	s.hyperlinks[uri] = kept
	return nil
}

func (w *WorkItems) AddLinkedItem(ctx context.Context, uri, linkedURI, role string) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.AddLinkedItem")
	if _, ok := s.base[uri]; !ok {
		return fmt.Errorf("no record at %s", uri)
	}
	if _, ok := s.base[linkedURI]; !ok {
		return fmt.Errorf("no record at %s", linkedURI)
	}
	s.links = append(s.links, link{from: uri, to: linkedURI, role: role})
	return nil
}

func (w *WorkItems) RemoveLinkedItem(ctx context.Context, uri, linkedURI, role string) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.RemoveLinkedItem")
	kept := s.links[:0]
	for _, l := range s.links {
		if l.from == uri && l.to == linkedURI && l.role == role {
			continue
		}
		kept = append(kept, l)
	}
	s.links = kept
	return nil
}

func (w *WorkItems) AddAssignee(ctx context.Context, uri, userID string) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.AddAssignee")
	if _, ok := s.base[uri]; !ok {
		return fmt.Errorf("no record at %s", uri)
	}
	s.assignees[uri] = append(s.assignees[uri], userID)
	return nil
}

func (w *WorkItems) RemoveAssignee(ctx context.Context, uri, userID string) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.RemoveAssignee")
	s.assignees[uri] = removeString(s.assignees[uri], userID)
	return nil
}

func (w *WorkItems) AddApprovee(ctx context.Context, uri, userID string) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.AddApprovee")
	if _, ok := s.base[uri]; !ok {
		return fmt.Errorf("no record at %s", uri)
	}
	s.approvals[uri] = append(s.approvals[uri], approval{user: userID, status: "waiting"})
	return nil
}

func (w *WorkItems) RemoveApprovee(ctx context.Context, uri, userID string) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.RemoveApprovee")
	kept := s.approvals[uri][:0]
	for _, a := range s.approvals[uri] {
		if a.user != userID {
			kept = append(kept, a)
		}
	}
	s.approvals[uri] = kept
	return nil
}

func (w *WorkItems) AddComment(ctx context.Context, itemURI, title string, body core.Text) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.AddComment")
	if _, ok := s.base[itemURI]; !ok {
		return fmt.Errorf("no record at %s", itemURI)
	}
	s.appendComment(itemURI, "", title, body)
	return nil
}

func (w *WorkItems) AddReply(ctx context.Context, commentURI string, body core.Text) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.AddReply")
	for itemURI, cs := range s.comments {
		for _, c := range cs {
			if c.uri == commentURI {
				s.appendComment(itemURI, c.id, "", body)
				return nil
			}
		}
	}
	return fmt.Errorf("no comment at %s", commentURI)
}

func (w *WorkItems) AttachmentData(ctx context.Context, uri, id string) ([]byte, error) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.AttachmentData")
	for _, a := range s.itemAttachments[uri] {
		if a.id == id {
			return append([]byte(nil), a.data...), nil
		}
	}
	return nil, fmt.Errorf("no attachment %s on %s", id, uri)
}

func (w *WorkItems) CreateAttachment(ctx context.Context, uri, fileName, title string, data []byte) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.CreateAttachment")
	if _, ok := s.base[uri]; !ok {
		return fmt.Errorf("no record at %s", uri)
	}
	s.itemAttachments[uri] = append(s.itemAttachments[uri], s.newAttachment(fileName, title, data))
	return nil
}

func (w *WorkItems) UpdateAttachment(ctx context.Context, uri, id, fileName, title string, data []byte) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.UpdateAttachment")
	for i, a := range s.itemAttachments[uri] {
		if a.id != id {
			continue
		}
		a.fileName = fileName
		a.title = title
		a.data = append([]byte(nil), data...)
		a.updated = s.now()
		s.downloads[a.url] = append([]byte(nil), data...)
		s.itemAttachments[uri][i] = a
		return nil
	}
	return fmt.Errorf("no attachment %s on %s", id, uri)
}

func (w *WorkItems) DeleteAttachment(ctx context.Context, uri, id string) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.DeleteAttachment")
	kept := s.itemAttachments[uri][:0]
	for _, a := range s.itemAttachments[uri] {
		if a.id != id {
			kept = append(kept, a)
		}
	}
	s.itemAttachments[uri] = kept
	return nil
}

// MoveToDocument re-homes the item under the document, replacing any
// previous containment.
func (w *WorkItems) MoveToDocument(ctx context.Context, uri, documentURI, parentURI string) error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.MoveToDocument")
	if _, ok := s.base[uri]; !ok {
		return fmt.Errorf("no record at %s", uri)
	}
	if _, ok := s.base[documentURI]; !ok {
		return fmt.Errorf("no document at %s", documentURI)
	}
	for moduleURI, items := range s.moduleItems {
		s.moduleItems[moduleURI] = removeString(items, uri)
	}
	s.moduleItems[documentURI] = append(s.moduleItems[documentURI], uri)
	s.base[uri]["moduleURI"] = core.Ref{URI: documentURI}
	s.base[uri]["updated"] = s.now()
	return nil
}

func (w *WorkItems) TestSteps(ctx context.Context, uri string) (*core.TestStepTable, error) {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("WorkItems.TestSteps")
	table, ok := s.testSteps[uri]
	if !ok {
		return nil, nil
	}
	out := core.TestStepTable{
		Keys:  append([]string(nil), table.Keys...),
		Steps: append([][]core.Text(nil), table.Steps...),
	}
	return &out, nil
}

// appendComment must run with the lock held.
func (s *Store) appendComment(itemURI, parentID, title string, body core.Text) {
	s.seq++
	id := fmt.Sprintf("c%d", s.seq)
	s.comments[itemURI] = append(s.comments[itemURI], comment{
		uri:      itemURI + "${Comment}" + id,
		id:       id,
		parentID: parentID,
		title:    title,
		body:     body,
		author:   defaultAuthor,
		created:  s.now(),
	})
}

// recordType must run with the lock held.
func (s *Store) recordType(uri string) (string, error) {
	base, ok := s.base[uri]
	if !ok {
		return "", fmt.Errorf("no record at %s", uri)
	}
	if e, ok := base["type"].(core.Enum); ok {
		return e.ID, nil
	}
	return "", nil
}

// drop must run with the lock held.
func (s *Store) drop(uri string) {
	kind := s.kinds[uri]
	delete(s.base, uri)
	delete(s.kinds, uri)
	for key, indexed := range s.index[kind] {
		if indexed == uri {
			delete(s.index[kind], key)
		}
	}
}

func removeString(list []string, victim string) []string {
	kept := list[:0]
	for _, v := range list {
		if v != victim {
			kept = append(kept, v)
		}
	}
	return kept
}
