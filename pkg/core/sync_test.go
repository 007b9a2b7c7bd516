package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

// fakeAccessor is an in-memory RecordAccessor that counts remote calls
// and captures the last update patch.
type fakeAccessor struct {
	records  map[string]Fields
	required []string

	fetches int
	creates int
	updates int
	deletes int

	lastPatchURI string
	lastPatch    Fields

	failUpdate error
	// derive mimics server-side bookkeeping applied after an update.
	derive func(f Fields)
}

func newFakeAccessor() *fakeAccessor {
	return &fakeAccessor{records: make(map[string]Fields)}
}

func fakeURI(scope, id string) string {
	return fmt.Sprintf("subterra:data-service:objects:/default/%s${WorkItem}%s", scope, id)
}

func (a *fakeAccessor) put(uri string, f Fields) {
	a.records[uri] = f
}

func (a *fakeAccessor) FetchByID(ctx context.Context, scope, id string) (Record, error) {
	a.fetches++
	for uri, f := range a.records {
		if f["id"] == id {
			return NewRecord(uri, f), nil
		}
	}
	return Record{}, errors.New("no such record")
}

func (a *fakeAccessor) FetchByURI(ctx context.Context, uri string) (Record, error) {
	a.fetches++
	f, ok := a.records[uri]
	if !ok {
		return Record{}, errors.New("no such record")
	}
	return NewRecord(uri, f), nil
}

func (a *fakeAccessor) Create(ctx context.Context, scope, typeName string, initial Fields) (string, error) {
	a.creates++
	id := fmt.Sprintf("NEW-%d", len(a.records)+1)
	uri := fakeURI(scope, id)
	f := initial.Clone()
	f["id"] = id
	f["type"] = Enum{ID: typeName}
	a.records[uri] = f
	return uri, nil
}

func (a *fakeAccessor) Update(ctx context.Context, uri string, patch Fields) error {
	a.updates++
	a.lastPatchURI = uri
	a.lastPatch = patch
	if a.failUpdate != nil {
		return a.failUpdate
	}
	f, ok := a.records[uri]
	if !ok {
		return errors.New("no such record")
	}
	for k, v := range patch {
		f[k] = v
	}
	if a.derive != nil {
		a.derive(f)
	}
	return nil
}

func (a *fakeAccessor) Delete(ctx context.Context, uri string) error {
	a.deletes++
	delete(a.records, uri)
	return nil
}

func (a *fakeAccessor) RequiredFields(ctx context.Context, scope, typeName string) ([]string, error) {
	return a.required, nil
}

func loadedSyncer(t *testing.T, acc *fakeAccessor) *Syncer {
	t.Helper()
	acc.put(fakeURI("Proj", "PROJ-1"), Fields{
		"id":     "PROJ-1",
		"title":  "Base title",
		"status": Enum{ID: "open"},
		"type":   Enum{ID: "task"},
	})
	s := &Syncer{Accessor: acc, Kind: KindWorkItem, Scope: "Proj", Required: acc}
	if err := s.LoadByID(context.Background(), "PROJ-1"); err != nil {
		t.Fatalf("LoadByID() error = %v", err)
	}
	return s
}

func TestSyncerSaveWithoutChangesIsFree(t *testing.T) {
	acc := newFakeAccessor()
	s := loadedSyncer(t, acc)
	fetchesAfterLoad := acc.fetches

	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if acc.updates != 0 {
		t.Errorf("updates = %d, want 0", acc.updates)
	}
	if acc.fetches != fetchesAfterLoad {
		t.Errorf("fetches = %d, want %d (no reload either)", acc.fetches, fetchesAfterLoad)
	}
}

func TestSyncerSaveSendsOnlyChangedFields(t *testing.T) {
	acc := newFakeAccessor()
	s := loadedSyncer(t, acc)

	s.Set("title", "New title")
	s.Set("status", Enum{ID: "done"})
	// Rewriting the committed value must not count as a change.
	s.Set("type", Enum{ID: "task"})

	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if acc.updates != 1 {
		t.Fatalf("updates = %d, want 1", acc.updates)
	}
	if acc.lastPatchURI != s.URI() {
		t.Errorf("patch uri = %q, want %q", acc.lastPatchURI, s.URI())
	}
	want := Fields{"title": "New title", "status": Enum{ID: "done"}}
	if !reflect.DeepEqual(acc.lastPatch, want) {
		t.Errorf("patch = %v, want %v", acc.lastPatch, want)
	}
}

func TestSyncerSaveReloadsServerDerivedChanges(t *testing.T) {
	acc := newFakeAccessor()
	touched := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	acc.derive = func(f Fields) {
		f["updated"] = touched
	}
	s := loadedSyncer(t, acc)

	s.Set("title", "New title")
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if v, _ := s.Get("title"); v != "New title" {
		t.Errorf("title = %v, want New title", v)
	}
	if v, _ := s.Get("updated"); !reflect.DeepEqual(v, touched) {
		t.Errorf("updated = %v, want server-derived %v", v, touched)
	}
	if names := s.Dirty(); len(names) != 0 {
		t.Errorf("Dirty() after save = %v, want none", names)
	}
}

func TestSyncerSaveFailureKeepsLocalState(t *testing.T) {
	acc := newFakeAccessor()
	acc.failUpdate = errors.New("fault: internal server error")
	s := loadedSyncer(t, acc)

	s.Set("title", "New title")
	err := s.Save(context.Background())

	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Save() error = %v, want RemoteError", err)
	}
	if remoteErr.Op != "update" || remoteErr.Identity != s.URI() {
		t.Errorf("RemoteError context = %q/%q, want update/%q", remoteErr.Op, remoteErr.Identity, s.URI())
	}
	if !errors.Is(err, acc.failUpdate) {
		t.Error("cause not preserved through RemoteError")
	}
	// The edit survives the failure, so the caller can retry or revert.
	if v, _ := s.Get("title"); v != "New title" {
		t.Errorf("title = %v, want local edit kept", v)
	}
	if names := s.Dirty(); len(names) != 1 {
		t.Errorf("Dirty() = %v, want the failed field still dirty", names)
	}
}

func TestSyncerSkipFieldsStayLocal(t *testing.T) {
	acc := newFakeAccessor()
	s := loadedSyncer(t, acc)
	s.Skip = []string{"records"}

	s.Set("records", []any{Fields{"testCaseURI": Ref{URI: "x"}}})
	s.Set("title", "New title")

	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, ok := acc.lastPatch["records"]; ok {
		t.Error("skipped field leaked into the patch")
	}
	if _, ok := acc.lastPatch["title"]; !ok {
		t.Error("changed field missing from the patch")
	}
}

func TestSyncerCreateGatesRequiredFields(t *testing.T) {
	acc := newFakeAccessor()
	acc.required = []string{"title", "severity"}
	s := &Syncer{Accessor: acc, Kind: KindWorkItem, Scope: "Proj", Required: acc}

	err := s.Create(context.Background(), "task", Fields{"title": "Only a title"})

	var missingErr *MissingRequiredFieldsError
	if !errors.As(err, &missingErr) {
		t.Fatalf("Create() error = %v, want MissingRequiredFieldsError", err)
	}
	if !reflect.DeepEqual(missingErr.Missing, []string{"severity"}) {
		t.Errorf("Missing = %v, want [severity]", missingErr.Missing)
	}
	if acc.creates != 0 {
		t.Errorf("creates = %d, want 0 (gate runs before the remote call)", acc.creates)
	}
}

func TestSyncerCreateRejectsUnknownFields(t *testing.T) {
	acc := newFakeAccessor()
	s := &Syncer{Accessor: acc, Kind: KindWorkItem, Scope: "Proj", Required: acc}

	err := s.Create(context.Background(), "task", Fields{"title": "x", "bogusField": 1})

	var fieldErr *FieldNotAllowedError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("Create() error = %v, want FieldNotAllowedError", err)
	}
	if fieldErr.Key != "bogusField" {
		t.Errorf("Key = %q, want bogusField", fieldErr.Key)
	}
	if acc.creates != 0 {
		t.Errorf("creates = %d, want 0", acc.creates)
	}
}

func TestSyncerCreateLoadsNewRecord(t *testing.T) {
	acc := newFakeAccessor()
	acc.required = []string{"title"}
	s := &Syncer{Accessor: acc, Kind: KindWorkItem, Scope: "Proj", Required: acc}

	if err := s.Create(context.Background(), "task", Fields{"title": "Fresh"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if acc.creates != 1 {
		t.Errorf("creates = %d, want 1", acc.creates)
	}
	if !s.Loaded() || s.ID() == "" || s.URI() == "" {
		t.Errorf("created entity not fully loaded: id=%q uri=%q", s.ID(), s.URI())
	}
	if v, _ := s.Get("title"); v != "Fresh" {
		t.Errorf("title = %v, want Fresh", v)
	}
}

func TestSyncerLoadFailures(t *testing.T) {
	acc := newFakeAccessor()

	t.Run("Missing Record", func(t *testing.T) {
		s := &Syncer{Accessor: acc, Kind: KindWorkItem, Scope: "Proj"}
		err := s.LoadByID(context.Background(), "PROJ-404")
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("LoadByID() error = %v, want NotFoundError", err)
		}
		if nf.Identity != "Proj/PROJ-404" {
			t.Errorf("Identity = %q, want Proj/PROJ-404", nf.Identity)
		}
	})

	t.Run("Unresolvable Stub", func(t *testing.T) {
		s := &Syncer{Accessor: acc, Kind: KindWorkItem, Scope: "Proj"}
		err := s.Adopt(Record{URI: "subterra:x${WorkItem}gone", Unresolvable: true})
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("Adopt() error = %v, want NotFoundError", err)
		}
	})

	t.Run("Save Before Load", func(t *testing.T) {
		s := &Syncer{Accessor: acc, Kind: KindWorkItem}
		if err := s.Save(context.Background()); !errors.Is(err, ErrNotLoaded) {
			t.Errorf("Save() error = %v, want ErrNotLoaded", err)
		}
	})
}

func TestSyncerReloadDiscardsLocalEdits(t *testing.T) {
	acc := newFakeAccessor()
	s := loadedSyncer(t, acc)

	s.Set("title", "Doomed edit")
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if v, _ := s.Get("title"); v != "Base title" {
		t.Errorf("title = %v, want the server value back", v)
	}
	if names := s.Dirty(); len(names) != 0 {
		t.Errorf("Dirty() = %v, want none", names)
	}
}
