package core

import (
	"context"
	"log/slog"
	"slices"
)

// Syncer runs the load/create/save/reload cycle for one entity
// instance. Entities embed one and delegate their persistence to it.
//
// Lifecycle:
//  1. LoadByID/LoadByURI/Adopt installs a server snapshot.
//  2. Set records local edits against the snapshot.
//  3. Save diffs working against committed, sends only the changed
//     fields plus the URI, then reloads the full record so server-side
//     derived changes become visible.
//
// A Save with no dirty fields issues no remote call at all. Remote
// failures surface immediately; nothing is retried and a failed save
// leaves the local state untouched.
type Syncer struct {
	Accessor RecordAccessor
	Kind     Kind
	Scope    string
	Required RequiredFieldsQuery
	// Skip lists fields excluded from the dirty scan, for fields the
	// server refuses in update calls (test run records, for one).
	Skip   []string
	Logger *slog.Logger

	uri    string
	id     string
	shadow Shadow
}

// URI returns the subterra URI of the loaded record.
func (s *Syncer) URI() string { return s.uri }

// ID returns the human-readable id of the loaded record.
func (s *Syncer) ID() string { return s.id }

// Loaded reports whether a record was adopted.
func (s *Syncer) Loaded() bool { return s.shadow.Loaded() }

// Get reads a working field value.
func (s *Syncer) Get(name string) (any, bool) { return s.shadow.Get(name) }

// Committed reads the last server-confirmed value of a field.
func (s *Syncer) Committed(name string) (any, bool) { return s.shadow.Committed(name) }

// Fields returns the working field state, read-only for callers.
func (s *Syncer) Fields() Fields { return s.shadow.Fields() }

// Set records a local edit. No remote call happens until Save.
func (s *Syncer) Set(name string, value any) { s.shadow.Set(name, value) }

// Revert discards local edits without a remote call.
func (s *Syncer) Revert() { s.shadow.Revert() }

// Dirty returns the changed field names, sorted, skip list applied.
func (s *Syncer) Dirty() []string {
	names := s.shadow.Dirty()
	if len(s.Skip) == 0 {
		return names
	}
	kept := names[:0]
	for _, name := range names {
		if !slices.Contains(s.Skip, name) {
			kept = append(kept, name)
		}
	}
	return kept
}

// LoadByID fetches and adopts the record with the given id.
func (s *Syncer) LoadByID(ctx context.Context, id string) error {
	rec, err := s.Accessor.FetchByID(ctx, s.Scope, id)
	if err != nil {
		return &NotFoundError{Kind: s.Kind, Identity: s.identity(id), Err: err}
	}
	return s.Adopt(rec)
}

// LoadByURI fetches and adopts the record at the given URI.
func (s *Syncer) LoadByURI(ctx context.Context, uri string) error {
	rec, err := s.Accessor.FetchByURI(ctx, uri)
	if err != nil {
		return &NotFoundError{Kind: s.Kind, Identity: uri, Err: err}
	}
	return s.Adopt(rec)
}

// Adopt installs an already fetched record, as when an entity arrives
// embedded in another entity's fields. Unresolvable stubs are rejected
// here, turning the record state into the error callers handle.
func (s *Syncer) Adopt(rec Record) error {
	if rec.Unresolvable {
		identity := rec.URI
		if identity == "" {
			identity = s.identity(s.id)
		}
		return &NotFoundError{Kind: s.Kind, Identity: identity}
	}
	fields := rec.Flatten()
	s.shadow.Load(fields)
	s.uri = rec.URI
	if id, ok := fields["id"].(string); ok && id != "" {
		s.id = id
	}
	if s.Logger != nil {
		s.Logger.Debug("record loaded", "kind", s.Kind, "uri", s.uri)
	}
	return nil
}

// Create validates and creates a new record, then loads it fully.
//
// Two gates run before any remote create call: the server-declared
// required fields must all be present in initial, and every initial
// field name must be declared by the kind's schema. A rejected create
// therefore costs at most the required-fields query.
func (s *Syncer) Create(ctx context.Context, typeName string, initial Fields) error {
	if s.Required != nil {
		required, err := s.Required.RequiredFields(ctx, s.Scope, typeName)
		if err != nil {
			return &RemoteError{Op: "query required fields", Identity: s.identity(typeName), Err: err}
		}
		var missing []string
		for _, name := range required {
			if _, ok := initial[name]; !ok {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return &MissingRequiredFieldsError{TypeName: typeName, Missing: missing}
		}
	}
	if schema := SchemaFor(s.Kind); schema != nil {
		for _, name := range initial.Names() {
			if !schema.Allows(name) {
				return &FieldNotAllowedError{Key: name, Target: typeName}
			}
		}
	}

	uri, err := s.Accessor.Create(ctx, s.Scope, typeName, initial)
	if err != nil {
		return &RemoteError{Op: "create " + typeName, Identity: s.identity(typeName), Err: err}
	}
	if s.Logger != nil {
		s.Logger.Debug("record created", "kind", s.Kind, "uri", uri)
	}
	return s.LoadByURI(ctx, uri)
}

// Save pushes local edits. With no dirty fields it is a no-op with zero
// remote calls. Otherwise it sends one update carrying only the changed
// fields and the URI, then reloads the record.
func (s *Syncer) Save(ctx context.Context) error {
	if !s.shadow.Loaded() {
		return ErrNotLoaded
	}
	names := s.Dirty()
	if len(names) == 0 {
		if s.Logger != nil {
			s.Logger.Debug("save skipped, nothing changed", "kind", s.Kind, "uri", s.uri)
		}
		return nil
	}
	patch := s.shadow.Patch(names)
	if err := s.Accessor.Update(ctx, s.uri, patch); err != nil {
		return &RemoteError{Op: "update", Identity: s.uri, Err: err}
	}
	if s.Logger != nil {
		s.Logger.Debug("record saved", "kind", s.Kind, "uri", s.uri, "fields", names)
	}
	return s.Reload(ctx)
}

// Reload refetches the record and replaces the snapshot, discarding any
// local edits. Cross-entity operations call this on both sides so
// server-side bookkeeping shows up everywhere it landed.
func (s *Syncer) Reload(ctx context.Context) error {
	if !s.shadow.Loaded() {
		return ErrNotLoaded
	}
	return s.LoadByURI(ctx, s.uri)
}

// Delete removes the record remotely. The local snapshot stays as a
// record of what was deleted.
func (s *Syncer) Delete(ctx context.Context) error {
	if !s.shadow.Loaded() {
		return ErrNotLoaded
	}
	if err := s.Accessor.Delete(ctx, s.uri); err != nil {
		return &RemoteError{Op: "delete", Identity: s.uri, Err: err}
	}
	if s.Logger != nil {
		s.Logger.Debug("record deleted", "kind", s.Kind, "uri", s.uri)
	}
	return nil
}

func (s *Syncer) identity(id string) string {
	if s.Scope == "" {
		return id
	}
	return s.Scope + "/" + id
}
