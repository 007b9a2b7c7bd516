package core

import "sort"

// Shadow holds the last server-confirmed field state of an entity next
// to the caller's working copy. Local edits land in the working set
// only; the committed set changes on Load and nothing else.
type Shadow struct {
	committed Fields
	working   Fields
}

// Load installs a fresh server snapshot, discarding any local edits.
func (s *Shadow) Load(f Fields) {
	s.committed = f.Clone()
	s.working = f.Clone()
}

// Loaded reports whether a snapshot was installed.
func (s *Shadow) Loaded() bool {
	return s.committed != nil
}

// Set stores a working value. The committed state is never touched.
func (s *Shadow) Set(name string, value any) {
	if s.working == nil {
		s.working = make(Fields)
	}
	s.working[name] = value
}

// Get reads a working value.
func (s *Shadow) Get(name string) (any, bool) {
	v, ok := s.working[name]
	return v, ok
}

// Committed reads the last server-confirmed value.
func (s *Shadow) Committed(name string) (any, bool) {
	v, ok := s.committed[name]
	return v, ok
}

// Fields returns the working state. Callers must treat it as read-only;
// edits belong in Set.
func (s *Shadow) Fields() Fields {
	return s.working
}

// Dirty returns the names of fields whose working value differs from
// the committed value, in sorted order.
func (s *Shadow) Dirty() []string {
	var names []string
	for name, v := range s.working {
		if !equalValue(v, s.committed[name]) {
			names = append(names, name)
		}
	}
	for name := range s.committed {
		if _, ok := s.working[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Patch returns the working values of the named fields, deep copied so
// later edits do not leak into an in-flight update.
func (s *Shadow) Patch(names []string) Fields {
	patch := make(Fields, len(names))
	for _, name := range names {
		patch[name] = cloneValue(s.working[name])
	}
	return patch
}

// Revert discards local edits, restoring the committed state.
func (s *Shadow) Revert() {
	s.working = s.committed.Clone()
}
