package memory

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes store internals for observability.
type StoreState struct {
	Records     int            `json:"records"`
	Links       int            `json:"links"`
	Attachments int            `json:"attachments"`
	Calls       map[string]int `json:"calls"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	attachments := 0
	for _, atts := range s.itemAttachments {
		attachments += len(atts)
	}
	for _, atts := range s.runAttachments {
		attachments += len(atts)
	}
	for _, atts := range s.recordAttachments {
		attachments += len(atts)
	}
	for _, atts := range s.stepAttachments {
		attachments += len(atts)
	}

	calls := make(map[string]int, len(s.calls))
	for name, n := range s.calls {
		calls[name] = n
	}

	return StoreState{
		Records:     len(s.base),
		Links:       len(s.links),
		Attachments: attachments,
		Calls:       calls,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "memory"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
