package polarion

import (
	"strings"
	"time"

	"github.com/almforge/go-polarion/pkg/core"
)

// Typed reads over a syncer's working fields. Absent or differently
// typed values read as the zero value, matching how the server omits
// unset fields entirely.

func stringField(s *core.Syncer, name string) string {
	v, _ := s.Get(name)
	str, _ := v.(string)
	return str
}

func boolField(s *core.Syncer, name string) bool {
	v, _ := s.Get(name)
	b, _ := v.(bool)
	return b
}

func enumField(s *core.Syncer, name string) string {
	v, _ := s.Get(name)
	if e, ok := v.(core.Enum); ok {
		return e.ID
	}
	return ""
}

func textField(s *core.Syncer, name string) string {
	v, _ := s.Get(name)
	if t, ok := v.(core.Text); ok {
		return t.Content
	}
	return ""
}

func timeField(s *core.Syncer, name string) (time.Time, bool) {
	v, _ := s.Get(name)
	t, ok := v.(time.Time)
	return t, ok
}

func listField(s *core.Syncer, name string) []any {
	v, _ := s.Get(name)
	l, _ := v.([]any)
	return l
}

func structField(s *core.Syncer, name string) core.Fields {
	v, _ := s.Get(name)
	f, _ := v.(core.Fields)
	return f
}

// embeddedURI digs the subterra URI out of an embedded record's fields.
func embeddedURI(f core.Fields) string {
	uri, _ := f["uri"].(string)
	return uri
}

// trailingID returns the id segment of a subterra URI, the text after
// the type token.
func trailingID(uri string) string {
	if i := strings.LastIndexByte(uri, '}'); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
