package core

import (
	"sort"
	"time"
)

// Fields is the flat field mapping of an entity. Keys are the remote
// field names. Values are drawn from a closed algebra: nil, string,
// bool, int, float64, time.Time, Enum, Text, Ref, nested Fields and
// []any of the same.
type Fields map[string]any

// Enum references a single enumeration option by its id, e.g. a status
// or severity value.
type Enum struct {
	ID string
}

// Text is a rich text payload as the server stores it. Type is the MIME
// type, usually "text/html".
type Text struct {
	Type    string
	Content string
	Lossy   bool
}

// HTML wraps content in the text type the server expects for rich text
// fields.
func HTML(content string) Text {
	return Text{Type: "text/html", Content: content}
}

// Ref points at another record by its subterra URI.
type Ref struct {
	URI string
}

// Names returns the field names in sorted order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy. Scalar values are immutable and shared.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case Fields:
		return tv.Clone()
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// equalValue compares two field values. Values outside the declared
// algebra compare unequal, which errs towards sending the field.
func equalValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case string, bool, int, float64, Enum, Ref, Text:
		return a == b
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case Fields:
		bv, ok := b.(Fields)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !equalValue(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalValue(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
