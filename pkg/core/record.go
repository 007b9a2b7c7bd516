package core

// Group is one named attribute block of a remote record. The wire
// format delivers entity fields in blocks; which block a field arrived
// in carries no meaning for callers.
type Group struct {
	Name   string
	Fields Fields
}

// Record is a remote entity as the transport returns it. Unresolvable
// marks a stub the server could not resolve into a real entity. It is a
// state, not an error: only adoption into a syncer turns it into one.
type Record struct {
	URI          string
	Unresolvable bool
	Groups       []Group
}

// NewRecord builds a single-group record, the common case for
// transports that do not preserve wire grouping.
func NewRecord(uri string, f Fields) Record {
	return Record{URI: uri, Groups: []Group{{Name: "fields", Fields: f}}}
}

// Flatten projects every attribute group onto one flat namespace. On a
// name collision the later group wins.
func (r Record) Flatten() Fields {
	out := make(Fields)
	for _, g := range r.Groups {
		for k, v := range g.Fields {
			out[k] = cloneValue(v)
		}
	}
	return out
}
