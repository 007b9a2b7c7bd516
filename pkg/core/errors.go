package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotLoaded is returned when an operation needs a loaded record but
// none was loaded or created yet.
var ErrNotLoaded = errors.New("entity not loaded")

// NotFoundError reports a load that produced nothing, either because
// the remote lookup failed or because the server answered with an
// unresolvable stub.
type NotFoundError struct {
	Kind     Kind
	Identity string
	Err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Identity)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// MissingRequiredFieldsError reports a create that was rejected before
// any remote call because server-required fields were not supplied.
type MissingRequiredFieldsError struct {
	TypeName string
	Missing  []string
}

func (e *MissingRequiredFieldsError) Error() string {
	return fmt.Sprintf("new %s requires fields: %s", e.TypeName, strings.Join(e.Missing, ", "))
}

// FieldNotAllowedError reports a field name rejected by a gate: a
// custom field key outside the server allow-list, or an initial field
// the entity type does not declare.
type FieldNotAllowedError struct {
	Key    string
	Target string
}

func (e *FieldNotAllowedError) Error() string {
	return fmt.Sprintf("field %q is not allowed on %s", e.Key, e.Target)
}

// RemoteError wraps a failed remote operation with the operation name
// and the identity it addressed. The sync model never retries; the
// cause stays wrapped for callers that need the fault detail.
type RemoteError struct {
	Op       string
	Identity string
	Err      error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Identity, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// UnknownKindError reports a subterra URI whose type token maps to no
// known entity kind.
type UnknownKindError struct {
	Token string
	URI   string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("uri type %q is not supported: %s", e.Token, e.URI)
}
