package core

import "context"

// RecordAccessor is the transport contract for one entity kind.
// Implementations translate between records and whatever wire protocol
// the server speaks. The sync model holds the only reference to an
// accessor an entity uses.
type RecordAccessor interface {
	// FetchByID retrieves a record by its human-readable id within a
	// scope (usually a project id; empty for global entities).
	FetchByID(ctx context.Context, scope, id string) (Record, error)

	// FetchByURI retrieves a record by its subterra URI.
	FetchByURI(ctx context.Context, uri string) (Record, error)

	// Create makes a new record of the given type and returns its URI.
	Create(ctx context.Context, scope, typeName string, initial Fields) (string, error)

	// Update applies a partial field patch to the record at uri.
	Update(ctx context.Context, uri string, patch Fields) error

	// Delete removes the record at uri.
	Delete(ctx context.Context, uri string) error
}

// RequiredFieldsQuery answers which fields the server demands before a
// record of the given type may be created.
type RequiredFieldsQuery interface {
	RequiredFields(ctx context.Context, scope, typeName string) ([]string, error)
}

// CustomKeysQuery answers custom field configuration for the record at
// uri: the allow-list of settable keys, and the ids of the declared
// custom field definitions. The definition list is how callers discover
// step-bearing test cases without provoking a fault.
type CustomKeysQuery interface {
	AllowedCustomKeys(ctx context.Context, uri string) ([]string, error)
	CustomFieldTypeIDs(ctx context.Context, uri string) ([]string, error)
}

// ReferenceResolver resolves an item reference found in rich content
// into a display string. Converters work without one; long references
// then fall back to the bare item id.
type ReferenceResolver interface {
	ResolveReference(ctx context.Context, itemID string) (string, error)
}
