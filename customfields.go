package polarion

import (
	"context"
	"slices"

	"github.com/almforge/go-polarion/pkg/core"
)

// Custom fields live in the item's customFields struct and follow the
// same snapshot/diff cycle as built-in fields. Writes are gated by the
// server's per-type allow-list, queried before anything is sent.

// CustomField reads a custom field value.
func (w *WorkItem) CustomField(key string) (any, bool) {
	custom := structField(&w.sync, "customFields")
	v, ok := custom[key]
	return v, ok
}

// AllowedCustomKeys returns the custom field keys the server allows on
// this item.
func (w *WorkItem) AllowedCustomKeys(ctx context.Context) ([]string, error) {
	keys, err := w.client.services.WorkItems.AllowedCustomKeys(ctx, w.URI())
	if err != nil {
		return nil, &core.RemoteError{Op: "query custom field keys", Identity: w.URI(), Err: err}
	}
	return keys, nil
}

// IsCustomFieldAllowed checks a key against the server allow-list.
func (w *WorkItem) IsCustomFieldAllowed(ctx context.Context, key string) (bool, error) {
	keys, err := w.AllowedCustomKeys(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(keys, key), nil
}

// SetCustomField sets a custom field and saves the item. Keys outside
// the server allow-list are rejected with FieldNotAllowedError before
// anything is sent.
func (w *WorkItem) SetCustomField(ctx context.Context, key string, value any) error {
	allowed, err := w.IsCustomFieldAllowed(ctx, key)
	if err != nil {
		return err
	}
	if !allowed {
		return &core.FieldNotAllowedError{Key: key, Target: "work item " + w.ID()}
	}
	custom := structField(&w.sync, "customFields").Clone()
	if custom == nil {
		custom = core.Fields{}
	}
	custom[key] = value
	w.sync.Set("customFields", custom)
	return w.Save(ctx)
}
