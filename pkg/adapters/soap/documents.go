package soap

import (
	"context"
	"fmt"

	"github.com/almforge/go-polarion/pkg/core"
)

// Documents accesses LiveDoc modules. Modules are served by the
// tracker service and are read-only handles here.
type Documents struct {
	client *Client
}

// Documents returns the module accessor.
func (c *Client) Documents() *Documents { return &Documents{client: c} }

var _ core.DocumentService = (*Documents)(nil)

// FetchByID resolves a module by its space-qualified location within a
// project, e.g. "Testing/Test Specification".
func (d *Documents) FetchByID(ctx context.Context, scope, id string) (core.Record, error) {
	resp, err := d.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "getModuleByLocation",
		Args:    []element{stringArg("projectId", scope), stringArg("moduleLocation", id)},
	})
	if err != nil {
		return core.Record{}, err
	}
	return returnedRecord(resp, core.KindDocument), nil
}

func (d *Documents) FetchByURI(ctx context.Context, uri string) (core.Record, error) {
	resp, err := d.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "getModuleByUri",
		Args:    []element{stringArg("moduleUri", uri)},
	})
	if err != nil {
		return core.Record{}, err
	}
	return returnedRecord(resp, core.KindDocument), nil
}

func (d *Documents) Create(ctx context.Context, scope, typeName string, initial core.Fields) (string, error) {
	return "", fmt.Errorf("documents cannot be created over the api")
}

func (d *Documents) Update(ctx context.Context, uri string, patch core.Fields) error {
	return fmt.Errorf("documents are read-only over the api")
}

func (d *Documents) Delete(ctx context.Context, uri string) error {
	return fmt.Errorf("documents are read-only over the api")
}

// ItemURIs lists the URIs of every work item contained in the module,
// including items nested under headings.
func (d *Documents) ItemURIs(ctx context.Context, moduleURI string) ([]string, error) {
	resp, err := d.client.call(ctx, operation{
		Service: "Tracker",
		Name:    "getModuleWorkItemUris",
		Args: []element{
			stringArg("moduleUri", moduleURI),
			nilArg("parentWorkItemURI"),
			boolArg("deep", true),
		},
	})
	if err != nil {
		return nil, err
	}
	return stringItems(returnNode(resp)), nil
}
