package soap

import (
	"context"
	"fmt"
	"strings"

	"github.com/almforge/go-polarion/pkg/core"
)

// Projects accesses project and user directory records. Both are
// read-only on the wire; the mutating accessor operations report that.
type Projects struct {
	client *Client
}

// Projects returns the directory accessor.
func (c *Client) Projects() *Projects { return &Projects{client: c} }

var _ core.ProjectService = (*Projects)(nil)

func (p *Projects) FetchByID(ctx context.Context, scope, id string) (core.Record, error) {
	resp, err := p.client.call(ctx, operation{
		Service: "Project",
		Name:    "getProject",
		Args:    []element{stringArg("projectId", id)},
	})
	if err != nil {
		return core.Record{}, err
	}
	return returnedRecord(resp, core.KindProject), nil
}

// FetchByURI reloads a project. The service has no lookup by URI, so
// the id is recovered from the URI's trailing token.
func (p *Projects) FetchByURI(ctx context.Context, uri string) (core.Record, error) {
	id, err := trailingID(uri)
	if err != nil {
		return core.Record{}, err
	}
	return p.FetchByID(ctx, "", id)
}

func (p *Projects) Create(ctx context.Context, scope, typeName string, initial core.Fields) (string, error) {
	return "", fmt.Errorf("projects cannot be created over the api")
}

func (p *Projects) Update(ctx context.Context, uri string, patch core.Fields) error {
	return fmt.Errorf("projects are read-only over the api")
}

func (p *Projects) Delete(ctx context.Context, uri string) error {
	return fmt.Errorf("projects are read-only over the api")
}

// Users lists the users of one project.
func (p *Projects) Users(ctx context.Context, projectID string) ([]core.Record, error) {
	resp, err := p.client.call(ctx, operation{
		Service: "Project",
		Name:    "getProjectUsers",
		Args:    []element{stringArg("projectId", projectID)},
	})
	if err != nil {
		return nil, err
	}
	return returnedRecords(resp, core.KindUser), nil
}

// UserAccessor adapts the user directory to the record accessor shape
// so user entities ride the same sync layer.
type UserAccessor struct {
	client *Client
}

// Users returns the user directory accessor.
func (c *Client) Users() *UserAccessor { return &UserAccessor{client: c} }

var _ core.UserService = (*UserAccessor)(nil)

func (u *UserAccessor) FetchByID(ctx context.Context, scope, id string) (core.Record, error) {
	resp, err := u.client.call(ctx, operation{
		Service: "Project",
		Name:    "getUser",
		Args:    []element{stringArg("userId", id)},
	})
	if err != nil {
		return core.Record{}, err
	}
	return returnedRecord(resp, core.KindUser), nil
}

func (u *UserAccessor) FetchByURI(ctx context.Context, uri string) (core.Record, error) {
	resp, err := u.client.call(ctx, operation{
		Service: "Project",
		Name:    "getUserByUri",
		Args:    []element{stringArg("uri", uri)},
	})
	if err != nil {
		return core.Record{}, err
	}
	return returnedRecord(resp, core.KindUser), nil
}

func (u *UserAccessor) Create(ctx context.Context, scope, typeName string, initial core.Fields) (string, error) {
	return "", fmt.Errorf("users cannot be created over the api")
}

func (u *UserAccessor) Update(ctx context.Context, uri string, patch core.Fields) error {
	return fmt.Errorf("users are read-only over the api")
}

func (u *UserAccessor) Delete(ctx context.Context, uri string) error {
	return fmt.Errorf("users are read-only over the api")
}

// trailingID recovers the entity id after the type token of a
// subterra URI.
func trailingID(uri string) (string, error) {
	idx := strings.LastIndexByte(uri, '}')
	if idx < 0 || idx+1 >= len(uri) {
		return "", fmt.Errorf("no id in uri: %s", uri)
	}
	return uri[idx+1:], nil
}
