package polarion

import (
	"context"
	"log/slog"

	"github.com/aretw0/introspection"

	"github.com/almforge/go-polarion/pkg/adapters/soap"
	"github.com/almforge/go-polarion/pkg/core"
)

// Client is the entry point to one Polarion server. It hands out
// entities (projects, work items, plans, test runs) that stay in sync
// with the server through the load/diff/save cycle.
//
// A Client is safe for concurrent use. The entities it returns are not:
// each entity instance belongs to one goroutine.
type Client struct {
	services Services
	conn     *soap.Client
	logger   *slog.Logger
}

// NewClient connects to the server at baseURL and logs in. The returned
// client owns the session; Close ends it.
//
// With WithServices the connection parameters are ignored and no
// network traffic happens.
func NewClient(ctx context.Context, baseURL, user, password string, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	client := &Client{logger: o.logger}

	if o.services != nil {
		client.services = *o.services
		return client, nil
	}

	conn := soap.NewClient(soap.Config{
		BaseURL:        baseURL,
		User:           user,
		Password:       password,
		StaticServices: o.staticServices,
		SkipVerify:     o.skipVerify,
		RepoURL:        o.repoURL,
		RepoUser:       o.repoUser,
		RepoPassword:   o.repoPassword,
		Logger:         o.logger,
		HTTPClient:     o.httpClient,
	})
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	client.conn = conn
	client.services = Services{
		WorkItems: conn.WorkItems(),
		Plans:     conn.Plans(),
		TestRuns:  conn.TestRuns(),
		Projects:  conn.Projects(),
		Users:     conn.Users(),
		Documents: conn.Documents(),
		Downloads: conn,
	}
	return client, nil
}

// Close ends the login session. Clients built on injected services hold
// no session and close without traffic.
func (c *Client) Close(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close(ctx)
}

// Project loads the project with the given id.
func (c *Client) Project(ctx context.Context, id string) (*Project, error) {
	p := &Project{client: c}
	p.sync = core.Syncer{Accessor: c.services.Projects, Kind: core.KindProject, Logger: c.logger}
	if err := p.sync.LoadByID(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

// User loads the user with the given id from the directory.
func (c *Client) User(ctx context.Context, id string) (*User, error) {
	u := &User{client: c}
	u.sync = core.Syncer{Accessor: c.services.Users, Kind: core.KindUser, Logger: c.logger}
	if err := u.sync.LoadByID(ctx, id); err != nil {
		return nil, err
	}
	return u, nil
}

// State implements introspection.Introspectable. Connected clients
// report the transport state; clients on injected services report the
// backend's own state when it is introspectable.
func (c *Client) State() any {
	if c.conn != nil {
		return c.conn.State()
	}
	if i, ok := c.services.WorkItems.(introspection.Introspectable); ok {
		return i.State()
	}
	return nil
}

// ComponentType implements introspection.Component.
func (c *Client) ComponentType() string {
	return "client"
}

var _ introspection.Introspectable = (*Client)(nil)
var _ introspection.Component = (*Client)(nil)
