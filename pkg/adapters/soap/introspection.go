package soap

import (
	"sort"

	"github.com/aretw0/introspection"
)

// ClientState exposes connection internals for observability.
type ClientState struct {
	BaseURL  string   `json:"base_url"`
	User     string   `json:"user"`
	Services []string `json:"services"`
	LoggedIn bool     `json:"logged_in"`
	Calls    int64    `json:"calls"`
	Replays  int64    `json:"session_replays"`
}

// State implements introspection.Introspectable.
func (c *Client) State() any {
	services := make([]string, 0, len(c.services))
	for name := range c.services {
		services = append(services, name)
	}
	sort.Strings(services)

	return ClientState{
		BaseURL:  c.config.BaseURL,
		User:     c.config.User,
		Services: services,
		LoggedIn: c.session() != "",
		Calls:    c.calls.Load(),
		Replays:  c.replays.Load(),
	}
}

// ComponentType implements introspection.Component.
func (c *Client) ComponentType() string {
	return "remote"
}

var _ introspection.Introspectable = (*Client)(nil)
var _ introspection.Component = (*Client)(nil)
