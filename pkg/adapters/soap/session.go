package soap

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// logIn starts a fresh session and captures the token the server
// returns in the response header. Any stale token is discarded first
// so the login itself never echoes one.
func (c *Client) logIn(ctx context.Context) error {
	c.setSession("")
	resp, err := c.send(ctx, operation{
		Service: "Session",
		Name:    "logIn",
		Args: []element{
			stringArg("userName", c.config.User),
			stringArg("password", c.config.Password),
		},
	})
	if err != nil {
		return fmt.Errorf("log in as %s: %w", c.config.User, err)
	}
	if resp.SessionID == "" {
		return fmt.Errorf("log in as %s: response carries no session header", c.config.User)
	}
	c.setSession(resp.SessionID)
	if c.config.Logger != nil {
		c.config.Logger.Debug("logged in", "user", c.config.User)
	}
	return nil
}

func (c *Client) endSession(ctx context.Context) error {
	_, err := c.send(ctx, operation{Service: "Session", Name: "endSession"})
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if c.config.Logger != nil {
		c.config.Logger.Debug("session ended", "user", c.config.User)
	}
	return nil
}

// SessionValid asks the server whether the current session still has a
// logged-in subject.
func (c *Client) SessionValid(ctx context.Context) (bool, error) {
	resp, err := c.send(ctx, operation{Service: "Session", Name: "hasSubject"})
	if err != nil {
		return false, err
	}
	ret := returnNode(resp)
	if ret == nil {
		return false, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(ret.Text))
	if err != nil {
		return false, fmt.Errorf("hasSubject returned %q", ret.Text)
	}
	return v, nil
}
