package polarion

import (
	"fmt"

	"github.com/almforge/go-polarion/pkg/core"
)

// User is a directory user. Users are read-only; they arrive either
// from a direct lookup or embedded in another entity's fields
// (assignees, approvals, authors).
type User struct {
	client *Client
	sync   core.Syncer
}

// ID returns the user id.
func (u *User) ID() string { return u.sync.ID() }

// URI returns the subterra URI of the user.
func (u *User) URI() string { return u.sync.URI() }

// Name returns the display name.
func (u *User) Name() string { return stringField(&u.sync, "name") }

// Email returns the registered email address.
func (u *User) Email() string { return stringField(&u.sync, "email") }

// Field reads a raw field value.
func (u *User) Field(name string) (any, bool) { return u.sync.Get(name) }

// Same reports whether two users are the same directory entry.
func (u *User) Same(other *User) bool {
	return other != nil && u.ID() == other.ID()
}

func (u *User) String() string {
	return fmt.Sprintf("%s (%s)", u.Name(), u.ID())
}

// userFromFields builds a user from an embedded record's fields without
// a directory round trip.
func (c *Client) userFromFields(f core.Fields) (*User, error) {
	u := &User{client: c}
	u.sync = core.Syncer{Accessor: c.services.Users, Kind: core.KindUser, Logger: c.logger}
	if err := u.sync.Adopt(core.NewRecord(embeddedURI(f), f)); err != nil {
		return nil, err
	}
	return u, nil
}
