package polarion

import (
	"context"

	"github.com/almforge/go-polarion/pkg/core"
)

// FromURI loads the entity a subterra URI addresses and returns it as
// one of *WorkItem, *Plan, *User, *TestRun, *Document or *Project. The
// kind set is closed: anything else fails with core.UnknownKindError
// before a remote call is made.
//
// project scopes the returned entity where the kind supports it and may
// be nil; enum lookups and reference resolution then stay unavailable
// on the result.
func (c *Client) FromURI(ctx context.Context, project *Project, uri string) (any, error) {
	kind, err := core.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	switch kind {
	case core.KindWorkItem:
		w := c.newWorkItem(project)
		if err := w.sync.LoadByURI(ctx, uri); err != nil {
			return nil, err
		}
		w.loadTestSteps(ctx)
		return w, nil
	case core.KindPlan:
		p := c.newPlan(project)
		if err := p.sync.LoadByURI(ctx, uri); err != nil {
			return nil, err
		}
		return p, nil
	case core.KindUser:
		u := &User{client: c}
		u.sync = core.Syncer{Accessor: c.services.Users, Kind: core.KindUser, Logger: c.logger}
		if err := u.sync.LoadByURI(ctx, uri); err != nil {
			return nil, err
		}
		return u, nil
	case core.KindTestRun:
		r := c.newTestRun(project)
		if err := r.sync.LoadByURI(ctx, uri); err != nil {
			return nil, err
		}
		r.buildRecords()
		return r, nil
	case core.KindDocument:
		d := c.newDocument(project)
		if err := d.sync.LoadByURI(ctx, uri); err != nil {
			return nil, err
		}
		return d, nil
	case core.KindProject:
		p := &Project{client: c}
		p.sync = core.Syncer{Accessor: c.services.Projects, Kind: core.KindProject, Logger: c.logger}
		if err := p.sync.LoadByURI(ctx, uri); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, &core.UnknownKindError{Token: string(kind), URI: uri}
}
