package polarion

import (
	"context"
	"fmt"

	"github.com/almforge/go-polarion/pkg/core"
)

// Project is a loaded Polarion project. It is the anchor for everything
// scoped to a project: work items, plans, test runs and documents are
// loaded and created through it.
//
// Projects are read-only; the server manages them through the
// administration UI, not the API.
type Project struct {
	client *Client
	sync   core.Syncer
}

// ID returns the project id.
func (p *Project) ID() string { return p.sync.ID() }

// URI returns the subterra URI of the project.
func (p *Project) URI() string { return p.sync.URI() }

// Name returns the display name of the project.
func (p *Project) Name() string { return stringField(&p.sync, "name") }

// Field reads a raw field value.
func (p *Project) Field(name string) (any, bool) { return p.sync.Get(name) }

// Fields returns the working field state, read-only for callers.
func (p *Project) Fields() core.Fields { return p.sync.Fields() }

// Reload refetches the project.
func (p *Project) Reload(ctx context.Context) error { return p.sync.Reload(ctx) }

func (p *Project) String() string {
	return fmt.Sprintf("%s (%s)", p.Name(), p.ID())
}

// WorkItem loads the work item with the given id.
func (p *Project) WorkItem(ctx context.Context, id string) (*WorkItem, error) {
	w := p.client.newWorkItem(p)
	if err := w.sync.LoadByID(ctx, id); err != nil {
		return nil, err
	}
	w.loadTestSteps(ctx)
	return w, nil
}

// CreateWorkItem creates a work item of the given type. Server-required
// fields must all be present in initial or the create is rejected
// before any remote call; so is any field name the work item schema
// does not declare.
func (p *Project) CreateWorkItem(ctx context.Context, typeName string, initial core.Fields) (*WorkItem, error) {
	w := p.client.newWorkItem(p)
	if err := w.sync.Create(ctx, typeName, initial); err != nil {
		return nil, err
	}
	w.loadTestSteps(ctx)
	return w, nil
}

// SearchWorkItems runs a Lucene query and returns the matching records.
// The query is passed through as written; add "project.id:X" yourself
// to scope it. An empty sort means the server default (creation time);
// a negative limit means no limit.
func (p *Project) SearchWorkItems(ctx context.Context, query, sort string, limit int) ([]core.Record, error) {
	return p.client.services.WorkItems.Search(ctx, query, sort, limit)
}

// SearchWorkItemsFull runs a Lucene query and returns loaded work item
// entities built from the result records.
func (p *Project) SearchWorkItemsFull(ctx context.Context, query, sort string, limit int) ([]*WorkItem, error) {
	records, err := p.SearchWorkItems(ctx, query, sort, limit)
	if err != nil {
		return nil, err
	}
	items := make([]*WorkItem, 0, len(records))
	for _, rec := range records {
		w, err := p.client.workItemFromRecord(ctx, p, rec)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, nil
}

// Plan loads the plan with the given id.
func (p *Project) Plan(ctx context.Context, id string) (*Plan, error) {
	pl := p.client.newPlan(p)
	if err := pl.sync.LoadByID(ctx, id); err != nil {
		return nil, err
	}
	return pl, nil
}

// CreatePlan creates a plan from a template. An empty templateID uses
// the stock "iteration" template; a nil parent creates a top-level
// plan.
func (p *Project) CreatePlan(ctx context.Context, name, id, templateID string, parent *Plan) (*Plan, error) {
	if templateID == "" {
		templateID = "iteration"
	}
	parentID := ""
	if parent != nil {
		parentID = parent.ID()
	}
	uri, err := p.client.services.Plans.CreatePlan(ctx, p.ID(), name, id, parentID, templateID)
	if err != nil {
		return nil, &core.RemoteError{Op: "create plan", Identity: p.ID() + "/" + id, Err: err}
	}
	pl := p.client.newPlan(p)
	if err := pl.sync.LoadByURI(ctx, uri); err != nil {
		return nil, err
	}
	return pl, nil
}

// SearchPlans runs a Lucene query over plans and returns the matching
// records.
func (p *Project) SearchPlans(ctx context.Context, query, sort string, limit int) ([]core.Record, error) {
	return p.client.services.Plans.Search(ctx, query, sort, limit)
}

// SearchPlansFull runs a Lucene query over plans and returns loaded
// plan entities built from the result records.
func (p *Project) SearchPlansFull(ctx context.Context, query, sort string, limit int) ([]*Plan, error) {
	records, err := p.SearchPlans(ctx, query, sort, limit)
	if err != nil {
		return nil, err
	}
	plans := make([]*Plan, 0, len(records))
	for _, rec := range records {
		pl := p.client.newPlan(p)
		if err := pl.sync.Adopt(rec); err != nil {
			return nil, err
		}
		plans = append(plans, pl)
	}
	return plans, nil
}

// TestRun loads the test run with the given id.
func (p *Project) TestRun(ctx context.Context, id string) (*TestRun, error) {
	r := p.client.newTestRun(p)
	if err := r.sync.LoadByID(ctx, id); err != nil {
		return nil, err
	}
	r.buildRecords()
	return r, nil
}

// CreateTestRun creates a test run from a template. An empty title
// keeps the template's naming.
func (p *Project) CreateTestRun(ctx context.Context, id, title, templateID string) (*TestRun, error) {
	uri, err := p.client.services.TestRuns.CreateTestRun(ctx, p.ID(), id, title, templateID)
	if err != nil {
		return nil, &core.RemoteError{Op: "create test run", Identity: p.ID() + "/" + id, Err: err}
	}
	r := p.client.newTestRun(p)
	if err := r.sync.LoadByURI(ctx, uri); err != nil {
		return nil, err
	}
	r.buildRecords()
	return r, nil
}

// SearchTestRuns runs a Lucene query over test runs and returns the
// matching records.
func (p *Project) SearchTestRuns(ctx context.Context, query, sort string, limit int) ([]core.Record, error) {
	return p.client.services.TestRuns.Search(ctx, query, sort, limit)
}

// Document loads the LiveDoc at the given space-qualified location,
// e.g. "Testing/Test Specification".
func (p *Project) Document(ctx context.Context, location string) (*Document, error) {
	d := p.client.newDocument(p)
	if err := d.sync.LoadByID(ctx, location); err != nil {
		return nil, err
	}
	return d, nil
}

// Users lists the users of the project.
func (p *Project) Users(ctx context.Context) ([]*User, error) {
	records, err := p.client.services.Projects.Users(ctx, p.ID())
	if err != nil {
		return nil, &core.RemoteError{Op: "list users", Identity: p.ID(), Err: err}
	}
	users := make([]*User, 0, len(records))
	for _, rec := range records {
		u := &User{client: p.client}
		u.sync = core.Syncer{Accessor: p.client.services.Users, Kind: core.KindUser, Logger: p.client.logger}
		if err := u.sync.Adopt(rec); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// FindUser looks the user up in the project's user list. A missing user
// is nil without an error.
func (p *Project) FindUser(ctx context.Context, id string) (*User, error) {
	users, err := p.Users(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID() == id {
			return u, nil
		}
	}
	return nil, nil
}

// Enum returns the option ids of a project-scoped enumeration, e.g.
// "task-status".
func (p *Project) Enum(ctx context.Context, enumID string) ([]string, error) {
	options, err := p.client.services.WorkItems.EnumOptions(ctx, p.URI(), enumID)
	if err != nil {
		return nil, &core.RemoteError{Op: "query enum " + enumID, Identity: p.ID(), Err: err}
	}
	return options, nil
}

// ResolveReference implements core.ReferenceResolver: a work item id
// becomes its "ID: title" display string. Attach a project to a
// richtext.Converter to expand long references.
func (p *Project) ResolveReference(ctx context.Context, itemID string) (string, error) {
	item, err := p.WorkItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	return item.String(), nil
}

var _ core.ReferenceResolver = (*Project)(nil)
