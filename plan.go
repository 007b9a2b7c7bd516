package polarion

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/almforge/go-polarion/pkg/core"
)

// Plan is a loaded iteration or release plan. Plans own a list of work
// item records and an allow-list of the work item types they accept.
type Plan struct {
	client  *Client
	project *Project
	sync    core.Syncer
}

func (c *Client) newPlan(p *Project) *Plan {
	pl := &Plan{client: c, project: p}
	scope := ""
	if p != nil {
		scope = p.ID()
	}
	pl.sync = core.Syncer{Accessor: c.services.Plans, Kind: core.KindPlan, Scope: scope, Logger: c.logger}
	return pl
}

// ID returns the plan id.
func (p *Plan) ID() string { return p.sync.ID() }

// URI returns the subterra URI of the plan.
func (p *Plan) URI() string { return p.sync.URI() }

// Name returns the plan name.
func (p *Plan) Name() string { return stringField(&p.sync, "name") }

// IsTemplate reports whether this plan is a template.
func (p *Plan) IsTemplate() bool { return boolField(&p.sync, "isTemplate") }

// DueDate returns the due date when one is set.
func (p *Plan) DueDate() (time.Time, bool) { return timeField(&p.sync, "dueDate") }

// StartDate returns the planned start date when one is set.
func (p *Plan) StartDate() (time.Time, bool) { return timeField(&p.sync, "startDate") }

// StartedOn returns when work on the plan actually started.
func (p *Plan) StartedOn() (time.Time, bool) { return timeField(&p.sync, "startedOn") }

// FinishedOn returns when the plan was finished.
func (p *Plan) FinishedOn() (time.Time, bool) { return timeField(&p.sync, "finishedOn") }

// Get reads a raw working field value.
func (p *Plan) Get(name string) (any, bool) { return p.sync.Get(name) }

// Set records a local field edit. Nothing is sent until Save.
func (p *Plan) Set(name string, value any) { p.sync.Set(name, value) }

// Fields returns the working field state, read-only for callers.
func (p *Plan) Fields() core.Fields { return p.sync.Fields() }

// Dirty returns the names of locally edited fields.
func (p *Plan) Dirty() []string { return p.sync.Dirty() }

// Revert discards local edits without a remote call.
func (p *Plan) Revert() { p.sync.Revert() }

// Save pushes local edits and reloads the plan. With nothing changed it
// costs no remote call.
func (p *Plan) Save(ctx context.Context) error { return p.sync.Save(ctx) }

// Reload refetches the plan, discarding local edits.
func (p *Plan) Reload(ctx context.Context) error { return p.sync.Reload(ctx) }

// Delete removes the plan on the server.
func (p *Plan) Delete(ctx context.Context) error { return p.sync.Delete(ctx) }

func (p *Plan) String() string {
	return fmt.Sprintf("%s (%s)", p.Name(), p.ID())
}

// SetDueDate sets the due date and saves the plan.
func (p *Plan) SetDueDate(ctx context.Context, date time.Time) error {
	p.sync.Set("dueDate", date)
	return p.Save(ctx)
}

// SetStartDate sets the planned start date and saves the plan.
func (p *Plan) SetStartDate(ctx context.Context, date time.Time) error {
	p.sync.Set("startDate", date)
	return p.Save(ctx)
}

// SetStartedOnDate sets the actual start date and saves the plan.
func (p *Plan) SetStartedOnDate(ctx context.Context, date time.Time) error {
	p.sync.Set("startedOn", date)
	return p.Save(ctx)
}

// SetFinishedOnDate sets the finish date and saves the plan.
func (p *Plan) SetFinishedOnDate(ctx context.Context, date time.Time) error {
	p.sync.Set("finishedOn", date)
	return p.Save(ctx)
}

// AllowedTypes returns the work item type ids the plan accepts.
func (p *Plan) AllowedTypes() []string {
	var types []string
	for _, entry := range listField(&p.sync, "allowedTypes") {
		if e, ok := entry.(core.Enum); ok {
			types = append(types, e.ID)
		}
	}
	return types
}

// AddAllowedType adds a work item type to the allow-list. Types already
// allowed are left alone without a remote call.
func (p *Plan) AddAllowedType(ctx context.Context, typeName string) error {
	if slices.Contains(p.AllowedTypes(), typeName) {
		return nil
	}
	if err := p.client.services.Plans.AddAllowedType(ctx, p.URI(), typeName); err != nil {
		return &core.RemoteError{Op: "add allowed type " + typeName, Identity: p.URI(), Err: err}
	}
	return p.Reload(ctx)
}

// RemoveAllowedType removes a work item type from the allow-list. Types
// not on the list are left alone without a remote call.
func (p *Plan) RemoveAllowedType(ctx context.Context, typeName string) error {
	if !slices.Contains(p.AllowedTypes(), typeName) {
		return nil
	}
	if err := p.client.services.Plans.RemoveAllowedType(ctx, p.URI(), typeName); err != nil {
		return &core.RemoteError{Op: "remove allowed type " + typeName, Identity: p.URI(), Err: err}
	}
	return p.Reload(ctx)
}

// AddItem adds a work item to the plan and reloads both sides. The
// allow-list is checked here: the planning service itself accepts any
// type, so the gate has to run before the call.
func (p *Plan) AddItem(ctx context.Context, item *WorkItem) error {
	if !slices.Contains(p.AllowedTypes(), item.Type()) {
		return fmt.Errorf("work item type %q is not allowed in plan %s", item.Type(), p.ID())
	}
	if err := p.client.services.Plans.AddItems(ctx, p.URI(), []string{item.URI()}); err != nil {
		return &core.RemoteError{Op: "add plan item", Identity: p.URI(), Err: err}
	}
	if err := item.Reload(ctx); err != nil {
		return err
	}
	return p.Reload(ctx)
}

// RemoveItem removes a work item from the plan and reloads both sides.
func (p *Plan) RemoveItem(ctx context.Context, item *WorkItem) error {
	if err := p.client.services.Plans.RemoveItems(ctx, p.URI(), []string{item.URI()}); err != nil {
		return &core.RemoteError{Op: "remove plan item", Identity: p.URI(), Err: err}
	}
	if err := item.Reload(ctx); err != nil {
		return err
	}
	return p.Reload(ctx)
}

// WorkItems returns the work items planned here, built from the
// records embedded in the plan without refetching each item.
func (p *Plan) WorkItems(ctx context.Context) ([]*WorkItem, error) {
	var items []*WorkItem
	for _, entry := range listField(&p.sync, "records") {
		f, ok := entry.(core.Fields)
		if !ok {
			continue
		}
		itemFields, ok := f["item"].(core.Fields)
		if !ok {
			continue
		}
		w, err := p.client.workItemFromRecord(ctx, p.project, core.NewRecord(embeddedURI(itemFields), itemFields))
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, nil
}

// Parent loads the parent plan, nil for top-level plans.
func (p *Plan) Parent(ctx context.Context) (*Plan, error) {
	parent := structField(&p.sync, "parent")
	if parent == nil {
		return nil, nil
	}
	pl := p.client.newPlan(p.project)
	if err := pl.sync.LoadByURI(ctx, embeddedURI(parent)); err != nil {
		return nil, err
	}
	return pl, nil
}

// Children returns the plans nested under this one.
func (p *Plan) Children(ctx context.Context) ([]*Plan, error) {
	records, err := p.client.services.Plans.Search(ctx, "parent.id:"+p.ID(), "", -1)
	if err != nil {
		return nil, &core.RemoteError{Op: "search children", Identity: p.ID(), Err: err}
	}
	var children []*Plan
	for _, rec := range records {
		pl := p.client.newPlan(p.project)
		if err := pl.sync.Adopt(rec); err != nil {
			return nil, err
		}
		if pl.ID() == p.ID() {
			continue
		}
		children = append(children, pl)
	}
	return children, nil
}
