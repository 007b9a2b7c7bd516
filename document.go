package polarion

import (
	"context"
	"fmt"
	"time"

	"github.com/almforge/go-polarion/pkg/core"
)

// Document is a LiveDoc module. Documents are read-only handles: they
// exist so work items can be located in them and moved into them.
type Document struct {
	client  *Client
	project *Project
	sync    core.Syncer
}

func (c *Client) newDocument(p *Project) *Document {
	d := &Document{client: c, project: p}
	scope := ""
	if p != nil {
		scope = p.ID()
	}
	d.sync = core.Syncer{
		Accessor: c.services.Documents,
		Kind:     core.KindDocument,
		Scope:    scope,
		Logger:   c.logger,
	}
	return d
}

// ID returns the module id.
func (d *Document) ID() string { return d.sync.ID() }

// URI returns the subterra URI of the module.
func (d *Document) URI() string { return d.sync.URI() }

// Title returns the document title.
func (d *Document) Title() string { return stringField(&d.sync, "title") }

// Space returns the folder the module lives in.
func (d *Document) Space() string { return stringField(&d.sync, "moduleFolder") }

// Name returns the module name within its space.
func (d *Document) Name() string { return stringField(&d.sync, "moduleName") }

// Location returns the space-qualified location, e.g.
// "Testing/Test Specification".
func (d *Document) Location() string { return stringField(&d.sync, "location") }

// Type returns the document type id.
func (d *Document) Type() string { return enumField(&d.sync, "type") }

// Status returns the document status id.
func (d *Document) Status() string { return enumField(&d.sync, "status") }

// Created returns the creation time.
func (d *Document) Created() (time.Time, bool) { return timeField(&d.sync, "created") }

// Updated returns the last update time.
func (d *Document) Updated() (time.Time, bool) { return timeField(&d.sync, "updated") }

// Field reads a raw field value.
func (d *Document) Field(name string) (any, bool) { return d.sync.Get(name) }

// Reload refetches the document.
func (d *Document) Reload(ctx context.Context) error { return d.sync.Reload(ctx) }

func (d *Document) String() string {
	return fmt.Sprintf("%s (%s)", d.Title(), d.ID())
}

// WorkItemURIs lists the URIs of every work item in the document,
// including items nested under headings.
func (d *Document) WorkItemURIs(ctx context.Context) ([]string, error) {
	uris, err := d.client.services.Documents.ItemURIs(ctx, d.URI())
	if err != nil {
		return nil, &core.RemoteError{Op: "list document items", Identity: d.URI(), Err: err}
	}
	return uris, nil
}

// WorkItems loads every work item in the document. Each item costs a
// fetch; use WorkItemURIs when the URIs are enough.
func (d *Document) WorkItems(ctx context.Context) ([]*WorkItem, error) {
	uris, err := d.WorkItemURIs(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]*WorkItem, 0, len(uris))
	for _, uri := range uris {
		w := d.client.newWorkItem(d.project)
		if err := w.sync.LoadByURI(ctx, uri); err != nil {
			return nil, err
		}
		w.loadTestSteps(ctx)
		items = append(items, w)
	}
	return items, nil
}
