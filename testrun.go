package polarion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/almforge/go-polarion/pkg/core"
)

// TestRun is a loaded test run: a set of test case executions minted
// from a template. The embedded records parse into TestRecord handles
// at load, with a by-testcase index where the first occurrence of a
// test case wins.
//
// The record list never travels with a save; records change through
// each TestRecord's execution call.
type TestRun struct {
	client  *Client
	project *Project
	sync    core.Syncer
	records []*TestRecord
	byCase  map[string]*TestRecord
}

func (c *Client) newTestRun(p *Project) *TestRun {
	r := &TestRun{client: c, project: p}
	scope := ""
	if p != nil {
		scope = p.ID()
	}
	r.sync = core.Syncer{
		Accessor: c.services.TestRuns,
		Kind:     core.KindTestRun,
		Scope:    scope,
		Skip:     []string{"records"},
		Logger:   c.logger,
	}
	return r
}

// buildRecords parses the embedded record list into handles and the
// by-testcase index.
func (r *TestRun) buildRecords() {
	r.records = nil
	r.byCase = make(map[string]*TestRecord)
	for i, entry := range listField(&r.sync, "records") {
		f, ok := entry.(core.Fields)
		if !ok {
			continue
		}
		rec := &TestRecord{run: r, index: i, fields: f.Clone()}
		r.records = append(r.records, rec)
		if id := rec.TestCaseID(); id != "" {
			if _, seen := r.byCase[id]; !seen {
				r.byCase[id] = rec
			}
		}
	}
}

// ID returns the test run id.
func (r *TestRun) ID() string { return r.sync.ID() }

// URI returns the subterra URI of the run.
func (r *TestRun) URI() string { return r.sync.URI() }

// Title returns the run title.
func (r *TestRun) Title() string { return stringField(&r.sync, "title") }

// Status returns the run status id.
func (r *TestRun) Status() string { return enumField(&r.sync, "status") }

// Type returns the run type id.
func (r *TestRun) Type() string { return enumField(&r.sync, "type") }

// IsTemplate reports whether this run is a template.
func (r *TestRun) IsTemplate() bool { return boolField(&r.sync, "isTemplate") }

// Created returns the creation time.
func (r *TestRun) Created() (time.Time, bool) { return timeField(&r.sync, "created") }

// Get reads a raw working field value.
func (r *TestRun) Get(name string) (any, bool) { return r.sync.Get(name) }

// Set records a local field edit. Nothing is sent until Save.
func (r *TestRun) Set(name string, value any) { r.sync.Set(name, value) }

// Fields returns the working field state, read-only for callers.
func (r *TestRun) Fields() core.Fields { return r.sync.Fields() }

// Dirty returns the names of locally edited fields. The record list is
// excluded.
func (r *TestRun) Dirty() []string { return r.sync.Dirty() }

// Revert discards local edits without a remote call.
func (r *TestRun) Revert() { r.sync.Revert() }

// Save pushes local edits and reloads the run. With nothing changed it
// costs no remote call.
func (r *TestRun) Save(ctx context.Context) error {
	dirty := len(r.sync.Dirty()) > 0
	if err := r.sync.Save(ctx); err != nil {
		return err
	}
	if dirty {
		r.buildRecords()
	}
	return nil
}

// Reload refetches the run, discarding local edits and rebuilding the
// record handles.
func (r *TestRun) Reload(ctx context.Context) error {
	if err := r.sync.Reload(ctx); err != nil {
		return err
	}
	r.buildRecords()
	return nil
}

func (r *TestRun) String() string {
	return fmt.Sprintf("%s (%s)", r.ID(), r.Title())
}

// Records returns the run's test records in run order.
func (r *TestRun) Records() []*TestRecord { return r.records }

// HasTestCase reports whether the run carries a record for the test
// case id.
func (r *TestRun) HasTestCase(id string) bool {
	_, ok := r.byCase[id]
	return ok
}

// TestCase returns the record for the test case id, nil when the run
// carries none. With duplicate records for one case, the first wins.
func (r *TestRun) TestCase(id string) *TestRecord {
	return r.byCase[id]
}

// AddTestCase appends a record for the work item and reloads the run.
// Templates refuse this server-side.
func (r *TestRun) AddTestCase(ctx context.Context, item *WorkItem) error {
	record := core.Fields{"testCaseURI": item.URI()}
	if err := r.client.services.TestRuns.AddRecord(ctx, r.URI(), record); err != nil {
		return &core.RemoteError{Op: "add test record", Identity: r.URI(), Err: err}
	}
	return r.Reload(ctx)
}

// HasAttachments reports whether the run carries attachments.
func (r *TestRun) HasAttachments() bool { return len(r.Attachments()) > 0 }

// Attachments lists the run's attachments.
func (r *TestRun) Attachments() []Attachment {
	return attachmentList(&r.sync)
}

// Attachment fetches the content of a run attachment. The service
// reports a repository URL; the content downloads from there.
func (r *TestRun) Attachment(ctx context.Context, fileName string) ([]byte, error) {
	info, err := r.client.services.TestRuns.RunAttachment(ctx, r.URI(), fileName)
	if err != nil {
		return nil, &core.RemoteError{Op: "fetch attachment " + fileName, Identity: r.URI(), Err: err}
	}
	data, err := r.client.services.Downloads.DownloadAttachment(ctx, info.URL)
	if err != nil {
		return nil, &core.RemoteError{Op: "download attachment " + fileName, Identity: r.URI(), Err: err}
	}
	return data, nil
}

// SaveAttachmentAsFile fetches a run attachment and writes it to path.
func (r *TestRun) SaveAttachmentAsFile(ctx context.Context, fileName, path string) error {
	data, err := r.Attachment(ctx, fileName)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// AddAttachment uploads a file as a new run attachment and reloads the
// run. The attachment takes the file's base name.
func (r *TestRun) AddAttachment(ctx context.Context, path, title string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := r.client.services.TestRuns.AddRunAttachment(ctx, r.URI(), filepath.Base(path), title, data); err != nil {
		return &core.RemoteError{Op: "add attachment", Identity: r.URI(), Err: err}
	}
	return r.Reload(ctx)
}

// UpdateAttachment replaces the run attachment named like the file and
// reloads the run.
func (r *TestRun) UpdateAttachment(ctx context.Context, path, title string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := r.client.services.TestRuns.UpdateRunAttachment(ctx, r.URI(), filepath.Base(path), title, data); err != nil {
		return &core.RemoteError{Op: "update attachment", Identity: r.URI(), Err: err}
	}
	return r.Reload(ctx)
}

// DeleteAttachment removes a run attachment and reloads the run.
func (r *TestRun) DeleteAttachment(ctx context.Context, fileName string) error {
	if err := r.client.services.TestRuns.DeleteRunAttachment(ctx, r.URI(), fileName); err != nil {
		return &core.RemoteError{Op: "delete attachment " + fileName, Identity: r.URI(), Err: err}
	}
	return r.Reload(ctx)
}
