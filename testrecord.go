package polarion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/almforge/go-polarion/pkg/core"
)

// Result values a test record can carry.
type Result string

const (
	ResultNone    Result = ""
	ResultPassed  Result = "passed"
	ResultFailed  Result = "failed"
	ResultBlocked Result = "blocked"
)

// TestRecord is one test case execution inside a run. Records do not
// travel with the run's save; SetResult and SetStepResult write through
// the dedicated execution call, then the run reloads and this handle
// refreshes from the reloaded record.
//
// The execution call matches records by test case, so with duplicate
// records for one case the first occurrence receives the write.
type TestRecord struct {
	run    *TestRun
	index  int
	fields core.Fields
}

// Index returns the record's position in the run.
func (r *TestRecord) Index() int { return r.index }

// TestCaseURI returns the subterra URI of the executed test case.
func (r *TestRecord) TestCaseURI() string {
	uri, _ := r.fields["testCaseURI"].(string)
	return uri
}

// TestCaseID returns the id of the executed test case.
func (r *TestRecord) TestCaseID() string {
	uri := r.TestCaseURI()
	if uri == "" {
		return ""
	}
	return trailingID(uri)
}

// Result returns the recorded outcome, ResultNone while unexecuted.
func (r *TestRecord) Result() Result {
	if e, ok := r.fields["result"].(core.Enum); ok {
		return Result(e.ID)
	}
	return ResultNone
}

// Comment returns the execution comment.
func (r *TestRecord) Comment() string {
	if t, ok := r.fields["comment"].(core.Text); ok {
		return t.Content
	}
	return ""
}

// Executed returns when the record was executed.
func (r *TestRecord) Executed() (time.Time, bool) {
	t, ok := r.fields["executed"].(time.Time)
	return t, ok
}

// Duration returns the recorded execution time.
func (r *TestRecord) Duration() float64 {
	d, _ := r.fields["duration"].(float64)
	return d
}

// Field reads a raw record field value.
func (r *TestRecord) Field(name string) (any, bool) {
	v, ok := r.fields[name]
	return v, ok
}

func (r *TestRecord) String() string {
	return fmt.Sprintf("%s: %s", r.TestCaseID(), r.Result())
}

// SetResult records an execution outcome with an optional comment,
// stamps the execution time and writes the record through.
func (r *TestRecord) SetResult(ctx context.Context, result Result, comment string) error {
	r.fields["result"] = core.Enum{ID: string(result)}
	if comment != "" {
		r.fields["comment"] = core.HTML(comment)
	}
	r.fields["executed"] = time.Now()
	return r.push(ctx)
}

// SetStepResult records the outcome of one step and writes the record
// through. The step result list extends as needed to reach the index.
func (r *TestRecord) SetStepResult(ctx context.Context, stepIndex int, result Result, comment string) error {
	if stepIndex < 0 {
		return fmt.Errorf("step index %d out of range", stepIndex)
	}
	results, _ := r.fields["testStepResults"].([]any)
	for len(results) <= stepIndex {
		results = append(results, core.Fields{})
	}
	step, ok := results[stepIndex].(core.Fields)
	if !ok {
		step = core.Fields{}
	}
	step["result"] = core.Enum{ID: string(result)}
	if comment != "" {
		step["comment"] = core.HTML(comment)
	}
	results[stepIndex] = step
	r.fields["testStepResults"] = results
	return r.push(ctx)
}

// push sends the record through the execution call, reloads the run and
// refreshes this handle.
func (r *TestRecord) push(ctx context.Context) error {
	if err := r.run.client.services.TestRuns.ExecuteTest(ctx, r.run.URI(), r.fields.Clone()); err != nil {
		return &core.RemoteError{Op: "execute test " + r.TestCaseID(), Identity: r.run.URI(), Err: err}
	}
	if err := r.run.Reload(ctx); err != nil {
		return err
	}
	r.refresh()
	return nil
}

// refresh re-reads this record's fields from the reloaded run.
func (r *TestRecord) refresh() {
	entries := listField(&r.run.sync, "records")
	if r.index < len(entries) {
		if f, ok := entries[r.index].(core.Fields); ok {
			r.fields = f.Clone()
		}
	}
}

// Attachment fetches the content of a record attachment.
func (r *TestRecord) Attachment(ctx context.Context, fileName string) ([]byte, error) {
	info, err := r.run.client.services.TestRuns.RecordAttachment(ctx, r.run.URI(), r.index, fileName)
	if err != nil {
		return nil, &core.RemoteError{Op: "fetch record attachment " + fileName, Identity: r.run.URI(), Err: err}
	}
	data, err := r.run.client.services.Downloads.DownloadAttachment(ctx, info.URL)
	if err != nil {
		return nil, &core.RemoteError{Op: "download record attachment " + fileName, Identity: r.run.URI(), Err: err}
	}
	return data, nil
}

// SaveAttachmentAsFile fetches a record attachment and writes it to
// path.
func (r *TestRecord) SaveAttachmentAsFile(ctx context.Context, fileName, path string) error {
	data, err := r.Attachment(ctx, fileName)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// AddAttachment uploads a file as a record attachment and reloads the
// run.
func (r *TestRecord) AddAttachment(ctx context.Context, path, title string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := r.run.client.services.TestRuns.AddRecordAttachment(ctx, r.run.URI(), r.index, filepath.Base(path), title, data); err != nil {
		return &core.RemoteError{Op: "add record attachment", Identity: r.run.URI(), Err: err}
	}
	return r.reloadRun(ctx)
}

// DeleteAttachment removes a record attachment and reloads the run.
func (r *TestRecord) DeleteAttachment(ctx context.Context, fileName string) error {
	if err := r.run.client.services.TestRuns.DeleteRecordAttachment(ctx, r.run.URI(), r.index, fileName); err != nil {
		return &core.RemoteError{Op: "delete record attachment " + fileName, Identity: r.run.URI(), Err: err}
	}
	return r.reloadRun(ctx)
}

// StepAttachment fetches the content of an attachment on one step.
func (r *TestRecord) StepAttachment(ctx context.Context, stepIndex int, fileName string) ([]byte, error) {
	info, err := r.run.client.services.TestRuns.StepAttachment(ctx, r.run.URI(), r.index, stepIndex, fileName)
	if err != nil {
		return nil, &core.RemoteError{Op: "fetch step attachment " + fileName, Identity: r.run.URI(), Err: err}
	}
	data, err := r.run.client.services.Downloads.DownloadAttachment(ctx, info.URL)
	if err != nil {
		return nil, &core.RemoteError{Op: "download step attachment " + fileName, Identity: r.run.URI(), Err: err}
	}
	return data, nil
}

// AddStepAttachment uploads a file as an attachment on one step and
// reloads the run.
func (r *TestRecord) AddStepAttachment(ctx context.Context, stepIndex int, path, title string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := r.run.client.services.TestRuns.AddStepAttachment(ctx, r.run.URI(), r.index, stepIndex, filepath.Base(path), title, data); err != nil {
		return &core.RemoteError{Op: "add step attachment", Identity: r.run.URI(), Err: err}
	}
	return r.reloadRun(ctx)
}

// DeleteStepAttachment removes an attachment from one step and reloads
// the run.
func (r *TestRecord) DeleteStepAttachment(ctx context.Context, stepIndex int, fileName string) error {
	if err := r.run.client.services.TestRuns.DeleteStepAttachment(ctx, r.run.URI(), r.index, stepIndex, fileName); err != nil {
		return &core.RemoteError{Op: "delete step attachment " + fileName, Identity: r.run.URI(), Err: err}
	}
	return r.reloadRun(ctx)
}

func (r *TestRecord) reloadRun(ctx context.Context) error {
	if err := r.run.Reload(ctx); err != nil {
		return err
	}
	r.refresh()
	return nil
}
