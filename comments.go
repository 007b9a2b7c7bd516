package polarion

import (
	"context"
	"time"

	"github.com/almforge/go-polarion/pkg/core"
)

// Comment is one entry in an entity's comment thread. Replies carry no
// title and point at their parent comment.
type Comment struct {
	URI       string
	ID        string
	Title     string
	Body      core.Text
	AuthorID  string
	Created   time.Time
	ParentURI string
}

// commentEntries parses the embedded comment list of a loaded entity.
// Work items and test runs share the shape.
func commentEntries(s *core.Syncer) []Comment {
	var comments []Comment
	for _, entry := range listField(s, "comments") {
		f, ok := entry.(core.Fields)
		if !ok {
			continue
		}
		c := Comment{URI: embeddedURI(f)}
		c.ID, _ = f["id"].(string)
		c.Title, _ = f["title"].(string)
		if t, ok := f["text"].(core.Text); ok {
			c.Body = t
		}
		if author, ok := f["author"].(core.Fields); ok {
			c.AuthorID, _ = author["id"].(string)
		}
		if created, ok := f["created"].(time.Time); ok {
			c.Created = created
		}
		if ref, ok := f["parentCommentURI"].(core.Ref); ok {
			c.ParentURI = ref.URI
		}
		comments = append(comments, c)
	}
	return comments
}

// Comments returns the item's comment thread.
func (w *WorkItem) Comments() []Comment {
	return commentEntries(&w.sync)
}

// AddComment posts a root comment and reloads the item. Servers can
// disable commenting; that surfaces as a remote error.
func (w *WorkItem) AddComment(ctx context.Context, title, body string) error {
	if err := w.client.services.WorkItems.AddComment(ctx, w.URI(), title, core.HTML(body)); err != nil {
		return &core.RemoteError{Op: "add comment", Identity: w.URI(), Err: err}
	}
	return w.Reload(ctx)
}

// AddReply posts a reply under an existing comment and reloads the
// item. Replies carry no title.
func (w *WorkItem) AddReply(ctx context.Context, commentURI, body string) error {
	if err := w.client.services.WorkItems.AddReply(ctx, commentURI, core.HTML(body)); err != nil {
		return &core.RemoteError{Op: "add reply", Identity: w.URI(), Err: err}
	}
	return w.Reload(ctx)
}

// Comments returns the run's comment thread.
func (r *TestRun) Comments() []Comment {
	return commentEntries(&r.sync)
}

// AddComment posts a root comment on the run and reloads it. Runs share
// the tracker's comment call.
func (r *TestRun) AddComment(ctx context.Context, title, body string) error {
	if err := r.client.services.WorkItems.AddComment(ctx, r.URI(), title, core.HTML(body)); err != nil {
		return &core.RemoteError{Op: "add comment", Identity: r.URI(), Err: err}
	}
	return r.Reload(ctx)
}
