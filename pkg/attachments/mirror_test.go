package attachments

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/almforge/go-polarion"
	"github.com/almforge/go-polarion/pkg/adapters/memory"
	"github.com/almforge/go-polarion/pkg/core"
)

// newMirrorFixture loads a work item over the memory adapter and hands
// out an empty mirror directory for it.
func newMirrorFixture(t *testing.T) (*polarion.WorkItem, *memory.Store, string) {
	t.Helper()
	store := memory.NewStore()
	store.AddProject("Proj", core.Fields{"name": "Demo"})
	store.AddUser("admin", core.Fields{"name": "Administrator"})
	store.AddWorkItem("Proj", "Proj-1", core.Fields{
		"title": "Crash on login",
		"type":  core.Enum{ID: "defect"},
	})

	ctx := context.Background()
	client, err := polarion.NewClient(ctx, "", "", "",
		polarion.WithServices(polarion.Services{
			WorkItems: store.WorkItems(),
			Plans:     store.Plans(),
			TestRuns:  store.TestRuns(),
			Projects:  store.Projects(),
			Users:     store.Users(),
			Documents: store.Documents(),
			Downloads: store,
		}))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	project, err := client.Project(ctx, "Proj")
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	item, err := project.WorkItem(ctx, "Proj-1")
	if err != nil {
		t.Fatalf("WorkItem() error = %v", err)
	}
	store.ResetCalls()
	return item, store, t.TempDir()
}

func writeMirrorFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return full
}

func TestMirror_Push(t *testing.T) {
	item, store, dir := newMirrorFixture(t)
	ctx := context.Background()

	writeMirrorFile(t, dir, "trace.log", "stack trace")
	writeMirrorFile(t, dir, "screenshot.png", "png bytes")

	m, err := New(item, Config{Dir: dir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	pushed, err := m.Push(ctx)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if len(pushed) != 2 {
		t.Fatalf("Push() = %v, want both files", pushed)
	}
	if len(item.Attachments()) != 2 {
		t.Fatalf("Attachments() = %d entries after push", len(item.Attachments()))
	}
	for _, a := range item.Attachments() {
		data, err := item.Attachment(ctx, a.ID)
		if err != nil {
			t.Fatalf("Attachment(%s) error = %v", a.FileName, err)
		}
		if len(data) == 0 {
			t.Errorf("attachment %s round-tripped empty", a.FileName)
		}
	}

	t.Run("Second Push Costs Nothing", func(t *testing.T) {
		store.ResetCalls()
		pushed, err := m.Push(ctx)
		if err != nil {
			t.Fatalf("Push() error = %v", err)
		}
		if len(pushed) != 0 {
			t.Errorf("Push() = %v, want no files", pushed)
		}
		if n := store.Calls("WorkItems.CreateAttachment") + store.Calls("WorkItems.UpdateAttachment"); n != 0 {
			t.Errorf("unchanged push made %d upload calls, want 0", n)
		}
	})

	t.Run("Changed File Updates in Place", func(t *testing.T) {
		full := writeMirrorFile(t, dir, "trace.log", "stack trace, second frame")
		// Force a distinct mtime; writes can land within fs granularity.
		stamp := time.Now().Add(2 * time.Second)
		if err := os.Chtimes(full, stamp, stamp); err != nil {
			t.Fatal(err)
		}

		store.ResetCalls()
		pushed, err := m.Push(ctx)
		if err != nil {
			t.Fatalf("Push() error = %v", err)
		}
		if len(pushed) != 1 || pushed[0] != "trace.log" {
			t.Fatalf("Push() = %v, want just trace.log", pushed)
		}
		if n := store.Calls("WorkItems.UpdateAttachment"); n != 1 {
			t.Errorf("UpdateAttachment ran %d times, want 1", n)
		}
		if n := store.Calls("WorkItems.CreateAttachment"); n != 0 {
			t.Errorf("CreateAttachment ran %d times, want 0", n)
		}
		if len(item.Attachments()) != 2 {
			t.Errorf("Attachments() = %d entries, the update must not add", len(item.Attachments()))
		}
	})
}

func TestMirror_PushPrunesVanishedFiles(t *testing.T) {
	item, _, dir := newMirrorFixture(t)
	ctx := context.Background()

	full := writeMirrorFile(t, dir, "trace.log", "stack trace")
	writeMirrorFile(t, dir, "notes.md", "observations")

	m, err := New(item, Config{Dir: dir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := m.Push(ctx); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	if err := os.Remove(full); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Push(ctx); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	state := m.State().(MirrorState)
	if state.IndexSize != 1 {
		t.Errorf("IndexSize = %d after prune, want 1", state.IndexSize)
	}
	// Pushing never deletes remotely; the attachment stays.
	if len(item.Attachments()) != 2 {
		t.Errorf("Attachments() = %d, push must not delete", len(item.Attachments()))
	}
}

func TestMirror_Pull(t *testing.T) {
	item, store, dir := newMirrorFixture(t)
	ctx := context.Background()

	if err := store.WorkItems().CreateAttachment(ctx, item.URI(), "spec.pdf", "Spec", []byte("pdf bytes")); err != nil {
		t.Fatalf("CreateAttachment() error = %v", err)
	}
	if err := item.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	m, err := New(item, Config{Dir: dir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	pulled, err := m.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if len(pulled) != 1 || pulled[0] != "spec.pdf" {
		t.Fatalf("Pull() = %v, want spec.pdf", pulled)
	}
	data, err := os.ReadFile(filepath.Join(dir, "spec.pdf"))
	if err != nil {
		t.Fatalf("pulled file unreadable: %v", err)
	}
	if string(data) != "pdf bytes" {
		t.Errorf("pulled content = %q", data)
	}

	t.Run("Second Pull Costs Nothing", func(t *testing.T) {
		store.ResetCalls()
		pulled, err := m.Pull(ctx)
		if err != nil {
			t.Fatalf("Pull() error = %v", err)
		}
		if len(pulled) != 0 {
			t.Errorf("Pull() = %v, want no files", pulled)
		}
		if n := store.Calls("WorkItems.AttachmentData"); n != 0 {
			t.Errorf("fresh pull fetched %d times, want 0", n)
		}
	})

	t.Run("Refetches a Deleted Local File", func(t *testing.T) {
		if err := os.Remove(filepath.Join(dir, "spec.pdf")); err != nil {
			t.Fatal(err)
		}
		pulled, err := m.Pull(ctx)
		if err != nil {
			t.Fatalf("Pull() error = %v", err)
		}
		if len(pulled) != 1 {
			t.Fatalf("Pull() = %v after local delete", pulled)
		}
	})

	t.Run("Refetches on Remote Change", func(t *testing.T) {
		id := item.Attachments()[0].ID
		if err := store.WorkItems().UpdateAttachment(ctx, item.URI(), id, "spec.pdf", "Spec v2", []byte("pdf bytes, revised")); err != nil {
			t.Fatalf("UpdateAttachment() error = %v", err)
		}
		if err := item.Reload(ctx); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}

		pulled, err := m.Pull(ctx)
		if err != nil {
			t.Fatalf("Pull() error = %v", err)
		}
		if len(pulled) != 1 {
			t.Fatalf("Pull() = %v after remote change", pulled)
		}
		data, err := os.ReadFile(filepath.Join(dir, "spec.pdf"))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "pdf bytes, revised" {
			t.Errorf("pulled content = %q", data)
		}
	})
}

func TestMirror_Classify(t *testing.T) {
	item, _, dir := newMirrorFixture(t)
	m, err := New(item, Config{Dir: dir, Pattern: "**/*.png"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name  string
		event fileEvent
		want  bool
	}{
		{"Matching Write", fileEvent{name: filepath.Join(dir, "shot.png"), written: true}, true},
		{"Nested Matching Write", fileEvent{name: filepath.Join(dir, "sub", "shot.png"), written: true}, true},
		{"Pattern Miss", fileEvent{name: filepath.Join(dir, "trace.log"), written: true}, false},
		{"System Dir", fileEvent{name: filepath.Join(dir, ".polarion", "index.yaml"), written: true}, false},
		{"Atomic Temp File", fileEvent{name: filepath.Join(dir, TempFilePrefix+"123.png"), written: true}, false},
		{"Outside Dir", fileEvent{name: filepath.Join(os.TempDir(), "other.png"), written: true}, false},
		{"Matching Remove", fileEvent{name: filepath.Join(dir, "shot.png"), removed: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := m.classify(tt.event)
			if ok != tt.want {
				t.Errorf("classify(%q) ok = %v, want %v", tt.event.name, ok, tt.want)
			}
		})
	}
}

func TestMirror_WatchPushesChanges(t *testing.T) {
	item, _, dir := newMirrorFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, err := New(item, Config{Dir: dir, Debounce: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	events, err := m.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer m.Stop(context.Background())

	if !m.State().(MirrorState).WatcherActive {
		t.Error("WatcherActive = false while watching")
	}

	// Give the watcher a moment to arm before producing events.
	time.Sleep(100 * time.Millisecond)
	writeMirrorFile(t, dir, "trace.log", "stack trace")

	select {
	case e := <-events:
		if e.Type != EventPushed || e.FileName != "trace.log" {
			t.Fatalf("event = %v, want PUSHED trace.log", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event after file write")
	}
	if len(item.Attachments()) != 1 {
		t.Fatalf("Attachments() = %d after watched write", len(item.Attachments()))
	}

	if err := os.Remove(filepath.Join(dir, "trace.log")); err != nil {
		t.Fatal(err)
	}
	select {
	case e := <-events:
		if e.Type != EventRemoved || e.FileName != "trace.log" {
			t.Fatalf("event = %v, want REMOVED trace.log", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event after file remove")
	}
	if len(item.Attachments()) != 0 {
		t.Errorf("Attachments() = %d after watched remove", len(item.Attachments()))
	}

	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for m.State().(MirrorState).WatcherActive {
		if time.Now().After(deadline) {
			t.Fatal("watcher still active after stop")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
