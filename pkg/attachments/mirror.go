package attachments

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/almforge/go-polarion"
)

// Holder is the remote side of a mirror: an entity whose attachments
// carry server-assigned ids. *polarion.WorkItem satisfies it.
type Holder interface {
	URI() string
	Attachments() []polarion.Attachment
	Attachment(ctx context.Context, id string) ([]byte, error)
	AddAttachment(ctx context.Context, path, title string) error
	UpdateAttachment(ctx context.Context, id, path, title string) error
	DeleteAttachment(ctx context.Context, id string) error
}

// Config holds the configuration for a Mirror.
type Config struct {
	// Dir is the local directory mirrored against the entity.
	Dir string
	// Pattern filters which files take part, a doublestar glob relative
	// to Dir. Defaults to "**/*".
	Pattern string
	// Debounce is the quiet window the watcher waits after a burst of
	// filesystem events. Defaults to 300ms.
	Debounce time.Duration
	// SystemDir names the directory under Dir holding the mirror index.
	// Defaults to ".polarion".
	SystemDir string
	// Logger receives debug and error output. Nil disables logging.
	Logger *slog.Logger
	// ErrorHandler receives errors the watcher cannot return to a
	// caller. Nil falls back to the logger.
	ErrorHandler func(error)
}

// Mirror keeps a local directory and an entity's attachments in step.
// Files upload under their base name; two files sharing a base name
// shadow each other on the server.
//
// A Mirror is safe for concurrent use.
type Mirror struct {
	holder Holder
	config Config
	index  *index

	mu            sync.RWMutex
	watcherActive bool
	worker        *watchWorker
}

// New builds a mirror over an existing directory and loads its index.
func New(holder Holder, config Config) (*Mirror, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("attachments: Dir is required")
	}
	if config.Pattern == "" {
		config.Pattern = "**/*"
	}
	if config.Debounce <= 0 {
		config.Debounce = 300 * time.Millisecond
	}
	if config.SystemDir == "" {
		config.SystemDir = ".polarion"
	}

	info, err := os.Stat(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("attachments: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("attachments: %s is not a directory", config.Dir)
	}

	m := &Mirror{holder: holder, config: config, index: newIndex(config.Dir, config.SystemDir)}
	if err := m.index.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Push uploads local files the entity does not yet have at their
// current content. Unchanged files cost nothing. The returned names are
// the files that travelled.
func (m *Mirror) Push(ctx context.Context) ([]string, error) {
	files, err := m.localFiles()
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(files))
	var pushed []string
	for _, name := range files {
		keep[name] = true
		full := filepath.Join(m.config.Dir, filepath.FromSlash(name))
		info, err := os.Stat(full)
		if err != nil {
			return pushed, err
		}
		if _, fresh := m.index.Get(name, info.ModTime()); fresh {
			continue
		}
		if err := m.pushFile(ctx, name, full, info.ModTime()); err != nil {
			return pushed, err
		}
		pushed = append(pushed, name)
	}

	// The index mirrors the local tree; entries for vanished files go.
	m.index.Prune(keep)
	if err := m.index.Save(); err != nil {
		return pushed, err
	}
	return pushed, nil
}

// Pull downloads attachments whose server content is newer than the
// local mirror, writing each file atomically. Local files never travel
// on a pull.
func (m *Mirror) Pull(ctx context.Context) ([]string, error) {
	var pulled []string
	for _, a := range m.holder.Attachments() {
		if a.FileName == "" {
			continue
		}
		name := a.FileName
		full := filepath.Join(m.config.Dir, name)

		if entry, ok := m.index.Lookup(name); ok && entry.RemoteUpdated.Equal(a.Updated) {
			if _, err := os.Stat(full); err == nil {
				continue
			}
		}

		data, err := m.holder.Attachment(ctx, a.ID)
		if err != nil {
			return pulled, err
		}
		if err := writeFileAtomic(full, data, 0o644); err != nil {
			return pulled, err
		}
		info, err := os.Stat(full)
		if err != nil {
			return pulled, err
		}
		m.index.Set(name, &indexEntry{
			AttachmentID:  a.ID,
			Title:         a.Title,
			LastModified:  info.ModTime(),
			RemoteUpdated: a.Updated,
		})
		pulled = append(pulled, name)
		if m.config.Logger != nil {
			m.config.Logger.Debug("attachment pulled", "file", name, "source", m.holder.URI())
		}
	}

	if err := m.index.Save(); err != nil {
		return pulled, err
	}
	return pulled, nil
}

// localFiles lists the mirrored files as slash paths relative to Dir,
// sorted for stable push order.
func (m *Mirror) localFiles() ([]string, error) {
	fsys := os.DirFS(m.config.Dir)
	names, err := doublestar.Glob(fsys, m.config.Pattern)
	if err != nil {
		return nil, fmt.Errorf("attachments: bad pattern %q: %w", m.config.Pattern, err)
	}

	var files []string
	for _, name := range names {
		if m.ignored(name) {
			continue
		}
		info, err := fs.Stat(fsys, name)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

// ignored reports whether a relative slash path stays out of the
// mirror: the system directory and in-flight atomic temp files.
func (m *Mirror) ignored(name string) bool {
	if name == m.config.SystemDir || strings.HasPrefix(name, m.config.SystemDir+"/") {
		return true
	}
	return strings.HasPrefix(path.Base(name), TempFilePrefix)
}

func (m *Mirror) ignoredAbs(full string) bool {
	rel, err := filepath.Rel(m.config.Dir, full)
	if err != nil {
		return true
	}
	return m.ignored(filepath.ToSlash(rel))
}

// pushFile uploads one file, creating or replacing the attachment that
// carries its base name, and records the exchange in the index.
func (m *Mirror) pushFile(ctx context.Context, name, full string, mtime time.Time) error {
	base := path.Base(name)
	title := base
	if entry, ok := m.index.Lookup(name); ok && entry.Title != "" {
		title = entry.Title
	}

	var err error
	if remote, ok := m.remoteByName(base); ok {
		err = m.holder.UpdateAttachment(ctx, remote.ID, full, title)
	} else {
		err = m.holder.AddAttachment(ctx, full, title)
	}
	if err != nil {
		return err
	}

	entry := &indexEntry{Title: title, LastModified: mtime}
	if resolved, ok := m.remoteByName(base); ok {
		entry.AttachmentID = resolved.ID
		entry.RemoteUpdated = resolved.Updated
	}
	m.index.Set(name, entry)

	if m.config.Logger != nil {
		m.config.Logger.Debug("attachment pushed", "file", name, "target", m.holder.URI())
	}
	return nil
}

// remoteByName finds the entity's attachment carrying the file name.
func (m *Mirror) remoteByName(fileName string) (polarion.Attachment, bool) {
	for _, a := range m.holder.Attachments() {
		if a.FileName == fileName {
			return a, true
		}
	}
	return polarion.Attachment{}, false
}

// fileChange is one debounced filesystem change the watcher applies.
type fileChange struct {
	name    string // slash path relative to Dir
	removed bool
}

// classify maps a filesystem event onto a mirrored change, dropping
// events outside the pattern or inside ignored paths.
func (m *Mirror) classify(event fileEvent) (fileChange, bool) {
	rel, err := filepath.Rel(m.config.Dir, event.name)
	if err != nil {
		return fileChange{}, false
	}
	name := filepath.ToSlash(rel)
	if name == "." || strings.HasPrefix(name, "../") {
		return fileChange{}, false
	}
	if m.ignored(name) {
		return fileChange{}, false
	}
	if ok, err := doublestar.Match(m.config.Pattern, name); err != nil || !ok {
		return fileChange{}, false
	}
	switch {
	case event.removed:
		return fileChange{name: name, removed: true}, true
	case event.written:
		return fileChange{name: name}, true
	}
	return fileChange{}, false
}

// applyChange pushes or removes one file on the entity. A change that
// needs no remote work reports applied=false.
func (m *Mirror) applyChange(ctx context.Context, change fileChange) (Event, bool) {
	if change.removed {
		entry, ok := m.index.Lookup(change.name)
		if !ok {
			return Event{}, false
		}
		if entry.AttachmentID != "" {
			if err := m.holder.DeleteAttachment(ctx, entry.AttachmentID); err != nil {
				m.reportError(err)
				return Event{}, false
			}
		}
		m.index.Delete(change.name)
		if err := m.index.Save(); err != nil {
			m.reportError(err)
		}
		return Event{Type: EventRemoved, FileName: change.name, Timestamp: time.Now().Unix()}, true
	}

	full := filepath.Join(m.config.Dir, filepath.FromSlash(change.name))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return Event{}, false
	}
	if _, fresh := m.index.Get(change.name, info.ModTime()); fresh {
		return Event{}, false
	}
	if err := m.pushFile(ctx, change.name, full, info.ModTime()); err != nil {
		m.reportError(err)
		return Event{}, false
	}
	if err := m.index.Save(); err != nil {
		m.reportError(err)
	}
	return Event{Type: EventPushed, FileName: change.name, Timestamp: time.Now().Unix()}, true
}

func (m *Mirror) reportError(err error) {
	if m.config.ErrorHandler != nil {
		m.config.ErrorHandler(err)
		return
	}
	if m.config.Logger != nil {
		m.config.Logger.Error("mirror apply failed", "error", err)
	}
}

// Watch starts mirroring filesystem changes onto the entity. Matching
// creates and writes push the file; removes delete the remote
// attachment. The returned channel reports each applied change. The
// watcher stops when ctx is cancelled or Stop is called.
func (m *Mirror) Watch(ctx context.Context) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.worker != nil {
		return nil, fmt.Errorf("attachments: watcher already running")
	}
	events := make(chan Event, 16)
	w := newWatchWorker(m, events)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	m.worker = w
	return events, nil
}

// Stop halts a running watcher. Without one it does nothing.
func (m *Mirror) Stop(ctx context.Context) error {
	m.mu.Lock()
	w := m.worker
	m.worker = nil
	m.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Stop(ctx)
}
