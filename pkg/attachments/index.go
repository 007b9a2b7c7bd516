package attachments

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// indexEntry is the recorded exchange state for one mirrored file.
type indexEntry struct {
	AttachmentID  string    `yaml:"attachmentId,omitempty"`
	Title         string    `yaml:"title,omitempty"`
	LastModified  time.Time `yaml:"lastModified"`
	RemoteUpdated time.Time `yaml:"remoteUpdated,omitempty"`
}

// indexFile is the persistent shape of the index.
type indexFile struct {
	Version int                    `yaml:"version"`
	Entries map[string]*indexEntry `yaml:"entries"` // key is the slash path relative to the mirror dir
}

// index tracks which local file state has already been exchanged with
// the server, so unchanged files cost no upload.
type index struct {
	Path string

	mu    sync.RWMutex
	file  indexFile
	dirty bool
}

func newIndex(dir, systemDir string) *index {
	return &index{
		Path: filepath.Join(dir, systemDir, "index.yaml"),
		file: indexFile{Version: 1, Entries: make(map[string]*indexEntry)},
	}
}

// Load reads the index from disk. A missing or corrupted file starts
// fresh rather than failing: the worst case is a redundant upload.
func (c *index) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	if err := yaml.Unmarshal(data, &c.file); err != nil {
		c.file = indexFile{Version: 1, Entries: make(map[string]*indexEntry)}
		return nil
	}
	if c.file.Entries == nil {
		c.file.Entries = make(map[string]*indexEntry)
	}

	c.dirty = false
	return nil
}

// Save persists the index to disk when it changed.
func (c *index) Save() error {
	c.mu.RLock()
	if !c.dirty {
		c.mu.RUnlock()
		return nil
	}
	data, err := yaml.Marshal(c.file)
	c.mu.RUnlock()

	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return err
	}

	if err := writeFileAtomic(c.Path, data, 0o644); err != nil {
		return err
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()

	return nil
}

// Get returns the entry when it exists and matches the file's current
// mtime, meaning the recorded exchange is still fresh.
func (c *index) Get(name string, mtime time.Time) (*indexEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.file.Entries[name]
	if !ok {
		return nil, false
	}
	if !entry.LastModified.Equal(mtime) {
		return nil, false
	}
	return entry, true
}

// Lookup returns the entry regardless of freshness.
func (c *index) Lookup(name string) (*indexEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.file.Entries[name]
	return entry, ok
}

// Set stores an entry.
func (c *index) Set(name string, entry *indexEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.file.Entries[name] = entry
	c.dirty = true
}

// Delete drops a single entry.
func (c *index) Delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.file.Entries[name]; ok {
		delete(c.file.Entries, name)
		c.dirty = true
	}
}

// Prune removes entries that are not in the keep set.
func (c *index) Prune(keep map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.file.Entries {
		if !keep[name] {
			delete(c.file.Entries, name)
			c.dirty = true
		}
	}
}

// Len returns the number of tracked files.
func (c *index) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.file.Entries)
}
