package attachments

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIndex_Load(t *testing.T) {
	t.Run("Starts Empty if File Missing", func(t *testing.T) {
		tmpDir := t.TempDir()
		c := newIndex(tmpDir, ".polarion")

		if err := c.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("Expected empty entries, got %d", c.Len())
		}
	})

	t.Run("Loads Valid YAML", func(t *testing.T) {
		tmpDir := t.TempDir()
		indexDir := filepath.Join(tmpDir, ".polarion")
		os.MkdirAll(indexDir, 0o755)

		yamlContent := `version: 1
entries:
  trace.log:
    attachmentId: abc-123
    title: Trace
    lastModified: 2026-08-01T10:00:00Z
`
		os.WriteFile(filepath.Join(indexDir, "index.yaml"), []byte(yamlContent), 0o644)

		c := newIndex(tmpDir, ".polarion")
		if err := c.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		entry, ok := c.Lookup("trace.log")
		if !ok {
			t.Fatal("Expected entry trace.log not found")
		}
		if entry.AttachmentID != "abc-123" {
			t.Errorf("Expected attachment id 'abc-123', got '%s'", entry.AttachmentID)
		}
		if entry.Title != "Trace" {
			t.Errorf("Expected title 'Trace', got '%s'", entry.Title)
		}
	})

	t.Run("Resets on Corrupted YAML", func(t *testing.T) {
		tmpDir := t.TempDir()
		indexDir := filepath.Join(tmpDir, ".polarion")
		os.MkdirAll(indexDir, 0o755)

		os.WriteFile(filepath.Join(indexDir, "index.yaml"), []byte("entries: [not: a: map"), 0o644)

		c := newIndex(tmpDir, ".polarion")
		// Should not error, but start empty
		if err := c.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("Expected empty entries after corruption, got %d", c.Len())
		}
	})
}

func TestIndex_Save(t *testing.T) {
	t.Run("Does Not Save if Not Dirty", func(t *testing.T) {
		tmpDir := t.TempDir()
		c := newIndex(tmpDir, ".polarion")

		if err := c.Save(); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if _, err := os.Stat(c.Path); !os.IsNotExist(err) {
			t.Error("Save wrote a file although nothing changed")
		}
	})

	t.Run("Round Trips Entries", func(t *testing.T) {
		tmpDir := t.TempDir()
		c := newIndex(tmpDir, ".polarion")

		mtime := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
		c.Set("report.txt", &indexEntry{AttachmentID: "id-1", Title: "Report", LastModified: mtime})
		if err := c.Save(); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		reloaded := newIndex(tmpDir, ".polarion")
		if err := reloaded.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		entry, ok := reloaded.Get("report.txt", mtime)
		if !ok {
			t.Fatal("Expected fresh entry report.txt after reload")
		}
		if entry.AttachmentID != "id-1" {
			t.Errorf("Expected attachment id 'id-1', got '%s'", entry.AttachmentID)
		}
	})
}

func TestIndex_Get(t *testing.T) {
	t.Run("Misses on Changed Mtime", func(t *testing.T) {
		tmpDir := t.TempDir()
		c := newIndex(tmpDir, ".polarion")

		mtime := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
		c.Set("report.txt", &indexEntry{LastModified: mtime})

		if _, ok := c.Get("report.txt", mtime.Add(time.Second)); ok {
			t.Error("Entry with stale mtime reported as fresh")
		}
		if _, ok := c.Get("report.txt", mtime); !ok {
			t.Error("Entry with matching mtime reported as stale")
		}
	})
}

func TestIndex_Prune(t *testing.T) {
	tmpDir := t.TempDir()
	c := newIndex(tmpDir, ".polarion")

	c.Set("keep.txt", &indexEntry{})
	c.Set("drop.txt", &indexEntry{})

	c.Prune(map[string]bool{"keep.txt": true})

	if _, ok := c.Lookup("keep.txt"); !ok {
		t.Error("kept entry was pruned")
	}
	if _, ok := c.Lookup("drop.txt"); ok {
		t.Error("stale entry survived prune")
	}
}
