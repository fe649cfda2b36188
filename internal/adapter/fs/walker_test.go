package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatal(err)
	}
}

func TestWalker_IncludesAndExcludes(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	writeFile(t, filepath.Join(root, "app.log"), now)
	writeFile(t, filepath.Join(root, "var", "syslog.log"), now)
	writeFile(t, filepath.Join(root, "notes.md"), now)
	writeFile(t, filepath.Join(root, ".git", "objects", "x.log"), now)

	files, err := NewWalker([]string{"**/*.log"}, []string{".git/**"}).Walk(root)
	if err != nil {
		t.Fatal(err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d: %v", len(files), files)
	}
	for _, f := range files {
		if filepath.Ext(f.Path) != ".log" {
			t.Errorf("unexpected file %s", f.Path)
		}
	}
}

func TestWalker_NewestFirstAndLimit(t *testing.T) {
	root := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writeFile(t, filepath.Join(root, "old.txt"), base)
	writeFile(t, filepath.Join(root, "mid.txt"), base.Add(10*time.Minute))
	writeFile(t, filepath.Join(root, "new.txt"), base.Add(20*time.Minute))

	files, err := NewWalker([]string{"*.txt"}, nil).WithLimit(2).Walk(root)
	if err != nil {
		t.Fatal(err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if filepath.Base(files[0].Path) != "new.txt" || filepath.Base(files[1].Path) != "mid.txt" {
		t.Errorf("unexpected order: %s, %s", files[0].Path, files[1].Path)
	}
}

func TestWalker_DefaultIncludesEverything(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a"), time.Now())
	writeFile(t, filepath.Join(root, "sub", "b"), time.Now())

	files, err := NewWalker(nil, nil).Walk(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 files, got %d", len(files))
	}
}
