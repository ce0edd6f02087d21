package safe

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadFile(t *testing.T) {
	t.Run("reads regular file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "profile.json")
		content := []byte(`{"main()":{"ct":1,"wt":10}}`)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatal(err)
		}

		got, err := ReadFile(path, nil)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if string(got) != string(content) {
			t.Errorf("got %q, want %q", got, content)
		}
	})

	t.Run("rejects symlink by default", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "source.json")
		link := filepath.Join(tmpDir, "link.json")
		if err := os.WriteFile(src, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(src, link); err != nil {
			t.Fatal(err)
		}

		if _, err := ReadFile(link, nil); err == nil {
			t.Fatal("expected error for symlink, got nil")
		}
		if _, err := ReadFile(link, &ReadOptions{AllowSymlinks: true}); err != nil {
			t.Fatalf("expected symlink to be followed when allowed: %v", err)
		}
	})

	t.Run("rejects directory", func(t *testing.T) {
		if _, err := ReadFile(t.TempDir(), nil); err == nil {
			t.Fatal("expected error for directory, got nil")
		}
	})

	t.Run("rejects oversized file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "big.json")
		if err := os.WriteFile(path, make([]byte, 100), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadFile(path, &ReadOptions{MaxSize: 50}); err == nil {
			t.Fatal("expected error for oversized file, got nil")
		}
	})
}

func TestWriteFileAtomic(t *testing.T) {
	t.Run("creates file with permissions", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "1700000000.json")
		if err := WriteFileAtomic(path, []byte("first"), 0o640); err != nil {
			t.Fatalf("WriteFileAtomic failed: %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o640 {
			t.Errorf("got mode %v, want 0640", info.Mode().Perm())
		}
	})

	t.Run("replaces existing file and leaves no temporaries", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "profile.json")
		if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
			t.Fatal(err)
		}

		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "second" {
			t.Errorf("got %q, want %q", got, "second")
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("expected only the target file, got %d entries", len(entries))
		}
	})

	t.Run("fails for missing directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "profile.json")
		if err := WriteFileAtomic(path, []byte("x"), 0o644); err == nil {
			t.Fatal("expected error for missing directory, got nil")
		}
	})
}
