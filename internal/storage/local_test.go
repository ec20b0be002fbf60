package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		tempDir := filepath.Join(t.TempDir(), "nested", "countercurse")

		storage, err := NewLocalStorage(tempDir)
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		if storage.TempDir() != tempDir {
			t.Errorf("TempDir() = %v, want %v", storage.TempDir(), tempDir)
		}

		info, err := os.Stat(tempDir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		storage, err := NewLocalStorage("")
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "countercurse")
		if storage.TempDir() != expected {
			t.Errorf("TempDir() = %v, want %v", storage.TempDir(), expected)
		}
	})
}

func TestLocalStorage_Workspace(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("one directory per run", func(t *testing.T) {
		a, err := storage.Workspace(ctx, "job-1")
		if err != nil {
			t.Fatalf("Workspace() error = %v", err)
		}
		b, err := storage.Workspace(ctx, "job-2")
		if err != nil {
			t.Fatalf("Workspace() error = %v", err)
		}

		if a == b {
			t.Fatalf("runs share workspace %s", a)
		}
		if filepath.Dir(a) != storage.TempDir() {
			t.Errorf("workspace %s not under %s", a, storage.TempDir())
		}
		if info, err := os.Stat(a); err != nil || !info.IsDir() {
			t.Errorf("workspace not created: %v", err)
		}
	})

	t.Run("rejects unsafe run ids", func(t *testing.T) {
		for _, id := range []string{"", ".", "..", "../escape", "a/b", `a\b`} {
			if _, err := storage.Workspace(ctx, id); !errors.Is(err, ErrInvalidRunID) {
				t.Errorf("Workspace(%q) error = %v, want ErrInvalidRunID", id, err)
			}
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.Workspace(ctx, "job-3")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_RemoveWorkspace(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("removes workspace with leftovers", func(t *testing.T) {
		dir, err := storage.Workspace(ctx, "job-rm")
		if err != nil {
			t.Fatalf("Workspace() error = %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "pass_1.wav"), []byte("x"), 0600); err != nil {
			t.Fatalf("write leftover: %v", err)
		}

		if err := storage.RemoveWorkspace(ctx, dir); err != nil {
			t.Fatalf("RemoveWorkspace() error = %v", err)
		}
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("workspace %s still exists", dir)
		}
	})

	t.Run("refuses paths outside the temp dir", func(t *testing.T) {
		outside := t.TempDir()
		for _, dir := range []string{outside, storage.TempDir(), filepath.Dir(storage.TempDir())} {
			if err := storage.RemoveWorkspace(ctx, dir); !errors.Is(err, ErrOutsideTempDir) {
				t.Errorf("RemoveWorkspace(%s) error = %v, want ErrOutsideTempDir", dir, err)
			}
		}
		if _, err := os.Stat(outside); err != nil {
			t.Errorf("outside directory was touched: %v", err)
		}
	})
}

func TestLocalStorage_SaveTemp(t *testing.T) {
	storage := setupTestStorage(t)

	t.Run("saves data to temp file", func(t *testing.T) {
		ctx := context.Background()
		data := bytes.NewReader([]byte("test data"))

		path, err := storage.SaveTemp(ctx, "upload.mp4", data)
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}
		defer func() { _ = os.Remove(path) }()

		base := filepath.Base(path)
		if !strings.HasPrefix(base, "upload_") || filepath.Ext(base) != ".mp4" {
			t.Errorf("path %s should look like upload_*.mp4", path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "test data" {
			t.Errorf("got %q, want %q", string(content), "test data")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.SaveTemp(ctx, "test", bytes.NewReader([]byte("data")))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_Open(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("loads saved file", func(t *testing.T) {
		path, err := storage.SaveTemp(ctx, "load_test", bytes.NewReader([]byte("load data")))
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}
		defer func() { _ = os.Remove(path) }()

		reader, err := storage.Open(ctx, path)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer func() { _ = reader.Close() }()

		content, err := io.ReadAll(reader)
		if err != nil {
			t.Fatalf("failed to read: %v", err)
		}
		if string(content) != "load data" {
			t.Errorf("got %q, want %q", string(content), "load data")
		}
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		_, err := storage.Open(ctx, "/non/existent/file")
		if err == nil {
			t.Error("expected error for non-existent file")
		}
	})
}

func TestLocalStorage_CleanupTemp(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("removes files", func(t *testing.T) {
		var paths []string
		for i := 0; i < 3; i++ {
			path, err := storage.SaveTemp(ctx, "cleanup", bytes.NewReader([]byte("data")))
			if err != nil {
				t.Fatalf("SaveTemp() error = %v", err)
			}
			paths = append(paths, path)
		}

		err := storage.CleanupTemp(ctx, paths)
		if err != nil {
			t.Fatalf("CleanupTemp() error = %v", err)
		}

		for _, p := range paths {
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				t.Errorf("file %s still exists", p)
			}
		}
	})

	t.Run("ignores non-existent files", func(t *testing.T) {
		err := storage.CleanupTemp(ctx, []string{"/non/existent/file"})
		if err != nil {
			t.Errorf("CleanupTemp() should ignore non-existent files, got %v", err)
		}
	})

	t.Run("continues past failures", func(t *testing.T) {
		// A non-empty directory cannot be removed with os.Remove.
		blocked := filepath.Join(storage.TempDir(), "blocked")
		if err := os.MkdirAll(filepath.Join(blocked, "child"), 0750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		after, err := storage.SaveTemp(ctx, "after", bytes.NewReader([]byte("data")))
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}

		err = storage.CleanupTemp(ctx, []string{blocked, after})
		if err == nil || !strings.Contains(err.Error(), "blocked") {
			t.Errorf("expected error mentioning blocked path, got %v", err)
		}
		if _, err := os.Stat(after); !os.IsNotExist(err) {
			t.Errorf("file after the failure was not removed")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := storage.CleanupTemp(ctx, []string{"/some/path"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_Promote(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	src, err := storage.SaveTemp(ctx, "pass_1.mp4", bytes.NewReader([]byte("censored video")))
	if err != nil {
		t.Fatalf("SaveTemp() error = %v", err)
	}
	dst := filepath.Join(t.TempDir(), "out", "final.mp4")

	if err := storage.Promote(ctx, src, dst); err != nil {
		t.Fatalf("Promote() error = %v", err)
	}

	content, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read promoted file: %v", err)
	}
	if string(content) != "censored video" {
		t.Errorf("got %q, want %q", string(content), "censored video")
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source %s still exists after promotion", src)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("payload"), 0600); err != nil {
		t.Fatalf("write src: %v", err)
	}
	if err := os.WriteFile(dst, []byte("stale and longer"), 0600); err != nil {
		t.Fatalf("write dst: %v", err)
	}

	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile() error = %v", err)
	}
	content, _ := os.ReadFile(dst)
	if string(content) != "payload" {
		t.Errorf("got %q, want %q", string(content), "payload")
	}
}

func TestLocalStorage_UploadToS3(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	_, err := storage.UploadToS3(ctx, "key", bytes.NewReader([]byte("data")))
	if err != ErrS3NotConfigured {
		t.Errorf("expected ErrS3NotConfigured, got %v", err)
	}
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()

	storage, err := NewLocalStorage(filepath.Join(t.TempDir(), "countercurse"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage
}
