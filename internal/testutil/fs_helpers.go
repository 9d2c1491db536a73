package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wesm/mailidx/internal/testutil/email"
)

// WriteFile writes content to name inside dir and returns the full path.
// name must be a local relative path; anything that could escape dir fails
// the test.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	if !filepath.IsLocal(name) {
		t.Fatalf("WriteFile: %q is not a local path", name)
	}
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

// WriteMbox writes raw messages as an mbox file named name inside dir.
func WriteMbox(t *testing.T, dir, name string, messages ...[]byte) string {
	t.Helper()
	return WriteFile(t, dir, name, email.Mbox(messages...))
}

// MustExist fails the test if the path does not exist or cannot be accessed.
func MustExist(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}
