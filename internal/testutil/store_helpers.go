package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/wesm/mailidx/internal/document"
	"github.com/wesm/mailidx/internal/store"
)

// NewTestStore creates a temporary writable index for testing.
// The index is automatically closed when the test completes.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "index.db")
	st, err := store.Open(dbPath, store.ModeReadWrite)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedStore writes docs into st, failing the test on any error.
func SeedStore(t *testing.T, st *store.Store, docs ...*document.Document) {
	t.Helper()
	ctx := context.Background()
	for _, d := range docs {
		if err := st.ReplaceDocument(ctx, d); err != nil {
			t.Fatalf("seed %s: %v", d.KeyTerm, err)
		}
	}
}
