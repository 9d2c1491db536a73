package indexer

import (
	"os"

	"github.com/wesm/mailidx/internal/store"
)

// Freshness decides whether a mailbox can be indexed incrementally from a
// checkpoint. It is asked twice per pass: whether a stored checkpoint may be
// resumed from, and whether the checkpoint after a pass should be stored.
type Freshness interface {
	IncrementallyIndexable(path string, cp store.Checkpoint) bool
}

// NeverFresh always forces a full pass and stores no checkpoints.
type NeverFresh struct{}

func (NeverFresh) IncrementallyIndexable(string, store.Checkpoint) bool { return false }

// SizeFreshness treats a mailbox as append-only: a checkpoint is usable
// while the file is at least as large as when the checkpoint was taken.
type SizeFreshness struct{}

func (SizeFreshness) IncrementallyIndexable(path string, cp store.Checkpoint) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Size() >= cp.FileSize && cp.Offset <= info.Size()
}
