// Package query runs parsed searches against the mail index and tracks the
// paging state of an interactive result browser.
package query

import (
	"context"

	"github.com/wesm/mailidx/internal/document"
	"github.com/wesm/mailidx/internal/search"
)

// Engine runs queries over the index.
type Engine interface {
	// Search returns up to limit results starting at offset, best first.
	Search(ctx context.Context, q *search.Query, offset, limit int) (*Window, error)

	// Document returns the payload of the document with the given key term.
	Document(ctx context.Context, keyTerm string) (*document.Payload, error)
}

// Item is one ranked result.
type Item struct {
	// Rank is the zero-based position of the item in the full result list.
	Rank    int
	KeyTerm string
	Payload document.Payload
	Score   float64
}

// Window is a contiguous slice of the ranked result list.
type Window struct {
	Offset int
	Items  []Item

	// EstimatedTotal is the number of matching documents.
	EstimatedTotal int
}

// Len returns the number of items in the window. A nil window is empty.
func (w *Window) Len() int {
	if w == nil {
		return 0
	}
	return len(w.Items)
}

// At returns the item with the given absolute rank, if the window holds it.
func (w *Window) At(rank int) (Item, bool) {
	if w == nil {
		return Item{}, false
	}
	i := rank - w.Offset
	if i < 0 || i >= len(w.Items) {
		return Item{}, false
	}
	return w.Items[i], true
}
