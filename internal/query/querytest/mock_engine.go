// Package querytest provides shared test doubles for the query.Engine interface.
package querytest

import (
	"context"
	"fmt"

	"github.com/wesm/mailidx/internal/document"
	"github.com/wesm/mailidx/internal/query"
	"github.com/wesm/mailidx/internal/search"
	"github.com/wesm/mailidx/internal/store"
)

// Call records one Search invocation.
type Call struct {
	Query  string
	Offset int
	Limit  int
}

// MockEngine implements query.Engine for testing. By default Search pages
// through Results regardless of the query; set SearchFunc to customise.
type MockEngine struct {
	Results []query.Item

	// Total overrides the reported estimate when non-zero.
	Total int

	SearchFunc   func(context.Context, *search.Query, int, int) (*query.Window, error)
	DocumentFunc func(context.Context, string) (*document.Payload, error)

	// Calls records every Search call in order.
	Calls []Call
}

// Compile-time check.
var _ query.Engine = (*MockEngine)(nil)

func (m *MockEngine) Search(ctx context.Context, q *search.Query, offset, limit int) (*query.Window, error) {
	raw := ""
	if q != nil {
		raw = q.Raw
	}
	m.Calls = append(m.Calls, Call{Query: raw, Offset: offset, Limit: limit})
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, q, offset, limit)
	}

	w := &query.Window{Offset: offset, EstimatedTotal: len(m.Results)}
	if m.Total != 0 {
		w.EstimatedTotal = m.Total
	}
	for i := offset; i < len(m.Results) && i < offset+limit; i++ {
		it := m.Results[i]
		it.Rank = i
		w.Items = append(w.Items, it)
	}
	return w, nil
}

func (m *MockEngine) Document(ctx context.Context, keyTerm string) (*document.Payload, error) {
	if m.DocumentFunc != nil {
		return m.DocumentFunc(ctx, keyTerm)
	}
	for _, it := range m.Results {
		if it.KeyTerm == keyTerm {
			p := it.Payload
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", store.ErrNotFound, keyTerm)
}

// Items builds n results with distinct key terms and subjects.
func Items(n int) []query.Item {
	out := make([]query.Item, n)
	for i := range out {
		out[i] = query.Item{
			Rank:    i,
			KeyTerm: fmt.Sprintf("Q:msg%d@example.com", i),
			Payload: document.Payload{
				From:  fmt.Sprintf("Sender %d <sender%d@example.com>", i, i),
				To:    "me@example.com",
				Title: fmt.Sprintf("Message %d", i),
				Date:  "Mon, 01 Jan 2024 12:00:00 +0000",
			},
		}
	}
	return out
}
