package query_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wesm/mailidx/internal/query"
	"github.com/wesm/mailidx/internal/query/querytest"
	"github.com/wesm/mailidx/internal/search"
)

func newSession(t *testing.T, n int, opts ...query.SessionOption) (*query.Session, *querytest.MockEngine) {
	t.Helper()
	eng := &querytest.MockEngine{Results: querytest.Items(n)}
	return query.NewSession(eng, search.NewParser(nil), "", opts...), eng
}

func assertPosition(t *testing.T, s *query.Session, cursor, offset int) {
	t.Helper()
	if s.Cursor() != cursor || s.Offset() != offset {
		t.Errorf("cursor=%d offset=%d, want cursor=%d offset=%d", s.Cursor(), s.Offset(), cursor, offset)
	}
}

func TestSession_Defaults(t *testing.T) {
	s, _ := newSession(t, 0)
	assertPosition(t, s, 0, 0)
	if s.PageSize() != query.DefaultPageSize {
		t.Errorf("PageSize() = %d, want %d", s.PageSize(), query.DefaultPageSize)
	}
	if s.Cached() {
		t.Error("new session should have no cached window")
	}
}

func TestSession_MoveCursorPagination(t *testing.T) {
	s, _ := newSession(t, 100)
	s.SetPageSize(10)

	s.MoveCursor(15)
	assertPosition(t, s, 15, 10)

	s.MoveCursor(-20)
	assertPosition(t, s, 0, 0)
}

func TestSession_MoveCursorCrossesSeveralPages(t *testing.T) {
	s, _ := newSession(t, 100)
	s.MoveCursor(35)
	assertPosition(t, s, 35, 30)

	s.MoveCursor(-16)
	assertPosition(t, s, 19, 10)
}

func TestSession_StepOffLastRow(t *testing.T) {
	s, eng := newSession(t, 100)
	ctx := context.Background()

	s.MoveCursor(9)
	if _, err := s.Window(ctx); err != nil {
		t.Fatal(err)
	}
	s.MoveCursor(1)
	assertPosition(t, s, 10, 10)
	if s.Cached() {
		t.Error("window should be invalidated after the offset changed")
	}

	w, err := s.Window(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if w.Offset != 10 || w.Items[0].Rank != 10 {
		t.Errorf("window offset=%d first rank=%d, want 10/10", w.Offset, w.Items[0].Rank)
	}
	want := []querytest.Call{{Offset: 0, Limit: 10}, {Offset: 10, Limit: 10}}
	if diff := cmp.Diff(want, eng.Calls); diff != "" {
		t.Errorf("engine calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_MoveWithinPageKeepsWindow(t *testing.T) {
	s, eng := newSession(t, 100)
	ctx := context.Background()
	if _, err := s.Window(ctx); err != nil {
		t.Fatal(err)
	}
	s.MoveCursor(5)
	s.MoveCursor(-2)
	if !s.Cached() {
		t.Error("moving within the page should keep the window")
	}
	if _, err := s.Window(ctx); err != nil {
		t.Fatal(err)
	}
	if len(eng.Calls) != 1 {
		t.Errorf("engine called %d times, want 1", len(eng.Calls))
	}
}

func TestSession_Page(t *testing.T) {
	s, _ := newSession(t, 100)

	s.MoveCursor(3)
	s.Page(1)
	assertPosition(t, s, 10, 10)

	s.MoveCursor(3)
	s.Page(1)
	assertPosition(t, s, 20, 20)

	s.MoveCursor(5)
	s.Page(-1)
	assertPosition(t, s, 19, 10)

	s.Page(-1)
	assertPosition(t, s, 9, 0)

	s.Page(-1)
	assertPosition(t, s, 0, 0)

	s.Page(0)
	assertPosition(t, s, 0, 0)
}

func TestSession_SetQuerySameStringIsNoOp(t *testing.T) {
	eng := &querytest.MockEngine{Results: querytest.Items(50)}
	s := query.NewSession(eng, search.NewParser(nil), "hello")
	ctx := context.Background()

	s.MoveCursor(12)
	if _, err := s.Window(ctx); err != nil {
		t.Fatal(err)
	}
	before := s.Query()

	s.SetQuery("hello")
	assertPosition(t, s, 12, 10)
	if !s.Cached() {
		t.Error("identical query invalidated the window")
	}
	if s.Query() != before {
		t.Error("identical query was re-parsed")
	}
	if len(eng.Calls) != 1 {
		t.Errorf("engine called %d times, want 1", len(eng.Calls))
	}
}

func TestSession_SetQueryResets(t *testing.T) {
	s, eng := newSession(t, 50)
	ctx := context.Background()

	s.MoveCursor(12)
	if _, err := s.Window(ctx); err != nil {
		t.Fatal(err)
	}
	s.SetQuery("from:alice")
	assertPosition(t, s, 0, 0)
	if s.Cached() {
		t.Error("new query should invalidate the window")
	}
	if s.QueryString() != "from:alice" || s.Query().Root.String() != "Aalice" {
		t.Errorf("query = %q parsed %s", s.QueryString(), s.Query().Root)
	}
	if _, err := s.Window(ctx); err != nil {
		t.Fatal(err)
	}
	if got := eng.Calls[len(eng.Calls)-1]; got.Query != "from:alice" || got.Offset != 0 {
		t.Errorf("last call = %+v", got)
	}
}

func TestSession_SetPageSize(t *testing.T) {
	s, eng := newSession(t, 50)
	ctx := context.Background()
	if _, err := s.Window(ctx); err != nil {
		t.Fatal(err)
	}

	s.SetPageSize(10)
	s.SetPageSize(20)
	if !s.Cached() {
		t.Error("SetPageSize should not invalidate the window")
	}
	if s.PageSize() != 20 {
		t.Errorf("PageSize() = %d, want 20", s.PageSize())
	}

	s.SetPageSize(0)
	if s.PageSize() != 1 {
		t.Errorf("PageSize() = %d after SetPageSize(0), want 1", s.PageSize())
	}
	if len(eng.Calls) != 1 {
		t.Errorf("engine called %d times, want 1", len(eng.Calls))
	}
}

func TestSession_NoUpperClampByDefault(t *testing.T) {
	s, _ := newSession(t, 25)
	if _, err := s.Window(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.MoveCursor(100)
	assertPosition(t, s, 100, 100)

	w, err := s.Window(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if w.Len() != 0 {
		t.Errorf("window past the end has %d items", w.Len())
	}
}

func TestSession_StrictClamp(t *testing.T) {
	s, _ := newSession(t, 25, query.WithStrictClamp(true))

	// Nothing is known about the result count before the first fetch.
	s.MoveCursor(3)
	assertPosition(t, s, 3, 0)

	if _, err := s.Window(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.MoveCursor(100)
	assertPosition(t, s, 24, 20)

	s.Page(1)
	assertPosition(t, s, 24, 20)
}

func TestSession_StrictClampNoResults(t *testing.T) {
	s, _ := newSession(t, 0, query.WithStrictClamp(true))
	if _, err := s.Window(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.MoveCursor(5)
	assertPosition(t, s, 0, 0)
}

func TestSession_Selected(t *testing.T) {
	s, _ := newSession(t, 15)
	ctx := context.Background()

	s.MoveCursor(12)
	it, ok, err := s.Selected(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || it.Rank != 12 || it.KeyTerm != "Q:msg12@example.com" {
		t.Errorf("Selected() = %+v, %v", it, ok)
	}

	s.MoveCursor(5)
	if _, ok, _ := s.Selected(ctx); ok {
		t.Error("Selected() past the end should report no item")
	}
}

func TestSession_WindowError(t *testing.T) {
	boom := errors.New("boom")
	eng := &querytest.MockEngine{
		SearchFunc: func(context.Context, *search.Query, int, int) (*query.Window, error) {
			return nil, boom
		},
	}
	s := query.NewSession(eng, search.NewParser(nil), "")
	if _, err := s.Window(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Window() err = %v, want boom", err)
	}
	if s.Cached() {
		t.Error("failed fetch was cached")
	}
}

func TestSession_CursorInvariants(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for trial := 0; trial < 200; trial++ {
		s, _ := newSession(t, 0)
		s.SetPageSize(1 + r.IntN(15))
		for step := 0; step < 50; step++ {
			switch r.IntN(3) {
			case 0:
				s.MoveCursor(r.IntN(61) - 30)
			case 1:
				s.Page(r.IntN(3) - 1)
			case 2:
				s.MoveCursor(1 - 2*r.IntN(2))
			}
			c, o, ps := s.Cursor(), s.Offset(), s.PageSize()
			if c < 0 || o%ps != 0 || c < o || c >= o+ps {
				t.Fatalf("trial %d step %d: cursor=%d offset=%d pagesize=%d", trial, step, c, o, ps)
			}
		}
	}
}
