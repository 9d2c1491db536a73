package query

import (
	"context"
	"log/slog"

	"github.com/wesm/mailidx/internal/search"
)

// DefaultPageSize is the page size of a new Session.
const DefaultPageSize = 10

// Session holds the query, result window and cursor of an interactive
// browser.
//
// The cursor is an absolute rank. After any cursor movement the offset is a
// multiple of the page size and offset <= cursor < offset+pageSize. The
// cached window is dropped whenever the offset or the query changes.
type Session struct {
	engine Engine
	parser *search.Parser
	logger *slog.Logger

	raw   string
	query *search.Query

	offset   int
	pageSize int
	cursor   int

	window *Window
	// total is the estimated result count of the last fetch for the current
	// query, or -1 before the first fetch.
	total int

	strictClamp bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithStrictClamp stops the cursor at the last known result. By default the
// cursor may move past the end, paging into empty windows.
func WithStrictClamp(on bool) SessionOption {
	return func(s *Session) { s.strictClamp = on }
}

// WithSessionLogger sets the logger used for fetch diagnostics.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a session for queryString.
func NewSession(engine Engine, parser *search.Parser, queryString string, opts ...SessionOption) *Session {
	s := &Session{
		engine:   engine,
		parser:   parser,
		logger:   slog.Default(),
		pageSize: DefaultPageSize,
		total:    -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.raw = queryString
	s.query = parser.Parse(queryString)
	return s
}

// SetQuery replaces the query. Setting the current query string again does
// nothing, so the view keeps its position.
func (s *Session) SetQuery(queryString string) {
	if queryString == s.raw {
		return
	}
	s.raw = queryString
	s.query = s.parser.Parse(queryString)
	s.offset = 0
	s.cursor = 0
	s.total = -1
	s.invalidate()
}

// SetPageSize changes the page size. Values below one are raised to one.
// The cached window is kept until something else invalidates it.
func (s *Session) SetPageSize(n int) {
	if n < 1 {
		n = 1
	}
	if n != s.pageSize {
		s.pageSize = n
	}
}

// Window returns the results for the current page, fetching them on first
// use after an invalidation.
func (s *Session) Window(ctx context.Context) (*Window, error) {
	if s.window != nil {
		return s.window, nil
	}
	w, err := s.engine.Search(ctx, s.query, s.offset, s.pageSize)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fetched results", "query", s.raw, "offset", s.offset, "limit", s.pageSize, "items", w.Len(), "total", w.EstimatedTotal)
	s.window = w
	s.total = w.EstimatedTotal
	return w, nil
}

// MoveCursor moves the cursor by delta rows, shifting the offset one page at
// a time until the cursor is on the current page.
func (s *Session) MoveCursor(delta int) {
	s.cursor += delta
	s.constrainCursor()
	for s.cursor >= s.offset+s.pageSize {
		s.offset += s.pageSize
		s.invalidate()
	}
	for s.cursor < s.offset {
		s.offset -= s.pageSize
		s.invalidate()
	}
}

// Page moves to the previous (dir < 0) or next (dir > 0) page. The cursor
// first snaps to the start or end of its current page.
func (s *Session) Page(dir int) {
	start := s.pageSize * (s.cursor / s.pageSize)
	switch {
	case dir < 0:
		s.cursor = start
		s.MoveCursor(-1)
	case dir > 0:
		s.cursor = start + s.pageSize - 1
		s.MoveCursor(1)
	}
}

func (s *Session) constrainCursor() {
	if s.strictClamp && s.total >= 0 && s.cursor >= s.total {
		s.cursor = s.total - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

func (s *Session) invalidate() {
	s.window = nil
}

// Selected returns the item under the cursor. The boolean is false when the
// cursor is past the end of the results.
func (s *Session) Selected(ctx context.Context) (Item, bool, error) {
	w, err := s.Window(ctx)
	if err != nil {
		return Item{}, false, err
	}
	it, ok := w.At(s.cursor)
	return it, ok, nil
}

// Query returns the parsed query.
func (s *Session) Query() *search.Query { return s.query }

// QueryString returns the query as entered.
func (s *Session) QueryString() string { return s.raw }

func (s *Session) Offset() int   { return s.offset }
func (s *Session) Cursor() int   { return s.cursor }
func (s *Session) PageSize() int { return s.pageSize }

// Cached reports whether a window is cached.
func (s *Session) Cached() bool { return s.window != nil }
