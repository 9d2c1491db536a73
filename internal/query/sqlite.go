package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/wesm/mailidx/internal/document"
	"github.com/wesm/mailidx/internal/search"
	"github.com/wesm/mailidx/internal/store"
)

// Default BM25 parameters.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// SQLiteEngine implements Engine over the store's SQLite tables. Results
// are ranked with BM25; ties, including every result of a pure filter
// query, are ordered newest first.
type SQLiteEngine struct {
	db *sql.DB
	k1 float64
	b  float64
}

// NewSQLiteEngine creates a new SQLite-backed query engine.
func NewSQLiteEngine(db *sql.DB) *SQLiteEngine {
	return &SQLiteEngine{db: db, k1: DefaultK1, b: DefaultB}
}

// SetBM25 overrides the ranking parameters.
func (e *SQLiteEngine) SetBM25(k1, b float64) {
	e.k1, e.b = k1, b
}

var _ Engine = (*SQLiteEngine)(nil)

// Document returns the payload stored under keyTerm.
func (e *SQLiteEngine) Document(ctx context.Context, keyTerm string) (*document.Payload, error) {
	var raw []byte
	err := e.db.QueryRowContext(ctx, "SELECT payload FROM documents WHERE key_term = ?", keyTerm).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	p, err := document.DecodePayload(raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Search runs q and returns the window [offset, offset+limit).
func (e *SQLiteEngine) Search(ctx context.Context, q *search.Query, offset, limit int) (*Window, error) {
	if offset < 0 {
		offset = 0
	}
	if q == nil || q.MatchesAll() {
		return e.searchAll(ctx, offset, limit)
	}

	ev, err := e.newEvaluator(ctx)
	if err != nil {
		return nil, err
	}
	matches, err := ev.eval(q.Root)
	if err != nil {
		return nil, err
	}

	ranked, err := e.rank(ctx, matches, q)
	if err != nil {
		return nil, err
	}

	w := &Window{Offset: offset, EstimatedTotal: len(ranked)}
	if offset >= len(ranked) || limit <= 0 {
		return w, nil
	}
	page := ranked[offset:min(offset+limit, len(ranked))]

	ids := make([]int64, len(page))
	for i, r := range page {
		ids[i] = r.id
	}
	docs, err := e.fetchPayloads(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i, r := range page {
		d, ok := docs[r.id]
		if !ok {
			continue
		}
		w.Items = append(w.Items, Item{
			Rank:    offset + i,
			KeyTerm: d.KeyTerm,
			Payload: d.Payload,
			Score:   r.score,
		})
	}
	return w, nil
}

// searchAll pages through every document, newest first.
func (e *SQLiteEngine) searchAll(ctx context.Context, offset, limit int) (*Window, error) {
	w := &Window{Offset: offset}
	if err := e.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&w.EstimatedTotal); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if limit <= 0 {
		return w, nil
	}

	rows, err := e.db.QueryContext(ctx, `
		SELECT key_term, payload FROM documents
		ORDER BY sent_at IS NULL, sent_at DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			raw []byte
		)
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		p, err := document.DecodePayload(raw)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", key, err)
		}
		w.Items = append(w.Items, Item{Rank: offset + len(w.Items), KeyTerm: key, Payload: p})
	}
	return w, rows.Err()
}

type ranked struct {
	id     int64
	score  float64
	sentAt sql.NullInt64
}

// rank applies the query's date range and orders matches by score, then
// date, then insertion order.
func (e *SQLiteEngine) rank(ctx context.Context, matches matchSet, q *search.Query) ([]ranked, error) {
	ids := make([]int64, 0, len(matches))
	for id := range matches {
		ids = append(ids, id)
	}
	sentAt, err := e.fetchSentAt(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ranked, 0, len(ids))
	for _, id := range ids {
		ts := sentAt[id]
		if q.After != nil || q.Before != nil {
			if !ts.Valid {
				continue
			}
			if q.After != nil && ts.Int64 < q.After.Unix() {
				continue
			}
			if q.Before != nil && ts.Int64 >= q.Before.Unix() {
				continue
			}
		}
		out = append(out, ranked{id: id, score: matches[id], sentAt: ts})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.sentAt.Valid != b.sentAt.Valid {
			return a.sentAt.Valid
		}
		if a.sentAt.Int64 != b.sentAt.Int64 {
			return a.sentAt.Int64 > b.sentAt.Int64
		}
		return a.id > b.id
	})
	return out, nil
}

// inChunkSize keeps IN lists under SQLite's bound parameter limit.
const inChunkSize = 500

// forChunks runs fn over successive slices of ids, each with matching
// placeholders and arguments.
func forChunks(ids []int64, fn func(placeholders string, args []any) error) error {
	for start := 0; start < len(ids); start += inChunkSize {
		chunk := ids[start:min(start+inChunkSize, len(ids))]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		if err := fn(placeholders, args); err != nil {
			return err
		}
	}
	return nil
}

func (e *SQLiteEngine) fetchSentAt(ctx context.Context, ids []int64) (map[int64]sql.NullInt64, error) {
	out := make(map[int64]sql.NullInt64, len(ids))
	err := forChunks(ids, func(placeholders string, args []any) error {
		rows, err := e.db.QueryContext(ctx,
			"SELECT id, sent_at FROM documents WHERE id IN ("+placeholders+")", args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var ts sql.NullInt64
			if err := rows.Scan(&id, &ts); err != nil {
				return err
			}
			out[id] = ts
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("fetch dates: %w", err)
	}
	return out, nil
}

type storedPayload struct {
	KeyTerm string
	Payload document.Payload
}

func (e *SQLiteEngine) fetchPayloads(ctx context.Context, ids []int64) (map[int64]storedPayload, error) {
	out := make(map[int64]storedPayload, len(ids))
	err := forChunks(ids, func(placeholders string, args []any) error {
		rows, err := e.db.QueryContext(ctx,
			"SELECT id, key_term, payload FROM documents WHERE id IN ("+placeholders+")", args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				id  int64
				key string
				raw []byte
			)
			if err := rows.Scan(&id, &key, &raw); err != nil {
				return err
			}
			p, err := document.DecodePayload(raw)
			if err != nil {
				return fmt.Errorf("document %s: %w", key, err)
			}
			out[id] = storedPayload{KeyTerm: key, Payload: p}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("fetch payloads: %w", err)
	}
	return out, nil
}

// bm25 scores one term occurrence count in a document.
func bm25(k1, b float64, wdf, length int, df, n int, avgLength float64) float64 {
	if wdf <= 0 || df <= 0 {
		return 0
	}
	idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
	norm := 1.0
	if avgLength > 0 {
		norm = 1 - b + b*float64(length)/avgLength
	}
	tf := float64(wdf)
	return idf * tf * (k1 + 1) / (tf + k1*norm)
}
