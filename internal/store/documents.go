package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/wesm/mailidx/internal/document"
)

type posting struct {
	term string
	wdf  int
}

type position struct {
	term string
	pos  int
}

// flatten folds a document's terms into postings and positions. Postings
// are sorted by term so inserts hit the primary key in order.
func flatten(doc *document.Document) ([]posting, []position, int) {
	wdf := make(map[string]int, len(doc.Terms)+len(doc.DateTerms))
	var positions []position
	length := 0
	for _, t := range doc.Terms {
		key := t.Key()
		w := t.Weight
		if w <= 0 {
			w = 1
		}
		wdf[key] += w
		length += w
		if t.Position > 0 {
			positions = append(positions, position{term: key, pos: t.Position})
		}
	}
	for _, key := range doc.DateTerms {
		wdf[key]++
		length++
	}

	postings := make([]posting, 0, len(wdf))
	for term, n := range wdf {
		postings = append(postings, posting{term: term, wdf: n})
	}
	sort.Slice(postings, func(i, j int) bool { return postings[i].term < postings[j].term })
	return postings, positions, length
}

// ReplaceDocument writes doc, replacing any document with the same key term.
// The replacement is atomic.
func (s *Store) ReplaceDocument(ctx context.Context, doc *document.Document) error {
	if err := s.writable(); err != nil {
		return err
	}
	if doc.KeyTerm == "" {
		return errors.New("replace document: empty key term")
	}
	payload, err := doc.Payload.Marshal()
	if err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	postings, positions, length := flatten(doc)

	var sentAt any
	if !doc.SentAt.IsZero() {
		sentAt = doc.SentAt.Unix()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := deleteByKey(ctx, tx, doc.KeyTerm); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		res, err := tx.ExecContext(ctx,
			"INSERT INTO documents (key_term, payload, length, sent_at) VALUES (?, ?, ?, ?)",
			doc.KeyTerm, payload, length, sentAt)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("document id: %w", err)
		}

		err = insertInChunks(ctx, tx, len(postings), 3,
			"INSERT INTO postings (term, doc_id, wdf) VALUES ",
			func(start, end int) ([]string, []any) {
				values := make([]string, 0, end-start)
				args := make([]any, 0, (end-start)*3)
				for _, p := range postings[start:end] {
					values = append(values, "(?, ?, ?)")
					args = append(args, p.term, id, p.wdf)
				}
				return values, args
			})
		if err != nil {
			return fmt.Errorf("insert postings: %w", err)
		}

		err = insertInChunks(ctx, tx, len(positions), 3,
			"INSERT OR IGNORE INTO positions (term, doc_id, pos) VALUES ",
			func(start, end int) ([]string, []any) {
				values := make([]string, 0, end-start)
				args := make([]any, 0, (end-start)*3)
				for _, p := range positions[start:end] {
					values = append(values, "(?, ?, ?)")
					args = append(args, p.term, id, p.pos)
				}
				return values, args
			})
		if err != nil {
			return fmt.Errorf("insert positions: %w", err)
		}
		return nil
	})
}

// DeleteDocument removes the document with the given key term. It returns
// ErrNotFound when there is none.
func (s *Store) DeleteDocument(ctx context.Context, keyTerm string) error {
	if err := s.writable(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return deleteByKey(ctx, tx, keyTerm)
	})
}

func deleteByKey(ctx context.Context, tx *sql.Tx, keyTerm string) error {
	var id int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE key_term = ?", keyTerm).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("look up document: %w", err)
	}
	for _, q := range []string{
		"DELETE FROM positions WHERE doc_id = ?",
		"DELETE FROM postings WHERE doc_id = ?",
		"DELETE FROM documents WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
	}
	return nil
}

// StoredDocument is a document as read back from the index.
type StoredDocument struct {
	ID      int64
	KeyTerm string
	Payload document.Payload
	Length  int
}

// Document returns the document with the given key term.
func (s *Store) Document(ctx context.Context, keyTerm string) (*StoredDocument, error) {
	var (
		d   StoredDocument
		raw []byte
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, key_term, payload, length FROM documents WHERE key_term = ?", keyTerm).
		Scan(&d.ID, &d.KeyTerm, &raw, &d.Length)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if d.Payload, err = document.DecodePayload(raw); err != nil {
		return nil, err
	}
	return &d, nil
}

// Terms returns the distinct terms of a document with their frequencies.
func (s *Store) Terms(ctx context.Context, keyTerm string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.term, p.wdf FROM postings p
		JOIN documents d ON d.id = p.doc_id
		WHERE d.key_term = ?`, keyTerm)
	if err != nil {
		return nil, fmt.Errorf("get terms: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var term string
		var wdf int
		if err := rows.Scan(&term, &wdf); err != nil {
			return nil, err
		}
		out[term] = wdf
	}
	return out, rows.Err()
}
