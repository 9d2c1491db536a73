package query

import (
	"context"
	"fmt"

	"github.com/wesm/mailidx/internal/search"
)

// matchSet maps matching document ids to their scores.
type matchSet map[int64]float64

type posting struct {
	wdf    int
	length int
}

// evaluator walks a query tree for one search. Postings and positions are
// loaded at most once per term.
type evaluator struct {
	ctx       context.Context
	e         *SQLiteEngine
	docs      int
	avgLength float64
	postings  map[string]map[int64]posting
}

func (e *SQLiteEngine) newEvaluator(ctx context.Context) (*evaluator, error) {
	ev := &evaluator{ctx: ctx, e: e, postings: map[string]map[int64]posting{}}
	err := e.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(length), 0) FROM documents").Scan(&ev.docs, &ev.avgLength)
	if err != nil {
		return nil, fmt.Errorf("collection stats: %w", err)
	}
	return ev, nil
}

func (ev *evaluator) eval(n *search.Node) (matchSet, error) {
	if err := ev.ctx.Err(); err != nil {
		return nil, err
	}
	switch n.Op {
	case search.OpTerm:
		return ev.term(n.Term)
	case search.OpPhrase:
		return ev.phrase(n.Terms)
	case search.OpMatchAll:
		return ev.all()
	}

	if len(n.Sub) == 0 {
		return matchSet{}, nil
	}
	sets := make([]matchSet, len(n.Sub))
	for i, s := range n.Sub {
		m, err := ev.eval(s)
		if err != nil {
			return nil, err
		}
		sets[i] = m
	}

	out := matchSet{}
	switch n.Op {
	case search.OpAnd:
		for id, score := range sets[0] {
			total, ok := score, true
			for _, s := range sets[1:] {
				v, found := s[id]
				if !found {
					ok = false
					break
				}
				total += v
			}
			if ok {
				out[id] = total
			}
		}
	case search.OpOr:
		for _, s := range sets {
			for id, v := range s {
				out[id] += v
			}
		}
	case search.OpAndNot:
	next:
		for id, score := range sets[0] {
			for _, s := range sets[1:] {
				if _, found := s[id]; found {
					continue next
				}
			}
			out[id] = score
		}
	case search.OpAndMaybe:
		for id, score := range sets[0] {
			for _, s := range sets[1:] {
				score += s[id]
			}
			out[id] = score
		}
	case search.OpFilter:
		for id, score := range sets[0] {
			ok := true
			for _, s := range sets[1:] {
				if _, found := s[id]; !found {
					ok = false
					break
				}
			}
			if ok {
				out[id] = score
			}
		}
	default:
		return nil, fmt.Errorf("unknown query operator %d", n.Op)
	}
	return out, nil
}

func (ev *evaluator) loadPostings(term string) (map[int64]posting, error) {
	if p, ok := ev.postings[term]; ok {
		return p, nil
	}
	rows, err := ev.e.db.QueryContext(ev.ctx, `
		SELECT p.doc_id, p.wdf, d.length
		FROM postings p
		JOIN documents d ON d.id = p.doc_id
		WHERE p.term = ?`, term)
	if err != nil {
		return nil, fmt.Errorf("load postings for %q: %w", term, err)
	}
	defer rows.Close()

	out := map[int64]posting{}
	for rows.Next() {
		var id int64
		var p posting
		if err := rows.Scan(&id, &p.wdf, &p.length); err != nil {
			return nil, err
		}
		out[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	ev.postings[term] = out
	return out, nil
}

func (ev *evaluator) term(t string) (matchSet, error) {
	postings, err := ev.loadPostings(t)
	if err != nil {
		return nil, err
	}
	out := make(matchSet, len(postings))
	for id, p := range postings {
		out[id] = bm25(ev.e.k1, ev.e.b, p.wdf, p.length, len(postings), ev.docs, ev.avgLength)
	}
	return out, nil
}

func (ev *evaluator) all() (matchSet, error) {
	rows, err := ev.e.db.QueryContext(ev.ctx, "SELECT id FROM documents")
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	out := matchSet{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = 0
	}
	return out, rows.Err()
}

// phrase matches documents holding terms at consecutive positions. The
// score is the sum of the term scores.
func (ev *evaluator) phrase(terms []string) (matchSet, error) {
	candidates := matchSet{}
	for i, t := range terms {
		m, err := ev.term(t)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			candidates = m
			continue
		}
		for id := range candidates {
			v, ok := m[id]
			if !ok {
				delete(candidates, id)
				continue
			}
			candidates[id] += v
		}
	}
	if len(candidates) == 0 || len(terms) < 2 {
		return candidates, nil
	}

	positions := make([]map[int64]map[int]bool, len(terms))
	for i, t := range terms {
		p, err := ev.loadPositions(t, candidates)
		if err != nil {
			return nil, err
		}
		positions[i] = p
	}

	out := matchSet{}
	for id, score := range candidates {
		if hasPhrase(positions, id) {
			out[id] = score
		}
	}
	return out, nil
}

func hasPhrase(positions []map[int64]map[int]bool, id int64) bool {
	for start := range positions[0][id] {
		ok := true
		for i := 1; i < len(positions); i++ {
			if !positions[i][id][start+i] {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (ev *evaluator) loadPositions(term string, docs matchSet) (map[int64]map[int]bool, error) {
	ids := make([]int64, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	out := map[int64]map[int]bool{}
	err := forChunks(ids, func(placeholders string, args []any) error {
		rows, err := ev.e.db.QueryContext(ev.ctx,
			"SELECT doc_id, pos FROM positions WHERE term = ? AND doc_id IN ("+placeholders+")",
			append([]any{term}, args...)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var pos int
			if err := rows.Scan(&id, &pos); err != nil {
				return err
			}
			if out[id] == nil {
				out[id] = map[int]bool{}
			}
			out[id][pos] = true
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("load positions for %q: %w", term, err)
	}
	return out, nil
}
