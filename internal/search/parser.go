package search

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/wesm/mailidx/internal/document"
	"github.com/wesm/mailidx/internal/terms"
)

// FieldPrefixes maps query field names to the term prefixes they search.
var FieldPrefixes = map[string]string{
	"author":   document.PrefixAuthor,
	"from":     document.PrefixAuthor,
	"to":       document.PrefixRecipient,
	"cc":       document.PrefixRecipient,
	"subject":  document.PrefixSubject,
	"title":    document.PrefixSubject,
	"file":     document.PrefixFilename,
	"filename": document.PrefixFilename,
}

// BooleanPrefixes maps filter field names to date bucket prefixes. Filters
// restrict the match set without affecting ranking. Filters on the same
// field are ORed together; filters on different fields are ANDed.
var BooleanPrefixes = map[string]string{
	"year":      document.PrefixYear,
	"month":     document.PrefixMonth,
	"day":       document.PrefixDay,
	"date":      document.PrefixDay,
	"fortnight": document.PrefixFortnight,
}

// dateOperator handles a date range operator by applying it to the query.
type dateOperator func(q *Query, value string, now time.Time)

var dateOperators = map[string]dateOperator{
	"before": func(q *Query, v string, _ time.Time) {
		if t := parseDate(v); t != nil {
			q.Before = t
		}
	},
	"after": func(q *Query, v string, _ time.Time) {
		if t := parseDate(v); t != nil {
			q.After = t
		}
	},
	"older_than": func(q *Query, v string, now time.Time) {
		if t := parseRelativeDate(v, now); t != nil {
			q.Before = t
		}
	},
	"newer_than": func(q *Query, v string, now time.Time) {
		if t := parseRelativeDate(v, now); t != nil {
			q.After = t
		}
	},
}

// Parser turns query strings into term queries. It must use the stemmer
// the index was built with.
type Parser struct {
	Stemmer terms.Stemmer
	Now     func() time.Time // Time source (mockable for testing)
}

// NewParser creates a Parser using stem. A nil stemmer leaves words as they
// are.
func NewParser(stem terms.Stemmer) *Parser {
	if stem == nil {
		stem = terms.Identity
	}
	return &Parser{Stemmer: stem, Now: func() time.Time { return time.Now().UTC() }}
}

type itemKind int

const (
	itemOperand itemKind = iota
	itemAnd
	itemOr
	itemNot
)

type item struct {
	kind itemKind
	node *Node
}

// Parse parses a query string.
//
// Supported syntax:
//   - bare words: a lowercase word matches its stem, a capitalized word
//     matches the capitalized form exactly
//   - "quoted phrases": words at consecutive positions
//   - field:value for author/from, to/cc, subject/title, file/filename
//   - year:, month:, day:/date:, fortnight: date bucket filters
//   - before:, after: (YYYY-MM-DD) and older_than:, newer_than: (7d, 2w, 1m, 1y)
//   - +required and -excluded operands
//   - AND, OR and NOT between operands; adjacent operands are ORed and
//     AND/NOT bind tighter than OR
//
// An empty query matches every document.
func (p *Parser) Parse(queryStr string) *Query {
	q := &Query{Raw: queryStr}
	now := time.Now().UTC()
	if p.Now != nil {
		now = p.Now()
	}

	var (
		seq           []item
		must, mustNot []*Node
		filterOrder   []string
		filters       = map[string][]*Node{}
	)

	for _, token := range tokenize(queryStr) {
		switch token {
		case "AND":
			seq = append(seq, item{kind: itemAnd})
			continue
		case "OR":
			seq = append(seq, item{kind: itemOr})
			continue
		case "NOT":
			seq = append(seq, item{kind: itemNot})
			continue
		}

		var mod byte
		if len(token) > 1 && (token[0] == '+' || token[0] == '-') {
			mod = token[0]
			token = token[1:]
		}

		if field, value, ok := splitField(token); ok {
			if handler, ok := dateOperators[field]; ok {
				handler(q, value, now)
				continue
			}
			if prefix, ok := BooleanPrefixes[field]; ok {
				f := term(filterTerm(prefix, value))
				if mod == '-' {
					mustNot = append(mustNot, f)
					continue
				}
				if _, seen := filters[prefix]; !seen {
					filterOrder = append(filterOrder, prefix)
				}
				filters[prefix] = append(filters[prefix], f)
				continue
			}
		}

		node := p.operand(token)
		if node == nil {
			continue
		}
		switch mod {
		case '+':
			must = append(must, node)
		case '-':
			mustNot = append(mustNot, node)
		default:
			seq = append(seq, item{node: node})
		}
	}

	root, negated := parseExpr(seq)
	mustNot = append(mustNot, negated...)

	if len(must) > 0 {
		required := combine(OpAnd, must...)
		if root != nil {
			root = &Node{Op: OpAndMaybe, Sub: []*Node{required, root}}
		} else {
			root = required
		}
	}
	if len(mustNot) > 0 {
		if root == nil {
			root = &Node{Op: OpMatchAll}
		}
		root = &Node{Op: OpAndNot, Sub: append([]*Node{root}, mustNot...)}
	}
	if len(filterOrder) > 0 {
		groups := make([]*Node, 0, len(filterOrder))
		for _, prefix := range filterOrder {
			groups = append(groups, combine(OpOr, filters[prefix]...))
		}
		if root == nil {
			root = &Node{Op: OpMatchAll}
		}
		root = &Node{Op: OpFilter, Sub: []*Node{root, combine(OpAnd, groups...)}}
	}
	if root == nil {
		root = &Node{Op: OpMatchAll}
	}
	q.Root = root
	return q
}

// operand converts a free-text, phrase or field token into a node. It
// returns nil when the token yields no terms.
func (p *Parser) operand(token string) *Node {
	if field, value, ok := splitField(token); ok {
		if prefix, ok := FieldPrefixes[field]; ok {
			// Field terms are unpositioned, so several words must all match
			// rather than form a phrase.
			var nodes []*Node
			for _, t := range p.queryTerms(unquote(value), prefix) {
				nodes = append(nodes, term(t))
			}
			return combine(OpAnd, nodes...)
		}
	}

	ts := p.queryTerms(unquote(token), "")
	switch len(ts) {
	case 0:
		return nil
	case 1:
		return term(ts[0])
	}
	return &Node{Op: OpPhrase, Terms: ts}
}

// queryTerms extracts the terms to search for from text. A capitalized word
// is searched by its capitalized variant only; others by their stem.
func (p *Parser) queryTerms(text, prefix string) []string {
	var out []string
	pending := ""
	for _, t := range terms.Collect(text, prefix, p.Stemmer, nil) {
		if t.Capitalized {
			pending = t.Key()
			continue
		}
		if pending != "" {
			out = append(out, pending)
			pending = ""
			continue
		}
		out = append(out, t.Key())
	}
	return out
}

// parseExpr combines operands joined by implicit OR and explicit AND, OR
// and NOT. Operands negated by a leading NOT are returned separately.
func parseExpr(seq []item) (*Node, []*Node) {
	var (
		ors     []*Node
		negated []*Node
		cur     *Node
		pending itemKind = itemOperand
	)
	for _, it := range seq {
		switch it.kind {
		case itemAnd, itemNot:
			pending = it.kind
		case itemOr:
			if cur != nil {
				ors = append(ors, cur)
				cur = nil
			}
			pending = itemOperand
		default:
			switch {
			case pending == itemAnd && cur != nil:
				cur = and(cur, it.node)
			case pending == itemNot && cur != nil:
				cur = &Node{Op: OpAndNot, Sub: []*Node{cur, it.node}}
			case pending == itemNot:
				negated = append(negated, it.node)
			default:
				if cur != nil {
					ors = append(ors, cur)
				}
				cur = it.node
			}
			pending = itemOperand
		}
	}
	if cur != nil {
		ors = append(ors, cur)
	}
	return combine(OpOr, ors...), negated
}

func and(left, right *Node) *Node {
	if left.Op == OpAnd {
		left.Sub = append(left.Sub, right)
		return left
	}
	return &Node{Op: OpAnd, Sub: []*Node{left, right}}
}

// splitField splits a field:value token. The field is lowercased.
func splitField(token string) (field, value string, ok bool) {
	idx := strings.Index(token, ":")
	if idx <= 0 || idx == len(token)-1 || strings.HasPrefix(token, `"`) {
		return "", "", false
	}
	return strings.ToLower(token[:idx]), token[idx+1:], true
}

// filterTerm builds a date bucket term. Values may be given as bucket
// digits ("202401") or as a date in any format parseDate accepts.
func filterTerm(prefix, value string) string {
	value = strings.TrimSpace(unquote(value))
	if t := parseDate(value); t != nil {
		buckets := document.DateTerms(*t)
		switch prefix {
		case document.PrefixDay:
			return buckets[0]
		case document.PrefixMonth:
			return buckets[1]
		case document.PrefixYear:
			return buckets[2]
		case document.PrefixFortnight:
			return buckets[3]
		}
	}
	if prefix == document.PrefixMonth {
		for _, layout := range []string{"2006-01", "2006/01", "Jan 2006", "January 2006"} {
			if t, err := time.Parse(layout, value); err == nil {
				return document.PrefixMonth + t.Format("200601")
			}
		}
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, value)
	if digits == "" {
		digits = strings.ToLower(value)
	}
	return prefix + digits
}

// unquote removes surrounding double quotes from a string if present. An
// unterminated quote is dropped.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return strings.TrimPrefix(s, `"`)
}

// tokenize splits a query string on whitespace, keeping quoted sections
// inside the token they belong to, so subject:"foo bar" and -"foo bar"
// stay whole. A closing quote ends the token.
func tokenize(queryStr string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, char := range queryStr {
		switch {
		case char == '"':
			current.WriteRune(char)
			inQuotes = !inQuotes
			if !inQuotes {
				flush()
			}
		case unicode.IsSpace(char) && !inQuotes:
			flush()
		default:
			current.WriteRune(char)
		}
	}
	flush()

	return tokens
}

// parseDate parses date strings like YYYY-MM-DD or YYYY/MM/DD.
func parseDate(value string) *time.Time {
	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"20060102",
		"01/02/2006",
		"02/01/2006",
	}

	value = strings.TrimSpace(value)
	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

var relativeDateRe = regexp.MustCompile(`^(\d+)([dwmy])$`)

// parseRelativeDate parses relative dates like 7d, 2w, 1m, 1y relative to now.
func parseRelativeDate(value string, now time.Time) *time.Time {
	value = strings.TrimSpace(strings.ToLower(value))
	match := relativeDateRe.FindStringSubmatch(value)
	if match == nil {
		return nil
	}

	amount, _ := strconv.Atoi(match[1])
	unit := match[2]

	var result time.Time
	switch unit {
	case "d":
		result = now.AddDate(0, 0, -amount)
	case "w":
		result = now.AddDate(0, 0, -amount*7)
	case "m":
		result = now.AddDate(0, -amount, 0)
	case "y":
		result = now.AddDate(-amount, 0, 0)
	default:
		return nil
	}

	return &result
}

// Parse is a convenience function that parses without stemming.
func Parse(queryStr string) *Query {
	return NewParser(nil).Parse(queryStr)
}

// HighlightWords returns the words of queryStr that a matching document
// should visibly contain: free text and field values, without operators,
// exclusions or date filters.
func HighlightWords(queryStr string) []string {
	var words []string
	seen := make(map[string]bool)
	for _, token := range tokenize(queryStr) {
		switch token {
		case "AND", "OR", "NOT":
			continue
		}
		if token[0] == '-' && len(token) > 1 {
			continue
		}
		token = strings.TrimPrefix(token, "+")
		if field, value, ok := splitField(token); ok {
			if _, ok := dateOperators[field]; ok {
				continue
			}
			if _, ok := BooleanPrefixes[field]; ok {
				continue
			}
			if _, ok := FieldPrefixes[field]; ok {
				token = value
			}
		}
		for _, w := range strings.Fields(unquote(token)) {
			lower := strings.ToLower(w)
			if !seen[lower] {
				seen[lower] = true
				words = append(words, w)
			}
		}
	}
	return words
}
