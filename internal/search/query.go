// Package search parses query strings into term queries over the mail index.
package search

import (
	"strings"
	"time"
)

// Op is the operator of a query node.
type Op int

const (
	// OpTerm matches documents containing Term.
	OpTerm Op = iota
	// OpPhrase matches documents containing Terms at consecutive positions.
	OpPhrase
	// OpAnd matches documents matched by every subquery.
	OpAnd
	// OpOr matches documents matched by any subquery.
	OpOr
	// OpAndNot matches documents matched by the first subquery and none of
	// the others.
	OpAndNot
	// OpAndMaybe matches documents matched by the first subquery. The
	// others only add weight.
	OpAndMaybe
	// OpFilter matches documents matched by both subqueries. Only the first
	// contributes weight.
	OpFilter
	// OpMatchAll matches every document with zero weight.
	OpMatchAll
)

var opNames = map[Op]string{
	OpAnd:      "AND",
	OpOr:       "OR",
	OpAndNot:   "AND_NOT",
	OpAndMaybe: "AND_MAYBE",
	OpFilter:   "FILTER",
}

// Node is one node of a parsed query tree.
type Node struct {
	Op    Op
	Term  string   // OpTerm
	Terms []string // OpPhrase
	Sub   []*Node
}

// String renders the node in a compact parenthesized form.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	switch n.Op {
	case OpTerm:
		return n.Term
	case OpPhrase:
		return `"` + strings.Join(n.Terms, " ") + `"`
	case OpMatchAll:
		return "<all>"
	}
	parts := make([]string, len(n.Sub))
	for i, s := range n.Sub {
		parts[i] = s.String()
	}
	return "(" + strings.Join(parts, " "+opNames[n.Op]+" ") + ")"
}

// Query is a parsed query string.
type Query struct {
	// Raw is the string the query was parsed from.
	Raw string

	// Root is the term query. It is never nil; an empty query string parses
	// to OpMatchAll.
	Root *Node

	// After and Before restrict the send date. Documents without a
	// parseable date never match a date restriction.
	After  *time.Time
	Before *time.Time
}

// MatchesAll reports whether the query places no restriction at all.
func (q *Query) MatchesAll() bool {
	return q.Root != nil && q.Root.Op == OpMatchAll && q.After == nil && q.Before == nil
}

// String renders the query tree, for logs and debugging.
func (q *Query) String() string {
	s := q.Root.String()
	if q.After != nil {
		s += " after:" + q.After.Format("2006-01-02")
	}
	if q.Before != nil {
		s += " before:" + q.Before.Format("2006-01-02")
	}
	return s
}

func term(t string) *Node { return &Node{Op: OpTerm, Term: t} }

// combine joins nodes under op, flattening single-element lists.
func combine(op Op, nodes ...*Node) *Node {
	var kept []*Node
	for _, n := range nodes {
		if n != nil {
			kept = append(kept, n)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		if op == OpAnd || op == OpOr {
			return kept[0]
		}
	}
	return &Node{Op: op, Sub: kept}
}
