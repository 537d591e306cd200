package corefs

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// TimeAttr selects which timestamp a Query's date range applies to.
type TimeAttr int

// The three timestamps a Query can filter on.
const (
	TimeAccess TimeAttr = iota
	TimeModification
	TimeCreation
)

// DateRange is an inclusive [Start, End] bound; a zero Start or End means
// unbounded on that side.
type DateRange struct {
	Start, End time.Time
}

// Contains reports whether t falls within the range, treating a zero
// boundary as unbounded.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Query describes a search request. The constituent providers each
// interpret the subset of fields relevant to them.
type Query struct {
	Tokens          []string // lowercased, NFD-normalized, whitespace-split
	Root            Location
	HasRoot         bool
	MimeTypes       map[string]bool
	DateRange       DateRange
	HasDateRange    bool
	Recursive       bool
	RemoteRecursive bool
	ShowHidden      bool
	TimeAttr        TimeAttr
}

// NewQuery tokenizes text the way spec.md §3 describes: split on whitespace,
// lowercase, NFD-normalize each token. Tokenization never fails; an empty or
// all-whitespace text yields zero tokens (a query that matches everything
// within its other constraints).
func NewQuery(text string) Query {
	return Query{Tokens: tokenize(text)}
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, unicode.IsSpace)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		lowered := strings.ToLower(f)
		tokens = append(tokens, norm.NFD.String(lowered))
	}
	return tokens
}

// WithRoot returns a copy of q scoped to root.
func (q Query) WithRoot(root Location) Query {
	q.Root = root
	q.HasRoot = true
	return q
}

// WithMimeTypes returns a copy of q restricted to the given mime types.
func (q Query) WithMimeTypes(mimeTypes ...string) Query {
	set := make(map[string]bool, len(mimeTypes))
	for _, m := range mimeTypes {
		set[m] = true
	}
	q.MimeTypes = set
	return q
}

// WithDateRange returns a copy of q restricted to the given range.
func (q Query) WithDateRange(r DateRange) Query {
	q.DateRange = r
	q.HasDateRange = true
	return q
}

// MatchesName reports whether displayName contains every token as a
// case-insensitive substring (the FilesystemProvider's matching rule).
func (q Query) MatchesName(displayName string) bool {
	if len(q.Tokens) == 0 {
		return true
	}
	normalized := norm.NFD.String(strings.ToLower(displayName))
	for _, tok := range q.Tokens {
		if !strings.Contains(normalized, tok) {
			return false
		}
	}
	return true
}
