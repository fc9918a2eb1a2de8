// Package compiler translates MongoDB-shaped query and update documents into
// parameterized SQL text for a JSONB-backed Postgres table. It is pure: no
// connection, no context, no schema awareness. Every exported Build* call
// allocates a fresh parameter vector and returns independent output.
package compiler

import "strings"

type fragmentKind int

const (
	kindEmpty fragmentKind = iota
	kindTrue
	kindFalse
	kindSQL
)

// Fragment is the result of compiling any sub-expression: either "no
// constraint" (Empty), a symbolic TRUE/FALSE (propagated so callers can
// short-circuit without string comparison), or a boolean SQL expression.
type Fragment struct {
	kind fragmentKind
	sql  string
}

var (
	Empty = Fragment{kind: kindEmpty}
	True  = Fragment{kind: kindTrue}
	False = Fragment{kind: kindFalse}
)

// SQL wraps a literal boolean SQL expression as a Fragment.
func SQL(text string) Fragment {
	return Fragment{kind: kindSQL, sql: text}
}

func (f Fragment) IsEmpty() bool { return f.kind == kindEmpty }
func (f Fragment) IsTrue() bool  { return f.kind == kindTrue }
func (f Fragment) IsFalse() bool { return f.kind == kindFalse }

// Text renders the fragment as SQL text. Empty renders as "".
func (f Fragment) Text() string {
	switch f.kind {
	case kindTrue:
		return "TRUE"
	case kindFalse:
		return "FALSE"
	case kindSQL:
		return f.sql
	default:
		return ""
	}
}

// Not inverts a fragment per the $not rule shared by field-scope and
// document-scope negation: empty/TRUE collapse to FALSE, FALSE becomes
// TRUE, anything else is wrapped as NOT (...).
func Not(f Fragment) Fragment {
	switch {
	case f.IsEmpty(), f.IsTrue():
		return False
	case f.IsFalse():
		return True
	default:
		return SQL("NOT (" + f.Text() + ")")
	}
}

// andJoin joins non-empty, non-TRUE fragments with AND: a single survivor
// is returned unbracketed, two or more are wrapped in one pair of
// parentheses.
func andJoin(parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

func orJoin(parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}
