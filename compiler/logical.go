package compiler

import "fmt"

// compileLogical implements §4.4's $and/$or/$nor: every sub-document is
// compiled against the current json-root regardless of whether an earlier
// sibling already resolved to TRUE/FALSE, so parameter numbering never
// depends on short-circuiting.
func compileLogical(root, key string, items []any, params *ParamList) (Fragment, error) {
	var survivors []string
	hasFalse := false
	hasTrue := false

	for _, item := range items {
		sub, ok := asDoc(item)
		if !ok {
			return Empty, fmt.Errorf("%s: expected an array of sub-documents", key)
		}
		frag, err := compileDocument(root, sub, params)
		if err != nil {
			return Empty, err
		}
		switch {
		case frag.IsFalse():
			hasFalse = true
		case frag.IsTrue():
			hasTrue = true
		case frag.IsEmpty():
		default:
			survivors = append(survivors, frag.Text())
		}
	}

	switch key {
	case "$and":
		if hasFalse {
			return False, nil
		}
		if len(survivors) == 0 {
			return True, nil
		}
		return SQL(andJoin(survivors)), nil
	case "$or":
		if hasTrue {
			return True, nil
		}
		if len(survivors) == 0 {
			return False, nil
		}
		return SQL(orJoin(survivors)), nil
	case "$nor":
		if hasTrue {
			return False, nil
		}
		if len(survivors) == 0 {
			return True, nil
		}
		return Not(SQL(orJoin(survivors))), nil
	default:
		return Empty, fmt.Errorf("unsupported logical operator %s", key)
	}
}

// compileDocumentNot implements §4.4's document-scope $not: the operand is
// compiled with the same document-level compiler regardless of whether its
// keys are field paths or nested logical operators — compileDocument
// already dispatches on key shape, so no separate "dummy access path"
// branch is needed.
func compileDocumentNot(root string, value any, params *ParamList) (Fragment, error) {
	doc, ok := asDoc(value)
	if !ok {
		return Empty, fmt.Errorf("$not: expected an object operand")
	}
	inner, err := compileDocument(root, doc, params)
	if err != nil {
		return Empty, err
	}
	return Not(inner), nil
}
