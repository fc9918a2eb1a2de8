package compiler

import "strings"

// compileDocument implements §4.6: the document-level compilation loop and
// TRUE propagation. root is the container-path prefix for the current
// json scope ("data" at the top level, or an $elemMatch alias).
func compileDocument(root string, doc Doc, params *ParamList) (Fragment, error) {
	var parts []string
	trivial := false

	for _, entry := range doc {
		key, value := entry.Key, entry.Value

		switch {
		case key == "$where":
			return Empty, ErrUnsupportedWhere

		case key == "$text":
			trivial = true
			continue

		case key == "$and" || key == "$or" || key == "$nor":
			arr, ok := asArray(value)
			if !ok {
				return Empty, errExpectedArray(key)
			}
			frag, err := compileLogical(root, key, arr, params)
			if err != nil {
				return Empty, err
			}
			if !appendFrag(&parts, &trivial, frag) {
				return False, nil
			}

		case key == "$not":
			frag, err := compileDocumentNot(root, value, params)
			if err != nil {
				return Empty, err
			}
			if !appendFrag(&parts, &trivial, frag) {
				return False, nil
			}

		case strings.HasPrefix(key, "$"):
			warnUnknownOperator(key)
			continue

		default:
			frag, err := compileFieldValue(root, key, value, params)
			if err != nil {
				return Empty, err
			}
			if !appendFrag(&parts, &trivial, frag) {
				return False, nil
			}
		}
	}

	if len(parts) == 0 {
		if trivial {
			return True, nil
		}
		return Empty, nil
	}
	if len(parts) == 1 {
		return SQL(parts[0]), nil
	}
	return SQL(strings.Join(parts, " AND ")), nil
}

// appendFrag folds one compiled fragment into the running AND-join state.
// Returns false if the whole document short-circuits to FALSE.
func appendFrag(parts *[]string, trivial *bool, frag Fragment) bool {
	switch {
	case frag.IsFalse():
		return false
	case frag.IsTrue():
		*trivial = true
	case !frag.IsEmpty():
		*parts = append(*parts, frag.Text())
	}
	return true
}

func errExpectedArray(key string) error {
	return &InvalidOperandError{Operator: key, Reason: "expected an array of sub-documents"}
}
