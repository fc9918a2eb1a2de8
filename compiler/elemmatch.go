package compiler

import "fmt"

// compileElemMatch implements §4.5. jsonPath is the container-form access
// path of the array field itself (e.g. data->'items').
func compileElemMatch(jsonPath string, operand any, params *ParamList) (Fragment, error) {
	doc, ok := asDoc(operand)
	if !ok {
		warnInvalidOperand("$elemMatch", "expected an object operand")
		return False, nil
	}

	primitiveMode := isOperatorObject(doc) && !hasLogicalKey(doc)

	var inner Fragment
	var err error
	if primitiveMode {
		inner, err = compilePrimitiveElemMatch(doc, params)
	} else {
		inner, err = compileDocument("elem", doc, params)
	}
	if err != nil {
		return Empty, err
	}

	if inner.IsEmpty() || inner.IsTrue() {
		return SQL(fmt.Sprintf(
			"(%s IS NOT NULL AND jsonb_typeof(%s) = 'array' AND jsonb_array_length(%s) > 0)",
			jsonPath, jsonPath, jsonPath,
		)), nil
	}
	if inner.IsFalse() {
		// No array element can satisfy an unconditionally false predicate.
		return False, nil
	}

	if primitiveMode {
		return SQL(fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(%s) as elem_val WHERE %s)",
			jsonPath, inner.Text(),
		)), nil
	}
	return SQL(fmt.Sprintf(
		"EXISTS (SELECT 1 FROM jsonb_array_elements(%s) as elem WHERE %s)",
		jsonPath, inner.Text(),
	)), nil
}

func hasLogicalKey(doc Doc) bool {
	for _, entry := range doc {
		if isLogicalKey(entry.Key) || entry.Key == "$not" {
			return true
		}
	}
	return false
}

// compilePrimitiveElemMatch handles $elemMatch's primitive mode: the array
// is expanded with jsonb_array_elements_text, giving a plain text value per
// element ("elem_val") with no surviving container/typeof information. Per
// the open question in the design notes, operators that only make sense
// against a real JSONB container ($exists, $size, $all, $type, a nested
// $elemMatch) are rejected here rather than silently compiling something
// meaningless; $eq/$ne against null are rejected for the same reason
// (text extraction cannot distinguish "missing" from the string "null").
func compilePrimitiveElemMatch(doc Doc, params *ParamList) (Fragment, error) {
	const accessPath = "elem_val"
	const jsonPath = "elem_val::jsonb"
	optionsVal, haveOptions := lookup(doc, "$options")

	var frags []Fragment
	for _, entry := range doc {
		op, value := entry.Key, entry.Value
		switch op {
		case "$options":
			continue
		case "$eq":
			if isUndefined(value) {
				return Empty, notMeaningfulInElemMatch("$eq undefined")
			}
			if value == nil {
				return Empty, notMeaningfulInElemMatch("$eq null")
			}
			frags = append(frags, buildEquality(accessPath, jsonPath, value, params))
		case "$ne":
			if value == nil {
				return Empty, notMeaningfulInElemMatch("$ne null")
			}
			frags = append(frags, buildNotEqual(accessPath, jsonPath, value, params))
		case "$gt", "$gte", "$lt", "$lte":
			frags = append(frags, buildComparison(accessPath, op, value))
		case "$in":
			arr, ok := asArray(value)
			if !ok {
				return Empty, notMeaningfulInElemMatch("$in expects an array")
			}
			frags = append(frags, buildIn(accessPath, jsonPath, arr, params))
		case "$nin":
			arr, ok := asArray(value)
			if !ok {
				return Empty, notMeaningfulInElemMatch("$nin expects an array")
			}
			frags = append(frags, buildNin(accessPath, jsonPath, arr, params))
		case "$regex":
			frags = append(frags, buildRegex(accessPath, value, optionsVal, haveOptions))
		case "$mod":
			frags = append(frags, buildMod(accessPath, value))
		case "$exists", "$size", "$all", "$type", "$elemMatch":
			return Empty, notMeaningfulInElemMatch(op)
		default:
			warnUnknownOperator(op)
		}
	}
	return andReduceFragments(frags), nil
}

func notMeaningfulInElemMatch(what string) error {
	return &InvalidOperandError{Operator: what, Reason: "not meaningful against $elemMatch's text-extracted elements"}
}
