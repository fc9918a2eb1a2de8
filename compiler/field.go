package compiler

// andReduceFragments implements the field-level "if multiple operators are
// present, join with AND and wrap in one pair of parentheses" rule from
// §4.3, generalized with the usual TRUE/FALSE/Empty propagation.
func andReduceFragments(frags []Fragment) Fragment {
	var survivors []string
	for _, f := range frags {
		if f.IsFalse() {
			return False
		}
		if f.IsEmpty() || f.IsTrue() {
			continue
		}
		survivors = append(survivors, f.Text())
	}
	if len(survivors) == 0 {
		return True
	}
	return SQL(andJoin(survivors))
}

// compileFieldOperatorObject implements §4.3: dispatch each operator in an
// operator object to its clause and AND-combine the results.
func compileFieldOperatorObject(root, fieldPath string, opObj Doc, params *ParamList) (Fragment, error) {
	jsonPath, accessPath := buildPaths(root, fieldPath)
	optionsVal, haveOptions := lookup(opObj, "$options")

	var frags []Fragment
	for _, entry := range opObj {
		op, value := entry.Key, entry.Value
		switch op {
		case "$options":
			// consumed only as a sibling of $regex, never its own clause.
			continue
		case "$eq":
			if isUndefined(value) {
				frags = append(frags, SQL(jsonPath+" IS NULL"))
				continue
			}
			frags = append(frags, buildEquality(accessPath, jsonPath, value, params))
		case "$ne":
			frags = append(frags, buildNotEqual(accessPath, jsonPath, value, params))
		case "$gt", "$gte", "$lt", "$lte":
			frags = append(frags, buildComparison(accessPath, op, value))
		case "$in":
			arr, ok := asArray(value)
			if !ok {
				warnInvalidOperand(op, "expected an array")
				frags = append(frags, False)
				continue
			}
			frags = append(frags, buildIn(accessPath, jsonPath, arr, params))
		case "$nin":
			arr, ok := asArray(value)
			if !ok {
				warnInvalidOperand(op, "expected an array")
				frags = append(frags, True)
				continue
			}
			frags = append(frags, buildNin(accessPath, jsonPath, arr, params))
		case "$exists":
			frags = append(frags, buildExists(jsonPath, value))
		case "$regex":
			frags = append(frags, buildRegex(accessPath, value, optionsVal, haveOptions))
		case "$mod":
			frags = append(frags, buildMod(accessPath, value))
		case "$size":
			frags = append(frags, buildSize(jsonPath, value))
		case "$all":
			frags = append(frags, buildAllOp(jsonPath, value))
		case "$elemMatch":
			frag, err := compileElemMatch(jsonPath, value, params)
			if err != nil {
				return Empty, err
			}
			frags = append(frags, frag)
		case "$type":
			frags = append(frags, buildTypeOp(jsonPath, value))
		case "$not":
			inner, err := compileFieldValue(root, fieldPath, value, params)
			if err != nil {
				return Empty, err
			}
			frags = append(frags, Not(inner))
		case "$where":
			return Empty, ErrUnsupportedWhere
		case "$search":
			// field-level $search: unsupported, contributes nothing.
		default:
			warnUnknownOperator(op)
		}
	}
	return andReduceFragments(frags), nil
}

// compileFieldValue compiles the value bound to a field path: an operator
// object dispatches through §4.3, anything else is an equality operand
// (§4.2). Used both for top-level field processing and for $not's
// field-scope recursion.
func compileFieldValue(root, fieldPath string, value any, params *ParamList) (Fragment, error) {
	if doc, ok := asDoc(value); ok && isOperatorObject(doc) {
		return compileFieldOperatorObject(root, fieldPath, doc, params)
	}
	jsonPath, accessPath := buildPaths(root, fieldPath)
	if isUndefined(value) {
		return SQL(jsonPath + " IS NULL"), nil
	}
	return buildEquality(accessPath, jsonPath, value, params), nil
}
