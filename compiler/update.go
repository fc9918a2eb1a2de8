package compiler

import (
	"fmt"

	"github.com/goccy/go-json"
)

// UpdateExpr is the result of compiling an update-operator document: a
// single SQL expression (independently $N-numbered, starting at 1) plus
// its parameter vector.
type UpdateExpr struct {
	SQL    string
	Params []any
}

// BuildUpdate implements §4.8: folds $set and $inc into a single nested
// jsonb_set_lax(...) expression rooted at jsonField (default "data").
// Returns (nil, nil) if no supported operator applied anything — the
// model layer treats that as "no effect" per §4.8.
func BuildUpdate(updateOps Doc, jsonField string) (*UpdateExpr, error) {
	if jsonField == "" {
		jsonField = "data"
	}
	params := newParamList()
	cur := jsonField
	applied := false

	for _, opEntry := range updateOps {
		op := opEntry.Key
		subDoc, ok := asDoc(opEntry.Value)
		if !ok {
			return nil, &InvalidOperandError{Operator: op, Reason: "expected an object of path -> value"}
		}

		switch op {
		case "$set":
			for _, fieldEntry := range subDoc {
				pathLit := buildPathLiteral(pathSegments(fieldEntry.Key))
				encoded, err := json.Marshal(fieldEntry.Value)
				if err != nil {
					return nil, err
				}
				idx := params.Append(string(encoded))
				cur = fmt.Sprintf("jsonb_set_lax(%s::jsonb, %s, $%d::jsonb, true)", cur, pathLit, idx)
				applied = true
			}
		case "$inc":
			for _, fieldEntry := range subDoc {
				if !isNumber(fieldEntry.Value) {
					warnInvalidOperand("$inc", "expected a numeric value")
					continue
				}
				pathLit := buildPathLiteral(pathSegments(fieldEntry.Key))
				fieldJSONPath, _ := buildPaths(jsonField, fieldEntry.Key)
				idx := params.Append(fieldEntry.Value)
				cur = fmt.Sprintf(
					"jsonb_set_lax(%s::jsonb, %s, to_jsonb(COALESCE((%s)::numeric, 0) + $%d::numeric), true)",
					cur, pathLit, fieldJSONPath, idx,
				)
				applied = true
			}
		default:
			warnUnknownOperator(op)
		}
	}

	if !applied {
		return nil, nil
	}
	return &UpdateExpr{SQL: cur, Params: params.Values()}, nil
}
