package compiler

import (
	"fmt"
	"strings"
)

func inClauseFor(kind, accessPath, jsonPath string, idx int) string {
	switch kind {
	case "integer":
		return fmt.Sprintf("(%s)::integer = ANY($%d)", accessPath, idx)
	case "numeric":
		return fmt.Sprintf("(%s)::numeric = ANY($%d)", accessPath, idx)
	case "bool":
		return fmt.Sprintf("(%s)::boolean = ANY($%d)", accessPath, idx)
	case "string":
		return fmt.Sprintf("%s = ANY($%d)", accessPath, idx)
	default: // object
		return fmt.Sprintf("%s::jsonb = ANY($%d::jsonb[])", jsonPath, idx)
	}
}

func ninClauseFor(kind, accessPath, jsonPath string, idx int) string {
	switch kind {
	case "integer":
		return fmt.Sprintf("(%s)::integer != ALL($%d)", accessPath, idx)
	case "numeric":
		return fmt.Sprintf("(%s)::numeric != ALL($%d)", accessPath, idx)
	case "bool":
		return fmt.Sprintf("(%s)::boolean != ALL($%d)", accessPath, idx)
	case "string":
		return fmt.Sprintf("%s != ALL($%d)", accessPath, idx)
	default: // object
		return fmt.Sprintf("%s::jsonb != ALL($%d::jsonb[])", jsonPath, idx)
	}
}

// buildIn implements the $in row of §4.3.
func buildIn(accessPath, jsonPath string, arr []any, params *ParamList) Fragment {
	if len(arr) == 0 {
		return False
	}
	groups, hasNull := partitionByKind(arr)

	var clauses []string
	for _, kind := range kindOrder {
		vals, ok := groups[kind]
		if !ok {
			continue
		}
		idx := params.Append(vals)
		clauses = append(clauses, inClauseFor(kind, accessPath, jsonPath, idx))
	}

	groupExpr := ""
	if len(clauses) == 1 {
		groupExpr = clauses[0]
	} else if len(clauses) > 1 {
		groupExpr = "(" + strings.Join(clauses, " OR ") + ")"
	}

	switch {
	case groupExpr != "" && hasNull:
		return SQL("(" + groupExpr + " OR " + nullCheck(jsonPath) + ")")
	case groupExpr != "":
		return SQL(groupExpr)
	case hasNull:
		return SQL(nullCheck(jsonPath))
	default:
		return False
	}
}

// buildNin implements the $nin row of §4.3.
func buildNin(accessPath, jsonPath string, arr []any, params *ParamList) Fragment {
	if len(arr) == 0 {
		return True
	}
	groups, hasNull := partitionByKind(arr)

	var clauses []string
	for _, kind := range kindOrder {
		vals, ok := groups[kind]
		if !ok {
			continue
		}
		idx := params.Append(vals)
		clauses = append(clauses, ninClauseFor(kind, accessPath, jsonPath, idx))
	}

	groupExpr := ""
	if len(clauses) == 1 {
		groupExpr = clauses[0]
	} else if len(clauses) > 1 {
		groupExpr = "(" + strings.Join(clauses, " AND ") + ")"
	}

	switch {
	case groupExpr != "" && hasNull:
		return SQL("(" + groupExpr + " AND " + notNullCheck(jsonPath) + ")")
	case groupExpr != "":
		return SQL(groupExpr)
	case hasNull:
		return SQL(notNullCheck(jsonPath))
	default:
		return True
	}
}
