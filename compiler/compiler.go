package compiler

import (
	"fmt"
	"strings"
)

// SortKey is one ORDER BY entry; Dir is +1 for ASC, -1 for DESC.
type SortKey struct {
	Path string
	Dir  int
}

// SelectOptions configures the statement assembler's SELECT form (§4.7).
type SelectOptions struct {
	JSONField string
	Schema    string
	Limit     int
	Offset    int
	Sort      []SortKey
}

func coalesce(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func quoteTable(schema, table string) string {
	if schema != "" {
		return quoteIdent(schema) + "." + quoteIdent(table)
	}
	return quoteIdent(table)
}

// BuildWhere implements the build_where primitive from §6: compiles query
// against jsonField and returns the WHERE clause (including the "WHERE "
// keyword) or "" when there is no constraint at all.
func BuildWhere(query Doc, jsonField string) (string, []any, error) {
	jsonField = coalesce(jsonField, "data")
	params := newParamList()
	frag, err := compileDocument(jsonField, query, params)
	if err != nil {
		return "", nil, err
	}
	switch {
	case frag.IsEmpty():
		return "", params.Values(), nil
	case frag.IsTrue():
		return "WHERE TRUE", params.Values(), nil
	case frag.IsFalse():
		return "WHERE FALSE", params.Values(), nil
	default:
		return "WHERE " + frag.Text(), params.Values(), nil
	}
}

// BuildSelect implements the build_select primitive from §6 and the SELECT
// half of the §4.7 statement assembler.
func BuildSelect(table string, query Doc, opts SelectOptions) (string, []any, error) {
	jsonField := coalesce(opts.JSONField, "data")
	whereClause, params, err := BuildWhere(query, jsonField)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", quoteIdent(jsonField), quoteTable(opts.Schema, table))
	if whereClause != "" {
		sql += " " + whereClause
	}
	if len(opts.Sort) > 0 {
		parts := make([]string, len(opts.Sort))
		for i, s := range opts.Sort {
			_, accessPath := buildPaths(jsonField, s.Path)
			dir := "ASC"
			if s.Dir < 0 {
				dir = "DESC"
			}
			parts[i] = accessPath + " " + dir
		}
		sql += " ORDER BY " + strings.Join(parts, ", ")
	}
	if opts.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}
	return sql, params, nil
}

// BuildCount implements the COUNT form of the §4.7 statement assembler.
func BuildCount(table string, query Doc, opts SelectOptions) (string, []any, error) {
	jsonField := coalesce(opts.JSONField, "data")
	whereClause, params, err := BuildWhere(query, jsonField)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s", quoteTable(opts.Schema, table))
	if whereClause != "" {
		sql += " " + whereClause
	}
	return sql, params, nil
}

// BuildDelete implements the hard-DELETE form of the §4.7 statement
// assembler. A non-empty filter is required. See BuildSoftDelete for the
// UPDATE-shaped variant the model layer issues instead when a schema has
// soft delete configured.
func BuildDelete(table string, query Doc, opts SelectOptions) (string, []any, error) {
	if len(query) == 0 {
		return "", nil, &EmptyDestructiveError{Operation: "remove"}
	}
	jsonField := coalesce(opts.JSONField, "data")
	whereClause, params, err := BuildWhere(query, jsonField)
	if err != nil {
		return "", nil, err
	}
	if whereClause == "" {
		return "", nil, &EmptyDestructiveError{Operation: "remove"}
	}
	sql := fmt.Sprintf("DELETE FROM %s %s", quoteTable(opts.Schema, table), whereClause)
	return sql, params, nil
}

// BuildSoftDelete implements §4.7's soft-delete form: rather than removing
// rows, it stamps _deletedAt with a millisecond-epoch timestamp via plain
// jsonb_set (not jsonb_set_lax). _deletedAt is a top-level key, and
// jsonb_set's create_missing argument defaults to true, so the key is added
// to documents that do not carry it yet. deletedAtMillis
// is appended as one parameter after the WHERE clause's own parameters, per
// the same independently-numbered-then-spliced convention SpliceUpdate
// uses for $set/$inc.
func BuildSoftDelete(table string, query Doc, opts SelectOptions, deletedAtMillis int64) (string, []any, error) {
	if len(query) == 0 {
		return "", nil, &EmptyDestructiveError{Operation: "remove"}
	}
	jsonField := coalesce(opts.JSONField, "data")
	whereClause, whereParams, err := BuildWhere(query, jsonField)
	if err != nil {
		return "", nil, err
	}
	if whereClause == "" {
		return "", nil, &EmptyDestructiveError{Operation: "remove"}
	}
	pathLit := buildPathLiteral([]string{"_deletedAt"})
	idx := len(whereParams) + 1
	sql := fmt.Sprintf(
		"UPDATE %s SET %s = jsonb_set(%s, %s, to_jsonb($%d::numeric)) %s",
		quoteTable(opts.Schema, table), jsonField, jsonField, pathLit, idx, whereClause,
	)
	params := append(append([]any{}, whereParams...), deletedAtMillis)
	return sql, params, nil
}

// SpliceUpdate implements §4.9/§4.7's UPDATE assembly: the WHERE fragment
// keeps its own numbering; the update expression's placeholders are
// shifted by the WHERE's parameter count before concatenation.
func SpliceUpdate(table string, filter Doc, update *UpdateExpr, opts SelectOptions) (string, []any, error) {
	jsonField := coalesce(opts.JSONField, "data")
	whereClause, whereParams, err := BuildWhere(filter, jsonField)
	if err != nil {
		return "", nil, err
	}
	if whereClause == "" {
		return "", nil, &EmptyDestructiveError{Operation: "updateMany"}
	}
	expr := renumberPlaceholders(update.SQL, len(whereParams))
	sql := fmt.Sprintf("UPDATE %s SET %s = %s %s", quoteTable(opts.Schema, table), jsonField, expr, whereClause)
	params := append(append([]any{}, whereParams...), update.Params...)
	return sql, params, nil
}

// SpliceUpdateOne is SpliceUpdate's single-row sibling: the collection has
// no declared surrogate key, so row identity for the LIMIT 1 subquery rides
// on Postgres's implicit "ctid" system column instead. The inner subquery's
// WHERE fragment still owns the first len(whereParams) placeholders (it is
// inlined into the same statement, ahead of the SET expression), so the
// update expression is renumbered by len(whereParams), exactly as in
// SpliceUpdate; the outer WHERE ctid IN (...) itself takes no placeholders
// of its own.
func SpliceUpdateOne(table string, filter Doc, update *UpdateExpr, opts SelectOptions) (string, []any, error) {
	jsonField := coalesce(opts.JSONField, "data")
	whereClause, whereParams, err := BuildWhere(filter, jsonField)
	if err != nil {
		return "", nil, err
	}
	if whereClause == "" {
		return "", nil, &EmptyDestructiveError{Operation: "updateOne"}
	}
	qualifiedTable := quoteTable(opts.Schema, table)
	subquery := fmt.Sprintf("SELECT ctid FROM %s %s LIMIT 1", qualifiedTable, whereClause)
	expr := renumberPlaceholders(update.SQL, len(whereParams))
	sql := fmt.Sprintf(
		"UPDATE %s SET %s = %s WHERE ctid IN (%s)",
		qualifiedTable, jsonField, expr, subquery,
	)
	params := append(append([]any{}, whereParams...), update.Params...)
	return sql, params, nil
}
