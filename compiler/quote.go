package compiler

import "strings"

// quoteIdent escapes a SQL identifier by doubling embedded double quotes.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// quoteLiteral escapes a SQL string literal by doubling embedded single
// quotes.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
