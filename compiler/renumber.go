package compiler

import (
	"strconv"
	"strings"
)

// renumberPlaceholders implements §4.9: shift every "$N" placeholder in sql
// by offset. Identifiers in the emitted dialect never start with "$", so a
// byte scan for "$" followed by ASCII digits is sufficient — no need to
// parse the SQL.
func renumberPlaceholders(sql string, offset int) string {
	if offset == 0 {
		return sql
	}
	var out strings.Builder
	out.Grow(len(sql) + 8)

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if c != '$' {
			out.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(sql) && sql[j] >= '0' && sql[j] <= '9' {
			j++
		}
		if j == i+1 {
			out.WriteByte(c)
			continue
		}
		n, _ := strconv.Atoi(sql[i+1 : j])
		out.WriteByte('$')
		out.WriteString(strconv.Itoa(n + offset))
		i = j - 1
	}
	return out.String()
}
