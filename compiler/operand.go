package compiler

import (
	"fmt"
	"math"
	"strconv"
)

// UndefinedType is the sentinel for $eq/$ne against "undefined" — distinct
// from JSON null. Queries built by hand use compiler.Undefined; it never
// arrives from a JSON-decoded document, which has no undefined literal.
type UndefinedType struct{}

var Undefined = UndefinedType{}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float32:
		f := float64(n)
		if f == math.Trunc(f) {
			return int64(f), true
		}
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	return 0, false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

// numericCast implements §4.2's cast-selection rule for a single numeric
// operand: integer when the value carries no fractional part, else numeric.
func numericCast(v any) string {
	f, _ := toFloat(v)
	if f == math.Trunc(f) {
		return "integer"
	}
	return "numeric"
}

// inlineNumber renders a numeric operand as a bare SQL literal (used by the
// operators specified to inline rather than parameterize: $gt/$gte/$lt/$lte,
// $mod).
func inlineNumber(v any) string {
	f, _ := toFloat(v)
	if f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// inlineLiteral renders a non-numeric operand (string or bool) as a bare,
// quote-escaped SQL literal for the inlining operators.
func inlineLiteral(v any) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "true"
		}
		return "false"
	case string:
		return quoteLiteral(val)
	default:
		return quoteLiteral(fmt.Sprint(val))
	}
}

// isTruthy mirrors the dynamically-typed source's truthiness test, used by
// $exists.
func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int, int32, int64, float32, float64:
		f, _ := toFloat(val)
		return f != 0
	case []any:
		return len(val) > 0
	case Arr:
		return len(val) > 0
	case Doc:
		return len(val) > 0
	case M:
		return len(val) > 0
	default:
		return true
	}
}

// kindOrder is the fixed group order used by $in/$nin partitioning.
var kindOrder = []string{"integer", "numeric", "bool", "string", "object"}

// partitionByKind groups $in/$nin array elements by their Go dynamic type,
// per §4.3's "Partition non-null elements by dynamic type" rule. Integer
// and floating-point Go types land in distinct groups regardless of
// whether a float happens to carry a whole value — grouping reflects the
// operand's own wire type, not a post-hoc fractional-part test (unlike the
// single-value equality cast in §4.2).
func partitionByKind(arr []any) (groups map[string][]any, hasNull bool) {
	groups = map[string][]any{}
	for _, v := range arr {
		if v == nil {
			hasNull = true
			continue
		}
		switch val := v.(type) {
		case bool:
			groups["bool"] = append(groups["bool"], val)
		case int, int32, int64:
			groups["integer"] = append(groups["integer"], v)
		case float32, float64:
			groups["numeric"] = append(groups["numeric"], v)
		case string:
			groups["string"] = append(groups["string"], val)
		case Doc:
			groups["object"] = append(groups["object"], val)
		case M:
			groups["object"] = append(groups["object"], val)
		case map[string]any:
			groups["object"] = append(groups["object"], val)
		default:
			groups["string"] = append(groups["string"], fmt.Sprint(val))
		}
	}
	return
}
