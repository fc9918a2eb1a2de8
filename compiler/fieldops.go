package compiler

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/goccy/go-json"
)

var comparisonSQL = map[string]string{
	"$gt":  ">",
	"$gte": ">=",
	"$lt":  "<",
	"$lte": "<=",
}

// buildComparison implements the $gt/$gte/$lt/$lte row of §4.3: the
// operand is inlined via literal quoting, never parameterized.
func buildComparison(accessPath, operator string, value any) Fragment {
	op := comparisonSQL[operator]
	if isNumber(value) {
		return SQL(fmt.Sprintf("(%s)::numeric %s %s", accessPath, op, inlineNumber(value)))
	}
	return SQL(fmt.Sprintf("%s %s %s", accessPath, op, inlineLiteral(value)))
}

func buildExists(jsonPath string, value any) Fragment {
	if isTruthy(value) {
		return SQL(jsonPath + " IS NOT NULL")
	}
	return SQL(jsonPath + " IS NULL")
}

// parseRegexOperand accepts a bare pattern string, a "/pattern/flags"
// string, or a [pattern, flags] array.
func parseRegexOperand(value any) (pattern, flags string, ok bool) {
	switch v := value.(type) {
	case string:
		if len(v) >= 2 && v[0] == '/' {
			if end := strings.LastIndexByte(v, '/'); end > 0 {
				return v[1:end], v[end+1:], true
			}
		}
		return v, "", true
	default:
		if arr, isArr := asArray(value); isArr && len(arr) > 0 {
			pat, isStr := arr[0].(string)
			if !isStr {
				return "", "", false
			}
			f := ""
			if len(arr) > 1 {
				if s, isStr2 := arr[1].(string); isStr2 {
					f = s
				}
			}
			return pat, f, true
		}
	}
	return "", "", false
}

// buildRegex implements the $regex row of §4.3. $options is consulted as a
// fallback source of flags when the operand itself carries none. The
// pattern is validated with regexp2 (closer to the backend's PCRE-ish regex
// dialect than Go's RE2 stdlib engine) purely to reject clearly malformed
// patterns before they are inlined; the emitted SQL always uses Postgres's
// own ~ / ~* operators, never a Go regex engine at query time.
func buildRegex(accessPath string, value any, optionsSibling any, haveOptions bool) Fragment {
	pattern, flags, ok := parseRegexOperand(value)
	if !ok {
		warnInvalidOperand("$regex", "unsupported operand shape")
		return False
	}
	if flags == "" && haveOptions {
		if s, isStr := optionsSibling.(string); isStr {
			flags = s
		}
	}
	if _, err := regexp2.Compile(pattern, regexp2.None); err != nil {
		warnInvalidOperand("$regex", "pattern failed validation: "+err.Error())
		return False
	}
	op := "~"
	if strings.Contains(flags, "i") {
		op = "~*"
	}
	return SQL(fmt.Sprintf("%s %s %s", accessPath, op, quoteLiteral(pattern)))
}

func buildMod(accessPath string, value any) Fragment {
	arr, ok := asArray(value)
	if !ok || len(arr) != 2 {
		warnInvalidOperand("$mod", "expected [divisor, remainder]")
		return False
	}
	if !isNumber(arr[0]) || !isNumber(arr[1]) {
		warnInvalidOperand("$mod", "divisor/remainder must be numeric")
		return False
	}
	return SQL(fmt.Sprintf("(%s)::numeric %% %s = %s", accessPath, inlineNumber(arr[0]), inlineNumber(arr[1])))
}

func buildSize(jsonPath string, value any) Fragment {
	n, ok := toInt(value)
	if !ok || n < 0 {
		warnInvalidOperand("$size", "expected a non-negative integer")
		return False
	}
	return SQL(fmt.Sprintf("(jsonb_typeof(%s) = 'array' AND jsonb_array_length(%s) = %d)", jsonPath, jsonPath, n))
}

func buildAllOp(jsonPath string, value any) Fragment {
	arr, ok := asArray(value)
	if !ok {
		warnInvalidOperand("$all", "expected an array")
		return False
	}
	if len(arr) == 0 {
		return True
	}
	encoded, _ := json.Marshal(arr)
	return SQL(fmt.Sprintf("%s @> %s::jsonb", jsonPath, quoteLiteral(string(encoded))))
}

var validTypeNames = map[string]bool{
	"string": true, "number": true, "boolean": true,
	"array": true, "object": true, "null": true,
}

func buildTypeOp(jsonPath string, value any) Fragment {
	s, ok := value.(string)
	if !ok || !validTypeNames[s] {
		warnInvalidOperand("$type", "unknown type name")
		return False
	}
	return SQL(fmt.Sprintf("jsonb_typeof(%s) = %s", jsonPath, quoteLiteral(s)))
}
