package compiler

import "fmt"

func nullCheck(jsonPath string) string {
	return fmt.Sprintf("(%s IS NULL OR %s = 'null'::jsonb)", jsonPath, jsonPath)
}

func notNullCheck(jsonPath string) string {
	return fmt.Sprintf("(%s IS NOT NULL AND %s != 'null'::jsonb)", jsonPath, jsonPath)
}

func isEmptyObject(v any) bool {
	switch val := v.(type) {
	case Doc:
		return len(val) == 0
	case M:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

func isObjectOperand(v any) bool {
	switch v.(type) {
	case Doc, M, map[string]any:
		return true
	default:
		return false
	}
}

// buildEquality implements §4.2.
func buildEquality(accessPath, jsonPath string, value any, params *ParamList) Fragment {
	switch {
	case value == nil:
		return SQL(nullCheck(jsonPath))
	case isEmptyObject(value):
		return SQL(fmt.Sprintf("%s::jsonb = '{}'::jsonb", jsonPath))
	case isObjectOperand(value):
		idx := params.Append(value)
		return SQL(fmt.Sprintf("%s::jsonb = $%d::jsonb", jsonPath, idx))
	}
	if arr, ok := asArray(value); ok {
		idx := params.Append(arr)
		return SQL(fmt.Sprintf("%s::jsonb = $%d::jsonb", jsonPath, idx))
	}
	switch val := value.(type) {
	case bool:
		idx := params.Append(val)
		return SQL(fmt.Sprintf("(%s)::boolean = $%d", accessPath, idx))
	default:
		if isNumber(val) {
			cast := numericCast(val)
			idx := params.Append(val)
			return SQL(fmt.Sprintf("(%s)::%s = $%d", accessPath, cast, idx))
		}
		idx := params.Append(val)
		return SQL(fmt.Sprintf("%s = $%d", accessPath, idx))
	}
}

// buildNotEqual implements the $ne row of §4.3's operator table.
func buildNotEqual(accessPath, jsonPath string, value any, params *ParamList) Fragment {
	switch {
	case isUndefined(value):
		return SQL(jsonPath + " IS NOT NULL")
	case value == nil:
		return SQL(notNullCheck(jsonPath))
	case isEmptyObject(value):
		return SQL(fmt.Sprintf("%s::jsonb != '{}'::jsonb", jsonPath))
	case isObjectOperand(value):
		idx := params.Append(value)
		return SQL(fmt.Sprintf("%s::jsonb != $%d::jsonb", jsonPath, idx))
	}
	if arr, ok := asArray(value); ok {
		idx := params.Append(arr)
		return SQL(fmt.Sprintf("%s::jsonb != $%d::jsonb", jsonPath, idx))
	}
	switch val := value.(type) {
	case bool:
		idx := params.Append(val)
		return SQL(fmt.Sprintf("(%s)::boolean IS DISTINCT FROM $%d", accessPath, idx))
	default:
		if isNumber(val) {
			cast := numericCast(val)
			idx := params.Append(val)
			return SQL(fmt.Sprintf("(%s)::%s IS DISTINCT FROM $%d", accessPath, cast, idx))
		}
		idx := params.Append(val)
		return SQL(fmt.Sprintf("%s != $%d", accessPath, idx))
	}
}

func isUndefined(v any) bool {
	_, ok := v.(UndefinedType)
	return ok
}
