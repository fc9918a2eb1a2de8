package compiler

import (
	"strings"

	"github.com/goccy/go-json"
)

func isNumericSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func segmentAccessor(seg string) string {
	if isNumericSegment(seg) {
		return seg
	}
	return quoteLiteral(seg)
}

// buildPaths implements §4.1: given a dotted path rooted at root (the JSON
// column, or an $elemMatch alias), returns the container form (jsonPath,
// ending in "->", suitable for jsonb_typeof/array functions) and the text
// form (accessPath, ending in "->>", suitable for casts and comparisons).
func buildPaths(root, path string) (jsonPath, accessPath string) {
	segments := strings.Split(path, ".")
	base := root
	for _, seg := range segments[:len(segments)-1] {
		base += "->" + segmentAccessor(seg)
	}
	last := segmentAccessor(segments[len(segments)-1])
	jsonPath = base + "->" + last
	accessPath = base + "->>" + last
	return
}

// pathSegments splits a dotted field path into its component segments.
func pathSegments(path string) []string {
	return strings.Split(path, ".")
}

// buildPathLiteral builds the JSONB text-path array literal consumed by
// jsonb_set_lax, e.g. segments ["profile","level"] -> '{"profile","level"}'.
// Each segment is JSON-stringified first (so it carries its own double
// quotes inside the SQL single-quoted literal) per the path-literal shape
// observed in the source compiler.
func buildPathLiteral(segments []string) string {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		encoded, _ := json.Marshal(seg)
		parts[i] = string(encoded)
	}
	inner := "{" + strings.Join(parts, ",") + "}"
	return quoteLiteral(inner)
}
