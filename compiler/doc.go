package compiler

import "go.mongodb.org/mongo-driver/bson"

// Doc is an ordered query/update document. MongoDB query semantics are
// order-sensitive (placeholder numbering must match the document's
// iteration order, per the compiler's parameter-ordering invariant) and a
// plain Go map cannot give that guarantee, so the compiler borrows the
// ordered-document shape from the driver the teacher already depended on
// instead of inventing its own.
type Doc = bson.D

// Entry is one ordered key/value pair of a Doc.
type Entry = bson.E

// Arr is an ordered operand list (array-valued operands such as $in, $all,
// $and's sub-document list).
type Arr = bson.A

// M is an unordered convenience alias for building leaf object operands
// (e.g. an equality comparand that happens to be a JSON object, where
// field order has no SQL-visible effect since it is marshaled wholesale).
type M = bson.M

func asArray(v any) ([]any, bool) {
	switch val := v.(type) {
	case Arr:
		return []any(val), true
	case []any:
		return val, true
	default:
		return nil, false
	}
}

func asDoc(v any) (Doc, bool) {
	switch val := v.(type) {
	case Doc:
		return val, true
	case M:
		out := make(Doc, 0, len(val))
		for k, v := range val {
			out = append(out, Entry{Key: k, Value: v})
		}
		return out, true
	default:
		return nil, false
	}
}

// lookup returns the value bound to key in doc, in document order.
func lookup(doc Doc, key string) (any, bool) {
	for _, entry := range doc {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return nil, false
}

// isOperatorObject reports whether every key of doc starts with "$" — the
// distinguishing shape of an operator object versus a plain equality
// operand or nested document.
func isOperatorObject(doc Doc) bool {
	if len(doc) == 0 {
		return false
	}
	for _, entry := range doc {
		if len(entry.Key) == 0 || entry.Key[0] != '$' {
			return false
		}
	}
	return true
}

func isLogicalKey(key string) bool {
	switch key {
	case "$and", "$or", "$nor":
		return true
	default:
		return false
	}
}
