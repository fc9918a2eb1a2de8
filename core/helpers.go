// Package core provides the fundamental building blocks of the document ORM.
// This file contains the small set of reflection-free helpers the model
// layer uses to stamp reserved fields onto a document and move documents
// between Go structs and raw JSON.
package core

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Reserved top-level keys every stored document carries, mirroring the
// "_id"/"_ctime"/"_mtime"/"_vers"/"_deletedAt" convention.
const (
	FieldID        = "_id"
	FieldCreatedAt = "_ctime"
	FieldUpdatedAt = "_mtime"
	FieldVersion   = "_vers"
	FieldDeletedAt = "_deletedAt"
)

// newDocumentID generates a collection-prefixed identifier, e.g.
// "users_3b1f...".
func newDocumentID(collection string) string {
	return collection + "_" + uuid.NewString()
}

// encodeDocument marshals doc to a JSON object and stamps the reserved
// fields an insert is responsible for: _id, _ctime, _mtime and, when the
// schema opts into optimistic locking, _vers starting at 1.
func encodeDocument[T any](doc *T, schema *SchemaCore, now time.Time) (map[string]any, string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, "", err
	}
	obj := map[string]any{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, "", err
	}

	id, ok := obj[FieldID].(string)
	if !ok || id == "" {
		id = newDocumentID(schema.Collection)
	}
	obj[FieldID] = id
	obj[FieldCreatedAt] = now
	obj[FieldUpdatedAt] = now
	if schema.OptimisticLock {
		obj[FieldVersion] = int64(1)
	}
	return obj, id, nil
}

// decodeDocument unmarshals a raw "data" column value into *T.
func decodeDocument[T any](raw json.RawMessage, out *T) error {
	return json.Unmarshal(raw, out)
}

// lookupValue returns the value stored under key in a Doc's top level, the
// way a caller-supplied filter document would carry FieldVersion or
// FieldID, or nil if key isn't present.
func lookupValue(doc Doc, key string) any {
	for _, e := range doc {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

// stripKey returns a copy of doc with every top-level entry matching key
// removed, leaving the rest of the filter intact.
func stripKey(doc Doc, key string) Doc {
	out := make(Doc, 0, len(doc))
	for _, e := range doc {
		if e.Key == key {
			continue
		}
		out = append(out, e)
	}
	return out
}

// toInt64 coerces the handful of numeric shapes a _vers value arrives in
// (json.Number, float64, int, int64) to an int64, the way goccy/go-json
// decodes a bare JSON number depending on whether it target a concrete
// field or an any.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// idFromFilter extracts FieldID from a filter document for error reporting;
// filters that don't pin an _id (e.g. a bulk UpdateMany) report an empty id.
func idFromFilter(filter Doc) string {
	id, _ := lookupValue(filter, FieldID).(string)
	return id
}

// versionOf reads FieldVersion out of a document's raw JSON form, the shape
// Driver.FindOne returns. It's used only to report the Actual side of an
// ErrOptimisticLock; a missing or malformed field reports 0.
func versionOf(raw json.RawMessage) int64 {
	obj := map[string]any{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0
	}
	v, _ := toInt64(obj[FieldVersion])
	return v
}
