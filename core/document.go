// Package core provides the fundamental building blocks of the document ORM.
// This file defines Document[T], a thin per-instance wrapper around a
// Model[T] result that lets a caller save or remove the exact document it
// just read without re-stating its _id, plus Populate, a minimal
// reference-resolution helper for documents that carry a foreign _id field.
package core

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// Document wraps a single T alongside the Model[T] it was loaded from, so
// Save/Remove can operate on "this document" without the caller re-deriving
// an _id filter by hand. It does not replace Model[T]'s bulk operations;
// it exists for the common "load one, mutate it, write it back" shape.
type Document[T any] struct {
	Value *T
	model *Model[T]
}

// Wrap attaches model to value, producing a Document the caller can Save or
// Remove. FindOne/FindByID return a bare *T; Wrap is the bridge when a
// caller wants the per-document convenience methods instead.
func (m *Model[T]) Wrap(value *T) *Document[T] {
	return &Document[T]{Value: value, model: m}
}

// id reads the reserved _id field back off the wrapped value by
// round-tripping it through JSON, the same shape encodeDocument/
// decodeDocument use, so Document never needs reflection or a struct-tag
// convention. A value with no _id reports ErrNotFound.
func (d *Document[T]) id() (string, error) {
	raw, err := json.Marshal(d.Value)
	if err != nil {
		return "", err
	}
	obj := map[string]any{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	id, _ := obj[FieldID].(string)
	if id == "" {
		return "", &ErrNotFound{}
	}
	return id, nil
}

// Save persists every field changes sets on the wrapped document via
// UpdateOne, keyed by the document's own _id. Registered PreUpdate hooks run
// against d.Value first; if any fails, Save returns ErrValidationFailed and
// issues no SQL. It does not mutate d.Value in
// place; call Model.FindByID again (or re-decode changes onto d.Value
// yourself) to observe the stamped _mtime/_vers.
func (d *Document[T]) Save(ctx context.Context, changes Changes) (int64, error) {
	id, err := d.id()
	if err != nil {
		return 0, err
	}
	if err := d.model.runPre(PreUpdate, d.Value); err != nil {
		return 0, err
	}
	return d.model.UpdateOne(ctx, Doc{{Key: FieldID, Value: id}}, changes)
}

// Remove deletes the wrapped document by its _id, honoring the owning
// Model's soft-delete setting exactly as Model.Delete does.
func (d *Document[T]) Remove(ctx context.Context) (int64, error) {
	id, err := d.id()
	if err != nil {
		return 0, err
	}
	return d.model.Delete(ctx, Doc{{Key: FieldID, Value: id}})
}

// Populate resolves the reference stored in field on src (expected to hold
// a string _id, the shape a hand-written foreign-key field takes in a
// document store with no declared relations) against target, returning the
// referenced document. It reports ErrInvalidOperand if field isn't a
// non-empty string, and whatever target.FindByID reports (including
// ErrNotFound) otherwise.
func Populate[T, U any](ctx context.Context, src *Document[T], field string, target *Model[U]) (*U, error) {
	obj, _, err := encodeDocument(src.Value, &src.model.schema.SchemaCore, time.Time{})
	if err != nil {
		return nil, err
	}
	ref, ok := obj[field].(string)
	if !ok || ref == "" {
		return nil, &ErrInvalidOperand{Operator: "$populate", Reason: "field " + field + " is not a non-empty string reference"}
	}
	return target.FindByID(ctx, ref)
}
