// Package core provides the fundamental building blocks of the document ORM.
// This file defines the schema system: it maps a Go struct type to a
// collection name and carries the per-collection behavior (soft delete,
// optimistic locking, lifecycle hooks) that the model layer consults on
// every operation.
package core

import "sync"

// SchemaCore contains the minimal schema information required at runtime —
// the part the Driver needs, with no generic type parameter attached.
type SchemaCore struct {
	Database       string
	Collection     string
	JSONField      string // defaults to "data"
	SoftDelete     bool
	OptimisticLock bool
}

// schemaRegistry is the process-wide set of defined schemas, populated
// only from RegisterSchema at Schema[T] construction time (spec.md §5:
// "the table-registration set is process-wide and guarded by being
// populated only at defineSchema time"). Each entry's *sync.Once gates
// Model.Bootstrap so a collection's DDL runs at most once per process,
// no matter how many times Bootstrap is called.
var schemaRegistry sync.Map // map[string]*sync.Once

// RegisterSchema records schema's (database, collection) pair in the
// process-wide registry and returns the *sync.Once that guards its table
// bootstrap. Calling it again for the same pair returns the same Once, so
// redefining a schema never resets already-completed bootstrap state.
func RegisterSchema(schema *SchemaCore) *sync.Once {
	key := schema.Database + "\x00" + schema.Collection
	once, _ := schemaRegistry.LoadOrStore(key, new(sync.Once))
	return once.(*sync.Once)
}

// SchemaMeta extends SchemaCore with the generic, type-safe parts: the
// registered lifecycle hooks for T.
type SchemaMeta[T any] struct {
	SchemaCore
	PreHookList  map[PreHook][]func(*T) error
	PostHookList map[PostHook][]func(*T) error

	bootstrapOnce *sync.Once
}

// RegisterPreHook registers a pre-operation hook for the schema.
func (s *SchemaMeta[T]) RegisterPreHook(hook PreHook, fn func(*T) error) {
	s.PreHookList[hook] = append(s.PreHookList[hook], fn)
}

// RegisterPostHook registers a post-operation hook for the schema.
func (s *SchemaMeta[T]) RegisterPostHook(hook PostHook, fn func(*T) error) {
	s.PostHookList[hook] = append(s.PostHookList[hook], fn)
}

// SchemaOption customizes a SchemaMeta[T] at construction time.
type SchemaOption[T any] func(*SchemaMeta[T])

// WithDatabase sets the database/tenant name for the schema.
func WithDatabase[T any](name string) SchemaOption[T] {
	return func(s *SchemaMeta[T]) { s.Database = name }
}

// WithJSONField overrides the storage column name (default "data").
func WithJSONField[T any](name string) SchemaOption[T] {
	return func(s *SchemaMeta[T]) { s.JSONField = name }
}

// WithSoftDelete enables the _deletedAt convention: Delete sets the field
// instead of removing the row, and reads exclude deleted rows unless the
// query explicitly asks for them.
func WithSoftDelete[T any]() SchemaOption[T] {
	return func(s *SchemaMeta[T]) { s.SoftDelete = true }
}

// WithOptimisticLock enables the _vers convention: Create stamps _vers 1 and
// every update increments it. No version predicate is added on the caller's
// behalf; an update whose filter pins _vers and matches no row reports
// ErrOptimisticLock when the row still exists under another version.
func WithOptimisticLock[T any]() SchemaOption[T] {
	return func(s *SchemaMeta[T]) { s.OptimisticLock = true }
}

// Schema builds a SchemaMeta[T] bound to the given collection name and
// registers it in the process-wide schema registry.
func Schema[T any](collection string, options ...SchemaOption[T]) *SchemaMeta[T] {
	meta := &SchemaMeta[T]{
		SchemaCore: SchemaCore{
			Collection: collection,
			JSONField:  "data",
		},
		PreHookList:  make(map[PreHook][]func(*T) error),
		PostHookList: make(map[PostHook][]func(*T) error),
	}
	for _, option := range options {
		option(meta)
	}
	meta.bootstrapOnce = RegisterSchema(&meta.SchemaCore)
	return meta
}
