// Package core provides the fundamental building blocks of the document ORM.
// It defines abstractions for queries, models, schema handling, and drivers.
package core

import (
	"context"

	"github.com/goccy/go-json"
)

// Sort is one ORDER BY entry against a dotted JSON path.
//
// Path addresses a field the same way a filter key does ("profile.level");
// Dir is 1 for ascending, -1 for descending.
type Sort struct {
	Path string
	Dir  int
}

// Where carries everything the model layer needs to run a find/count/delete
// against a collection: the raw filter document plus paging/sort/soft-delete
// knobs. Filter is a compiler.Doc that the driver hands straight to the
// compiler, with no intermediate typed condition tree.
type Where struct {
	Filter      Doc
	Limit       int
	Offset      int
	Sort        []Sort
	WithDeleted bool
	OnlyDeleted bool
}

// Changes is a MongoDB-shaped update-operator document, e.g.
// Changes{{Key: "$set", Value: Doc{{Key: "name", Value: "Ada"}}}}.
type Changes = Doc

// Transaction defines the contract for database transaction management.
//
// Implementations must provide atomic commit and rollback semantics.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Driver defines the contract for storage backends supported by the ORM.
//
// A Driver never sees a typed condition tree: filters and updates arrive as
// compiler.Doc values, and the driver is responsible for running them
// through the compiler package and executing the resulting SQL.
type Driver interface {
	// Connect establishes a new connection or validates connectivity.
	Connect(ctx context.Context) error
	// Ping checks if the underlying database is reachable.
	Ping(ctx context.Context) error
	// Close terminates the connection and releases resources.
	Close(ctx context.Context) error

	// Transaction starts a new database transaction.
	Transaction(ctx context.Context) (Transaction, error)

	// Bootstrap ensures the collection's backing table/index exist.
	Bootstrap(ctx context.Context, schema *SchemaCore) error

	// Insert persists a single document, returning its generated _id.
	Insert(ctx context.Context, schema *SchemaCore, document M) (string, error)
	// FindOne retrieves a single document's raw "data" column, or nil if
	// nothing matched.
	FindOne(ctx context.Context, schema *SchemaCore, where *Where) (json.RawMessage, error)
	// FindMany retrieves the raw "data" column of every matching document.
	FindMany(ctx context.Context, schema *SchemaCore, where *Where) ([]json.RawMessage, error)
	// UpdateOne applies an update-operator document to at most one row
	// matching filter, returning the number of rows modified (0 or 1).
	UpdateOne(ctx context.Context, schema *SchemaCore, filter Doc, changes Changes) (int64, error)
	// UpdateMany applies an update-operator document to every row matching
	// filter, returning the number of rows modified.
	UpdateMany(ctx context.Context, schema *SchemaCore, filter Doc, changes Changes) (int64, error)
	// Delete hard-deletes every row matching filter, returning the number removed.
	Delete(ctx context.Context, schema *SchemaCore, filter Doc) (int64, error)
	// SoftDelete stamps _deletedAt (milliseconds since epoch) on every row
	// matching filter instead of removing it, returning the number stamped.
	SoftDelete(ctx context.Context, schema *SchemaCore, filter Doc, deletedAtMillis int64) (int64, error)
	// Count returns the number of documents matching filter.
	Count(ctx context.Context, schema *SchemaCore, where *Where) (int64, error)
	// Query runs a hand-written SQL statement and returns every column of
	// every row, column name to value. The raw escape hatch Model.Query
	// builds on.
	Query(ctx context.Context, sqlText string, params []any) ([]map[string]any, error)
}
