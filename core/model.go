// Package core provides the fundamental building blocks of the document ORM.
// This file defines Model[T], the entry point for working with a specific
// collection. A Model handles persistence, queries, hooks, soft-deletes,
// optimistic locking, and event emission; every filter/update it builds is
// a compiler.Doc, compiled to SQL by the Driver.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Model represents a repository-like abstraction for a schema T.
//
// It wraps a SchemaMeta[T] and a Driver, exposing high-level operations such
// as Create, Update, Delete, FindOne, FindMany, and Count. Models are
// generic and type-safe, ensuring that all operations are tied to a
// specific document shape.
type Model[T any] struct {
	schema *SchemaMeta[T]
	driver Driver
}

// FindOptions configures a read against a Model.
type FindOptions struct {
	Limit       int
	Offset      int
	Sort        []Sort
	WithDeleted bool
	OnlyDeleted bool
}

// NewModel creates a new Model instance bound to a schema and driver.
//
// Example:
//
//	userModel := core.NewModel(userSchema, postgresDriver)
func NewModel[T any](schema *SchemaMeta[T], driver Driver) *Model[T] {
	return &Model[T]{schema: schema, driver: driver}
}

// Bootstrap ensures the model's backing table/index exist. The DDL itself
// runs at most once per process per (database, collection) pair, guarded
// by the *sync.Once RegisterSchema handed out at Schema[T] construction
// time — a second Bootstrap call (or a second Model[T] built against the
// same schema) is a no-op.
func (m *Model[T]) Bootstrap(ctx context.Context) error {
	var err error
	m.schema.bootstrapOnce.Do(func() {
		err = m.driver.Bootstrap(ctx, &m.schema.SchemaCore)
	})
	return err
}

// WithTenant creates a new Model[T] instance bound to a different database.
//
// It clones the schema and replaces only the Database name in SchemaCore.
// This is useful for multi-tenant or sharded architectures. The clone is
// registered under its own (database, collection) key, so its Bootstrap
// runs independently of the schema it was cloned from.
func (m *Model[T]) WithTenant(database string) *Model[T] {
	cloneSchema := *m.schema
	cloneCore := cloneSchema.SchemaCore
	cloneCore.Database = database
	cloneSchema.SchemaCore = cloneCore
	cloneSchema.bootstrapOnce = RegisterSchema(&cloneSchema.SchemaCore)

	return &Model[T]{schema: &cloneSchema, driver: m.driver}
}

// toWhere turns a filter document plus FindOptions into the *Where the
// Driver expects, folding in the soft-delete convention.
func (m *Model[T]) toWhere(filter Doc, opts FindOptions) *Where {
	where := &Where{
		Filter:      filter,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
		Sort:        opts.Sort,
		WithDeleted: opts.WithDeleted,
		OnlyDeleted: opts.OnlyDeleted,
	}
	if !m.schema.SoftDelete || filterHasKey(filter, FieldDeletedAt) {
		return where
	}
	if where.OnlyDeleted {
		where.Filter = append(append(Doc{}, filter...), Entry{Key: FieldDeletedAt, Value: Doc{{Key: "$ne", Value: nil}}})
		return where
	}
	if !where.WithDeleted {
		where.Filter = append(append(Doc{}, filter...), Entry{Key: FieldDeletedAt, Value: nil})
	}
	return where
}

// runPre executes all registered PreHooks for the given operation. For
// PreInsert/PreUpdate, every failing hook contributes to a single
// aggregated ErrValidationFailed rather than short-circuiting on the
// first error, so a caller can report every invalid field at once.
func (m *Model[T]) runPre(hook PreHook, doc *T) error {
	fnList, ok := m.schema.PreHookList[hook]
	if !ok {
		return nil
	}
	if hook != PreInsert && hook != PreUpdate {
		for _, fn := range fnList {
			if err := fn(doc); err != nil {
				return err
			}
		}
		return nil
	}

	fields := map[string]error{}
	for i, fn := range fnList {
		if err := fn(doc); err != nil {
			fields[fmt.Sprintf("%s[%d]", hook, i)] = err
		}
	}
	if len(fields) > 0 {
		return &ErrValidationFailed{Fields: fields}
	}
	return nil
}

// runPost executes all registered PostHooks for the given operation.
func (m *Model[T]) runPost(hook PostHook, doc *T) error {
	if fnList, ok := m.schema.PostHookList[hook]; ok {
		for _, fn := range fnList {
			if err := fn(doc); err != nil {
				return err
			}
		}
	}
	return nil
}

// Create inserts a new document into the collection.
//
// It stamps _id/_ctime/_mtime (and _vers, when optimistic locking is
// enabled), executes PreInsert/PostInsert hooks around the insert, and
// emits an EventInsert. On success doc is re-decoded from the stored
// representation so the caller observes the stamped reserved fields.
func (m *Model[T]) Create(ctx context.Context, doc *T) error {
	return dispatchOperation(ctx, OperationInsert, doc, func() error {
		if err := m.runPre(PreInsert, doc); err != nil {
			return err
		}

		obj, id, err := encodeDocument(doc, &m.schema.SchemaCore, time.Now())
		if err != nil {
			return err
		}
		if _, err := m.driver.Insert(ctx, &m.schema.SchemaCore, M(obj)); err != nil {
			return err
		}
		_ = id

		raw, err := json.Marshal(obj)
		if err != nil {
			return err
		}
		if err := decodeDocument(raw, doc); err != nil {
			return err
		}
		if err := m.runPost(PostInsert, doc); err != nil {
			return err
		}
		Emit(EventInsert, InsertPayload[T]{Schema: &m.schema.SchemaCore, Doc: doc})
		return nil
	})
}

// FindOne returns the first document matching filter, or (nil, nil) if none
// matches.
func (m *Model[T]) FindOne(ctx context.Context, filter Doc, opts ...FindOptions) (*T, error) {
	var fo FindOptions
	if len(opts) > 0 {
		fo = opts[0]
	}
	where := m.toWhere(filter, fo)

	box := &resultBox{kind: "findOne"}
	ctx = withResultBox(ctx, box)
	var result *T
	err := dispatchOperation(ctx, OperationFind, where, func() error {
		var zero T
		if err := m.runPre(PreFind, &zero); err != nil {
			return err
		}

		raw, err := m.driver.FindOne(ctx, &m.schema.SchemaCore, where)
		if err != nil || raw == nil {
			box.value = (*T)(nil)
			return err
		}
		value := new(T)
		if err := decodeDocument(raw, value); err != nil {
			return err
		}
		if err := m.runPost(PostFind, value); err != nil {
			return err
		}
		Emit(EventFind, FindOnePayload[T]{Schema: &m.schema.SchemaCore, Where: where, Doc: value})
		result = value
		box.value = value
		return nil
	})
	if err != nil {
		return nil, err
	}
	if v, ok := box.value.(*T); ok {
		result = v
	}
	return result, nil
}

// FindByID is FindOne keyed by the reserved _id field.
func (m *Model[T]) FindByID(ctx context.Context, id string, opts ...FindOptions) (*T, error) {
	return m.FindOne(ctx, Doc{{Key: FieldID, Value: id}}, opts...)
}

// FindMany returns every document matching filter.
func (m *Model[T]) FindMany(ctx context.Context, filter Doc, opts ...FindOptions) ([]T, error) {
	var fo FindOptions
	if len(opts) > 0 {
		fo = opts[0]
	}
	where := m.toWhere(filter, fo)

	box := &resultBox{kind: "findMany"}
	ctx = withResultBox(ctx, box)
	var results []T
	err := dispatchOperation(ctx, OperationFind, where, func() error {
		var zero T
		if err := m.runPre(PreFind, &zero); err != nil {
			return err
		}

		rows, err := m.driver.FindMany(ctx, &m.schema.SchemaCore, where)
		if err != nil {
			return err
		}
		for _, raw := range rows {
			value := new(T)
			if err := decodeDocument(raw, value); err != nil {
				return err
			}
			if err := m.runPost(PostFind, value); err != nil {
				return err
			}
			results = append(results, *value)
		}
		Emit(EventFind, FindManyPayload[T]{Schema: &m.schema.SchemaCore, Where: where, DocList: results})
		box.value = results
		return nil
	})
	if err != nil {
		return nil, err
	}
	if v, ok := box.value.([]T); ok {
		results = v
	}
	return results, nil
}

// Count returns the number of documents matching filter.
func (m *Model[T]) Count(ctx context.Context, filter Doc, opts ...FindOptions) (int64, error) {
	var fo FindOptions
	if len(opts) > 0 {
		fo = opts[0]
	}
	where := m.toWhere(filter, fo)

	box := &resultBox{kind: "count"}
	ctx = withResultBox(ctx, box)
	var count int64
	err := dispatchOperation(ctx, OperationFind, where, func() error {
		var err error
		count, err = m.driver.Count(ctx, &m.schema.SchemaCore, where)
		if err != nil {
			return err
		}
		box.value = count
		return nil
	})
	if err != nil {
		return 0, err
	}
	if v, ok := box.value.(int64); ok {
		count = v
	}
	return count, nil
}

// updateExec is the shape of Driver.UpdateOne/Driver.UpdateMany, so
// performUpdate can run either behind the same bookkeeping.
type updateExec func(ctx context.Context, schema *SchemaCore, filter Doc, changes Changes) (int64, error)

// performUpdate is the shared body of UpdateOne/UpdateMany: the empty-filter
// guard, the _mtime/_vers bump, zero-rows disambiguation between
// ErrNotFound and ErrOptimisticLock, and the EventUpdate emission. Only the
// cardinality of the actual SQL (one row vs every matching row) differs
// between the two public methods, via exec.
func (m *Model[T]) performUpdate(ctx context.Context, filter Doc, changes Changes, exec updateExec) (int64, error) {
	if len(filter) == 0 {
		return 0, &ErrEmptyDestructive{Op: "update"}
	}
	var rows int64
	err := dispatchOperation(ctx, OperationUpdate, changes, func() error {
		effChanges := withTouchedFields(changes, m.schema.OptimisticLock)

		n, err := exec(ctx, &m.schema.SchemaCore, filter, effChanges)
		if err != nil {
			return err
		}
		rows = n
		if n == 0 {
			return m.resolveUpdateOutcome(ctx, filter)
		}
		Emit(EventUpdate, UpdatePayload{Schema: &m.schema.SchemaCore, Filter: filter, Changes: effChanges})
		return nil
	})
	return rows, err
}

// resolveUpdateOutcome is called when an update matched zero rows. If the
// filter did not pin a _vers, the document is simply absent: ErrNotFound.
// If it did pin a _vers, a zero-row result is ambiguous between "no such
// document" and "document exists under a different version" — spec.md §7
// requires the two be distinguished, so this re-queries the filter with
// the _vers predicate stripped to tell them apart.
func (m *Model[T]) resolveUpdateOutcome(ctx context.Context, filter Doc) error {
	id := idFromFilter(filter)
	if !filterHasKey(filter, FieldVersion) {
		return &ErrNotFound{ID: id}
	}

	existing, err := m.driver.FindOne(ctx, &m.schema.SchemaCore, &Where{Filter: stripKey(filter, FieldVersion)})
	if err != nil {
		return err
	}
	if existing == nil {
		return &ErrNotFound{ID: id}
	}

	expected, _ := toInt64(lookupValue(filter, FieldVersion))
	return &ErrOptimisticLock{Expected: expected, Actual: versionOf(existing)}
}

// UpdateOne applies an update-operator document (e.g. Doc{{Key: "$set",
// ...}}) to at most one document matching filter.
//
// _mtime is always bumped to now; when the schema enables optimistic
// locking, _vers is incremented on the matched row.
func (m *Model[T]) UpdateOne(ctx context.Context, filter Doc, changes Changes) (int64, error) {
	return m.performUpdate(ctx, filter, changes, m.driver.UpdateOne)
}

// UpdateMany applies an update-operator document to every document
// matching filter. Same bookkeeping as UpdateOne, but with no row-count
// cap on the underlying SQL.
func (m *Model[T]) UpdateMany(ctx context.Context, filter Doc, changes Changes) (int64, error) {
	return m.performUpdate(ctx, filter, changes, m.driver.UpdateMany)
}

// Delete removes every document matching filter.
//
// If soft-delete is enabled, this sets _deletedAt instead of physically
// removing the rows. It is not an error for filter to match nothing; the
// returned count reflects how many rows were actually affected.
func (m *Model[T]) Delete(ctx context.Context, filter Doc) (int64, error) {
	if len(filter) == 0 {
		return 0, &ErrEmptyDestructive{Op: "remove"}
	}
	var rows int64
	err := dispatchOperation(ctx, OperationDelete, filter, func() error {
		if m.schema.SoftDelete {
			n, err := m.driver.SoftDelete(ctx, &m.schema.SchemaCore, filter, time.Now().UnixMilli())
			if err != nil {
				return err
			}
			rows = n
			Emit(EventDelete, DeletePayload{Schema: &m.schema.SchemaCore, Filter: filter})
			return nil
		}
		n, err := m.driver.Delete(ctx, &m.schema.SchemaCore, filter)
		if err != nil {
			return err
		}
		rows = n
		Emit(EventDelete, DeletePayload{Schema: &m.schema.SchemaCore, Filter: filter})
		return nil
	})
	return rows, err
}

// Query runs a hand-written SQL statement outside the compiler entirely —
// the raw escape hatch for joins, aggregates, or anything else
// compiler.Build* cannot express. When raw is false, each row's JSON
// column is decoded into T (same shape FindMany produces); when raw is
// true, every column of every row is returned verbatim.
func (m *Model[T]) Query(ctx context.Context, sqlText string, params []any, raw bool) (*QueryResult[T], error) {
	rows, err := m.driver.Query(ctx, sqlText, params)
	if err != nil {
		return nil, err
	}
	result := &QueryResult[T]{Rows: rows}
	if raw {
		return result, nil
	}

	field := m.schema.JSONField
	if field == "" {
		field = "data"
	}
	for _, row := range rows {
		val, ok := row[field]
		if !ok {
			continue
		}
		encoded, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		var doc T
		if err := json.Unmarshal(encoded, &doc); err != nil {
			return nil, err
		}
		result.Docs = append(result.Docs, doc)
	}
	return result, nil
}

// QueryResult is Model.Query's output: Docs holds the JSON-column decode
// of every row (raw == false); Rows holds every column of every row
// verbatim (always populated).
type QueryResult[T any] struct {
	Docs []T
	Rows []map[string]any
}

// withTouchedFields folds a _mtime bump (and, when lock is true, a _vers
// increment) into an update-operator document without disturbing any $set
// or $inc the caller already supplied for other fields.
func withTouchedFields(changes Changes, lock bool) Changes {
	out := append(Doc{}, changes...)
	out = mergeIntoOperator(out, "$set", Entry{Key: FieldUpdatedAt, Value: time.Now()})
	if lock {
		out = mergeIntoOperator(out, "$inc", Entry{Key: FieldVersion, Value: 1})
	}
	return out
}

// mergeIntoOperator appends entry under the given update operator key,
// creating the operator's sub-document if this is its first field.
func mergeIntoOperator(doc Doc, operator string, entry Entry) Doc {
	for i, e := range doc {
		if e.Key != operator {
			continue
		}
		if sub, ok := e.Value.(Doc); ok {
			doc[i].Value = append(sub, entry)
			return doc
		}
	}
	return append(doc, Entry{Key: operator, Value: Doc{entry}})
}

func filterHasKey(doc Doc, key string) bool {
	for _, e := range doc {
		if e.Key == key {
			return true
		}
	}
	return false
}
