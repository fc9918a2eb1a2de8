package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/lucasmira/pgdoc/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   string `json:"_id,omitempty"`
	Name string `json:"name"`
	Qty  int    `json:"qty"`
}

// fakeDriver is a minimal in-memory core.Driver. It only matches top-level
// equality filters (no $-operators) — enough to exercise Model[T]'s own
// bookkeeping (stamping reserved fields, soft delete, optimistic lock)
// without depending on a real Postgres instance or re-implementing the
// compiler's semantics.
type fakeDriver struct {
	rows         map[string][]map[string]any
	queryResults []map[string]any
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{rows: make(map[string][]map[string]any)}
}

func (d *fakeDriver) Connect(ctx context.Context) error { return nil }
func (d *fakeDriver) Ping(ctx context.Context) error     { return nil }
func (d *fakeDriver) Close(ctx context.Context) error    { return nil }
func (d *fakeDriver) Transaction(ctx context.Context) (core.Transaction, error) {
	return nil, nil
}
func (d *fakeDriver) Bootstrap(ctx context.Context, schema *core.SchemaCore) error { return nil }

func (d *fakeDriver) Insert(ctx context.Context, schema *core.SchemaCore, document core.M) (string, error) {
	id, _ := document["_id"].(string)
	d.rows[schema.Collection] = append(d.rows[schema.Collection], map[string]any(document))
	return id, nil
}

func matches(row map[string]any, filter core.Doc) bool {
	for _, entry := range filter {
		if row[entry.Key] != entry.Value {
			return false
		}
	}
	return true
}

func (d *fakeDriver) findAll(schema *core.SchemaCore, where *core.Where) []map[string]any {
	var out []map[string]any
	for _, row := range d.rows[schema.Collection] {
		if matches(row, where.Filter) {
			out = append(out, row)
		}
	}
	return out
}

func (d *fakeDriver) FindOne(ctx context.Context, schema *core.SchemaCore, where *core.Where) (json.RawMessage, error) {
	rows := d.findAll(schema, where)
	if len(rows) == 0 {
		return nil, nil
	}
	return json.Marshal(rows[0])
}

func (d *fakeDriver) FindMany(ctx context.Context, schema *core.SchemaCore, where *core.Where) ([]json.RawMessage, error) {
	var out []json.RawMessage
	for _, row := range d.findAll(schema, where) {
		raw, err := json.Marshal(row)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func (d *fakeDriver) Count(ctx context.Context, schema *core.SchemaCore, where *core.Where) (int64, error) {
	return int64(len(d.findAll(schema, where))), nil
}

// applyUpdate runs changes against every row in a collection matching
// filter, stopping after the first match when limitOne is set — the fake's
// stand-in for the real driver's ctid-bounded UpdateOne subquery.
func (d *fakeDriver) applyUpdate(schema *core.SchemaCore, filter core.Doc, changes core.Changes, limitOne bool) int64 {
	var n int64
	for i, row := range d.rows[schema.Collection] {
		if !matches(row, filter) {
			continue
		}
		for _, op := range changes {
			sub, _ := op.Value.(core.Doc)
			for _, field := range sub {
				switch op.Key {
				case "$set":
					row[field.Key] = field.Value
				case "$inc":
					cur, _ := row[field.Key].(int)
					delta, _ := field.Value.(int)
					row[field.Key] = cur + delta
				}
			}
		}
		d.rows[schema.Collection][i] = row
		n++
		if limitOne {
			break
		}
	}
	return n
}

func (d *fakeDriver) UpdateOne(ctx context.Context, schema *core.SchemaCore, filter core.Doc, changes core.Changes) (int64, error) {
	return d.applyUpdate(schema, filter, changes, true), nil
}

func (d *fakeDriver) UpdateMany(ctx context.Context, schema *core.SchemaCore, filter core.Doc, changes core.Changes) (int64, error) {
	return d.applyUpdate(schema, filter, changes, false), nil
}

func (d *fakeDriver) Query(ctx context.Context, sqlText string, params []any) ([]map[string]any, error) {
	return d.queryResults, nil
}

// SoftDelete mirrors the real driver's BuildSoftDelete: it stamps
// _deletedAt on every matching row rather than removing it, so toWhere's
// {_deletedAt: nil} read-filter augmentation excludes it afterward.
func (d *fakeDriver) SoftDelete(ctx context.Context, schema *core.SchemaCore, filter core.Doc, deletedAtMillis int64) (int64, error) {
	var n int64
	for i, row := range d.rows[schema.Collection] {
		if !matches(row, filter) {
			continue
		}
		row["_deletedAt"] = deletedAtMillis
		d.rows[schema.Collection][i] = row
		n++
	}
	return n, nil
}

func (d *fakeDriver) Delete(ctx context.Context, schema *core.SchemaCore, filter core.Doc) (int64, error) {
	kept := d.rows[schema.Collection][:0]
	var n int64
	for _, row := range d.rows[schema.Collection] {
		if matches(row, filter) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	d.rows[schema.Collection] = kept
	return n, nil
}

func TestModel_CreateStampsReservedFields(t *testing.T) {
	schema := core.Schema[widget]("widgets")
	driver := newFakeDriver()
	model := core.NewModel(schema, driver)

	w := &widget{Name: "gear", Qty: 3}
	require.NoError(t, model.Create(context.Background(), w))

	assert.NotEmpty(t, w.ID)
	require.Len(t, driver.rows["widgets"], 1)
	stored := driver.rows["widgets"][0]
	assert.Equal(t, w.ID, stored["_id"])
	assert.Contains(t, stored, "_ctime")
	assert.Contains(t, stored, "_mtime")
}

func TestModel_FindByID(t *testing.T) {
	schema := core.Schema[widget]("widgets")
	model := core.NewModel(schema, newFakeDriver())

	w := &widget{Name: "gear", Qty: 3}
	require.NoError(t, model.Create(context.Background(), w))

	found, err := model.FindByID(context.Background(), w.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "gear", found.Name)
}

func TestModel_SoftDeleteExcludesFromFind(t *testing.T) {
	schema := core.Schema[widget]("widgets", core.WithSoftDelete[widget]())
	model := core.NewModel(schema, newFakeDriver())

	w := &widget{Name: "gear", Qty: 3}
	require.NoError(t, model.Create(context.Background(), w))

	_, err := model.Delete(context.Background(), core.Doc{{Key: "_id", Value: w.ID}})
	require.NoError(t, err)

	found, err := model.FindByID(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	foundDeleted, err := model.FindByID(context.Background(), w.ID, core.FindOptions{WithDeleted: true})
	require.NoError(t, err)
	require.NotNil(t, foundDeleted)
}

func TestModel_OptimisticLockMismatch(t *testing.T) {
	schema := core.Schema[widget]("widgets", core.WithOptimisticLock[widget]())
	model := core.NewModel(schema, newFakeDriver())

	w := &widget{Name: "gear", Qty: 3}
	require.NoError(t, model.Create(context.Background(), w))

	filter := core.Doc{{Key: "_id", Value: w.ID}, {Key: "_vers", Value: int64(99)}}
	_, err := model.UpdateOne(context.Background(), filter, core.Doc{{Key: "$set", Value: core.Doc{{Key: "qty", Value: 10}}}})

	var lockErr *core.ErrOptimisticLock
	require.True(t, errors.As(err, &lockErr), "expected *core.ErrOptimisticLock, got %v", err)
	assert.EqualValues(t, 99, lockErr.Expected)
	assert.EqualValues(t, 1, lockErr.Actual)
}

// TestModel_OptimisticLockRowAbsent is the disambiguating case a naive
// zero-rows-affected check gets wrong: the filter pins a _vers, but the
// row isn't merely under a different version — it doesn't exist at all.
// That must report ErrNotFound, not ErrOptimisticLock.
func TestModel_OptimisticLockRowAbsent(t *testing.T) {
	schema := core.Schema[widget]("widgets", core.WithOptimisticLock[widget]())
	model := core.NewModel(schema, newFakeDriver())

	filter := core.Doc{{Key: "_id", Value: "missing"}, {Key: "_vers", Value: int64(1)}}
	_, err := model.UpdateOne(context.Background(), filter, core.Doc{{Key: "$set", Value: core.Doc{{Key: "qty", Value: 10}}}})

	var notFound *core.ErrNotFound
	require.True(t, errors.As(err, &notFound), "expected *core.ErrNotFound, got %v", err)
	assert.Equal(t, "missing", notFound.ID)

	var lockErr *core.ErrOptimisticLock
	assert.False(t, errors.As(err, &lockErr), "row absent must not report ErrOptimisticLock")
}

func TestModel_UpdateNotFound(t *testing.T) {
	schema := core.Schema[widget]("widgets")
	model := core.NewModel(schema, newFakeDriver())

	_, err := model.UpdateOne(context.Background(),
		core.Doc{{Key: "_id", Value: "missing"}},
		core.Doc{{Key: "$set", Value: core.Doc{{Key: "qty", Value: 10}}}})

	var notFound *core.ErrNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestModel_UpdateManyAffectsEveryMatch(t *testing.T) {
	schema := core.Schema[widget]("widgets")
	model := core.NewModel(schema, newFakeDriver())

	require.NoError(t, model.Create(context.Background(), &widget{Name: "gear", Qty: 1}))
	require.NoError(t, model.Create(context.Background(), &widget{Name: "gear", Qty: 2}))

	n, err := model.UpdateMany(context.Background(),
		core.Doc{{Key: "name", Value: "gear"}},
		core.Doc{{Key: "$set", Value: core.Doc{{Key: "qty", Value: 9}}}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestModel_UpdateOneAffectsAtMostOneRow(t *testing.T) {
	schema := core.Schema[widget]("widgets")
	model := core.NewModel(schema, newFakeDriver())

	require.NoError(t, model.Create(context.Background(), &widget{Name: "gear", Qty: 1}))
	require.NoError(t, model.Create(context.Background(), &widget{Name: "gear", Qty: 2}))

	n, err := model.UpdateOne(context.Background(),
		core.Doc{{Key: "name", Value: "gear"}},
		core.Doc{{Key: "$set", Value: core.Doc{{Key: "qty", Value: 9}}}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestModel_EmptyFilterRejected(t *testing.T) {
	schema := core.Schema[widget]("widgets")
	model := core.NewModel(schema, newFakeDriver())

	_, err := model.UpdateOne(context.Background(), core.Doc{},
		core.Doc{{Key: "$set", Value: core.Doc{{Key: "qty", Value: 10}}}})
	var destructive *core.ErrEmptyDestructive
	assert.True(t, errors.As(err, &destructive))

	_, err = model.Delete(context.Background(), core.Doc{})
	assert.True(t, errors.As(err, &destructive))
}

func TestModel_QueryDecodesJSONColumn(t *testing.T) {
	schema := core.Schema[widget]("widgets")
	driver := newFakeDriver()
	model := core.NewModel(schema, driver)

	driver.queryResults = []map[string]any{
		{"data": map[string]any{"_id": "widgets_1", "name": "gear", "qty": float64(5)}},
	}

	result, err := model.Query(context.Background(), "SELECT data FROM widgets", nil, false)
	require.NoError(t, err)
	require.Len(t, result.Docs, 1)
	assert.Equal(t, "gear", result.Docs[0].Name)
	require.Len(t, result.Rows, 1)
}

func TestModel_QueryRawSkipsDecode(t *testing.T) {
	schema := core.Schema[widget]("widgets")
	driver := newFakeDriver()
	model := core.NewModel(schema, driver)

	driver.queryResults = []map[string]any{
		{"count": int64(3)},
	}

	result, err := model.Query(context.Background(), "SELECT COUNT(*) AS count FROM widgets", nil, true)
	require.NoError(t, err)
	assert.Empty(t, result.Docs)
	require.Len(t, result.Rows, 1)
	assert.EqualValues(t, 3, result.Rows[0]["count"])
}

func TestDocument_SaveAndRemove(t *testing.T) {
	schema := core.Schema[widget]("widgets")
	model := core.NewModel(schema, newFakeDriver())

	w := &widget{Name: "gear", Qty: 3}
	require.NoError(t, model.Create(context.Background(), w))

	doc := model.Wrap(w)
	n, err := doc.Save(context.Background(), core.Doc{{Key: "$set", Value: core.Doc{{Key: "qty", Value: 42}}}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	updated, err := model.FindByID(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, updated.Qty)

	n, err = doc.Remove(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	gone, err := model.FindByID(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestPopulate_ResolvesReference(t *testing.T) {
	type order struct {
		ID      string `json:"_id,omitempty"`
		GearID  string `json:"gearId"`
		Comment string `json:"comment"`
	}

	driver := newFakeDriver()
	gears := core.NewModel(core.Schema[widget]("widgets"), driver)
	orders := core.NewModel(core.Schema[order]("orders"), driver)

	gear := &widget{Name: "gear", Qty: 3}
	require.NoError(t, gears.Create(context.Background(), gear))

	o := &order{GearID: gear.ID, Comment: "rush"}
	require.NoError(t, orders.Create(context.Background(), o))

	resolved, err := core.Populate(context.Background(), orders.Wrap(o), "gearId", gears)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "gear", resolved.Name)
}

func TestPopulate_InvalidReferenceField(t *testing.T) {
	type order struct {
		ID     string `json:"_id,omitempty"`
		GearID string `json:"gearId"`
	}

	driver := newFakeDriver()
	gears := core.NewModel(core.Schema[widget]("widgets"), driver)
	orders := core.NewModel(core.Schema[order]("orders"), driver)

	o := &order{}
	require.NoError(t, orders.Create(context.Background(), o))

	_, err := core.Populate(context.Background(), orders.Wrap(o), "gearId", gears)
	var invalid *core.ErrInvalidOperand
	assert.True(t, errors.As(err, &invalid))
}
