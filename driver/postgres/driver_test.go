package postgres

import (
	"testing"

	"github.com/lucasmira/pgdoc/compiler"
	"github.com/lucasmira/pgdoc/core"
	"github.com/stretchr/testify/assert"
)

func TestFormatTable(t *testing.T) {
	driver := &PostgresDriver{}

	assert.Equal(t, `"widgets"`, driver.formatTable(&core.SchemaCore{Collection: "widgets"}))
	assert.Equal(t, `"tenant_a"."widgets"`, driver.formatTable(&core.SchemaCore{Database: "tenant_a", Collection: "widgets"}))
}

func TestJSONField(t *testing.T) {
	assert.Equal(t, "data", jsonField(&core.SchemaCore{}))
	assert.Equal(t, "payload", jsonField(&core.SchemaCore{JSONField: "payload"}))
}

func TestSelectOptions(t *testing.T) {
	schema := &core.SchemaCore{Collection: "widgets", Database: "tenant_a", JSONField: "payload"}
	where := &core.Where{
		Limit:  10,
		Offset: 5,
		Sort:   []core.Sort{{Path: "qty", Dir: -1}},
	}

	opts := selectOptions(schema, where)
	assert.Equal(t, "payload", opts.JSONField)
	assert.Equal(t, "tenant_a", opts.Schema)
	assert.Equal(t, 10, opts.Limit)
	assert.Equal(t, 5, opts.Offset)
	assert.Equal(t, []compiler.SortKey{{Path: "qty", Dir: -1}}, opts.Sort)
}

func TestSelectOptions_NilWhere(t *testing.T) {
	schema := &core.SchemaCore{Collection: "widgets"}
	opts := selectOptions(schema, nil)
	assert.Equal(t, "data", opts.JSONField)
	assert.Zero(t, opts.Limit)
	assert.Empty(t, opts.Sort)
}

func TestFindOneUsesLimitOne(t *testing.T) {
	schema := &core.SchemaCore{Collection: "widgets"}
	where := &core.Where{Filter: core.Doc{{Key: "name", Value: "gear"}}}

	opts := selectOptions(schema, where)
	opts.Limit = 1
	sqlText, params, err := compiler.BuildSelect(schema.Collection, where.Filter, opts)

	assert.NoError(t, err)
	assert.Contains(t, sqlText, "LIMIT 1")
	assert.Equal(t, []any{"gear"}, params)
}

func TestBootstrapSQLShape(t *testing.T) {
	driver := &PostgresDriver{}
	schema := &core.SchemaCore{Collection: "widgets"}

	table := driver.formatTable(schema)
	field := jsonField(schema)

	assert.Equal(t, `"widgets"`, table)
	assert.Equal(t, "data", field)
}
