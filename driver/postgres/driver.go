package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lucasmira/pgdoc/compiler"
	"github.com/lucasmira/pgdoc/core"
)

//region postgresTransaction

type postgresTransaction struct {
	transaction pgx.Tx
}

func (transaction *postgresTransaction) Commit(ctx context.Context) error {
	return transaction.transaction.Commit(ctx)
}

func (transaction *postgresTransaction) Rollback(ctx context.Context) error {
	return transaction.transaction.Rollback(ctx)
}

//endregion

//region PostgresDriver

// PostgresDriver executes compiler-produced SQL against a JSONB-backed
// table per collection: one column ("data" by default) holding the whole
// document.
type PostgresDriver struct {
	pool *pgxpool.Pool
}

var _ core.Driver = (*PostgresDriver)(nil)

func NewPostgresDriver(ctx context.Context, connString string) (*PostgresDriver, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresDriver{pool: pool}, nil
}

func (driver *PostgresDriver) formatTable(schema *core.SchemaCore) string {
	if schema.Database != "" {
		return fmt.Sprintf("%q.%q", schema.Database, schema.Collection)
	}
	return fmt.Sprintf("%q", schema.Collection)
}

func jsonField(schema *core.SchemaCore) string {
	if schema.JSONField != "" {
		return schema.JSONField
	}
	return "data"
}

func selectOptions(schema *core.SchemaCore, where *core.Where) compiler.SelectOptions {
	opts := compiler.SelectOptions{
		JSONField: jsonField(schema),
		Schema:    schema.Database,
	}
	if where != nil {
		opts.Limit = where.Limit
		opts.Offset = where.Offset
		for _, s := range where.Sort {
			opts.Sort = append(opts.Sort, compiler.SortKey{Path: s.Path, Dir: s.Dir})
		}
	}
	return opts
}

//region transaction-aware execution primitives

func (driver *PostgresDriver) exec(ctx context.Context, sqlQuery string, args ...any) (pgconn.CommandTag, error) {
	if tx := core.TransactionFrom(ctx); tx != nil {
		if pgTx, ok := tx.(*postgresTransaction); ok {
			return pgTx.transaction.Exec(ctx, sqlQuery, args...)
		}
	}
	return driver.pool.Exec(ctx, sqlQuery, args...)
}

func (driver *PostgresDriver) query(ctx context.Context, sqlQuery string, args ...any) (pgx.Rows, error) {
	if tx := core.TransactionFrom(ctx); tx != nil {
		if pgTx, ok := tx.(*postgresTransaction); ok {
			return pgTx.transaction.Query(ctx, sqlQuery, args...)
		}
	}
	return driver.pool.Query(ctx, sqlQuery, args...)
}

func (driver *PostgresDriver) queryRow(ctx context.Context, sqlQuery string, args ...any) pgx.Row {
	if tx := core.TransactionFrom(ctx); tx != nil {
		if pgTx, ok := tx.(*postgresTransaction); ok {
			return pgTx.transaction.QueryRow(ctx, sqlQuery, args...)
		}
	}
	return driver.pool.QueryRow(ctx, sqlQuery, args...)
}

//endregion

func (driver *PostgresDriver) Connect(ctx context.Context) error {
	return driver.pool.Ping(ctx)
}

func (driver *PostgresDriver) Ping(ctx context.Context) error {
	return driver.pool.Ping(ctx)
}

func (driver *PostgresDriver) Close(ctx context.Context) error {
	driver.pool.Close()
	return nil
}

func (driver *PostgresDriver) Transaction(ctx context.Context) (core.Transaction, error) {
	tx, err := driver.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &postgresTransaction{transaction: tx}, nil
}

// Bootstrap creates the collection's table (a single JSONB column) and a
// unique index over its _id, if they don't already exist.
func (driver *PostgresDriver) Bootstrap(ctx context.Context, schema *core.SchemaCore) error {
	table := driver.formatTable(schema)
	field := jsonField(schema)

	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%q jsonb NOT NULL)`, table, field)
	if _, err := driver.exec(ctx, createTable); err != nil {
		return err
	}

	indexName := fmt.Sprintf("%s_id_idx", schema.Collection)
	createIndex := fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS %q ON %s ((%s->>'_id'))`,
		indexName, table, field,
	)
	_, err := driver.exec(ctx, createIndex)
	return err
}

// Insert stores document under the collection's JSONB column, returning the
// value of its "_id" key.
func (driver *PostgresDriver) Insert(ctx context.Context, schema *core.SchemaCore, document core.M) (string, error) {
	encoded, err := json.Marshal(document)
	if err != nil {
		return "", err
	}

	sqlQuery := fmt.Sprintf(
		`INSERT INTO %s (%q) VALUES ($1::jsonb) RETURNING %s->>'_id'`,
		driver.formatTable(schema), jsonField(schema), jsonField(schema),
	)

	var id string
	if err := driver.queryRow(ctx, sqlQuery, string(encoded)).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (driver *PostgresDriver) FindOne(ctx context.Context, schema *core.SchemaCore, where *core.Where) (json.RawMessage, error) {
	opts := selectOptions(schema, where)
	opts.Limit = 1
	sqlQuery, params, err := compiler.BuildSelect(schema.Collection, where.Filter, opts)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = driver.queryRow(ctx, sqlQuery, params...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

func (driver *PostgresDriver) FindMany(ctx context.Context, schema *core.SchemaCore, where *core.Where) ([]json.RawMessage, error) {
	opts := selectOptions(schema, where)
	sqlQuery, params, err := compiler.BuildSelect(schema.Collection, where.Filter, opts)
	if err != nil {
		return nil, err
	}

	rowList, err := driver.query(ctx, sqlQuery, params...)
	if err != nil {
		return nil, err
	}
	defer rowList.Close()

	var results []json.RawMessage
	for rowList.Next() {
		var raw []byte
		if err := rowList.Scan(&raw); err != nil {
			return nil, err
		}
		results = append(results, json.RawMessage(raw))
	}
	return results, rowList.Err()
}

func (driver *PostgresDriver) Count(ctx context.Context, schema *core.SchemaCore, where *core.Where) (int64, error) {
	opts := selectOptions(schema, where)
	sqlQuery, params, err := compiler.BuildCount(schema.Collection, where.Filter, opts)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := driver.queryRow(ctx, sqlQuery, params...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateOne applies changes to at most one row matching filter, by
// constraining the outer UPDATE's WHERE clause to the ctid a LIMIT 1
// subquery selects (compiler.SpliceUpdateOne) — the table has no declared
// surrogate key, so ctid is the only row-identity handle available.
func (driver *PostgresDriver) UpdateOne(ctx context.Context, schema *core.SchemaCore, filter core.Doc, changes core.Changes) (int64, error) {
	field := jsonField(schema)
	update, err := compiler.BuildUpdate(changes, field)
	if err != nil {
		return 0, err
	}
	if update == nil {
		return 0, nil
	}

	opts := selectOptions(schema, nil)
	sqlQuery, params, err := compiler.SpliceUpdateOne(schema.Collection, filter, update, opts)
	if err != nil {
		return 0, err
	}

	tag, err := driver.exec(ctx, sqlQuery, params...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdateMany applies changes to every row matching filter.
func (driver *PostgresDriver) UpdateMany(ctx context.Context, schema *core.SchemaCore, filter core.Doc, changes core.Changes) (int64, error) {
	field := jsonField(schema)
	update, err := compiler.BuildUpdate(changes, field)
	if err != nil {
		return 0, err
	}
	if update == nil {
		return 0, nil
	}

	opts := selectOptions(schema, nil)
	sqlQuery, params, err := compiler.SpliceUpdate(schema.Collection, filter, update, opts)
	if err != nil {
		return 0, err
	}

	tag, err := driver.exec(ctx, sqlQuery, params...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Query runs sqlText verbatim (the raw escape hatch core.Model.Query
// builds on), returning every column of every row by name. Column
// ordering isn't preserved past this map, in Model.Query's raw mode too,
// which returns these same maps.
func (driver *PostgresDriver) Query(ctx context.Context, sqlText string, params []any) ([]map[string]any, error) {
	rows, err := driver.query(ctx, sqlText, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var results []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (driver *PostgresDriver) Delete(ctx context.Context, schema *core.SchemaCore, filter core.Doc) (int64, error) {
	opts := selectOptions(schema, nil)
	sqlQuery, params, err := compiler.BuildDelete(schema.Collection, filter, opts)
	if err != nil {
		return 0, err
	}

	tag, err := driver.exec(ctx, sqlQuery, params...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SoftDelete stamps _deletedAt via compiler.BuildSoftDelete's literal
// jsonb_set(..., to_jsonb($K::numeric)) form instead of routing through the
// generic $set/jsonb_set_lax update pipeline: the reserved _deletedAt field
// is a top-level key, which plain jsonb_set adds when a document lacks it,
// and spec.md pins its persisted shape to a millisecond-epoch numeric rather
// than whatever encoding a generic $set would give a time.Time value.
func (driver *PostgresDriver) SoftDelete(ctx context.Context, schema *core.SchemaCore, filter core.Doc, deletedAtMillis int64) (int64, error) {
	opts := selectOptions(schema, nil)
	sqlQuery, params, err := compiler.BuildSoftDelete(schema.Collection, filter, opts, deletedAtMillis)
	if err != nil {
		return 0, err
	}

	tag, err := driver.exec(ctx, sqlQuery, params...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

//endregion
