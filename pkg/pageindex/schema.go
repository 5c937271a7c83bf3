package pageindex

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"slices"
	"strings"
)

// columnDef describes a single column of an index table.
type columnDef struct {
	name string
	decl string // type and constraints, e.g. "INTEGER NOT NULL DEFAULT 0"
}

// tableDef describes one table owned by an indexer.
type tableDef struct {
	name        string
	columns     []columnDef
	constraints []string   // table constraints, e.g. "UNIQUE (parent, basename)"
	indexes     [][]string // secondary indexes, one column list each
}

func (t tableDef) createSQL() []string {
	defs := make([]string, 0, len(t.columns)+len(t.constraints))
	for _, c := range t.columns {
		defs = append(defs, c.name+" "+c.decl)
	}

	defs = append(defs, t.constraints...)

	stmts := []string{
		fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", t.name, strings.Join(defs, ",\n\t")),
	}

	for _, cols := range t.indexes {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX idx_%s_%s ON %s (%s)",
			t.name, strings.Join(cols, "_"), t.name, strings.Join(cols, ", "),
		))
	}

	return stmts
}

func (t tableDef) columnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}

	return names
}

// schema is the full set of tables of an index: the property table plus
// every indexer's tables.
type schema struct {
	tables []tableDef
}

var errSchemaMismatch = errors.New("schema mismatch")

var propertiesTable = tableDef{
	name: "index_properties",
	columns: []columnDef{
		{"key", "TEXT NOT NULL UNIQUE"},
		{"value", "TEXT"},
	},
}

func newSchema(indexers []indexer) schema {
	tables := []tableDef{propertiesTable}
	for _, ix := range indexers {
		tables = append(tables, ix.tables()...)
	}

	return schema{tables: tables}
}

// fingerprint hashes table names, column definitions, constraints and
// indexes. It is stored in PRAGMA user_version, which is a signed 32 bit
// integer, so the top bit is masked off.
func (s schema) fingerprint() int64 {
	h := fnv.New32a()

	// fnv Write never returns an error.
	for _, t := range s.tables {
		_, _ = h.Write([]byte(t.name))

		for _, c := range t.columns {
			_, _ = h.Write([]byte(c.name))
			_, _ = h.Write([]byte(c.decl))
		}

		for _, c := range t.constraints {
			_, _ = h.Write([]byte(c))
		}

		for _, cols := range t.indexes {
			_, _ = h.Write([]byte(strings.Join(cols, ",")))
		}
	}

	return int64(h.Sum32() & 0x7fffffff)
}

// verify compares the stored version and the actual columns of every table
// against the definition. Unknown or missing columns are reported as
// [errSchemaMismatch] so the caller rebuilds instead of failing on first use.
func (s schema) verify(ctx context.Context, q querier) error {
	version, err := storedSchemaVersion(ctx, q)
	if err != nil {
		return err
	}

	if version != s.fingerprint() {
		return fmt.Errorf("%w: user_version %d, want %d", errSchemaMismatch, version, s.fingerprint())
	}

	for _, t := range s.tables {
		got, err := tableColumns(ctx, q, t.name)
		if err != nil {
			return err
		}

		if !slices.Equal(got, t.columnNames()) {
			return fmt.Errorf("%w: table %s has columns %v, want %v", errSchemaMismatch, t.name, got, t.columnNames())
		}
	}

	return nil
}

func tableColumns(ctx context.Context, q querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}

	defer func() { _ = rows.Close() }()

	var cols []string

	for rows.Next() {
		var name string

		err = rows.Scan(&name)
		if err != nil {
			return nil, fmt.Errorf("table info %s: %w", table, err)
		}

		cols = append(cols, name)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}

	return cols, nil
}

// rebuild drops every user table and creates the schema from scratch with
// a fresh root row flagged for a full tree check.
func (s schema) rebuild(ctx context.Context, q querier, now int64) error {
	existing, err := listTables(ctx, q)
	if err != nil {
		return err
	}

	for _, name := range existing {
		_, err = q.ExecContext(ctx, "DROP TABLE IF EXISTS "+name)
		if err != nil {
			return fmt.Errorf("drop table %s: %w", name, err)
		}
	}

	for _, t := range s.tables {
		for _, stmt := range t.createSQL() {
			_, err = q.ExecContext(ctx, stmt)
			if err != nil {
				return fmt.Errorf("create table %s: %w", t.name, err)
			}
		}
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO pages (id, parent, basename, sortkey, needscheck, n_children, ctime, mtime)
		VALUES (?, 0, '', '', ?, 0, ?, ?)`,
		RootID, CheckTree, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert root: %w", err)
	}

	_, err = q.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", s.fingerprint()))
	if err != nil {
		return fmt.Errorf("write user_version: %w", err)
	}

	return setProperty(ctx, q, propProbablyUpToDate, "false")
}

func listTables(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var names []string

	for rows.Next() {
		var name string

		err = rows.Scan(&name)
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}

		names = append(names, name)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	return names, nil
}
