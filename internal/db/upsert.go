package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

const (
	// maxParams is the Postgres wire limit on bind parameters per statement.
	maxParams        = 65535
	defaultChunkRows = 500
)

// UpsertConfig describes a keyed insert-or-update against one table.
type UpsertConfig struct {
	Table        string   // target table, optionally schema-qualified
	Columns      []string // column order of every row
	ConflictKeys []string // columns of the unique constraint; must appear in Columns
	// UpdateCols lists the columns rewritten on conflict. nil means every
	// column outside ConflictKeys; an empty result turns the upsert into
	// INSERT ... DO NOTHING.
	UpdateCols []string
	// ChunkSize caps rows per statement. 0 uses defaultChunkRows.
	ChunkSize int
}

// BulkUpsert writes rows with multi-row INSERT ... ON CONFLICT statements
// inside one transaction. Rows are split into chunks that stay under the
// bind parameter limit. It returns the total rows affected.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(rows); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: begin tx", cfg.Table)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	chunk := cfg.chunkRows()
	var total int64
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		sql, args := upsertStatement(cfg, rows[start:end])
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return 0, eris.Wrapf(err, "db: upsert %s rows %d-%d", cfg.Table, start, end-1)
		}
		total += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: upsert %s: commit tx", cfg.Table)
	}
	return total, nil
}

func (c UpsertConfig) validate(rows [][]any) error {
	if len(c.Columns) == 0 {
		return eris.Errorf("db: upsert %s: no columns specified", c.Table)
	}
	if len(c.ConflictKeys) == 0 {
		return eris.Errorf("db: upsert %s: no conflict keys specified", c.Table)
	}
	for _, k := range c.ConflictKeys {
		if !contains(c.Columns, k) {
			return eris.Errorf("db: upsert %s: conflict key %q is not a column", c.Table, k)
		}
	}
	for i, r := range rows {
		if len(r) != len(c.Columns) {
			return eris.Errorf("db: upsert %s: row %d has %d values, want %d", c.Table, i, len(r), len(c.Columns))
		}
	}
	return nil
}

func (c UpsertConfig) chunkRows() int {
	size := c.ChunkSize
	if size <= 0 {
		size = defaultChunkRows
	}
	if limit := maxParams / len(c.Columns); size > limit {
		size = limit
	}
	return size
}

func (c UpsertConfig) updateColumns() []string {
	if c.UpdateCols != nil {
		return c.UpdateCols
	}
	var cols []string
	for _, col := range c.Columns {
		if !contains(c.ConflictKeys, col) {
			cols = append(cols, col)
		}
	}
	return cols
}

// upsertStatement renders one INSERT for rows with positional parameters.
func upsertStatement(cfg UpsertConfig, rows [][]any) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", qualifiedName(cfg.Table), identList(cfg.Columns))

	args := make([]any, 0, len(rows)*len(cfg.Columns))
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, v := range r {
			if j > 0 {
				b.WriteString(", ")
			}
			args = append(args, v)
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteByte(')')
	}

	fmt.Fprintf(&b, " ON CONFLICT (%s) ", identList(cfg.ConflictKeys))
	update := cfg.updateColumns()
	if len(update) == 0 {
		b.WriteString("DO NOTHING")
		return b.String(), args
	}
	b.WriteString("DO UPDATE SET ")
	for i, col := range update {
		if i > 0 {
			b.WriteString(", ")
		}
		id := pgx.Identifier{col}.Sanitize()
		fmt.Fprintf(&b, "%s = EXCLUDED.%s", id, id)
	}
	return b.String(), args
}

// qualifiedName quotes a table name, splitting an optional schema prefix.
func qualifiedName(table string) string {
	return pgx.Identifier(strings.SplitN(table, ".", 2)).Sanitize()
}

func identList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
