// Package engine executes model-generated SQL against one customer's scoped
// dataset. Every execution stages the dataset into a fresh in-memory DuckDB
// instance, so nothing is shared between queries and the bound table is the
// only relation the SQL can reach.
package engine

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/shipchat/shipchat/internal/dataset"
	"github.com/shipchat/shipchat/internal/observability"
)

// Executor runs normalized SQL against a scoped dataset.
type Executor interface {
	Execute(ctx context.Context, sqlText string, scoped dataset.Dataset) (dataset.Dataset, error)
}

type DuckDB struct {
	// TablePlaceholder is the literal table token the model is instructed
	// to reference, e.g. "data.csv".
	TablePlaceholder string
	// BoundTable is the view name the placeholder is rewritten to.
	BoundTable string
	// DropColumns are removed from the result by name before returning.
	DropColumns []string
}

func NewDuckDB(tablePlaceholder string) *DuckDB {
	return &DuckDB{
		TablePlaceholder: tablePlaceholder,
		BoundTable:       "database_subset",
	}
}

// Execute rewrites every placeholder occurrence to the bound table, stages
// the scoped dataset as that table, and runs the query. The substitution is
// the only table resolution mechanism: any other table reference fails
// inside DuckDB because no other relation exists.
func (e *DuckDB) Execute(ctx context.Context, sqlText string, scoped dataset.Dataset) (dataset.Dataset, error) {
	if strings.TrimSpace(sqlText) == "" {
		return dataset.Dataset{}, fmt.Errorf("sql is required")
	}
	if len(scoped.Columns) == 0 {
		return dataset.Dataset{}, fmt.Errorf("no scoped dataset bound")
	}

	start := time.Now()
	workDir, err := os.MkdirTemp("", "shipchat-query-")
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("create query temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	stagePath := filepath.Join(workDir, "subset.csv")
	if err := writeCSV(stagePath, scoped); err != nil {
		return dataset.Dataset{}, fmt.Errorf("stage scoped dataset: %w", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	viewSQL := fmt.Sprintf(
		`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_csv_auto('%s', header=true)`,
		quoteIdent(e.BoundTable), strings.ReplaceAll(stagePath, "'", "''"),
	)
	if _, err := db.ExecContext(ctx, viewSQL); err != nil {
		return dataset.Dataset{}, fmt.Errorf("bind scoped table: %w", err)
	}

	bound := e.substitute(sqlText)
	rows, err := db.QueryContext(ctx, bound)
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result, err := scanRows(rows)
	if err != nil {
		return dataset.Dataset{}, err
	}
	observability.ObserveQueryLatency(time.Since(start))

	if len(e.DropColumns) > 0 {
		result = result.WithoutColumns(e.DropColumns...)
	}
	return result, nil
}

func (e *DuckDB) substitute(sqlText string) string {
	return strings.ReplaceAll(sqlText, e.TablePlaceholder, e.BoundTable)
}

func writeCSV(path string, scoped dataset.Dataset) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	if err := writer.Write(scoped.Columns); err != nil {
		return err
	}
	record := make([]string, len(scoped.Columns))
	for _, row := range scoped.Rows {
		if len(row) != len(scoped.Columns) {
			return fmt.Errorf("row width %d does not match %d columns", len(row), len(scoped.Columns))
		}
		for i, value := range row {
			record[i] = formatValue(value)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	case time.Time:
		return typed.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

func scanRows(rows *sql.Rows) (dataset.Dataset, error) {
	columns, err := rows.Columns()
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return dataset.Dataset{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return dataset.Dataset{}, fmt.Errorf("iterate rows: %w", err)
	}
	return dataset.Dataset{Columns: columns, Rows: resultRows}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
