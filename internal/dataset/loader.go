package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/shipchat/shipchat/internal/config"
)

// Loader resolves free-form login text into a per-customer scoped dataset.
//
// Scope widening is deliberate and preserved from the original system: once
// any valid code resolves to a customer name, the session dataset contains
// every order under that name, not only the order matching the typed code.
type Loader struct {
	cfg  config.DataConfig
	open func() (*sql.DB, error)
}

func NewLoader(cfg config.DataConfig) *Loader {
	return &Loader{
		cfg: cfg,
		open: func() (*sql.DB, error) {
			return sql.Open("duckdb", "")
		},
	}
}

// NewLoaderWithDB injects a database handle factory, used by tests to run
// the resolution SQL against a mocked driver.
func NewLoaderWithDB(cfg config.DataConfig, open func() (*sql.DB, error)) *Loader {
	return &Loader{cfg: cfg, open: open}
}

// Load scans rawText for the order-code marker and, when a code resolves,
// returns the widened dataset plus the display name and the normalized code.
// A not-found code is a valid outcome: empty dataset, empty name, no error.
// Callers distinguish found from not-found solely via the row count.
func (l *Loader) Load(ctx context.Context, rawText string) (Dataset, string, string, error) {
	code, ok := l.extractCode(rawText)
	if !ok {
		return Dataset{}, "", "", nil
	}

	db, err := l.open()
	if err != nil {
		return Dataset{}, "", "", fmt.Errorf("open engine: %w", err)
	}
	defer func() { _ = db.Close() }()

	source := l.masterSource()
	nameQuery := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE %s = ?",
		quoteIdent(l.cfg.NameColumn), source, quoteIdent(l.cfg.CodeColumn),
	)
	var name string
	if err := db.QueryRowContext(ctx, nameQuery, code).Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return Dataset{}, "", code, nil
		}
		return Dataset{}, "", "", fmt.Errorf("resolve customer name: %w", err)
	}

	rowsQuery := fmt.Sprintf(
		"SELECT * FROM %s WHERE %s = ?",
		source, quoteIdent(l.cfg.NameColumn),
	)
	rows, err := db.QueryContext(ctx, rowsQuery, name)
	if err != nil {
		return Dataset{}, "", "", fmt.Errorf("load scoped rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	scoped, err := scan(rows)
	if err != nil {
		return Dataset{}, "", "", err
	}
	return scoped, name, code, nil
}

// extractCode looks for the fixed marker and slices a fixed-length candidate
// starting at it. Absent marker or a truncated tail means unresolved.
func (l *Loader) extractCode(rawText string) (string, bool) {
	idx := strings.Index(rawText, l.cfg.CodeMarker)
	if idx < 0 {
		return "", false
	}
	if idx+l.cfg.CodeLength > len(rawText) {
		return "", false
	}
	return rawText[idx : idx+l.cfg.CodeLength], true
}

func (l *Loader) masterSource() string {
	path := filepath.Join(l.cfg.Dir, l.cfg.MasterFile)
	return fmt.Sprintf("read_csv_auto('%s')", strings.ReplaceAll(path, "'", "''"))
}

func scan(rows *sql.Rows) (Dataset, error) {
	columns, err := rows.Columns()
	if err != nil {
		return Dataset{}, fmt.Errorf("dataset columns: %w", err)
	}

	scanned := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return Dataset{}, fmt.Errorf("scan dataset row: %w", err)
		}
		scanned = append(scanned, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Dataset{}, fmt.Errorf("iterate dataset rows: %w", err)
	}
	return Dataset{Columns: columns, Rows: scanned}, nil
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
