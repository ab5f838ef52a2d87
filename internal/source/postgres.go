package source

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// DefaultPostgresTable is read when no table is configured.
const DefaultPostgresTable = "drill_runs"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Postgres reads drill runs from a table in a Postgres database. Every column
// is read as text and coerced exactly as CSV cells are.
type Postgres struct {
	dsn       string
	table     string
	companies CompanyTable
}

// NewPostgres validates the table identifier and returns a source. The
// connection is opened per ReadRecords call.
func NewPostgres(dsn, table string, companies CompanyTable) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	if table == "" {
		table = DefaultPostgresTable
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", table)
	}
	return &Postgres{dsn: dsn, table: table, companies: companies}, nil
}

// Name returns the qualified table name.
func (p *Postgres) Name() string { return "postgres:" + p.table }

// ReadRecords scans the table in (date, job_id) order.
func (p *Postgres) ReadRecords(ctx context.Context, onSkip func(*model.FieldCoercionError)) ([]model.Record, error) {
	pool, err := pgxpool.New(ctx, p.dsn)
	if err != nil {
		return nil, &model.DataLoadError{Source: p.Name(), Err: err}
	}
	defer pool.Close()

	actual, err := p.columns(ctx, pool)
	if err != nil {
		return nil, &model.DataLoadError{Source: p.Name(), Err: err}
	}
	if missing := missingColumns(actual); len(missing) > 0 {
		return nil, &model.DataLoadError{Source: p.Name(), Missing: missing}
	}

	query, cols := selectRuns(p.identifier(), actual)
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, &model.DataLoadError{Source: p.Name(), Err: err}
	}
	defer rows.Close()

	cv := coercer{companies: p.companies}
	var records []model.Record
	n := 0
	values := make([]string, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}
	for rows.Next() {
		n++
		if err := rows.Scan(dest...); err != nil {
			if onSkip != nil {
				onSkip(&model.FieldCoercionError{Row: n, Column: "*", Err: err})
			}
			continue
		}
		rec, cerr := cv.record(n, func(col string) (string, bool) {
			i, ok := index[col]
			if !ok {
				return "", false
			}
			return values[i], true
		})
		if cerr != nil {
			if onSkip != nil {
				onSkip(cerr)
			}
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.DataLoadError{Source: p.Name(), Err: err}
	}
	if n > 0 && len(records) == 0 {
		return nil, &model.DataLoadError{Source: p.Name(), Err: errNoUsableRows}
	}
	return records, nil
}

// selectRuns builds the scan query. actual maps canonical column names to
// the table's own spelling, which is what gets quoted. It returns the
// canonical names in select-list order.
func selectRuns(table pgx.Identifier, actual map[string]string) (string, []string) {
	cols := append([]string{}, RequiredColumns...)
	for _, c := range OptionalColumns {
		if _, ok := actual[c]; ok {
			cols = append(cols, c)
		}
	}
	selects := make([]string, len(cols))
	for i, c := range cols {
		selects[i] = fmt.Sprintf("COALESCE(%s::text, '')", pgx.Identifier{actual[c]}.Sanitize())
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s, %s",
		strings.Join(selects, ", "),
		table.Sanitize(),
		pgx.Identifier{actual[colDate]}.Sanitize(),
		pgx.Identifier{actual[colJobID]}.Sanitize(),
	)
	return query, cols
}

func (p *Postgres) identifier() pgx.Identifier {
	return pgx.Identifier(strings.Split(p.table, "."))
}

// columns maps canonical column names to the table's actual names, read
// from information_schema.
func (p *Postgres) columns(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	schema, table := "public", p.table
	if i := strings.IndexByte(p.table, '.'); i >= 0 {
		schema, table = p.table[:i], p.table[i+1:]
	}
	rows, err := pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("table %s not found", p.table)
	}
	actual := make(map[string]string, len(names))
	for _, name := range names {
		canonical := normalizeHeader(name)
		if _, dup := actual[canonical]; !dup {
			actual[canonical] = name
		}
	}
	return actual, nil
}
