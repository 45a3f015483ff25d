package source

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLSource reads a series through database/sql. Driver is "postgres" or
// "sqlite". With Query set, its result columns are used as is: the first is
// the time when TimeColumn is set, the rest are channels. Otherwise a query
// over Table selecting TimeColumn and Columns is built. Rows with a NULL
// value in any channel are skipped.
type SQLSource struct {
	Driver     string
	DSN        string
	Query      string
	Args       []any
	Table      string
	TimeColumn string
	Columns    []string

	db *sql.DB
}

// NewSQLSource wraps an open database handle.
func NewSQLSource(db *sql.DB, query, timeColumn string, args ...any) *SQLSource {
	return &SQLSource{db: db, Query: query, TimeColumn: timeColumn, Args: args}
}

// Load runs the query and collects every row.
func (s *SQLSource) Load(ctx context.Context) (*Series, error) {
	db := s.db
	if db == nil {
		var err error
		db, err = sql.Open(s.Driver, s.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s database: %w", s.Driver, err)
		}
		defer db.Close()
	}

	query, err := s.buildQuery()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, s.Args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	hasTime := s.TimeColumn != ""
	names := cols
	if hasTime {
		names = cols[1:]
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("query returns no value columns")
	}

	series := &Series{Names: names, Channels: make([][]float64, len(names))}
	if hasTime {
		series.Times = []time.Time{}
	}
	for i := range series.Channels {
		series.Channels[i] = []float64{}
	}

	var ts any
	values := make([]sql.NullFloat64, len(names))
	dest := make([]any, 0, len(cols))
	if hasTime {
		dest = append(dest, &ts)
	}
	for i := range values {
		dest = append(dest, &values[i])
	}

rowLoop:
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		for _, v := range values {
			if !v.Valid {
				continue rowLoop
			}
		}
		if hasTime {
			t, err := toTime(ts)
			if err != nil {
				return nil, err
			}
			series.Times = append(series.Times, t)
		}
		for i, v := range values {
			series.Channels[i] = append(series.Channels[i], v.Float64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return series, nil
}

func (s *SQLSource) buildQuery() (string, error) {
	if s.Query != "" {
		return s.Query, nil
	}
	if len(s.Columns) == 0 {
		return "", fmt.Errorf("table source needs at least one column")
	}

	cols := make([]string, 0, len(s.Columns)+1)
	if s.TimeColumn != "" {
		cols = append(cols, s.TimeColumn)
	}
	cols = append(cols, s.Columns...)
	for _, c := range append(cols, s.Table) {
		if !identifier.MatchString(c) {
			return "", fmt.Errorf("invalid identifier %q", c)
		}
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), s.Table)
	if s.TimeColumn != "" {
		query += " ORDER BY " + s.TimeColumn
	}
	return query, nil
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case float64:
		return parseTime(fmt.Sprint(t))
	default:
		return time.Time{}, fmt.Errorf("unsupported time value %T", v)
	}
}
