// Package history records detection reports in SQLite or PostgreSQL so that
// earlier runs can be listed and compared.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/changepoint/internal/detect"
	"github.com/chrissnell/changepoint/pkg/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationTable = "history_migrations"

// Run is a stored report header.
type Run struct {
	RunID       string
	Label       string
	StartedAt   time.Time
	Samples     int
	Cost        string
	Penalty     float64
	Breakpoints []int
	TotalCost   float64
	Segments    int
}

// Store persists reports.
type Store struct {
	db      *sql.DB
	dialect migrate.Dialect
	logger  *zap.SugaredLogger
}

// Open connects with driver "postgres" or "sqlite" and applies pending
// schema migrations.
func Open(ctx context.Context, driver, dsn string, logger *zap.SugaredLogger) (*Store, error) {
	var dialect migrate.Dialect
	switch driver {
	case "postgres":
		dialect = migrate.Postgres
	case "sqlite":
		dialect = migrate.SQLite
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	if dialect == migrate.SQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		db.SetMaxOpenConns(1)
	}

	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		db.Close()
		return nil, err
	}
	provider := migrate.NewFSProvider(sub, migrationTable, dialect)
	if err := migrate.NewMigrator(db, provider, logger.Desugar()).Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return &Store{db: db, dialect: dialect, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes report under label, replacing any earlier copy of the same
// run.
func (s *Store) Save(ctx context.Context, label string, report *detect.Report) error {
	bkps, err := json.Marshal(report.Breakpoints)
	if err != nil {
		return fmt.Errorf("encode breakpoints: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Delete old rows for this run
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM detection_segments WHERE run_id = ?`), report.RunID); err != nil {
		return fmt.Errorf("failed to delete old segments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM detection_runs WHERE run_id = ?`), report.RunID); err != nil {
		return fmt.Errorf("failed to delete old run: %w", err)
	}

	p := report.Parameters
	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO detection_runs
		(run_id, label, started_at, samples, cost_kind, penalty, min_size, jump, breakpoints, total_cost)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		report.RunID, label, report.StartedAt.UTC(), report.Samples,
		p.Cost, p.Penalty, p.MinSize, p.Jump, string(bkps), report.TotalCost)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	insertSegment := s.rebind(`
		INSERT INTO detection_segments
		(run_id, seq, start_idx, end_idx, class, mean, net_change, gain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for i, seg := range report.Segments {
		_, err := tx.ExecContext(ctx, insertSegment,
			report.RunID, i, seg.Start, seg.End, string(seg.Class), seg.Mean, seg.NetChange, seg.Gain)
		if err != nil {
			return fmt.Errorf("failed to insert segment %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Debugf("stored run %s (%s) with %d segments", report.RunID, label, len(report.Segments))
	return nil
}

// Recent returns the latest runs for label, newest first. An empty label
// matches every run.
func (s *Store) Recent(ctx context.Context, label string, limit int) ([]Run, error) {
	if limit < 1 {
		limit = 10
	}
	query := `
		SELECT r.run_id, r.label, r.started_at, r.samples, r.cost_kind, r.penalty,
		       r.breakpoints, r.total_cost,
		       (SELECT COUNT(*) FROM detection_segments s WHERE s.run_id = r.run_id)
		FROM detection_runs r
		WHERE ? = '' OR r.label = ?
		ORDER BY r.started_at DESC, r.run_id
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), label, label, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs failed: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			started any
			bkps    string
		)
		if err := rows.Scan(&r.RunID, &r.Label, &started, &r.Samples, &r.Cost, &r.Penalty, &bkps, &r.TotalCost, &r.Segments); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if r.StartedAt, err = scanTime(started); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(bkps), &r.Breakpoints); err != nil {
			return nil, fmt.Errorf("decode breakpoints of %s: %w", r.RunID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return runs, nil
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != migrate.Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func scanTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseStoredTime(t)
	case []byte:
		return parseStoredTime(string(t))
	default:
		return time.Time{}, fmt.Errorf("unsupported stored time %T", v)
	}
}

func parseStoredTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05.999999999 -0700 MST"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized stored time %q", s)
}
