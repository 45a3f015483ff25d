package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Dialect selects SQL syntax for the version table.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DefaultTable is the version tracking table used when none is given.
const DefaultTable = "schema_migrations"

var migrationFile = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FSProvider loads NNN_name.up.sql / NNN_name.down.sql files from the root
// of a file system, typically an embed.FS.
type FSProvider struct {
	fsys    fs.FS
	table   string
	dialect Dialect
}

// NewFSProvider creates a provider. The table name must be a plain
// identifier.
func NewFSProvider(fsys fs.FS, table string, dialect Dialect) *FSProvider {
	if table == "" {
		table = DefaultTable
	}
	return &FSProvider{
		fsys:    fsys,
		table:   table,
		dialect: dialect,
	}
}

// Migrations reads every migration file, merging up and down halves.
func (p *FSProvider) Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(p.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := migrationFile.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("invalid version number in file %s: %w", entry.Name(), err)
		}
		content, err := fs.ReadFile(p.fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		mig := byVersion[version]
		if mig == nil {
			mig = &Migration{Version: version, Name: strings.ReplaceAll(matches[2], "_", " ")}
			byVersion[version] = mig
		}
		if matches[3] == "up" {
			mig.Up = string(content)
		} else {
			mig.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		migrations = append(migrations, *mig)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// EnsureTable creates the version table if it does not exist.
func (p *FSProvider) EnsureTable(ctx context.Context, db *sql.DB) error {
	stamp := "DATETIME"
	if p.dialect == Postgres {
		stamp = "TIMESTAMP"
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at %s DEFAULT CURRENT_TIMESTAMP
		)`, p.table, stamp)

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// CurrentVersion returns the highest recorded version, 0 when none.
func (p *FSProvider) CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", p.table)
	if err := db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// SetVersion records version as the current one. Rolling back removes the
// records above it.
func (p *FSProvider) SetVersion(ctx context.Context, db Execer, version int) error {
	del := fmt.Sprintf("DELETE FROM %s WHERE version > %d", p.table, version)
	if _, err := db.ExecContext(ctx, del); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	if version == 0 {
		return nil
	}

	var upsert string
	if p.dialect == Postgres {
		upsert = fmt.Sprintf(`
			INSERT INTO %s (version, applied_at) VALUES ($1, CURRENT_TIMESTAMP)
			ON CONFLICT (version) DO UPDATE SET applied_at = CURRENT_TIMESTAMP`, p.table)
	} else {
		upsert = fmt.Sprintf(`INSERT OR REPLACE INTO %s (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, p.table)
	}
	if _, err := db.ExecContext(ctx, upsert, version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}
