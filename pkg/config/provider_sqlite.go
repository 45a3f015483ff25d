package config

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	_ "modernc.org/sqlite"

	"github.com/chrissnell/changepoint/pkg/migrate"
)

// DefaultProfile is the profile loaded when none is named.
const DefaultProfile = "default"

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationTable = "profile_migrations"

// SQLiteProvider implements ConfigProvider over a table of named YAML
// profiles in a SQLite database.
type SQLiteProvider struct {
	db      *sql.DB
	dbPath  string
	profile string
}

// NewSQLiteProvider opens dbPath and brings its schema up to date.
func NewSQLiteProvider(dbPath, profile string) (*SQLiteProvider, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if err := migrateProfiles(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteProvider{
		db:      db,
		dbPath:  dbPath,
		profile: profile,
	}, nil
}

// LoadConfig loads the provider's profile
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	var body string
	err := s.db.QueryRow(`SELECT body FROM profiles WHERE name = ?`, s.profile).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %q not found in %s", s.profile, s.dbPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile %q: %w", s.profile, err)
	}
	return Parse([]byte(body))
}

func migrateProfiles(ctx context.Context, db *sql.DB) error {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	provider := migrate.NewFSProvider(sub, migrationTable, migrate.SQLite)
	if err := migrate.NewMigrator(db, provider, nil).Up(ctx); err != nil {
		return fmt.Errorf("failed to migrate profile store: %w", err)
	}
	return nil
}

// SaveProfile validates cfg and stores it under name, replacing any
// existing profile of that name.
func (s *SQLiteProvider) SaveProfile(ctx context.Context, name string, cfg *ConfigData) error {
	return s.SaveProfileWithDescription(ctx, name, "", cfg)
}

// SaveProfileWithDescription is SaveProfile with a free-text note stored
// alongside the profile.
func (s *SQLiteProvider) SaveProfileWithDescription(ctx context.Context, name, description string, cfg *ConfigData) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	body, err := Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode profile %q: %w", name, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (name, body, description) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			body = excluded.body,
			description = excluded.description,
			updated_at = CURRENT_TIMESTAMP`,
		name, string(body), description)
	if err != nil {
		return fmt.Errorf("failed to save profile %q: %w", name, err)
	}
	return nil
}

// Description returns the note stored with a profile.
func (s *SQLiteProvider) Description(ctx context.Context, name string) (string, error) {
	var description string
	err := s.db.QueryRowContext(ctx, `SELECT description FROM profiles WHERE name = ?`, name).Scan(&description)
	if err != nil {
		return "", fmt.Errorf("failed to query profile %q: %w", name, err)
	}
	return description, nil
}

// Profiles lists stored profile names in order.
func (s *SQLiteProvider) Profiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan profile name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// IsReadOnly returns false; profiles can be written with SaveProfile
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	return s.db.Close()
}
