package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
)

// SQLiteStore keeps registrations in a sqlite database. The sft_number column is the used set.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

type registrationRow struct {
	ApplicationName string `db:"application_name"`
	Description     string `db:"description"`
	Number          int    `db:"sft_number"`
	RegisteredAt    string `db:"registered_at"`
}

// NewSQLiteStore creates or opens a registry database
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps sqlite writes serialized within the process
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// initSchema creates the registrations table if it doesn't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS registrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		application_name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		sft_number INTEGER NOT NULL UNIQUE,
		registered_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_registered_at ON registrations(registered_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Load returns every registration in insertion order
func (s *SQLiteStore) Load(ctx context.Context) ([]int, []registry.Registration, error) {
	var rows []registrationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT application_name, description, sft_number, registered_at
		FROM registrations
		ORDER BY id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to query registrations: %v", registry.ErrPersistenceCorrupt, err)
	}

	used := make([]int, 0, len(rows))
	records := make([]registry.Registration, 0, len(rows))
	for _, row := range rows {
		registeredAt, err := time.Parse(time.RFC3339, row.RegisteredAt)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: registration %d has invalid timestamp %q",
				registry.ErrPersistenceCorrupt, row.Number, row.RegisteredAt)
		}
		used = append(used, row.Number)
		records = append(records, registry.Registration{
			ApplicationName: row.ApplicationName,
			Description:     row.Description,
			Number:          row.Number,
			RegisteredAt:    registeredAt,
		})
	}

	s.logger.Debug("registrations loaded", "backend", BackendSQLite, "count", len(records))
	return used, records, nil
}

// Append inserts a registration. The UNIQUE constraint rejects numbers already issued.
func (s *SQLiteStore) Append(ctx context.Context, reg registry.Registration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registrations (application_name, description, sft_number, registered_at)
		VALUES (?, ?, ?, ?)
	`, reg.ApplicationName, reg.Description, reg.Number, reg.RegisteredAt.UTC().Format(time.RFC3339))

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %d", registry.ErrAlreadyUsed, reg.Number)
	}
	if err != nil {
		return fmt.Errorf("failed to insert registration: %w", err)
	}

	return nil
}

// Rebuild has nothing to repair: the used set is derived from the registrations table
func (s *SQLiteStore) Rebuild(ctx context.Context, _ bool) (RebuildReport, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM registrations"); err != nil {
		return RebuildReport{}, fmt.Errorf("%w: failed to count registrations: %v", registry.ErrPersistenceCorrupt, err)
	}
	return RebuildReport{Records: count}, nil
}
