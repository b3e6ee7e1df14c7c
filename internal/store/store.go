// Package store persists SFT registrations.
//
// FileStore keeps the records in an xlsx workbook and the used-number set in a
// JSON memory file. SQLiteStore keeps both in a single sqlite database.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
)

// Backend names
const (
	BackendFiles  = "files"
	BackendSQLite = "sqlite"
)

// RebuildReport describes a membership rebuild
type RebuildReport struct {
	Records int   // registrations read from the records
	Added   []int // numbers missing from the membership set
	Dropped []int // numbers in the membership set with no registration
}

// Changed reports whether the rebuild touched the membership set
func (r RebuildReport) Changed() bool {
	return len(r.Added) > 0 || len(r.Dropped) > 0
}

// Backend is a registry store that can also repair its membership set
type Backend interface {
	registry.Store
	Rebuild(ctx context.Context, dryRun bool) (RebuildReport, error)
}

// Options selects and locates a backend
type Options struct {
	Backend     string
	RecordsPath string
	MemoryPath  string
	SQLitePath  string
	Logger      *slog.Logger
}

// Open creates the configured backend
func Open(opts Options) (Backend, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	switch opts.Backend {
	case BackendFiles, "":
		return NewFileStore(opts.RecordsPath, opts.MemoryPath, opts.Logger)
	case BackendSQLite:
		return NewSQLiteStore(opts.SQLitePath, opts.Logger)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", opts.Backend)
	}
}

// writeFileAtomic replaces path with data via a temp file in the same directory
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
