package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/xuri/excelize/v2"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
)

// SheetName is the worksheet holding registrations in the records workbook
const SheetName = "Applications"

// FileStore keeps registrations in an xlsx workbook and the used-number set in a JSON file
type FileStore struct {
	mu          sync.Mutex
	recordsPath string
	memoryPath  string
	lock        *flock.Flock
	logger      *slog.Logger
	now         func() time.Time
}

// NewFileStore creates a store over the given files. Missing files are created on first append.
func NewFileStore(recordsPath, memoryPath string, logger *slog.Logger) (*FileStore, error) {
	if recordsPath == "" || memoryPath == "" {
		return nil, fmt.Errorf("records and memory file paths are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	for _, dir := range []string{filepath.Dir(recordsPath), filepath.Dir(memoryPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return &FileStore{
		recordsPath: recordsPath,
		memoryPath:  memoryPath,
		lock:        flock.New(recordsPath + ".lock"),
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Close releases the lock file handle
func (s *FileStore) Close() error {
	return s.lock.Close()
}

// Load reads the records workbook and the memory file. The used set is the union of both.
func (s *FileStore) Load(ctx context.Context) ([]int, []registry.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.RLock(); err != nil {
		return nil, nil, fmt.Errorf("failed to lock %s: %w", s.lock.Path(), err)
	}
	defer func() { _ = s.lock.Unlock() }()

	records, err := readRecords(s.recordsPath)
	if err != nil {
		return nil, nil, err
	}

	used, err := readMemory(s.memoryPath)
	if err != nil {
		return nil, nil, err
	}

	for _, rec := range records {
		used = append(used, rec.Number)
	}

	return sortedUnique(used), records, nil
}

// Append adds a row to the workbook and the number to the memory file.
// Both files are re-read under an exclusive lock so appends from other processes are kept.
func (s *FileStore) Append(ctx context.Context, reg registry.Registration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", s.lock.Path(), err)
	}
	defer func() { _ = s.lock.Unlock() }()

	f, rows, err := openWorkbook(s.recordsPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	records, err := parseRows(rows)
	if err != nil {
		return err
	}
	used, err := readMemory(s.memoryPath)
	if err != nil {
		return err
	}
	for _, rec := range records {
		used = append(used, rec.Number)
	}
	for _, n := range used {
		if n == reg.Number {
			return fmt.Errorf("%w: %d", registry.ErrAlreadyUsed, reg.Number)
		}
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return fmt.Errorf("failed to address new row: %w", err)
	}
	if err := f.SetSheetRow(SheetName, cell, &[]interface{}{
		reg.ApplicationName,
		reg.Description,
		reg.Number,
		reg.RegisteredAt.UTC().Format(registry.TimestampLayout),
	}); err != nil {
		return fmt.Errorf("failed to write registration row: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.recordsPath, err)
	}
	if err := writeFileAtomic(s.recordsPath, buf.Bytes()); err != nil {
		return err
	}

	// The row is durable now; a stale memory file is healed by the union on Load
	if err := writeMemory(s.memoryPath, append(used, reg.Number), s.now()); err != nil {
		s.logger.Warn("memory file not updated", "path", s.memoryPath, "number", reg.Number, "error", err)
		return err
	}

	return nil
}

// Rebuild rewrites the memory file from the records workbook.
// An unreadable memory file is replaced rather than reported. Records with
// out-of-range or duplicate numbers fail with ErrPersistenceCorrupt and nothing is written.
func (s *FileStore) Rebuild(ctx context.Context, dryRun bool) (RebuildReport, error) {
	if err := ctx.Err(); err != nil {
		return RebuildReport{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return RebuildReport{}, fmt.Errorf("failed to lock %s: %w", s.lock.Path(), err)
	}
	defer func() { _ = s.lock.Unlock() }()

	records, err := readRecords(s.recordsPath)
	if err != nil {
		return RebuildReport{}, err
	}
	// The records are the source of truth, so they must be sound before anything is rewritten
	if err := registry.CheckRecords(records); err != nil {
		return RebuildReport{}, fmt.Errorf("records file %s cannot be used for repair: %w", s.recordsPath, err)
	}

	current, memErr := readMemory(s.memoryPath)
	if memErr != nil {
		s.logger.Warn("discarding unreadable memory file", "path", s.memoryPath, "error", memErr)
		current = nil
	}
	_, statErr := os.Stat(s.memoryPath)

	inMemory := make(map[int]bool, len(current))
	for _, n := range current {
		inMemory[n] = true
	}

	report := RebuildReport{Records: len(records)}
	numbers := make([]int, 0, len(records))
	inRecords := make(map[int]bool, len(records))
	for _, rec := range records {
		numbers = append(numbers, rec.Number)
		inRecords[rec.Number] = true
		if !inMemory[rec.Number] {
			report.Added = append(report.Added, rec.Number)
		}
	}
	for _, n := range sortedUnique(current) {
		if !inRecords[n] {
			report.Dropped = append(report.Dropped, n)
		}
	}

	if dryRun || (!report.Changed() && memErr == nil && statErr == nil) {
		return report, nil
	}

	if err := writeMemory(s.memoryPath, numbers, s.now()); err != nil {
		return report, err
	}
	s.logger.Info("memory file rebuilt", "path", s.memoryPath, "records", report.Records,
		"added", len(report.Added), "dropped", len(report.Dropped))

	return report, nil
}

// readRecords returns the registrations in the workbook at path, or nil if it is absent
func readRecords(path string) ([]registry.Registration, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", registry.ErrPersistenceCorrupt, path, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", registry.ErrPersistenceCorrupt, path, err)
	}
	return parseRows(rows)
}

// openWorkbook opens the workbook at path, creating an empty one with a header row if absent
func openWorkbook(path string) (*excelize.File, [][]string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		f := excelize.NewFile()
		if err := f.SetSheetName("Sheet1", SheetName); err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("failed to name worksheet: %w", err)
		}
		header := make([]interface{}, len(registry.Header))
		for i, h := range registry.Header {
			header[i] = h
		}
		if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("failed to write header row: %w", err)
		}
		_ = f.SetColWidth(SheetName, "A", "B", 32)
		_ = f.SetColWidth(SheetName, "D", "D", 22)
		return f, [][]string{registry.Header}, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to open %s: %v", registry.ErrPersistenceCorrupt, path, err)
	}
	rows, err := f.GetRows(SheetName)
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("%w: failed to read %s: %v", registry.ErrPersistenceCorrupt, path, err)
	}
	return f, rows, nil
}

func parseRows(rows [][]string) ([]registry.Registration, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	for i, want := range registry.Header {
		if i >= len(header) || strings.TrimSpace(header[i]) != want {
			return nil, fmt.Errorf("%w: unexpected header %v", registry.ErrPersistenceCorrupt, header)
		}
	}

	var records []registry.Registration
	for i, row := range rows[1:] {
		line := i + 2
		if isBlank(row) {
			continue
		}
		for len(row) < len(registry.Header) {
			row = append(row, "")
		}

		number, err := strconv.Atoi(strings.TrimSpace(row[2]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: invalid SFT number %q", registry.ErrPersistenceCorrupt, line, row[2])
		}
		registeredAt, err := time.Parse(registry.TimestampLayout, strings.TrimSpace(row[3]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: invalid registration date %q", registry.ErrPersistenceCorrupt, line, row[3])
		}

		records = append(records, registry.Registration{
			ApplicationName: row[0],
			Description:     row[1],
			Number:          number,
			RegisteredAt:    registeredAt,
		})
	}
	return records, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
