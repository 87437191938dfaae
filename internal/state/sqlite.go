package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/leapstack-labs/allowuntil/pkg/gate"
)

// Store is the SQLite-backed state store.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewStore creates a new state store instance. A nil logger discards log
// output.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *Store) Open(path string) error {
	// Enable foreign keys and WAL mode for better performance
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// --- File cache operations ---

// GetFileHash retrieves the cached content hash for a file path.
// Returns an empty string when the file is unknown.
func (s *Store) GetFileHash(path string) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not opened")
	}

	var hash string
	err := s.db.QueryRow(`SELECT content_hash FROM files WHERE path = ?`, path).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get file hash: %w", err)
	}
	return hash, nil
}

// SaveFile records a file's scan result, replacing any previous gates for
// the same path. The write is transactional so a cache row never points at
// half-replaced gates.
func (s *Store) SaveFile(path, hash string, gates []gate.Gate) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.Exec(
		`INSERT INTO files (path, content_hash, gate_count, scanned_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET content_hash = excluded.content_hash,
		                                 gate_count = excluded.gate_count,
		                                 scanned_at = excluded.scanned_at`,
		path, hash, len(gates), now,
	)
	if err != nil {
		return fmt.Errorf("failed to save file record: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM gates WHERE file_path = ?`, path); err != nil {
		return fmt.Errorf("failed to clear stale gates: %w", err)
	}

	for _, g := range gates {
		_, err := tx.Exec(
			`INSERT INTO gates (id, file_path, line, col, subject, predicate, reason) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			generateID(), path, g.Pos.Line, g.Pos.Column, g.Subject, g.Predicate, g.Reason,
		)
		if err != nil {
			return fmt.Errorf("failed to save gate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit file save: %w", err)
	}
	return nil
}

// GetFileGates retrieves the cached gates for a file path in source order.
func (s *Store) GetFileGates(path string) ([]gate.Gate, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT file_path, line, col, subject, predicate, reason
		 FROM gates WHERE file_path = ? ORDER BY line, col`,
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query gates: %w", err)
	}
	defer rows.Close()

	return scanGates(rows)
}

// ListGates retrieves every cached gate ordered by file and position.
func (s *Store) ListGates() ([]gate.Gate, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT file_path, line, col, subject, predicate, reason
		 FROM gates ORDER BY file_path, line, col`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query gates: %w", err)
	}
	defer rows.Close()

	return scanGates(rows)
}

func scanGates(rows *sql.Rows) ([]gate.Gate, error) {
	var gates []gate.Gate
	for rows.Next() {
		var g gate.Gate
		if err := rows.Scan(&g.Pos.File, &g.Pos.Line, &g.Pos.Column, &g.Subject, &g.Predicate, &g.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan gate row: %w", err)
		}
		gates = append(gates, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read gate rows: %w", err)
	}
	return gates, nil
}

// DeleteFile removes a file and its gates from the cache.
func (s *Store) DeleteFile(path string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM gates WHERE file_path = ?`, path); err != nil {
		return fmt.Errorf("failed to delete gates: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit file delete: %w", err)
	}
	return nil
}

// ListFiles retrieves every cached file record. Used to detect files that
// disappeared between runs.
func (s *Store) ListFiles() ([]FileRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(`SELECT path, content_hash, gate_count, scanned_at FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var f FileRecord
		if err := rows.Scan(&f.Path, &f.ContentHash, &f.GateCount, &f.ScannedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file rows: %w", err)
	}
	return files, nil
}

// --- Run operations ---

// CreateRun records the start of a check run.
func (s *Store) CreateRun(version string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:        generateID(),
		Version:   version,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, version, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Version, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// CompleteRun marks a run as completed with the given status and counters.
func (s *Store) CompleteRun(id string, status RunStatus, stats RunStats) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, files_total = ?, files_changed = ?, gates_total = ?, triggered = ?, completed_at = ?
		 WHERE id = ?`,
		status, stats.FilesTotal, stats.FilesChanged, stats.GatesTotal, stats.Triggered, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// GetLatestRun retrieves the most recent run, or nil when none exist.
func (s *Store) GetLatestRun() (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, version, status, files_total, files_changed, gates_total, triggered, started_at, completed_at
		 FROM runs ORDER BY started_at DESC LIMIT 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// ListRuns retrieves the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(
		`SELECT id, version, status, files_total, files_changed, gates_total, triggered, started_at, completed_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]*Run, error) {
	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var completedAt sql.NullTime
		if err := rows.Scan(
			&run.ID, &run.Version, &run.Status,
			&run.FilesTotal, &run.FilesChanged, &run.GatesTotal, &run.Triggered,
			&run.StartedAt, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run rows: %w", err)
	}
	return runs, nil
}
