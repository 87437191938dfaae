// Package state persists scan results and check runs in SQLite.
// The file cache is what makes repeated checks incremental: a file whose
// content hash is unchanged is served from here instead of being re-parsed.
package state

import "time"

// RunStatus is the lifecycle state of a check run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusPassed  RunStatus = "passed"
	RunStatusFailed  RunStatus = "failed"
)

// Run is one recorded check run.
type Run struct {
	ID           string
	Version      string
	Status       RunStatus
	FilesTotal   int
	FilesChanged int
	GatesTotal   int
	Triggered    int
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// RunStats is the counters recorded when a run completes.
type RunStats struct {
	FilesTotal   int
	FilesChanged int
	GatesTotal   int
	Triggered    int
}

// FileRecord is the cached scan result for one file.
type FileRecord struct {
	Path        string
	ContentHash string
	GateCount   int
	ScannedAt   time.Time
}
