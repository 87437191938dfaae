package output

// Shared JSON payloads emitted by commands. Keeping them here gives the
// check and list commands one stable schema instead of per-command shapes.

// Gate statuses as reported to users.
const (
	GateStatusPending   = "pending"   // predicate not yet matched, code allowed
	GateStatusTriggered = "triggered" // predicate matched, check fails
)

// GateInfo describes one gate in JSON output.
type GateInfo struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Reason    string `json:"reason,omitempty"`
	Status    string `json:"status"`
	File      string `json:"file"`
	Line      int    `json:"line,omitempty"`
}

// DiagnosticInfo describes one diagnostic in JSON output.
type DiagnosticInfo struct {
	Severity string `json:"severity"`
	Subject  string `json:"subject,omitempty"`
	Message  string `json:"message"`
	Detail   string `json:"detail,omitempty"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

// CheckSummary holds aggregate counters for a check run.
type CheckSummary struct {
	FilesTotal   int   `json:"files_total"`
	FilesChanged int   `json:"files_changed"`
	FilesSkipped int   `json:"files_skipped"`
	FilesDeleted int   `json:"files_deleted"`
	GatesTotal   int   `json:"gates_total"`
	Triggered    int   `json:"triggered"`
	Errors       int   `json:"errors"`
	DurationMS   int64 `json:"duration_ms"`
}

// CheckOutput is the JSON payload of the check command.
type CheckOutput struct {
	Version     string           `json:"version"`
	Passed      bool             `json:"passed"`
	Diagnostics []DiagnosticInfo `json:"diagnostics"`
	Summary     CheckSummary     `json:"summary"`
}

// ListSummary holds aggregate counters for the list command.
type ListSummary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Triggered int `json:"triggered"`
}

// ListOutput is the JSON payload of the list command.
type ListOutput struct {
	Version string      `json:"version"`
	Gates   []GateInfo  `json:"gates"`
	Summary ListSummary `json:"summary"`
}

// WatchEvent is one JSON line emitted per re-check in watch mode.
type WatchEvent struct {
	Event      string `json:"event"`
	Timestamp  string `json:"timestamp"`
	Version    string `json:"version,omitempty"`
	Status     string `json:"status,omitempty"`
	GatesTotal int    `json:"gates_total"`
	Triggered  int    `json:"triggered"`
	Errors     int    `json:"errors"`
	DurationMS int64  `json:"duration_ms"`
}
