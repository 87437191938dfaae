package gate

// Severity indicates the importance of a diagnostic.
type Severity int

// Severity levels for diagnostics.
const (
	// SeverityError indicates a triggered gate or malformed input; the build must abort.
	SeverityError Severity = iota
	// SeverityWarning indicates a condition worth reviewing that does not abort the build.
	SeverityWarning
	// SeverityInfo indicates informational feedback, such as a pending gate.
	SeverityInfo
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}
