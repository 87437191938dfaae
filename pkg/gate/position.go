package gate

import "fmt"

// Position locates a gate declaration in its source file.
type Position struct {
	File   string // path as given to the scanner
	Line   int    // 1-based line number
	Column int    // 1-based column number
}

// IsValid returns true if the position carries a line number.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// String renders the position in the conventional file:line:column form.
// Missing parts are omitted.
func (p Position) String() string {
	switch {
	case p.File == "" && !p.IsValid():
		return "-"
	case !p.IsValid():
		return p.File
	case p.Column > 0:
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	default:
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	}
}
