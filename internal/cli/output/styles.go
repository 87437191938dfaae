package output

import "github.com/charmbracelet/lipgloss"

// Terminal color palette.
const (
	colorGreen  = lipgloss.Color("2")
	colorYellow = lipgloss.Color("3")
	colorRed    = lipgloss.Color("1")
	colorCyan   = lipgloss.Color("6")
	colorGray   = lipgloss.Color("8")
)

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Info    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	// StatusSuccess and StatusFailed carry their own icon text, so
	// calling String() renders a colored check or cross.
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
}

// DefaultStyles returns the standard style set.
func DefaultStyles() *Styles {
	return &Styles{
		Header1:       lipgloss.NewStyle().Bold(true).Foreground(colorCyan),
		Header2:       lipgloss.NewStyle().Bold(true),
		Bold:          lipgloss.NewStyle().Bold(true),
		Muted:         lipgloss.NewStyle().Foreground(colorGray),
		Info:          lipgloss.NewStyle().Foreground(colorCyan),
		Success:       lipgloss.NewStyle().Foreground(colorGreen),
		Warning:       lipgloss.NewStyle().Foreground(colorYellow),
		Error:         lipgloss.NewStyle().Foreground(colorRed),
		StatusSuccess: lipgloss.NewStyle().SetString("✓").Foreground(colorGreen),
		StatusFailed:  lipgloss.NewStyle().SetString("✗").Foreground(colorRed),
	}
}
