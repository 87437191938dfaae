// Package config provides configuration management for the allowuntil CLI.
//
// Configuration merges four layers, lowest to highest precedence:
// built-in defaults, the project config file, ALLOWUNTIL_* environment
// variables, and command-line flags.
package config

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot is the resolved project root directory. It is derived
	// from the config file location or marker files, never set directly.
	ProjectRoot string `koanf:"-"`

	// ConfigFile is the config file the load used, empty when none was
	// found. Gates may be declared directly under its gates key.
	ConfigFile string `koanf:"-"`

	// Version is the current project version gates are evaluated
	// against. Usually resolved from the VERSION file or environment
	// rather than set here.
	Version string `koanf:"version"`

	// Paths are the scan roots, relative to the project root.
	Paths []string `koanf:"paths"`

	// Exclude lists extra directory names skipped during scans.
	Exclude []string `koanf:"exclude"`

	// Manifests are non-Go gate manifest files, relative to the
	// project root.
	Manifests []string `koanf:"manifests"`

	// StatePath is the scan cache database location.
	StatePath string `koanf:"state_path"`

	// Cache enables the incremental scan cache.
	Cache bool `koanf:"cache"`

	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`
}

// Default configuration values.
const (
	DefaultStateFile = ".allowuntil/state.db"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// DefaultPaths returns the default scan roots.
func DefaultPaths() []string {
	return []string{"."}
}
