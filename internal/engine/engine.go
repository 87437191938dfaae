// Package engine orchestrates version-gate checks.
// It collects gates from Go source and YAML manifests, evaluates each
// against the current project version, and assembles the result into a
// report the CLI renders.
package engine

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leapstack-labs/allowuntil/internal/scanner"
	"github.com/leapstack-labs/allowuntil/internal/state"
)

// Engine runs gate checks against one project.
type Engine struct {
	cfg     Config
	logger  *slog.Logger
	scanner *scanner.Scanner
	store   *state.Store
}

// Config holds engine configuration.
type Config struct {
	// Root is the project root. Relative scan paths and manifest paths
	// resolve against it.
	Root string
	// Paths are the directories to scan. Empty means the root itself.
	Paths []string
	// Exclude lists extra directory names the source walk skips.
	Exclude []string
	// Manifests are YAML gate files loaded in addition to scanned source.
	Manifests []string
	// ConfigFile is the project config file; gates declared under its
	// gates key load alongside the manifests. Empty means none was used.
	ConfigFile string
	// Version is the resolved current project version.
	Version string
	// StatePath is the path to the SQLite scan cache.
	StatePath string
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// New creates an engine and opens the scan cache.
func New(cfg Config) (*Engine, error) {
	// Initialize logger (use discard handler if nil)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine", "root", cfg.Root, "version", cfg.Version)

	store := state.NewStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open scan cache: %w", err)
	}

	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate scan cache: %w", err)
	}

	return &Engine{
		cfg:     cfg,
		logger:  logger,
		scanner: scanner.New(logger),
		store:   store,
	}, nil
}

// Close releases the scan cache.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Store returns the scan cache store.
func (e *Engine) Store() *state.Store {
	return e.store
}

// Version returns the project version the engine checks against.
func (e *Engine) Version() string {
	return e.cfg.Version
}

// scanRoots resolves the configured scan paths against the project root.
// Duplicates collapse so a directory is never walked twice.
func (e *Engine) scanRoots() []string {
	if len(e.cfg.Paths) == 0 {
		return []string{e.cfg.Root}
	}

	seen := make(map[string]bool)
	roots := make([]string, 0, len(e.cfg.Paths))
	for _, p := range e.cfg.Paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(e.cfg.Root, p)
		}
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		roots = append(roots, p)
	}
	return roots
}
