package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/allowuntil/internal/cli/config"
	"github.com/leapstack-labs/allowuntil/internal/cli/output"
	"github.com/leapstack-labs/allowuntil/internal/engine"
	"github.com/leapstack-labs/allowuntil/internal/project"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
	Version  project.Resolution
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called
// (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	res, err := resolveVersion(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}

	eng, err := createEngine(cfg, res.Version, logger)
	if err != nil {
		return nil, nil, err
	}

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cleanup := func() {
		_ = eng.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Renderer: r,
		Version:  res,
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an
// engine. Useful for commands that don't need the scan cache.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to
// defaults so tests and direct command construction keep working.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	return &config.Config{
		ProjectRoot:  cwd,
		Paths:        config.DefaultPaths(),
		StatePath:    filepath.Join(cwd, config.DefaultStateFile),
		Cache:        true,
		OutputFormat: config.DefaultOutput,
	}
}

// currentVersionFlag returns the raw --current-version flag value, used
// as the highest-precedence version source.
func currentVersionFlag(cmd *cobra.Command) string {
	flag := cmd.Root().PersistentFlags().Lookup("current-version")
	if flag == nil {
		return ""
	}
	return flag.Value.String()
}

// resolveVersion resolves the current project version for gate checks.
func resolveVersion(cmd *cobra.Command, cfg *config.Config) (project.Resolution, error) {
	return project.ResolveVersion(currentVersionFlag(cmd), cfg.Version, cfg.ProjectRoot)
}

func createEngine(cfg *config.Config, version string, logger *slog.Logger) (*engine.Engine, error) {
	statePath := cfg.StatePath
	if !cfg.Cache {
		// The store still backs run history within the process; just
		// keep it off disk when caching is disabled.
		statePath = ":memory:"
	} else {
		stateDir := filepath.Dir(statePath)
		if stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0750); err != nil {
				return nil, err
			}
		}
	}

	engineCfg := engine.Config{
		Root:       cfg.ProjectRoot,
		Paths:      cfg.Paths,
		Exclude:    cfg.Exclude,
		Manifests:  cfg.Manifests,
		ConfigFile: cfg.ConfigFile,
		Version:    version,
		StatePath:  statePath,
		Logger:     logger,
	}

	return engine.New(engineCfg)
}
