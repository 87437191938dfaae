package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/allowuntil/internal/cli/output"
	"github.com/leapstack-labs/allowuntil/internal/project"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new allowuntil project",
		Long: `Initialize a project for version-gate checking.

This creates:
  - allowuntil.yaml configuration file
  - VERSION file holding the current project version
  - .gitignore entry for the scan cache`,
		Example: `  # Initialize in current directory
  allowuntil init

  # Initialize in a new directory
  allowuntil init my-project

  # Force overwrite existing config
  allowuntil init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			// Create renderer
			cfg := getConfig()
			mode := output.Mode(cfg.OutputFormat)
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	// Create directory if specified and doesn't exist
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Check if config already exists
	configPath := filepath.Join(dir, project.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", project.ConfigFileName)
	}

	if err := copyTemplate("minimal", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	// List created files
	files, _ := listTemplateFiles("minimal")
	for _, f := range files {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Success("allowuntil project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Set your current version in VERSION")
	r.Println("  2. Annotate code with //allowuntil:version=\"< 2.0.0\" reason=\"...\"")
	r.Println("  3. Run 'allowuntil check' before builds")
	r.Println("  4. Run 'allowuntil list' to see all gates")

	return nil
}
