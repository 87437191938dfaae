package commands

import (
	"fmt"

	"github.com/leapstack-labs/allowuntil/internal/cli/output"
	"github.com/leapstack-labs/allowuntil/pkg/gate"
	"github.com/spf13/cobra"
)

// EvalOptions holds options for the eval command.
type EvalOptions struct {
	Reason string
	Format string
}

// evalOutput is the JSON payload of the eval command.
type evalOutput struct {
	Predicate string `json:"predicate"`
	Version   string `json:"version"`
	Triggered bool   `json:"triggered"`
	Reason    string `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand() *cobra.Command {
	opts := &EvalOptions{}

	cmd := &cobra.Command{
		Use:   "eval <predicate> [version]",
		Short: "Evaluate one version predicate without a project",
		Long: `Evaluate a single version predicate against a version, the same way
check evaluates gate directives. When the version argument is omitted,
the current project version is resolved exactly as check resolves it.

Exits non-zero when the predicate matches, so shell scripts can gate
release steps on it directly.`,
		Example: `  # Does 1.2.3 satisfy >= 1.0.x?
  allowuntil eval ">= 1.0.x" 1.2.3

  # Against the resolved project version
  allowuntil eval ">= 1.0.x"

  # With a reason echoed on match
  allowuntil eval "= 2.0.0" 2.0.0 --reason "drop the compatibility shim"

  # JSON output
  allowuntil eval "< 2.x" 1.9.0 --format json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := ""
			if len(args) == 2 {
				version = args[1]
			}
			return runEval(cmd, opts, args[0], version)
		},
	}

	cmd.Flags().StringVar(&opts.Reason, "reason", "", "Reason echoed when the predicate matches")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, markdown, or json (overrides --output)")

	return cmd
}

func runEval(cmd *cobra.Command, opts *EvalOptions, predicate, version string) error {
	cc := NewCommandContextWithoutEngine(cmd)

	r := cc.Renderer
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	if version == "" {
		res, err := resolveVersion(cmd, cc.Cfg)
		if err != nil {
			return err
		}
		version = res.Version
	}

	outcome, err := gate.Check(version, predicate, opts.Reason)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		payload := evalOutput{
			Predicate: predicate,
			Version:   version,
			Triggered: outcome.Triggered,
		}
		if outcome.Triggered {
			payload.Reason = outcome.Reason
			payload.Detail = outcome.Detail
		}
		if err := r.JSON(payload); err != nil {
			return err
		}
	} else if outcome.Triggered {
		r.StatusLine(outcome.String(), "triggered", "")
	} else {
		r.StatusLine(fmt.Sprintf("pass: version %s does not match %s", version, predicate), "success", "")
	}

	if outcome.Triggered {
		return fmt.Errorf("predicate %s matches version %s", predicate, version)
	}
	return nil
}
