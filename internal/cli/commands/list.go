package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/allowuntil/internal/cli/output"
	"github.com/leapstack-labs/allowuntil/internal/engine"
	"github.com/spf13/cobra"
)

// ListOptions holds options for the list command.
type ListOptions struct {
	NoCache bool
	Format  string
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all version gates and their status",
		Long: `List every version gate found in Go sources and manifests, with its
predicate, reason, location, and whether the current version has
triggered it yet.

Unlike check, list always succeeds; it reports triggered gates instead
of failing on them.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List all gates
  allowuntil list

  # List gates as JSON
  allowuntil list --format json

  # List with a pinned version
  allowuntil list --current-version 2.0.0`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "Rescan every file, ignoring the scan cache")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, markdown, or json (overrides --output)")

	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cc.Renderer
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	report, err := cc.Engine.List(cmd.Context(), engine.CheckOptions{NoCache: opts.NoCache || !cc.Cfg.Cache})
	if err != nil {
		return err
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return listJSON(r, report)
	case output.ModeMarkdown:
		return listMarkdown(r, report)
	default:
		return listText(r, report)
	}
}

// gateStatus maps an evaluated gate to its display status.
func gateStatus(gs engine.GateStatus) string {
	if gs.Triggered {
		return output.GateStatusTriggered
	}
	return output.GateStatusPending
}

// gateInfos converts evaluated gates into the shared JSON shape.
func gateInfos(report *engine.Report) []output.GateInfo {
	gates := make([]output.GateInfo, 0, len(report.Gates))
	for _, gs := range report.Gates {
		gates = append(gates, output.GateInfo{
			Subject:   gs.Gate.Subject,
			Predicate: gs.Gate.Predicate,
			Reason:    gs.Gate.Reason,
			Status:    gateStatus(gs),
			File:      gs.Gate.Pos.File,
			Line:      gs.Gate.Pos.Line,
		})
	}
	return gates
}

func listSummary(report *engine.Report) output.ListSummary {
	summary := output.ListSummary{Total: len(report.Gates)}
	for _, gs := range report.Gates {
		if gs.Triggered {
			summary.Triggered++
		} else {
			summary.Pending++
		}
	}
	return summary
}

// listText outputs gates as a table.
func listText(r *output.Renderer, report *engine.Report) error {
	r.Header(1, fmt.Sprintf("Gates (%d total)", len(report.Gates)))

	if len(report.Gates) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(r.Writer())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Subject", "Until", "Status", "Location"})
		for _, gs := range report.Gates {
			t.AppendRow(table.Row{gs.Gate.Subject, gs.Gate.Predicate, gateStatus(gs), gs.Gate.Pos.String()})
		}
		t.Render()
	}

	if len(report.Errors) > 0 {
		r.Println("")
		r.Warning(fmt.Sprintf("%d file(s) had scan errors; run check for details", len(report.Errors)))
	}

	summary := listSummary(report)
	r.Println("")
	r.Muted(fmt.Sprintf("Version %s | %d pending, %d triggered", report.Version, summary.Pending, summary.Triggered))
	return nil
}

// listMarkdown outputs gates in markdown format.
func listMarkdown(r *output.Renderer, report *engine.Report) error {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Gates (%d total)", len(report.Gates))))
	r.Println("")

	for _, gs := range report.Gates {
		r.Println(output.FormatHeader(2, gs.Gate.Subject))
		r.Println(output.FormatKeyValue("Until", gs.Gate.Predicate))
		if gs.Gate.Reason != "" {
			r.Println(output.FormatKeyValue("Reason", gs.Gate.Reason))
		}
		r.Println(output.FormatKeyValue("Status", gateStatus(gs)))
		r.Println(output.FormatKeyValue("Location", gs.Gate.Pos.String()))
		r.Println("")
	}

	summary := listSummary(report)
	r.Println(output.FormatKeyValue("Version", report.Version))
	r.Printf("**Pending:** %d | **Triggered:** %d\n", summary.Pending, summary.Triggered)
	return nil
}

// listJSON outputs gates in JSON format.
func listJSON(r *output.Renderer, report *engine.Report) error {
	return r.JSON(output.ListOutput{
		Version: report.Version,
		Gates:   gateInfos(report),
		Summary: listSummary(report),
	})
}
