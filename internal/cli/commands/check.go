package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leapstack-labs/allowuntil/internal/cli/config"
	"github.com/leapstack-labs/allowuntil/internal/cli/output"
	"github.com/leapstack-labs/allowuntil/internal/engine"
	"github.com/leapstack-labs/allowuntil/pkg/gate"
	"github.com/spf13/cobra"
)

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Paths     []string
	Manifests []string
	NoCache   bool
	Watch     bool
	Format    string
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check [path...]",
		Short: "Check version gates against the current version",
		Long: `Scan Go sources and manifests for version gates and evaluate them
against the current project version.

A gate whose predicate matches the current version is triggered: the
check fails and prints the gate's reason, so annotated code cannot
outlive the version it was allowed until. Malformed directives fail
the check as well.

Scans are incremental: unchanged files are served from the scan cache.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # Check the whole project
  allowuntil check

  # Check specific directories only
  allowuntil check internal pkg

  # Pin the version instead of reading VERSION
  allowuntil check --current-version 1.4.0

  # Re-check automatically on file changes
  allowuntil check --watch

  # Full rescan, ignoring the cache
  allowuntil check --no-cache

  # JSON output for CI integration
  allowuntil check --format json`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Paths = append(opts.Paths, args...)
			return runCheck(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Paths, "path", nil, "Directories to scan (overrides configured paths)")
	cmd.Flags().StringSliceVar(&opts.Manifests, "manifest", nil, "Gate manifest files (overrides configured manifests)")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "Rescan every file, ignoring the scan cache")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Watch files and re-check on changes")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, markdown, or json (overrides --output)")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions) error {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	// Flag overrides apply to a copy so the shared config stays intact.
	runCfg := *cfg
	if len(opts.Paths) > 0 {
		runCfg.Paths = opts.Paths
	}
	if len(opts.Manifests) > 0 {
		runCfg.Manifests = opts.Manifests
	}

	res, err := resolveVersion(cmd, &runCfg)
	if err != nil {
		return err
	}

	eng, err := createEngine(&runCfg, res.Version, logger)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(runCfg.OutputFormat))
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	checkOpts := engine.CheckOptions{NoCache: opts.NoCache || !runCfg.Cache}

	if opts.Watch {
		return runCheckWatch(cmd, eng, r, checkOpts)
	}

	var spinner *output.Spinner
	if r.EffectiveMode() == output.ModeText && r.IsTTY() {
		spinner = r.NewSpinner("Checking gates...")
		spinner.Start()
	}

	report, err := eng.Check(cmd.Context(), checkOpts)
	if err != nil {
		if spinner != nil {
			spinner.Fail("Check failed")
		}
		return err
	}

	if spinner != nil {
		if report.Failed() {
			spinner.Fail("Check failed")
		} else {
			spinner.Success("All gates passed")
		}
	}

	if err := renderCheckReport(r, report); err != nil {
		return err
	}

	if report.Failed() {
		return fmt.Errorf("check failed: %d gate(s) triggered, %d error(s)", len(report.Triggered), len(report.Errors))
	}
	return nil
}

// runCheckWatch re-runs the check whenever watched files change, until
// interrupted.
func runCheckWatch(cmd *cobra.Command, eng *engine.Engine, r *output.Renderer, opts engine.CheckOptions) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		cancel()
	}()

	jsonMode := r.EffectiveMode() == output.ModeJSON

	return eng.Watch(ctx, opts, func(report *engine.Report) {
		if jsonMode {
			emitWatchEvent(r, report)
			return
		}
		r.Println("")
		r.Muted(time.Now().Format("15:04:05") + " re-checking")
		_ = renderCheckReport(r, report)
	})
}

// emitWatchEvent writes one JSON line per completed check, for log
// collectors and CI tails.
func emitWatchEvent(r *output.Renderer, report *engine.Report) {
	status := "passed"
	if report.Failed() {
		status = "failed"
	}
	event := output.WatchEvent{
		Event:      "check_complete",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    report.Version,
		Status:     status,
		GatesTotal: report.GatesTotal,
		Triggered:  len(report.Triggered),
		Errors:     len(report.Errors),
		DurationMS: report.Duration.Milliseconds(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	r.Println(string(data))
}

// renderCheckReport renders a check report in the effective output mode.
func renderCheckReport(r *output.Renderer, report *engine.Report) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(checkOutput(report))
	case output.ModeMarkdown:
		return checkMarkdown(r, report)
	default:
		return checkText(r, report)
	}
}

// checkOutput converts a report into the JSON payload.
func checkOutput(report *engine.Report) output.CheckOutput {
	diags := make([]output.DiagnosticInfo, 0, len(report.Errors)+len(report.Triggered))
	for _, d := range report.Errors {
		diags = append(diags, diagnosticInfo(d))
	}
	for _, d := range report.Triggered {
		diags = append(diags, diagnosticInfo(d))
	}

	return output.CheckOutput{
		Version:     report.Version,
		Passed:      !report.Failed(),
		Diagnostics: diags,
		Summary: output.CheckSummary{
			FilesTotal:   report.FilesTotal,
			FilesChanged: report.FilesChanged,
			FilesSkipped: report.FilesSkipped,
			FilesDeleted: report.FilesDeleted,
			GatesTotal:   report.GatesTotal,
			Triggered:    len(report.Triggered),
			Errors:       len(report.Errors),
			DurationMS:   report.Duration.Milliseconds(),
		},
	}
}

func diagnosticInfo(d gate.Diagnostic) output.DiagnosticInfo {
	return output.DiagnosticInfo{
		Severity: d.Severity.String(),
		Subject:  d.Subject,
		Message:  d.Message,
		Detail:   d.Detail,
		File:     d.Pos.File,
		Line:     d.Pos.Line,
		Column:   d.Pos.Column,
	}
}

// diagnosticLine renders one diagnostic in the conventional
// file:line:column form compilers use.
func diagnosticLine(d gate.Diagnostic) string {
	msg := d.Message
	if d.Subject != "" {
		msg = d.Subject + ": " + msg
	}
	if d.Detail != "" {
		msg += " (" + d.Detail + ")"
	}
	return fmt.Sprintf("%s  %s  %s", d.Pos, d.Severity, msg)
}

// checkText renders the report in styled text format.
func checkText(r *output.Renderer, report *engine.Report) error {
	styles := r.Styles()

	r.Println("")
	for _, d := range report.Errors {
		r.Println(styles.Error.Render(diagnosticLine(d)))
	}
	for _, d := range report.Triggered {
		r.Println(diagnosticLine(d))
	}
	if len(report.Errors)+len(report.Triggered) > 0 {
		r.Println("")
	}

	if report.Failed() {
		r.StatusLine("check failed", "failed", "version "+report.Version)
	} else {
		r.StatusLine("all gates passed", "success", "version "+report.Version)
	}
	r.Muted(report.Summary())
	return nil
}

// checkMarkdown renders the report in markdown format.
func checkMarkdown(r *output.Renderer, report *engine.Report) error {
	r.Println(output.FormatHeader(1, "Gate Check"))
	r.Println("")
	r.Println(output.FormatKeyValue("Version", report.Version))
	if report.Failed() {
		r.Println(output.FormatKeyValue("Result", "failed"))
	} else {
		r.Println(output.FormatKeyValue("Result", "passed"))
	}
	r.Println(output.FormatKeyValue("Summary", report.Summary()))

	if len(report.Errors) > 0 {
		r.Println("")
		r.Println(output.FormatHeader(2, "Errors"))
		r.Println("")
		for _, d := range report.Errors {
			r.Println("- `" + diagnosticLine(d) + "`")
		}
	}
	if len(report.Triggered) > 0 {
		r.Println("")
		r.Println(output.FormatHeader(2, "Triggered Gates"))
		r.Println("")
		for _, d := range report.Triggered {
			r.Println("- `" + diagnosticLine(d) + "`")
		}
	}
	return nil
}
