package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/allowuntil/internal/cli/config"
	"github.com/leapstack-labs/allowuntil/internal/cli/output"
	"github.com/leapstack-labs/allowuntil/internal/engine"
	"github.com/leapstack-labs/allowuntil/internal/project"
	"github.com/leapstack-labs/allowuntil/internal/scanner"
	"github.com/spf13/cobra"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string
}

// DoctorOutput is the JSON payload of the doctor command.
type DoctorOutput struct {
	ProjectRoot   string        `json:"project_root"`
	Module        string        `json:"module,omitempty"`
	ConfigFile    string        `json:"config_file,omitempty"`
	Version       string        `json:"version,omitempty"`
	VersionSource string        `json:"version_source,omitempty"`
	HealthChecks  []HealthCheck `json:"health_checks"`
	Summary       DoctorSummary `json:"summary"`
	RecentRuns    []RunInfo     `json:"recent_runs,omitempty"`
}

// HealthCheck is one named probe result, grouped for display.
type HealthCheck struct {
	Group   string   `json:"group"`
	Name    string   `json:"name"`
	Status  string   `json:"status"` // ok | warn | error
	Details []string `json:"details,omitempty"`
}

// DoctorSummary holds aggregate gate counters.
type DoctorSummary struct {
	GatesTotal int `json:"gates_total"`
	Pending    int `json:"pending"`
	Triggered  int `json:"triggered"`
	Errors     int `json:"errors"`
	FilesTotal int `json:"files_total"`
}

// RunInfo describes one recorded check run.
type RunInfo struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Gates     int    `json:"gates"`
	Triggered int    `json:"triggered"`
	StartedAt string `json:"started_at"`
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose project setup and gate health",
		Long: `Run health checks over the project: version resolution, configuration,
scan roots, manifests, gate status, and the scan cache.

Doctor never fails the build; it reports problems so check does not
surprise you in CI.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # Diagnose the current project
  allowuntil doctor

  # JSON output for tooling
  allowuntil doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, markdown, or json (overrides --output)")

	return cmd
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cc := NewCommandContextWithoutEngine(cmd)

	r := cc.Renderer
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	out := collectDoctorOutput(cmd, cc.Cfg)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, out)
	default:
		return renderDoctorText(r, out)
	}
}

// collectDoctorOutput runs all probes and assembles the report.
func collectDoctorOutput(cmd *cobra.Command, cfg *config.Config) *DoctorOutput {
	out := &DoctorOutput{
		ProjectRoot: cfg.ProjectRoot,
		ConfigFile:  config.GetConfigFileUsed(),
	}
	if proj, err := project.Find(cfg.ProjectRoot); err == nil {
		out.Module = proj.Module
	}

	out.HealthChecks = append(out.HealthChecks, checkConfigFile(cfg)...)
	out.HealthChecks = append(out.HealthChecks, checkScanRoots(cfg)...)
	out.HealthChecks = append(out.HealthChecks, checkManifests(cfg)...)

	res, err := resolveVersion(cmd, cfg)
	if err != nil {
		out.HealthChecks = append(out.HealthChecks, HealthCheck{
			Group:   "project",
			Name:    "current version",
			Status:  "error",
			Details: []string{err.Error()},
		})
		// Without a version gates cannot be evaluated; count them by
		// scanning directly instead.
		out.HealthChecks = append(out.HealthChecks, countGatesWithoutVersion(cmd.Context(), cfg, out))
		out.HealthChecks = append(out.HealthChecks, checkCacheFile(cfg))
		return out
	}

	out.Version = res.Version
	out.VersionSource = res.Source.String()
	out.HealthChecks = append(out.HealthChecks, HealthCheck{
		Group:   "project",
		Name:    "current version",
		Status:  "ok",
		Details: []string{fmt.Sprintf("%s (from %s)", res.Version, res.Source)},
	})

	probeGates(cmd, cfg, res.Version, out)
	out.HealthChecks = append(out.HealthChecks, checkCacheFile(cfg))
	return out
}

func checkConfigFile(cfg *config.Config) []HealthCheck {
	check := HealthCheck{Group: "project", Name: "config file", Status: "ok"}
	if file := config.GetConfigFileUsed(); file != "" {
		check.Details = []string{file}
	} else {
		check.Status = "warn"
		check.Details = []string{"no " + project.ConfigFileName + " found; using defaults (run 'allowuntil init')"}
	}
	return []HealthCheck{check}
}

func checkScanRoots(cfg *config.Config) []HealthCheck {
	check := HealthCheck{Group: "configuration", Name: "scan roots", Status: "ok"}
	for _, p := range cfg.Paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(cfg.ProjectRoot, p)
		}
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			check.Status = "warn"
			check.Details = append(check.Details, fmt.Sprintf("path %s does not exist", p))
		}
	}
	if check.Status == "ok" {
		check.Details = []string{strings.Join(cfg.Paths, ", ")}
	}
	return []HealthCheck{check}
}

func checkManifests(cfg *config.Config) []HealthCheck {
	if len(cfg.Manifests) == 0 {
		return nil
	}
	check := HealthCheck{Group: "configuration", Name: "manifests", Status: "ok"}
	for _, m := range cfg.Manifests {
		abs := m
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(cfg.ProjectRoot, m)
		}
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			check.Status = "error"
			check.Details = append(check.Details, fmt.Sprintf("manifest %s does not exist", m))
		}
	}
	if check.Status == "ok" {
		check.Details = []string{strings.Join(cfg.Manifests, ", ")}
	}
	return []HealthCheck{check}
}

// probeGates runs a full list pass and records gate health plus recent
// run history.
func probeGates(cmd *cobra.Command, cfg *config.Config, version string, out *DoctorOutput) {
	logger := config.GetLogger(cmd.Context())
	eng, err := createEngine(cfg, version, logger)
	if err != nil {
		out.HealthChecks = append(out.HealthChecks, HealthCheck{
			Group:   "cache",
			Name:    "scan cache",
			Status:  "error",
			Details: []string{err.Error()},
		})
		return
	}
	defer func() { _ = eng.Close() }()

	report, err := eng.List(cmd.Context(), engine.CheckOptions{})
	if err != nil {
		out.HealthChecks = append(out.HealthChecks, HealthCheck{
			Group:   "gates",
			Name:    "gate scan",
			Status:  "error",
			Details: []string{err.Error()},
		})
		return
	}

	out.Summary = DoctorSummary{
		GatesTotal: report.GatesTotal,
		Errors:     len(report.Errors),
		FilesTotal: report.FilesTotal,
	}
	for _, gs := range report.Gates {
		if gs.Triggered {
			out.Summary.Triggered++
		} else {
			out.Summary.Pending++
		}
	}

	gatesCheck := HealthCheck{
		Group:  "gates",
		Name:   "gate status",
		Status: "ok",
		Details: []string{fmt.Sprintf("%d total, %d pending, %d triggered",
			out.Summary.GatesTotal, out.Summary.Pending, out.Summary.Triggered)},
	}
	if out.Summary.Triggered > 0 {
		gatesCheck.Status = "error"
		for _, d := range report.Triggered {
			gatesCheck.Details = append(gatesCheck.Details, fmt.Sprintf("%s  %s: %s", d.Pos, d.Subject, d.Message))
		}
	}
	out.HealthChecks = append(out.HealthChecks, gatesCheck)

	if len(report.Errors) > 0 {
		errCheck := HealthCheck{Group: "gates", Name: "scan errors", Status: "error"}
		for _, d := range report.Errors {
			errCheck.Details = append(errCheck.Details, fmt.Sprintf("%s  %s", d.Pos, d.Message))
		}
		out.HealthChecks = append(out.HealthChecks, errCheck)
	}

	runs, err := eng.Store().ListRuns(5)
	if err != nil {
		return
	}
	for _, run := range runs {
		out.RecentRuns = append(out.RecentRuns, RunInfo{
			ID:        run.ID,
			Status:    string(run.Status),
			Gates:     run.GatesTotal,
			Triggered: run.Triggered,
			StartedAt: run.StartedAt.Format(time.RFC3339),
		})
	}
}

// countGatesWithoutVersion scans sources directly when no version is
// available, so doctor still reports how many gates exist.
func countGatesWithoutVersion(ctx context.Context, cfg *config.Config, out *DoctorOutput) HealthCheck {
	s := scanner.New(nil)

	var gates, errs, files int
	for _, p := range cfg.Paths {
		root := p
		if !filepath.IsAbs(root) {
			root = filepath.Join(cfg.ProjectRoot, p)
		}
		results, err := s.ScanDir(ctx, root, cfg.Exclude)
		if err != nil {
			continue
		}
		files += len(results)
		for _, res := range results {
			gates += len(res.Gates)
			errs += len(res.Errors)
		}
	}

	out.Summary = DoctorSummary{GatesTotal: gates, Errors: errs, FilesTotal: files}
	check := HealthCheck{
		Group:   "gates",
		Name:    "gate status",
		Status:  "warn",
		Details: []string{fmt.Sprintf("%d gate(s) found; not evaluated without a current version", gates)},
	}
	if errs > 0 {
		check.Status = "error"
		check.Details = append(check.Details, fmt.Sprintf("%d scan error(s)", errs))
	}
	return check
}

func checkCacheFile(cfg *config.Config) HealthCheck {
	check := HealthCheck{Group: "cache", Name: "scan cache", Status: "ok"}
	if !cfg.Cache {
		check.Status = "warn"
		check.Details = []string{"cache disabled; every check rescans all files"}
		return check
	}

	info, err := os.Stat(cfg.StatePath)
	if err != nil {
		check.Details = []string{"not created yet (first check will create it)"}
		return check
	}
	check.Details = []string{fmt.Sprintf("%s (%d KB)", cfg.StatePath, info.Size()/1024)}
	return check
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	// Header
	r.Println("")
	r.Println(styles.Header1.Render("Project Gate Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	// Project Summary
	r.Println(styles.Header2.Render("Project Summary"))
	r.Printf("   Root: %s\n", out.ProjectRoot)
	if out.Module != "" {
		r.Printf("   Module: %s\n", out.Module)
	}
	if out.Version != "" {
		r.Printf("   Version: %s (from %s)\n", out.Version, out.VersionSource)
	}
	r.Printf("   Gates: %d total | %d pending | %d triggered | Files: %d\n",
		out.Summary.GatesTotal, out.Summary.Pending, out.Summary.Triggered, out.Summary.FilesTotal)
	r.Println("")

	// Health Checks grouped by category
	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.StatusSuccess.String()
		switch check.Status {
		case "warn":
			icon = styles.Warning.Render("!")
		case "error":
			icon = styles.StatusFailed.String()
		}

		r.Println("   " + icon + " " + check.Name)

		// Show first 3 details for issues
		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	// Recent runs
	if len(out.RecentRuns) > 0 {
		r.Println(styles.Header2.Render("Recent Runs"))
		t := table.NewWriter()
		t.SetOutputMirror(r.Writer())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Run", "Status", "Gates", "Triggered", "Started"})
		for _, run := range out.RecentRuns {
			t.AppendRow(table.Row{run.ID, run.Status, run.Gates, run.Triggered, run.StartedAt})
		}
		t.Render()
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println(output.FormatHeader(1, "Project Gate Health Report"))
	r.Println("")

	r.Println(output.FormatHeader(2, "Project Summary"))
	r.Println("")
	r.Println(output.FormatKeyValue("Root", out.ProjectRoot))
	if out.Module != "" {
		r.Println(output.FormatKeyValue("Module", out.Module))
	}
	if out.ConfigFile != "" {
		r.Println(output.FormatKeyValue("Config", out.ConfigFile))
	}
	if out.Version != "" {
		r.Println(output.FormatKeyValue("Version", fmt.Sprintf("%s (from %s)", out.Version, out.VersionSource)))
	}
	r.Println(output.FormatKeyValue("Gates", fmt.Sprintf("%d total, %d pending, %d triggered",
		out.Summary.GatesTotal, out.Summary.Pending, out.Summary.Triggered)))
	r.Println("")

	r.Println(output.FormatHeader(2, "Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(output.FormatHeader(3, titleCaser.String(currentGroup)))
			r.Println("")
		}
		r.Printf("- **%s**: %s\n", check.Name, check.Status)
		for _, detail := range check.Details {
			r.Println("  - " + detail)
		}
	}

	if len(out.RecentRuns) > 0 {
		r.Println("")
		r.Println(output.FormatHeader(2, "Recent Runs"))
		r.Println("")
		r.Println("| Run | Status | Gates | Triggered | Started |")
		r.Println("| --- | --- | --- | --- | --- |")
		for _, run := range out.RecentRuns {
			r.Printf("| %s | %s | %d | %d | %s |\n", run.ID, run.Status, run.Gates, run.Triggered, run.StartedAt)
		}
	}

	return nil
}
