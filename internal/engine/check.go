// check.go contains the check run: incremental gate collection from source
// and manifests, evaluation, and run recording.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/leapstack-labs/allowuntil/internal/manifest"
	"github.com/leapstack-labs/allowuntil/internal/scanner"
	"github.com/leapstack-labs/allowuntil/internal/state"
	"github.com/leapstack-labs/allowuntil/pkg/gate"
)

// CheckOptions configures a check run.
type CheckOptions struct {
	// NoCache ignores stored content hashes and rescans every file.
	NoCache bool
}

// GateStatus pairs a gate with its evaluation against the current version.
type GateStatus struct {
	Gate      gate.Gate
	Triggered bool
}

// Report contains the outcome of one check run.
type Report struct {
	// Version is the project version the gates were evaluated against.
	Version string

	// Files
	FilesTotal   int
	FilesChanged int
	FilesSkipped int
	FilesDeleted int

	// Gates holds every evaluated gate in position order.
	Gates      []GateStatus
	GatesTotal int

	// Triggered gates and malformed inputs, sorted by position.
	Triggered []gate.Diagnostic
	Errors    []gate.Diagnostic

	// Timing
	Duration time.Duration

	// RunID identifies the recorded run; empty when the run was not recorded.
	RunID string
}

// Failed reports whether the run must abort the build.
func (r *Report) Failed() bool {
	return len(r.Triggered) > 0 || len(r.Errors) > 0
}

// Summary returns a human-readable summary.
func (r *Report) Summary() string {
	return fmt.Sprintf(
		"Files: %d total (%d changed, %d skipped, %d deleted) | "+
			"Gates: %d total (%d triggered) | Duration: %s",
		r.FilesTotal, r.FilesChanged, r.FilesSkipped, r.FilesDeleted,
		r.GatesTotal, len(r.Triggered),
		r.Duration.Round(time.Millisecond),
	)
}

// Check runs the full gate check and records it in the run history.
func (e *Engine) Check(ctx context.Context, opts CheckOptions) (*Report, error) {
	run, err := e.store.CreateRun(e.cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	report, err := e.run(ctx, opts)
	if err != nil {
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, state.RunStats{})
		return report, err
	}
	report.RunID = run.ID

	status := state.RunStatusPassed
	if report.Failed() {
		status = state.RunStatusFailed
	}
	if err := e.store.CompleteRun(run.ID, status, state.RunStats{
		FilesTotal:   report.FilesTotal,
		FilesChanged: report.FilesChanged,
		GatesTotal:   report.GatesTotal,
		Triggered:    len(report.Triggered),
	}); err != nil {
		e.logger.Warn("failed to record run completion", "run_id", run.ID, "error", err)
	}

	return report, nil
}

// List runs the same collection and evaluation as Check without recording
// a run.
func (e *Engine) List(ctx context.Context, opts CheckOptions) (*Report, error) {
	return e.run(ctx, opts)
}

// run collects gates from every source and evaluates them.
func (e *Engine) run(ctx context.Context, opts CheckOptions) (*Report, error) {
	start := time.Now()
	report := &Report{Version: e.cfg.Version}

	e.logger.Info("starting check", "version", e.cfg.Version)

	gates, err := e.collectGates(ctx, opts, report)
	if err != nil {
		return report, err
	}

	gates = e.loadManifests(report, gates)
	report.GatesTotal = len(gates)

	e.evaluate(gates, report)

	sortStatuses(report.Gates)
	sortDiagnostics(report.Triggered)
	sortDiagnostics(report.Errors)

	report.Duration = time.Since(start)

	e.logger.Info("check completed",
		"files_total", report.FilesTotal,
		"files_changed", report.FilesChanged,
		"files_skipped", report.FilesSkipped,
		"gates_total", report.GatesTotal,
		"triggered", len(report.Triggered),
		"duration_ms", report.Duration.Milliseconds())

	return report, nil
}

// collectGates walks every scan root and returns the gates found, merging
// cached results for unchanged files with fresh scans.
func (e *Engine) collectGates(ctx context.Context, opts CheckOptions, report *Report) ([]gate.Gate, error) {
	// Track which files we've seen (for deletion detection)
	seen := make(map[string]bool)
	var gates []gate.Gate

	for _, root := range e.scanRoots() {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			e.logger.Debug("scan path does not exist, skipping", "path", root)
			continue
		}

		var scanned []scanner.FileResult
		if opts.NoCache {
			results, err := e.scanner.ScanDir(ctx, root, e.cfg.Exclude)
			if err != nil {
				return gates, fmt.Errorf("failed to scan %s: %w", root, err)
			}
			report.FilesTotal += len(results)
			report.FilesChanged += len(results)
			scanned = results
		} else {
			results, cached, err := e.scanChanged(root, report, seen)
			if err != nil {
				return gates, err
			}
			gates = append(gates, cached...)
			scanned = results
		}

		for i := range scanned {
			r := scanned[i]
			seen[r.Path] = true
			gates = append(gates, r.Gates...)

			for _, se := range r.Errors {
				report.Errors = append(report.Errors, gate.Diagnostic{
					Severity: gate.SeverityError,
					Message:  se.Msg,
					Pos:      se.Pos,
				})
			}
			if len(r.Errors) > 0 {
				// Never cache a failed scan; its errors must surface
				// again on the next run.
				continue
			}

			if err := e.store.SaveFile(r.Path, r.Hash, r.Gates); err != nil {
				e.logger.Warn("failed to cache scan result", "path", r.Path, "error", err)
			}
		}
	}

	report.FilesDeleted = e.cleanupDeletedFiles(seen)
	return gates, nil
}

// scanChanged lists the Go files under root and rescans only the changed
// ones. Gates for unchanged files come straight from the cache.
func (e *Engine) scanChanged(root string, report *Report, seen map[string]bool) ([]scanner.FileResult, []gate.Gate, error) {
	files, err := scanner.ListGoFiles(root, e.cfg.Exclude)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list Go files under %s: %w", root, err)
	}

	var scanned []scanner.FileResult
	var cached []gate.Gate

	for _, path := range files {
		report.FilesTotal++
		seen[path] = true

		content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from a validated walk
		if err != nil {
			report.Errors = append(report.Errors, gate.Diagnostic{
				Severity: gate.SeverityError,
				Message:  fmt.Sprintf("failed to read file: %v", err),
				Pos:      gate.Position{File: path},
			})
			continue
		}

		hash := scanner.Hash(content)
		stored, err := e.store.GetFileHash(path)
		if err == nil && stored == hash {
			gates, cacheErr := e.store.GetFileGates(path)
			if cacheErr == nil {
				e.logger.Debug("skipping unchanged file", "path", path)
				report.FilesSkipped++
				cached = append(cached, gates...)
				continue
			}
		}

		report.FilesChanged++
		scanned = append(scanned, e.scanner.ScanFile(path, content))
	}

	return scanned, cached, nil
}

// loadManifests reads gates hosted in the config file and in each
// configured manifest, appending them to the scanned ones. A file that
// fails to parse contributes a diagnostic; its entries are dropped rather
// than half-loaded.
func (e *Engine) loadManifests(report *Report, gates []gate.Gate) []gate.Gate {
	if e.cfg.ConfigFile != "" {
		m, err := manifest.LoadConfigGates(e.cfg.ConfigFile)
		if err != nil {
			report.Errors = append(report.Errors, manifestError(e.cfg.ConfigFile, err))
		} else if len(m.Gates) > 0 {
			e.logger.Debug("loaded config gates", "path", e.cfg.ConfigFile, "gates", len(m.Gates))
			gates = append(gates, m.Gates...)
		}
	}

	for _, path := range e.cfg.Manifests {
		if !filepath.IsAbs(path) {
			path = filepath.Join(e.cfg.Root, path)
		}

		m, err := manifest.Load(path)
		if err != nil {
			report.Errors = append(report.Errors, manifestError(path, err))
			continue
		}

		e.logger.Debug("loaded manifest", "path", path, "gates", len(m.Gates))
		gates = append(gates, m.Gates...)
	}
	return gates
}

// manifestError converts a manifest load failure into a positioned
// diagnostic.
func manifestError(path string, err error) gate.Diagnostic {
	pos := gate.Position{File: path}
	msg := err.Error()
	var perr *manifest.ParseError
	if errors.As(err, &perr) {
		pos = gate.Position{File: perr.File, Line: perr.Line}
		msg = perr.Message
	}
	return gate.Diagnostic{Severity: gate.SeverityError, Message: msg, Pos: pos}
}

// evaluate checks every gate against the current version and files the
// outcome into the report.
func (e *Engine) evaluate(gates []gate.Gate, report *Report) {
	for _, g := range gates {
		outcome, err := g.Check(e.cfg.Version)
		if err != nil {
			report.Errors = append(report.Errors, gate.Diagnostic{
				Severity: gate.SeverityError,
				Subject:  g.Subject,
				Message:  err.Error(),
				Pos:      g.Pos,
			})
			continue
		}

		report.Gates = append(report.Gates, GateStatus{Gate: g, Triggered: outcome.Triggered})
		if !outcome.Triggered {
			continue
		}

		report.Triggered = append(report.Triggered, gate.Diagnostic{
			Severity: gate.SeverityError,
			Subject:  g.Subject,
			Message:  outcome.Reason,
			Detail:   outcome.Detail,
			Pos:      g.Pos,
		})
	}
}

// cleanupDeletedFiles drops cache rows for files no walk saw this run.
func (e *Engine) cleanupDeletedFiles(seen map[string]bool) int {
	records, err := e.store.ListFiles()
	if err != nil {
		return 0
	}

	deleted := 0
	for _, rec := range records {
		if seen[rec.Path] {
			continue
		}
		if err := e.store.DeleteFile(rec.Path); err != nil {
			e.logger.Warn("failed to drop cache row", "path", rec.Path, "error", err)
			continue
		}
		deleted++
	}
	return deleted
}

// sortDiagnostics orders diagnostics by file, then line, then column.
func sortDiagnostics(diags []gate.Diagnostic) {
	sort.Slice(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Pos.File != b.Pos.File {
			return a.Pos.File < b.Pos.File
		}
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line < b.Pos.Line
		}
		return a.Pos.Column < b.Pos.Column
	})
}

// sortStatuses orders gate statuses by file, then line, then column.
func sortStatuses(statuses []GateStatus) {
	sort.Slice(statuses, func(i, j int) bool {
		a, b := statuses[i].Gate, statuses[j].Gate
		if a.Pos.File != b.Pos.File {
			return a.Pos.File < b.Pos.File
		}
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line < b.Pos.Line
		}
		return a.Pos.Column < b.Pos.Column
	})
}
