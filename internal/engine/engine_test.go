package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/allowuntil/internal/testutil"
	"github.com/leapstack-labs/allowuntil/pkg/gate"
)

// gatedSource declares one gate on line 3.
const gatedSource = `package demo

//allowuntil:version=">= 1.0.x" reason="struct is deprecated"
type LegacyConfig struct {
	Path string
}
`

// writeFile creates a file with parent directories under root.
func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

// newTestEngine creates an engine over root with an in-memory scan cache.
func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.StatePath == "" {
		cfg.StatePath = ":memory:"
	}
	cfg.Logger = testutil.NewTestLogger(t)
	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

// TestCheck_TriggeredGate tests that a gate whose predicate matches the
// current version fails the run with the declared reason.
func TestCheck_TriggeredGate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "demo.go", gatedSource)

	eng := newTestEngine(t, Config{Root: root, Version: "1.0.0"})
	report, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if !report.Failed() {
		t.Fatal("expected the report to fail")
	}
	if len(report.Triggered) != 1 {
		t.Fatalf("expected 1 triggered gate, got %d", len(report.Triggered))
	}

	d := report.Triggered[0]
	if d.Subject != "LegacyConfig" {
		t.Errorf("expected subject LegacyConfig, got %q", d.Subject)
	}
	if d.Message != "struct is deprecated" {
		t.Errorf("expected the declared reason, got %q", d.Message)
	}
	if d.Detail != "version 1.0.0 matches >= 1.0.x" {
		t.Errorf("unexpected detail %q", d.Detail)
	}
	if d.Pos.Line != 3 {
		t.Errorf("expected diagnostic on line 3, got %d", d.Pos.Line)
	}
}

// TestCheck_PassingGate tests that a version below the predicate leaves the
// gated item alone.
func TestCheck_PassingGate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "demo.go", gatedSource)

	eng := newTestEngine(t, Config{Root: root, Version: "0.5.2"})
	report, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if report.Failed() {
		t.Fatalf("expected a passing report, got triggered=%v errors=%v",
			report.Triggered, report.Errors)
	}
	if report.GatesTotal != 1 {
		t.Errorf("expected 1 gate evaluated, got %d", report.GatesTotal)
	}
	if len(report.Gates) != 1 || report.Gates[0].Triggered {
		t.Errorf("expected one pending gate, got %+v", report.Gates)
	}
}

// TestCheck_EqualityGate tests an exact-version gate triggering on release.
func TestCheck_EqualityGate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "demo.go", `package demo

//allowuntil:version="== 1.0.0" reason="drop before 1.0.0 ships"
func compat() {}
`)

	eng := newTestEngine(t, Config{Root: root, Version: "1.0.0"})
	report, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(report.Triggered) != 1 {
		t.Fatalf("expected the equality gate to trigger, got %+v", report)
	}
}

// TestCheck_UnreachedGate tests that a predicate below the current version
// range does not trigger.
func TestCheck_UnreachedGate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "demo.go", `package demo

//allowuntil:version="< 1.0.0"
func early() {}
`)

	eng := newTestEngine(t, Config{Root: root, Version: "2.0.0"})
	report, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if report.Failed() {
		t.Fatalf("expected a passing report, got %+v", report.Triggered)
	}
}

// TestCheck_DefaultReason tests that a gate without a reason reports the
// default diagnostic text.
func TestCheck_DefaultReason(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "demo.go", `package demo

//allowuntil:version=">= 1.0.x"
func legacy() {}
`)

	eng := newTestEngine(t, Config{Root: root, Version: "1.2.0"})
	report, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(report.Triggered) != 1 {
		t.Fatalf("expected 1 triggered gate, got %d", len(report.Triggered))
	}
	if report.Triggered[0].Message != "item not allowed!" {
		t.Errorf("expected the default reason, got %q", report.Triggered[0].Message)
	}
}

// TestCheck_Incremental tests that a second run over unchanged files skips
// parsing and still evaluates the cached gates.
func TestCheck_Incremental(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", gatedSource)
	writeFile(t, root, "b.go", `package demo

//allowuntil:version=">= 3.0.x" reason="later"
func other() {}
`)
	writeFile(t, root, "plain.go", "package demo\n\nfunc ok() {}\n")

	eng := newTestEngine(t, Config{Root: root, Version: "0.5.2"})

	first, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("first Check failed: %v", err)
	}
	if first.FilesTotal != 3 || first.FilesChanged != 3 || first.FilesSkipped != 0 {
		t.Errorf("first run counted %d/%d/%d (total/changed/skipped), want 3/3/0",
			first.FilesTotal, first.FilesChanged, first.FilesSkipped)
	}
	if first.GatesTotal != 2 {
		t.Errorf("first run evaluated %d gates, want 2", first.GatesTotal)
	}

	second, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("second Check failed: %v", err)
	}
	if second.FilesTotal != 3 || second.FilesChanged != 0 || second.FilesSkipped != 3 {
		t.Errorf("second run counted %d/%d/%d (total/changed/skipped), want 3/0/3",
			second.FilesTotal, second.FilesChanged, second.FilesSkipped)
	}
	if second.GatesTotal != 2 {
		t.Errorf("cached run evaluated %d gates, want 2", second.GatesTotal)
	}

	// Editing one file invalidates only that file.
	writeFile(t, root, "a.go", gatedSource+"\n// touched\n")
	third, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("third Check failed: %v", err)
	}
	if third.FilesChanged != 1 || third.FilesSkipped != 2 {
		t.Errorf("third run counted %d changed, %d skipped, want 1 and 2",
			third.FilesChanged, third.FilesSkipped)
	}
}

// TestCheck_NoCache tests that NoCache rescans every file even when hashes
// match.
func TestCheck_NoCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "demo.go", gatedSource)

	eng := newTestEngine(t, Config{Root: root, Version: "0.5.2"})
	if _, err := eng.Check(context.Background(), CheckOptions{}); err != nil {
		t.Fatalf("warm-up Check failed: %v", err)
	}

	report, err := eng.Check(context.Background(), CheckOptions{NoCache: true})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if report.FilesChanged != 1 || report.FilesSkipped != 0 {
		t.Errorf("NoCache run counted %d changed, %d skipped, want 1 and 0",
			report.FilesChanged, report.FilesSkipped)
	}
	if report.GatesTotal != 1 {
		t.Errorf("NoCache run evaluated %d gates, want 1", report.GatesTotal)
	}
}

// TestCheck_DeletedFile tests that removing a file drops its cached gates.
func TestCheck_DeletedFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", gatedSource)
	gone := writeFile(t, root, "gone.go", `package demo

//allowuntil:version=">= 1.0.x" reason="short lived"
func temp() {}
`)

	eng := newTestEngine(t, Config{Root: root, Version: "0.5.2"})
	first, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("first Check failed: %v", err)
	}
	if first.GatesTotal != 2 {
		t.Fatalf("expected 2 gates before deletion, got %d", first.GatesTotal)
	}

	if err := os.Remove(gone); err != nil {
		t.Fatalf("failed to remove file: %v", err)
	}

	second, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("second Check failed: %v", err)
	}
	if second.FilesTotal != 1 || second.FilesDeleted != 1 {
		t.Errorf("second run counted %d files, %d deleted, want 1 and 1",
			second.FilesTotal, second.FilesDeleted)
	}
	if second.GatesTotal != 1 {
		t.Errorf("expected 1 gate after deletion, got %d", second.GatesTotal)
	}
}

// TestCheck_ScanErrorNotCached tests that a file with a malformed directive
// fails the run and is re-reported on the next run instead of being cached.
func TestCheck_ScanErrorNotCached(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bad.go", `package demo

//allowuntil:version="eventually"
func f() {}
`)

	eng := newTestEngine(t, Config{Root: root, Version: "1.0.0"})

	for run := 1; run <= 2; run++ {
		report, err := eng.Check(context.Background(), CheckOptions{})
		if err != nil {
			t.Fatalf("run %d failed: %v", run, err)
		}
		if !report.Failed() {
			t.Fatalf("run %d: expected the report to fail", run)
		}
		if len(report.Errors) != 1 {
			t.Fatalf("run %d: expected 1 error, got %d", run, len(report.Errors))
		}
		if !strings.Contains(report.Errors[0].Message, "malformed predicate") {
			t.Errorf("run %d: unexpected message %q", run, report.Errors[0].Message)
		}
		if report.FilesChanged != 1 {
			t.Errorf("run %d: expected the broken file to be rescanned, counted %d changed",
				run, report.FilesChanged)
		}
	}
}

// TestCheck_ManifestGates tests that manifest entries evaluate exactly like
// scanned directives, with positions in the manifest file.
func TestCheck_ManifestGates(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "gates.yaml", `gates:
  - subject: legacy_users_table
    version: ">= 2.0.x"
    reason: "table replaced by accounts"
  - subject: old_report
    version: "< 1.0.0"
`)

	eng := newTestEngine(t, Config{
		Root:      root,
		Version:   "2.1.0",
		Manifests: []string{"gates.yaml"},
	})
	report, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if report.GatesTotal != 2 {
		t.Fatalf("expected 2 gates, got %d", report.GatesTotal)
	}
	if len(report.Triggered) != 1 {
		t.Fatalf("expected 1 triggered gate, got %d", len(report.Triggered))
	}

	d := report.Triggered[0]
	if d.Subject != "legacy_users_table" {
		t.Errorf("expected subject legacy_users_table, got %q", d.Subject)
	}
	if d.Message != "table replaced by accounts" {
		t.Errorf("unexpected message %q", d.Message)
	}
	if d.Pos.File != path || d.Pos.Line != 2 {
		t.Errorf("expected position %s:2, got %s", path, d.Pos)
	}
}

// TestCheck_ConfigHostedGates tests that gates declared inside the project
// config file load next to the tool's own keys and evaluate like any other
// manifest entry.
func TestCheck_ConfigHostedGates(t *testing.T) {
	root := t.TempDir()
	cfgPath := writeFile(t, root, "allowuntil.yaml", `version: "1.2.0"
paths:
  - ./...
cache: false
gates:
  - subject: fixtures/seed.sql
    version: ">= 1.0.x"
    reason: "seed data predates the schema split"
`)
	writeFile(t, root, "gates.yaml", `gates:
  - subject: old_report
    version: "< 1.0.0"
`)

	eng := newTestEngine(t, Config{
		Root:       root,
		Version:    "1.2.0",
		Manifests:  []string{"gates.yaml"},
		ConfigFile: cfgPath,
	})
	report, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if report.GatesTotal != 2 {
		t.Fatalf("expected 2 gates, got %d", report.GatesTotal)
	}
	if len(report.Triggered) != 1 {
		t.Fatalf("expected 1 triggered gate, got %d", len(report.Triggered))
	}

	d := report.Triggered[0]
	if d.Subject != "fixtures/seed.sql" {
		t.Errorf("expected subject fixtures/seed.sql, got %q", d.Subject)
	}
	if d.Pos.File != cfgPath || d.Pos.Line != 6 {
		t.Errorf("expected position %s:6, got %s", cfgPath, d.Pos)
	}
}

// TestCheck_ManifestParseError tests that a broken manifest fails the run
// with a positioned diagnostic.
func TestCheck_ManifestParseError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "gates.yaml", `gates:
  - subject: orphan
`)

	eng := newTestEngine(t, Config{
		Root:      root,
		Version:   "1.0.0",
		Manifests: []string{"gates.yaml"},
	})
	report, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if len(report.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(report.Errors))
	}
	if !strings.Contains(report.Errors[0].Message, `missing required "version" key`) {
		t.Errorf("unexpected message %q", report.Errors[0].Message)
	}
	if report.Errors[0].Pos.Line != 2 {
		t.Errorf("expected the diagnostic on line 2, got %d", report.Errors[0].Pos.Line)
	}
}

// TestCheck_MissingManifest tests that a configured manifest that does not
// exist fails the run rather than being silently skipped.
func TestCheck_MissingManifest(t *testing.T) {
	root := t.TempDir()

	eng := newTestEngine(t, Config{
		Root:      root,
		Version:   "1.0.0",
		Manifests: []string{"nope.yaml"},
	})
	report, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(report.Errors))
	}
}

// TestCheck_RunHistory tests that checks record runs with status and stats,
// and that List does not.
func TestCheck_RunHistory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "demo.go", gatedSource)

	eng := newTestEngine(t, Config{Root: root, Version: "0.5.2"})

	passing, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if passing.RunID == "" {
		t.Fatal("expected a run ID on the report")
	}

	run, err := eng.Store().GetLatestRun()
	if err != nil {
		t.Fatalf("GetLatestRun failed: %v", err)
	}
	if run == nil || run.ID != passing.RunID {
		t.Fatalf("latest run does not match the report: %+v", run)
	}
	if string(run.Status) != "passed" {
		t.Errorf("expected status passed, got %q", run.Status)
	}
	if run.FilesTotal != 1 || run.GatesTotal != 1 || run.Triggered != 0 {
		t.Errorf("unexpected run stats: %+v", run)
	}
	if run.CompletedAt == nil {
		t.Error("expected the run to be completed")
	}

	if _, err := eng.List(context.Background(), CheckOptions{}); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	runs, err := eng.Store().ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("List must not record a run, found %d runs", len(runs))
	}
}

// TestCheck_FailedRunStatus tests that a triggered gate records the run as
// failed.
func TestCheck_FailedRunStatus(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "demo.go", gatedSource)

	eng := newTestEngine(t, Config{Root: root, Version: "1.0.0"})
	if _, err := eng.Check(context.Background(), CheckOptions{}); err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	run, err := eng.Store().GetLatestRun()
	if err != nil {
		t.Fatalf("GetLatestRun failed: %v", err)
	}
	if string(run.Status) != "failed" {
		t.Errorf("expected status failed, got %q", run.Status)
	}
	if run.Triggered != 1 {
		t.Errorf("expected 1 triggered gate recorded, got %d", run.Triggered)
	}
}

// TestCheck_DiagnosticOrdering tests that diagnostics come back sorted by
// file and line regardless of evaluation order.
func TestCheck_DiagnosticOrdering(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.go", `package demo

//allowuntil:version=">= 1.x.x" reason="second"
func f() {}

//allowuntil:version=">= 1.x.x" reason="third"
func g() {}
`)
	writeFile(t, root, "a.go", `package demo

//allowuntil:version=">= 1.x.x" reason="first"
func h() {}
`)

	eng := newTestEngine(t, Config{Root: root, Version: "9.9.9"})
	report, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(report.Triggered) != 3 {
		t.Fatalf("expected 3 triggered gates, got %d", len(report.Triggered))
	}

	want := []string{"first", "second", "third"}
	for i, d := range report.Triggered {
		if d.Message != want[i] {
			t.Errorf("Triggered[%d] = %q, want %q", i, d.Message, want[i])
		}
	}
}

// TestCheck_ScanPaths tests that configured paths narrow the scan and that
// a missing path is skipped.
func TestCheck_ScanPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/a.go", gatedSource)
	writeFile(t, root, "other/b.go", gatedSource)

	eng := newTestEngine(t, Config{
		Root:    root,
		Paths:   []string{"pkg", "missing"},
		Version: "0.5.2",
	})
	report, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if report.FilesTotal != 1 {
		t.Errorf("expected only pkg to be scanned, counted %d files", report.FilesTotal)
	}
}

// TestCheck_ExcludedDir tests that excluded directories contribute nothing.
func TestCheck_ExcludedDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", gatedSource)
	writeFile(t, root, "gen/b.go", gatedSource)

	eng := newTestEngine(t, Config{
		Root:    root,
		Exclude: []string{"gen"},
		Version: "0.5.2",
	})
	report, err := eng.Check(context.Background(), CheckOptions{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if report.FilesTotal != 1 || report.GatesTotal != 1 {
		t.Errorf("expected the excluded directory to be skipped, counted %d files and %d gates",
			report.FilesTotal, report.GatesTotal)
	}
}

// TestNew_BadStatePath tests that an unopenable cache path fails engine
// construction.
func TestNew_BadStatePath(t *testing.T) {
	root := t.TempDir()
	_, err := New(Config{
		Root:      root,
		Version:   "1.0.0",
		StatePath: filepath.Join(root, "missing", "state.db"),
	})
	if err == nil {
		t.Fatal("expected an error for an unopenable state path")
	}
}

// TestReport_Summary tests the summary line format.
func TestReport_Summary(t *testing.T) {
	r := &Report{
		FilesTotal:   4,
		FilesChanged: 2,
		FilesSkipped: 1,
		FilesDeleted: 1,
		GatesTotal:   3,
		Triggered:    []gate.Diagnostic{{Subject: "X"}},
		Duration:     1502 * time.Millisecond,
	}
	want := "Files: 4 total (2 changed, 1 skipped, 1 deleted) | " +
		"Gates: 3 total (1 triggered) | Duration: 1.502s"
	if got := r.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

// TestWatchRelevant tests the event filter for watch mode.
func TestWatchRelevant(t *testing.T) {
	for _, name := range []string{"a.go", "gates.yaml", "allowuntil.yml"} {
		if !watchRelevant(name) {
			t.Errorf("expected %q to be watch relevant", name)
		}
	}
	for _, name := range []string{"notes.txt", "a.go.swp", "Makefile"} {
		if watchRelevant(name) {
			t.Errorf("expected %q to be ignored", name)
		}
	}
}
