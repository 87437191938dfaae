package scanner

import (
	"strings"
	"testing"

	"github.com/leapstack-labs/allowuntil/pkg/gate"
)

// TestScanFile_FuncDirective tests that a doc directive on a function
// becomes a gate with the function's name as subject.
func TestScanFile_FuncDirective(t *testing.T) {
	src := `package demo

//allowuntil:version=">= 1.0.x" reason="struct is deprecated"
func Legacy() {}
`
	result := New(nil).ScanFile("demo.go", []byte(src))
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected scan errors: %v", result.Errors)
	}
	if len(result.Gates) != 1 {
		t.Fatalf("expected 1 gate, got %d", len(result.Gates))
	}

	g := result.Gates[0]
	if g.Subject != "Legacy" {
		t.Errorf("expected subject Legacy, got %q", g.Subject)
	}
	if g.Predicate != ">= 1.0.x" {
		t.Errorf("expected predicate >= 1.0.x, got %q", g.Predicate)
	}
	if g.Reason != "struct is deprecated" {
		t.Errorf("expected reason carried verbatim, got %q", g.Reason)
	}
	if g.Pos.File != "demo.go" || g.Pos.Line != 3 {
		t.Errorf("expected position demo.go:3, got %s", g.Pos)
	}
}

// TestScanFile_MethodSubject tests that methods are qualified by their
// receiver type, pointers and type parameters unwrapped.
func TestScanFile_MethodSubject(t *testing.T) {
	src := `package demo

type Client struct{}

//allowuntil:version="> 2.0.0"
func (c *Client) Fetch() {}

type Pool[T any] struct{}

//allowuntil:version=">= 3.x.x" reason="pools are going away"
func (p *Pool[T]) Drain() {}
`
	result := New(nil).ScanFile("demo.go", []byte(src))
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected scan errors: %v", result.Errors)
	}
	if len(result.Gates) != 2 {
		t.Fatalf("expected 2 gates, got %d", len(result.Gates))
	}
	if result.Gates[0].Subject != "Client.Fetch" {
		t.Errorf("expected subject Client.Fetch, got %q", result.Gates[0].Subject)
	}
	if result.Gates[1].Subject != "Pool.Drain" {
		t.Errorf("expected subject Pool.Drain, got %q", result.Gates[1].Subject)
	}
}

// TestScanFile_TypeDirective tests the common case of gating a whole type.
func TestScanFile_TypeDirective(t *testing.T) {
	src := `package demo

//allowuntil:version=">= 1.0.x" reason="struct is deprecated"
type LegacyConfig struct {
	Path string
}
`
	result := New(nil).ScanFile("demo.go", []byte(src))
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected scan errors: %v", result.Errors)
	}
	if len(result.Gates) != 1 {
		t.Fatalf("expected 1 gate, got %d", len(result.Gates))
	}
	if result.Gates[0].Subject != "LegacyConfig" {
		t.Errorf("expected subject LegacyConfig, got %q", result.Gates[0].Subject)
	}
}

// TestScanFile_StructFields tests that field directives produce
// Type.Field subjects, from both doc and trailing comments.
func TestScanFile_StructFields(t *testing.T) {
	src := `package demo

type Options struct {
	//allowuntil:version=">= 1.0.x" reason="use TimeoutSeconds"
	Timeout int

	Retries int //allowuntil:version=">= 2.x.x"
}
`
	result := New(nil).ScanFile("demo.go", []byte(src))
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected scan errors: %v", result.Errors)
	}
	if len(result.Gates) != 2 {
		t.Fatalf("expected 2 gates, got %d", len(result.Gates))
	}

	if result.Gates[0].Subject != "Options.Timeout" {
		t.Errorf("expected subject Options.Timeout, got %q", result.Gates[0].Subject)
	}
	if result.Gates[0].Pos.Line != 4 {
		t.Errorf("expected doc directive on line 4, got %d", result.Gates[0].Pos.Line)
	}
	if result.Gates[1].Subject != "Options.Retries" {
		t.Errorf("expected subject Options.Retries, got %q", result.Gates[1].Subject)
	}
	if result.Gates[1].Pos.Line != 7 {
		t.Errorf("expected trailing directive on line 7, got %d", result.Gates[1].Pos.Line)
	}
}

// TestScanFile_InterfaceMethods tests that interface method directives
// produce Type.Method subjects.
func TestScanFile_InterfaceMethods(t *testing.T) {
	src := `package demo

type Store interface {
	//allowuntil:version=">= 1.5.x" reason="moved to StoreV2"
	Get(key string) (string, error)
	Put(key, value string) error //allowuntil:version=">= 2.0.x"
}
`
	result := New(nil).ScanFile("demo.go", []byte(src))
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected scan errors: %v", result.Errors)
	}
	if len(result.Gates) != 2 {
		t.Fatalf("expected 2 gates, got %d", len(result.Gates))
	}
	if result.Gates[0].Subject != "Store.Get" {
		t.Errorf("expected subject Store.Get, got %q", result.Gates[0].Subject)
	}
	if result.Gates[1].Subject != "Store.Put" {
		t.Errorf("expected subject Store.Put, got %q", result.Gates[1].Subject)
	}
}

// TestScanFile_GroupedDecls tests directives on grouped declarations:
// a group doc gates every name, a spec doc gates its own spec.
func TestScanFile_GroupedDecls(t *testing.T) {
	src := `package demo

//allowuntil:version="< 0.9.0" reason="remove the compat block"
const (
	legacyA = 1
	legacyB = 2
)

var (
	//allowuntil:version=">= 1.0.x"
	shimEnabled = true
	modern      = false
)
`
	result := New(nil).ScanFile("demo.go", []byte(src))
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected scan errors: %v", result.Errors)
	}
	if len(result.Gates) != 2 {
		t.Fatalf("expected 2 gates, got %d", len(result.Gates))
	}
	if result.Gates[0].Subject != "legacyA, legacyB" {
		t.Errorf("expected group subject, got %q", result.Gates[0].Subject)
	}
	if result.Gates[1].Subject != "shimEnabled" {
		t.Errorf("expected subject shimEnabled, got %q", result.Gates[1].Subject)
	}
}

// TestScanFile_TrailingComment tests the single-line form where the
// directive trails the declaration.
func TestScanFile_TrailingComment(t *testing.T) {
	src := `package demo

var compatShim = true //allowuntil:version=">= 1.0.x" reason="shim for the 0.x loader"
`
	result := New(nil).ScanFile("demo.go", []byte(src))
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected scan errors: %v", result.Errors)
	}
	if len(result.Gates) != 1 {
		t.Fatalf("expected 1 gate, got %d", len(result.Gates))
	}
	g := result.Gates[0]
	if g.Subject != "compatShim" {
		t.Errorf("expected subject compatShim, got %q", g.Subject)
	}
	if g.Reason != "shim for the 0.x loader" {
		t.Errorf("unexpected reason %q", g.Reason)
	}
}

// TestScanFile_EmbeddedField tests that embedded fields get a readable
// subject derived from the embedded type.
func TestScanFile_EmbeddedField(t *testing.T) {
	src := `package demo

import "sync"

type Guarded struct {
	sync.Mutex //allowuntil:version=">= 1.0.x" reason="switch to RWMutex"
	value      int
}
`
	result := New(nil).ScanFile("demo.go", []byte(src))
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected scan errors: %v", result.Errors)
	}
	if len(result.Gates) != 1 {
		t.Fatalf("expected 1 gate, got %d", len(result.Gates))
	}
	if result.Gates[0].Subject != "Guarded.Mutex" {
		t.Errorf("expected subject Guarded.Mutex, got %q", result.Gates[0].Subject)
	}
}

// TestScanFile_ReasonOptional tests that a gate without a reason is valid
// and carries an empty reason.
func TestScanFile_ReasonOptional(t *testing.T) {
	src := `package demo

//allowuntil:version="== 1.0.0"
func f() {}
`
	result := New(nil).ScanFile("demo.go", []byte(src))
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected scan errors: %v", result.Errors)
	}
	if len(result.Gates) != 1 {
		t.Fatalf("expected 1 gate, got %d", len(result.Gates))
	}
	if result.Gates[0].Reason != "" {
		t.Errorf("expected empty reason, got %q", result.Gates[0].Reason)
	}
}

// TestScanFile_EscapedQuotes tests that quoted values may contain escaped
// quotes.
func TestScanFile_EscapedQuotes(t *testing.T) {
	src := `package demo

//allowuntil:version=">= 1.0.x" reason="remove the \"beta\" flag"
func f() {}
`
	result := New(nil).ScanFile("demo.go", []byte(src))
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected scan errors: %v", result.Errors)
	}
	if len(result.Gates) != 1 {
		t.Fatalf("expected 1 gate, got %d", len(result.Gates))
	}
	if want := `remove the "beta" flag`; result.Gates[0].Reason != want {
		t.Errorf("expected reason %q, got %q", want, result.Gates[0].Reason)
	}
}

// TestScanFile_IgnoresOrdinaryComments tests that only exact //allowuntil:
// directives are scanned. A space after // makes it prose.
func TestScanFile_IgnoresOrdinaryComments(t *testing.T) {
	src := `package demo

// allowuntil: version=">= 1.0.x" is documented elsewhere.
// This comment merely mentions allowuntil:version.
func f() {}
`
	result := New(nil).ScanFile("demo.go", []byte(src))
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected scan errors: %v", result.Errors)
	}
	if len(result.Gates) != 0 {
		t.Fatalf("expected no gates, got %d", len(result.Gates))
	}
}

// TestScanFile_MissingVersion tests that a directive without a version
// argument is a scan error, not a silent skip.
func TestScanFile_MissingVersion(t *testing.T) {
	src := `package demo

//allowuntil:reason="no version here"
func f() {}
`
	result := New(nil).ScanFile("demo.go", []byte(src))
	if len(result.Gates) != 0 {
		t.Fatalf("expected no gates, got %d", len(result.Gates))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 scan error, got %d", len(result.Errors))
	}
	if !strings.Contains(result.Errors[0].Msg, `missing required "version" argument`) {
		t.Errorf("unexpected error message: %s", result.Errors[0].Msg)
	}
	if result.Errors[0].Pos.Line != 3 {
		t.Errorf("expected error anchored to line 3, got %d", result.Errors[0].Pos.Line)
	}
}

// TestScanFile_UnknownArgument tests the diagnostic for an argument the
// grammar does not know.
func TestScanFile_UnknownArgument(t *testing.T) {
	src := `package demo

//allowuntil:version=">= 1.0.0" until="2026-01-01"
func f() {}
`
	result := New(nil).ScanFile("demo.go", []byte(src))
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 scan error, got %d", len(result.Errors))
	}
	if !strings.Contains(result.Errors[0].Msg, `unknown argument "until"`) {
		t.Errorf("unexpected error message: %s", result.Errors[0].Msg)
	}
	if !strings.Contains(result.Errors[0].Msg, `valid arguments are "version" and "reason"`) {
		t.Errorf("error should list valid arguments: %s", result.Errors[0].Msg)
	}
}

// TestScanFile_InvalidPredicate tests that predicate syntax is validated
// at scan time and anchored to the directive.
func TestScanFile_InvalidPredicate(t *testing.T) {
	src := `package demo

//allowuntil:version="not a predicate"
func f() {}
`
	result := New(nil).ScanFile("demo.go", []byte(src))
	if len(result.Gates) != 0 {
		t.Fatalf("expected no gates, got %d", len(result.Gates))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 scan error, got %d", len(result.Errors))
	}
	if !strings.Contains(result.Errors[0].Msg, "malformed predicate") {
		t.Errorf("unexpected error message: %s", result.Errors[0].Msg)
	}
	if result.Errors[0].Pos.Line != 3 {
		t.Errorf("expected error anchored to line 3, got %d", result.Errors[0].Pos.Line)
	}
}

// TestScanFile_ErrorsDoNotStopExtraction tests that one bad directive does
// not hide the rest of the file.
func TestScanFile_ErrorsDoNotStopExtraction(t *testing.T) {
	src := `package demo

//allowuntil:version="bogus"
func broken() {}

//allowuntil:version=">= 1.0.x" reason="still extracted"
func fine() {}
`
	result := New(nil).ScanFile("demo.go", []byte(src))
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 scan error, got %d", len(result.Errors))
	}
	if len(result.Gates) != 1 {
		t.Fatalf("expected 1 gate, got %d", len(result.Gates))
	}
	if result.Gates[0].Subject != "fine" {
		t.Errorf("expected subject fine, got %q", result.Gates[0].Subject)
	}
}

// TestParseDirective_Valid covers the argument grammar's accepted forms.
func TestParseDirective_Valid(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantVersion string
		wantReason  string
	}{
		{
			name:        "version only",
			text:        `//allowuntil:version=">= 1.0.x"`,
			wantVersion: ">= 1.0.x",
		},
		{
			name:        "version and reason",
			text:        `//allowuntil:version="== 1.2.3" reason="gone in 1.2.3"`,
			wantVersion: "== 1.2.3",
			wantReason:  "gone in 1.2.3",
		},
		{
			name:        "reason before version",
			text:        `//allowuntil:reason="order free" version="< 2.0.0"`,
			wantVersion: "< 2.0.0",
			wantReason:  "order free",
		},
		{
			name:        "spaces around equals",
			text:        `//allowuntil:version = ">= 1.0.0"  reason = "roomy"`,
			wantVersion: ">= 1.0.0",
			wantReason:  "roomy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseDirective(tt.text, gate.Position{File: "x.go", Line: 1})
			if err != nil {
				t.Fatalf("parseDirective(%q) failed: %v", tt.text, err)
			}
			if d.version != tt.wantVersion {
				t.Errorf("version = %q, want %q", d.version, tt.wantVersion)
			}
			if d.reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", d.reason, tt.wantReason)
			}
		})
	}
}

// TestParseDirective_Errors covers the argument grammar's rejections.
func TestParseDirective_Errors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantMsg string
	}{
		{
			name:    "empty",
			text:    `//allowuntil:`,
			wantMsg: `missing required "version" argument`,
		},
		{
			name:    "reason only",
			text:    `//allowuntil:reason="x"`,
			wantMsg: `missing required "version" argument`,
		},
		{
			name:    "unknown key",
			text:    `//allowuntil:version="1.0.0" until="later"`,
			wantMsg: `unknown argument "until"`,
		},
		{
			name:    "unquoted value",
			text:    `//allowuntil:version=1.0.0`,
			wantMsg: "malformed directive arguments",
		},
		{
			name:    "trailing junk",
			text:    `//allowuntil:version="1.0.0" junk`,
			wantMsg: "malformed directive arguments",
		},
		{
			name:    "bare words",
			text:    `//allowuntil:do not use after 1.0`,
			wantMsg: "malformed directive arguments",
		},
		{
			name:    "bad escape",
			text:    `//allowuntil:version="a\qb"`,
			wantMsg: "invalid version value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDirective(tt.text, gate.Position{File: "x.go", Line: 1})
			if err == nil {
				t.Fatalf("parseDirective(%q) succeeded, want error", tt.text)
			}
			if !strings.Contains(err.Msg, tt.wantMsg) {
				t.Errorf("error = %q, want substring %q", err.Msg, tt.wantMsg)
			}
		})
	}
}
