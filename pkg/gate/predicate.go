package gate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Op is a predicate comparison operator.
type Op int

// Supported comparison operators.
const (
	OpEqual Op = iota
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

// String returns the operator's textual form.
func (o Op) String() string {
	switch o {
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	default:
		return "?"
	}
}

// Predicate is a parsed comparison operator plus a target version pattern.
// Wildcard positions match any value; only trailing wildcard runs are legal,
// so MinorAny implies PatchAny.
type Predicate struct {
	Op       Op
	Major    uint64
	Minor    uint64
	Patch    uint64
	MinorAny bool
	PatchAny bool

	raw string
}

// String returns the predicate as written, trimmed of surrounding space.
func (p Predicate) String() string { return p.raw }

// operator spellings, longest first so "==" wins over "=".
var operators = []struct {
	text string
	op   Op
}{
	{"==", OpEqual},
	{"!=", OpNotEqual},
	{"<=", OpLessEqual},
	{">=", OpGreaterEqual},
	{"=", OpEqual},
	{"<", OpLess},
	{">", OpGreater},
}

// ParsePredicate parses a predicate string such as ">= 1.0.x".
// The operator is required; missing trailing components are implicit
// wildcards, so "== 1.2" and "== 1.2.x" parse identically.
func ParsePredicate(s string) (Predicate, error) {
	malformed := func(format string, args ...any) (Predicate, error) {
		return Predicate{}, &MalformedPredicateError{Input: s, Err: fmt.Errorf(format, args...)}
	}

	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return malformed("empty predicate")
	}

	p := Predicate{raw: trimmed}
	rest := ""
	found := false
	for _, cand := range operators {
		if strings.HasPrefix(trimmed, cand.text) {
			p.Op = cand.op
			rest = trimmed[len(cand.text):]
			found = true
			break
		}
	}
	if !found {
		return malformed("expected comparison operator (==, !=, <, <=, >, >=)")
	}

	pattern := strings.TrimSpace(rest)
	pattern = strings.TrimPrefix(pattern, "v")
	if pattern == "" {
		return malformed("missing version pattern after %q", p.Op)
	}

	parts := strings.Split(pattern, ".")
	if len(parts) > 3 {
		return malformed("too many version components in %q", pattern)
	}

	major, majorAny, err := parseComponent(parts[0])
	if err != nil {
		return malformed("%v", err)
	}
	if majorAny {
		return malformed("wildcard is not allowed in the major position")
	}
	p.Major = major

	p.MinorAny = true
	p.PatchAny = true
	if len(parts) > 1 {
		p.Minor, p.MinorAny, err = parseComponent(parts[1])
		if err != nil {
			return malformed("%v", err)
		}
	}
	if len(parts) > 2 {
		p.Patch, p.PatchAny, err = parseComponent(parts[2])
		if err != nil {
			return malformed("%v", err)
		}
		if p.MinorAny && !p.PatchAny {
			return malformed("wildcard may not precede a concrete component")
		}
	}

	return p, nil
}

// parseComponent parses one version-pattern component: either an unsigned
// integer or a wildcard (x, X, *).
func parseComponent(part string) (uint64, bool, error) {
	switch part {
	case "x", "X", "*":
		return 0, true, nil
	case "":
		return 0, false, fmt.Errorf("empty version component")
	}
	n, err := strconv.ParseUint(part, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid version component %q", part)
	}
	return n, false, nil
}

// Matches reports whether the version satisfies the predicate.
// Pre-release and build metadata on v are ignored.
func (p Predicate) Matches(v *semver.Version) bool {
	switch p.Op {
	case OpEqual:
		return p.matchesEqual(v)
	case OpNotEqual:
		return !p.matchesEqual(v)
	case OpGreater:
		return p.matchesGreater(v)
	case OpGreaterEqual:
		return p.matchesEqual(v) || p.matchesGreater(v)
	case OpLess:
		return p.matchesLess(v)
	case OpLessEqual:
		return p.matchesEqual(v) || p.matchesLess(v)
	default:
		return false
	}
}

// matchesEqual is component-wise equality; a wildcard matches any value and
// stops comparison of the components to its right.
func (p Predicate) matchesEqual(v *semver.Version) bool {
	if v.Major() != p.Major {
		return false
	}
	if p.MinorAny {
		return true
	}
	if v.Minor() != p.Minor {
		return false
	}
	if p.PatchAny {
		return true
	}
	return v.Patch() == p.Patch
}

// matchesGreater holds when the version is strictly above every version the
// pattern matches. At a wildcard position no concrete value can exceed the
// pattern, so the comparison must already have been decided to its left.
func (p Predicate) matchesGreater(v *semver.Version) bool {
	if v.Major() != p.Major {
		return v.Major() > p.Major
	}
	if p.MinorAny {
		return false
	}
	if v.Minor() != p.Minor {
		return v.Minor() > p.Minor
	}
	if p.PatchAny {
		return false
	}
	return v.Patch() > p.Patch
}

// matchesLess mirrors matchesGreater for the lower bound.
func (p Predicate) matchesLess(v *semver.Version) bool {
	if v.Major() != p.Major {
		return v.Major() < p.Major
	}
	if p.MinorAny {
		return false
	}
	if v.Minor() != p.Minor {
		return v.Minor() < p.Minor
	}
	if p.PatchAny {
		return false
	}
	return v.Patch() < p.Patch
}
