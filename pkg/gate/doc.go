// Package gate implements version-gated deprecation checks.
//
// A gate marks an item as allowed until a version predicate matches the
// project's own version. Once the project version satisfies the predicate
// the gate triggers, and the build step running the check must fail with
// the gate's reason as the diagnostic.
//
// # Predicates
//
// A predicate is a comparison operator followed by a version pattern:
//
//	>= 1.0.x
//	== 2.1.0
//	<  3.0
//
// Supported operators are ==, !=, <, <=, > and >= (= is accepted as an
// alias for ==). The patch position, or the minor and patch positions
// together, may be the wildcard x (or X, or *), meaning "any value matches
// at this position". Missing trailing components are implicit wildcards,
// so ">= 1.0" and ">= 1.0.x" are the same predicate. A wildcard in the
// major position, or left of a concrete component, is malformed.
//
// Wildcards short-circuit comparison at their position. ">= 1.0.x" holds
// when major > 1, or major == 1 and minor >= 0; the patch value is never
// consulted. "> 1.0.x" excludes every 1.0.z version but admits 1.1.0.
//
// # Evaluation
//
// Evaluate reports whether a version satisfies a predicate:
//
//	ok, err := gate.Evaluate("1.2.3", ">= 1.0.x") // true
//
// Check wraps Evaluate into the pass/fail decision carrying the
// human-readable reason:
//
//	out, err := gate.Check("1.0.0", ">= 1.0.x", "struct is deprecated")
//	if out.Triggered {
//	    // fail the build, reporting out.Reason
//	}
//
// Both return *MalformedVersionError or *MalformedPredicateError when an
// input does not parse; callers are expected to abort on either. Evaluation
// is pure and deterministic, so results may be cached keyed on the
// (version, predicate) pair.
package gate
