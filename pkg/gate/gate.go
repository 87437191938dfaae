package gate

import "fmt"

// DefaultReason is the diagnostic text used when a gate declares no reason.
const DefaultReason = "item not allowed!"

// Gate is one version-gate declaration: an annotated item allowed until the
// predicate matches the project version.
type Gate struct {
	Subject   string   // name of the gated item, e.g. "LegacyConfig" or "Options.Timeout"
	Predicate string   // predicate text as written, e.g. ">= 1.0.x"
	Reason    string   // free text echoed into the failure diagnostic; may be empty
	Pos       Position // where the gate was declared
}

// Outcome is the result of checking one gate against the current version.
// The zero value is a pass.
type Outcome struct {
	Triggered bool
	Reason    string // reason carried verbatim; DefaultReason when none was declared
	Detail    string // "version <current> matches <predicate>"
}

// String renders the outcome the way the failure diagnostic does.
func (o Outcome) String() string {
	if !o.Triggered {
		return "pass"
	}
	return fmt.Sprintf("%s (%s)", o.Reason, o.Detail)
}

// Evaluate reports whether current satisfies the predicate.
// It returns *MalformedVersionError when current does not parse and
// *MalformedPredicateError when the predicate does not parse.
func Evaluate(current, predicate string) (bool, error) {
	v, err := ParseVersion(current)
	if err != nil {
		return false, err
	}
	p, err := ParsePredicate(predicate)
	if err != nil {
		return false, err
	}
	return p.Matches(v), nil
}

// Check evaluates the predicate against current and converts a match into
// a triggered outcome carrying the reason. A pass leaves the gated item
// untouched; a triggered outcome means the build must abort.
func Check(current, predicate, reason string) (Outcome, error) {
	v, err := ParseVersion(current)
	if err != nil {
		return Outcome{}, err
	}
	p, err := ParsePredicate(predicate)
	if err != nil {
		return Outcome{}, err
	}
	if !p.Matches(v) {
		return Outcome{}, nil
	}
	if reason == "" {
		reason = DefaultReason
	}
	return Outcome{
		Triggered: true,
		Reason:    reason,
		Detail:    fmt.Sprintf("version %s matches %s", v, p),
	}, nil
}

// Check evaluates the gate against the current version.
func (g Gate) Check(current string) (Outcome, error) {
	return Check(current, g.Predicate, g.Reason)
}

// Diagnostic is one reportable finding about a gate.
type Diagnostic struct {
	Severity Severity
	Subject  string
	Message  string // the gate's reason, verbatim
	Detail   string // evaluation context, e.g. "version 1.0.0 matches >= 1.0.x"
	Pos      Position
}
