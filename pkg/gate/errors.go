package gate

import "fmt"

// MalformedVersionError reports a current-version string that is not valid
// semantic-version syntax.
type MalformedVersionError struct {
	Input string
	Err   error
}

func (e *MalformedVersionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed version %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("malformed version %q", e.Input)
}

func (e *MalformedVersionError) Unwrap() error { return e.Err }

// MalformedPredicateError reports a predicate string that does not parse
// into an operator plus a version pattern.
type MalformedPredicateError struct {
	Input string
	Err   error
}

func (e *MalformedPredicateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed predicate %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("malformed predicate %q", e.Input)
}

func (e *MalformedPredicateError) Unwrap() error { return e.Err }
