package config

import "fmt"

// ParseError represents a malformed or missing definition document. It is
// fatal: the run aborts before any remote call is made.
type ParseError struct {
	// Path is the full path to the definition file.
	Path string

	// Message is a human-readable description of what went wrong.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("definition %s: %s: %v", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("definition %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError reports a structural problem inside a parsed definition
// that is detectable without consulting any remote state, such as a
// duplicate asset name or a bundle without a fragment reference. It is
// fatal before any remote call.
type ValidationError struct {
	// Section is the document section the problem was found in, e.g.
	// "foundational_assets" or "integration_definitions".
	Section string

	// Entity is the offending name or key.
	Entity string

	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %q: %s", e.Section, e.Entity, e.Message)
}
