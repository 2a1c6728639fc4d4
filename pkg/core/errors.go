// pkg/core/errors.go
package core

import "fmt"

// InvalidPathError reports an unusable waypoint source: unreadable file,
// unparsable line, non-increasing positions or too few waypoints.
type InvalidPathError struct {
	Source string // file name, empty when not file-backed
	Line   int    // 1-based line or waypoint number, 0 when not applicable
	Reason string
	Err    error
}

func (e *InvalidPathError) Error() string {
	msg := "invalid path"
	if e.Source != "" {
		msg += " " + fmt.Sprintf("%q", e.Source)
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidPathError) Unwrap() error {
	return e.Err
}

// InvalidParameterError reports a numeric argument outside its accepted range.
type InvalidParameterError struct {
	Name  string
	Value string
	Rule  string
	Err   error
}

func (e *InvalidParameterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %q: %v", e.Name, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Name, e.Value, e.Rule)
}

func (e *InvalidParameterError) Unwrap() error {
	return e.Err
}

// UnrecognizedOptionError reports an unknown command line flag.
type UnrecognizedOptionError struct {
	Option string
	Err    error
}

func (e *UnrecognizedOptionError) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("invalid option: %v", e.Err)
	}
	return fmt.Sprintf("invalid option %s", e.Option)
}

func (e *UnrecognizedOptionError) Unwrap() error {
	return e.Err
}
