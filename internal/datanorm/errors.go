package datanorm

import (
	"errors"
	"fmt"
	"strings"
)

// Parse failure kinds. Match them with errors.Is against a *ParseError.
var (
	ErrEmptyFile     = errors.New("file is empty")
	ErrUnreadable    = errors.New("file could not be read")
	ErrInvalidJSON   = errors.New("invalid JSON: expected an array of climb objects")
	ErrEmptyArray    = errors.New("no climb data: the JSON array is empty")
	ErrHeaderMissing = errors.New("header row is missing")
	ErrCSVRows       = errors.New("rows could not be parsed")
)

// Mapping errors.
var (
	ErrTemplateMismatch = errors.New("template does not match the file format")
	ErrUnknownField     = errors.New("unknown canonical field")
	ErrUnknownTemplate  = errors.New("unknown import template")
)

// ParseError is the fatal, user-displayable outcome of a failed parse.
type ParseError struct {
	Format  Format
	Kind    error
	Details []string
	Err     error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Format, e.Kind)
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Messages renders one "<FORMAT> Parsing Error: ..." line per detail, or a
// single line for the kind when there are no details.
func (e *ParseError) Messages() []string {
	prefix := fmt.Sprintf("%s Parsing Error: ", e.Format)
	if len(e.Details) == 0 {
		return []string{prefix + e.Kind.Error()}
	}
	out := make([]string, len(e.Details))
	for i, d := range e.Details {
		out[i] = prefix + d
	}
	return out
}

func parseErr(format Format, kind error, details ...string) *ParseError {
	return &ParseError{Format: format, Kind: kind, Details: details}
}
