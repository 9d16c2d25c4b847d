package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies pipeline failures
type ErrorKind string

const (
	MalformedMetadata          ErrorKind = "MalformedMetadata"
	UnknownFieldType           ErrorKind = "UnknownFieldType"
	DuplicateTable             ErrorKind = "DuplicateTable"
	ConflictingFieldDefinition ErrorKind = "ConflictingFieldDefinition"
	TypeMismatch               ErrorKind = "TypeMismatch"
	UnknownReferenceTarget     ErrorKind = "UnknownReferenceTarget"
	CyclicSchema               ErrorKind = "CyclicSchema"
	UnsupportedType            ErrorKind = "UnsupportedType"
	UnsupportedFeature         ErrorKind = "UnsupportedFeature"
)

// Error is a diagnosed pipeline failure. Only the context fields relevant
// to the kind are set.
type Error struct {
	Kind     ErrorKind
	Document string
	Table    string
	Field    string
	Target   string   // missing or mismatched reference target
	Type     string   // offending type token
	Engine   string   // target engine
	Tables   []string // cycle members, or tables involved in a conflict
	Detail   string
}

func (e *Error) Error() string {
	var parts []string
	if e.Document != "" {
		parts = append(parts, fmt.Sprintf("document %q", e.Document))
	}
	if e.Table != "" {
		parts = append(parts, fmt.Sprintf("table %q", e.Table))
	}
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field %q", e.Field))
	}
	if e.Target != "" {
		parts = append(parts, fmt.Sprintf("target %q", e.Target))
	}
	if e.Type != "" {
		parts = append(parts, fmt.Sprintf("type %q", e.Type))
	}
	if e.Engine != "" {
		parts = append(parts, fmt.Sprintf("engine %q", e.Engine))
	}
	if len(e.Tables) > 0 {
		parts = append(parts, fmt.Sprintf("tables [%s]", strings.Join(e.Tables, " -> ")))
	}

	msg := string(e.Kind)
	if len(parts) > 0 {
		msg += ": " + strings.Join(parts, ", ")
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// IsKind reports whether err carries a pipeline error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// AsError extracts the pipeline error from err
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
