package odm

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes.
const (
	CodeInvalidType    = "invalid_type"
	CodeInvalidValue   = "invalid_value"
	CodeRequired       = "required"
	CodeNullability    = "nullability"
	CodeUnknownKey     = "unknown_key"
	CodeMissingDefault = "missing_default"
)

// Sentinel errors. Structured detail travels as Issues next to these; match
// with errors.Is and extract detail with AsIssues.
var (
	ErrValidation           = errors.New("odm: validation failed")
	ErrMissingRequiredField = errors.New("odm: missing required field")
	ErrDeserialization      = errors.New("odm: deserialization failed")
	ErrMissingDefault       = errors.New("odm: no default configured")
	ErrUnknownField         = errors.New("odm: unknown field")
	ErrUnknownSchema        = errors.New("odm: unknown schema")
	ErrDuplicateField       = errors.New("odm: duplicate field")
	ErrDuplicateSchema      = errors.New("odm: schema already registered")
	ErrFrozenRegistry       = errors.New("odm: registry is frozen")
	ErrEmbeddedCycle        = errors.New("odm: embedded schema cycle")
	ErrInvalidFieldName     = errors.New("odm: invalid field name")
	ErrInvalidCollection    = errors.New("odm: invalid collection name")
	ErrQueryType            = errors.New("odm: query operand type mismatch")
	ErrConflictingUpdate    = errors.New("odm: conflicting update operators")
	ErrImproperlyConfigured = errors.New("odm: improperly configured")
)

// Issue is a single validation or deserialization finding. Path is a
// slash-separated location inside the document ("/" for the whole value,
// "/items/2/price" for a nested element).
type Issue struct {
	Path    string
	Code    string
	Message string
	Cause   error
}

// Issues is an ordered collection of findings that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	lim := len(iss)
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(b, "%s at %s", iss[i].Code, iss[i].Path)
	}
	if n := len(iss); n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AsIssues extracts Issues from an error chain.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// prefixIssues rebases issue paths under the given segment.
func prefixIssues(segment string, iss Issues) Issues {
	out := make(Issues, 0, len(iss))
	for _, it := range iss {
		p := it.Path
		if p == "/" || p == "" {
			p = "/" + segment
		} else {
			p = "/" + segment + p
		}
		it.Path = p
		out = append(out, it)
	}
	return out
}

// wrapIssues ties structured issues to a sentinel so callers can both
// errors.Is against the sentinel and errors.As into Issues.
func wrapIssues(sentinel error, iss Issues) error {
	if len(iss) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", sentinel, iss)
}
