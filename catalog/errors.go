package catalog

import (
	"errors"
	"fmt"
)

// Standard errors returned by registry lookups and decomposition.
var (
	// ErrUnknownQueryable indicates a filter references a property absent from the registry.
	ErrUnknownQueryable = errors.New("unknown queryable")

	// ErrInvalidLiteral indicates a value does not match the queryable's declared kind or domain.
	ErrInvalidLiteral = errors.New("invalid literal")

	// ErrUnsupportedComparison indicates a comparison that cannot be applied to the queryable
	// (e.g., equality on a date range property).
	ErrUnsupportedComparison = errors.New("unsupported comparison")

	// ErrInvalidRegistry indicates registry declaration validation failed.
	ErrInvalidRegistry = errors.New("invalid queryable registry")
)

// QueryableError carries the queryable, comparison and offending value of a failed
// lookup or decomposition.
type QueryableError struct {
	Queryable  string
	Comparison Comparison
	Value      any
	Reason     string
	Err        error
}

func (e *QueryableError) Error() string {
	switch {
	case errors.Is(e.Err, ErrUnknownQueryable):
		return fmt.Sprintf("%v: %q", e.Err, e.Queryable)
	case e.Value != nil:
		return fmt.Sprintf("%v for %q: %s (got %#v)", e.Err, e.Queryable, e.Reason, e.Value)
	default:
		return fmt.Sprintf("%v for %q: %s", e.Err, e.Queryable, e.Reason)
	}
}

func (e *QueryableError) Unwrap() error { return e.Err }

func invalidLiteral(q *Queryable, cmp Comparison, v any, format string, args ...any) error {
	return &QueryableError{
		Queryable:  q.Name,
		Comparison: cmp,
		Value:      v,
		Reason:     fmt.Sprintf(format, args...),
		Err:        ErrInvalidLiteral,
	}
}

func unsupportedComparison(q *Queryable, cmp Comparison) error {
	return &QueryableError{
		Queryable:  q.Name,
		Comparison: cmp,
		Reason:     fmt.Sprintf("%s cannot be applied to a %s queryable", cmp, q.Kind),
		Err:        ErrUnsupportedComparison,
	}
}
