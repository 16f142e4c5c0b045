package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/terradue/aeronet-go/catalog"
)

// Compile error kinds. CompileError.Kind is always one of these;
// errors.Is(err, ErrXxx) matches a compile failure of that kind.
var (
	// ErrUnsupportedExpression indicates a construct outside the conjunctive subset
	// the AERONET API accepts (or, not, nested and, operators other than eq/t_after/t_before).
	ErrUnsupportedExpression = errors.New("unsupported expression")

	// ErrUnknownQueryable indicates a property absent from the registry.
	ErrUnknownQueryable = catalog.ErrUnknownQueryable

	// ErrInvalidLiteral indicates a value that does not fit the queryable's domain.
	ErrInvalidLiteral = catalog.ErrInvalidLiteral

	// ErrIncompleteTimeRange indicates a t_after without t_before or vice versa.
	ErrIncompleteTimeRange = errors.New("incomplete time range")

	// ErrConflictingConstraint indicates two leaves setting one parameter to different values.
	ErrConflictingConstraint = errors.New("conflicting constraint")
)

// kindNames maps compile error kinds to their taxonomy names.
var kindNames = []struct {
	kind error
	name string
}{
	{ErrUnsupportedExpression, "UnsupportedExpression"},
	{ErrUnknownQueryable, "UnknownQueryable"},
	{ErrInvalidLiteral, "InvalidLiteral"},
	{ErrIncompleteTimeRange, "IncompleteTimeRange"},
	{ErrConflictingConstraint, "ConflictingConstraint"},
}

// KindName returns the taxonomy name of a compile or syntax error
// (e.g., "ConflictingConstraint"), or "" when err is neither.
func KindName(err error) string {
	var se *SyntaxError
	if errors.As(err, &se) {
		return "SyntaxError"
	}
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return ""
}

// CompileError describes why a filter cannot be expressed as AERONET query parameters.
// Compilation is all-or-nothing: a CompileError means no parameters were produced.
type CompileError struct {
	// Kind is the taxonomy sentinel (ErrUnsupportedExpression, ...).
	Kind error

	// Operator is the offending operator, when applicable.
	Operator Operator

	// Property is the offending property, when applicable.
	Property string

	// Param and Values name the physical parameter and the values that collided
	// (ConflictingConstraint only).
	Param  string
	Values []string

	// Detail is a human readable explanation.
	Detail string

	// Err is the underlying cause (e.g., a *catalog.QueryableError).
	Err error
}

func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())

	switch {
	case errors.Is(e.Kind, ErrConflictingConstraint) && e.Param != "":
		fmt.Fprintf(&b, ": parameter %q set to %s", e.Param, quoteAll(e.Values))
		if e.Property != "" {
			fmt.Fprintf(&b, " by %q", e.Property)
		}
		return b.String()
	case e.Operator != "" && e.Property != "":
		fmt.Fprintf(&b, ": %s on %q", e.Operator, e.Property)
	case e.Operator != "":
		fmt.Fprintf(&b, ": %s", e.Operator)
	case e.Property != "":
		fmt.Fprintf(&b, ": %q", e.Property)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Is reports whether target is the kind of this error.
func (e *CompileError) Is(target error) bool {
	return target == e.Kind
}

func (e *CompileError) Unwrap() error { return e.Err }

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, " and ")
}

func unsupported(op Operator, property, format string, args ...any) *CompileError {
	return &CompileError{
		Kind:     ErrUnsupportedExpression,
		Operator: op,
		Property: property,
		Detail:   fmt.Sprintf(format, args...),
	}
}

// SyntaxError reports a malformed filter document.
type SyntaxError struct {
	// Pos is the byte offset of the error in the input.
	Pos int
	Msg string
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("filter: syntax error at offset %d: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return e.Err }
