// Package filter parses CQL2 filters and compiles them into AERONET web service query parameters.
//
// The AERONET v3 web service accepts a fixed set of query parameters rather than a
// filter language. This package bridges the two:
//   - Parse CQL2-JSON or CQL2-text into one expression tree
//   - Validate the tree against the conjunctive subset the service can express
//   - Resolve properties and decompose values through a catalog.Registry
//   - Emit an ordered, reproducible Query
//
// # Basic Usage
//
//	expr, err := filter.ParseLang(filter.LangCQL2Text,
//	    "site = 'Cart_Site' AND data_type = 'AOD20'")
//	if err != nil {
//	    return err // *filter.SyntaxError
//	}
//
//	q, err := filter.NewCompiler(nil).Compile(expr)
//	if err != nil {
//	    return err // *filter.CompileError
//	}
//
//	fmt.Println(q.Encode()) // site=Cart_Site&AOD20=1
//
// # Accepted Subset
//
// A filter compiles when it is a single leaf or an "and" of leaves, where a leaf is
//   - an equality between a property and a literal, or
//   - t_after / t_before between a property and a timestamp.
//
// t_after and t_before must appear together on the same property and form one
// closed range. Everything else (or, not, nested and, like, gt, spatial
// predicates, functions) parses but fails to compile with ErrUnsupportedExpression.
//
// # Errors
//
// Compile failures are *CompileError values whose Kind is one of
// ErrUnsupportedExpression, ErrUnknownQueryable, ErrInvalidLiteral,
// ErrIncompleteTimeRange or ErrConflictingConstraint. Use errors.Is to match
// a kind and KindName to print it.
package filter
