// Package catalog provides the queryable registry used to translate CQL2 filters into
// AERONET web service query parameters.
//
// A registry describes, for every filterable property (a "queryable"), the physical
// query parameters it maps to, its value domain and the decomposition strategy used to
// turn one logical value into one or more parameters:
//   - literal: the value is sent unchanged under a single parameter (site=Cart_Site)
//   - flag: the value itself names the parameter, set to a fixed sentinel (AOD20=1)
//   - coded: a fixed parameter carries a code looked up from the value (if_no_html=1)
//   - date: a timestamp is split into year/month/day(/hour) parameters, with distinct
//     parameter families for the start and end bounds of a range
//
// Registries are immutable once built and safe for concurrent use. The default AERONET
// registry is declared in an embedded YAML document and parsed once on first use.
package catalog

// Registry is the read-only view of a set of queryables.
// All methods MUST be goroutine-safe.
type Registry interface {
	// Lookup returns the queryable registered under name.
	// Returns an error wrapping ErrUnknownQueryable if no such queryable exists.
	Lookup(name string) (*Queryable, error)

	// Decompose turns a single comparison against q into the ordered parameters
	// it contributes to a request. The function is pure.
	//
	// Errors wrap one of:
	//   - ErrInvalidLiteral: value does not fit the queryable's value kind or domain
	//   - ErrUnsupportedComparison: the comparison cannot be applied to q at all
	Decompose(q *Queryable, cmp Comparison, value any) ([]Param, error)

	// Queryables returns all queryables in declaration order.
	Queryables() []*Queryable
}
