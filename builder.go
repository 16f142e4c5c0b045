package aeronet

import (
	"fmt"

	"github.com/terradue/aeronet-go/catalog"
)

// RegistryBuilder provides a fluent API for declaring custom queryable registries.
// Use NewRegistryBuilder() to create, then chain method calls.
// Not thread-safe - use only during initialization.
//
// Example:
//
//	reg, err := aeronet.NewRegistryBuilder().
//	    Queryable("site").Title("AERONET site name").Literal("site").
//	    Queryable("data_type").Flag("AOD15", "AOD20").
//	    Queryable("time").Date(aeronet.DayParams("year", "month", "day"), aeronet.DayParams("year2", "month2", "day2")).
//	    Build()
type RegistryBuilder struct {
	queryables []*QueryableBuilder
	hourly     bool
	built      bool
}

// NewRegistryBuilder creates a new registry builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{}
}

// Hourly keeps hour parameters of date queryables in decompositions.
// Returns self for method chaining.
func (rb *RegistryBuilder) Hourly() *RegistryBuilder {
	rb.hourly = true
	return rb
}

// Queryable starts a new queryable declaration.
// Returns QueryableBuilder for configuring the queryable.
// Declaration order is the order parameters appear in compiled queries.
func (rb *RegistryBuilder) Queryable(name string) *QueryableBuilder {
	qb := &QueryableBuilder{
		q:        catalog.Queryable{Name: name},
		registry: rb,
	}
	rb.queryables = append(rb.queryables, qb)
	return qb
}

// Build validates the declarations and returns an immutable registry.
// Can only be called once. Further calls return error.
// Returns error wrapping catalog.ErrInvalidRegistry if a declaration is invalid
// (e.g., duplicate names, flag queryable without values).
func (rb *RegistryBuilder) Build() (catalog.Registry, error) {
	if rb.built {
		return nil, fmt.Errorf("registry already built")
	}

	qs := make([]catalog.Queryable, 0, len(rb.queryables))
	for _, qb := range rb.queryables {
		if qb.err != nil {
			return nil, fmt.Errorf("%w: %v", catalog.ErrInvalidRegistry, qb.err)
		}
		qs = append(qs, qb.q)
	}

	reg, err := catalog.NewStaticRegistry(qs, catalog.Options{Hourly: rb.hourly})
	if err != nil {
		return nil, err
	}
	rb.built = true
	return reg, nil
}

// QueryableBuilder configures one queryable within a registry.
type QueryableBuilder struct {
	q        catalog.Queryable
	err      error
	registry *RegistryBuilder
}

// Title sets the human readable label.
// Returns self for method chaining.
func (qb *QueryableBuilder) Title(title string) *QueryableBuilder {
	qb.q.Title = title
	return qb
}

// Literal sends string values unchanged under param.
//
// Example:
//
//	Queryable("site").Literal("site") // site = 'Cart_Site' -> site=Cart_Site
func (qb *QueryableBuilder) Literal(param string) *QueryableBuilder {
	qb.q.Kind = catalog.KindString
	qb.q.Encoding = catalog.EncodingLiteral
	qb.q.Params = []catalog.ParamRule{{Name: param}}
	return qb
}

// Flag accepts the listed values, each sent as a parameter of its own name
// set to the sentinel "1".
//
// Example:
//
//	Queryable("data_type").Flag("AOD15", "AOD20") // data_type = 'AOD20' -> AOD20=1
func (qb *QueryableBuilder) Flag(values ...string) *QueryableBuilder {
	qb.q.Kind = catalog.KindCode
	qb.q.Encoding = catalog.EncodingFlag
	qb.q.Values = append(qb.q.Values, values...)
	return qb
}

// Sentinel overrides the value sent by flag queryables.
func (qb *QueryableBuilder) Sentinel(value string) *QueryableBuilder {
	qb.q.Sentinel = value
	return qb
}

// Coded sends the code of each accepted value under param.
// Declare the accepted values with Code.
//
// Example:
//
//	Queryable("format").Coded("if_no_html").Code("csv", "1").Code("html", "0")
func (qb *QueryableBuilder) Coded(param string) *QueryableBuilder {
	qb.q.Kind = catalog.KindCode
	qb.q.Encoding = catalog.EncodingCoded
	qb.q.Params = []catalog.ParamRule{{Name: param}}
	return qb
}

// Code declares an accepted value of a coded queryable and the code sent for it.
// Values keep declaration order.
func (qb *QueryableBuilder) Code(value, code string) *QueryableBuilder {
	if qb.q.Codes == nil {
		qb.q.Codes = make(map[string]string)
	}
	if _, dup := qb.q.Codes[value]; dup {
		qb.err = fmt.Errorf("queryable %s declares value %s twice", qb.q.Name, value)
		return qb
	}
	qb.q.Values = append(qb.q.Values, value)
	qb.q.Codes[value] = code
	return qb
}

// DateParams names the parameters carrying each calendar component of one
// side of a date range. Empty names are not emitted.
type DateParams struct {
	Year  string
	Month string
	Day   string
	Hour  string
}

// DayParams returns day precision parameter names.
func DayParams(year, month, day string) DateParams {
	return DateParams{Year: year, Month: month, Day: day}
}

// Date decomposes t_after/t_before timestamps into the start and end parameters.
// Hour parameters are only emitted when the registry is built Hourly.
func (qb *QueryableBuilder) Date(start, end DateParams) *QueryableBuilder {
	qb.q.Kind = catalog.KindDate
	qb.q.Encoding = catalog.EncodingDate
	qb.q.Params = append(dateRules(start, catalog.BoundStart), dateRules(end, catalog.BoundEnd)...)
	return qb
}

func dateRules(p DateParams, bound catalog.Bound) []catalog.ParamRule {
	var rules []catalog.ParamRule
	for _, part := range []struct {
		name string
		part catalog.DatePart
	}{
		{p.Year, catalog.PartYear},
		{p.Month, catalog.PartMonth},
		{p.Day, catalog.PartDay},
		{p.Hour, catalog.PartHour},
	} {
		if part.name == "" {
			continue
		}
		rules = append(rules, catalog.ParamRule{
			Name:   part.name,
			Part:   part.part,
			Bound:  bound,
			Hourly: part.part == catalog.PartHour,
		})
	}
	return rules
}

// Queryable starts the next queryable (returns to RegistryBuilder).
// Allows chaining: Queryable("a").Literal("a").Queryable("b").Flag(...)
func (qb *QueryableBuilder) Queryable(name string) *QueryableBuilder {
	return qb.registry.Queryable(name)
}

// Build finalizes the registry (returns to RegistryBuilder).
// Same as calling registryBuilder.Build().
func (qb *QueryableBuilder) Build() (catalog.Registry, error) {
	return qb.registry.Build()
}
