package filter

import (
	"net/url"
	"strings"
)

// Param is one physical query parameter of a compiled query.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Query is an ordered set of query parameters with unique names.
// The order is part of the value: Encode renders parameters in order so that
// dry-run output and cache keys are reproducible.
type Query struct {
	params []Param
	index  map[string]int
}

// NewQuery builds a query from params in order.
// A repeated name replaces the earlier value in place.
func NewQuery(params ...Param) *Query {
	q := &Query{index: make(map[string]int, len(params))}
	for _, p := range params {
		q.set(p.Name, p.Value)
	}
	return q
}

func (q *Query) set(name, value string) {
	if i, ok := q.index[name]; ok {
		q.params[i].Value = value
		return
	}
	q.index[name] = len(q.params)
	q.params = append(q.params, Param{Name: name, Value: value})
}

// Encode renders the query as name=value pairs joined by '&', in order.
// Names and values are query-escaped. url.Values.Encode is not used
// because it sorts keys.
func (q *Query) Encode() string {
	if q == nil {
		return ""
	}
	var b strings.Builder
	for i, p := range q.params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// String implements fmt.Stringer.
func (q *Query) String() string { return q.Encode() }

// Get returns the value of the named parameter.
func (q *Query) Get(name string) (string, bool) {
	if q == nil {
		return "", false
	}
	i, ok := q.index[name]
	if !ok {
		return "", false
	}
	return q.params[i].Value, true
}

// Len returns the number of parameters.
func (q *Query) Len() int {
	if q == nil {
		return 0
	}
	return len(q.params)
}

// Params returns a copy of the parameters in order.
func (q *Query) Params() []Param {
	if q == nil {
		return nil
	}
	result := make([]Param, len(q.params))
	copy(result, q.params)
	return result
}

// Values returns the parameters as url.Values. Order is lost.
func (q *Query) Values() url.Values {
	v := make(url.Values, q.Len())
	for _, p := range q.Params() {
		v.Set(p.Name, p.Value)
	}
	return v
}
