package catalog

import (
	"fmt"
)

// Options configures how a registry is built from queryable declarations.
type Options struct {
	// Hourly keeps parameters marked hourly (e.g., hour/hour2) in date decompositions.
	// OPTIONAL: defaults to day precision.
	Hourly bool
}

// staticRegistry is an immutable registry built from queryable declarations.
type staticRegistry struct {
	queryables []*Queryable
	byName     map[string]*Queryable
}

// NewStaticRegistry validates the declarations and returns an immutable registry.
// The declarations are copied; later changes to qs do not affect the registry.
//
// Error conditions (all wrap ErrInvalidRegistry):
//   - empty or duplicate queryable names
//   - unknown value kind or encoding, or an encoding that does not fit the kind
//   - missing parameters, codes or values required by the encoding
func NewStaticRegistry(qs []Queryable, opts Options) (Registry, error) {
	r := &staticRegistry{
		queryables: make([]*Queryable, 0, len(qs)),
		byName:     make(map[string]*Queryable, len(qs)),
	}

	for i := range qs {
		q := copyQueryable(qs[i], opts)
		if err := validateQueryable(q); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
		}
		if _, dup := r.byName[q.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate queryable name: %s", ErrInvalidRegistry, q.Name)
		}
		q.position = len(r.queryables)
		r.queryables = append(r.queryables, q)
		r.byName[q.Name] = q
	}

	return r, nil
}

// Lookup implements Registry interface.
func (r *staticRegistry) Lookup(name string) (*Queryable, error) {
	q, ok := r.byName[name]
	if !ok {
		return nil, &QueryableError{Queryable: name, Err: ErrUnknownQueryable}
	}
	return q, nil
}

// Decompose implements Registry interface.
func (r *staticRegistry) Decompose(q *Queryable, cmp Comparison, value any) ([]Param, error) {
	return decompose(q, cmp, value)
}

// Queryables implements Registry interface.
func (r *staticRegistry) Queryables() []*Queryable {
	result := make([]*Queryable, len(r.queryables))
	copy(result, r.queryables)
	return result
}

func copyQueryable(src Queryable, opts Options) *Queryable {
	q := src
	q.Params = make([]ParamRule, 0, len(src.Params))
	for _, p := range src.Params {
		if p.Hourly && !opts.Hourly {
			continue
		}
		q.Params = append(q.Params, p)
	}
	q.Values = append([]string(nil), src.Values...)
	if src.Codes != nil {
		q.Codes = make(map[string]string, len(src.Codes))
		for k, v := range src.Codes {
			q.Codes[k] = v
		}
	}
	if q.Encoding == EncodingFlag && q.Sentinel == "" {
		q.Sentinel = "1"
	}
	return &q
}

func validateQueryable(q *Queryable) error {
	if q.Name == "" {
		return fmt.Errorf("queryable name cannot be empty")
	}

	switch q.Kind {
	case KindString, KindDate, KindCode:
	default:
		return fmt.Errorf("queryable %s has unknown kind %q", q.Name, q.Kind)
	}

	switch q.Encoding {
	case EncodingLiteral:
		if len(q.Params) != 1 {
			return fmt.Errorf("literal queryable %s must declare exactly one parameter, has %d", q.Name, len(q.Params))
		}
	case EncodingFlag:
		if q.Kind != KindCode || len(q.Values) == 0 {
			return fmt.Errorf("flag queryable %s must be a code kind with declared values", q.Name)
		}
	case EncodingCoded:
		if q.Kind != KindCode || len(q.Params) != 1 {
			return fmt.Errorf("coded queryable %s must be a code kind with exactly one parameter", q.Name)
		}
		if len(q.Values) == 0 {
			return fmt.Errorf("coded queryable %s has no values", q.Name)
		}
		for _, v := range q.Values {
			if _, ok := q.Codes[v]; !ok {
				return fmt.Errorf("coded queryable %s has no code for value %s", q.Name, v)
			}
		}
	case EncodingDate:
		if q.Kind != KindDate {
			return fmt.Errorf("date queryable %s must be a date kind", q.Name)
		}
		var start, end int
		for _, p := range q.Params {
			switch p.Bound {
			case BoundStart:
				start++
			case BoundEnd:
				end++
			default:
				return fmt.Errorf("date queryable %s parameter %s has no bound", q.Name, p.Name)
			}
			switch p.Part {
			case PartYear, PartMonth, PartDay, PartHour:
			default:
				return fmt.Errorf("date queryable %s parameter %s has unknown part %q", q.Name, p.Name, p.Part)
			}
		}
		if start == 0 || end == 0 {
			return fmt.Errorf("date queryable %s must declare start and end parameters", q.Name)
		}
	default:
		return fmt.Errorf("queryable %s has unknown encoding %q", q.Name, q.Encoding)
	}

	seen := make(map[string]bool, len(q.Params))
	for _, p := range q.Params {
		if p.Name == "" {
			return fmt.Errorf("queryable %s has a parameter with empty name", q.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("queryable %s declares parameter %s twice", q.Name, p.Name)
		}
		seen[p.Name] = true
	}

	return nil
}
