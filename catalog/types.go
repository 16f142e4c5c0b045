package catalog

// ValueKind identifies the value domain of a queryable.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindDate   ValueKind = "date"
	KindCode   ValueKind = "code"
)

// Encoding identifies how a queryable value is decomposed into query parameters.
// The set is closed; each encoding has exactly one decomposition strategy.
type Encoding string

const (
	EncodingLiteral Encoding = "literal"
	EncodingFlag    Encoding = "flag"
	EncodingCoded   Encoding = "coded"
	EncodingDate    Encoding = "date"
)

// Comparison identifies the kind of leaf predicate being decomposed.
type Comparison string

const (
	CompareEqual  Comparison = "eq"
	CompareAfter  Comparison = "t_after"
	CompareBefore Comparison = "t_before"
)

// Bound tags a temporal parameter with the side of the date range it fills.
type Bound string

const (
	BoundNone  Bound = ""
	BoundStart Bound = "start"
	BoundEnd   Bound = "end"
)

// BoundFor returns the bound filled by a temporal comparison.
// Returns BoundNone for non-temporal comparisons.
func BoundFor(cmp Comparison) Bound {
	switch cmp {
	case CompareAfter:
		return BoundStart
	case CompareBefore:
		return BoundEnd
	default:
		return BoundNone
	}
}

// DatePart identifies the calendar component carried by a date parameter.
type DatePart string

const (
	PartYear  DatePart = "year"
	PartMonth DatePart = "month"
	PartDay   DatePart = "day"
	PartHour  DatePart = "hour"
)

// ParamRule maps (part of) a logical value to one physical query parameter.
type ParamRule struct {
	// Name is the physical parameter name (e.g., "site", "year2").
	Name string `yaml:"name" json:"name"`

	// Part selects the calendar component for date encodings.
	Part DatePart `yaml:"part,omitempty" json:"part,omitempty"`

	// Bound selects the range side for date encodings.
	Bound Bound `yaml:"bound,omitempty" json:"bound,omitempty"`

	// Hourly marks parameters only emitted by registries built with hourly precision.
	Hourly bool `yaml:"hourly,omitempty" json:"hourly,omitempty"`
}

// Queryable describes one filterable property.
type Queryable struct {
	// Name is the logical property name used in filters.
	// REQUIRED: MUST be unique within a registry.
	Name string `yaml:"name" json:"name"`

	// Title is a short human readable label.
	Title string `yaml:"title,omitempty" json:"title,omitempty"`

	// Kind is the value domain.
	// REQUIRED.
	Kind ValueKind `yaml:"kind" json:"kind"`

	// Encoding selects the decomposition strategy.
	// REQUIRED.
	Encoding Encoding `yaml:"encoding" json:"encoding"`

	// Params lists the physical parameters in decomposition order.
	// REQUIRED for literal, coded and date encodings; unused by flag.
	Params []ParamRule `yaml:"params,omitempty" json:"params,omitempty"`

	// Values lists the accepted values for code kinds, in output order.
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`

	// Codes maps each accepted value to the parameter value sent for coded encodings.
	Codes map[string]string `yaml:"codes,omitempty" json:"codes,omitempty"`

	// Sentinel is the value sent for flag encodings. Defaults to "1".
	Sentinel string `yaml:"sentinel,omitempty" json:"sentinel,omitempty"`

	position int
}

// Position returns the declaration index of the queryable within its registry.
func (q *Queryable) Position() int { return q.position }

// allows reports whether v belongs to the declared value list.
// Queryables without a value list accept anything.
func (q *Queryable) allows(v string) bool {
	if len(q.Values) == 0 {
		return true
	}
	return q.valueIndex(v) >= 0
}

func (q *Queryable) valueIndex(v string) int {
	for i, allowed := range q.Values {
		if allowed == v {
			return i
		}
	}
	return -1
}

// Param is one physical query parameter produced by decomposition.
type Param struct {
	Name  string
	Value string

	// Bound is set for parameters produced by temporal comparisons.
	Bound Bound

	// Ordinal is the position of the parameter within its queryable's
	// decomposition order; used to order the compiled query deterministically.
	Ordinal int
}
