package filter

import (
	"fmt"
	"strings"
)

// Operator identifies a CQL2 operation by its canonical lower-case name.
type Operator string

const (
	// Logical operators
	OpAnd Operator = "and"
	OpOr  Operator = "or"
	OpNot Operator = "not"

	// Comparison operators
	OpEqual          Operator = "eq"
	OpNotEqual       Operator = "ne"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "le"
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "ge"
	OpLike           Operator = "like"
	OpIn             Operator = "in"
	OpBetween        Operator = "between"
	OpIsNull         Operator = "isNull"

	// Temporal operators
	OpAfter         Operator = "t_after"
	OpBefore        Operator = "t_before"
	OpTContains     Operator = "t_contains"
	OpTDisjoint     Operator = "t_disjoint"
	OpTDuring       Operator = "t_during"
	OpTEquals       Operator = "t_equals"
	OpTFinishedBy   Operator = "t_finishedBy"
	OpTFinishes     Operator = "t_finishes"
	OpTIntersects   Operator = "t_intersects"
	OpTMeets        Operator = "t_meets"
	OpTMetBy        Operator = "t_metBy"
	OpTOverlappedBy Operator = "t_overlappedBy"
	OpTOverlaps     Operator = "t_overlaps"
	OpTStartedBy    Operator = "t_startedBy"
	OpTStarts       Operator = "t_starts"
	OpAnyInteracts  Operator = "anyinteracts"
)

// operatorAliases maps every accepted spelling (lower-cased) to its canonical operator.
var operatorAliases = map[string]Operator{
	"and": OpAnd, "or": OpOr, "not": OpNot,

	"=": OpEqual, "eq": OpEqual,
	"<>": OpNotEqual, "!=": OpNotEqual, "ne": OpNotEqual, "neq": OpNotEqual,
	"<": OpLessThan, "lt": OpLessThan,
	"<=": OpLessOrEqual, "le": OpLessOrEqual, "lte": OpLessOrEqual,
	">": OpGreaterThan, "gt": OpGreaterThan,
	">=": OpGreaterOrEqual, "ge": OpGreaterOrEqual, "gte": OpGreaterOrEqual,
	"like": OpLike, "in": OpIn, "between": OpBetween, "isnull": OpIsNull,

	"t_after": OpAfter, "t_before": OpBefore, "t_contains": OpTContains,
	"t_disjoint": OpTDisjoint, "t_during": OpTDuring, "t_equals": OpTEquals,
	"t_finishedby": OpTFinishedBy, "t_finishes": OpTFinishes, "t_intersects": OpTIntersects,
	"t_meets": OpTMeets, "t_metby": OpTMetBy, "t_overlappedby": OpTOverlappedBy,
	"t_overlaps": OpTOverlaps, "t_startedby": OpTStartedBy, "t_starts": OpTStarts,
	"anyinteracts": OpAnyInteracts,
}

// lookupOperator resolves an operator spelling case-insensitively.
// Unknown names are returned verbatim (lower-cased) with ok=false.
func lookupOperator(name string) (Operator, bool) {
	lower := strings.ToLower(name)
	op, ok := operatorAliases[lower]
	if !ok {
		return Operator(lower), false
	}
	return op, true
}

// IsTemporal reports whether op is one of the CQL2 temporal predicates.
func (op Operator) IsTemporal() bool {
	return strings.HasPrefix(string(op), "t_") || op == OpAnyInteracts
}

func (op Operator) isComparison() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual,
		OpLike, OpIn, OpBetween, OpIsNull:
		return true
	}
	return false
}

// Expression is the interface implemented by all filter expression types.
// Use type assertions or type switches to access specific expression data.
type Expression interface {
	// Op returns the canonical operator of the node (e.g., eq, and, t_after).
	Op() Operator

	// expressionMarker is a marker method to prevent external implementation.
	expressionMarker()
}

// BaseExpression contains common fields for all expression types.
type BaseExpression struct {
	Operator Operator
}

// Op returns the expression operator.
func (b *BaseExpression) Op() Operator { return b.Operator }

func (b *BaseExpression) expressionMarker() {}

// ComparisonExpression compares a property with literal values.
// Values holds one literal for binary operators, two for between,
// the list members for in and none for isNull.
type ComparisonExpression struct {
	BaseExpression
	Property string
	Values   []Literal
}

// Literal returns the single right-hand literal of a binary comparison.
func (c *ComparisonExpression) Literal() Literal {
	if len(c.Values) == 0 {
		return Literal{Kind: LiteralNull}
	}
	return c.Values[0]
}

// TemporalExpression applies a temporal predicate to a property and an instant or interval.
type TemporalExpression struct {
	BaseExpression
	Property string
	Literal  Literal
}

// ConjunctionExpression represents AND/OR with multiple children.
type ConjunctionExpression struct {
	BaseExpression
	Children []Expression
}

// NotExpression negates its child.
type NotExpression struct {
	BaseExpression
	Child Expression
}

// UnsupportedExpression represents an operation the grammar accepts but no
// compiler can translate (spatial predicates, functions, non-property operands).
// Parsing succeeds so the compiler can report the operator by name.
type UnsupportedExpression struct {
	BaseExpression
	Reason string
}

// LiteralKind identifies the type of a literal value.
type LiteralKind string

const (
	LiteralString    LiteralKind = "string"
	LiteralNumber    LiteralKind = "number"
	LiteralBoolean   LiteralKind = "boolean"
	LiteralTimestamp LiteralKind = "timestamp"
	LiteralDate      LiteralKind = "date"
	LiteralInterval  LiteralKind = "interval"
	LiteralGeometry  LiteralKind = "geometry"
	LiteralNull      LiteralKind = "null"
)

// Literal is a typed constant operand.
//
// Value holds:
//   - string for String, Timestamp and Date (temporal text is kept verbatim)
//   - float64 for Number
//   - bool for Boolean
//   - []Literal with two bounds for Interval (".." marks an open bound)
//   - orb.Geometry for Geometry
//   - nil for Null
type Literal struct {
	Kind  LiteralKind
	Value any
}

// String returns the literal in a form suitable for error messages.
func (l Literal) String() string {
	switch l.Kind {
	case LiteralString:
		return fmt.Sprintf("%q", l.Value)
	case LiteralTimestamp:
		return fmt.Sprintf("TIMESTAMP(%q)", l.Value)
	case LiteralDate:
		return fmt.Sprintf("DATE(%q)", l.Value)
	case LiteralInterval:
		bounds, _ := l.Value.([]Literal)
		parts := make([]string, len(bounds))
		for i, b := range bounds {
			parts[i] = b.String()
		}
		return "INTERVAL(" + strings.Join(parts, ", ") + ")"
	case LiteralGeometry:
		return fmt.Sprintf("GEOMETRY(%T)", l.Value)
	case LiteralNull:
		return "NULL"
	default:
		return fmt.Sprintf("%v", l.Value)
	}
}

// Text returns the textual value of String, Timestamp and Date literals.
func (l Literal) Text() (string, bool) {
	switch l.Kind {
	case LiteralString, LiteralTimestamp, LiteralDate:
		s, ok := l.Value.(string)
		return s, ok
	}
	return "", false
}
