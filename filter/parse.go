package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Filter languages accepted by ParseLang.
const (
	LangCQL2JSON = "cql2-json"
	LangCQL2Text = "cql2-text"
)

// ErrUnknownLanguage indicates a filter-lang value other than cql2-json or cql2-text.
var ErrUnknownLanguage = errors.New("filter: unknown filter language")

// ParseLang parses input in the named filter language.
// An empty lang selects CQL2-JSON.
func ParseLang(lang, input string) (Expression, error) {
	switch strings.ToLower(lang) {
	case "", LangCQL2JSON:
		return Parse([]byte(input))
	case LangCQL2Text:
		return ParseText(input)
	default:
		return nil, fmt.Errorf("%w: %q (expected %s or %s)", ErrUnknownLanguage, lang, LangCQL2JSON, LangCQL2Text)
	}
}

// Parse parses a CQL2-JSON filter document into an expression tree.
//
// Error conditions (all *SyntaxError):
//   - Invalid JSON syntax
//   - Root is not an operation object
//   - Operations with the wrong number or kind of arguments
//
// Operations no compiler can translate (spatial predicates, functions) parse
// successfully as UnsupportedExpression.
func Parse(data []byte) (Expression, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, &SyntaxError{Msg: "empty filter"}
	}

	if !json.Valid(data) {
		var v any
		err := json.Unmarshal(data, &v)
		pos := 0
		var se *json.SyntaxError
		if errors.As(err, &se) {
			pos = int(se.Offset)
		}
		return nil, &SyntaxError{Pos: pos, Msg: "invalid JSON", Err: err}
	}

	return parseExpression(data)
}

// rawOperation is used for two-phase parsing to determine the operation.
type rawOperation struct {
	Op   *string           `json:"op"`
	Args []json.RawMessage `json:"args"`
}

// parseExpression parses a single operation object from raw JSON.
func parseExpression(data json.RawMessage) (Expression, error) {
	var raw rawOperation
	if jsonKind(data) != '{' || json.Unmarshal(data, &raw) != nil || raw.Op == nil {
		return nil, &SyntaxError{Msg: fmt.Sprintf("expected an operation object, got %s", abbreviate(data))}
	}

	op, known := lookupOperator(*raw.Op)
	switch {
	case !known:
		// Validate operands so malformed documents still fail as syntax errors.
		for _, arg := range raw.Args {
			if _, err := parseOperand(arg); err != nil {
				return nil, err
			}
		}
		return &UnsupportedExpression{
			BaseExpression: BaseExpression{Operator: op},
			Reason:         "operation is not a comparison, temporal or logical predicate",
		}, nil
	case op == OpAnd || op == OpOr:
		return parseConjunction(op, raw.Args)
	case op == OpNot:
		return parseNot(raw.Args)
	case op.IsTemporal():
		return parseTemporal(op, raw.Args)
	default:
		return parseComparison(op, raw.Args)
	}
}

func parseConjunction(op Operator, args []json.RawMessage) (Expression, error) {
	if len(args) == 0 {
		return nil, &SyntaxError{Msg: fmt.Sprintf("%s requires at least one argument", op)}
	}

	children := make([]Expression, 0, len(args))
	for i, arg := range args {
		expr, err := parseExpression(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid child %d of %s: %w", i, op, err)
		}
		children = append(children, expr)
	}

	return &ConjunctionExpression{
		BaseExpression: BaseExpression{Operator: op},
		Children:       children,
	}, nil
}

func parseNot(args []json.RawMessage) (Expression, error) {
	if len(args) != 1 {
		return nil, &SyntaxError{Msg: fmt.Sprintf("not requires exactly one argument, got %d", len(args))}
	}
	child, err := parseExpression(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid operand of not: %w", err)
	}
	return &NotExpression{
		BaseExpression: BaseExpression{Operator: OpNot},
		Child:          child,
	}, nil
}

func parseTemporal(op Operator, args []json.RawMessage) (Expression, error) {
	if len(args) != 2 {
		return nil, &SyntaxError{Msg: fmt.Sprintf("%s requires exactly two arguments, got %d", op, len(args))}
	}

	operands, err := parseOperands(args)
	if err != nil {
		return nil, err
	}
	return newTemporal(op, operands[0], operands[1]), nil
}

// converseTemporal maps a temporal predicate to the one that holds with its
// operands swapped. Symmetric predicates map to themselves.
var converseTemporal = map[Operator]Operator{
	OpAfter: OpBefore, OpBefore: OpAfter,
	OpTContains: OpTDuring, OpTDuring: OpTContains,
	OpTFinishedBy: OpTFinishes, OpTFinishes: OpTFinishedBy,
	OpTMeets: OpTMetBy, OpTMetBy: OpTMeets,
	OpTOverlappedBy: OpTOverlaps, OpTOverlaps: OpTOverlappedBy,
	OpTStartedBy: OpTStarts, OpTStarts: OpTStartedBy,
	OpTEquals: OpTEquals, OpTDisjoint: OpTDisjoint, OpTIntersects: OpTIntersects,
	OpAnyInteracts: OpAnyInteracts,
}

// newTemporal builds a property-first temporal predicate from a and b.
// A literal-first pair is rewritten with the converse operator, so
// T_AFTER(TIMESTAMP(t), time) becomes T_BEFORE(time, TIMESTAMP(t)).
func newTemporal(op Operator, a, b operand) Expression {
	prop, lit, reason := propertyAndLiteral(a, b)
	if reason != "" {
		return &UnsupportedExpression{BaseExpression: BaseExpression{Operator: op}, Reason: reason}
	}
	if !a.isProperty {
		converse, ok := converseTemporal[op]
		if !ok {
			return &UnsupportedExpression{
				BaseExpression: BaseExpression{Operator: op},
				Reason:         "left operand must be a property",
			}
		}
		op = converse
	}
	return &TemporalExpression{
		BaseExpression: BaseExpression{Operator: op},
		Property:       prop,
		Literal:        lit,
	}
}

func parseComparison(op Operator, args []json.RawMessage) (Expression, error) {
	want := 2
	switch op {
	case OpIsNull:
		want = 1
	case OpBetween:
		want = 3
	}
	if len(args) != want {
		return nil, &SyntaxError{Msg: fmt.Sprintf("%s requires exactly %d arguments, got %d", op, want, len(args))}
	}

	// in takes its members as a JSON array
	if op == OpIn {
		if jsonKind(args[1]) != '[' {
			return nil, &SyntaxError{Msg: "in requires a list as second argument"}
		}
		var members []json.RawMessage
		if err := json.Unmarshal(args[1], &members); err != nil {
			return nil, &SyntaxError{Msg: "invalid in list", Err: err}
		}
		args = append(args[:1:1], members...)
	}

	operands, err := parseOperands(args)
	if err != nil {
		return nil, err
	}
	if !operands[0].isProperty {
		return &UnsupportedExpression{
			BaseExpression: BaseExpression{Operator: op},
			Reason:         "left operand must be a property",
		}, nil
	}

	values := make([]Literal, 0, len(operands)-1)
	for _, o := range operands[1:] {
		if !o.isLiteral() {
			return &UnsupportedExpression{
				BaseExpression: BaseExpression{Operator: op},
				Reason:         "right operands must be literals",
			}, nil
		}
		values = append(values, o.literal)
	}

	return &ComparisonExpression{
		BaseExpression: BaseExpression{Operator: op},
		Property:       operands[0].property,
		Values:         values,
	}, nil
}

// operand is a parsed argument: a property reference, a literal or a nested operation.
type operand struct {
	property   string
	isProperty bool
	literal    Literal
	expr       Expression
}

func (o operand) isLiteral() bool { return !o.isProperty && o.expr == nil }

// propertyAndLiteral checks a (property, literal) pair, accepting either order.
// Returns a non-empty reason when the pair has another shape.
func propertyAndLiteral(a, b operand) (string, Literal, string) {
	switch {
	case a.isProperty && b.isLiteral():
		return a.property, b.literal, ""
	case b.isProperty && a.isLiteral():
		return b.property, a.literal, ""
	default:
		return "", Literal{}, "operands must be a property and a literal"
	}
}

func parseOperands(args []json.RawMessage) ([]operand, error) {
	operands := make([]operand, 0, len(args))
	for i, arg := range args {
		o, err := parseOperand(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid argument %d: %w", i, err)
		}
		operands = append(operands, o)
	}
	return operands, nil
}

// parseOperand parses a property reference, literal or nested operation.
func parseOperand(data json.RawMessage) (operand, error) {
	switch jsonKind(data) {
	case '{':
		return parseObjectOperand(data)
	case '[':
		// Bare arrays only appear as in lists or bbox coordinates.
		return operand{}, &SyntaxError{Msg: "unexpected array operand"}
	default:
		lit, err := parseScalar(data)
		if err != nil {
			return operand{}, err
		}
		return operand{literal: lit}, nil
	}
}

// rawObject sniffs the kind of an object operand.
type rawObject struct {
	Op          *string           `json:"op"`
	Property    *string           `json:"property"`
	Timestamp   *string           `json:"timestamp"`
	Date        *string           `json:"date"`
	Interval    []json.RawMessage `json:"interval"`
	Bbox        []float64         `json:"bbox"`
	Type        string            `json:"type"`
	Coordinates json.RawMessage   `json:"coordinates"`
	Geometries  json.RawMessage   `json:"geometries"`
}

func parseObjectOperand(data json.RawMessage) (operand, error) {
	var raw rawObject
	if err := json.Unmarshal(data, &raw); err != nil {
		return operand{}, &SyntaxError{Msg: fmt.Sprintf("invalid operand %s", abbreviate(data)), Err: err}
	}

	switch {
	case raw.Op != nil:
		expr, err := parseExpression(data)
		if err != nil {
			return operand{}, err
		}
		return operand{expr: expr}, nil
	case raw.Property != nil:
		if *raw.Property == "" {
			return operand{}, &SyntaxError{Msg: "property name cannot be empty"}
		}
		return operand{property: *raw.Property, isProperty: true}, nil
	case raw.Timestamp != nil:
		return operand{literal: Literal{Kind: LiteralTimestamp, Value: *raw.Timestamp}}, nil
	case raw.Date != nil:
		return operand{literal: Literal{Kind: LiteralDate, Value: *raw.Date}}, nil
	case raw.Interval != nil:
		lit, err := parseInterval(raw.Interval)
		if err != nil {
			return operand{}, err
		}
		return operand{literal: lit}, nil
	case raw.Type != "" && (raw.Coordinates != nil || raw.Geometries != nil):
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return operand{}, &SyntaxError{Msg: "invalid GeoJSON geometry", Err: err}
		}
		return operand{literal: Literal{Kind: LiteralGeometry, Value: g.Geometry()}}, nil
	case raw.Bbox != nil:
		b, err := boundFromBbox(raw.Bbox)
		if err != nil {
			return operand{}, err
		}
		return operand{literal: Literal{Kind: LiteralGeometry, Value: b}}, nil
	default:
		return operand{}, &SyntaxError{Msg: fmt.Sprintf("unrecognized operand %s", abbreviate(data))}
	}
}

func parseInterval(bounds []json.RawMessage) (Literal, error) {
	if len(bounds) != 2 {
		return Literal{}, &SyntaxError{Msg: fmt.Sprintf("interval requires two bounds, got %d", len(bounds))}
	}

	lits := make([]Literal, 0, 2)
	for _, b := range bounds {
		o, err := parseOperand(b)
		if err != nil {
			return Literal{}, err
		}
		lit, ok := temporalBound(o)
		if !ok {
			return Literal{}, &SyntaxError{Msg: "interval bounds must be timestamps, dates or \"..\""}
		}
		lits = append(lits, lit)
	}
	return Literal{Kind: LiteralInterval, Value: lits}, nil
}

// temporalBound accepts timestamp/date literals and plain strings (including "..").
func temporalBound(o operand) (Literal, bool) {
	if !o.isLiteral() {
		return Literal{}, false
	}
	switch o.literal.Kind {
	case LiteralTimestamp, LiteralDate, LiteralString:
		return o.literal, true
	}
	return Literal{}, false
}

func boundFromBbox(coords []float64) (orb.Bound, error) {
	switch len(coords) {
	case 4:
		return orb.Bound{Min: orb.Point{coords[0], coords[1]}, Max: orb.Point{coords[2], coords[3]}}, nil
	case 6:
		// 3D box: drop elevation
		return orb.Bound{Min: orb.Point{coords[0], coords[1]}, Max: orb.Point{coords[3], coords[4]}}, nil
	default:
		return orb.Bound{}, &SyntaxError{Msg: fmt.Sprintf("bbox requires 4 or 6 numbers, got %d", len(coords))}
	}
}

func parseScalar(data json.RawMessage) (Literal, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Literal{}, &SyntaxError{Msg: "invalid literal", Err: err}
	}
	switch val := v.(type) {
	case string:
		return Literal{Kind: LiteralString, Value: val}, nil
	case float64:
		return Literal{Kind: LiteralNumber, Value: val}, nil
	case bool:
		return Literal{Kind: LiteralBoolean, Value: val}, nil
	case nil:
		return Literal{Kind: LiteralNull}, nil
	default:
		return Literal{}, &SyntaxError{Msg: fmt.Sprintf("unexpected literal %s", abbreviate(data))}
	}
}

// jsonKind returns the first significant byte of a JSON value.
func jsonKind(data []byte) byte {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0
	}
	return data[0]
}

func abbreviate(data []byte) string {
	s := string(bytes.TrimSpace(data))
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}
