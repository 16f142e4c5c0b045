package filter

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func TestParseTextEquality(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		property string
		value    any
		kind     LiteralKind
	}{
		{"string", `site = 'Cart_Site'`, "site", "Cart_Site", LiteralString},
		{"escaped quote", `site = 'O''Hare'`, "site", "O'Hare", LiteralString},
		{"quoted identifier", `"data_type" = 'AOD20'`, "data_type", "AOD20", LiteralString},
		{"number", `elevation = 318.5`, "elevation", 318.5, LiteralNumber},
		{"negative number", `lon = -97.5`, "lon", -97.5, LiteralNumber},
		{"boolean", `active = TRUE`, "active", true, LiteralBoolean},
		{"timestamp", `time = TIMESTAMP('2000-06-01T00:00:00Z')`, "time", "2000-06-01T00:00:00Z", LiteralTimestamp},
		{"date", `time = date('2000-06-01')`, "time", "2000-06-01", LiteralDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseText(tt.input)
			if err != nil {
				t.Fatalf("ParseText failed: %v", err)
			}
			comp, ok := expr.(*ComparisonExpression)
			if !ok {
				t.Fatalf("expected ComparisonExpression, got %T", expr)
			}
			if comp.Op() != OpEqual {
				t.Errorf("expected eq, got %s", comp.Op())
			}
			if comp.Property != tt.property {
				t.Errorf("expected property %s, got %s", tt.property, comp.Property)
			}
			lit := comp.Literal()
			if lit.Kind != tt.kind || lit.Value != tt.value {
				t.Errorf("expected %s %v, got %s %v", tt.kind, tt.value, lit.Kind, lit.Value)
			}
		})
	}
}

func TestParseTextOperators(t *testing.T) {
	tests := []struct {
		input    string
		expected Operator
	}{
		{`a <> 1`, OpNotEqual},
		{`a != 1`, OpNotEqual},
		{`a < 1`, OpLessThan},
		{`a <= 1`, OpLessOrEqual},
		{`a > 1`, OpGreaterThan},
		{`a >= 1`, OpGreaterOrEqual},
		{`a LIKE 'Cart%'`, OpLike},
		{`a in ('x', 'y')`, OpIn},
		{`a BETWEEN 1 AND 2`, OpBetween},
		{`a IS NULL`, OpIsNull},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := ParseText(tt.input)
			if err != nil {
				t.Fatalf("ParseText failed: %v", err)
			}
			if expr.Op() != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, expr.Op())
			}
		})
	}
}

func TestParseTextNegatedPredicates(t *testing.T) {
	for _, input := range []string{
		`NOT site = 'A'`,
		`site NOT LIKE 'A%'`,
		`site NOT IN ('A', 'B')`,
		`elevation NOT BETWEEN 1 AND 2`,
		`site IS NOT NULL`,
	} {
		t.Run(input, func(t *testing.T) {
			expr, err := ParseText(input)
			if err != nil {
				t.Fatalf("ParseText failed: %v", err)
			}
			if _, ok := expr.(*NotExpression); !ok {
				t.Errorf("expected NotExpression, got %T", expr)
			}
		})
	}
}

func TestParseTextPrecedence(t *testing.T) {
	// a = 1 OR b = 2 AND NOT c = 3  ==  a = 1 OR (b = 2 AND (NOT c = 3))
	expr, err := ParseText(`a = 1 OR b = 2 AND NOT c = 3`)
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}

	or, ok := expr.(*ConjunctionExpression)
	if !ok || or.Op() != OpOr {
		t.Fatalf("expected or at root, got %T %v", expr, expr.Op())
	}
	if len(or.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(or.Children))
	}
	and, ok := or.Children[1].(*ConjunctionExpression)
	if !ok || and.Op() != OpAnd {
		t.Fatalf("expected and as second child, got %T", or.Children[1])
	}
	if _, ok := and.Children[1].(*NotExpression); !ok {
		t.Errorf("expected not inside and, got %T", and.Children[1])
	}
}

func TestParseTextParentheses(t *testing.T) {
	expr, err := ParseText(`(a = 1 OR b = 2) AND c = 3`)
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	and, ok := expr.(*ConjunctionExpression)
	if !ok || and.Op() != OpAnd {
		t.Fatalf("expected and at root, got %T", expr)
	}
	if nested, ok := and.Children[0].(*ConjunctionExpression); !ok || nested.Op() != OpOr {
		t.Errorf("expected or as first child, got %T", and.Children[0])
	}
}

func TestParseTextChainFlattens(t *testing.T) {
	expr, err := ParseText(`a = 1 AND b = 2 and c = 3 AND d = 4`)
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	and := expr.(*ConjunctionExpression)
	if len(and.Children) != 4 {
		t.Errorf("expected 4 children, got %d", len(and.Children))
	}
}

func TestParseTextTemporalFunctions(t *testing.T) {
	expr, err := ParseText(`T_AFTER(time, TIMESTAMP('2000-06-01T00:00:00Z')) AND t_before(time, TIMESTAMP('2000-06-14T23:59:59Z'))`)
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	and := expr.(*ConjunctionExpression)

	after, ok := and.Children[0].(*TemporalExpression)
	if !ok {
		t.Fatalf("expected TemporalExpression, got %T", and.Children[0])
	}
	if after.Op() != OpAfter || after.Property != "time" {
		t.Errorf("unexpected t_after %+v", after)
	}
	before := and.Children[1].(*TemporalExpression)
	if before.Op() != OpBefore || before.Literal.Value != "2000-06-14T23:59:59Z" {
		t.Errorf("unexpected t_before %+v", before)
	}

	expr, err = ParseText(`T_DURING(time, INTERVAL('2000-06-01', '..'))`)
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	during := expr.(*TemporalExpression)
	if during.Op() != OpTDuring || during.Literal.Kind != LiteralInterval {
		t.Errorf("unexpected t_during %+v", during)
	}
}

func TestParseTextTemporalLiteralFirst(t *testing.T) {
	expr, err := ParseText(`T_AFTER(TIMESTAMP('2000-06-14T00:00:00Z'), time) AND T_BEFORE(TIMESTAMP('2000-06-01T00:00:00Z'), time)`)
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	and := expr.(*ConjunctionExpression)

	first := and.Children[0].(*TemporalExpression)
	if first.Op() != OpBefore || first.Property != "time" || first.Literal.Value != "2000-06-14T00:00:00Z" {
		t.Errorf("expected t_before(time, 2000-06-14), got %s(%s, %v)", first.Op(), first.Property, first.Literal.Value)
	}
	second := and.Children[1].(*TemporalExpression)
	if second.Op() != OpAfter || second.Property != "time" || second.Literal.Value != "2000-06-01T00:00:00Z" {
		t.Errorf("expected t_after(time, 2000-06-01), got %s(%s, %v)", second.Op(), second.Property, second.Literal.Value)
	}
}

func TestParseTextGeometry(t *testing.T) {
	expr, err := ParseText(`S_INTERSECTS(geometry, POINT(-97.5 36.6))`)
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	if u, ok := expr.(*UnsupportedExpression); !ok || u.Op() != "s_intersects" {
		t.Fatalf("expected unsupported s_intersects, got %T", expr)
	}

	expr, err = ParseText(`geometry = POINT(1 2)`)
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	lit := expr.(*ComparisonExpression).Literal()
	if p, ok := lit.Value.(orb.Point); !ok || p != (orb.Point{1, 2}) {
		t.Errorf("expected orb.Point{1, 2}, got %#v", lit.Value)
	}

	expr, err = ParseText(`geometry = BBOX(-100, 30, -90, 40)`)
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	lit = expr.(*ComparisonExpression).Literal()
	if _, ok := lit.Value.(orb.Bound); !ok {
		t.Errorf("expected orb.Bound, got %T", lit.Value)
	}
}

func TestParseTextFunctionOperand(t *testing.T) {
	expr, err := ParseText(`CASEI(site) = casei('cart_site')`)
	if err != nil {
		t.Fatalf("ParseText failed: %v", err)
	}
	u, ok := expr.(*UnsupportedExpression)
	if !ok {
		t.Fatalf("expected UnsupportedExpression, got %T", expr)
	}
	if u.Op() != OpEqual {
		t.Errorf("expected eq, got %s", u.Op())
	}
}

func TestParseTextErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		pos   int
	}{
		{"empty", ``, 0},
		{"unterminated string", `site = 'Cart`, 7},
		{"unterminated identifier", `"site = 'x'`, 0},
		{"missing literal", `site =`, 6},
		{"missing operator", `site 'x'`, 5},
		{"trailing tokens", `site = 'x' 'y'`, 11},
		{"unbalanced parenthesis", `(site = 'x'`, 11},
		{"bad character", `site = 'x' ; drop`, 11},
		{"keyword as property", `AND = 'x'`, 0},
		{"bad between", `a BETWEEN 1 OR 2`, 12},
		{"bad bbox", `geometry = BBOX(1, 2, 3)`, 15},
		{"timestamp without string", `time = TIMESTAMP(2000)`, 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseText(tt.input)
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("expected SyntaxError, got %v", err)
			}
			if se.Pos != tt.pos {
				t.Errorf("expected error at %d, got %d (%s)", tt.pos, se.Pos, se.Msg)
			}
		})
	}
}
