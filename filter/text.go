package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"
)

// ParseText parses a CQL2-text filter into an expression tree.
//
// Supported grammar (keywords are case-insensitive):
//
//	expr      = term { OR term }
//	term      = factor { AND factor }
//	factor    = NOT factor | "(" expr ")" | predicate
//	predicate = prop ( cmpop literal
//	                 | [NOT] LIKE literal
//	                 | [NOT] IN "(" literal { "," literal } ")"
//	                 | [NOT] BETWEEN literal AND literal
//	                 | IS [NOT] NULL )
//	          | name "(" [ arg { "," arg } ] ")"
//	literal   = 'string' | number | TRUE | FALSE | NULL
//	          | TIMESTAMP('..') | DATE('..') | INTERVAL(a, b)
//	          | BBOX(x1, y1, x2, y2) | WKT geometry
//
// Function predicates such as T_AFTER(time, TIMESTAMP('2000-06-01T00:00:00Z'))
// produce the same tree as their CQL2-JSON form.
func ParseText(input string) (Expression, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &SyntaxError{Msg: "empty filter"}
	}

	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}

	p := &textParser{input: input, tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s", tok)
	}
	return expr, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent
	tokString
	tokNumber
	tokLParen
	tokRParen
	tokComma
	tokOperator
)

type token struct {
	kind tokenKind
	text string
	pos  int
	end  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokString:
		return fmt.Sprintf("string '%s'", t.text)
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// keyword reports whether the token is the given keyword (case-insensitive).
func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i, end: i + 1})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i, end: i + 1})
			i++
		case c == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i, end: i + 1})
			i++
		case c == '=':
			tokens = append(tokens, token{kind: tokOperator, text: "=", pos: i, end: i + 1})
			i++
		case c == '<' || c == '>' || c == '!':
			start := i
			i++
			if i < len(input) && (input[i] == '=' || (c == '<' && input[i] == '>')) {
				i++
			}
			text := input[start:i]
			if text == "!" {
				return nil, &SyntaxError{Pos: start, Msg: "unexpected character '!'"}
			}
			tokens = append(tokens, token{kind: tokOperator, text: text, pos: start, end: i})
		case c == '\'':
			start := i
			var b strings.Builder
			i++
			closed := false
			for i < len(input) {
				if input[i] == '\'' {
					// '' is an escaped quote
					if i+1 < len(input) && input[i+1] == '\'' {
						b.WriteByte('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				b.WriteByte(input[i])
				i++
			}
			if !closed {
				return nil, &SyntaxError{Pos: start, Msg: "unterminated string literal"}
			}
			tokens = append(tokens, token{kind: tokString, text: b.String(), pos: start, end: i})
		case c == '"':
			start := i
			end := strings.IndexByte(input[i+1:], '"')
			if end < 0 {
				return nil, &SyntaxError{Pos: start, Msg: "unterminated quoted identifier"}
			}
			i += end + 2
			tokens = append(tokens, token{kind: tokQuotedIdent, text: input[start+1 : i-1], pos: start, end: i})
		case isDigit(c) || ((c == '-' || c == '+' || c == '.') && i+1 < len(input) && (isDigit(input[i+1]) || input[i+1] == '.')):
			start := i
			i++
			for i < len(input) && (isDigit(input[i]) || input[i] == '.' || input[i] == 'e' || input[i] == 'E' ||
				((input[i] == '-' || input[i] == '+') && (input[i-1] == 'e' || input[i-1] == 'E'))) {
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: input[start:i], pos: start, end: i})
		case isLetter(c) || c == '_':
			start := i
			for i < len(input) && (isLetter(input[i]) || isDigit(input[i]) || input[i] == '_' || input[i] == '.' || input[i] == ':') {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: input[start:i], pos: start, end: i})
		default:
			return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(input), end: len(input)})
	return tokens, nil
}

// isLetter returns true if c is an ASCII letter.
func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// isDigit returns true if c is an ASCII digit.
func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// reserved words cannot be used as unquoted property names.
var reserved = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "LIKE": true, "IN": true, "BETWEEN": true,
	"IS": true, "NULL": true, "TRUE": true, "FALSE": true,
}

// wktKeywords start a WKT geometry literal.
var wktKeywords = map[string]bool{
	"POINT": true, "LINESTRING": true, "POLYGON": true, "MULTIPOINT": true,
	"MULTILINESTRING": true, "MULTIPOLYGON": true, "GEOMETRYCOLLECTION": true,
}

type textParser struct {
	input  string
	tokens []token
	pos    int
}

func (p *textParser) peek() token { return p.tokens[p.pos] }

func (p *textParser) peekAt(offset int) token {
	if p.pos+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+offset]
}

func (p *textParser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *textParser) errorf(tok token, format string, args ...any) error {
	return &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *textParser) expect(kind tokenKind, what string) (token, error) {
	tok := p.next()
	if tok.kind != kind {
		return tok, p.errorf(tok, "expected %s, got %s", what, tok)
	}
	return tok, nil
}

func (p *textParser) expectKeyword(kw string) error {
	tok := p.next()
	if !tok.keyword(kw) {
		return p.errorf(tok, "expected %s, got %s", kw, tok)
	}
	return nil
}

// parseOr parses term { OR term }, flattening chains into one conjunction node.
func (p *textParser) parseOr() (Expression, error) {
	return p.parseChain(OpOr, "OR", p.parseAnd)
}

func (p *textParser) parseAnd() (Expression, error) {
	return p.parseChain(OpAnd, "AND", p.parseNot)
}

func (p *textParser) parseChain(op Operator, kw string, operand func() (Expression, error)) (Expression, error) {
	first, err := operand()
	if err != nil {
		return nil, err
	}
	if !p.peek().keyword(kw) {
		return first, nil
	}

	children := []Expression{first}
	for p.peek().keyword(kw) {
		p.next()
		child, err := operand()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return &ConjunctionExpression{BaseExpression: BaseExpression{Operator: op}, Children: children}, nil
}

func (p *textParser) parseNot() (Expression, error) {
	if p.peek().keyword("NOT") {
		p.next()
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &NotExpression{BaseExpression: BaseExpression{Operator: OpNot}, Child: child}, nil
	}

	if p.peek().kind == tokLParen {
		p.next()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return expr, nil
	}

	return p.parsePredicate()
}

func (p *textParser) parsePredicate() (Expression, error) {
	tok := p.peek()

	// name "(" ... ")" is a function predicate unless the name is a literal keyword
	if tok.kind == tokIdent && p.peekAt(1).kind == tokLParen && !isLiteralKeyword(tok.text) {
		return p.parseFunction()
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if !left.isProperty {
		return p.parseNonPropertyComparison(tok)
	}
	prop := left.property

	negate := false
	if p.peek().keyword("NOT") {
		p.next()
		negate = true
	}

	var expr Expression
	opTok := p.next()
	switch {
	case opTok.kind == tokOperator && !negate:
		op, _ := lookupOperator(opTok.text)
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		expr = comparison(op, prop, lit)
	case opTok.keyword("LIKE"):
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		expr = comparison(OpLike, prop, lit)
	case opTok.keyword("IN"):
		lits, err := p.parseLiteralList()
		if err != nil {
			return nil, err
		}
		expr = comparison(OpIn, prop, lits...)
	case opTok.keyword("BETWEEN"):
		lo, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		hi, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		expr = comparison(OpBetween, prop, lo, hi)
	case opTok.keyword("IS") && !negate:
		if p.peek().keyword("NOT") {
			p.next()
			negate = true
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		expr = comparison(OpIsNull, prop)
	default:
		return nil, p.errorf(opTok, "expected comparison operator after property %q, got %s", prop, opTok)
	}

	if negate {
		expr = &NotExpression{BaseExpression: BaseExpression{Operator: OpNot}, Child: expr}
	}
	return expr, nil
}

// parseNonPropertyComparison consumes "<operand> op <operand>" where the left side is not
// a property and reports it as unsupported.
func (p *textParser) parseNonPropertyComparison(start token) (Expression, error) {
	opTok := p.next()
	if opTok.kind != tokOperator {
		return nil, p.errorf(start, "expected a predicate, got %s", start)
	}
	op, _ := lookupOperator(opTok.text)
	if _, err := p.parseOperand(); err != nil {
		return nil, err
	}
	return &UnsupportedExpression{
		BaseExpression: BaseExpression{Operator: op},
		Reason:         "left operand must be a property",
	}, nil
}

func comparison(op Operator, prop string, values ...Literal) *ComparisonExpression {
	return &ComparisonExpression{
		BaseExpression: BaseExpression{Operator: op},
		Property:       prop,
		Values:         values,
	}
}

// parseFunction parses name(args). Temporal predicates become TemporalExpression;
// any other function is unsupported. A function used as a comparison operand
// (CASEI(site) = 'x') is unsupported as well.
func (p *textParser) parseFunction() (Expression, error) {
	nameTok := p.next()
	p.next() // (

	var args []operand
	if p.peek().kind != tokRParen {
		for {
			o, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			args = append(args, o)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}

	op, known := lookupOperator(nameTok.text)

	if p.peek().kind == tokOperator {
		cmpTok := p.next()
		if _, err := p.parseOperand(); err != nil {
			return nil, err
		}
		cmp, _ := lookupOperator(cmpTok.text)
		return &UnsupportedExpression{
			BaseExpression: BaseExpression{Operator: cmp},
			Reason:         fmt.Sprintf("function %s cannot be used as an operand", op),
		}, nil
	}

	if !known || !op.IsTemporal() {
		return &UnsupportedExpression{
			BaseExpression: BaseExpression{Operator: op},
			Reason:         "operation is not a comparison, temporal or logical predicate",
		}, nil
	}
	if len(args) != 2 {
		return nil, p.errorf(nameTok, "%s requires exactly two arguments, got %d", op, len(args))
	}

	return newTemporal(op, args[0], args[1]), nil
}

// parseOperand parses a property name, a literal or a nested function call.
func (p *textParser) parseOperand() (operand, error) {
	tok := p.peek()
	switch {
	case tok.kind == tokQuotedIdent:
		p.next()
		if tok.text == "" {
			return operand{}, p.errorf(tok, "property name cannot be empty")
		}
		return operand{property: tok.text, isProperty: true}, nil
	case tok.kind == tokIdent && !isLiteralKeyword(tok.text):
		if p.peekAt(1).kind == tokLParen {
			expr, err := p.parseFunction()
			if err != nil {
				return operand{}, err
			}
			return operand{expr: expr}, nil
		}
		if reserved[strings.ToUpper(tok.text)] {
			return operand{}, p.errorf(tok, "unexpected keyword %s", strings.ToUpper(tok.text))
		}
		p.next()
		return operand{property: tok.text, isProperty: true}, nil
	default:
		lit, err := p.parseLiteral()
		if err != nil {
			return operand{}, err
		}
		return operand{literal: lit}, nil
	}
}

func isLiteralKeyword(s string) bool {
	upper := strings.ToUpper(s)
	switch upper {
	case "TRUE", "FALSE", "NULL", "TIMESTAMP", "DATE", "INTERVAL", "BBOX":
		return true
	}
	return wktKeywords[upper]
}

func (p *textParser) parseLiteral() (Literal, error) {
	tok := p.next()
	switch tok.kind {
	case tokString:
		return Literal{Kind: LiteralString, Value: tok.text}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return Literal{}, p.errorf(tok, "invalid number %s", tok.text)
		}
		return Literal{Kind: LiteralNumber, Value: f}, nil
	case tokIdent:
		upper := strings.ToUpper(tok.text)
		switch {
		case upper == "TRUE" || upper == "FALSE":
			return Literal{Kind: LiteralBoolean, Value: upper == "TRUE"}, nil
		case upper == "NULL":
			return Literal{Kind: LiteralNull}, nil
		case upper == "TIMESTAMP" || upper == "DATE":
			s, err := p.parseStringCall()
			if err != nil {
				return Literal{}, err
			}
			kind := LiteralTimestamp
			if upper == "DATE" {
				kind = LiteralDate
			}
			return Literal{Kind: kind, Value: s}, nil
		case upper == "INTERVAL":
			return p.parseIntervalCall()
		case upper == "BBOX":
			return p.parseBboxCall()
		case wktKeywords[upper]:
			return p.parseWKT(tok)
		}
	}
	return Literal{}, p.errorf(tok, "expected a literal, got %s", tok)
}

func (p *textParser) parseLiteralList() ([]Literal, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var lits []Literal
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		lits = append(lits, lit)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return lits, nil
}

// parseStringCall parses ('text') after TIMESTAMP or DATE.
func (p *textParser) parseStringCall() (string, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return "", err
	}
	s, err := p.expect(tokString, "a quoted string")
	if err != nil {
		return "", err
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return "", err
	}
	return s.text, nil
}

func (p *textParser) parseIntervalCall() (Literal, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return Literal{}, err
	}
	var bounds []Literal
	for len(bounds) < 2 {
		tok := p.peek()
		lit, err := p.parseLiteral()
		if err != nil {
			return Literal{}, err
		}
		if _, ok := temporalBound(operand{literal: lit}); !ok {
			return Literal{}, p.errorf(tok, "interval bounds must be timestamps, dates or '..'")
		}
		bounds = append(bounds, lit)
		if len(bounds) == 1 {
			if _, err := p.expect(tokComma, "','"); err != nil {
				return Literal{}, err
			}
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return Literal{}, err
	}
	return Literal{Kind: LiteralInterval, Value: bounds}, nil
}

func (p *textParser) parseBboxCall() (Literal, error) {
	open, err := p.expect(tokLParen, "'('")
	if err != nil {
		return Literal{}, err
	}
	var coords []float64
	for {
		tok, err := p.expect(tokNumber, "a number")
		if err != nil {
			return Literal{}, err
		}
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return Literal{}, p.errorf(tok, "invalid number %s", tok.text)
		}
		coords = append(coords, f)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return Literal{}, err
	}

	b, err := boundFromBbox(coords)
	if err != nil {
		return Literal{}, p.errorf(open, "bbox requires 4 or 6 numbers, got %d", len(coords))
	}
	return Literal{Kind: LiteralGeometry, Value: b}, nil
}

// parseWKT consumes a balanced WKT geometry starting at kw and decodes the source span.
func (p *textParser) parseWKT(kw token) (Literal, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return Literal{}, err
	}
	depth := 1
	end := kw.end
	for depth > 0 {
		tok := p.next()
		switch tok.kind {
		case tokEOF:
			return Literal{}, p.errorf(tok, "unterminated %s literal", strings.ToUpper(kw.text))
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		}
		end = tok.end
	}

	g, err := wkt.Unmarshal(p.input[kw.pos:end])
	if err != nil {
		return Literal{}, &SyntaxError{Pos: kw.pos, Msg: "invalid WKT geometry", Err: err}
	}
	return Literal{Kind: LiteralGeometry, Value: g}, nil
}
