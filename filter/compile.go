package filter

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/terradue/aeronet-go/catalog"
)

// Compiler translates expression trees into AERONET query parameters.
// A Compiler holds no mutable state and is safe for concurrent use.
type Compiler struct {
	reg catalog.Registry
}

// NewCompiler returns a compiler resolving properties through reg.
// A nil registry selects catalog.Default.
func NewCompiler(reg catalog.Registry) *Compiler {
	if reg == nil {
		reg = catalog.MustDefault()
	}
	return &Compiler{reg: reg}
}

// Compile compiles root against the default registry.
func Compile(root Expression) (*Query, error) {
	return NewCompiler(nil).Compile(root)
}

// leaf is a predicate that passed shape validation.
type leaf struct {
	op       Operator
	property string
	literal  Literal

	queryable *catalog.Queryable
	params    []catalog.Param
}

func (l *leaf) comparison() catalog.Comparison {
	switch l.op {
	case OpAfter:
		return catalog.CompareAfter
	case OpBefore:
		return catalog.CompareBefore
	default:
		return catalog.CompareEqual
	}
}

// Compile validates root against the conjunctive subset the AERONET API accepts
// and returns the ordered query parameters.
//
// Steps, each terminal on failure:
//  1. shape: a single leaf or a root "and" of at least two leaves (ErrUnsupportedExpression)
//  2. resolution of every property (ErrUnknownQueryable)
//  3. decomposition of every literal (ErrInvalidLiteral, ErrUnsupportedExpression)
//  4. temporal pairing into one closed range (ErrIncompleteTimeRange, ErrUnsupportedExpression,
//     ErrConflictingConstraint for a reversed range)
//  5. merge of parameters (ErrConflictingConstraint on differing values, equal values coalesce)
//  6. ordering by registry declaration, then decomposition order
func (c *Compiler) Compile(root Expression) (*Query, error) {
	leaves, err := flatten(root)
	if err != nil {
		return nil, err
	}

	for _, l := range leaves {
		q, err := c.reg.Lookup(l.property)
		if err != nil {
			return nil, &CompileError{Kind: ErrUnknownQueryable, Property: l.property, Err: err}
		}
		l.queryable = q
	}

	for _, l := range leaves {
		params, err := c.reg.Decompose(l.queryable, l.comparison(), registryValue(l.literal))
		if err != nil {
			return nil, decomposeError(l, err)
		}
		l.params = params
	}

	if err := checkTimeRange(leaves); err != nil {
		return nil, err
	}

	return merge(leaves)
}

// flatten performs shape validation and returns the leaves in input order.
func flatten(root Expression) ([]*leaf, error) {
	if root == nil {
		return nil, &CompileError{Kind: ErrUnsupportedExpression, Detail: "empty filter"}
	}

	conj, ok := root.(*ConjunctionExpression)
	if !ok {
		l, err := toLeaf(root)
		if err != nil {
			return nil, err
		}
		return []*leaf{l}, nil
	}

	if conj.Op() != OpAnd {
		return nil, unsupported(conj.Op(), "", "disjunction is not supported by the AERONET API")
	}
	if len(conj.Children) < 2 {
		return nil, unsupported(OpAnd, "", "conjunction requires at least two operands, got %d", len(conj.Children))
	}

	leaves := make([]*leaf, 0, len(conj.Children))
	for _, child := range conj.Children {
		if nested, ok := child.(*ConjunctionExpression); ok {
			if nested.Op() == OpAnd {
				return nil, unsupported(OpAnd, "", "nested conjunctions are not supported")
			}
			return nil, unsupported(nested.Op(), "", "disjunction is not supported by the AERONET API")
		}
		l, err := toLeaf(child)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, l)
	}
	return leaves, nil
}

func toLeaf(expr Expression) (*leaf, error) {
	switch e := expr.(type) {
	case *ComparisonExpression:
		if e.Op() != OpEqual {
			return nil, unsupported(e.Op(), e.Property, "only equality comparisons are supported")
		}
		return &leaf{op: e.Op(), property: e.Property, literal: e.Literal()}, nil
	case *TemporalExpression:
		if e.Op() != OpAfter && e.Op() != OpBefore {
			return nil, unsupported(e.Op(), e.Property, "only t_after and t_before are supported")
		}
		return &leaf{op: e.Op(), property: e.Property, literal: e.Literal}, nil
	case *NotExpression:
		return nil, unsupported(OpNot, "", "negation is not supported by the AERONET API")
	case *UnsupportedExpression:
		return nil, unsupported(e.Op(), "", "%s", e.Reason)
	case nil:
		return nil, &CompileError{Kind: ErrUnsupportedExpression, Detail: "empty operand"}
	default:
		return nil, unsupported(expr.Op(), "", "unexpected expression %T", expr)
	}
}

// registryValue converts a literal into the value passed to catalog decomposition.
// Temporal literals parsing as timestamps are passed as time.Time; anything else keeps
// its Go representation so the registry can reject it by shape.
func registryValue(l Literal) any {
	switch l.Kind {
	case LiteralTimestamp, LiteralDate:
		s, _ := l.Text()
		if ts, err := catalog.ParseTimestamp(s); err == nil {
			return ts
		}
		return s
	case LiteralNull:
		return nil
	default:
		return l.Value
	}
}

// instant returns the time of a textual literal, if it parses as one.
func instant(l Literal) (time.Time, bool) {
	s, ok := l.Text()
	if !ok {
		return time.Time{}, false
	}
	ts, err := catalog.ParseTimestamp(s)
	return ts, err == nil
}

func decomposeError(l *leaf, err error) error {
	detail := err.Error()
	var qe *catalog.QueryableError
	if errors.As(err, &qe) {
		detail = qe.Reason
		if qe.Value != nil && errors.Is(err, catalog.ErrInvalidLiteral) {
			detail = fmt.Sprintf("%s (got %s)", qe.Reason, l.literal)
		}
	}

	kind := ErrInvalidLiteral
	if errors.Is(err, catalog.ErrUnsupportedComparison) {
		kind = ErrUnsupportedExpression
	}
	return &CompileError{Kind: kind, Operator: l.op, Property: l.property, Detail: detail, Err: err}
}

// checkTimeRange requires temporal leaves to form exactly one closed range on one property.
func checkTimeRange(leaves []*leaf) error {
	var start, end *leaf
	for _, l := range leaves {
		if l.op != OpAfter && l.op != OpBefore {
			continue
		}

		for _, other := range []*leaf{start, end} {
			if other != nil && other.property != l.property {
				return unsupported(l.op, l.property,
					"only one time range per query is supported, already constrained %q", other.property)
			}
		}

		slot := &start
		if l.op == OpBefore {
			slot = &end
		}
		if *slot != nil {
			if sameInstant((*slot).literal, l.literal) {
				continue
			}
			return unsupported(l.op, l.property, "time range bound given more than once")
		}
		*slot = l
	}

	switch {
	case start == nil && end == nil:
		return nil
	case end == nil:
		return &CompileError{
			Kind: ErrIncompleteTimeRange, Operator: OpAfter, Property: start.property,
			Detail: "t_after requires a matching t_before",
		}
	case start == nil:
		return &CompileError{
			Kind: ErrIncompleteTimeRange, Operator: OpBefore, Property: end.property,
			Detail: "t_before requires a matching t_after",
		}
	}

	from, fromOK := instant(start.literal)
	to, toOK := instant(end.literal)
	if fromOK && toOK && from.After(to) {
		return &CompileError{
			Kind:     ErrConflictingConstraint,
			Property: start.property,
			Detail:   fmt.Sprintf("range start %s is after range end %s", from.Format(time.RFC3339), to.Format(time.RFC3339)),
			Values:   []string{from.Format(time.RFC3339), to.Format(time.RFC3339)},
		}
	}
	return nil
}

// placed is a parameter with its ordering key.
type placed struct {
	param    catalog.Param
	position int
}

func merge(leaves []*leaf) (*Query, error) {
	var all []placed
	seen := make(map[string]placed)

	for _, l := range leaves {
		for _, p := range l.params {
			if prev, ok := seen[p.Name]; ok {
				if prev.param.Value != p.Value {
					return nil, &CompileError{
						Kind:     ErrConflictingConstraint,
						Property: l.property,
						Param:    p.Name,
						Values:   []string{prev.param.Value, p.Value},
					}
				}
				continue
			}
			entry := placed{param: p, position: l.queryable.Position()}
			seen[p.Name] = entry
			all = append(all, entry)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].position != all[j].position {
			return all[i].position < all[j].position
		}
		return all[i].param.Ordinal < all[j].param.Ordinal
	})

	params := make([]Param, len(all))
	for i, e := range all {
		params[i] = Param{Name: e.param.Name, Value: e.param.Value}
	}
	return NewQuery(params...), nil
}

// sameInstant reports whether two bound literals denote the same instant.
func sameInstant(a, b Literal) bool {
	ta, okA := instant(a)
	tb, okB := instant(b)
	if okA && okB {
		return ta.Equal(tb)
	}
	return a.Kind == b.Kind && a.String() == b.String()
}
