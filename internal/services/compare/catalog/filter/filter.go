// Package filter parses AIP-160 plan filters into a form that can run as a
// SQL condition against the real catalog or in memory against mock plans.
package filter

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/planmatch/internal/platform/errors"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/plan"
	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// field describes one filterable plan attribute.
type field struct {
	column  string
	numeric bool
	value   func(plan.Plan) any
}

var fields = map[string]field{
	"category": {column: "category", value: func(p plan.Plan) any { return string(p.Category) }},
	"provider": {column: "provider", value: func(p plan.Plan) any { return p.Provider }},
	"name":     {column: "name", value: func(p plan.Plan) any { return p.Name }},
	"monthly_premium_cents": {
		column:  "monthly_premium_cents",
		numeric: true,
		value:   func(p plan.Plan) any { return p.MonthlyPremiumCents },
	},
}

// Declarations returns the identifier declarations for plan filtering.
func Declarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("category", filtering.TypeString),
		filtering.DeclareIdent("provider", filtering.TypeString),
		filtering.DeclareIdent("name", filtering.TypeString),
		filtering.DeclareIdent("monthly_premium_cents", filtering.TypeInt),
	)
}

// Filter is a parsed plan filter. The zero value matches every plan.
type Filter struct {
	root node
}

// Parse parses an AIP-160 filter expression. An empty expression yields the
// zero Filter.
func Parse(raw string) (Filter, error) {
	if strings.TrimSpace(raw) == "" {
		return Filter{}, nil
	}
	decls, err := Declarations()
	if err != nil {
		return Filter{}, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(raw, decls)
	if err != nil {
		return Filter{}, invalid(err)
	}
	if parsed.CheckedExpr == nil || parsed.CheckedExpr.GetExpr() == nil {
		return Filter{}, nil
	}
	root, err := translate(parsed.CheckedExpr.GetExpr())
	if err != nil {
		return Filter{}, invalid(err)
	}
	return Filter{root: root}, nil
}

// Empty reports whether f matches every plan.
func (f Filter) Empty() bool {
	return f.root == nil
}

// SQL returns a WHERE clause fragment over plan columns and its positional
// arguments. Empty filters return an empty clause.
func (f Filter) SQL() (string, []any) {
	if f.root == nil {
		return "", nil
	}
	return f.root.sql()
}

// Match evaluates f against p.
func (f Filter) Match(p plan.Plan) bool {
	if f.root == nil {
		return true
	}
	return f.root.match(p)
}

func invalid(err error) error {
	return apperrors.Wrap(apperrors.CodeCatalogInvalidFilter, "invalid plan filter", err)
}

type node interface {
	sql() (string, []any)
	match(plan.Plan) bool
}

type andNode struct{ left, right node }

func (n andNode) sql() (string, []any) {
	l, lp := n.left.sql()
	r, rp := n.right.sql()
	return fmt.Sprintf("(%s AND %s)", l, r), append(lp, rp...)
}

func (n andNode) match(p plan.Plan) bool { return n.left.match(p) && n.right.match(p) }

type orNode struct{ left, right node }

func (n orNode) sql() (string, []any) {
	l, lp := n.left.sql()
	r, rp := n.right.sql()
	return fmt.Sprintf("(%s OR %s)", l, r), append(lp, rp...)
}

func (n orNode) match(p plan.Plan) bool { return n.left.match(p) || n.right.match(p) }

type notNode struct{ inner node }

func (n notNode) sql() (string, []any) {
	clause, params := n.inner.sql()
	return fmt.Sprintf("NOT (%s)", clause), params
}

func (n notNode) match(p plan.Plan) bool { return !n.inner.match(p) }

type compareNode struct {
	field field
	op    string
	value any
}

func (n compareNode) sql() (string, []any) {
	return fmt.Sprintf("%s %s ?", n.field.column, n.op), []any{n.value}
}

func (n compareNode) match(p plan.Plan) bool {
	var cmp int
	switch want := n.value.(type) {
	case int64:
		got, _ := n.field.value(p).(int64)
		cmp = compareInt(got, want)
	case string:
		got, _ := n.field.value(p).(string)
		cmp = strings.Compare(got, want)
	default:
		return false
	}
	switch n.op {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	default:
		return false
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func translate(e *expr.Expr) (node, error) {
	call, ok := e.GetExprKind().(*expr.Expr_CallExpr)
	if !ok {
		return nil, fmt.Errorf("unsupported expression type: %T", e.GetExprKind())
	}
	args := call.CallExpr.GetArgs()
	switch fn := call.CallExpr.GetFunction(); fn {
	case "_&&_", "AND":
		left, right, err := translatePair(args, fn)
		if err != nil {
			return nil, err
		}
		return andNode{left: left, right: right}, nil
	case "_||_", "OR":
		left, right, err := translatePair(args, fn)
		if err != nil {
			return nil, err
		}
		return orNode{left: left, right: right}, nil
	case "NOT", "-":
		if len(args) != 1 {
			return nil, fmt.Errorf("%s requires 1 argument", fn)
		}
		inner, err := translate(args[0])
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	case "_==_", "=":
		return translateComparison(args, "=")
	case "_!=_", "!=":
		return translateComparison(args, "!=")
	case "_<_", "<":
		return translateComparison(args, "<")
	case "_<=_", "<=":
		return translateComparison(args, "<=")
	case "_>_", ">":
		return translateComparison(args, ">")
	case "_>=_", ">=":
		return translateComparison(args, ">=")
	default:
		return nil, fmt.Errorf("unsupported function: %s", fn)
	}
}

func translatePair(args []*expr.Expr, fn string) (node, node, error) {
	if len(args) != 2 {
		return nil, nil, fmt.Errorf("%s requires 2 arguments", fn)
	}
	left, err := translate(args[0])
	if err != nil {
		return nil, nil, err
	}
	right, err := translate(args[1])
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func translateComparison(args []*expr.Expr, op string) (node, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("comparison requires 2 arguments")
	}
	ident, ok := args[0].GetExprKind().(*expr.Expr_IdentExpr)
	if !ok {
		return nil, fmt.Errorf("expected identifier, got %T", args[0].GetExprKind())
	}
	name := ident.IdentExpr.GetName()
	f, ok := fields[name]
	if !ok {
		return nil, fmt.Errorf("unknown field: %s", name)
	}
	constant, ok := args[1].GetExprKind().(*expr.Expr_ConstExpr)
	if !ok {
		return nil, fmt.Errorf("expected constant value for %s", name)
	}
	value, err := constantValue(constant.ConstExpr, f.numeric)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return compareNode{field: f, op: op, value: value}, nil
}

func constantValue(c *expr.Constant, numeric bool) (any, error) {
	switch kind := c.GetConstantKind().(type) {
	case *expr.Constant_StringValue:
		if numeric {
			return nil, fmt.Errorf("expected number")
		}
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		if !numeric {
			return nil, fmt.Errorf("expected string")
		}
		return kind.Int64Value, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}
