package query

import "strings"

// Expr is a scalar SQL expression.
type Expr interface {
	render(b *sqlBuilder) string
}

// Column references a column of a table or subquery alias.
type Column struct {
	Table string
	Name  string
}

func (c Column) render(*sqlBuilder) string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

// Labeled is an expression projected under a column label.
type Labeled struct {
	Expr  Expr
	Label string
}

// Label names an expression in a select list.
func Label(e Expr, label string) Labeled {
	return Labeled{Expr: Unlabel(e), Label: label}
}

func (l Labeled) render(b *sqlBuilder) string {
	return l.Expr.render(b) + ` AS "` + l.Label + `"`
}

// Unlabel strips a label so the expression can be used outside a select list.
func Unlabel(e Expr) Expr {
	if l, ok := e.(Labeled); ok {
		return l.Expr
	}
	return e
}

// Param is a bound value. It is never interpolated into the SQL text.
type Param struct {
	Value any
}

// Value binds v as a query parameter.
func Value(v any) Param {
	return Param{Value: v}
}

func (p Param) render(b *sqlBuilder) string {
	return b.placeholder(b.addArg(p.Value))
}

type binary struct {
	op          string
	left, right Expr
	parens      bool
}

func (e binary) render(b *sqlBuilder) string {
	s := Unlabel(e.left).render(b) + " " + e.op + " " + Unlabel(e.right).render(b)
	if e.parens {
		return "(" + s + ")"
	}
	return s
}

func Add(left, right Expr) Expr { return binary{op: "+", left: left, right: right, parens: true} }
func Eq(left, right Expr) Expr  { return binary{op: "=", left: left, right: right} }
func Lt(left, right Expr) Expr  { return binary{op: "<", left: left, right: right} }
func Gt(left, right Expr) Expr  { return binary{op: ">", left: left, right: right} }

type junction struct {
	op    string
	terms []Expr
}

func (j junction) render(b *sqlBuilder) string {
	if len(j.terms) == 0 {
		return "1 = 1"
	}
	parts := make([]string, len(j.terms))
	for i, t := range j.terms {
		parts[i] = Unlabel(t).render(b)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " "+j.op+" ") + ")"
}

// And joins predicates with AND. A single predicate is returned unchanged.
func And(terms ...Expr) Expr {
	if len(terms) == 1 {
		return terms[0]
	}
	return junction{op: "AND", terms: append([]Expr(nil), terms...)}
}

// Or joins predicates with OR. A single predicate is returned unchanged.
func Or(terms ...Expr) Expr {
	if len(terms) == 1 {
		return terms[0]
	}
	return junction{op: "OR", terms: append([]Expr(nil), terms...)}
}

type isNull struct {
	expr Expr
}

func (n isNull) render(b *sqlBuilder) string {
	return Unlabel(n.expr).render(b) + " IS NULL"
}

func IsNull(e Expr) Expr { return isNull{expr: e} }

type call struct {
	fn   string
	args []Expr
}

func (c call) render(b *sqlBuilder) string {
	parts := make([]string, len(c.args))
	for i, a := range c.args {
		parts[i] = Unlabel(a).render(b)
	}
	return c.fn + "(" + strings.Join(parts, ", ") + ")"
}

type in struct {
	expr   Expr
	values []any
}

func (i in) render(b *sqlBuilder) string {
	if len(i.values) == 0 {
		return "1 = 0"
	}
	left := Unlabel(i.expr).render(b)
	parts := make([]string, len(i.values))
	for idx, v := range i.values {
		parts[idx] = b.placeholder(b.addArg(v))
	}
	return left + " IN (" + strings.Join(parts, ", ") + ")"
}

// In matches e against a list of bound values. An empty list matches nothing.
func In(e Expr, values ...any) Expr { return in{expr: e, values: append([]any(nil), values...)} }

func Sum(e Expr) Expr { return call{fn: "sum", args: []Expr{e}} }

// SQL renders a standalone expression. Used for diagnostics and tests.
func SQL(e Expr, d Dialect) (string, []any) {
	b := newSQLBuilder(d)
	s := e.render(b)
	return s, b.args
}
