package query

import "strings"

// Source is something a query can select from or join against.
type Source interface {
	Col(name string) Column
	renderSource(b *sqlBuilder) string
}

// Table is a named base table.
type Table struct {
	Name string
}

func (t Table) Col(name string) Column {
	return Column{Table: t.Name, Name: name}
}

func (t Table) renderSource(*sqlBuilder) string {
	return t.Name
}

// Subquery is a Select used as a join source under an alias.
type Subquery struct {
	Select Select
	Alias  string
}

func (s Subquery) Col(name string) Column {
	return Column{Table: s.Alias, Name: name}
}

func (s Subquery) renderSource(b *sqlBuilder) string {
	return "(" + s.Select.render(b) + ") AS " + s.Alias
}

// Join is an inner join. Rows without a match are dropped from the result.
type Join struct {
	Source Source
	On     Expr
}

// OrderTerm is a single ORDER BY entry.
type OrderTerm struct {
	Expr      Expr
	Desc      bool
	NullsLast bool
}

func Asc(e Expr) OrderTerm  { return OrderTerm{Expr: Unlabel(e)} }
func Desc(e Expr) OrderTerm { return OrderTerm{Expr: Unlabel(e), Desc: true} }

// WithNullsLast places NULL values after every non-NULL value regardless of direction.
func (o OrderTerm) WithNullsLast() OrderTerm {
	o.NullsLast = true
	return o
}

func (o OrderTerm) render(b *sqlBuilder) string {
	s := o.Expr.render(b)
	if o.Desc {
		s += " DESC"
	} else {
		s += " ASC"
	}
	if o.NullsLast {
		s += " NULLS LAST"
	}
	return s
}

// Select is an immutable SELECT statement. Every builder method returns a new
// value and leaves the receiver untouched.
type Select struct {
	from    Source
	columns []Expr
	joins   []Join
	where   []Expr
	groupBy []Expr
	orderBy []OrderTerm
	limit   int
}

// From starts a query over src projecting columns.
func From(src Source, columns ...Expr) Select {
	return Select{from: src, columns: appendCopy(nil, columns...)}
}

func appendCopy[T any](base []T, items ...T) []T {
	out := make([]T, 0, len(base)+len(items))
	out = append(out, base...)
	return append(out, items...)
}

func (s Select) AddColumns(columns ...Expr) Select {
	s.columns = appendCopy(s.columns, columns...)
	return s
}

func (s Select) Join(src Source, on Expr) Select {
	s.joins = appendCopy(s.joins, Join{Source: src, On: on})
	return s
}

func (s Select) Where(predicates ...Expr) Select {
	s.where = appendCopy(s.where, predicates...)
	return s
}

func (s Select) GroupBy(exprs ...Expr) Select {
	s.groupBy = appendCopy(s.groupBy, exprs...)
	return s
}

// OrderBy appends terms after any existing ones.
func (s Select) OrderBy(terms ...OrderTerm) Select {
	s.orderBy = appendCopy(s.orderBy, terms...)
	return s
}

// Limit caps the number of rows. Zero or less removes the limit.
func (s Select) Limit(n int) Select {
	s.limit = n
	return s
}

// As wraps the statement as a subquery source.
func (s Select) As(alias string) Subquery {
	return Subquery{Select: s, Alias: alias}
}

func (s Select) Columns() []Expr        { return appendCopy(nil, s.columns...) }
func (s Select) Joins() []Join          { return appendCopy(nil, s.joins...) }
func (s Select) Predicates() []Expr     { return appendCopy(nil, s.where...) }
func (s Select) Orderings() []OrderTerm { return appendCopy(nil, s.orderBy...) }
func (s Select) LimitValue() int        { return s.limit }

// SQL renders the statement and its bound arguments in placeholder order.
func (s Select) SQL(d Dialect) (string, []any) {
	b := newSQLBuilder(d)
	sql := s.render(b)
	return sql, b.args
}

func (s Select) render(b *sqlBuilder) string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(s.columns) == 0 {
		sb.WriteString("*")
	} else {
		parts := make([]string, len(s.columns))
		for i, c := range s.columns {
			parts[i] = c.render(b)
		}
		sb.WriteString(strings.Join(parts, ", "))
	}

	sb.WriteString(" FROM ")
	sb.WriteString(s.from.renderSource(b))

	for _, j := range s.joins {
		sb.WriteString(" JOIN ")
		sb.WriteString(j.Source.renderSource(b))
		sb.WriteString(" ON ")
		sb.WriteString(Unlabel(j.On).render(b))
	}

	if len(s.where) > 0 {
		parts := make([]string, len(s.where))
		for i, p := range s.where {
			parts[i] = Unlabel(p).render(b)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(parts, " AND "))
	}

	if len(s.groupBy) > 0 {
		parts := make([]string, len(s.groupBy))
		for i, g := range s.groupBy {
			parts[i] = Unlabel(g).render(b)
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if len(s.orderBy) > 0 {
		parts := make([]string, len(s.orderBy))
		for i, o := range s.orderBy {
			parts[i] = o.render(b)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if s.limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(b.placeholder(b.addArg(s.limit)))
	}

	return sb.String()
}
