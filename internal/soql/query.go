// Package soql wraps the external query parser/composer and exposes the
// structural rewrites plan compilation needs: field-list access and
// de-duplication, predicate composition, and ordering. The parser itself is
// treated as a correct external library; this package never inspects query
// text directly.
package soql

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/xwb1989/sqlparser"
)

// ValueKind selects how predicate values are rendered.
type ValueKind int

const (
	StringValue ValueKind = iota
	NumberValue
	BoolValue
)

// Query is a parsed object query. All rewrites mutate the underlying AST;
// String recomposes the current state.
type Query struct {
	sel *sqlparser.Select
	raw string
}

// Parse parses query text into a Query. Only plain SELECT statements are
// accepted.
func Parse(text string) (*Query, error) {
	stmt, err := sqlparser.Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "parse query")
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return nil, errors.Errorf("not a select statement: %s", text)
	}
	if len(sel.From) == 0 {
		return nil, errors.Errorf("query has no target entity: %s", text)
	}
	return &Query{sel: sel, raw: text}, nil
}

// Raw returns the original query text as supplied to Parse.
func (q *Query) Raw() string { return q.raw }

// String composes the current AST back to query text.
func (q *Query) String() string { return sqlparser.String(q.sel) }

// Entity returns the target entity name from the FROM clause. The query, not
// any script label, is authoritative for entity identity.
func (q *Query) Entity() string {
	if ate, ok := q.sel.From[0].(*sqlparser.AliasedTableExpr); ok {
		if tn, ok := ate.Expr.(sqlparser.TableName); ok {
			return tn.Name.String()
		}
	}
	return ""
}

// Fields returns the ordered top-level field identifiers, duplicates
// collapsed first-occurrence-wins. Field identity is case-insensitive.
func (q *Query) Fields() []string {
	var fields []string
	seen := make(map[string]bool)
	for _, se := range q.sel.SelectExprs {
		ae, ok := se.(*sqlparser.AliasedExpr)
		if !ok {
			continue
		}
		name := exprFieldName(ae.Expr)
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		fields = append(fields, name)
	}
	return fields
}

// HasField reports whether the field list contains name, case-insensitively.
func (q *Query) HasField(name string) bool {
	for _, f := range q.Fields() {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// DedupeFields removes duplicate field entries in place, keeping the first
// occurrence of each field.
func (q *Query) DedupeFields() {
	seen := make(map[string]bool)
	deduped := make(sqlparser.SelectExprs, 0, len(q.sel.SelectExprs))
	for _, se := range q.sel.SelectExprs {
		key := strings.ToLower(sqlparser.String(se))
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, se)
	}
	q.sel.SelectExprs = deduped
}

// EnsureField appends name to the field list if absent. Idempotent.
func (q *Query) EnsureField(name string) {
	if q.HasField(name) {
		return
	}
	q.sel.SelectExprs = append(q.sel.SelectExprs, &sqlparser.AliasedExpr{Expr: colName(name)})
}

// ReplaceFields replaces the field list wholesale.
func (q *Query) ReplaceFields(names ...string) {
	exprs := make(sqlparser.SelectExprs, 0, len(names))
	for _, name := range names {
		exprs = append(exprs, &sqlparser.AliasedExpr{Expr: colName(name)})
	}
	q.sel.SelectExprs = exprs
}

// HasWhere reports whether the query has a filter clause.
func (q *Query) HasWhere() bool { return q.sel.Where != nil }

// HasLimit reports whether the query has a row cap.
func (q *Query) HasLimit() bool { return q.sel.Limit != nil }

// AndWhere conjoins a new predicate onto the filter clause, creating the
// clause if absent. Supported operators: "=" (single value) and "IN"
// (value list).
func (q *Query) AndWhere(field, operator string, values []string, kind ValueKind) error {
	if len(values) == 0 {
		return errors.New("predicate needs at least one value")
	}

	var op string
	var right sqlparser.Expr
	switch strings.ToUpper(operator) {
	case "=":
		op = sqlparser.EqualStr
		right = literal(values[0], kind)
	case "IN":
		op = sqlparser.InStr
		tuple := make(sqlparser.ValTuple, 0, len(values))
		for _, v := range values {
			tuple = append(tuple, literal(v, kind))
		}
		right = tuple
	default:
		return errors.Errorf("unsupported predicate operator %q", operator)
	}

	pred := &sqlparser.ComparisonExpr{
		Operator: op,
		Left:     colName(field),
		Right:    right,
	}
	if q.sel.Where == nil {
		q.sel.Where = sqlparser.NewWhere(sqlparser.WhereStr, pred)
		return nil
	}
	q.sel.Where.Expr = &sqlparser.AndExpr{Left: q.sel.Where.Expr, Right: pred}
	return nil
}

// SetOrderBy replaces the ordering clause with a single field ordering.
// Direction is "asc" or "desc".
func (q *Query) SetOrderBy(field, direction string) {
	dir := sqlparser.AscScr
	if strings.EqualFold(direction, "desc") {
		dir = sqlparser.DescScr
	}
	q.sel.OrderBy = sqlparser.OrderBy{
		&sqlparser.Order{Expr: colName(field), Direction: dir},
	}
}

func literal(v string, kind ValueKind) sqlparser.Expr {
	switch kind {
	case NumberValue:
		return sqlparser.NewIntVal([]byte(v))
	case BoolValue:
		return sqlparser.BoolVal(strings.EqualFold(v, "true"))
	default:
		return sqlparser.NewStrVal([]byte(v))
	}
}

// colName builds a column reference, handling dotted relationship paths up
// to two qualifiers deep (e.g. RecordType.DeveloperName).
func colName(name string) *sqlparser.ColName {
	parts := strings.Split(name, ".")
	col := &sqlparser.ColName{Name: sqlparser.NewColIdent(parts[len(parts)-1])}
	switch len(parts) {
	case 2:
		col.Qualifier = sqlparser.TableName{Name: sqlparser.NewTableIdent(parts[0])}
	case 3:
		col.Qualifier = sqlparser.TableName{
			Qualifier: sqlparser.NewTableIdent(parts[0]),
			Name:      sqlparser.NewTableIdent(parts[1]),
		}
	}
	return col
}

func exprFieldName(expr sqlparser.Expr) string {
	if col, ok := expr.(*sqlparser.ColName); ok {
		return sqlparser.String(col)
	}
	return sqlparser.String(expr)
}
