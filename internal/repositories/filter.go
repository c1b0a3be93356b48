package repositories

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-tracker/backend/internal/query"
)

var (
	matchNone = clause.Expr{SQL: "1 = 0"}
	matchAll  = clause.Expr{SQL: "1 = 1"}
)

// applyFilter adds f to tx as a WHERE clause. An empty filter leaves tx
// untouched.
func applyFilter(tx *gorm.DB, f query.Filter) *gorm.DB {
	if expr, ok := filterExpression(f); ok {
		return tx.Clauses(clause.Where{Exprs: []clause.Expression{expr}})
	}
	return tx
}

func applyDescriptor(tx *gorm.DB, d query.Descriptor) *gorm.DB {
	tx = applyFilter(tx, d.Filter)
	for _, key := range d.Sort {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: key.Field.Column}, Desc: key.Desc})
	}
	tx = tx.Order("date_created").Order("id")
	if d.Skip > 0 {
		tx = tx.Offset(d.Skip)
	}
	if d.Limit > 0 {
		tx = tx.Limit(d.Limit)
	}
	return tx
}

func filterExpression(f query.Filter) (clause.Expression, bool) {
	var exprs []clause.Expression
	for _, c := range f.Conditions {
		if expr, ok := conditionExpression(c); ok {
			exprs = append(exprs, expr)
		}
	}
	for _, sub := range f.And {
		if expr, ok := filterExpression(sub); ok {
			exprs = append(exprs, expr)
		}
	}
	if len(f.Or) > 0 {
		alternatives := make([]clause.Expression, 0, len(f.Or))
		for _, sub := range f.Or {
			expr, ok := filterExpression(sub)
			if !ok {
				expr = matchAll
			}
			alternatives = append(alternatives, expr)
		}
		exprs = append(exprs, clause.Or(alternatives...))
	}

	if len(exprs) == 0 {
		return nil, false
	}
	return clause.And(exprs...), true
}

func conditionExpression(c query.Condition) (clause.Expression, bool) {
	if c.Field.Kind == query.KindIDSet {
		return pendingSetExpression(c)
	}

	col := clause.Column{Name: c.Field.Column}
	switch c.Op {
	case query.OpEq:
		return clause.Eq{Column: col, Value: c.Value}, true
	case query.OpNe:
		return clause.Neq{Column: col, Value: c.Value}, true
	case query.OpGt:
		return clause.Gt{Column: col, Value: c.Value}, true
	case query.OpGte:
		return clause.Gte{Column: col, Value: c.Value}, true
	case query.OpLt:
		return clause.Lt{Column: col, Value: c.Value}, true
	case query.OpLte:
		return clause.Lte{Column: col, Value: c.Value}, true
	case query.OpIn:
		if len(c.Values) == 0 {
			return matchNone, true
		}
		return clause.IN{Column: col, Values: c.Values}, true
	case query.OpNin:
		if len(c.Values) == 0 {
			return nil, false
		}
		return clause.Not(clause.IN{Column: col, Values: c.Values}), true
	}
	return nil, false
}

// pendingSetExpression matches users by membership of their pending set, which
// lives in user_pending_tasks rather than on the users row.
func pendingSetExpression(c query.Condition) (clause.Expression, bool) {
	const member = "id IN (SELECT user_id FROM user_pending_tasks WHERE task_id = ?)"
	const anyMember = "id IN (SELECT user_id FROM user_pending_tasks WHERE task_id IN ?)"

	switch c.Op {
	case query.OpEq:
		return clause.Expr{SQL: member, Vars: []interface{}{c.Value}}, true
	case query.OpNe:
		return clause.Expr{SQL: "NOT " + member, Vars: []interface{}{c.Value}}, true
	case query.OpIn:
		if len(c.Values) == 0 {
			return matchNone, true
		}
		return clause.Expr{SQL: anyMember, Vars: []interface{}{c.Values}}, true
	case query.OpNin:
		if len(c.Values) == 0 {
			return nil, false
		}
		return clause.Expr{SQL: "NOT " + anyMember, Vars: []interface{}{c.Values}}, true
	}
	return nil, false
}
