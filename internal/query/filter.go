package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"task-tracker/backend/internal/models"
)

type Op string

const (
	OpEq  Op = "$eq"
	OpNe  Op = "$ne"
	OpGt  Op = "$gt"
	OpGte Op = "$gte"
	OpLt  Op = "$lt"
	OpLte Op = "$lte"
	OpIn  Op = "$in"
	OpNin Op = "$nin"
)

var comparisonOps = map[Op]bool{OpGt: true, OpGte: true, OpLt: true, OpLte: true}

// Condition is a single validated field predicate. Value holds the coerced
// operand for scalar operators, Values the operands of $in and $nin.
type Condition struct {
	Field  Field
	Op     Op
	Value  any
	Values []any
}

// Filter is a conjunction of Conditions, And sub-filters, and (when non-empty)
// a disjunction of Or sub-filters.
type Filter struct {
	Conditions []Condition
	And        []Filter
	Or         []Filter
}

func (f Filter) IsEmpty() bool {
	return len(f.Conditions) == 0 && len(f.And) == 0 && len(f.Or) == 0
}

func parseFilter(doc []member, fields FieldSet) (Filter, error) {
	var f Filter
	for _, m := range doc {
		switch m.Key {
		case "$and", "$or":
			subs, err := parseFilterList(m.Key, m.Value, fields)
			if err != nil {
				return Filter{}, err
			}
			if m.Key == "$and" {
				f.And = append(f.And, subs...)
			} else {
				f.Or = append(f.Or, subs...)
			}
			continue
		}

		if strings.HasPrefix(m.Key, "$") {
			return Filter{}, invalidf("unsupported operator %q", m.Key)
		}
		field, ok := fields.Lookup(m.Key)
		if !ok {
			return Filter{}, invalidf("unknown field %q", m.Key)
		}

		conds, err := parseFieldPredicate(field, m.Value)
		if err != nil {
			return Filter{}, err
		}
		f.Conditions = append(f.Conditions, conds...)
	}
	return f, nil
}

func parseFilterList(op string, raw any, fields FieldSet) ([]Filter, error) {
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return nil, invalidf("%s expects a non-empty array", op)
	}
	subs := make([]Filter, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, invalidf("%s expects an array of objects", op)
		}
		sub, err := parseFilter(sortedMembers(obj), fields)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func parseFieldPredicate(field Field, raw any) ([]Condition, error) {
	ops, isOperatorDoc := operatorDocument(raw)
	if !isOperatorDoc {
		value, err := coerce(field, raw)
		if err != nil {
			return nil, err
		}
		return []Condition{{Field: field, Op: OpEq, Value: value}}, nil
	}

	conds := make([]Condition, 0, len(ops))
	for _, m := range ops {
		op := Op(m.Key)
		switch {
		case op == OpEq || op == OpNe:
			value, err := coerce(field, m.Value)
			if err != nil {
				return nil, err
			}
			conds = append(conds, Condition{Field: field, Op: op, Value: value})
		case op == OpIn || op == OpNin:
			values, err := coerceList(field, m.Value)
			if err != nil {
				return nil, err
			}
			conds = append(conds, Condition{Field: field, Op: op, Values: values})
		case comparisonOps[op]:
			if field.Kind == KindIDSet || field.Kind == KindBool {
				return nil, invalidf("operator %s is not supported on %q", op, field.Name)
			}
			value, err := coerce(field, m.Value)
			if err != nil {
				return nil, err
			}
			conds = append(conds, Condition{Field: field, Op: op, Value: value})
		default:
			return nil, invalidf("unsupported operator %q on %q", m.Key, field.Name)
		}
	}
	return conds, nil
}

// operatorDocument reports whether raw is an object whose keys are all
// operators, e.g. {"$in": [...]}.
func operatorDocument(raw any) ([]member, bool) {
	obj, ok := raw.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil, false
	}
	for k := range obj {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return sortedMembers(obj), true
}

func coerceList(field Field, raw any) ([]any, error) {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	default:
		return nil, invalidf("%q expects an array operand", field.Name)
	}

	values := make([]any, 0, len(items))
	for _, item := range items {
		value, err := coerce(field, item)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func coerce(field Field, raw any) (any, error) {
	switch field.Kind {
	case KindString, KindIDSet:
		s, ok := raw.(string)
		if !ok {
			return nil, invalidf("%q expects a string value", field.Name)
		}
		return s, nil
	case KindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
		return nil, invalidf("%q expects a boolean value", field.Name)
	case KindTime:
		t, err := models.ParseTimestamp(raw)
		if err != nil {
			return nil, invalidf("%q expects a date value", field.Name)
		}
		return t, nil
	}
	return nil, invalidf("field %q cannot be filtered", field.Name)
}

// number extracts a float from the numeric shapes produced by JSON decoding
// and query strings.
func number(raw any) (float64, bool) {
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidQuery}, args...)...)
}
