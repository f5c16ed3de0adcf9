package weaviate

import (
	"fmt"
	"math"

	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"

	"talentrag/apps/backend/internal/vector"
)

var operators = map[vector.Operator]filters.WhereOperator{
	vector.OpEq:  filters.Equal,
	vector.OpNe:  filters.NotEqual,
	vector.OpGt:  filters.GreaterThan,
	vector.OpGte: filters.GreaterThanEqual,
	vector.OpLt:  filters.LessThan,
	vector.OpLte: filters.LessThanEqual,
}

// buildWhere translates a filter tree into a Weaviate where builder. Values
// are typed by the property's schema type, so an int property compared with
// 12.0 still uses valueInt. $in becomes an Or of Equal clauses and $nin an
// And of NotEqual clauses.
func buildWhere(w *vector.Where, types map[string]string) (*filters.WhereBuilder, error) {
	if w.Operator == vector.OpAnd {
		operands := make([]*filters.WhereBuilder, 0, len(w.Operands))
		for _, o := range w.Operands {
			b, err := buildWhere(o, types)
			if err != nil {
				return nil, err
			}
			operands = append(operands, b)
		}
		if len(operands) == 1 {
			return operands[0], nil
		}
		return filters.Where().WithOperator(filters.And).WithOperands(operands), nil
	}

	prop := PropertyName(w.Field)
	dataType := types[prop]

	if w.Operator.IsList() {
		values := vector.ListValues(w.Value)
		if len(values) == 0 {
			return nil, fmt.Errorf("%s on %s needs a non-empty list", w.Operator, w.Field)
		}
		op, join := filters.Equal, filters.Or
		if w.Operator == vector.OpNin {
			op, join = filters.NotEqual, filters.And
		}
		operands := make([]*filters.WhereBuilder, 0, len(values))
		for _, v := range values {
			b, err := leaf(prop, op, v, dataType)
			if err != nil {
				return nil, err
			}
			operands = append(operands, b)
		}
		if len(operands) == 1 {
			return operands[0], nil
		}
		return filters.Where().WithOperator(join).WithOperands(operands), nil
	}

	op, ok := operators[w.Operator]
	if !ok {
		return nil, fmt.Errorf("unsupported operator %q", w.Operator)
	}
	return leaf(prop, op, w.Value, dataType)
}

func leaf(prop string, op filters.WhereOperator, value any, dataType string) (*filters.WhereBuilder, error) {
	b := filters.Where().WithPath([]string{prop}).WithOperator(op)

	switch dataType {
	case vector.DataTypeInt:
		f, ok := vector.AsFloat(value)
		if !ok {
			return nil, fmt.Errorf("%s is an int property, got %T", prop, value)
		}
		if f != math.Trunc(f) {
			// compare against the fractional value on an int property
			return b.WithValueNumber(f), nil
		}
		return b.WithValueInt(int64(f)), nil
	case vector.DataTypeNumber:
		f, ok := vector.AsFloat(value)
		if !ok {
			return nil, fmt.Errorf("%s is a number property, got %T", prop, value)
		}
		return b.WithValueNumber(f), nil
	case vector.DataTypeBoolean:
		v, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%s is a boolean property, got %T", prop, value)
		}
		return b.WithValueBoolean(v), nil
	}

	switch v := value.(type) {
	case string:
		return b.WithValueText(v), nil
	case bool:
		return b.WithValueBoolean(v), nil
	}
	if f, ok := vector.AsFloat(value); ok {
		return b.WithValueNumber(f), nil
	}
	return nil, fmt.Errorf("unsupported filter value %T for %s", value, prop)
}
