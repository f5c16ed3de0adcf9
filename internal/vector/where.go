package vector

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

type Operator string

const (
	OpEq  Operator = "$eq"
	OpNe  Operator = "$ne"
	OpGt  Operator = "$gt"
	OpGte Operator = "$gte"
	OpLt  Operator = "$lt"
	OpLte Operator = "$lte"
	OpIn  Operator = "$in"
	OpNin Operator = "$nin"
	OpAnd Operator = "$and"
)

var comparisonOps = map[Operator]bool{
	OpEq: true, OpNe: true, OpGt: true, OpGte: true,
	OpLt: true, OpLte: true, OpIn: true, OpNin: true,
}

// ParseOperator accepts "$gte" as well as "gte".
func ParseOperator(s string) (Operator, error) {
	op := Operator("$" + strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "$"))
	if !comparisonOps[op] {
		return "", fmt.Errorf("unknown operator %q", s)
	}
	return op, nil
}

// IsList reports whether the operator takes a list value.
func (o Operator) IsList() bool {
	return o == OpIn || o == OpNin
}

// Where is a backend-neutral boolean filter tree. Leaves carry Field and
// Value; an $and node carries Operands.
type Where struct {
	Operator Operator `json:"operator"`
	Field    string   `json:"field,omitempty"`
	Value    any      `json:"value,omitempty"`
	Operands []*Where `json:"operands,omitempty"`
}

func Clause(field string, op Operator, value any) *Where {
	return &Where{Operator: op, Field: field, Value: value}
}

// And combines clauses. Nil clauses are skipped, a single clause is returned
// as is and no clauses yield nil.
func And(clauses ...*Where) *Where {
	var ops []*Where
	for _, c := range clauses {
		if c != nil {
			ops = append(ops, c)
		}
	}
	switch len(ops) {
	case 0:
		return nil
	case 1:
		return ops[0]
	}
	return &Where{Operator: OpAnd, Operands: ops}
}

// Equals builds an exact-match filter over every key of match.
func Equals(match map[string]any) *Where {
	keys := make([]string, 0, len(match))
	for k := range match {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]*Where, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, Clause(k, OpEq, match[k]))
	}
	return And(clauses...)
}

// Matches evaluates the filter against metadata. A nil filter matches
// everything; a missing field never matches, not even for $ne.
func (w *Where) Matches(meta Metadata) bool {
	if w == nil {
		return true
	}
	if w.Operator == OpAnd {
		for _, op := range w.Operands {
			if !op.Matches(meta) {
				return false
			}
		}
		return true
	}

	got, ok := meta[w.Field]
	if !ok {
		return false
	}
	switch w.Operator {
	case OpEq:
		return equalScalar(got, w.Value)
	case OpNe:
		return !equalScalar(got, w.Value)
	case OpIn, OpNin:
		found := false
		for _, v := range ListValues(w.Value) {
			if equalScalar(got, v) {
				found = true
				break
			}
		}
		return found == (w.Operator == OpIn)
	case OpGt, OpGte, OpLt, OpLte:
		c, ok := compareScalar(got, w.Value)
		if !ok {
			return false
		}
		switch w.Operator {
		case OpGt:
			return c > 0
		case OpGte:
			return c >= 0
		case OpLt:
			return c < 0
		default:
			return c <= 0
		}
	}
	return false
}

// ListValues unpacks a slice of any element type. Non-slices return nil.
func ListValues(v any) []any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// AsFloat converts any Go numeric value to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func equalScalar(a, b any) bool {
	fa, okA := AsFloat(a)
	fb, okB := AsFloat(b)
	if okA && okB {
		return fa == fb
	}
	if !IsScalar(a) || !IsScalar(b) {
		return false
	}
	return a == b
}

func compareScalar(a, b any) (int, bool) {
	fa, okA := AsFloat(a)
	fb, okB := AsFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}
