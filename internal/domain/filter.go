package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FilterOperator enumerates the closed set of supported filter operators.
type FilterOperator string

const (
	OpEquals             FilterOperator = "equals"
	OpNotEquals          FilterOperator = "not_equals"
	OpContains           FilterOperator = "contains"
	OpNotContains        FilterOperator = "not_contains"
	OpStartsWith         FilterOperator = "starts_with"
	OpEndsWith           FilterOperator = "ends_with"
	OpIsNull             FilterOperator = "is_null"
	OpIsNotNull          FilterOperator = "is_not_null"
	OpGreaterThan        FilterOperator = "greater_than"
	OpGreaterThanOrEqual FilterOperator = "greater_than_or_equal"
	OpLessThan           FilterOperator = "less_than"
	OpLessThanOrEqual    FilterOperator = "less_than_or_equal"
	OpBetween            FilterOperator = "between"
	OpNotBetween         FilterOperator = "not_between"
	OpIn                 FilterOperator = "in"
	OpNotIn              FilterOperator = "not_in"
	OpRegex              FilterOperator = "regex"
)

// Known reports whether the operator belongs to the closed set.
func (op FilterOperator) Known() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith, OpEndsWith,
		OpIsNull, OpIsNotNull, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan,
		OpLessThanOrEqual, OpBetween, OpNotBetween, OpIn, OpNotIn, OpRegex:
		return true
	}
	return false
}

// FilterLogic declares how a filter combines with the preceding one.
type FilterLogic string

const (
	LogicAnd FilterLogic = "and"
	LogicOr  FilterLogic = "or"
)

// ValueKind tags the variant held by a FilterValue.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueScalar
	ValueList
	ValueRange
)

// FilterValue is a closed tagged union over the shapes a filter value can
// take: absent (null checks), a single scalar, a list (membership), or a
// two-bound range. The zero value is the absent variant.
type FilterValue struct {
	kind   ValueKind
	scalar any
	list   []any
	lower  any
	upper  any
}

// NoFilterValue returns the absent variant, used by null-check operators.
func NoFilterValue() FilterValue { return FilterValue{} }

// ScalarValue wraps a single comparison value.
func ScalarValue(v any) FilterValue {
	return FilterValue{kind: ValueScalar, scalar: v}
}

// ListValue wraps a membership list.
func ListValue(vs ...any) FilterValue {
	return FilterValue{kind: ValueList, list: vs}
}

// RangeValue wraps an inclusive two-bound range.
func RangeValue(lower, upper any) FilterValue {
	return FilterValue{kind: ValueRange, lower: lower, upper: upper}
}

func (v FilterValue) Kind() ValueKind { return v.kind }

// Scalar returns the scalar variant's value.
func (v FilterValue) Scalar() any { return v.scalar }

// List returns the list variant's values.
func (v FilterValue) List() []any { return v.list }

// Bounds returns the range variant's lower and upper bound.
func (v FilterValue) Bounds() (any, any) { return v.lower, v.upper }

// MarshalJSON renders the union in its wire shape: null, a scalar, an array,
// or a {"from","to"} object.
func (v FilterValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueScalar:
		return json.Marshal(v.scalar)
	case ValueList:
		return json.Marshal(v.list)
	case ValueRange:
		return json.Marshal(map[string]any{"from": v.lower, "to": v.upper})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON picks the variant from the JSON shape. A two-element array is
// kept as a list; between-style operators decompose it into bounds later.
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*v = NoFilterValue()
		return nil
	}

	switch trimmed[0] {
	case '[':
		var list []any
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*v = ListValue(list...)
	case '{':
		var bounds struct {
			From any `json:"from"`
			To   any `json:"to"`
		}
		if err := json.Unmarshal(data, &bounds); err != nil {
			return err
		}
		*v = RangeValue(bounds.From, bounds.To)
	default:
		var scalar any
		if err := json.Unmarshal(data, &scalar); err != nil {
			return err
		}
		*v = ScalarValue(scalar)
	}
	return nil
}

// Filter is one declarative predicate over a data source field.
type Filter struct {
	DataSource       string           `json:"dataSource"`
	Field            string           `json:"field"`
	Operator         FilterOperator   `json:"operator"`
	Value            FilterValue      `json:"value"`
	Logic            FilterLogic      `json:"logic,omitempty"`
	RelationshipPath RelationshipPath `json:"relationshipPath,omitempty"`
}

// Validate rejects filters whose operator is unknown or whose value shape is
// inconsistent with the operator. Range bounds are ordered-checked here so a
// malformed filter fails before any plan is produced.
func (f Filter) Validate() error {
	if f.Field == "" {
		return Configurationf("filter is missing a field")
	}
	if !f.Operator.Known() {
		return NewConfigurationError(fmt.Errorf("%w: %q", ErrUnsupportedOperator, f.Operator))
	}
	if f.Logic != "" && f.Logic != LogicAnd && f.Logic != LogicOr {
		return Configurationf("filter on %q has unknown logic %q", f.Field, f.Logic)
	}
	if len(f.RelationshipPath) > 0 {
		if err := f.RelationshipPath.Validate(); err != nil {
			return err
		}
	}

	switch f.Operator {
	case OpIsNull, OpIsNotNull:
		if f.Value.Kind() != ValueNone {
			return &FilterValueError{Field: f.Field, Reason: "null checks take no value"}
		}
	case OpIn, OpNotIn:
		if f.Value.Kind() != ValueList || len(f.Value.List()) == 0 {
			return &FilterValueError{Field: f.Field, Reason: "membership filters need a non-empty list"}
		}
	case OpBetween, OpNotBetween:
		lower, upper, err := f.RangeBounds()
		if err != nil {
			return err
		}
		ordered, err := boundsOrdered(lower, upper)
		if err != nil {
			return &FilterValueError{Field: f.Field, Reason: err.Error()}
		}
		if !ordered {
			return NewConfigurationError(fmt.Errorf("%w: filter on %q", ErrInvalidFilterRange, f.Field))
		}
	case OpRegex, OpContains, OpNotContains, OpStartsWith, OpEndsWith:
		s, ok := f.Value.Scalar().(string)
		if f.Value.Kind() != ValueScalar || !ok || s == "" {
			return &FilterValueError{Field: f.Field, Reason: "pattern filters need a string value"}
		}
	default:
		if f.Value.Kind() != ValueScalar {
			return &FilterValueError{Field: f.Field, Reason: "comparison filters need a single value"}
		}
	}
	return nil
}

// RangeBounds decomposes the filter value into exactly two bounds. Accepts
// either the range variant or a two-element list.
func (f Filter) RangeBounds() (any, any, error) {
	switch f.Value.Kind() {
	case ValueRange:
		lower, upper := f.Value.Bounds()
		return lower, upper, nil
	case ValueList:
		list := f.Value.List()
		if len(list) == 2 {
			return list[0], list[1], nil
		}
	}
	return nil, nil, &FilterValueError{Field: f.Field, Reason: "range filters need exactly two bounds"}
}

// boundsOrdered reports whether lower <= upper. Bounds compare numerically
// when both parse as numbers, chronologically when both parse as timestamps,
// and lexically when both are plain strings.
func boundsOrdered(lower, upper any) (bool, error) {
	if lf, lok := asFloat(lower); lok {
		if uf, uok := asFloat(upper); uok {
			return lf <= uf, nil
		}
	}
	if lt, lok := asTime(lower); lok {
		if ut, uok := asTime(upper); uok {
			return !lt.After(ut), nil
		}
	}
	ls, lok := lower.(string)
	us, uok := upper.(string)
	if lok && uok {
		return ls <= us, nil
	}
	return false, fmt.Errorf("range bounds %v and %v are not comparable", lower, upper)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
