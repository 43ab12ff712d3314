package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fieldlens/reporting/internal/domain"
)

// Predicate is the structured form of one compiled filter. Values live in
// Args and are only bound to placeholders when the plan is serialized;
// fragment text never contains a filter value.
type Predicate struct {
	Column   string
	Operator domain.FilterOperator
	Args     []any
	Logic    domain.FilterLogic
}

// CompileFilter turns one declarative filter into a predicate. qualifier is
// the table (or alias) the filtered column lives on; empty leaves the column
// unqualified.
func CompileFilter(f domain.Filter, qualifier string) (Predicate, error) {
	if err := f.Validate(); err != nil {
		return Predicate{}, err
	}

	column := f.Field
	if qualifier != "" {
		column = qualifier + "." + f.Field
	}

	logic := f.Logic
	if logic == "" {
		logic = domain.LogicAnd
	}

	p := Predicate{Column: column, Operator: f.Operator, Logic: logic}

	switch f.Operator {
	case domain.OpIsNull, domain.OpIsNotNull:
		// No parameters.

	case domain.OpEquals, domain.OpNotEquals,
		domain.OpGreaterThan, domain.OpGreaterThanOrEqual,
		domain.OpLessThan, domain.OpLessThanOrEqual:
		p.Args = []any{f.Value.Scalar()}

	case domain.OpContains, domain.OpNotContains:
		p.Args = []any{"%" + escapeLike(f.Value.Scalar().(string)) + "%"}

	case domain.OpStartsWith:
		p.Args = []any{escapeLike(f.Value.Scalar().(string)) + "%"}

	case domain.OpEndsWith:
		p.Args = []any{"%" + escapeLike(f.Value.Scalar().(string))}

	case domain.OpBetween, domain.OpNotBetween:
		lower, upper, err := f.RangeBounds()
		if err != nil {
			return Predicate{}, err
		}
		p.Args = []any{lower, upper}

	case domain.OpIn, domain.OpNotIn:
		p.Args = []any{f.Value.List()}

	case domain.OpRegex:
		pattern := f.Value.Scalar().(string)
		if _, err := regexp.Compile(pattern); err != nil {
			return Predicate{}, &domain.FilterValueError{Field: f.Field, Reason: fmt.Sprintf("invalid pattern: %v", err)}
		}
		p.Args = []any{pattern}

	default:
		return Predicate{}, domain.NewConfigurationError(
			fmt.Errorf("%w: %q", domain.ErrUnsupportedOperator, f.Operator))
	}

	return p, nil
}

// escapeLike neutralizes pattern metacharacters in user values so contains
// and anchored matches stay literal.
func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

// predicateSQL serializes one predicate against the builder, binding its
// args to fresh placeholders.
func predicateSQL(p Predicate, b *sqlBuilder) string {
	switch p.Operator {
	case domain.OpEquals:
		return fmt.Sprintf("%s = %s", p.Column, b.bind(p.Args[0]))
	case domain.OpNotEquals:
		return fmt.Sprintf("%s <> %s", p.Column, b.bind(p.Args[0]))
	case domain.OpContains:
		return fmt.Sprintf("%s ILIKE %s", p.Column, b.bind(p.Args[0]))
	case domain.OpNotContains:
		return fmt.Sprintf("%s NOT ILIKE %s", p.Column, b.bind(p.Args[0]))
	case domain.OpStartsWith, domain.OpEndsWith:
		return fmt.Sprintf("%s ILIKE %s", p.Column, b.bind(p.Args[0]))
	case domain.OpIsNull:
		return p.Column + " IS NULL"
	case domain.OpIsNotNull:
		return p.Column + " IS NOT NULL"
	case domain.OpGreaterThan:
		return fmt.Sprintf("%s > %s", p.Column, b.bind(p.Args[0]))
	case domain.OpGreaterThanOrEqual:
		return fmt.Sprintf("%s >= %s", p.Column, b.bind(p.Args[0]))
	case domain.OpLessThan:
		return fmt.Sprintf("%s < %s", p.Column, b.bind(p.Args[0]))
	case domain.OpLessThanOrEqual:
		return fmt.Sprintf("%s <= %s", p.Column, b.bind(p.Args[0]))
	case domain.OpBetween:
		return fmt.Sprintf("%s BETWEEN %s AND %s", p.Column, b.bind(p.Args[0]), b.bind(p.Args[1]))
	case domain.OpNotBetween:
		return fmt.Sprintf("%s NOT BETWEEN %s AND %s", p.Column, b.bind(p.Args[0]), b.bind(p.Args[1]))
	case domain.OpIn:
		return fmt.Sprintf("%s = ANY(%s)", p.Column, b.bind(p.Args[0]))
	case domain.OpNotIn:
		return fmt.Sprintf("NOT (%s = ANY(%s))", p.Column, b.bind(p.Args[0]))
	case domain.OpRegex:
		return fmt.Sprintf("%s ~ %s", p.Column, b.bind(p.Args[0]))
	}
	return ""
}
