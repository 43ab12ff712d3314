package query

import (
	"fmt"
	"strings"

	"github.com/fieldlens/reporting/internal/domain"
)

// ProjectionKind tags a projection as a grouping column or an aggregate.
type ProjectionKind int

const (
	ProjectionDimension ProjectionKind = iota
	ProjectionMeasure
)

// Projection is one selected column in structured form. Serialization to SQL
// happens only at the plan boundary so bucket bounds stay bound parameters.
type Projection struct {
	Kind        ProjectionKind
	Column      string
	Aggregate   domain.AggregationFunc
	Granularity domain.TimeGranularity
	Buckets     []domain.Bucket
	Alias       string
}

// Join is one deduplicated join in the plan. Alias is set when the table has
// been rewritten to a physical counterpart, so qualified column references
// keep resolving against the logical name.
type Join struct {
	Table       string
	Alias       string
	Kind        domain.JoinKind
	LeftColumn  string
	RightColumn string
}

// Ordering sorts the result by a projected column, addressed by its
// one-based select-list position.
type Ordering struct {
	Ordinal   int
	Direction domain.SortDirection
}

// QueryPlan is the core-internal build artifact handed to the execution
// layer. It is never persisted.
type QueryPlan struct {
	Table         string
	OriginalTable string
	Projections   []Projection
	Joins         []Join
	Predicates    []Predicate
	GroupBy       []int
	OrderBy       []Ordering
	Limit         int
	Offset        int
}

// sqlBuilder collects bound arguments and hands out $n placeholders.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) bind(value any) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

// SQL serializes the plan to a parameterized statement. Identical plans
// always produce identical text and argument order.
func (p *QueryPlan) SQL() (string, []any) {
	b := &sqlBuilder{}
	var sb strings.Builder

	sb.WriteString("SELECT ")
	for i, proj := range p.Projections {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(projectionSQL(proj, b))
		sb.WriteString(` AS "`)
		sb.WriteString(proj.Alias)
		sb.WriteString(`"`)
	}

	sb.WriteString(" ")
	sb.WriteString(p.fromSQL(b))

	if len(p.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		for i, ordinal := range p.GroupBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%d", ordinal)
		}
	}

	if len(p.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, ord := range p.OrderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			direction := "ASC"
			if ord.Direction == domain.SortDesc {
				direction = "DESC"
			}
			fmt.Fprintf(&sb, "%d %s NULLS LAST", ord.Ordinal, direction)
		}
	}

	if p.Limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(b.bind(p.Limit))
	}
	if p.Offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(b.bind(p.Offset))
	}

	return sb.String(), b.args
}

// CountSQL serializes the unclipped row count for the same source, joins and
// predicates. With grouping present it counts groups, not underlying rows.
func (p *QueryPlan) CountSQL() (string, []any) {
	b := &sqlBuilder{}

	if len(p.GroupBy) == 0 {
		return "SELECT COUNT(*) " + p.fromSQL(b), b.args
	}

	var inner strings.Builder
	inner.WriteString("SELECT ")
	for i, ordinal := range p.GroupBy {
		proj := p.Projections[ordinal-1]
		if i > 0 {
			inner.WriteString(", ")
		}
		inner.WriteString(projectionSQL(proj, b))
	}
	inner.WriteString(" ")
	inner.WriteString(p.fromSQL(b))
	inner.WriteString(" GROUP BY ")
	for i := range p.GroupBy {
		if i > 0 {
			inner.WriteString(", ")
		}
		fmt.Fprintf(&inner, "%d", i+1)
	}

	return "SELECT COUNT(*) FROM (" + inner.String() + ") grouped", b.args
}

// fromSQL emits the FROM, JOIN and WHERE clauses.
func (p *QueryPlan) fromSQL(b *sqlBuilder) string {
	var sb strings.Builder
	sb.WriteString("FROM ")
	sb.WriteString(p.Table)
	if p.OriginalTable != "" && p.OriginalTable != p.Table {
		sb.WriteString(" ")
		sb.WriteString(p.OriginalTable)
	}

	for _, join := range p.Joins {
		switch join.Kind {
		case domain.JoinLeft:
			sb.WriteString(" LEFT JOIN ")
		default:
			sb.WriteString(" JOIN ")
		}
		sb.WriteString(join.Table)
		if join.Alias != "" && join.Alias != join.Table {
			sb.WriteString(" ")
			sb.WriteString(join.Alias)
		}
		fmt.Fprintf(&sb, " ON %s = %s", join.RightColumn, join.LeftColumn)
	}

	if where := p.whereSQL(b); where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	return sb.String()
}

// whereSQL combines predicates: consecutive or-logic predicates group with
// their predecessor inside parentheses, groups join with AND.
func (p *QueryPlan) whereSQL(b *sqlBuilder) string {
	if len(p.Predicates) == 0 {
		return ""
	}

	var groups [][]string
	for _, pred := range p.Predicates {
		fragment := predicateSQL(pred, b)
		if pred.Logic == domain.LogicOr && len(groups) > 0 {
			last := len(groups) - 1
			groups[last] = append(groups[last], fragment)
			continue
		}
		groups = append(groups, []string{fragment})
	}

	parts := make([]string, 0, len(groups))
	for _, group := range groups {
		if len(group) == 1 {
			parts = append(parts, group[0])
			continue
		}
		parts = append(parts, "("+strings.Join(group, " OR ")+")")
	}
	return strings.Join(parts, " AND ")
}

func projectionSQL(p Projection, b *sqlBuilder) string {
	if p.Kind == ProjectionMeasure {
		switch p.Aggregate {
		case domain.AggCount:
			return "COUNT(*)"
		case domain.AggMedian:
			return fmt.Sprintf("percentile_cont(0.5) WITHIN GROUP (ORDER BY %s)", p.Column)
		case domain.AggStdDev:
			return fmt.Sprintf("stddev_samp(%s)", p.Column)
		default:
			return fmt.Sprintf("%s(%s)", p.Aggregate, p.Column)
		}
	}

	if len(p.Buckets) > 0 {
		var sb strings.Builder
		sb.WriteString("CASE")
		for _, bucket := range p.Buckets {
			fmt.Fprintf(&sb, " WHEN %s >= %s AND %s < %s THEN %s",
				p.Column, b.bind(bucket.Lower), p.Column, b.bind(bucket.Upper), b.bind(bucket.Label))
		}
		sb.WriteString(" ELSE ")
		sb.WriteString(b.bind("other"))
		sb.WriteString(" END")
		return sb.String()
	}

	if p.Granularity != "" {
		// Granularity comes from a closed set, never from user values.
		return fmt.Sprintf("date_trunc('%s', %s)", p.Granularity, p.Column)
	}

	return p.Column
}
