package optimizer

import (
	"fmt"

	"github.com/fieldlens/reporting/internal/domain"
	"github.com/fieldlens/reporting/internal/query"
)

// Tier classifies how well a query's filters align with a partitioned
// table's key structure.
type Tier string

const (
	TierNone    Tier = "none"
	TierBasic   Tier = "basic"
	TierGood    Tier = "good"
	TierOptimal Tier = "optimal"
)

// Advisory speedup estimates per tier. Static strings, not measurements.
var speedupByTier = map[Tier]string{
	TierOptimal: "50-100x",
	TierGood:    "10-25x",
	TierBasic:   "2-5x",
}

// Metadata describes the optimization decision for one execution.
type Metadata struct {
	Tier             Tier     `json:"tier"`
	EstimatedSpeedup string   `json:"estimatedSpeedup,omitempty"`
	Suggestions      []string `json:"suggestions,omitempty"`
	OriginalTable    string   `json:"originalTable,omitempty"`
}

// Optimizer rewrites query plans to use partition-optimized tables when the
// filter set makes the rewrite worthwhile.
type Optimizer struct {
	catalog *Catalog
}

// New creates an optimizer over the given partition catalog.
func New(catalog *Catalog) *Optimizer {
	return &Optimizer{catalog: catalog}
}

// Optimize classifies the filter set against the primary table's partition
// keys and, at tier basic or above, rewrites eligible table references in
// the plan to their partitioned counterparts. Only filters that constrain
// the primary entity directly count: a filter reaching another table
// through a relationship path never triggers a rewrite. The tier is
// monotonic: adding a filter of a kind not yet present can only raise it.
func (o *Optimizer) Optimize(plan *query.QueryPlan, filters []domain.Filter, primary domain.DataSource) Metadata {
	entry, ok := o.catalog.Lookup(plan.Table)
	if !ok {
		return Metadata{Tier: TierNone}
	}

	var hasPartitionKey, hasSubPartition bool
	var hasLower, hasUpper bool

	for _, f := range filters {
		if !constrainsPrimary(f, primary) {
			continue
		}
		switch f.Field {
		case entry.PartitionKey:
			if isPointConstraint(f.Operator) {
				hasPartitionKey = true
			}
		case entry.SubPartitionKey:
			if isPointConstraint(f.Operator) {
				hasSubPartition = true
			}
		case entry.RangeKey:
			switch f.Operator {
			case domain.OpBetween:
				hasLower, hasUpper = true, true
			case domain.OpGreaterThan, domain.OpGreaterThanOrEqual:
				hasLower = true
			case domain.OpLessThan, domain.OpLessThanOrEqual:
				hasUpper = true
			case domain.OpEquals:
				hasLower, hasUpper = true, true
			}
		}
	}
	hasRange := hasLower && hasUpper

	meta := Metadata{Tier: TierNone}
	switch {
	case hasPartitionKey && hasSubPartition && hasRange:
		meta.Tier = TierOptimal
	case hasPartitionKey && (hasSubPartition || hasRange):
		meta.Tier = TierGood
	case hasPartitionKey:
		meta.Tier = TierBasic
		if !hasSubPartition {
			meta.Suggestions = append(meta.Suggestions, missingFilterSuggestion(entry.SubPartitionKey))
		}
		if !hasRange {
			meta.Suggestions = append(meta.Suggestions, missingFilterSuggestion(entry.RangeKey))
		}
	default:
		meta.Suggestions = append(meta.Suggestions,
			fmt.Sprintf("add a filter on %s to route the query to %s", entry.PartitionKey, entry.Partitioned))
		return meta
	}

	meta.EstimatedSpeedup = speedupByTier[meta.Tier]
	o.rewrite(plan, &meta)
	return meta
}

// rewrite points every eligible table reference in the plan at its
// partitioned counterpart, recording the original name for observability.
// Rewritten tables are aliased back to their logical name so qualified
// column references keep resolving.
func (o *Optimizer) rewrite(plan *query.QueryPlan, meta *Metadata) {
	if entry, ok := o.catalog.Lookup(plan.Table); ok {
		plan.OriginalTable = plan.Table
		plan.Table = entry.Partitioned
		meta.OriginalTable = entry.Table
	}
	for i, join := range plan.Joins {
		if entry, ok := o.catalog.Lookup(join.Table); ok {
			plan.Joins[i].Alias = join.Table
			plan.Joins[i].Table = entry.Partitioned
		}
	}
}

// constrainsPrimary reports whether the filter applies to the primary entity
// itself rather than to a joined entity.
func constrainsPrimary(f domain.Filter, primary domain.DataSource) bool {
	if len(f.RelationshipPath) > 0 {
		return false
	}
	return f.DataSource == "" || f.DataSource == primary.ID
}

// isPointConstraint reports whether the operator pins a partition key to a
// discrete value set.
func isPointConstraint(op domain.FilterOperator) bool {
	return op == domain.OpEquals || op == domain.OpIn
}

func missingFilterSuggestion(field string) string {
	return fmt.Sprintf("add a filter on %s to narrow the partition scan", field)
}
