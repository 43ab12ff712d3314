package query

import (
	"fmt"

	"github.com/fieldlens/reporting/internal/domain"
)

// Builder assembles query plans from report configurations. It is a pure
// transformation: identical configurations always produce structurally
// identical plans, and no plan is ever executed here.
type Builder struct {
	graph *EntityGraph
}

// NewBuilder creates a builder over the given entity relationship graph.
func NewBuilder(graph *EntityGraph) *Builder {
	return &Builder{graph: graph}
}

// BuildPlan turns a validated report configuration into a query plan:
// base table, merged join chains, projections, compiled predicates,
// grouping, ordering and limits.
func (b *Builder) BuildPlan(cfg domain.ReportConfiguration) (*QueryPlan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	primary := cfg.PrimarySource()
	plan := &QueryPlan{Table: primary.Table}

	// Join chains for every dimension, measure and filter that lives on a
	// different entity than the primary source.
	for _, d := range cfg.Dimensions {
		if err := b.mergeJoins(plan, cfg, primary, d.DataSource, nil); err != nil {
			return nil, err
		}
	}
	for _, m := range cfg.Measures {
		if err := b.mergeJoins(plan, cfg, primary, m.DataSource, nil); err != nil {
			return nil, err
		}
	}
	for _, f := range cfg.Filters {
		if err := b.mergeJoins(plan, cfg, primary, f.DataSource, f.RelationshipPath); err != nil {
			return nil, err
		}
	}

	// Select list: one projection per dimension, then one per measure, each
	// aliased to its display name.
	for _, d := range cfg.Dimensions {
		source, _ := cfg.SourceByID(d.DataSource)
		plan.Projections = append(plan.Projections, Projection{
			Kind:        ProjectionDimension,
			Column:      source.Table + "." + d.Field,
			Granularity: d.Granularity,
			Buckets:     d.Buckets,
			Alias:       d.DisplayName,
		})
	}
	for _, m := range cfg.Measures {
		source, _ := cfg.SourceByID(m.DataSource)
		column := ""
		if m.Aggregation != domain.AggCount {
			column = source.Table + "." + m.Field
		}
		plan.Projections = append(plan.Projections, Projection{
			Kind:      ProjectionMeasure,
			Column:    column,
			Aggregate: m.Aggregation,
			Alias:     m.DisplayName,
		})
	}

	// Any aggregation forces grouping by every dimension projection;
	// selecting a dimension outside the group-by set is a builder defect.
	if len(cfg.Measures) > 0 {
		for i := range cfg.Dimensions {
			plan.GroupBy = append(plan.GroupBy, i+1)
		}
	}

	// Predicates: static base filters first, then the declared filter set.
	for _, ds := range cfg.DataSources {
		for _, f := range ds.BaseFilters {
			pred, err := CompileFilter(f, ds.Table)
			if err != nil {
				return nil, err
			}
			plan.Predicates = append(plan.Predicates, pred)
		}
	}
	for _, f := range cfg.Filters {
		qualifier, err := filterQualifier(cfg, primary, f)
		if err != nil {
			return nil, err
		}
		pred, err := CompileFilter(f, qualifier)
		if err != nil {
			return nil, err
		}
		plan.Predicates = append(plan.Predicates, pred)
	}

	// Sort entries address projections by display name.
	for _, s := range cfg.Sort {
		ordinal := 0
		for i, proj := range plan.Projections {
			if proj.Alias == s.Field {
				ordinal = i + 1
				break
			}
		}
		if ordinal == 0 {
			return nil, domain.Configurationf("sort references %q, which is not a projected column", s.Field)
		}
		direction := s.Direction
		if direction == "" {
			direction = domain.SortAsc
		}
		plan.OrderBy = append(plan.OrderBy, Ordering{Ordinal: ordinal, Direction: direction})
	}

	plan.Limit = cfg.Limit
	plan.Offset = cfg.Offset
	return plan, nil
}

// mergeJoins resolves the join chain from the primary source to the entity
// holding sourceID and merges it into the plan, deduplicating identical
// joins. An explicit relationship path on a filter takes precedence over
// graph resolution.
func (b *Builder) mergeJoins(plan *QueryPlan, cfg domain.ReportConfiguration, primary domain.DataSource, sourceID string, explicit domain.RelationshipPath) error {
	if sourceID == "" || sourceID == primary.ID {
		if len(explicit) == 0 {
			return nil
		}
	}

	path := explicit
	if len(path) == 0 {
		source, ok := cfg.SourceByID(sourceID)
		if !ok {
			return domain.NewConfigurationError(fmt.Errorf("%w: %q", domain.ErrUnknownDataSource, sourceID))
		}
		if source.Table == primary.Table {
			return nil
		}
		resolved, found := b.graph.Resolve(primary.Table, source.Table)
		if !found {
			return domain.NewConfigurationError(fmt.Errorf("%w: %s to %s",
				domain.ErrMissingRelationship, primary.Table, source.Table))
		}
		path = resolved
	} else if err := path.Validate(); err != nil {
		return err
	}

	for _, step := range path {
		join := Join{
			Table:       step.ToTable,
			Kind:        step.Kind,
			LeftColumn:  step.FromTable + "." + step.JoinField,
			RightColumn: step.ToTable + "." + step.ForeignField,
		}
		if join.Kind == "" {
			join.Kind = domain.JoinInner
		}
		if !containsJoin(plan.Joins, join) {
			plan.Joins = append(plan.Joins, join)
		}
	}
	return nil
}

func containsJoin(joins []Join, candidate Join) bool {
	for _, j := range joins {
		if j == candidate {
			return true
		}
	}
	return false
}

// filterQualifier picks the table a filter's column is read from: the end of
// its relationship path, its declared source, or the primary table.
func filterQualifier(cfg domain.ReportConfiguration, primary domain.DataSource, f domain.Filter) (string, error) {
	if len(f.RelationshipPath) > 0 {
		return f.RelationshipPath.Target(), nil
	}
	if f.DataSource == "" {
		return primary.Table, nil
	}
	source, ok := cfg.SourceByID(f.DataSource)
	if !ok {
		return "", domain.NewConfigurationError(fmt.Errorf("%w: %q", domain.ErrUnknownDataSource, f.DataSource))
	}
	return source.Table, nil
}
