package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fieldlens/reporting/internal/auth"
	"github.com/fieldlens/reporting/internal/cache"
	"github.com/fieldlens/reporting/internal/domain"
	"github.com/fieldlens/reporting/internal/executor"
	"github.com/fieldlens/reporting/internal/optimizer"
	"github.com/fieldlens/reporting/internal/query"
	"github.com/fieldlens/reporting/internal/transform"
)

// Engine is the report execution orchestrator. One instance per process owns
// its collaborators explicitly; nothing is reached through ambient globals.
type Engine struct {
	builder    *query.Builder
	optimizer  *optimizer.Optimizer
	executor   executor.Executor
	cache      *cache.Manager
	defaultTTL time.Duration
}

// New wires an engine from its collaborators. defaultTTL applies when a
// configuration does not declare its own cache TTL.
func New(builder *query.Builder, opt *optimizer.Optimizer, exec executor.Executor, cacheManager *cache.Manager, defaultTTL time.Duration) *Engine {
	return &Engine{
		builder:    builder,
		optimizer:  opt,
		executor:   exec,
		cache:      cacheManager,
		defaultTTL: defaultTTL,
	}
}

// planParams is the fully-resolved parameter set hashed into the cache key.
// It includes scope-injected filters and the optimizer's table rewrite, so
// differently-scoped or differently-routed executions never share entries.
type planParams struct {
	SQL       string `json:"sql"`
	Args      []any  `json:"args"`
	CountSQL  string `json:"countSql"`
	CountArgs []any  `json:"countArgs"`
}

// ExecuteReport runs the full pipeline for one configuration:
// validate → scope → build → optimize → cache lookup → execute on miss →
// transform → cache store → annotate. The caller's configuration is never
// mutated.
func (e *Engine) ExecuteReport(ctx context.Context, cfg domain.ReportConfiguration) (domain.AggregatedData, error) {
	scoped := e.applyScope(ctx, cfg)

	plan, err := e.builder.BuildPlan(scoped)
	if err != nil {
		return domain.AggregatedData{}, err
	}

	meta := e.optimizer.Optimize(plan, scoped.Filters, scoped.PrimarySource())
	if meta.Tier == optimizer.TierBasic {
		for _, s := range meta.Suggestions {
			logSuggestion(scoped, s)
		}
	}

	sql, args := plan.SQL()
	countSQL, countArgs := plan.CountSQL()
	key := cache.Key(scoped.ID, planParams{SQL: sql, Args: args, CountSQL: countSQL, CountArgs: countArgs})

	ttl := scoped.CacheTTL
	if ttl == 0 {
		ttl = e.defaultTTL
	}

	payload, hit, err := e.cache.Do(ctx, scoped.ID, key, ttl, func(ctx context.Context) ([]byte, error) {
		data, err := e.executeAndTransform(ctx, plan, scoped)
		if err != nil {
			return nil, err
		}
		return json.Marshal(data)
	})
	if err != nil {
		return domain.AggregatedData{}, err
	}

	var data domain.AggregatedData
	if err := json.Unmarshal(payload, &data); err != nil {
		return domain.AggregatedData{}, &domain.TransformationError{
			Detail: fmt.Sprintf("cached payload for %s is not a valid result: %v", key, err),
		}
	}

	// Per-request facts are annotated after the payload round-trip so cached
	// entries stay request-independent.
	data.Metadata.CacheHit = hit
	data.Metadata.OptimizationTier = string(meta.Tier)
	data.Metadata.EstimatedSpeedup = meta.EstimatedSpeedup
	data.Metadata.Suggestions = meta.Suggestions
	return data, nil
}

// executeAndTransform is the cache-miss path: run the plan and its unclipped
// count, then reshape rows. Execution time covers only the store round
// trips, not the transform.
func (e *Engine) executeAndTransform(ctx context.Context, plan *query.QueryPlan, cfg domain.ReportConfiguration) (domain.AggregatedData, error) {
	start := time.Now()
	rows, err := e.executor.Execute(ctx, plan)
	if err != nil {
		return domain.AggregatedData{}, err
	}
	total, err := e.executor.Count(ctx, plan)
	if err != nil {
		return domain.AggregatedData{}, err
	}
	executionTime := time.Since(start)

	data, err := transform.Transform(rows, cfg)
	if err != nil {
		return domain.AggregatedData{}, err
	}

	data.Metadata.TotalCount = total
	data.Metadata.ExecutionTime = executionTime
	return data, nil
}

// applyScope appends the execution context's company/program facts as
// equality filters on the primary source. The copy keeps the caller's
// configuration immutable.
func (e *Engine) applyScope(ctx context.Context, cfg domain.ReportConfiguration) domain.ReportConfiguration {
	scope, ok := auth.ScopeFromContext(ctx)
	if !ok || len(cfg.DataSources) == 0 {
		return cfg
	}

	scoped := cfg
	scoped.Filters = append(append([]domain.Filter(nil), cfg.Filters...), scopeFilters(scope, cfg.PrimarySource())...)
	return scoped
}

func scopeFilters(scope auth.Scope, primary domain.DataSource) []domain.Filter {
	var filters []domain.Filter
	if scope.CompanyID != uuid.Nil {
		filters = append(filters, domain.Filter{
			DataSource: primary.ID,
			Field:      "company_id",
			Operator:   domain.OpEquals,
			Value:      domain.ScalarValue(scope.CompanyID.String()),
		})
	}
	if scope.ProgramID != uuid.Nil {
		filters = append(filters, domain.Filter{
			DataSource: primary.ID,
			Field:      "program_id",
			Operator:   domain.OpEquals,
			Value:      domain.ScalarValue(scope.ProgramID.String()),
		})
	}
	return filters
}

func logSuggestion(cfg domain.ReportConfiguration, suggestion string) {
	log.Printf("[OPTIMIZER] report %s: %s", cfg.ID, suggestion)
}
