package executor

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldlens/reporting/internal/domain"
	"github.com/fieldlens/reporting/internal/query"
)

// Row is one untyped result row: column name to value.
type Row map[string]any

// Executor runs query plans against the underlying data store.
type Executor interface {
	Execute(ctx context.Context, plan *query.QueryPlan) ([]Row, error)
	Count(ctx context.Context, plan *query.QueryPlan) (int64, error)
}

// PostgresExecutor serializes plans to parameterized SQL and runs them
// through a pgx pool. Value binding happens here, at the store boundary,
// never by string interpolation.
type PostgresExecutor struct {
	pool *pgxpool.Pool
}

// NewPostgresExecutor creates an executor over the given pool.
func NewPostgresExecutor(pool *pgxpool.Pool) *PostgresExecutor {
	return &PostgresExecutor{pool: pool}
}

// Execute runs the plan and returns its rows in result order.
func (e *PostgresExecutor) Execute(ctx context.Context, plan *query.QueryPlan) ([]Row, error) {
	sql, args := plan.SQL()

	rows, err := e.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &domain.ExecutionError{Op: "query", Err: err}
	}
	defer rows.Close()

	descriptions := rows.FieldDescriptions()
	columns := make([]string, len(descriptions))
	for i, d := range descriptions {
		columns[i] = d.Name
	}

	var result []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, &domain.ExecutionError{Op: "scan", Err: err}
		}
		row := make(Row, len(columns))
		for i, column := range columns {
			row[column] = values[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.ExecutionError{Op: "iterate", Err: err}
	}
	return result, nil
}

// Count runs the plan's unclipped count query.
func (e *PostgresExecutor) Count(ctx context.Context, plan *query.QueryPlan) (int64, error) {
	sql, args := plan.CountSQL()

	var total int64
	if err := e.pool.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, &domain.ExecutionError{Op: "count", Err: err}
	}
	return total, nil
}
