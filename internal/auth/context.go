package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const scopeKey contextKey = "executionScope"

// Scope carries the company/program scoping facts supplied by the external
// permission layer. The engine consumes it as an implicit filter set and
// does not interpret it further.
type Scope struct {
	CompanyID uuid.UUID
	ProgramID uuid.UUID
}

// Empty reports whether the scope constrains nothing.
func (s Scope) Empty() bool {
	return s.CompanyID == uuid.Nil && s.ProgramID == uuid.Nil
}

// ContextWithScope returns a new context carrying the execution scope.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey, scope)
}

// ScopeFromContext retrieves the execution scope from the context, if any.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	if ctx == nil {
		return Scope{}, false
	}
	scope, ok := ctx.Value(scopeKey).(Scope)
	if !ok || scope.Empty() {
		return Scope{}, false
	}
	return scope, true
}
