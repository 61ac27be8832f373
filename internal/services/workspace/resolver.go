package workspace

import (
	"context"
)

type contextKey string

const (
	overrideContextKey  contextKey = "workspace_override"
	principalContextKey contextKey = "principal"
)

// Principal carries the authenticated identity's workspace pointers. The
// "instance" pair is the second hierarchical scope some deployments layer
// on top of workspaces.
type Principal struct {
	Subject          string
	CurrentWorkspace string
	DefaultWorkspace string
	CurrentInstance  string
	DefaultInstance  string
}

// WithOverride stores the explicit per-request workspace switch signal.
func WithOverride(ctx context.Context, identifier string) context.Context {
	return context.WithValue(ctx, overrideContextKey, identifier)
}

func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PointerSelector extracts a (current, default) pointer pair from a
// principal; the precedence logic is shared across scopes.
type PointerSelector func(p *Principal) (current string, fallback string)

// Resolver derives the active workspace identifier from request-scoped
// signals: explicit override first, then the principal's current pointer,
// then its default. No match means no workspace context at all.
type Resolver struct {
	selector PointerSelector
}

func NewWorkspaceResolver() *Resolver {
	return &Resolver{selector: func(p *Principal) (string, string) {
		return p.CurrentWorkspace, p.DefaultWorkspace
	}}
}

func NewInstanceResolver() *Resolver {
	return &Resolver{selector: func(p *Principal) (string, string) {
		return p.CurrentInstance, p.DefaultInstance
	}}
}

// Identifier returns the resolved identifier and whether one was found.
func (r *Resolver) Identifier(ctx context.Context) (string, bool) {
	if override, ok := ctx.Value(overrideContextKey).(string); ok && override != "" {
		return override, true
	}
	principal, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok || principal == nil {
		return "", false
	}
	current, fallback := r.selector(principal)
	if current != "" {
		return current, true
	}
	if fallback != "" {
		return fallback, true
	}
	return "", false
}
