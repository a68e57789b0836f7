// Package workspace carries the current tenant workspace through a request.
//
// A workspace is an opaque, case-sensitive string identifying one isolated
// data partition. The value travels on the context.Context of the request, so
// concurrent requests see independent values and goroutines spawned from a
// request inherit the workspace that was active when they were created. Code
// that must outlive the request should resolve a concrete instance up front
// (see tenant.EngineProxy.Bound) instead of holding the context.
package workspace

import "context"

// Default is the reserved workspace used when no tenant context is set.
const Default = "default"

type ctxKey struct{}

// With returns a child context carrying the given workspace.
func With(ctx context.Context, ws string) context.Context {
	return context.WithValue(ctx, ctxKey{}, ws)
}

// From returns the workspace carried by ctx, or Default if none was set.
func From(ctx context.Context) string {
	if ws, ok := ctx.Value(ctxKey{}).(string); ok && ws != "" {
		return ws
	}
	return Default
}
