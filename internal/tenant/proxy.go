package tenant

import (
	"context"

	"github.com/raggate/raggate/internal/document"
	"github.com/raggate/raggate/internal/rag"
	"github.com/raggate/raggate/internal/workspace"
)

// EngineProxy is a long-lived handle that resolves "the engine for the
// current workspace" on every call. Call sites hold one proxy and use it like
// a single-tenant engine; the workspace comes from the request context at the
// moment of each call.
//
// Resolution uses the synchronous Manager.Get path, so a proxy used before
// EnsureInitialized has completed for that workspace silently operates on a
// fresh, uncached, uninitialized engine. That is a documented sharp edge of
// the contract, not something the proxy papers over: callers must run
// EnsureInitialized during request setup. The HTTP auth middleware does this
// for every authenticated request.
type EngineProxy struct {
	manager *Manager
}

// NewEngineProxy creates a proxy over the manager.
func NewEngineProxy(m *Manager) *EngineProxy {
	return &EngineProxy{manager: m}
}

// Bound resolves and returns the concrete engine for the current context
// once. Hand the result to work that outlives the request (background
// indexing, scheduled jobs); the proxy itself must not be used there because
// the ambient workspace is gone with the request context.
func (p *EngineProxy) Bound(ctx context.Context) rag.Engine {
	return p.manager.Get(workspace.From(ctx))
}

// InsertText forwards to the current workspace's engine.
func (p *EngineProxy) InsertText(ctx context.Context, source, content string) error {
	return p.Bound(ctx).InsertText(ctx, source, content)
}

// Query forwards to the current workspace's engine.
func (p *EngineProxy) Query(ctx context.Context, query string, opts ...rag.QueryOption) ([]rag.Result, error) {
	return p.Bound(ctx).Query(ctx, query, opts...)
}

// DeleteBySource forwards to the current workspace's engine.
func (p *EngineProxy) DeleteBySource(ctx context.Context, source string) error {
	return p.Bound(ctx).DeleteBySource(ctx, source)
}

// DocManagerProxy resolves "the document manager for the current workspace"
// on every call, like EngineProxy does for engines. Document managers have no
// initialization step, so there is no uninitialized sharp edge here.
type DocManagerProxy struct {
	manager *Manager
}

// NewDocManagerProxy creates a proxy over the manager.
func NewDocManagerProxy(m *Manager) *DocManagerProxy {
	return &DocManagerProxy{manager: m}
}

// Bound resolves and returns the concrete document manager for the current
// context once, for handing to work that outlives the request.
func (p *DocManagerProxy) Bound(ctx context.Context) *document.Manager {
	return p.manager.GetDocManager(workspace.From(ctx))
}

// Scan forwards to the current workspace's document manager.
func (p *DocManagerProxy) Scan(ctx context.Context) ([]string, error) {
	return p.Bound(ctx).Scan()
}

// Store forwards to the current workspace's document manager.
func (p *DocManagerProxy) Store(ctx context.Context, name string, content []byte) error {
	return p.Bound(ctx).Store(name, content)
}

// Read forwards to the current workspace's document manager.
func (p *DocManagerProxy) Read(ctx context.Context, name string) ([]byte, error) {
	return p.Bound(ctx).Read(name)
}

// Exists forwards to the current workspace's document manager.
func (p *DocManagerProxy) Exists(ctx context.Context, name string) bool {
	return p.Bound(ctx).Exists(name)
}

// MarkProcessed forwards to the current workspace's document manager.
func (p *DocManagerProxy) MarkProcessed(ctx context.Context, name string) error {
	return p.Bound(ctx).MarkProcessed(name)
}
