// Package tenant owns the per-workspace lifecycle of the RAG engine and its
// companion document manager.
//
// The Manager maps workspace keys to fully initialized engine instances. The
// first caller for a key performs lazy construction and the engine's
// asynchronous setup (storage initialization, then data migration) under a
// per-key lock; concurrent callers for the same key queue behind that lock
// and short-circuit when they find the published instance, while callers for
// different keys proceed in parallel. A partially constructed engine is never
// published: the ready table only ever holds instances whose setup completed
// successfully.
package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/raggate/raggate/internal/document"
	"github.com/raggate/raggate/internal/rag"
)

// EngineFactory constructs an engine for a workspace. Construction must be
// cheap and free of I/O; the manager drives setup separately.
type EngineFactory func(workspace string) rag.Engine

// DocFactory constructs a document manager for a workspace. Construction must
// be pure: the manager may race duplicate constructions and keep the last.
type DocFactory func(workspace string) *document.Manager

// Manager is the tenant lifecycle manager. Construction templates are fixed
// at creation; only the workspace key varies per tenant.
//
// Manager is safe for concurrent use.
type Manager struct {
	newEngine EngineFactory
	newDocs   DocFactory
	logger    *slog.Logger

	mu      sync.RWMutex // guards engines (the ready-instance table)
	engines map[string]rag.Engine

	docMu       sync.Mutex
	docManagers map[string]*document.Manager

	lockMu    sync.Mutex // guards initLocks only, never held during setup
	initLocks map[string]*semaphore.Weighted
}

// NewManager creates a Manager from the two construction factories.
func NewManager(newEngine EngineFactory, newDocs DocFactory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		newEngine:   newEngine,
		newDocs:     newDocs,
		logger:      logger,
		engines:     make(map[string]rag.Engine),
		docManagers: make(map[string]*document.Manager),
		initLocks:   make(map[string]*semaphore.Weighted),
	}
}

// Get returns the ready engine for workspace if one is cached.
//
// Otherwise it constructs a fresh engine and returns it WITHOUT caching it.
// The fresh engine has not run its storage setup; caching it would let a
// second caller observe a broken instance, so the design trades a wasted
// construction for safety. Taking this path indicates a call site that
// skipped EnsureInitialized, hence the warning.
func (m *Manager) Get(workspace string) rag.Engine {
	m.mu.RLock()
	engine, ok := m.engines[workspace]
	m.mu.RUnlock()
	if ok {
		return engine
	}

	m.logger.Warn("sync engine creation, storages may not be initialized",
		"workspace", workspace)
	return m.newEngine(workspace)
}

// EnsureInitialized makes sure the engine for workspace is constructed,
// its storages initialized and its data migrated, exactly once per key.
//
// Safe to call concurrently and repeatedly; callers for the same workspace
// serialize on a per-key lock, callers for different workspaces do not block
// each other. On failure nothing is published and the key remains retryable.
// Cancelling ctx while waiting or during setup releases the key.
func (m *Manager) EnsureInitialized(ctx context.Context, workspace string) error {
	// Fast path: entries are only published fully ready and only removed at
	// shutdown, so a hit here needs no lock.
	m.mu.RLock()
	_, ready := m.engines[workspace]
	m.mu.RUnlock()
	if ready {
		return nil
	}

	lock := m.lockFor(workspace)

	// Suspension point: same-key callers queue here.
	if err := lock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: workspace %q: %w", ErrInitialization, workspace, err)
	}
	defer lock.Release(1)

	// A caller that held the lock before us may have finished the work.
	m.mu.RLock()
	_, ready = m.engines[workspace]
	m.mu.RUnlock()
	if ready {
		return nil
	}

	m.logger.Info("initializing engine", "workspace", workspace)

	engine := m.newEngine(workspace)
	if err := engine.InitializeStorages(ctx); err != nil {
		m.logger.Error("storage initialization failed", "workspace", workspace, "error", err)
		return fmt.Errorf("%w: workspace %q: %w", ErrInitialization, workspace, err)
	}
	if err := engine.CheckAndMigrateData(ctx); err != nil {
		m.logger.Error("data migration failed", "workspace", workspace, "error", err)
		// The storages are already open and the engine is about to be dropped
		// unpublished; release them so failed attempts cannot leak pools.
		if ferr := engine.FinalizeStorages(ctx); ferr != nil {
			m.logger.Error("storage finalization after failed migration failed",
				"workspace", workspace, "error", ferr)
		}
		return fmt.Errorf("%w: workspace %q: %w", ErrInitialization, workspace, err)
	}

	m.mu.Lock()
	m.engines[workspace] = engine
	m.mu.Unlock()

	m.logger.Info("engine initialized", "workspace", workspace)

	m.docMu.Lock()
	if _, ok := m.docManagers[workspace]; !ok {
		m.docManagers[workspace] = m.newDocs(workspace)
	}
	m.docMu.Unlock()

	return nil
}

// GetDocManager returns the document manager for workspace, lazily
// constructing and caching it. Document managers have no storage setup, so no
// per-key lock is involved; construction is pure and last-write-wins.
func (m *Manager) GetDocManager(workspace string) *document.Manager {
	m.docMu.Lock()
	defer m.docMu.Unlock()

	dm, ok := m.docManagers[workspace]
	if !ok {
		dm = m.newDocs(workspace)
		m.docManagers[workspace] = dm
	}
	return dm
}

// FinalizeAll tears down every ready engine sequentially. A failing workspace
// is logged and skipped so it cannot block shutdown of the others;
// FinalizeAll itself never fails. The ready table is emptied afterwards.
func (m *Manager) FinalizeAll(ctx context.Context) {
	m.mu.Lock()
	engines := m.engines
	m.engines = make(map[string]rag.Engine)
	m.mu.Unlock()

	for workspace, engine := range engines {
		m.logger.Info("finalizing storage", "workspace", workspace)
		if err := engine.FinalizeStorages(ctx); err != nil {
			m.logger.Error("storage finalization failed", "workspace", workspace, "error", err)
		}
	}
}

// lockFor returns the per-key init lock for workspace, creating it if absent.
// The global lock is held only for this map access, never during setup, so a
// slow migration on one key cannot serialize unrelated tenants.
func (m *Manager) lockFor(workspace string) *semaphore.Weighted {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()

	lock, ok := m.initLocks[workspace]
	if !ok {
		lock = semaphore.NewWeighted(1)
		m.initLocks[workspace] = lock
	}
	return lock
}
