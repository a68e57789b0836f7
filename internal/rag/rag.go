// Package rag provides the retrieval engine behind the gateway: a
// per-workspace document/vector store over PostgreSQL with pgvector.
//
// The tenant lifecycle manager drives each engine through three asynchronous
// setup/teardown steps: InitializeStorages, CheckAndMigrateData and
// FinalizeStorages. An engine constructed but not yet initialized is a valid
// object whose storage operations fail; it must not be shared.
package rag

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for engine operations.
var (
	// ErrNotInitialized indicates a storage operation ran before
	// InitializeStorages completed successfully.
	ErrNotInitialized = errors.New("rag: storages not initialized")

	// ErrEmptyContent indicates an insert with no usable text.
	ErrEmptyContent = errors.New("rag: empty content")
)

// Engine is the contract the lifecycle manager and the workspace-bound
// proxies consume. *Store implements it; tests substitute fakes.
type Engine interface {
	// InitializeStorages opens the engine's storage backends. It is expected
	// to be idempotent on success.
	InitializeStorages(ctx context.Context) error

	// CheckAndMigrateData reshapes legacy data after storages are open.
	CheckAndMigrateData(ctx context.Context) error

	// FinalizeStorages releases the engine's storage backends.
	FinalizeStorages(ctx context.Context) error

	// Workspace returns the workspace key this engine is bound to.
	Workspace() string

	// InsertText chunks, embeds and stores one document.
	InsertText(ctx context.Context, source, content string) error

	// Query embeds the query text and returns the most similar chunks.
	Query(ctx context.Context, query string, opts ...QueryOption) ([]Result, error)

	// DeleteBySource removes every chunk ingested from the given source.
	DeleteBySource(ctx context.Context, source string) error
}

// Result is one retrieved chunk with its similarity score in [0, 1].
type Result struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// queryConfig holds resolved query options.
type queryConfig struct {
	topK    int
	timeout time.Duration
}

// QueryOption customizes a Query call.
type QueryOption func(*queryConfig)

// WithTopK sets the maximum number of results (default 5).
func WithTopK(k int) QueryOption {
	return func(c *queryConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithTimeout bounds the vector search (default 10s).
func WithTimeout(d time.Duration) QueryOption {
	return func(c *queryConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildQueryConfig(opts []QueryOption) queryConfig {
	cfg := queryConfig{topK: 5, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
