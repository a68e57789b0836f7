package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/raggate/raggate/internal/workspace"
)

// Params is the construction template for Store. The lifecycle manager holds
// one Params and stamps out one Store per workspace; only the workspace field
// differs between tenants.
type Params struct {
	// ConnString is the PostgreSQL DSN shared by all workspaces.
	ConnString string

	// Embedder produces vectors for inserted chunks and queries.
	Embedder Embedder

	// EmbeddingDim must match the vector column width in the schema.
	EmbeddingDim int

	// ChunkSize bounds chunk length in bytes. Default 1200.
	ChunkSize int

	Logger *slog.Logger
}

// Store is the PostgreSQL/pgvector-backed engine for one workspace.
// All rows it reads and writes are tagged with its workspace key.
//
// Store is safe for concurrent use once InitializeStorages has returned.
type Store struct {
	workspace string
	params    Params
	logger    *slog.Logger

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

// New constructs a Store bound to the given workspace. Construction is cheap
// and performs no I/O; call InitializeStorages before using storage
// operations.
func New(params Params, ws string) *Store {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if params.ChunkSize <= 0 {
		params.ChunkSize = 1200
	}
	return &Store{
		workspace: ws,
		params:    params,
		logger:    logger.With("workspace", ws),
	}
}

// Workspace returns the workspace key this store is bound to.
func (s *Store) Workspace() string {
	return s.workspace
}

// InitializeStorages opens the connection pool and verifies connectivity.
// Calling it again after success is a no-op.
func (s *Store) InitializeStorages(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		return nil
	}

	pool, err := pgxpool.New(ctx, s.params.ConnString)
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("pinging database: %w", err)
	}

	s.pool = pool
	s.logger.Info("storages initialized")
	return nil
}

// CheckAndMigrateData claims legacy rows that predate workspace tagging.
// Rows with an empty workspace column belong to the era before multi-tenancy
// and are adopted by the default workspace. Other workspaces have nothing to
// migrate.
func (s *Store) CheckAndMigrateData(ctx context.Context) error {
	if s.workspace != workspace.Default {
		return nil
	}

	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tag, err := pool.Exec(ctx,
		`UPDATE rag_chunks SET workspace = $1 WHERE workspace = ''`,
		s.workspace)
	if err != nil {
		return fmt.Errorf("migrating legacy rows: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		s.logger.Info("migrated legacy rows into default workspace", "rows", n)
	}
	return nil
}

// FinalizeStorages closes the connection pool. Safe to call more than once.
func (s *Store) FinalizeStorages(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool == nil {
		return nil
	}
	s.pool.Close()
	s.pool = nil
	s.logger.Info("storages finalized")
	return nil
}

// InsertText chunks content, embeds each chunk and upserts the rows.
// Re-inserting the same source replaces its previous chunks.
func (s *Store) InsertText(ctx context.Context, source, content string) error {
	if content == "" {
		return ErrEmptyContent
	}

	pool, err := s.getPool()
	if err != nil {
		return err
	}

	chunks := splitChunks(content, s.params.ChunkSize)
	vectors, err := s.params.Embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding %d chunks from %q: %w", len(chunks), source, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Replace semantics: drop the previous chunks of this source first.
	if _, err := tx.Exec(ctx,
		`DELETE FROM rag_chunks WHERE workspace = $1 AND source = $2`,
		s.workspace, source); err != nil {
		return fmt.Errorf("clearing previous chunks of %q: %w", source, err)
	}

	for i, chunk := range chunks {
		vec := pgvector.NewVector(vectors[i])
		if _, err := tx.Exec(ctx,
			`INSERT INTO rag_chunks (id, workspace, source, seq, content, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.NewString(), s.workspace, source, i, chunk, vec, time.Now()); err != nil {
			return fmt.Errorf("inserting chunk %d of %q: %w", i, source, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing insert of %q: %w", source, err)
	}

	s.logger.Debug("inserted document", "source", source, "chunks", len(chunks))
	return nil
}

// Query embeds the query text and returns the topK most similar chunks of
// this workspace, ordered by cosine similarity.
func (s *Store) Query(ctx context.Context, query string, opts ...QueryOption) ([]Result, error) {
	cfg := buildQueryConfig(opts)

	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	vectors, err := s.params.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	rows, err := pool.Query(queryCtx,
		`SELECT id, source, content, 1 - (embedding <=> $1) AS score, created_at
		 FROM rag_chunks
		 WHERE workspace = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(vectors[0]), s.workspace, cfg.topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Source, &r.Content, &r.Score, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading result rows: %w", err)
	}

	return results, nil
}

// DeleteBySource removes all chunks ingested from source.
func (s *Store) DeleteBySource(ctx context.Context, source string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, err := pool.Exec(ctx,
		`DELETE FROM rag_chunks WHERE workspace = $1 AND source = $2`,
		s.workspace, source); err != nil {
		return fmt.Errorf("deleting chunks of %q: %w", source, err)
	}
	return nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pool == nil {
		return nil, ErrNotInitialized
	}
	return s.pool, nil
}

// splitChunks breaks content into pieces of at most size bytes, preferring
// line boundaries near the limit. Cuts never land inside a multibyte rune:
// the chunks go into a Postgres TEXT column, which rejects invalid UTF-8.
func splitChunks(content string, size int) []string {
	if len(content) <= size {
		return []string{content}
	}

	var chunks []string
	for len(content) > 0 {
		if len(content) <= size {
			chunks = append(chunks, content)
			break
		}

		cut := size
		// Look back for a natural boundary within the last quarter.
		for i := size; i > size*3/4; i-- {
			if content[i-1] == '\n' {
				cut = i
				break
			}
		}
		// Back a hard cut up to the start of the rune it would bisect.
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		if cut == 0 {
			// size is smaller than the first rune; emit it whole.
			_, cut = utf8.DecodeRuneInString(content)
		}
		chunks = append(chunks, content[:cut])
		content = content[cut:]
	}
	return chunks
}
