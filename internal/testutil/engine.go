package testutil

import (
	"context"
	"sync/atomic"

	"github.com/raggate/raggate/internal/rag"
)

// FakeEngine is an in-memory rag.Engine for tests. Call counters are atomic
// so tests can assert on them under concurrency.
type FakeEngine struct {
	WorkspaceKey string

	// Error configuration
	InitErr     error
	MigrateErr  error
	FinalizeErr error
	InsertErr   error
	QueryErr    error

	// Canned query results
	QueryResults []rag.Result

	// Call tracking
	InitCalls     atomic.Int64
	MigrateCalls  atomic.Int64
	FinalizeCalls atomic.Int64
	InsertCalls   atomic.Int64
	QueryCalls    atomic.Int64
	DeleteCalls   atomic.Int64

	// InitStarted is closed-over hook support: when non-nil it is invoked at
	// the start of InitializeStorages, letting tests block initialization to
	// widen race windows.
	InitStarted func()
}

var _ rag.Engine = (*FakeEngine)(nil)

func (f *FakeEngine) Workspace() string { return f.WorkspaceKey }

func (f *FakeEngine) InitializeStorages(ctx context.Context) error {
	f.InitCalls.Add(1)
	if f.InitStarted != nil {
		f.InitStarted()
	}
	if f.InitErr != nil {
		return f.InitErr
	}
	return ctx.Err()
}

func (f *FakeEngine) CheckAndMigrateData(ctx context.Context) error {
	f.MigrateCalls.Add(1)
	return f.MigrateErr
}

func (f *FakeEngine) FinalizeStorages(ctx context.Context) error {
	f.FinalizeCalls.Add(1)
	return f.FinalizeErr
}

func (f *FakeEngine) InsertText(ctx context.Context, source, content string) error {
	f.InsertCalls.Add(1)
	return f.InsertErr
}

func (f *FakeEngine) Query(ctx context.Context, query string, opts ...rag.QueryOption) ([]rag.Result, error) {
	f.QueryCalls.Add(1)
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}
	return f.QueryResults, nil
}

func (f *FakeEngine) DeleteBySource(ctx context.Context, source string) error {
	f.DeleteCalls.Add(1)
	return nil
}
