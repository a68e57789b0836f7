// Package app provides application initialization and dependency wiring.
//
// Setup builds the component graph — auth handler, embedder, construction
// factories, tenant lifecycle manager, HTTP server — from configuration, and
// App.Close tears it down: finalizing every initialized workspace before the
// process exits.
package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/raggate/raggate/db"
	"github.com/raggate/raggate/internal/api"
	"github.com/raggate/raggate/internal/auth"
	"github.com/raggate/raggate/internal/config"
	"github.com/raggate/raggate/internal/document"
	"github.com/raggate/raggate/internal/rag"
	"github.com/raggate/raggate/internal/tenant"
)

// App is the wired application container.
type App struct {
	Config  *config.Config
	Auth    *auth.Handler
	Manager *tenant.Manager
	Handler http.Handler

	logger *slog.Logger
}

// Setup creates and initializes the application.
// Call Close to release everything it initialized.
func Setup(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Shared schema first; per-workspace engines only open pools against it.
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, err
	}

	authHandler, err := auth.New(auth.Config{
		Secret:           cfg.TokenSecret,
		ExpireHours:      cfg.TokenExpireHours,
		GuestExpireHours: cfg.GuestExpireHours,
		Accounts:         cfg.AuthAccounts,
		UsersFilePath:    cfg.UsersFilePath,
	}, logger.With("component", "auth"))
	if err != nil {
		return nil, err
	}

	manager := newManager(cfg, logger)

	server, err := api.NewServer(api.ServerConfig{
		Logger:  logger.With("component", "api"),
		Auth:    authHandler,
		Manager: manager,
		Version: version,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		Config:  cfg,
		Auth:    authHandler,
		Manager: manager,
		Handler: server.Handler(),
		logger:  logger,
	}, nil
}

// newManager builds the tenant lifecycle manager with its fixed construction
// templates. Only the workspace key varies per tenant — single deployment
// config, many isolated data partitions.
func newManager(cfg *config.Config, logger *slog.Logger) *tenant.Manager {
	embedder := rag.NewHTTPEmbedder(cfg.EmbeddingEndpoint, cfg.EmbeddingModel, cfg.EmbeddingAPIKey)

	engineParams := rag.Params{
		ConnString:   cfg.PostgresConnectionString(),
		Embedder:     embedder,
		EmbeddingDim: cfg.EmbeddingDim,
		Logger:       logger.With("component", "rag"),
	}
	docParams := document.Params{
		InputRoot: cfg.InputDir,
	}

	return tenant.NewManager(
		func(workspace string) rag.Engine {
			return rag.New(engineParams, workspace)
		},
		func(workspace string) *document.Manager {
			return document.New(docParams, workspace)
		},
		logger.With("component", "tenant"),
	)
}

// Close gracefully shuts down all resources: every initialized workspace is
// finalized, failures logged per workspace without blocking the rest.
func (a *App) Close(ctx context.Context) {
	a.logger.Info("shutting down application")
	a.Manager.FinalizeAll(ctx)
}
