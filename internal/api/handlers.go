package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/raggate/raggate/internal/auth"
	"github.com/raggate/raggate/internal/document"
	"github.com/raggate/raggate/internal/rag"
	"github.com/raggate/raggate/internal/tenant"
)

// maxUploadBytes bounds document uploads (32 MiB).
const maxUploadBytes = 32 << 20

// loginHandler serves password login and the auth-mode probe.
type loginHandler struct {
	auth   *auth.Handler
	logger *slog.Logger
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"access_token"`
	TokenType string `json:"token_type"`
}

func (h *loginHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", h.logger)
		return
	}

	if err := h.auth.VerifyPassword(req.Username, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials", h.logger)
		return
	}

	token, err := h.auth.CreateToken(req.Username, auth.RoleUser, auth.DefaultExpiry, nil)
	if err != nil {
		h.logger.Error("token creation failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not create token", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, TokenType: "bearer"}, h.logger)
}

func (h *loginHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"auth_configured": h.auth.HasAccounts(),
	}, h.logger)
}

// queryHandler serves retrieval queries through the engine proxy.
type queryHandler struct {
	engine *tenant.EngineProxy
	logger *slog.Logger
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

func (h *queryHandler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", h.logger)
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query is required", h.logger)
		return
	}

	var opts []rag.QueryOption
	if req.TopK > 0 {
		opts = append(opts, rag.WithTopK(req.TopK))
	}

	results, err := h.engine.Query(r.Context(), req.Query, opts...)
	if err != nil {
		h.logger.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query_failed", "retrieval failed", h.logger)
		return
	}
	if results == nil {
		results = []rag.Result{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results}, h.logger)
}

// documentHandler serves ingestion through the proxies.
type documentHandler struct {
	engine *tenant.EngineProxy
	docs   *tenant.DocManagerProxy
	logger *slog.Logger
}

type insertTextRequest struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

func (h *documentHandler) insertText(w http.ResponseWriter, r *http.Request) {
	var req insertTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", h.logger)
		return
	}
	if req.Source == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "source and content are required", h.logger)
		return
	}

	if err := h.engine.InsertText(r.Context(), req.Source, req.Content); err != nil {
		h.logger.Error("text insertion failed", "source", req.Source, "error", err)
		writeError(w, http.StatusInternalServerError, "insert_failed", "document insertion failed", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "inserted", "source": req.Source}, h.logger)
}

// upload stores the raw body as a file in the workspace's input directory,
// then indexes its content. Binary formats are stored for later pipeline
// processing but only text-like files are indexed inline.
func (h *documentHandler) upload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" || filepath.Base(name) != name {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid document name", h.logger)
		return
	}

	content, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "could not read body", h.logger)
		return
	}
	if len(content) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "document exceeds upload limit", h.logger)
		return
	}

	ctx := r.Context()
	dm := h.docs.Bound(ctx)
	if !dm.Supported(name) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_type", "unsupported file extension", h.logger)
		return
	}

	if err := dm.Store(name, content); err != nil {
		h.logger.Error("document store failed", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "store_failed", "could not store document", h.logger)
		return
	}

	indexed := false
	switch filepath.Ext(name) {
	case ".txt", ".md", ".csv", ".json", ".html":
		if err := h.engine.InsertText(ctx, name, string(content)); err != nil {
			h.logger.Error("document indexing failed", "name", name, "error", err)
			writeError(w, http.StatusInternalServerError, "insert_failed", "document stored but indexing failed", h.logger)
			return
		}
		if err := dm.MarkProcessed(name); err != nil {
			h.logger.Warn("could not mark document processed", "name", name, "error", err)
		}
		indexed = true
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":  "uploaded",
		"name":    name,
		"indexed": indexed,
	}, h.logger)
}

func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	files, err := h.docs.Scan(r.Context())
	if err != nil {
		h.logger.Error("document scan failed", "error", err)
		writeError(w, http.StatusInternalServerError, "scan_failed", "could not list documents", h.logger)
		return
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": names}, h.logger)
}

func (h *documentHandler) remove(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	if source == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "source is required", h.logger)
		return
	}

	if err := h.engine.DeleteBySource(r.Context(), source); err != nil {
		if errors.Is(err, document.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "document not found", h.logger)
			return
		}
		h.logger.Error("document deletion failed", "source", source, "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "could not delete document", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "source": source}, h.logger)
}

// healthHandler serves liveness.
type healthHandler struct {
	version string
	logger  *slog.Logger
}

func (h *healthHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	}, h.logger)
}
