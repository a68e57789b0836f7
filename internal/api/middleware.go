package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raggate/raggate/internal/auth"
	"github.com/raggate/raggate/internal/tenant"
	"github.com/raggate/raggate/internal/workspace"
)

// Context key types (unexported to prevent collisions).
type requestIDKey struct{}
type userKey struct{}

// userFromContext retrieves the authenticated identity from the request
// context. Returns false if the request did not pass the auth middleware.
func userFromContext(ctx context.Context) (auth.UserInfo, bool) {
	u, ok := ctx.Value(userKey{}).(auth.UserInfo)
	return u, ok
}

// loggingWriter wraps http.ResponseWriter to capture status and size.
type loggingWriter struct {
	w            http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lw *loggingWriter) Header() http.Header {
	return lw.w.Header()
}

func (lw *loggingWriter) WriteHeader(code int) {
	lw.statusCode = code
	lw.w.WriteHeader(code)
}

func (lw *loggingWriter) Write(b []byte) (int, error) {
	if lw.statusCode == 0 {
		lw.statusCode = http.StatusOK
	}
	n, err := lw.w.Write(b)
	lw.bytesWritten += int64(n)
	return n, err
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (lw *loggingWriter) Unwrap() http.ResponseWriter {
	return lw.w
}

// recoveryMiddleware recovers from panics to prevent server crashes.
func recoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapper := &loggingWriter{w: w}

			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"error", err,
						"path", r.URL.Path,
						"headers_sent", wrapper.statusCode != 0,
					)
					if wrapper.statusCode == 0 {
						writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", logger)
					}
				}
			}()
			next.ServeHTTP(wrapper, r)
		})
	}
}

// requestIDMiddleware assigns each request a UUID, exposed on the response
// and available to log attributes downstream.
func requestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			w.Header().Set("X-Request-ID", id)
			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// loggingMiddleware logs request details including latency, status and size.
func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapper, ok := w.(*loggingWriter)
			if !ok {
				wrapper = &loggingWriter{w: w}
			}

			next.ServeHTTP(wrapper, r)

			status := wrapper.statusCode
			if status == 0 {
				status = http.StatusOK
			}

			requestID, _ := r.Context().Value(requestIDKey{}).(string)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", wrapper.bytesWritten,
				"duration", time.Since(start),
				"request_id", requestID,
			)
		})
	}
}

// authMiddleware authenticates the request via Bearer JWT or X-API-Key,
// resolves the caller's workspace, stores both on the request context and
// ensures the workspace's engine is initialized before the handler runs.
//
// Running EnsureInitialized here closes the proxy sharp edge for HTTP
// callers: by the time a handler touches a workspace-bound proxy, the
// engine behind it is the cached, fully initialized one.
func authMiddleware(h *auth.Handler, manager *tenant.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authenticate(h, r)
			if err != nil {
				code := "unauthorized"
				if errors.Is(err, auth.ErrTokenExpired) {
					code = "token_expired"
				}
				writeError(w, http.StatusUnauthorized, code, err.Error(), logger)
				return
			}

			ctx := context.WithValue(r.Context(), userKey{}, user)
			ctx = workspace.With(ctx, user.Workspace)

			if err := manager.EnsureInitialized(ctx, user.Workspace); err != nil {
				logger.Error("tenant initialization failed",
					"workspace", user.Workspace, "error", err)
				writeError(w, http.StatusServiceUnavailable, "tenant_unavailable",
					"workspace initialization failed", logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate tries the API key header first, then a Bearer token. An
// unknown API key is not terminal — ValidateAPIKey's "absent, not an error"
// contract lets the request fall through to token auth.
func authenticate(h *auth.Handler, r *http.Request) (auth.UserInfo, error) {
	if key := r.Header.Get("X-API-Key"); key != "" {
		if user, ok := h.ValidateAPIKey(key); ok {
			return user, nil
		}
	}

	header := r.Header.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		return auth.UserInfo{}, errors.New("missing credentials")
	}

	info, err := h.ValidateToken(tokenStr)
	if err != nil {
		return auth.UserInfo{}, err
	}

	return auth.UserInfo{
		Username:  info.Username,
		Role:      info.Role,
		Workspace: info.Workspace,
		Metadata:  info.Metadata,
	}, nil
}
