package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raggate/raggate/internal/auth"
	"github.com/raggate/raggate/internal/document"
	"github.com/raggate/raggate/internal/rag"
	"github.com/raggate/raggate/internal/tenant"
	"github.com/raggate/raggate/internal/testutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fixture bundles a fully wired gateway over fake engines. engines maps
// workspace key to the *testutil.FakeEngine the factory produced for it.
type fixture struct {
	handler http.Handler
	auth    *auth.Handler
	engines *sync.Map
}

func newTestServer(t *testing.T, configure func(*testutil.FakeEngine)) *fixture {
	t.Helper()

	usersPath := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(usersPath, []byte(`{
		"users": [
			{"username": "alice", "password": "pw", "workspace": "acme"},
			{"username": "bot", "api_key": "sk-bot-123", "workspace": "globex"}
		]
	}`), 0o600))

	ah, err := auth.New(auth.Config{
		Secret:        testSecret,
		UsersFilePath: usersPath,
	}, testutil.DiscardLogger())
	require.NoError(t, err)

	engines := &sync.Map{}
	inputRoot := t.TempDir()
	manager := tenant.NewManager(
		func(ws string) rag.Engine {
			e := &testutil.FakeEngine{WorkspaceKey: ws}
			if configure != nil {
				configure(e)
			}
			engines.Store(ws, e)
			return e
		},
		func(ws string) *document.Manager {
			return document.New(document.Params{InputRoot: inputRoot}, ws)
		},
		testutil.DiscardLogger(),
	)

	srv, err := NewServer(ServerConfig{
		Logger:  testutil.DiscardLogger(),
		Auth:    ah,
		Manager: manager,
		Version: "test",
	})
	require.NoError(t, err)

	return &fixture{handler: srv.Handler(), auth: ah, engines: engines}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) bearer(t *testing.T, username string) map[string]string {
	t.Helper()
	token, err := f.auth.CreateToken(username, auth.RoleUser, auth.DefaultExpiry, nil)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func (f *fixture) engine(t *testing.T, ws string) *testutil.FakeEngine {
	t.Helper()
	v, ok := f.engines.Load(ws)
	require.True(t, ok, "no engine constructed for workspace %q", ws)
	return v.(*testutil.FakeEngine)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHealth(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthStatus(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodGet, "/auth-status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["auth_configured"])
}

func TestLogin(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/login",
		loginRequest{Username: "alice", Password: "pw"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "bearer", body["token_type"])

	// The returned token must validate and carry alice's workspace.
	info, err := f.auth.ValidateToken(body["access_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, "acme", info.Workspace)
}

func TestLoginBadCredentials(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/login",
		loginRequest{Username: "alice", Password: "wrong"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeBody(t, rec)["error"])
}

func TestLoginMalformedBody(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/login", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRouteRequiresCredentials(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/query", queryRequest{Query: "q"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeBody(t, rec)["error"])
}

func TestExpiredTokenIsDistinguished(t *testing.T) {
	f := newTestServer(t, nil)

	token, err := f.auth.CreateTokenWithExpiry("alice", auth.RoleUser, time.Now().Add(-time.Hour), nil)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/query", queryRequest{Query: "q"},
		map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token_expired", decodeBody(t, rec)["error"])
}

func TestQueryRoutesToCallerWorkspace(t *testing.T) {
	f := newTestServer(t, func(e *testutil.FakeEngine) {
		e.QueryResults = []rag.Result{{ID: "r1", Source: "doc.txt", Content: "match", Score: 0.9}}
	})

	rec := f.do(t, http.MethodPost, "/query", queryRequest{Query: "hello", TopK: 3}, f.bearer(t, "alice"))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	results := body["results"].([]any)
	require.Len(t, results, 1)

	// The query ran on the engine of alice's workspace, initialized by the
	// middleware before the handler touched it.
	e := f.engine(t, "acme")
	assert.EqualValues(t, 1, e.InitCalls.Load())
	assert.EqualValues(t, 1, e.QueryCalls.Load())
}

func TestQueryEmptyResultsIsArray(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/query", queryRequest{Query: "nothing"}, f.bearer(t, "alice"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestQueryMissingQuery(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/query", queryRequest{}, f.bearer(t, "alice"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/query", queryRequest{Query: "q"},
		map[string]string{"X-API-Key": "sk-bot-123"})
	require.Equal(t, http.StatusOK, rec.Code)

	// The API key binds the request to the bot's workspace.
	e := f.engine(t, "globex")
	assert.EqualValues(t, 1, e.QueryCalls.Load())
}

func TestUnknownAPIKeyFallsThroughToToken(t *testing.T) {
	f := newTestServer(t, nil)

	headers := f.bearer(t, "alice")
	headers["X-API-Key"] = "sk-unknown"
	rec := f.do(t, http.MethodPost, "/query", queryRequest{Query: "q"}, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	e := f.engine(t, "acme")
	assert.EqualValues(t, 1, e.QueryCalls.Load())
}

func TestInitFailureReturnsServiceUnavailable(t *testing.T) {
	f := newTestServer(t, func(e *testutil.FakeEngine) {
		e.InitErr = errors.New("database unreachable")
	})

	rec := f.do(t, http.MethodPost, "/query", queryRequest{Query: "q"}, f.bearer(t, "alice"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "tenant_unavailable", decodeBody(t, rec)["error"])
}

func TestInsertText(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/documents/text",
		insertTextRequest{Source: "notes.txt", Content: "hello world"}, f.bearer(t, "alice"))
	require.Equal(t, http.StatusCreated, rec.Code)

	e := f.engine(t, "acme")
	assert.EqualValues(t, 1, e.InsertCalls.Load())
}

func TestInsertTextRequiresFields(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/documents/text",
		insertTextRequest{Source: "notes.txt"}, f.bearer(t, "alice"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadTextFileIsIndexed(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/documents/upload/notes.txt", "file content", f.bearer(t, "alice"))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["indexed"])

	e := f.engine(t, "acme")
	assert.EqualValues(t, 1, e.InsertCalls.Load())
}

func TestUploadBinaryFileIsStoredNotIndexed(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/documents/upload/report.pdf", "%PDF-1.4", f.bearer(t, "alice"))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["indexed"])

	e := f.engine(t, "acme")
	assert.EqualValues(t, 0, e.InsertCalls.Load())
}

func TestUploadUnsupportedExtension(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/documents/upload/malware.exe", "MZ", f.bearer(t, "alice"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestListDocuments(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/documents/upload/report.pdf", "%PDF-1.4", f.bearer(t, "alice"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/documents", nil, f.bearer(t, "alice"))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	docs := body["documents"].([]any)
	require.Len(t, docs, 1)
	assert.Equal(t, "report.pdf", docs[0])
}

func TestListDocumentsIsWorkspaceScoped(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodPost, "/documents/upload/report.pdf", "%PDF-1.4", f.bearer(t, "alice"))
	require.Equal(t, http.StatusCreated, rec.Code)

	// The bot lives in a different workspace and must not see alice's files.
	rec = f.do(t, http.MethodGet, "/documents", nil, map[string]string{"X-API-Key": "sk-bot-123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["documents"])
}

func TestDeleteDocument(t *testing.T) {
	f := newTestServer(t, nil)

	rec := f.do(t, http.MethodDelete, "/documents/notes.txt", nil, f.bearer(t, "alice"))
	require.Equal(t, http.StatusOK, rec.Code)

	e := f.engine(t, "acme")
	assert.EqualValues(t, 1, e.DeleteCalls.Load())
}

func TestEngineInitializedOncePerWorkspace(t *testing.T) {
	f := newTestServer(t, nil)

	headers := f.bearer(t, "alice")
	for range 3 {
		rec := f.do(t, http.MethodPost, "/query", queryRequest{Query: "q"}, headers)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	e := f.engine(t, "acme")
	assert.EqualValues(t, 1, e.InitCalls.Load())
	assert.EqualValues(t, 3, e.QueryCalls.Load())
}
