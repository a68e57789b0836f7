package rag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPEmbedderRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Input, 2)

		// Answer out of order; Embed must reassemble by index.
		resp := map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0.3, 0.4}},
				{"index": 0, "embedding": []float32{0.1, 0.2}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "test-model", "sk-test")
	vectors, err := e.Embed(t.Context(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float32{0.3, 0.4}, vectors[1])
}

func TestHTTPEmbedderNoAuthHeaderWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data": [{"index": 0, "embedding": [1]}]}`))
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "test-model", "")
	_, err := e.Embed(t.Context(), []string{"text"})
	require.NoError(t, err)
}

func TestHTTPEmbedderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "test-model", "")
	_, err := e.Embed(t.Context(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestHTTPEmbedderVectorCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"index": 0, "embedding": [1]}]}`))
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "test-model", "")
	_, err := e.Embed(t.Context(), []string{"one", "two"})
	assert.Error(t, err)
}

func TestHTTPEmbedderBadIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"index": 7, "embedding": [1]}]}`))
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "test-model", "")
	_, err := e.Embed(t.Context(), []string{"text"})
	assert.Error(t, err)
}
