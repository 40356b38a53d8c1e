package integrations

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeGetEncodesQueryParams(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("q")
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"items": []string{"a"}})
	}))
	defer srv.Close()

	inv := NewHTTPInvoker([]Integration{{
		ID:       "catalog",
		BaseURL:  srv.URL,
		AuthType: "bearer",
		AuthVal:  "tok-123",
	}}, srv.Client(), nil)

	out, err := inv.Invoke(context.Background(), "catalog", "GET", "/v1/search", map[string]any{"q": "books"})
	require.NoError(t, err)
	assert.Equal(t, "/v1/search", gotPath)
	assert.Equal(t, "books", gotQuery)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, map[string]any{"items": []any{"a"}}, out)
}

func TestInvokePostSendsJSONBody(t *testing.T) {
	var gotBody map[string]any
	var gotContentType, gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotAPIKey = r.Header.Get("X-API-Key")
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"created":true}`))
	}))
	defer srv.Close()

	inv := NewHTTPInvoker([]Integration{{
		ID:       "notes",
		BaseURL:  srv.URL + "/",
		AuthType: "apiKey",
		AuthVal:  "key-9",
	}}, srv.Client(), nil)

	out, err := inv.Invoke(context.Background(), "notes", "post", "items", map[string]any{"title": "x"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "key-9", gotAPIKey)
	assert.Equal(t, map[string]any{"title": "x"}, gotBody)
	assert.Equal(t, map[string]any{"created": true}, out)
}

func TestInvokeNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	inv := NewHTTPInvoker([]Integration{{ID: "svc", BaseURL: srv.URL}}, srv.Client(), nil)
	_, err := inv.Invoke(context.Background(), "svc", "GET", "/", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestInvokeUnknownIntegration(t *testing.T) {
	inv := NewHTTPInvoker(nil, nil, nil)
	_, err := inv.Invoke(context.Background(), "missing", "GET", "/", nil)
	require.Error(t, err)
}

func TestInvokeNonJSONBodyPassedThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text reply"))
	}))
	defer srv.Close()

	inv := NewHTTPInvoker([]Integration{{ID: "svc", BaseURL: srv.URL}}, srv.Client(), nil)
	out, err := inv.Invoke(context.Background(), "svc", "GET", "/", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text reply", out)
}

func TestAddRegistersIntegration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	inv := NewHTTPInvoker(nil, srv.Client(), nil)
	inv.Add(Integration{ID: "late", BaseURL: srv.URL})

	_, err := inv.Invoke(context.Background(), "late", "GET", "/", nil)
	require.NoError(t, err)
}
