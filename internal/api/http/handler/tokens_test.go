package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HariBote1110/serveye/internal/tokens"
)

type fakeEvictor struct {
	evicted []string
}

func (f *fakeEvictor) Evict(token, _ string) {
	f.evicted = append(f.evicted, token)
}

func newTokensRouter(t *testing.T) (*gin.Engine, *tokens.Registry, *fakeEvictor) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	registry := tokens.NewRegistry(tokens.NewFileStore(filepath.Join(t.TempDir(), "tokens.json")))
	evictor := &fakeEvictor{}

	r := gin.New()
	h := NewTokensHandler(registry, evictor)
	r.POST("/api/tokens", h.Issue)
	r.GET("/api/tokens", h.List)
	r.DELETE("/api/tokens/:token", h.Revoke)
	return r, registry, evictor
}

func TestIssueToken(t *testing.T) {
	router, registry, _ := newTokensRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tokens", strings.NewReader(`{"clientId":"web-01"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"clientId":"web-01"`)
	assert.Len(t, registry.All(), 1)
}

func TestIssueTokenRequiresClientID(t *testing.T) {
	router, _, _ := newTokensRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tokens", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTokens(t *testing.T) {
	router, registry, _ := newTokensRouter(t)
	_, err := registry.Issue(context.Background(), "web-01")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tokens", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unknown"`)
}

func TestRevokeTokenEvictsSession(t *testing.T) {
	router, registry, evictor := newTokensRouter(t)
	rec, err := registry.Issue(context.Background(), "web-01")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/tokens/"+rec.Token, nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{rec.Token}, evictor.evicted)
	assert.Empty(t, registry.All())
}

func TestRevokeUnknownToken(t *testing.T) {
	router, _, evictor := newTokensRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/tokens/ghost", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, evictor.evicted)
}
