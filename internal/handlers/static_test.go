package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveSPA(spa *SPA, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	spa.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestSPA(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	spa := NewSPA(dir)

	rec := serveSPA(spa, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>app</html>", rec.Body.String())

	rec = serveSPA(spa, http.MethodGet, "/recipes/12/edit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>app</html>", rec.Body.String())

	rec = serveSPA(spa, http.MethodGet, "/assets/app.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = serveSPA(spa, http.MethodGet, "/assets")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>app</html>", rec.Body.String())

	rec = serveSPA(spa, http.MethodGet, "/../../etc/passwd")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>app</html>", rec.Body.String())
}

func TestSPA_BackendPathsAreNotRewritten(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("app"), 0o644))
	spa := NewSPA(dir)

	for _, path := range []string{"/api/unknown", "/api", "/actuator/info"} {
		rec := serveSPA(spa, http.MethodGet, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"), path)
	}

	rec := serveSPA(spa, http.MethodGet, "/apiary")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serveSPA(spa, http.MethodPost, "/anything")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSPA_MissingIndex(t *testing.T) {
	rec := serveSPA(NewSPA(t.TempDir()), http.MethodGet, "/")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serveSPA(NewSPA(""), http.MethodGet, "/home")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
