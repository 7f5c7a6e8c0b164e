package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/recipevault/apiserver/config"
	"github.com/recipevault/apiserver/internal/auth"
	"github.com/recipevault/apiserver/internal/events"
	"github.com/recipevault/apiserver/internal/mq"
	"github.com/recipevault/apiserver/internal/mq/mqtest"
	"github.com/recipevault/apiserver/internal/services"
	"github.com/recipevault/apiserver/internal/storage"
	"github.com/recipevault/apiserver/internal/storage/storagetest"
	"github.com/recipevault/apiserver/internal/store/storetest"
	"github.com/recipevault/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	server *httptest.Server
	broker *mqtest.Memory
}

func newHarness(t *testing.T, staticDir string) *harness {
	t.Helper()

	tokens, err := auth.NewTokenService("router-secret", time.Hour)
	require.NoError(t, err)
	broker := mqtest.NewMemory()
	objects := storage.NewStorage(storagetest.NewMemory("recipe-bucket"), "")

	router := NewRouter(Deps{
		Auth:           services.NewAuthService(storetest.NewUsers(), tokens),
		Tokens:         tokens,
		Recipes:        services.NewRecipeService(storetest.NewRecipes(), events.NewPublisher(mq.New(broker), nil), nil),
		Images:         services.NewImageService(objects, nil),
		AllowedOrigins: []string{"http://localhost:3000"},
		StaticDir:      staticDir,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &harness{server: srv, broker: broker}
}

func (h *harness) call(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (h *harness) login(t *testing.T, username, email, first, last string) string {
	t.Helper()
	resp, body := h.call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":  username,
		"email":     email,
		"password":  "pw12345",
		"firstName": first,
		"lastName":  last,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = h.call(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"usernameOrEmail": username,
		"password":        "pw12345",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var result struct {
		Token string `json:"token"`
		Type  string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	require.Equal(t, "Bearer", result.Type)
	return result.Token
}

func TestRecipeLifecycleAcrossUsers(t *testing.T) {
	h := newHarness(t, "")
	chef := h.login(t, "chef1", "chef1@x.com", "A", "B")

	resp, body := h.call(t, http.MethodPost, "/api/recipes", chef, map[string]any{
		"title":           "Shakshuka",
		"difficulty":      "MEDIUM",
		"instructions":    "Simmer tomatoes, crack eggs.",
		"ingredientNames": []string{"tomatoes", "eggs"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created types.Recipe
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "A B", created.CreatorName)

	path := "/api/recipes/" + strconv.FormatInt(created.ID, 10)
	resp, body = h.call(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched types.Recipe
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, created.Title, fetched.Title)
	assert.Equal(t, created.CreatorName, fetched.CreatorName)
	assert.Equal(t, created.Ingredients, fetched.Ingredients)

	intruder := h.login(t, "chef2", "chef2@x.com", "C", "D")
	resp, body = h.call(t, http.MethodDelete, path, intruder, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	var envelope struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.Equal(t, http.StatusForbidden, envelope.Status)

	resp, _ = h.call(t, http.MethodDelete, path, chef, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	published := h.broker.Published()
	require.Len(t, published, 2)
	assert.Equal(t, string(types.RecipeCreated), published[0].Attributes["type"])
	assert.Equal(t, string(types.RecipeDeleted), published[1].Attributes["type"])
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t, "")
	for _, path := range []string{"/healthz", "/actuator/health"} {
		resp, body := h.call(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.JSONEq(t, `{"status":"UP"}`, string(body))
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, "")

	req, err := http.NewRequest(http.MethodOptions, h.server.URL+"/api/recipes", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")

	resp, err := h.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "3600", resp.Header.Get("Access-Control-Max-Age"))

	req.Header.Set("Origin", "http://evil.test")
	resp2, err := h.server.Client().Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestSPAFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<div id=app></div>"), 0o644))
	h := newHarness(t, dir)

	resp, body := h.call(t, http.MethodGet, "/recipes/3", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<div id=app></div>", string(body))

	resp, _ = h.call(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNew_RequiresJWTSecret(t *testing.T) {
	_, err := New(context.Background(), config.Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}
