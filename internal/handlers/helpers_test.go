package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/recipevault/apiserver/internal/auth"
	"github.com/recipevault/apiserver/internal/services"
	"github.com/recipevault/apiserver/internal/storage"
	"github.com/recipevault/apiserver/internal/storage/storagetest"
	"github.com/recipevault/apiserver/internal/store/storetest"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router  *chi.Mux
	users   *storetest.Users
	recipes *storetest.Recipes
	objects *storagetest.Memory
	tokens  *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tokens, err := auth.NewTokenService("handler-secret", time.Hour)
	require.NoError(t, err)

	env := &testEnv{
		users:   storetest.NewUsers(),
		recipes: storetest.NewRecipes(),
		objects: storagetest.NewMemory("recipe-bucket"),
		tokens:  tokens,
	}

	authHandler := NewAuthHandler(services.NewAuthService(env.users, tokens), tokens, nil)
	recipeHandler := NewRecipeHandler(services.NewRecipeService(env.recipes, nil, nil), nil)
	imageHandler := NewImageHandler(services.NewImageService(storage.NewStorage(env.objects, ""), nil), nil)

	router := chi.NewRouter()
	router.Route("/api/auth", func(r chi.Router) { AuthRouter(r, authHandler) })
	router.Route("/api/recipes", func(r chi.Router) { RecipeRouter(r, recipeHandler, authHandler.RequireAuth) })
	router.Route("/api/images", func(r chi.Router) { ImageRouter(r, imageHandler, authHandler.RequireAuth) })
	env.router = router
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// signup registers a user with the given username and returns a token.
func (e *testEnv) signup(t *testing.T, username, first, last string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Username:  username,
		Email:     username + "@x.com",
		Password:  "pw12345",
		FirstName: first,
		LastName:  last,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{UsernameOrEmail: username, Password: "pw12345"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp AuthResponse
	decode(t, rec, &resp)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	decode(t, rec, &resp)
	require.Equal(t, rec.Code, resp.Status)
	require.False(t, resp.Timestamp.IsZero())
	return resp
}
