package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uml-studio/engine/internal/api/handlers"
	mw "github.com/uml-studio/engine/internal/api/middleware"
	"github.com/uml-studio/engine/internal/cache"
	"github.com/uml-studio/engine/internal/repository"
	"github.com/uml-studio/engine/internal/services"
	"github.com/uml-studio/engine/internal/tester"
	"github.com/uml-studio/engine/pkg/database"
	"github.com/uml-studio/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

type client struct {
	t     *testing.T
	srv   *httptest.Server
	token string
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func (c *client) do(method, path string, body any) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(c.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req, err := http.NewRequest(method, c.srv.URL+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()

	var env envelope
	if res.StatusCode != http.StatusNoContent {
		require.NoError(c.t, json.NewDecoder(res.Body).Decode(&env))
	}
	return res.StatusCode, env
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := tester.NewDB(t)
	rdb, _ := tester.NewRedis(t)

	users := repository.NewUserRepository(db)
	projects := repository.NewProjectRepository(db)
	authSvc := services.NewAuthService(users, services.NewStoreSessionRecorder(repository.NewSessionLogRepository(db)),
		cache.NewRedisRevocationList(rdb), []byte("router-test-secret"), time.Hour)
	projectSvc := services.NewProjectService(projects, repository.NewDiagramStore(db), cache.NewRedisProjectCache(rdb, time.Minute))

	limiter := mw.NewRateLimiter(1000, 1000)
	t.Cleanup(limiter.Stop)
	srv := httptest.NewServer(NewRouter(Dependencies{
		Verifier:        authSvc,
		AuthHandler:     handlers.NewAuthHandler(authSvc),
		ProjectsHandler: handlers.NewProjectsHandler(projectSvc),
		DiagramHandler:  handlers.NewDiagramHandler(projectSvc),
		HealthHandler:   handlers.NewHealthHandler(func(ctx context.Context) error { return database.Ping(ctx, db) }),
		CORSOrigins:     []string{"http://localhost:3000"},
		RateLimiter:     limiter,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signUp(t *testing.T, srv *httptest.Server, name, email string) *client {
	t.Helper()
	c := &client{t: t, srv: srv}
	status, _ := c.do(http.MethodPost, "/api/v1/auth/register", map[string]string{"name": name, "email": email, "password": "password1"})
	require.Equal(t, http.StatusCreated, status)

	status, env := c.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": email, "password": "password1"})
	require.Equal(t, http.StatusOK, status)
	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	c.token = login.AccessToken
	return c
}

func TestShopScenarioOverHTTP(t *testing.T) {
	srv := newServer(t)
	alice := signUp(t, srv, "alice smith", "alice@example.com")

	status, env := alice.do(http.MethodPost, "/api/v1/projects", map[string]string{"name": "Shop"})
	require.Equal(t, http.StatusCreated, status)
	var project struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &project))

	doc := `{"classes":[{"id":"tmp1","name":"Order"},{"id":"tmp2","name":"Item"}],` +
		`"relationships":[{"sourceClassId":"tmp1","targetClassId":"tmp2","relationshipType":"association"},` +
		`{"sourceClassId":"tmp1","targetClassId":"ghost","relationshipType":"dependency"}]}`
	status, env = alice.do(http.MethodPost, "/api/v1/projects/"+project.ID+"/save", doc)
	require.Equal(t, http.StatusOK, status, env)
	assert.Contains(t, string(env.Data), "updatedAt")

	status, env = alice.do(http.MethodGet, "/api/v1/projects/"+project.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var view struct {
		Classes []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"classes"`
		Relationships []struct {
			SourceClassID string `json:"sourceClassId"`
			TargetClassID string `json:"targetClassId"`
		} `json:"relationships"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.Classes, 2)
	assert.Equal(t, "Order", view.Classes[0].Name)
	assert.Equal(t, "Item", view.Classes[1].Name)
	require.Len(t, view.Relationships, 1)
	assert.Equal(t, view.Classes[0].ID, view.Relationships[0].SourceClassID)
	assert.Equal(t, view.Classes[1].ID, view.Relationships[0].TargetClassID)

	status, env = alice.do(http.MethodGet, "/api/v1/classes?projectId="+project.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"name":"Order"`)
	status, _ = alice.do(http.MethodGet, "/api/v1/relationships?projectId="+project.ID, nil)
	assert.Equal(t, http.StatusOK, status)

	// another user can neither read nor overwrite the diagram
	bob := signUp(t, srv, "bob", "bob@example.com")
	status, env = bob.do(http.MethodPost, "/api/v1/projects/"+project.ID+"/save", `{"classes":[],"relationships":[]}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", env.Error.Code)
	status, _ = bob.do(http.MethodGet, "/api/v1/projects/"+project.ID, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, env = bob.do(http.MethodGet, "/api/v1/projects", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(env.Data))

	_, env = alice.do(http.MethodGet, "/api/v1/projects/"+project.ID, nil)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Len(t, view.Classes, 2)

	// empty round trip
	status, _ = alice.do(http.MethodPost, "/api/v1/projects/"+project.ID+"/save", `{"classes":[],"relationships":[]}`)
	require.Equal(t, http.StatusOK, status)
	_, env = alice.do(http.MethodGet, "/api/v1/projects/"+project.ID, nil)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &raw))
	assert.JSONEq(t, `[]`, string(raw["classes"]))
	assert.JSONEq(t, `[]`, string(raw["relationships"]))

	status, env = alice.do(http.MethodPost, "/api/v1/projects/"+project.ID+"/save", `{"classes":[]}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "malformed_document", env.Error.Code)

	status, _ = alice.do(http.MethodDelete, "/api/v1/projects/"+project.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, env = alice.do(http.MethodGet, "/api/v1/projects/"+project.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestAuthenticationOverHTTP(t *testing.T) {
	srv := newServer(t)
	anon := &client{t: t, srv: srv}

	status, env := anon.do(http.MethodGet, "/api/v1/projects", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", env.Error.Code)

	anon.token = "garbage"
	status, _ = anon.do(http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	ada := signUp(t, srv, "ada lovelace", "ada@example.com")
	status, env = ada.do(http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"username":"Ada"`)

	status, env = ada.do(http.MethodPost, "/api/v1/auth/register", map[string]string{"name": "Ada", "email": "ADA@example.com", "password": "password1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_exists", env.Error.Code)

	status, _ = ada.do(http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = ada.do(http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHealthOverHTTP(t *testing.T) {
	srv := newServer(t)
	c := &client{t: t, srv: srv}
	for _, path := range []string{"/healthz", "/readyz"} {
		status, env := c.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, status, path)
		assert.True(t, env.Success)
	}
}
