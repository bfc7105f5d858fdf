package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geotasks/api/internal/config"
	"geotasks/api/internal/model"
	"geotasks/api/internal/store/storetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	repo   *storetest.Memory
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.JWTSecret = "server-test-secret"
	if mutate != nil {
		mutate(cfg)
	}
	repo := storetest.New()
	srv := NewServer(cfg, repo, nil, nil)
	srv.Setup()
	return &testServer{t: t, router: srv.GetRouter(), repo: repo}
}

func (s *testServer) request(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(email string) string {
	s.t.Helper()
	form := url.Values{"username": {email}, "password": {"secret123"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	var resp model.LoginResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.t, "bearer", resp.TokenType)
	return resp.AccessToken
}

func (s *testServer) register(username, email string) model.UserPublic {
	s.t.Helper()
	w := s.request(http.MethodPost, "/users/", "", fmt.Sprintf(`{"username":%q,"email":%q,"password":"secret123"}`, username, email))
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var user model.UserPublic
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &user))
	return user
}

func TestEndToEnd(t *testing.T) {
	s := newTestServer(t, nil)

	alice := s.register("Alice", "alice@example.com")
	assert.Equal(t, "alice", alice.Username)
	token := s.login("alice@example.com")

	w := s.request(http.MethodPost, "/tasks/", token, `{"title":"Buy milk","priority":"low","done":false}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var task model.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.Equal(t, "buy milk", task.Title)
	assert.Equal(t, model.PriorityLow, task.Priority)

	w = s.request(http.MethodPost, "/tasks/", token, `{"title":"Buy milk","priority":"low","done":false}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"detail":"Task title already exists"}`, w.Body.String())

	home := `{"place_id":1,"display_name":"Somewhere","name":"home","lat":10.0,"lon":20.0}`
	w = s.request(http.MethodPost, "/locations/user", token, home)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var loc model.Location
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loc))
	assert.Equal(t, model.Point{Type: "Point", Coordinates: [2]float64{20, 10}}, loc.Geom)

	w = s.request(http.MethodPost, "/locations/user", token, home)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.register("Bob", "bob@example.com")
	bobToken := s.login("bob@example.com")

	w = s.request(http.MethodDelete, fmt.Sprintf("/users/%d", alice.ID), token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"User deleted successfully"}`, w.Body.String())

	w = s.request(http.MethodGet, fmt.Sprintf("/tasks/%d", task.ID), bobToken, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// the deleted user's token no longer resolves
	w = s.request(http.MethodGet, fmt.Sprintf("/tasks/%d", task.ID), token, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOtherUsersTaskIsForbidden(t *testing.T) {
	s := newTestServer(t, nil)
	s.register("alice", "alice@example.com")
	s.register("bob", "bob@example.com")
	aliceToken := s.login("alice@example.com")
	bobToken := s.login("bob@example.com")

	w := s.request(http.MethodPost, "/tasks/", aliceToken, `{"title":"secret plan"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var task model.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))

	for _, req := range []struct{ method, path, body string }{
		{http.MethodGet, fmt.Sprintf("/tasks/%d", task.ID), ""},
		{http.MethodPatch, fmt.Sprintf("/tasks/%d", task.ID), `{"title":"mine now"}`},
		{http.MethodPatch, fmt.Sprintf("/tasks/done/%d", task.ID), ""},
		{http.MethodDelete, fmt.Sprintf("/tasks/%d", task.ID), ""},
		{http.MethodPost, fmt.Sprintf("/locations/task/%d", task.ID), `{"place_id":1,"lat":1,"lon":1}`},
	} {
		w := s.request(req.method, req.path, bobToken, req.body)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", req.method, req.path)
	}

	w = s.request(http.MethodGet, "/tasks/999", bobToken, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReactivationOpen(t *testing.T) {
	s := newTestServer(t, nil)
	s.register("alice", "alice@example.com")
	token := s.login("alice@example.com")

	w := s.request(http.MethodPost, "/tasks/", token, `{"title":"errand"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var task model.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))

	w = s.request(http.MethodPatch, fmt.Sprintf("/tasks/deactivate/%d", task.ID), token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, s.request(http.MethodGet, fmt.Sprintf("/tasks/%d", task.ID), token, "").Code)

	w = s.request(http.MethodPatch, fmt.Sprintf("/tasks/activate/%d", task.ID), "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, s.request(http.MethodGet, fmt.Sprintf("/tasks/%d", task.ID), token, "").Code)
}

func TestReactivationAdminPolicy(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.ReactivationPolicy = config.ReactivationAdmin
	})
	alice := s.register("alice", "alice@example.com")
	admin := s.register("root", "root@example.com")
	aliceToken := s.login("alice@example.com")

	ctx := context.Background()
	adminUser, err := s.repo.GetUser(ctx, admin.ID)
	require.NoError(t, err)
	adminUser.Role = model.RoleAdmin
	require.NoError(t, s.repo.SaveUser(ctx, adminUser))
	adminToken := s.login("root@example.com")

	path := fmt.Sprintf("/users/%d/activate", alice.ID)
	assert.Equal(t, http.StatusUnauthorized, s.request(http.MethodPatch, path, "", "").Code)
	assert.Equal(t, http.StatusForbidden, s.request(http.MethodPatch, path, aliceToken, "").Code)
	assert.Equal(t, http.StatusOK, s.request(http.MethodPatch, path, adminToken, "").Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.request(http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok","redis":"disabled","nats":"disabled"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	s.repo.PingErr = errors.New("connection refused")
	w = s.request(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"unavailable"`)
}

func TestLoginRateLimited(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.SpecificRules[0].Limit = 2
	})

	for i := 0; i < 2; i++ {
		w := s.request(http.MethodPost, "/auth/login", "", `{"username":"nobody@example.com","password":"x"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := s.request(http.MethodPost, "/auth/login", "", `{"username":"nobody@example.com","password":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestExportRateLimitedPerUser(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		for i := range cfg.RateLimit.SpecificRules {
			if cfg.RateLimit.SpecificRules[i].Path == "/tasks/export" {
				cfg.RateLimit.SpecificRules[i].Limit = 1
			}
		}
	})

	s.register("alice", "alice@example.com")
	s.register("bob", "bob@example.com")
	alice := s.login("alice@example.com")
	bob := s.login("bob@example.com")

	w := s.request(http.MethodGet, "/tasks/export", alice, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, http.StatusTooManyRequests, s.request(http.MethodGet, "/tasks/export", alice, "").Code)

	// separate bucket per user, other routes untouched
	assert.Equal(t, http.StatusOK, s.request(http.MethodGet, "/tasks/export", bob, "").Code)
	assert.Equal(t, http.StatusOK, s.request(http.MethodGet, "/tasks/", alice, "").Code)
}
