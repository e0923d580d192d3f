package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Dav1dde/notifico/internal/model"
)

func TestHandleCreateProject(t *testing.T) {
	t.Run("defaults to public", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.register(t, "alice")

		req := jsonRequest(http.MethodPost, "/projects", map[string]any{
			"name": "my website",
		}, alice, nil)
		rr := httptest.NewRecorder()
		env.project.HandleCreate(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		project := decodeBody[model.Project](t, rr)
		assert.True(t, project.Public, "omitted public flag should default to true")
		assert.Equal(t, alice.ID, project.OwnerID)
	})

	t.Run("explicit private", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.register(t, "alice")

		req := jsonRequest(http.MethodPost, "/projects", map[string]any{
			"name":   "secret",
			"public": false,
		}, alice, nil)
		rr := httptest.NewRecorder()
		env.project.HandleCreate(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		project := decodeBody[model.Project](t, rr)
		assert.False(t, project.Public)
	})

	t.Run("empty name", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.register(t, "alice")

		req := jsonRequest(http.MethodPost, "/projects", map[string]any{"name": ""}, alice, nil)
		rr := httptest.NewRecorder()
		env.project.HandleCreate(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandleDetails(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	admin := env.register(t, "root")
	_, err := env.accounts.BootstrapAdmin(context.Background(), admin)
	assert.NoError(t, err)

	env.createProject(t, alice, "open", true)
	env.createProject(t, alice, "secret", false)

	tests := []struct {
		name    string
		project string
		viewer  *model.User
		want    int
	}{
		{"public to anonymous", "open", nil, http.StatusOK},
		{"public to other user", "open", bob, http.StatusOK},
		{"private to owner", "secret", alice, http.StatusOK},
		{"private to admin", "secret", admin, http.StatusOK},
		// 404, not 403 — the response must not confirm it exists.
		{"private to anonymous", "secret", nil, http.StatusNotFound},
		{"private to other user", "secret", bob, http.StatusNotFound},
		{"unknown project", "nothere", bob, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(http.MethodGet, "/projects/alice/"+tt.project, nil, tt.viewer,
				map[string]string{"username": "alice", "project": tt.project})
			rr := httptest.NewRecorder()
			env.project.HandleDetails(rr, req)

			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestHandleDetails_UnknownOwner(t *testing.T) {
	env := newTestEnv(t)

	req := jsonRequest(http.MethodGet, "/projects/ghost/anything", nil, nil,
		map[string]string{"username": "ghost", "project": "anything"})
	rr := httptest.NewRecorder()
	env.project.HandleDetails(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleUpdateProject(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.createProject(t, alice, "website", true)

	t.Run("non-owner forbidden", func(t *testing.T) {
		req := jsonRequest(http.MethodPut, "/projects/alice/website", map[string]any{
			"public": false,
		}, bob, map[string]string{"username": "alice", "project": "website"})
		rr := httptest.NewRecorder()
		env.project.HandleUpdate(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("owner updates", func(t *testing.T) {
		req := jsonRequest(http.MethodPut, "/projects/alice/website", map[string]any{
			"name":    "renamed",
			"public":  false,
			"website": "https://example.com",
		}, alice, map[string]string{"username": "alice", "project": "website"})
		rr := httptest.NewRecorder()
		env.project.HandleUpdate(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		project := decodeBody[model.Project](t, rr)
		assert.Equal(t, "renamed", project.Name)
		assert.False(t, project.Public)
	})
}

func TestHandleDeleteProject(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.createProject(t, alice, "doomed", true)

	t.Run("non-owner forbidden", func(t *testing.T) {
		req := jsonRequest(http.MethodDelete, "/projects/alice/doomed", nil, bob,
			map[string]string{"username": "alice", "project": "doomed"})
		rr := httptest.NewRecorder()
		env.project.HandleDelete(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("owner deletes", func(t *testing.T) {
		req := jsonRequest(http.MethodDelete, "/projects/alice/doomed", nil, alice,
			map[string]string{"username": "alice", "project": "doomed"})
		rr := httptest.NewRecorder()
		env.project.HandleDelete(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

func TestHandleDashboard(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.createProject(t, alice, "alices project", true)
	env.createProject(t, bob, "bobs project", true)

	t.Run("unknown username is 404", func(t *testing.T) {
		req := jsonRequest(http.MethodGet, "/projects/ghost", nil, alice,
			map[string]string{"username": "ghost"})
		rr := httptest.NewRecorder()
		env.project.HandleDashboard(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("lists session user's projects", func(t *testing.T) {
		// Even with bob's name in the path, the listing is the session
		// user's own dashboard. Longstanding behavior, see the handler.
		req := jsonRequest(http.MethodGet, "/projects/bob", nil, alice,
			map[string]string{"username": "bob"})
		rr := httptest.NewRecorder()
		env.project.HandleDashboard(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		projects := decodeBody[[]model.Project](t, rr)
		assert.Len(t, projects, 1)
		assert.Equal(t, "alices project", projects[0].Name)
	})
}
