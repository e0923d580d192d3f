package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Dav1dde/notifico/internal/auth"
	"github.com/Dav1dde/notifico/internal/handler"
	"github.com/Dav1dde/notifico/internal/model"
	"github.com/Dav1dde/notifico/internal/repository/sqlite"
	"github.com/Dav1dde/notifico/internal/service"
)

// testEnv is the full stack below the router: a real database in a
// temp dir, real services, real handlers. Handler tests run against
// this instead of fakes — the HTTP layer is where everything meets.
type testEnv struct {
	accounts *service.AccountService
	projects *service.ProjectService
	tokens   *auth.TokenService

	account *handler.AccountHandler
	project *handler.ProjectHandler
	public  *handler.PublicHandler
	admin   *handler.AdminHandler
	hook    *handler.HookHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("creating token service: %v", err)
	}

	accounts := service.NewAccountService(db.Users(), db.Tokens(), auth.NewPasswordService(), logger)
	projects := service.NewProjectService(db.Projects(), logger)

	return &testEnv{
		accounts: accounts,
		projects: projects,
		tokens:   tokens,
		account:  handler.NewAccountHandler(accounts, tokens, nil, logger),
		project:  handler.NewProjectHandler(projects, accounts, logger),
		public:   handler.NewPublicHandler(projects, logger),
		admin:    handler.NewAdminHandler(accounts, logger),
		hook:     handler.NewHookHandler(projects, logger),
	}
}

func (e *testEnv) register(t *testing.T, username string) *model.User {
	t.Helper()
	user, err := e.accounts.Register(context.Background(), username, username+"@example.com", "password123")
	if err != nil {
		t.Fatalf("registering %q: %v", username, err)
	}
	return user
}

func (e *testEnv) createProject(t *testing.T, owner *model.User, name string, public bool) *model.Project {
	t.Helper()
	project, err := e.projects.Create(context.Background(), owner, name, public, "")
	if err != nil {
		t.Fatalf("creating project %q: %v", name, err)
	}
	return project
}

// jsonRequest builds a request with a JSON body. user may be nil for
// anonymous requests; pathValues populate {segment} placeholders.
func jsonRequest(method, target string, body any, user *model.User, pathValues map[string]string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(auth.WithUser(req.Context(), user))
	}
	for key, value := range pathValues {
		req.SetPathValue(key, value)
	}
	return req
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return v
}
