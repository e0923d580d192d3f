package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/Dav1dde/notifico/internal/apperror"
	"github.com/Dav1dde/notifico/internal/auth"
	"github.com/Dav1dde/notifico/internal/service"
)

// AccountHandler serves signup, login, session management, password
// changes, account deletion, and the GitHub linking flow.
type AccountHandler struct {
	accounts *service.AccountService
	tokens   *auth.TokenService
	github   *auth.GitHubProvider // nil when GitHub linking is not configured
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler. github may be nil, in
// which case the linking endpoints respond 404.
func NewAccountHandler(
	accounts *service.AccountService,
	tokens *auth.TokenService,
	github *auth.GitHubProvider,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		tokens:   tokens,
		github:   github,
		logger:   logger,
	}
}

// HandleSignup registers a new account and logs it straight in.
//
// HTTP: POST /account/signup   (guard: no user)
// Body: {"username": "...", "email": "...", "password": "..."}
func (h *AccountHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.setSession(w, user.ID); err != nil {
		h.logger.Error("signup: issuing session failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// HandleLogin verifies credentials and issues a session cookie.
//
// HTTP: POST /account/login   (guard: no user)
// Body: {"username": "...", "password": "..."}
//
// A failed login is always the same generic 401 — it never says whether
// the username or the password was wrong.
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	ok, err := h.accounts.VerifyLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Error("login: verification failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apperror.Unauthorized("incorrect username or password"))
		return
	}

	user, err := h.accounts.ByUsername(r.Context(), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.setSession(w, user.ID); err != nil {
		h.logger.Error("login: issuing session failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /account/logout
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	clearCookie(w, auth.SessionCookie)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the current user's profile.
//
// HTTP: GET /account/me   (guard: user)
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.UserFromContext(r.Context()))
}

// HandlePasswordChange changes the current user's password after
// re-checking the old one.
//
// HTTP: POST /account/password   (guard: user)
// Body: {"old": "...", "new": "..."}
func (h *AccountHandler) HandlePasswordChange(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req struct {
		Old string `json:"old"`
		New string `json:"new"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	ok, err := h.accounts.VerifyLogin(r.Context(), user.Username, req.Old)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apperror.Unauthorized("current password is incorrect"))
		return
	}

	if err := h.accounts.SetPassword(r.Context(), user, req.New); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// HandleDeleteAccount deletes the current account and everything it
// owns, then clears the session.
//
// HTTP: POST /account/delete   (guard: user)
func (h *AccountHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	if err := h.accounts.Delete(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}

	clearCookie(w, auth.SessionCookie)
	w.WriteHeader(http.StatusNoContent)
}

// HandleGitHubConnect starts the GitHub linking flow for the current
// user: random state in a short-lived cookie, then off to GitHub.
//
// HTTP: GET /account/services/github   (guard: user)
func (h *AccountHandler) HandleGitHubConnect(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, apperror.NotFound("service", "github"))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback finishes the linking flow: verifies the CSRF
// state, exchanges the code, and stores the access token as an
// AuthToken named "github" owned by the current user.
//
// HTTP: GET /account/services/github/callback?code=xxx&state=yyy   (guard: user)
func (h *AccountHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		writeError(w, apperror.NotFound("service", "github"))
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch or missing")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	clearCookie(w, "oauth_state")

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?link=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	link, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	user := auth.UserFromContext(r.Context())
	if _, err := h.accounts.LinkService(r.Context(), user, "github", link.AccessToken); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("github account linked",
		slog.String("userID", user.ID),
		slog.String("githubLogin", link.User.Login),
	)

	http.Redirect(w, r, "/account/services", http.StatusSeeOther)
}

// HandleListServices lists the current user's linked services. The
// token values themselves are never serialized.
//
// HTTP: GET /account/services   (guard: user)
func (h *AccountHandler) HandleListServices(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	tokens, err := h.accounts.LinkedServices(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// HandleUnlinkService removes one linked service.
//
// HTTP: DELETE /account/services/{id}   (guard: user)
func (h *AccountHandler) HandleUnlinkService(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperror.ValidationFailed("id", "token ID is required"))
		return
	}

	if err := h.accounts.UnlinkService(r.Context(), user, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// setSession issues a session token for userID as an HttpOnly cookie.
func (h *AccountHandler) setSession(w http.ResponseWriter, userID string) error {
	token, err := h.tokens.Generate(userID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionDuration / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // enable behind HTTPS
	})
	return nil
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
