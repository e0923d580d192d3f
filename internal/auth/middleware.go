package auth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Dav1dde/notifico/internal/model"
)

// Redirect targets used by the guards. Anonymous users are sent to the
// login page; already-authenticated users hitting login/signup pages
// are bounced back to the landing page.
const (
	LoginPath   = "/account/login"
	LandingPath = "/"
)

// contextKey is an unexported type for context keys so no other package
// can read or shadow the values this package stores.
type contextKey string

const userKey contextKey = "user"

// UserLoader resolves a user ID from a validated session token into a
// full user record with group memberships loaded. Implemented by the
// account service.
type UserLoader interface {
	ByID(ctx context.Context, id string) (*model.User, error)
}

// CurrentUser resolves the session cookie into a *model.User and stores
// it in the request context. It never blocks a request: a missing,
// invalid, or expired token — or a token whose user has since been
// deleted — just leaves the request anonymous.
//
// Install it once, globally, ahead of the guards; the guards only look
// at the context it populates.
func CurrentUser(tokens *TokenService, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(SessionCookie); err == nil {
				if userID, err := tokens.Validate(cookie.Value); err == nil {
					if user, err := users.ByID(r.Context(), userID); err == nil {
						r = r.WithContext(WithUser(r.Context(), user))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns a context carrying user as the authenticated
// session user. CurrentUser calls this for real requests; tests use it
// to build authenticated requests directly.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user for this request, or
// nil for an anonymous request.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userKey).(*model.User)
	return user
}

// RequireUser gates a handler on an authenticated session. Anonymous
// requests are redirected to the login page before the handler body
// runs; authenticated requests pass straight through.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireNoUser is the inverse guard, for login and signup pages: an
// already-authenticated user is flashed a notice and redirected to the
// landing page instead of seeing the form again.
func RequireNoUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) != nil {
			setFlash(w, "You are already logged in.")
			http.Redirect(w, r, LandingPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireGroup gates a handler on membership in the named group.
// Both anonymous users and authenticated non-members are redirected to
// the login page — deliberately not a 403, matching how the rest of the
// app treats missing authorization as "go log in (as someone else)".
func RequireGroup(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil || !user.InGroup(name) {
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// setFlash stores a one-shot notice in a short-lived cookie. The page
// layer (an external concern here) reads and clears it on next render.
func setFlash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "flash",
		Value:    url.QueryEscape(message),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
