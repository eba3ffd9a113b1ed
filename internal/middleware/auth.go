package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dukerupert/starchart/internal/auth"
	"github.com/dukerupert/starchart/internal/model"
)

const SessionCookieName = "starchart_session"

// SessionResolver looks up a live session by token.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*model.Session, error)
}

// RequireAuth validates the session cookie and populates AuthContext.
// API requests get a 401 JSON body; HTMX requests get an HX-Redirect header;
// everything else is redirected to /login.
func RequireAuth(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				redirectToLogin(w, r)
				return
			}

			sess, err := sessions.Resolve(r.Context(), cookie.Value)
			if err != nil || sess == nil {
				redirectToLogin(w, r)
				return
			}

			ac := auth.AuthContext{
				UserID:    sess.UserID,
				Email:     sess.Email,
				SessionID: sess.ID,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/"):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"authentication required"}`))
	case r.Header.Get("HX-Request") == "true":
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
	default:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}
