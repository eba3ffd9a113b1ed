package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/starchart/internal/identity"
	"github.com/dukerupert/starchart/internal/middleware"
)

type AuthHandler struct {
	provider     *identity.Provider
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(p *identity.Provider, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{provider: p, secureCookie: secureCookie, logger: logger}
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, http.StatusOK, "", "")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		h.renderLogin(w, http.StatusBadRequest, email, "Email and password are required.")
		return
	}

	sess, err := h.provider.SignIn(r.Context(), identity.Credential{Email: email, Password: password})
	if errors.Is(err, identity.ErrInvalidCredentials) {
		h.renderLogin(w, http.StatusUnauthorized, email, "Incorrect email or password.")
		return
	}
	if err != nil {
		h.logger.Error("sign in", "error", err)
		h.renderLogin(w, http.StatusInternalServerError, email, "Something went wrong. Please try again.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout ends the session. Open dashboards for it are told over the
// websocket by the sign-out subscriber.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.provider.SignOut(r.Context(), cookie.Value); err != nil {
			h.logger.Error("sign out", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login")
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, status int, email, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	err := templates.ExecuteTemplate(w, "login.html", map[string]string{
		"Email": email,
		"Error": msg,
	})
	if err != nil {
		h.logger.Error("render login", "error", err)
	}
}
