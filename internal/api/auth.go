package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/codelore/internal/apperr"
	"github.com/seanblong/codelore/internal/auth"
	"github.com/seanblong/codelore/pkg/models"
)

const (
	stateCookie   = "oauth_state"
	sessionCookie = "auth_token"
)

func (s *Server) registerAuth(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]bool{"enabled": s.auth.Enabled()})
	})
	if !s.auth.Enabled() {
		return
	}
	mux.HandleFunc("GET /auth/github", s.handleLogin)
	mux.HandleFunc("GET /auth/callback", s.handleCallback)
	mux.HandleFunc("GET /auth/me", s.handleMe)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
}

func secure(r *http.Request) bool {
	return r.TLS != nil || strings.HasPrefix(r.Header.Get("X-Forwarded-Proto"), "https")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   secure(r),
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.auth.LoginURL(state), http.StatusTemporaryRedirect)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	c, err := r.Cookie(stateCookie)
	if err != nil || state == "" || c.Value != state {
		writeError(w, r, apperr.Invalid("invalid state parameter"))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if code == "" {
		writeError(w, r, apperr.Invalid("missing code parameter"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	accessToken, err := s.auth.ExchangeCode(ctx, code)
	if err != nil {
		writeError(w, r, apperr.Wrap(err, apperr.CodeUnauthorized, "failed to exchange code for token"))
		return
	}
	user, err := s.auth.GithubUser(ctx, accessToken)
	if err != nil {
		writeError(w, r, apperr.Wrap(err, apperr.CodeForbidden, "failed to get user info: "+err.Error()))
		return
	}
	if _, err := s.store.UpsertUser(ctx, models.User{
		ID:        user.Login,
		Email:     user.Email,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
	}); err != nil {
		writeError(w, r, err)
		return
	}

	token, err := s.auth.IssueToken(user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		Secure:   secure(r),
		SameSite: http.SameSiteLaxMode,
	})
	hlog.FromRequest(r).Info().Str("user", user.Login).Msg("signed in")
	writeJSON(w, r, http.StatusOK, auth.AuthResponse{User: *user, Token: token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if token == "" {
		writeError(w, r, apperr.New(apperr.CodeUnauthorized, "no authentication token"))
		return
	}
	user, err := s.auth.ParseToken(token)
	if err != nil {
		writeError(w, r, apperr.Wrap(err, apperr.CodeUnauthorized, "invalid token"))
		return
	}
	writeJSON(w, r, http.StatusOK, auth.AuthResponse{User: *user, Token: token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusOK)
}
