package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const UserContextKey ContextKey = "user"

// LocalUser is the identity used for every request when auth is disabled.
const LocalUser = "local"

const tokenLifetime = 24 * time.Hour

type GithubUser struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type AuthResponse struct {
	User  GithubUser `json:"user"`
	Token string     `json:"token,omitempty"`
}

type Claims struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	jwt.RegisteredClaims
}

type Config struct {
	JwtSecret    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AllowedOrg   string
	Enabled      bool

	// GithubURL and GithubAPIURL default to the public GitHub endpoints.
	GithubURL    string
	GithubAPIURL string
}

// Authenticator issues and verifies session tokens after a GitHub OAuth login.
type Authenticator struct {
	cfg       Config
	secret    []byte
	oauthBase string
	apiBase   string
	http      *http.Client
}

func New(cfg Config) *Authenticator {
	a := &Authenticator{
		cfg:       cfg,
		secret:    []byte(cfg.JwtSecret),
		oauthBase: "https://github.com",
		apiBase:   "https://api.github.com",
		http:      &http.Client{Timeout: 10 * time.Second},
	}
	if cfg.GithubURL != "" {
		a.oauthBase = strings.TrimSuffix(cfg.GithubURL, "/")
	}
	if cfg.GithubAPIURL != "" {
		a.apiBase = strings.TrimSuffix(cfg.GithubAPIURL, "/")
	}
	return a
}

// Enabled returns whether authentication is enabled
func (a *Authenticator) Enabled() bool {
	return a != nil && a.cfg.Enabled
}

// GenerateState creates a random state parameter for OAuth
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// LoginURL returns the GitHub OAuth authorize URL
func (a *Authenticator) LoginURL(state string) string {
	scope := "read:user,user:email"
	if a.cfg.AllowedOrg != "" {
		scope += ",read:org"
	}
	q := url.Values{}
	q.Set("client_id", a.cfg.ClientID)
	q.Set("redirect_uri", a.cfg.RedirectURL)
	q.Set("scope", scope)
	q.Set("state", state)
	return a.oauthBase + "/login/oauth/authorize?" + q.Encode()
}

// ExchangeCode exchanges an OAuth code for a GitHub access token
func (a *Authenticator) ExchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.oauthBase+"/login/oauth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	var result struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		if result.Error != "" {
			return "", fmt.Errorf("failed to get access token: %s", result.Error)
		}
		return "", errors.New("failed to get access token")
	}
	return result.AccessToken, nil
}

// GithubUser fetches the profile behind accessToken and enforces the
// configured organization.
func (a *Authenticator) GithubUser(ctx context.Context, accessToken string) (*GithubUser, error) {
	resp, err := a.githubGet(ctx, accessToken, "/user")
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var user GithubUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}

	if a.cfg.AllowedOrg != "" && !a.isOrgMember(ctx, accessToken, user.Login) {
		return nil, errors.New("user is not a member of the required organization")
	}
	return &user, nil
}

// isOrgMember checks if user is a member of the configured organization
func (a *Authenticator) isOrgMember(ctx context.Context, accessToken, username string) bool {
	resp, err := a.githubGet(ctx, accessToken, fmt.Sprintf("/orgs/%s/members/%s", url.PathEscape(a.cfg.AllowedOrg), url.PathEscape(username)))
	if err != nil {
		return false
	}
	defer closeBody(resp)

	// 204 means user is a public member, 200 means private member
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent
}

func (a *Authenticator) githubGet(ctx context.Context, accessToken, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiBase+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	return a.http.Do(req)
}

// IssueToken creates a signed session token for user
func (a *Authenticator) IssueToken(user *GithubUser) (string, error) {
	now := time.Now()
	claims := Claims{
		Login:     user.Login,
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.Login,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken validates a session token and returns its user
func (a *Authenticator) ParseToken(tokenString string) (*GithubUser, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Login == "" {
		return nil, errors.New("invalid token")
	}
	return &GithubUser{
		Login:     claims.Login,
		Name:      claims.Name,
		Email:     claims.Email,
		AvatarURL: claims.AvatarURL,
	}, nil
}

// TokenFromRequest reads a bearer token or the auth_token cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// Middleware requires a valid token when auth is enabled. In open mode every
// request runs as LocalUser.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var user *GithubUser
		if !a.Enabled() {
			user = &GithubUser{Login: LocalUser, Name: "Local User"}
		} else {
			tokenString := TokenFromRequest(r)
			if tokenString == "" {
				writeUnauthorized(w, "Authentication required")
				return
			}
			u, err := a.ParseToken(tokenString)
			if err != nil {
				writeUnauthorized(w, "Invalid authentication token")
				return
			}
			user = u
		}
		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext extracts the authenticated user
func UserFromContext(ctx context.Context) *GithubUser {
	if user, ok := ctx.Value(UserContextKey).(*GithubUser); ok {
		return user
	}
	return nil
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": "unauthorized"})
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close response body")
	}
}
