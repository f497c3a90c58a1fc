package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ignite/sendgrid-insights/internal/config"
	"github.com/ignite/sendgrid-insights/internal/metrics"
	"github.com/ignite/sendgrid-insights/internal/pkg/httputil"
	"github.com/ignite/sendgrid-insights/internal/pkg/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrMissingSecret      = errors.New("auth enabled without a signing secret")
)

type ctxKey struct{}

// Claims is the session token payload.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Manager checks dashboard credentials and issues session tokens.
type Manager struct {
	cfg    config.AuthConfig
	secret []byte
	secure bool
	now    func() time.Time
}

// NewManager creates a manager. secure sets the Secure flag on cookies.
func NewManager(cfg config.AuthConfig, secure bool) (*Manager, error) {
	if cfg.Enabled && cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "auth_token"
	}
	return &Manager{cfg: cfg, secret: []byte(cfg.Secret), secure: secure, now: time.Now}, nil
}

// Enabled reports whether requests must be authenticated.
func (m *Manager) Enabled() bool { return m.cfg.Enabled }

// CheckCredentials verifies a username/password pair.
func (m *Manager) CheckCredentials(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.cfg.Username)) == 1
	var passOK bool
	if m.cfg.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(m.cfg.PasswordHash), []byte(password)) == nil
	} else {
		passOK = m.cfg.Password != "" &&
			subtle.ConstantTimeCompare([]byte(password), []byte(m.cfg.Password)) == 1
	}
	if !userOK || !passOK || m.cfg.Username == "" {
		return ErrInvalidCredentials
	}
	return nil
}

// Issue signs a session token. remember selects the long lifetime.
func (m *Manager) Issue(username string, remember bool) (string, time.Time, error) {
	ttl := m.cfg.ShortSession()
	if remember {
		ttl = m.cfg.RememberSession()
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	now := m.now()
	expires := now.Add(ttl)
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

// Validate parses a token and returns its claims.
func (m *Manager) Validate(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || claims.Username == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (m *Manager) setCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(expires.Sub(m.now()).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// tokenFromRequest prefers the session cookie, then a Bearer header.
func (m *Manager) tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(m.cfg.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// HandleLogin checks credentials and sets the session cookie.
func (m *Manager) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.Decode(w, r, &req) {
		metrics.IncLogin("invalid")
		return
	}
	if err := m.CheckCredentials(req.Username, req.Password); err != nil {
		metrics.IncLogin("rejected")
		logger.Warn("login rejected", "component", "auth", "username", req.Username)
		httputil.Error(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	token, expires, err := m.Issue(req.Username, req.RememberMe)
	if err != nil {
		metrics.IncLogin("error")
		httputil.InternalError(w, err)
		return
	}
	m.setCookie(w, token, expires)
	metrics.IncLogin("ok")
	httputil.OK(w, map[string]interface{}{
		"authenticated": true,
		"username":      req.Username,
		"token":         token,
		"expires_at":    expires.UTC(),
	})
}

// HandleLogout clears the session cookie.
func (m *Manager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	m.clearCookie(w)
	httputil.OK(w, map[string]bool{"authenticated": false})
}

// HandleSession reports the current session.
func (m *Manager) HandleSession(w http.ResponseWriter, r *http.Request) {
	if !m.Enabled() {
		httputil.OK(w, map[string]interface{}{"authenticated": true, "auth_enabled": false})
		return
	}
	claims, err := m.Validate(m.tokenFromRequest(r))
	if err != nil {
		httputil.JSON(w, http.StatusUnauthorized, map[string]bool{"authenticated": false})
		return
	}
	httputil.OK(w, map[string]interface{}{
		"authenticated": true,
		"username":      claims.Username,
		"expires_at":    claims.ExpiresAt.Time.UTC(),
	})
}

// RequireAuth rejects requests without a valid session. It is a no-op when
// auth is disabled.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := m.Validate(m.tokenFromRequest(r))
		if err != nil {
			httputil.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims.Username)))
	})
}

// Username returns the authenticated user stored by RequireAuth.
func Username(ctx context.Context) string {
	u, _ := ctx.Value(ctxKey{}).(string)
	return u
}
