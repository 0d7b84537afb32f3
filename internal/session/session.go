// Package session owns the login lifecycle: the bearer token, the identity
// decoded from it, and its persistence between runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dispensary/internal/api"
	"dispensary/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Keys under which the session is persisted.
const (
	KeyToken = "token"
	KeyRole  = "role"
)

var (
	ErrNoSession = errors.New("no saved session; run login first")
	ErrExpired   = errors.New("session expired; run login again")
)

// Credentials are what the user types at login.
type Credentials struct {
	Email    string
	Password string
}

// Session is an authenticated identity with its bearer token.
type Session struct {
	Identity  model.Identity
	ExpiresAt time.Time

	token string
}

// Token implements api.TokenSource.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.token
}

// Store persists session keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
}

// Manager creates, restores and ends sessions.
type Manager struct {
	store  Store
	auth   Authenticator
	now    func() time.Time
	logger zerolog.Logger
}

func NewManager(store Store, auth Authenticator, logger zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		auth:   auth,
		now:    time.Now,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// Login authenticates and persists the new session.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*Session, error) {
	email := strings.TrimSpace(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, fmt.Errorf("email and password are required")
	}
	resp, err := m.auth.Login(ctx, email, creds.Password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	s, err := Decode(resp.Token)
	if err != nil {
		return nil, err
	}
	if r := model.ParseRole(resp.Role); r != "" {
		s.Identity.Role = r
	}
	if s.Identity.Email == "" {
		s.Identity.Email = email
	}

	if err := m.store.Put(ctx, map[string]string{
		KeyToken: s.token,
		KeyRole:  string(s.Identity.Role),
	}); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	m.logger.Info().Str("email", s.Identity.Email).Str("role", string(s.Identity.Role)).Msg("logged in")
	return s, nil
}

// Resume restores the persisted session. An expired token is cleared.
func (m *Manager) Resume(ctx context.Context) (*Session, error) {
	token, err := m.store.Get(ctx, KeyToken)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if token == "" {
		return nil, ErrNoSession
	}

	s, err := Decode(token)
	if err != nil {
		return nil, err
	}
	if !s.ExpiresAt.IsZero() && !m.now().Before(s.ExpiresAt) {
		_ = m.store.Delete(ctx, KeyToken, KeyRole)
		return nil, ErrExpired
	}

	role, err := m.store.Get(ctx, KeyRole)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if r := model.ParseRole(role); r != "" {
		s.Identity.Role = r
	}
	return s, nil
}

// Logout forgets the session locally.
func (m *Manager) Logout(ctx context.Context, s *Session) error {
	if err := m.store.Delete(ctx, KeyToken, KeyRole); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if s != nil {
		s.token = ""
		m.logger.Info().Str("email", s.Identity.Email).Msg("logged out")
	}
	return nil
}

// Decode reads identity claims from token without verifying the signature.
// The result gates display and ownership only.
func Decode(token string) (*Session, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("decode token: unexpected claims type")
	}

	s := &Session{token: token}
	s.Identity.Email = stringClaim(claims, "email")
	if s.Identity.Email == "" {
		s.Identity.Email = stringClaim(claims, "sub")
	}
	s.Identity.Role = roleClaim(claims)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}
	return s, nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	v, _ := claims[name].(string)
	return strings.TrimSpace(v)
}

// roleClaim accepts "role" as a string, or "roles"/"authorities" as a list.
func roleClaim(claims jwt.MapClaims) model.Role {
	if r := model.ParseRole(stringClaim(claims, "role")); r != "" {
		return r
	}
	for _, name := range []string{"roles", "authorities"} {
		list, _ := claims[name].([]interface{})
		for _, item := range list {
			switch v := item.(type) {
			case string:
				if r := model.ParseRole(v); r != "" {
					return r
				}
			case map[string]interface{}:
				if s, ok := v["authority"].(string); ok {
					if r := model.ParseRole(s); r != "" {
						return r
					}
				}
			}
		}
	}
	return ""
}
