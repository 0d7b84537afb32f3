package session

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"dispensary/internal/api"
	"dispensary/internal/database"
	"dispensary/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) Login(ctx context.Context, email, password string) (*api.LoginResponse, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.LoginResponse), args.Error(1)
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-our-secret"))
	require.NoError(t, err)
	return token
}

func newManager(t *testing.T) (*Manager, *mockAuth, *database.DB) {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	auth := &mockAuth{}
	return NewManager(db, auth, zerolog.New(io.Discard)), auth, db
}

func TestDecode(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	s, err := Decode(signed(t, jwt.MapClaims{"sub": "A@X.COM", "role": "ROLE_PATIENT", "exp": exp.Unix()}))
	require.NoError(t, err)
	assert.Equal(t, "A@X.COM", s.Identity.Email)
	assert.Equal(t, "a@x.com", s.Identity.Key())
	assert.Equal(t, model.RolePatient, s.Identity.Role)
	assert.True(t, exp.Equal(s.ExpiresAt))

	s, err = Decode(signed(t, jwt.MapClaims{
		"sub":         "42",
		"email":       "doc@x.com",
		"authorities": []interface{}{map[string]interface{}{"authority": "ROLE_DOCTOR"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, "doc@x.com", s.Identity.Email)
	assert.Equal(t, model.RoleDoctor, s.Identity.Role)
	assert.True(t, s.ExpiresAt.IsZero())

	_, err = Decode("not-a-token")
	assert.Error(t, err)
}

func TestLoginResumeLogout(t *testing.T) {
	m, auth, db := newManager(t)
	ctx := context.Background()
	token := signed(t, jwt.MapClaims{"sub": "disp@x.com", "exp": time.Now().Add(time.Hour).Unix()})

	auth.On("Login", mock.Anything, "disp@x.com", "pw").
		Return(&api.LoginResponse{Token: token, Role: "DISPENSER"}, nil).Once()

	s, err := m.Login(ctx, Credentials{Email: " disp@x.com ", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleDispenser, s.Identity.Role)
	assert.Equal(t, token, s.Token())

	stored, err := db.Get(ctx, KeyRole)
	require.NoError(t, err)
	assert.Equal(t, "DISPENSER", stored)

	resumed, err := m.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.Identity, resumed.Identity)
	assert.Equal(t, token, resumed.Token())

	require.NoError(t, m.Logout(ctx, resumed))
	assert.Empty(t, resumed.Token())
	_, err = m.Resume(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
	auth.AssertExpectations(t)
}

func TestLogin_Failure(t *testing.T) {
	m, auth, db := newManager(t)
	ctx := context.Background()

	auth.On("Login", mock.Anything, "a@x.com", "bad").
		Return(nil, &api.APIError{Status: 401, Message: "Invalid credentials"}).Once()

	_, err := m.Login(ctx, Credentials{Email: "a@x.com", Password: "bad"})
	assert.True(t, api.IsUnauthorized(err))

	_, err = m.Login(ctx, Credentials{Email: "a@x.com"})
	assert.Error(t, err)

	v, err := db.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestResume_Expired(t *testing.T) {
	m, _, db := newManager(t)
	ctx := context.Background()
	token := signed(t, jwt.MapClaims{"sub": "a@x.com", "exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, db.Put(ctx, map[string]string{KeyToken: token, KeyRole: "PATIENT"}))

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err := m.Resume(ctx)
	assert.True(t, errors.Is(err, ErrExpired))

	v, err := db.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Empty(t, v)
}
