package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/binnypthomas/unifisign-sub001/internal/models"
)

type AuthAPIMock struct {
	mock.Mock
}

func (m *AuthAPIMock) Login(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *AuthAPIMock) Register(ctx context.Context, email, password string, packageID int) (bool, error) {
	args := m.Called(ctx, email, password, packageID)
	return args.Bool(0), args.Error(1)
}

func (m *AuthAPIMock) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *AuthAPIMock) Me(ctx context.Context) (*models.User, error) {
	args := m.Called(ctx)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

type NavigatorMock struct {
	routes []string
}

func (n *NavigatorMock) Navigate(route string) {
	n.routes = append(n.routes, route)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestCheckSession_Success(t *testing.T) {
	api := new(AuthAPIMock)
	nav := &NavigatorMock{}
	store := New(api, nav, newNoopLogger())

	api.On("Me", mock.Anything).Return(&models.User{ID: "u-1", Email: "a@x.com"}, nil)

	store.CheckSession(context.Background())

	require.NotNil(t, store.CurrentUser())
	assert.Equal(t, "u-1", store.CurrentUser().ID)
	assert.False(t, store.Loading())
}

func TestCheckSession_FailureClearsUser(t *testing.T) {
	api := new(AuthAPIMock)
	nav := &NavigatorMock{}
	store := New(api, nav, newNoopLogger())
	store.setUser(&models.User{ID: "stale"})

	api.On("Me", mock.Anything).Return(nil, errors.New("network down"))

	store.CheckSession(context.Background())

	assert.Nil(t, store.CurrentUser())
	assert.False(t, store.Loading())
}

func TestLogin_Success(t *testing.T) {
	api := new(AuthAPIMock)
	nav := &NavigatorMock{}
	store := New(api, nav, newNoopLogger())

	api.On("Login", mock.Anything, "a@x.com", "Aa123456").
		Return(&models.User{ID: "u-1", Role: models.RoleUser, SubscriptionTier: "pro"}, nil)

	err := store.Login(context.Background(), "a@x.com", "Aa123456")
	require.NoError(t, err)
	assert.Equal(t, "pro", store.CurrentUser().SubscriptionTier)
	assert.Equal(t, []string{RouteDashboard}, nav.routes)
}

func TestLogin_PropagatesErrorUnmodified(t *testing.T) {
	api := new(AuthAPIMock)
	nav := &NavigatorMock{}
	store := New(api, nav, newNoopLogger())

	backendErr := errors.New("Account not verified")
	api.On("Login", mock.Anything, "a@x.com", "Aa123456").Return(nil, backendErr)

	err := store.Login(context.Background(), "a@x.com", "Aa123456")
	// ошибка бэкенда не оборачивается и не подменяется
	require.Same(t, backendErr, err)
	assert.Nil(t, store.CurrentUser())
	assert.Empty(t, nav.routes)
}

func TestRegister_PropagatesError(t *testing.T) {
	api := new(AuthAPIMock)
	nav := &NavigatorMock{}
	store := New(api, nav, newNoopLogger())

	backendErr := errors.New("User already exists")
	api.On("Register", mock.Anything, "a@x.com", "Aa123456", 2).Return(false, backendErr)

	ok, err := store.Register(context.Background(), "a@x.com", "Aa123456", 2)
	assert.False(t, ok)
	require.Same(t, backendErr, err)
}

func TestLogout_ClearsUserEvenOnBackendFailure(t *testing.T) {
	api := new(AuthAPIMock)
	nav := &NavigatorMock{}
	store := New(api, nav, newNoopLogger())
	store.setUser(&models.User{ID: "u-1"})

	api.On("Logout", mock.Anything).Return(errors.New("network down"))

	store.Logout(context.Background())

	assert.Nil(t, store.CurrentUser())
	assert.Equal(t, []string{RouteLanding}, nav.routes)
}
