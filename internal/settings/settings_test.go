package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/binnypthomas/unifisign-sub001/internal/models"
)

type APIMock struct {
	mock.Mock
}

func (m *APIMock) Subscription(ctx context.Context) (*models.SubscriptionSummary, error) {
	args := m.Called(ctx)
	sub, _ := args.Get(0).(*models.SubscriptionSummary)
	return sub, args.Error(1)
}

func (m *APIMock) CancelSubscription(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *APIMock) UpdateProfile(ctx context.Context, displayName, email string) error {
	args := m.Called(ctx, displayName, email)
	return args.Error(0)
}

func (m *APIMock) ChangePassword(ctx context.Context, current, next string) error {
	args := m.Called(ctx, current, next)
	return args.Error(0)
}

func (m *APIMock) DeleteAccount(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *APIMock) CreateCheckoutSession(ctx context.Context, priceID, successURL, cancelURL, mode string) (*models.CheckoutSession, error) {
	args := m.Called(ctx, priceID, successURL, cancelURL, mode)
	session, _ := args.Get(0).(*models.CheckoutSession)
	return session, args.Error(1)
}

type SessionStoreMock struct {
	logouts int32
}

func (s *SessionStoreMock) Logout(ctx context.Context) {
	atomic.AddInt32(&s.logouts, 1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestService(api *APIMock, sessions *SessionStoreMock) *Service {
	return New(api, sessions, Options{
		SuccessURL:  "http://127.0.0.1:4242/checkout/return?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   "http://127.0.0.1:4242/checkout/return?canceled=1",
		LogoutDelay: 20 * time.Millisecond,
	}, newNoopLogger())
}

func TestLoadSubscription(t *testing.T) {
	api := new(APIMock)
	svc := newTestService(api, &SessionStoreMock{})

	api.On("Subscription", mock.Anything).
		Return(&models.SubscriptionSummary{PlanTier: "pro", Status: "active"}, nil)

	require.NoError(t, svc.LoadSubscription(context.Background()))

	require.NotNil(t, svc.Subscription())
	assert.Equal(t, "pro", svc.Subscription().PlanTier)
	assert.False(t, svc.SubscriptionLoading())
}

func TestLoadSubscription_FailureClearsLoading(t *testing.T) {
	api := new(APIMock)
	svc := newTestService(api, &SessionStoreMock{})

	api.On("Subscription", mock.Anything).Return(nil, errors.New("network down"))

	require.Error(t, svc.LoadSubscription(context.Background()))
	assert.False(t, svc.SubscriptionLoading())
	assert.Nil(t, svc.Subscription())
}

func TestUpdateProfile_Validation(t *testing.T) {
	tests := []struct {
		name        string
		displayName string
		email       string
		wantMsg     string
	}{
		{"name too short", "a", "a@x.com", "field DisplayName is too short"},
		{"bad email", "Anna", "not-an-email", "field Email must be a valid email address"},
		{"empty name", "", "a@x.com", "field DisplayName is a required field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := new(APIMock)
			svc := newTestService(api, &SessionStoreMock{})

			err := svc.UpdateProfile(context.Background(), tt.displayName, tt.email)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantMsg)
			api.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUpdateProfile_Success(t *testing.T) {
	api := new(APIMock)
	svc := newTestService(api, &SessionStoreMock{})

	api.On("UpdateProfile", mock.Anything, "Anna", "a@x.com").Return(nil)

	require.NoError(t, svc.UpdateProfile(context.Background(), "Anna", "a@x.com"))
}

func TestChangePassword_Validation(t *testing.T) {
	tests := []struct {
		name    string
		current string
		next    string
		confirm string
		wantMsg string
	}{
		{"weak new password", "Old12345", "weak", "weak", "upper-case"},
		{"confirmation mismatch", "Old12345", "Aa123456", "Aa123457", "field Confirm does not match"},
		{"missing current", "", "Aa123456", "Aa123456", "field Current is a required field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := new(APIMock)
			svc := newTestService(api, &SessionStoreMock{})

			err := svc.ChangePassword(context.Background(), tt.current, tt.next, tt.confirm)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantMsg)
			api.AssertNotCalled(t, "ChangePassword", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestChangePassword_Success(t *testing.T) {
	api := new(APIMock)
	svc := newTestService(api, &SessionStoreMock{})

	api.On("ChangePassword", mock.Anything, "Old12345", "Aa123456").Return(nil)

	require.NoError(t, svc.ChangePassword(context.Background(), "Old12345", "Aa123456", "Aa123456"))
}

func TestCancelSubscription_RefetchesState(t *testing.T) {
	api := new(APIMock)
	svc := newTestService(api, &SessionStoreMock{})

	api.On("CancelSubscription", mock.Anything).Return(nil)
	api.On("Subscription", mock.Anything).
		Return(&models.SubscriptionSummary{PlanTier: "pro", Status: "canceled"}, nil)

	require.NoError(t, svc.CancelSubscription(context.Background()))

	// состояние перечитано с бэкенда, а не поправлено локально
	api.AssertCalled(t, "Subscription", mock.Anything)
	assert.Equal(t, "canceled", svc.Subscription().Status)
}

func TestRetryCheckout(t *testing.T) {
	api := new(APIMock)
	svc := newTestService(api, &SessionStoreMock{})

	api.On("CreateCheckoutSession", mock.Anything,
		"price_1PUnifiSignProMonthly", mock.Anything, mock.Anything, "subscription").
		Return(&models.CheckoutSession{ID: "cs_9", URL: "https://checkout.example.com/cs_9"}, nil)

	session, err := svc.RetryCheckout(context.Background(), "pro")
	require.NoError(t, err)
	assert.Equal(t, "cs_9", session.ID)
}

func TestRetryCheckout_FreeTier(t *testing.T) {
	api := new(APIMock)
	svc := newTestService(api, &SessionStoreMock{})

	_, err := svc.RetryCheckout(context.Background(), "free")
	require.Error(t, err)
	api.AssertNotCalled(t, "CreateCheckoutSession",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteAccount_RequiresConfirmation(t *testing.T) {
	api := new(APIMock)
	sessions := &SessionStoreMock{}
	svc := newTestService(api, sessions)

	err := svc.DeleteAccount(context.Background(), "delete")
	require.ErrorIs(t, err, ErrConfirmationRequired)
	api.AssertNotCalled(t, "DeleteAccount", mock.Anything)
}

func TestDeleteAccount_ForcesLogoutAfterDelay(t *testing.T) {
	api := new(APIMock)
	sessions := &SessionStoreMock{}
	svc := newTestService(api, sessions)
	defer svc.Close()

	api.On("DeleteAccount", mock.Anything).Return(nil)

	require.NoError(t, svc.DeleteAccount(context.Background(), DeleteConfirmPhrase))

	// выход не мгновенный
	assert.Equal(t, int32(0), atomic.LoadInt32(&sessions.logouts))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&sessions.logouts) == 1
	}, time.Second, 5*time.Millisecond)
}
