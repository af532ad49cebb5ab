package returnserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/binnypthomas/unifisign-sub001/internal/apiclient"
	"github.com/binnypthomas/unifisign-sub001/internal/config"
)

type APIMock struct {
	mock.Mock
}

func (m *APIMock) CheckoutSessionStatus(ctx context.Context, sessionID string) (*apiclient.SessionStatus, error) {
	args := m.Called(ctx, sessionID)
	status, _ := args.Get(0).(*apiclient.SessionStatus)
	return status, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestServer(t *testing.T, api *APIMock) *httptest.Server {
	t.Helper()
	s := New(config.ReturnListener{
		AddressListener: "127.0.0.1:0",
		TimeoutListener: 5 * time.Second,
		IdleTimeout:     30 * time.Second,
	}, api, newNoopLogger())

	srv := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string) (int, Response) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var body Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestCheckoutReturn_Completed(t *testing.T) {
	api := new(APIMock)
	api.On("CheckoutSessionStatus", mock.Anything, "cs_test_1").
		Return(&apiclient.SessionStatus{Status: "complete", Subscription: "pro"}, nil)

	srv := newTestServer(t, api)

	code, body := getJSON(t, srv.URL+"/checkout/return?session_id=cs_test_1")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusOK, body.Status)

	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "completed", data["outcome"])
	assert.Equal(t, "complete", data["status"])
	assert.Equal(t, "pro", data["subscription"])
}

func TestCheckoutReturn_Canceled(t *testing.T) {
	api := new(APIMock)
	srv := newTestServer(t, api)

	code, body := getJSON(t, srv.URL+"/checkout/return?canceled=1")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusOK, body.Status)
	api.AssertNotCalled(t, "CheckoutSessionStatus", mock.Anything, mock.Anything)
}

func TestCheckoutReturn_MissingSessionID(t *testing.T) {
	api := new(APIMock)
	srv := newTestServer(t, api)

	code, body := getJSON(t, srv.URL+"/checkout/return")

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, StatusError, body.Status)
	assert.Equal(t, "missing session_id", body.Error)
}

func TestCheckoutReturn_BackendFailure(t *testing.T) {
	api := new(APIMock)
	api.On("CheckoutSessionStatus", mock.Anything, "cs_test_2").
		Return(nil, errors.New("backend unavailable"))

	srv := newTestServer(t, api)

	code, body := getJSON(t, srv.URL+"/checkout/return?session_id=cs_test_2")

	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, StatusError, body.Status)
}

func TestHealthz(t *testing.T) {
	api := new(APIMock)
	srv := newTestServer(t, api)

	code, body := getJSON(t, srv.URL+"/healthz")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusOK, body.Status)
}
