package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binnypthomas/unifisign-sub001/internal/config"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

// фальшивый бэкенд со счастливым путём регистрации
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/csrf-token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"csrf_token": "tok-1"})
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
	})
	mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})
	mux.HandleFunc("/auth/triggerverificationcode", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})
	mux.HandleFunc("/auth/verifyotp", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "Account not verified",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, backendURL, input string) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{
		Env: "test",
		Backend: config.Backend{
			BaseURL:        backendURL,
			Timeout:        5 * time.Second,
			CSRFRetries:    2,
			CSRFRetryDelay: 10 * time.Millisecond,
			RequestsPerSec: 1000,
			RequestsBurst:  100,
		},
		ReturnListener: config.ReturnListener{
			AddressListener: "127.0.0.1:0",
			TimeoutListener: time.Second,
			IdleTimeout:     time.Second,
		},
		Signup: config.Signup{
			ResendCooldown: time.Minute,
			RedirectGrace:  10 * time.Millisecond,
			LogoutDelay:    10 * time.Millisecond,
		},
	}

	var out bytes.Buffer
	app, err := New(cfg, newNoopLogger(), strings.NewReader(input), &out)
	require.NoError(t, err)
	return app, &out
}

func TestRun_FreePlanSignup(t *testing.T) {
	backend := fakeBackend(t)
	app, out := newTestApp(t, backend.URL,
		"register a@x.com Aa123456 free\notp 1234\nquit\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Run(ctx))

	text := out.String()
	assert.Contains(t, text, "enter the 4-digit code sent to a@x.com")
	assert.Contains(t, text, "all set, your account is ready")
}

func TestRun_LoginNotVerifiedOffersRecovery(t *testing.T) {
	backend := fakeBackend(t)
	app, out := newTestApp(t, backend.URL,
		"login a@x.com Aa123456\nquit\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Run(ctx))

	text := out.String()
	// оба пути восстановления, никаких автоматических повторов или выхода
	assert.Contains(t, text, `"resend"`)
	assert.Contains(t, text, `"otp <digits>"`)
	assert.NotContains(t, text, "sign-in failed")
}

func TestRun_InvalidRegistrationInputStaysLocal(t *testing.T) {
	backend := fakeBackend(t)
	app, out := newTestApp(t, backend.URL,
		"register not-an-email weak pro\nquit\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Run(ctx))

	assert.Contains(t, out.String(), "field Email must be a valid email address")
}
