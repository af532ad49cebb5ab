package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/binnypthomas/unifisign-sub001/internal/config"
	"github.com/binnypthomas/unifisign-sub001/internal/lib/sl"
)

// Client клиент REST API бэкенда. Сессионная cookie управляется
// бэкендом и хранится в cookiejar, клиент её не читает и не разбирает.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger

	csrfRetries    int
	csrfRetryDelay time.Duration

	mu        sync.RWMutex
	csrfToken string
}

// New создаёт новый клиент по настройкам из конфига.
func New(cfg config.Backend, log *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.RequestsBurst),
		log:            log,
		csrfRetries:    cfg.CSRFRetries,
		csrfRetryDelay: cfg.CSRFRetryDelay,
	}, nil
}

// Ready сообщает, получен ли анти-CSRF токен. Пока false,
// изменяющие запросы отклоняются без обращения к сети.
func (c *Client) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.csrfToken != ""
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.csrfToken
}

// Init получает анти-CSRF токен с ограниченным числом повторов.
// После исчерпания повторов Ready остаётся false; вызывающая сторона
// может повторить попытку через Refresh.
func (c *Client) Init(ctx context.Context) error {
	const op = "apiclient.Init"

	var lastErr error
	for attempt := 1; attempt <= c.csrfRetries; attempt++ {
		err := c.Refresh(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		c.log.Warn("csrf token fetch failed",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			sl.Err(err))

		if attempt == c.csrfRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.csrfRetryDelay):
		}
	}
	return fmt.Errorf("failed to obtain csrf token: %w", lastErr)
}

// Refresh выполняет одиночный запрос токена.
func (c *Client) Refresh(ctx context.Context) error {
	var resp struct {
		CSRFToken string `json:"csrf_token"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/auth/csrf-token", nil, &resp); err != nil {
		return err
	}
	if resp.CSRFToken == "" {
		return fmt.Errorf("backend returned empty csrf token")
	}

	c.mu.Lock()
	c.csrfToken = resp.CSRFToken
	c.mu.Unlock()
	c.log.Debug("csrf token refreshed", sl.Secret("csrf_token", resp.CSRFToken))
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", c.token())
	}
	return req, nil
}

// do выполняет запрос и декодирует JSON-ответ в out.
// Изменяющие запросы до готовности токена отклоняются с ErrNotReady.
// Ответ с кодом >= 400 и неразборным телом превращается в APIError
// с одним лишь статусом.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	if method != http.MethodGet && !c.Ready() {
		return 0, ErrNotReady
	}
	// метка метрики без строки запроса, иначе кардинальность растёт
	// с каждым session_id
	endpoint := path
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "error").Inc()
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			requestsTotal.WithLabelValues(endpoint, "error").Inc()
			if resp.StatusCode >= http.StatusBadRequest {
				return resp.StatusCode, newAPIError(resp.StatusCode, "", http.StatusText(resp.StatusCode))
			}
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	requestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return resp.StatusCode, nil
}
