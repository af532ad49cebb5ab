// Package returnserver поднимает локальный HTTP-сервер, на который
// платёжный шлюз возвращает пользователя после оплаты. Сервер
// извлекает идентификатор сессии из адреса возврата, запрашивает её
// состояние у бэкенда и отдаёт итог. Слушает только loopback.
package returnserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/binnypthomas/unifisign-sub001/internal/apiclient"
	"github.com/binnypthomas/unifisign-sub001/internal/config"
	"github.com/binnypthomas/unifisign-sub001/internal/lib/sl"
)

// API метод API-клиента, нужный серверу возврата.
type API interface {
	CheckoutSessionStatus(ctx context.Context, sessionID string) (*apiclient.SessionStatus, error)
}

// Server локальный сервер возврата с оплаты.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

var limiter = rate.NewLimiter(5, 10)

func rateLimitMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Error("too many requests")
				w.WriteHeader(http.StatusTooManyRequests)
				render.JSON(w, r, Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// New создает сервер возврата и настраивает маршруты.
func New(cfg config.ReturnListener, api API, log *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(rateLimitMiddleware(log))

	router.Get("/checkout/return", checkoutReturnHandler(api, log))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, OK(nil))
	})
	router.Handle("/metrics", promhttp.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.AddressListener,
			Handler:      router,
			ReadTimeout:  cfg.TimeoutListener,
			WriteTimeout: cfg.TimeoutListener,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func checkoutReturnHandler(api API, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "returnserver.checkoutReturn"

		log := logger.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if r.URL.Query().Get("canceled") == "1" {
			log.Info("checkout canceled by user")
			render.JSON(w, r, OK(map[string]any{"outcome": "canceled"}))
			return
		}

		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			log.Error("missing session_id in return url")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, Error("missing session_id"))
			return
		}

		status, err := api.CheckoutSessionStatus(r.Context(), sessionID)
		if err != nil {
			log.Error("failed to fetch session status", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, Error("failed to fetch session status"))
			return
		}

		log.Info("checkout completed",
			slog.String("session_id", sessionID),
			slog.String("status", status.Status))
		render.JSON(w, r, OK(map[string]any{
			"outcome":      "completed",
			"status":       status.Status,
			"subscription": status.Subscription,
		}))
	}
}

// Run запускает сервер и корректно останавливает его по отмене контекста.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("return listener started", slog.String("address", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.httpServer.ReadTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
