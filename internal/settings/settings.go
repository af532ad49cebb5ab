// Package settings реализует самообслуживание учётной записи:
// просмотр и отмену подписки, правку профиля, смену пароля,
// повтор оплаты и удаление учётной записи.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator"

	"github.com/binnypthomas/unifisign-sub001/internal/catalog"
	"github.com/binnypthomas/unifisign-sub001/internal/lib/sl"
	"github.com/binnypthomas/unifisign-sub001/internal/lib/validate"
	"github.com/binnypthomas/unifisign-sub001/internal/models"
)

// ErrInvalidInput поле формы не прошло проверку; текст нарушений
// добавляется при оборачивании.
var ErrInvalidInput = errors.New("invalid input")

// ErrConfirmationRequired удаление учётной записи без подтверждающей фразы.
var ErrConfirmationRequired = errors.New("confirmation phrase does not match")

// DeleteConfirmPhrase фраза, которую пользователь вводит для удаления
// учётной записи. Второй шаг подтверждения, намеренно неудобный.
const DeleteConfirmPhrase = "DELETE"

// API методы API-клиента, нужные самообслуживанию.
type API interface {
	Subscription(ctx context.Context) (*models.SubscriptionSummary, error)
	CancelSubscription(ctx context.Context) error
	UpdateProfile(ctx context.Context, displayName, email string) error
	ChangePassword(ctx context.Context, current, next string) error
	DeleteAccount(ctx context.Context) error
	CreateCheckoutSession(ctx context.Context, priceID, successURL, cancelURL, mode string) (*models.CheckoutSession, error)
}

// SessionStore завершение сессии после удаления учётной записи.
type SessionStore interface {
	Logout(ctx context.Context)
}

// Options адреса возврата оплаты и задержка принудительного выхода.
type Options struct {
	SuccessURL  string
	CancelURL   string
	LogoutDelay time.Duration
}

// Service сервис самообслуживания. Загрузка подписки имеет свой флаг,
// независимый от операций с профилем.
type Service struct {
	api      API
	sessions SessionStore
	log      *slog.Logger
	validate *validator.Validate
	opts     Options

	mu           sync.RWMutex
	subscription *models.SubscriptionSummary
	subLoading   bool
	logoutTimer  *time.Timer
}

// New создает новый сервис самообслуживания.
func New(api API, sessions SessionStore, opts Options, log *slog.Logger) *Service {
	return &Service{
		api:      api,
		sessions: sessions,
		log:      log,
		validate: validate.New(),
		opts:     opts,
	}
}

type profileForm struct {
	DisplayName string `validate:"required,min=2,max=50"`
	Email       string `validate:"required,email"`
}

type passwordForm struct {
	Current string `validate:"required"`
	New     string `validate:"required,strongpwd"`
	Confirm string `validate:"required,eqfield=New"`
}

// Subscription возвращает последнюю загруженную сводку подписки или nil.
func (s *Service) Subscription() *models.SubscriptionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscription
}

// SubscriptionLoading сообщает, идёт ли загрузка сводки подписки.
func (s *Service) SubscriptionLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subLoading
}

// LoadSubscription запрашивает сводку подписки. Вызывается при входе
// на экран настроек; флаг загрузки снимается на всех путях выхода.
func (s *Service) LoadSubscription(ctx context.Context) error {
	const op = "settings.LoadSubscription"
	log := s.log.With(slog.String("op", op))

	s.mu.Lock()
	s.subLoading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.subLoading = false
		s.mu.Unlock()
	}()

	summary, err := s.api.Subscription(ctx)
	if err != nil {
		log.Warn("failed to load subscription", sl.Err(err))
		return err
	}

	s.mu.Lock()
	s.subscription = summary
	s.mu.Unlock()
	log.Info("subscription loaded", slog.String("plan", summary.PlanTier))
	return nil
}

// UpdateProfile меняет имя и email. Проверка полей выполняется
// до обращения к сети.
func (s *Service) UpdateProfile(ctx context.Context, displayName, email string) error {
	const op = "settings.UpdateProfile"
	log := s.log.With(slog.String("op", op))

	if err := s.validate.Struct(profileForm{DisplayName: displayName, Email: email}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", ErrInvalidInput, validate.Message(verrs))
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	if err := s.api.UpdateProfile(ctx, displayName, email); err != nil {
		log.Warn("profile update failed", sl.Err(err))
		return err
	}
	log.Info("profile updated")
	return nil
}

// ChangePassword меняет пароль с подтверждением нового значения.
func (s *Service) ChangePassword(ctx context.Context, current, next, confirm string) error {
	const op = "settings.ChangePassword"
	log := s.log.With(slog.String("op", op))

	if err := s.validate.Struct(passwordForm{Current: current, New: next, Confirm: confirm}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", ErrInvalidInput, validate.Message(verrs))
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	if err := s.api.ChangePassword(ctx, current, next); err != nil {
		log.Warn("password change failed", sl.Err(err))
		return err
	}
	log.Info("password changed")
	return nil
}

// CancelSubscription отменяет подписку и перечитывает её состояние
// с бэкенда. Никакой оптимистичной локальной правки: источником
// истины остаётся сервер.
func (s *Service) CancelSubscription(ctx context.Context) error {
	const op = "settings.CancelSubscription"
	log := s.log.With(slog.String("op", op))

	if err := s.api.CancelSubscription(ctx); err != nil {
		log.Warn("cancellation failed", sl.Err(err))
		return err
	}
	log.Info("subscription cancelled, refetching state")
	return s.LoadSubscription(ctx)
}

// RetryCheckout повторный запуск оплаты из настроек для подтверждённого,
// но не оплатившего пользователя. Использует тот же путь создания
// сессии, что и сценарий регистрации.
func (s *Service) RetryCheckout(ctx context.Context, tier string) (*models.CheckoutSession, error) {
	const op = "settings.RetryCheckout"
	log := s.log.With(slog.String("op", op), slog.String("tier", tier))

	product, err := catalog.ByPackageID(catalog.PackageID(tier))
	if err != nil {
		log.Error("no product for tier", sl.Err(err))
		return nil, err
	}

	session, err := s.api.CreateCheckoutSession(ctx,
		product.PriceID, s.opts.SuccessURL, s.opts.CancelURL, product.Mode)
	if err != nil {
		log.Warn("checkout session creation failed", sl.Err(err))
		return nil, err
	}
	log.Info("checkout session created", slog.String("session_id", session.ID))
	return session, nil
}

// DeleteAccount удаляет учётную запись после ввода подтверждающей
// фразы. При успехе выход выполняется принудительно после короткой
// задержки, чтобы пользователь успел увидеть сообщение.
func (s *Service) DeleteAccount(ctx context.Context, confirmation string) error {
	const op = "settings.DeleteAccount"
	log := s.log.With(slog.String("op", op))

	if confirmation != DeleteConfirmPhrase {
		return ErrConfirmationRequired
	}

	if err := s.api.DeleteAccount(ctx); err != nil {
		log.Warn("account deletion failed", sl.Err(err))
		return err
	}
	log.Info("account deleted, scheduling forced logout")

	s.mu.Lock()
	s.logoutTimer = time.AfterFunc(s.opts.LogoutDelay, func() {
		s.sessions.Logout(context.Background())
	})
	s.mu.Unlock()
	return nil
}

// Close останавливает отложенный выход, если он был запланирован.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logoutTimer != nil {
		s.logoutTimer.Stop()
	}
}
