// Package session хранит текущего пользователя процесса и реализует
// операции входа, регистрации и выхода поверх API-клиента.
// Наличие пользователя означает аутентифицированную сессию,
// отсутствие — анонимную. Никаких учётных данных пакет не хранит.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/binnypthomas/unifisign-sub001/internal/lib/sl"
	"github.com/binnypthomas/unifisign-sub001/internal/models"
)

// Маршруты навигации после смены состояния сессии.
const (
	RouteDashboard = "/dashboard"
	RouteLanding   = "/"
)

// AuthAPI методы API-клиента, нужные хранилищу сессии.
type AuthAPI interface {
	// Login аутентифицирует пользователя и возвращает его профиль.
	Login(ctx context.Context, email, password string) (*models.User, error)
	// Register создаёт учётную запись и возвращает признак успеха.
	Register(ctx context.Context, email, password string, packageID int) (bool, error)
	// Logout завершает сессию на бэкенде.
	Logout(ctx context.Context) error
	// Me возвращает пользователя по текущей сессионной cookie.
	Me(ctx context.Context) (*models.User, error)
}

// Navigator получает сигналы навигации от хранилища сессии.
type Navigator interface {
	Navigate(route string)
}

// Store потокобезопасное хранилище текущего пользователя.
type Store struct {
	api AuthAPI
	nav Navigator
	log *slog.Logger

	mu      sync.RWMutex
	user    *models.User
	loading bool
}

// New создает новое хранилище сессии.
func New(api AuthAPI, nav Navigator, log *slog.Logger) *Store {
	return &Store{
		api: api,
		nav: nav,
		log: log,
	}
}

// CurrentUser возвращает текущего пользователя или nil.
func (s *Store) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Loading сообщает, идёт ли сейчас проверка сессии.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) setUser(u *models.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// CheckSession запрашивает у бэкенда текущую личность. Любая неудача
// очищает пользователя; флаг loading снимается на всех путях выхода.
func (s *Store) CheckSession(ctx context.Context) {
	const op = "session.CheckSession"
	log := s.log.With(slog.String("op", op))

	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.api.Me(ctx)
	if err != nil {
		log.Info("session check failed, clearing user", sl.Err(err))
		s.setUser(nil)
		return
	}
	s.setUser(user)
	log.Info("session restored", slog.String("user_id", user.ID))
}

// Login аутентифицирует пользователя. Ошибка бэкенда возвращается
// без изменений: вызывающая сторона ветвится по ней сама.
// Готовность анти-CSRF токена — предусловие вызывающей стороны.
func (s *Store) Login(ctx context.Context, email, password string) error {
	const op = "session.Login"
	log := s.log.With(slog.String("op", op), slog.String("email", email))

	user, err := s.api.Login(ctx, email, password)
	if err != nil {
		log.Warn("login failed", sl.Err(err))
		return err
	}

	s.setUser(user)
	log.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role.String()))
	s.nav.Navigate(RouteDashboard)
	return nil
}

// Register создаёт учётную запись. Ошибки пробрасываются без изменений.
func (s *Store) Register(ctx context.Context, email, password string, packageID int) (bool, error) {
	const op = "session.Register"
	log := s.log.With(slog.String("op", op), slog.String("email", email))

	ok, err := s.api.Register(ctx, email, password, packageID)
	if err != nil {
		log.Warn("registration failed", sl.Err(err))
		return false, err
	}
	log.Info("user registered", slog.Int("package_id", packageID))
	return ok, nil
}

// Logout завершает сессию. Локальный пользователь очищается независимо
// от исхода запроса: после явного выхода состояние не должно остаться
// устаревшим даже при сетевой ошибке.
func (s *Store) Logout(ctx context.Context) {
	const op = "session.Logout"
	log := s.log.With(slog.String("op", op))

	if err := s.api.Logout(ctx); err != nil {
		log.Warn("backend logout failed, clearing local state anyway", sl.Err(err))
	}
	s.setUser(nil)
	s.nav.Navigate(RouteLanding)
}
