// Package apiclient реализует HTTP-клиент к REST API бэкенда unifisign:
// получение анти-CSRF токена, подпись исходящих запросов и разбор
// структурированных ошибок в единую клиентскую таксономию.
package apiclient

import (
	"errors"
	"fmt"
	"strings"
)

// Сентинельные ошибки бизнес-уровня. Обработчики сценариев ветвятся
// по ним через errors.Is, а не по тексту сообщения.
var (
	// ErrNotReady анти-CSRF токен ещё не получен, запрос не отправлялся.
	ErrNotReady = errors.New("csrf token is not ready")
	// ErrEmailTaken учётная запись с таким email уже существует.
	ErrEmailTaken = errors.New("email is already registered")
	// ErrCodeInvalid введён неверный код подтверждения.
	ErrCodeInvalid = errors.New("verification code is invalid")
	// ErrCodeExpired срок действия кода подтверждения истёк.
	ErrCodeExpired = errors.New("verification code has expired")
	// ErrNotVerified учётная запись существует, но email не подтверждён.
	ErrNotVerified = errors.New("account is not verified")
	// ErrBadCredentials неверная пара email/пароль.
	ErrBadCredentials = errors.New("invalid credentials")
	// ErrValidation бэкенд отклонил значение поля.
	ErrValidation = errors.New("field validation failed")
)

// APIError структурированная ошибка ответа бэкенда.
// Поле Code — машиночитаемый код, если бэкенд его прислал.
type APIError struct {
	Status  int    // HTTP-статус ответа
	Code    string // Машиночитаемый код ошибки, может быть пустым
	Message string // Человекочитаемое сообщение бэкенда

	kind error // Сентинель, определённый при классификации
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("backend: status %d", e.Status)
}

// Unwrap отдаёт сентинель, чтобы работал errors.Is(err, ErrEmailTaken) и т.п.
func (e *APIError) Unwrap() error { return e.kind }

func newAPIError(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
		kind:    classify(code, message),
	}
}

// classify сопоставляет ответ бэкенда с сентинельной ошибкой.
// Приоритет у машиночитаемого кода; подстрочный поиск по тексту
// сообщения оставлен как совместимость со старыми версиями бэкенда,
// которые код не присылают.
func classify(code, message string) error {
	switch code {
	case "email_taken":
		return ErrEmailTaken
	case "otp_invalid":
		return ErrCodeInvalid
	case "otp_expired":
		return ErrCodeExpired
	case "account_not_verified":
		return ErrNotVerified
	case "bad_credentials":
		return ErrBadCredentials
	case "validation_failed":
		return ErrValidation
	}

	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "already registered"),
		strings.Contains(msg, "already exists"):
		return ErrEmailTaken
	case strings.Contains(msg, "expired"):
		return ErrCodeExpired
	case strings.Contains(msg, "invalid code"),
		strings.Contains(msg, "incorrect code"),
		strings.Contains(msg, "wrong code"):
		return ErrCodeInvalid
	case strings.Contains(msg, "not verified"):
		return ErrNotVerified
	case strings.Contains(msg, "invalid credentials"),
		strings.Contains(msg, "incorrect password"):
		return ErrBadCredentials
	case strings.Contains(msg, "invalid email"),
		strings.Contains(msg, "password must"):
		return ErrValidation
	}
	return nil
}
