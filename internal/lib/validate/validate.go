// Package validate настраивает общий валидатор полей форм и
// формирует человекочитаемые сообщения о нарушениях.
package validate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator"
)

// New возвращает валидатор с зарегистрированным правилом strongpwd:
// минимум 8 символов, хотя бы одна заглавная и строчная буквы и цифра.
func New() *validator.Validate {
	v := validator.New()
	// регистрация не может завершиться ошибкой для корректного имени тега
	_ = v.RegisterValidation("strongpwd", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
	return v
}

// IsStrongPassword проверяет состав пароля.
func IsStrongPassword(s string) bool {
	if len(s) < 8 {
		return false
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasUpper && hasLower && hasDigit
}

// Message формирует текст ошибки по нарушениям валидации.
// Каждое нарушение превращается в фразу, фразы объединяются запятой.
func Message(errs validator.ValidationErrors) string {
	var msgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field %s must be a valid email address", err.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("field %s is too short", err.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("field %s is too long", err.Field()))
		case "strongpwd":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least 8 characters with an upper-case letter, a lower-case letter and a digit", err.Field()))
		case "eqfield":
			msgs = append(msgs, fmt.Sprintf("field %s does not match", err.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}
	return strings.Join(msgs, ", ")
}
