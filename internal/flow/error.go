package flow

// ErrorKind классы ошибок сценария регистрации. Каждому классу
// соответствует своё сообщение и своё действие восстановления.
type ErrorKind int

const (
	// KindNotReady анти-CSRF токен ещё не получен, запрос не отправлялся.
	KindNotReady ErrorKind = iota + 1
	// KindEmailTaken email уже зарегистрирован; предлагаем вход вместо регистрации.
	KindEmailTaken
	// KindValidation поле формы не прошло проверку.
	KindValidation
	// KindOTPSendFailed учётная запись создана, но письмо с кодом не отправлено.
	KindOTPSendFailed
	// KindCodeInvalid введён неверный код подтверждения.
	KindCodeInvalid
	// KindCodeExpired срок действия кода истёк.
	KindCodeExpired
	// KindConfig неизвестный идентификатор пакета; нужна поддержка, а не тихий откат.
	KindConfig
	// KindCheckoutFailed не удалось создать сессию оплаты; подтверждение не теряется.
	KindCheckoutFailed
	// KindGeneric нераспознанная ошибка, предлагаем повторить.
	KindGeneric
)

// FlowError ошибка сценария: класс плюс текст для пользователя.
type FlowError struct {
	Kind    ErrorKind
	Message string
}

func (e *FlowError) Error() string { return e.Message }

// Тексты сообщений для пользователя.
const (
	msgNotReady      = "The system is still initializing, please try again in a moment"
	msgEmailTaken    = "This email is already registered, sign in instead"
	msgOTPSendFailed = "Your account was created but the verification email failed to send, use resend to try again"
	msgCodeInvalid   = "The code you entered is incorrect, please try again"
	msgCodeExpired   = "This code has expired, request a new one"
	msgConfig        = "Plan configuration error, please contact support"
	msgCheckout      = "Could not start the payment process, please try again"
	msgGeneric       = "Something went wrong, please try again"
	msgCodeLength    = "Enter all four digits of the code"
)

func flowErr(kind ErrorKind, message string) *FlowError {
	return &FlowError{Kind: kind, Message: message}
}
