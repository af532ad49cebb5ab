// Package flow реализует сценарий регистрация → подтверждение кода →
// оплата в виде явного конечного автомата. Состояние хранится одним
// значением State, а не набором независимых флагов, поэтому
// недопустимые комбинации («успех и ошибка одновременно»)
// непредставимы по построению.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator"

	"github.com/binnypthomas/unifisign-sub001/internal/apiclient"
	"github.com/binnypthomas/unifisign-sub001/internal/catalog"
	"github.com/binnypthomas/unifisign-sub001/internal/lib/sl"
	"github.com/binnypthomas/unifisign-sub001/internal/lib/validate"
	"github.com/binnypthomas/unifisign-sub001/internal/models"
)

// State состояние сценария. Переходы описаны в методах автомата;
// после Verified повторные попытки проверки кода игнорируются.
type State int

const (
	// StateIdle форма регистрации, сценарий не начат.
	StateIdle State = iota
	// StateRegistering запрос регистрации в полёте.
	StateRegistering
	// StateAwaitingVerification ждём ввода кода подтверждения.
	StateAwaitingVerification
	// StateVerifyingCode запрос проверки кода в полёте.
	StateVerifyingCode
	// StateVerified email подтверждён, платный тариф ещё не оплачен.
	StateVerified
	// StateCreatingCheckout запрос сессии оплаты в полёте.
	StateCreatingCheckout
	// StateRedirectingToPayment сессия получена, ждём грейс-паузу перед переходом.
	StateRedirectingToPayment
	// StateCompleted бесплатный тариф, сценарий завершён.
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRegistering:
		return "registering"
	case StateAwaitingVerification:
		return "awaiting_verification"
	case StateVerifyingCode:
		return "verifying_code"
	case StateVerified:
		return "verified"
	case StateCreatingCheckout:
		return "creating_checkout"
	case StateRedirectingToPayment:
		return "redirecting_to_payment"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// API методы API-клиента, нужные автомату.
type API interface {
	// Ready сообщает о готовности анти-CSRF токена.
	Ready() bool
	// TriggerVerificationCode просит отправить код на почту.
	TriggerVerificationCode(ctx context.Context, email string) error
	// VerifyOTP проверяет код подтверждения.
	VerifyOTP(ctx context.Context, email, otp string) (*apiclient.VerifyResult, error)
	// CreateCheckoutSession запрашивает сессию оплаты.
	CreateCheckoutSession(ctx context.Context, priceID, successURL, cancelURL, mode string) (*models.CheckoutSession, error)
}

// Registrar создание учётной записи; реализуется хранилищем сессии.
type Registrar interface {
	Register(ctx context.Context, email, password string, packageID int) (bool, error)
}

// Navigator получает команду перехода на страницу оплаты.
type Navigator interface {
	Navigate(url string)
}

// Options тайминги и адреса возврата сценария.
type Options struct {
	ResendCooldown time.Duration // Пауза между отправками кода
	RedirectGrace  time.Duration // Пауза перед переходом на оплату
	SuccessURL     string        // Адрес возврата при успешной оплате
	CancelURL      string        // Адрес возврата при отмене оплаты
}

// Flow конечный автомат сценария регистрации.
// Методы потокобезопасны; сетевые вызовы выполняются без удержания
// мьютекса, повторные входы отсекаются флагом busy и текущим состоянием.
type Flow struct {
	api       API
	registrar Registrar
	nav       Navigator
	log       *slog.Logger
	validator *validator.Validate
	opts      Options

	mu            sync.Mutex
	state         State
	attempt       models.RegistrationAttempt
	otp           otpEntry
	lastErr       *FlowError
	busy          bool
	cooldownLeft  int
	cooldownStop  chan struct{}
	redirectTimer *time.Timer
	checkoutURL   string
	packageID     int
	closed        bool
}

type registrationForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,strongpwd"`
}

// New создает новый автомат сценария регистрации.
func New(api API, registrar Registrar, nav Navigator, opts Options, log *slog.Logger) *Flow {
	return &Flow{
		api:       api,
		registrar: registrar,
		nav:       nav,
		log:       log,
		validator: validate.New(),
		opts:      opts,
		state:     StateIdle,
	}
}

// Snapshot срез состояния автомата для отрисовки.
type Snapshot struct {
	State        State
	Busy         bool
	Err          *FlowError
	Digits       string // Введённые цифры кода
	Cursor       int    // Индекс активной ячейки
	CooldownLeft int    // Секунд до доступности повторной отправки
	CheckoutURL  string // Адрес страницы оплаты, если получен
	Email        string
}

// Snapshot возвращает согласованный срез состояния.
func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{
		State:        f.state,
		Busy:         f.busy,
		Err:          f.lastErr,
		Digits:       f.otp.code(),
		Cursor:       f.otp.cursor,
		CooldownLeft: f.cooldownLeft,
		CheckoutURL:  f.checkoutURL,
		Email:        f.attempt.Email,
	}
}

// State возвращает текущее состояние автомата.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err возвращает последнюю ошибку сценария или nil.
func (f *Flow) Err() *FlowError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// CooldownLeft секунд до доступности повторной отправки кода.
func (f *Flow) CooldownLeft() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cooldownLeft
}

// SubmitRegistration отправляет форму регистрации. До готовности
// анти-CSRF токена и при незаполненных полях запрос не уходит в сеть.
// При успехе сразу запрашивается отправка кода подтверждения.
func (f *Flow) SubmitRegistration(ctx context.Context, email, password, tier string) {
	const op = "flow.SubmitRegistration"
	log := f.log.With(slog.String("op", op), slog.String("email", email))

	f.mu.Lock()
	if f.state != StateIdle || f.busy {
		f.mu.Unlock()
		return
	}
	if !f.api.Ready() {
		f.lastErr = flowErr(KindNotReady, msgNotReady)
		f.mu.Unlock()
		log.Warn("registration blocked: csrf token not ready")
		return
	}
	if err := f.validator.Struct(registrationForm{Email: email, Password: password}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			f.lastErr = flowErr(KindValidation, validate.Message(verrs))
		} else {
			f.lastErr = flowErr(KindGeneric, msgGeneric)
		}
		f.mu.Unlock()
		return
	}

	f.attempt = models.RegistrationAttempt{
		Email:     email,
		Password:  password,
		PlanTier:  tier,
		PackageID: catalog.PackageID(tier),
	}
	f.state = StateRegistering
	f.lastErr = nil
	f.busy = true
	f.mu.Unlock()

	_, err := f.registrar.Register(ctx, email, password, catalog.PackageID(tier))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if f.closed {
		return
	}
	if err != nil {
		f.state = StateIdle
		f.lastErr = f.classifyRegistration(err)
		log.Warn("registration failed", sl.Err(err))
		return
	}
	log.Info("registration succeeded, requesting verification code")

	// учётная запись создана; код запрашивается без участия пользователя
	f.sendCodeLocked(ctx, log)
	f.state = StateAwaitingVerification
}

// classifyRegistration ровно одна ветвь на каждую неудачу регистрации.
func (f *Flow) classifyRegistration(err error) *FlowError {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, apiclient.ErrEmailTaken):
		return flowErr(KindEmailTaken, msgEmailTaken)
	case errors.Is(err, apiclient.ErrValidation):
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return flowErr(KindValidation, apiErr.Message)
		}
		return flowErr(KindValidation, msgGeneric)
	default:
		return flowErr(KindGeneric, msgGeneric)
	}
}

// sendCodeLocked запрашивает отправку кода. Вызывается с удержанным
// мьютексом; на время сетевого вызова мьютекс отпускается.
func (f *Flow) sendCodeLocked(ctx context.Context, log *slog.Logger) {
	email := f.attempt.Email
	f.busy = true
	f.mu.Unlock()

	err := f.api.TriggerVerificationCode(ctx, email)

	f.mu.Lock()
	f.busy = false
	if f.closed {
		return
	}
	if err != nil {
		// отдельный класс ошибки: учётная запись уже существует,
		// повторная отправка — явное действие пользователя
		f.lastErr = flowErr(KindOTPSendFailed, msgOTPSendFailed)
		log.Warn("verification code dispatch failed", sl.Err(err))
		return
	}
	f.lastErr = nil
	f.startCooldownLocked()
	log.Info("verification code sent")
}

// EnterDigit принимает одну цифру кода. Любое редактирование снимает
// ошибку предыдущей попытки; ввод четвёртой цифры сразу запускает проверку.
func (f *Flow) EnterDigit(ctx context.Context, r rune) {
	f.mu.Lock()
	if f.state != StateAwaitingVerification || f.busy {
		f.mu.Unlock()
		return
	}
	if !f.otp.enter(r) {
		f.mu.Unlock()
		return
	}
	f.lastErr = nil
	if !f.otp.complete() {
		f.mu.Unlock()
		return
	}
	f.verifyLocked(ctx)
	f.mu.Unlock()
}

// PasteCode принимает код из буфера обмена: ровно четыре цифры.
func (f *Flow) PasteCode(ctx context.Context, code string) {
	f.mu.Lock()
	if f.state != StateAwaitingVerification || f.busy {
		f.mu.Unlock()
		return
	}
	if !f.otp.paste(code) {
		f.mu.Unlock()
		return
	}
	f.lastErr = nil
	f.verifyLocked(ctx)
	f.mu.Unlock()
}

// SubmitCode явная отправка кода. Для неполного кода — ошибка поля.
func (f *Flow) SubmitCode(ctx context.Context) {
	f.mu.Lock()
	if f.state != StateAwaitingVerification || f.busy {
		f.mu.Unlock()
		return
	}
	if !f.otp.complete() {
		f.lastErr = flowErr(KindValidation, msgCodeLength)
		f.mu.Unlock()
		return
	}
	f.verifyLocked(ctx)
	f.mu.Unlock()
}

// verifyLocked проверяет собранный код. Вызывается с удержанным
// мьютексом и полным кодом; переход в StateVerifyingCode до сетевого
// вызова гарантирует не более одной проверки на полный код.
func (f *Flow) verifyLocked(ctx context.Context) {
	const op = "flow.verify"
	log := f.log.With(slog.String("op", op), slog.String("email", f.attempt.Email))

	f.state = StateVerifyingCode
	f.busy = true
	email, code := f.attempt.Email, f.otp.code()
	f.mu.Unlock()

	result, err := f.api.VerifyOTP(ctx, email, code)

	f.mu.Lock()
	f.busy = false
	if f.closed {
		return
	}
	if err != nil {
		// ячейки всегда очищаются: код вводится заново целиком
		f.otp.clear()
		f.state = StateAwaitingVerification
		switch {
		case errors.Is(err, apiclient.ErrCodeExpired):
			f.lastErr = flowErr(KindCodeExpired, msgCodeExpired)
		case errors.Is(err, apiclient.ErrCodeInvalid):
			f.lastErr = flowErr(KindCodeInvalid, msgCodeInvalid)
		default:
			f.lastErr = flowErr(KindGeneric, msgGeneric)
		}
		log.Warn("verification failed", sl.Err(err))
		return
	}

	f.lastErr = nil
	f.stopCooldownLocked()

	// платный путь только при явном указании оплаты и пакете выше бесплатного
	if result.Next == "redirect_to_payment" && result.PackageID > catalog.PackageFree {
		f.packageID = result.PackageID
		f.state = StateVerified
		log.Info("email verified, payment required", slog.Int("package_id", result.PackageID))
		f.createCheckoutLocked(ctx, log)
		return
	}

	f.state = StateCompleted
	log.Info("email verified, free plan complete")
}

// RetryCheckout повторяет создание сессии оплаты после неудачи.
// Подтверждение email при этом не требуется заново.
func (f *Flow) RetryCheckout(ctx context.Context) {
	const op = "flow.RetryCheckout"
	log := f.log.With(slog.String("op", op))

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateVerified || f.busy {
		return
	}
	f.lastErr = nil
	f.createCheckoutLocked(ctx, log)
}

// createCheckoutLocked разрешает пакет в продукт и запрашивает сессию
// оплаты. Неизвестный пакет — ошибка конфигурации, а не тихий откат.
func (f *Flow) createCheckoutLocked(ctx context.Context, log *slog.Logger) {
	product, err := catalog.ByPackageID(f.packageID)
	if err != nil {
		f.lastErr = flowErr(KindConfig, msgConfig)
		log.Error("no product for package", slog.Int("package_id", f.packageID), sl.Err(err))
		return
	}

	f.state = StateCreatingCheckout
	f.busy = true
	f.mu.Unlock()

	session, err := f.api.CreateCheckoutSession(ctx,
		product.PriceID, f.opts.SuccessURL, f.opts.CancelURL, product.Mode)

	f.mu.Lock()
	f.busy = false
	if f.closed {
		return
	}
	if err != nil {
		// подтверждение не теряется: можно повторить оплату без нового кода
		f.state = StateVerified
		f.lastErr = flowErr(KindCheckoutFailed, msgCheckout)
		log.Warn("checkout session creation failed", sl.Err(err))
		return
	}

	f.state = StateRedirectingToPayment
	f.checkoutURL = session.URL
	log.Info("checkout session created",
		slog.String("session_id", session.ID),
		slog.String("price_id", session.PriceID))

	// грейс-пауза, чтобы пользователь успел увидеть сообщение об успехе
	url := session.URL
	f.redirectTimer = time.AfterFunc(f.opts.RedirectGrace, func() {
		f.mu.Lock()
		discarded := f.closed || f.state != StateRedirectingToPayment
		f.mu.Unlock()
		if discarded {
			return
		}
		f.nav.Navigate(url)
	})
}

// ResendCode повторная отправка кода. Доступна до успешного
// подтверждения, заблокирована на время паузы между отправками
// и до готовности анти-CSRF токена. Начало отправки очищает ввод.
func (f *Flow) ResendCode(ctx context.Context) {
	const op = "flow.ResendCode"
	log := f.log.With(slog.String("op", op))

	f.mu.Lock()
	if f.state != StateAwaitingVerification || f.busy {
		f.mu.Unlock()
		return
	}
	if f.cooldownLeft > 0 {
		f.mu.Unlock()
		return
	}
	if !f.api.Ready() {
		f.lastErr = flowErr(KindNotReady, msgNotReady)
		f.mu.Unlock()
		return
	}
	f.otp.clear()
	f.lastErr = nil
	f.sendCodeLocked(ctx, log)
	f.mu.Unlock()
}

// startCooldownLocked запускает посекундный обратный отсчёт.
// Сбросить его может только новая успешная отправка.
func (f *Flow) startCooldownLocked() {
	if f.cooldownStop != nil {
		close(f.cooldownStop)
	}
	stop := make(chan struct{})
	f.cooldownStop = stop
	f.cooldownLeft = int(f.opts.ResendCooldown / time.Second)

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				f.mu.Lock()
				if f.cooldownLeft > 0 {
					f.cooldownLeft--
				}
				done := f.cooldownLeft == 0
				f.mu.Unlock()
				if done {
					return
				}
			}
		}
	}()
}

func (f *Flow) stopCooldownLocked() {
	if f.cooldownStop != nil {
		close(f.cooldownStop)
		f.cooldownStop = nil
	}
	f.cooldownLeft = 0
}

// Close останавливает таймеры сценария. Ответы, пришедшие после
// закрытия, отбрасываются, а не применяются к демонтированному потоку.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.cooldownStop != nil {
		close(f.cooldownStop)
		f.cooldownStop = nil
	}
	if f.redirectTimer != nil {
		f.redirectTimer.Stop()
	}
}
