// Package client собирает клиент unifisign из частей: API-клиент,
// хранилище сессии, автомат регистрации, самообслуживание и локальный
// сервер возврата с оплаты. Терминальный цикл — единственная
// интерактивная поверхность.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/binnypthomas/unifisign-sub001/internal/apiclient"
	"github.com/binnypthomas/unifisign-sub001/internal/config"
	"github.com/binnypthomas/unifisign-sub001/internal/flow"
	"github.com/binnypthomas/unifisign-sub001/internal/lib/sl"
	"github.com/binnypthomas/unifisign-sub001/internal/returnserver"
	"github.com/binnypthomas/unifisign-sub001/internal/session"
	"github.com/binnypthomas/unifisign-sub001/internal/settings"
)

// printNavigator выводит адрес перехода в терминал: браузер здесь
// заменяет пользователь, открывающий ссылку сам.
type printNavigator struct {
	out io.Writer
}

func (n *printNavigator) Navigate(url string) {
	fmt.Fprintf(n.out, "==> open: %s\n", url)
}

// App собранный клиент.
type App struct {
	cfg *config.Config
	log *slog.Logger

	api          *apiclient.Client
	sessions     *session.Store
	signup       *flow.Flow
	selfService  *settings.Service
	returnServer *returnserver.Server

	in  io.Reader
	out io.Writer
}

// New создает приложение и связывает все части.
func New(cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) (*App, error) {
	api, err := apiclient.New(cfg.Backend, logger)
	if err != nil {
		return nil, err
	}

	nav := &printNavigator{out: out}
	sessions := session.New(api, nav, logger)

	successURL := "http://" + cfg.AddressListener + "/checkout/return?session_id={CHECKOUT_SESSION_ID}"
	cancelURL := "http://" + cfg.AddressListener + "/checkout/return?canceled=1"

	signup := flow.New(api, sessions, nav, flow.Options{
		ResendCooldown: cfg.ResendCooldown,
		RedirectGrace:  cfg.RedirectGrace,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
	}, logger)

	selfService := settings.New(api, sessions, settings.Options{
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
		LogoutDelay: cfg.LogoutDelay,
	}, logger)

	return &App{
		cfg:          cfg,
		log:          logger,
		api:          api,
		sessions:     sessions,
		signup:       signup,
		selfService:  selfService,
		returnServer: returnserver.New(cfg.ReturnListener, api, logger),
		in:           in,
		out:          out,
	}, nil
}

// Run получает анти-CSRF токен, восстанавливает сессию, поднимает
// сервер возврата и входит в терминальный цикл.
func (a *App) Run(ctx context.Context) error {
	const op = "client.Run"
	log := a.log.With(slog.String("op", op))

	defer a.signup.Close()
	defer a.selfService.Close()

	// неудача не фатальна: операции будут отклоняться до готовности,
	// пользователь может повторить инициализацию командой retry-init
	if err := a.api.Init(ctx); err != nil {
		log.Warn("csrf init failed, mutating requests stay blocked", sl.Err(err))
		fmt.Fprintln(a.out, "warning: system is still initializing, sign-in and sign-up are disabled")
	}

	a.sessions.CheckSession(ctx)
	if user := a.sessions.CurrentUser(); user != nil {
		fmt.Fprintf(a.out, "signed in as %s (%s)\n", user.Email, user.SubscriptionTier)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.returnServer.Run(ctx)
	}()

	replDone := make(chan struct{})
	go func() {
		defer close(replDone)
		a.repl(ctx)
	}()

	select {
	case <-ctx.Done():
		<-serverErr
		return nil
	case err := <-serverErr:
		return err
	case <-replDone:
		return nil
	}
}

func (a *App) repl(ctx context.Context) {
	scanner := bufio.NewScanner(a.in)
	fmt.Fprintln(a.out, `unifisign client, type "help" for commands`)

	for {
		fmt.Fprint(a.out, "> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "help":
			a.printHelp()
		case "quit", "exit":
			return
		case "retry-init":
			if err := a.api.Refresh(ctx); err != nil {
				fmt.Fprintln(a.out, "initialization failed, try again later")
				continue
			}
			fmt.Fprintln(a.out, "ready")
		case "register":
			if len(args) != 3 {
				fmt.Fprintln(a.out, "usage: register <email> <password> <free|pro|enterprise>")
				continue
			}
			a.signup.SubmitRegistration(ctx, args[0], args[1], args[2])
			a.printSignupState()
		case "otp":
			if len(args) != 1 {
				fmt.Fprintln(a.out, "usage: otp <digits>")
				continue
			}
			a.enterOTP(ctx, args[0])
			a.printSignupState()
		case "submit":
			a.signup.SubmitCode(ctx)
			a.printSignupState()
		case "resend":
			a.signup.ResendCode(ctx)
			a.printSignupState()
		case "retry-checkout":
			a.signup.RetryCheckout(ctx)
			a.printSignupState()
		case "login":
			if len(args) != 2 {
				fmt.Fprintln(a.out, "usage: login <email> <password>")
				continue
			}
			a.login(ctx, args[0], args[1])
		case "logout":
			a.sessions.Logout(ctx)
		case "whoami":
			if user := a.sessions.CurrentUser(); user != nil {
				fmt.Fprintf(a.out, "%s (%s, %s)\n", user.Email, user.Role, user.SubscriptionTier)
			} else {
				fmt.Fprintln(a.out, "not signed in")
			}
		case "subscription":
			a.showSubscription(ctx)
		case "cancel-subscription":
			if err := a.selfService.CancelSubscription(ctx); err != nil {
				fmt.Fprintln(a.out, "cancellation failed, please try again")
				continue
			}
			fmt.Fprintln(a.out, "subscription cancelled")
		case "profile":
			if len(args) != 2 {
				fmt.Fprintln(a.out, "usage: profile <display-name> <email>")
				continue
			}
			if err := a.selfService.UpdateProfile(ctx, args[0], args[1]); err != nil {
				fmt.Fprintln(a.out, err.Error())
				continue
			}
			fmt.Fprintln(a.out, "profile updated")
		case "password":
			if len(args) != 3 {
				fmt.Fprintln(a.out, "usage: password <current> <new> <confirm>")
				continue
			}
			if err := a.selfService.ChangePassword(ctx, args[0], args[1], args[2]); err != nil {
				fmt.Fprintln(a.out, err.Error())
				continue
			}
			fmt.Fprintln(a.out, "password changed")
		case "delete-account":
			if len(args) != 1 {
				fmt.Fprintf(a.out, "usage: delete-account %s\n", settings.DeleteConfirmPhrase)
				continue
			}
			if err := a.selfService.DeleteAccount(ctx, args[0]); err != nil {
				fmt.Fprintln(a.out, err.Error())
				continue
			}
			fmt.Fprintln(a.out, "account deleted, you will be signed out shortly")
		default:
			fmt.Fprintf(a.out, "unknown command %q\n", cmd)
		}
	}
}

// enterOTP вводит цифры по одной, как в ячейках формы; строка из
// четырёх цифр целиком работает как вставка из буфера обмена.
func (a *App) enterOTP(ctx context.Context, digits string) {
	if len(digits) == 4 {
		a.signup.PasteCode(ctx, digits)
		return
	}
	for _, r := range digits {
		a.signup.EnterDigit(ctx, r)
	}
}

func (a *App) login(ctx context.Context, email, password string) {
	if !a.api.Ready() {
		fmt.Fprintln(a.out, "system is still initializing, please try again in a moment")
		return
	}
	err := a.sessions.Login(ctx, email, password)
	if err == nil {
		return
	}
	// неподтверждённая учётная запись — не тупик: предлагаем оба выхода
	if errors.Is(err, apiclient.ErrNotVerified) {
		fmt.Fprintln(a.out, "account is not verified: use \"resend\" to request a new code or \"otp <digits>\" to enter one")
		return
	}
	fmt.Fprintln(a.out, "sign-in failed, check your credentials and try again")
}

func (a *App) showSubscription(ctx context.Context) {
	if err := a.selfService.LoadSubscription(ctx); err != nil {
		fmt.Fprintln(a.out, "failed to load subscription")
		return
	}
	sub := a.selfService.Subscription()
	fmt.Fprintf(a.out, "plan: %s, status: %s, amount: %.2f %s\n",
		sub.PlanTier, sub.Status, sub.Amount, sub.Currency)
	if sub.RenewalDate != nil {
		fmt.Fprintf(a.out, "renews: %s\n", sub.RenewalDate.Format("2006-01-02"))
	}
}

func (a *App) printSignupState() {
	snap := a.signup.Snapshot()
	if snap.Err != nil {
		fmt.Fprintln(a.out, snap.Err.Message)
	}
	switch snap.State {
	case flow.StateAwaitingVerification:
		if snap.CooldownLeft > 0 {
			fmt.Fprintf(a.out, "enter the 4-digit code sent to %s (resend in %ds)\n", snap.Email, snap.CooldownLeft)
		} else {
			fmt.Fprintf(a.out, "enter the 4-digit code sent to %s\n", snap.Email)
		}
	case flow.StateVerified:
		fmt.Fprintln(a.out, `email verified; use "retry-checkout" to start payment`)
	case flow.StateRedirectingToPayment:
		fmt.Fprintln(a.out, "payment session ready, redirecting shortly...")
	case flow.StateCompleted:
		fmt.Fprintln(a.out, "all set, your account is ready")
	}
}

func (a *App) printHelp() {
	fmt.Fprintln(a.out, `commands:
  register <email> <password> <free|pro|enterprise>
  otp <digits>        enter or paste the verification code
  submit              submit a partially typed code
  resend              request a new verification code
  retry-checkout      retry payment after a failure
  login <email> <password>
  logout
  whoami
  subscription
  cancel-subscription
  profile <display-name> <email>
  password <current> <new> <confirm>
  delete-account DELETE
  retry-init
  quit`)
}
