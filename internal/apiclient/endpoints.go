package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/binnypthomas/unifisign-sub001/internal/models"
)

// apiResponse общая часть всех ответов бэкенда.
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (r apiResponse) err(status int) error {
	return newAPIError(status, r.Code, r.Message)
}

// userPayload пользователь в том виде, в каком его отдаёт бэкенд.
// Роль приходит числом, тариф — строкой.
type userPayload struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Role         int    `json:"role"`
	DisplayName  string `json:"displayName"`
	Subscription string `json:"subscription"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// ToUser конвертирует ответ бэкенда в доменную модель.
func (p *userPayload) ToUser() *models.User {
	createdAt, _ := time.Parse(time.RFC3339, p.CreatedAt)
	return &models.User{
		ID:               p.ID,
		Email:            p.Email,
		DisplayName:      p.DisplayName,
		Role:             models.Role(p.Role),
		SubscriptionTier: p.Subscription,
		CreatedAt:        createdAt,
	}
}

// Register создаёт учётную запись. Возвращает признак успеха;
// ошибки бэкенда пробрасываются без изменения текста.
func (c *Client) Register(ctx context.Context, email, password string, packageID int) (bool, error) {
	req := struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		PackageID int    `json:"requested_package_id"`
	}{email, password, packageID}

	var resp apiResponse
	status, err := c.do(ctx, http.MethodPost, "/auth/register", req, &resp)
	if err != nil {
		return false, err
	}
	if !resp.Success {
		return false, resp.err(status)
	}
	return true, nil
}

// TriggerVerificationCode просит бэкенд отправить код подтверждения на почту.
func (c *Client) TriggerVerificationCode(ctx context.Context, email string) error {
	req := struct {
		Email string `json:"email"`
	}{email}

	var resp apiResponse
	status, err := c.do(ctx, http.MethodPost, "/auth/triggerverificationcode", req, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return resp.err(status)
	}
	return nil
}

// VerifyResult итог проверки кода подтверждения.
type VerifyResult struct {
	Next            string `json:"next"`
	PaymentRequired bool   `json:"payment_required"`
	PackageID       int    `json:"package_id"`
}

// VerifyOTP проверяет код подтверждения для указанного email.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (*VerifyResult, error) {
	req := struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}{email, otp}

	var resp struct {
		apiResponse
		VerifyResult
	}
	status, err := c.do(ctx, http.MethodPost, "/auth/verifyotp", req, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, resp.err(status)
	}
	result := resp.VerifyResult
	return &result, nil
}

// Login аутентифицирует пользователя. Ошибка бэкенда возвращается
// без изменений, чтобы вызывающая сторона могла ветвиться по ней.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	req := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}

	var resp struct {
		apiResponse
		User *userPayload `json:"user"`
	}
	status, err := c.do(ctx, http.MethodPost, "/auth/login", req, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.User == nil {
		return nil, resp.err(status)
	}
	return resp.User.ToUser(), nil
}

// Logout завершает сессию на бэкенде.
func (c *Client) Logout(ctx context.Context) error {
	var resp apiResponse
	status, err := c.do(ctx, http.MethodPost, "/auth/logout", nil, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return resp.err(status)
	}
	return nil
}

// Me возвращает текущего пользователя по сессионной cookie.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var resp struct {
		apiResponse
		User *userPayload `json:"user"`
	}
	status, err := c.do(ctx, http.MethodGet, "/auth/me", nil, &resp)
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, resp.err(status)
	}
	return resp.User.ToUser(), nil
}

// CreateCheckoutSession запрашивает у бэкенда сессию оплаты.
func (c *Client) CreateCheckoutSession(ctx context.Context, priceID, successURL, cancelURL, mode string) (*models.CheckoutSession, error) {
	req := struct {
		PriceID    string `json:"price_id"`
		SuccessURL string `json:"success_url"`
		CancelURL  string `json:"cancel_url"`
		Mode       string `json:"mode"`
	}{priceID, successURL, cancelURL, mode}

	var resp struct {
		apiResponse
		SessionID string `json:"sessionId"`
		URL       string `json:"url"`
	}
	status, err := c.do(ctx, http.MethodPost, "/stripe/create-checkout-session", req, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.URL == "" {
		return nil, resp.err(status)
	}
	return &models.CheckoutSession{
		ID:      resp.SessionID,
		URL:     resp.URL,
		PriceID: priceID,
	}, nil
}

// SessionStatus сводка по сессии оплаты после возврата с платёжного шлюза.
type SessionStatus struct {
	Status       string `json:"status"`
	Subscription string `json:"subscription"`
	CustomerMail string `json:"customer_email"`
}

// CheckoutSessionStatus возвращает состояние сессии оплаты по её идентификатору.
func (c *Client) CheckoutSessionStatus(ctx context.Context, sessionID string) (*SessionStatus, error) {
	var resp struct {
		apiResponse
		SessionStatus
	}
	path := "/stripe/session-status?session_id=" + url.QueryEscape(sessionID)
	status, err := c.do(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, resp.err(status)
	}
	result := resp.SessionStatus
	return &result, nil
}

// Subscription возвращает сведения о подписке текущего пользователя.
func (c *Client) Subscription(ctx context.Context) (*models.SubscriptionSummary, error) {
	var resp struct {
		apiResponse
		Plan        string  `json:"plan"`
		Status      string  `json:"subscription_status"`
		RenewalDate string  `json:"renewal_date"`
		Amount      float64 `json:"amount"`
		Currency    string  `json:"currency"`
	}
	status, err := c.do(ctx, http.MethodGet, "/user/subscription", nil, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, resp.err(status)
	}

	summary := &models.SubscriptionSummary{
		PlanTier: resp.Plan,
		Status:   resp.Status,
		Amount:   resp.Amount,
		Currency: resp.Currency,
	}
	if resp.RenewalDate != "" {
		if renewal, err := time.Parse(time.RFC3339, resp.RenewalDate); err == nil {
			summary.RenewalDate = &renewal
		}
	}
	return summary, nil
}

// CancelSubscription отменяет подписку текущего пользователя.
func (c *Client) CancelSubscription(ctx context.Context) error {
	var resp apiResponse
	status, err := c.do(ctx, http.MethodPost, "/stripe/cancel-subscription", nil, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return resp.err(status)
	}
	return nil
}

// UpdateProfile обновляет имя и email пользователя.
func (c *Client) UpdateProfile(ctx context.Context, displayName, email string) error {
	req := struct {
		DisplayName string `json:"displayName"`
		Email       string `json:"email"`
	}{displayName, email}

	var resp apiResponse
	status, err := c.do(ctx, http.MethodPost, "/user/profile", req, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return resp.err(status)
	}
	return nil
}

// ChangePassword меняет пароль пользователя.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	req := struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}{current, next}

	var resp apiResponse
	status, err := c.do(ctx, http.MethodPost, "/user/password", req, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return resp.err(status)
	}
	return nil
}

// DeleteAccount безвозвратно удаляет учётную запись.
func (c *Client) DeleteAccount(ctx context.Context) error {
	var resp apiResponse
	status, err := c.do(ctx, http.MethodPost, "/user/delete", nil, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return resp.err(status)
	}
	return nil
}
