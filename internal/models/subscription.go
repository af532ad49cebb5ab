package models

import "time"

// SubscriptionSummary сведения о текущей подписке пользователя,
// отдаваемые бэкендом для экрана настроек.
type SubscriptionSummary struct {
	PlanTier    string     // Тариф подписки
	Status      string     // Статус: active, canceled, past_due и т.п.
	RenewalDate *time.Time // Дата следующего списания, nil если подписки нет
	Amount      float64    // Сумма ежемесячного списания
	Currency    string     // Валюта списания
}

// CheckoutSession одноразовая сессия оплаты, выданная бэкендом.
// Используется ровно один раз для перенаправления на платёжный шлюз.
type CheckoutSession struct {
	ID      string // Идентификатор сессии платёжного шлюза
	URL     string // Адрес страницы оплаты
	PriceID string // Идентификатор цены, с которым создана сессия
}
