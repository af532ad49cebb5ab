// Package models содержит доменные структуры клиента: пользователя,
// попытку регистрации, сведения о подписке и сессии оплаты.
// Все данные живут только в памяти процесса — клиент ничего не персистит.
package models

import "time"

// Role роль пользователя в системе, приходит от бэкенда числом.
type Role int

// Числовые значения ролей закреплены протоколом бэкенда.
const (
	RoleSuperAdmin Role = 1
	RoleAdmin      Role = 2
	RoleUser       Role = 3
	RoleGuest      Role = 4
)

// String возвращает текстовое имя роли. Неизвестные значения
// трактуются как Guest, чтобы клиент никогда не завышал права.
func (r Role) String() string {
	switch r {
	case RoleSuperAdmin:
		return "superadmin"
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	default:
		return "guest"
	}
}

// User представляет текущего аутентифицированного пользователя.
// Заполняется после успешного login или проверки сессии,
// очищается при logout или неуспешной проверке.
type User struct {
	ID               string    // Уникальный идентификатор пользователя
	Email            string    // Электронная почта
	DisplayName      string    // Отображаемое имя
	Role             Role      // Роль пользователя
	SubscriptionTier string    // Тариф подписки: free, pro, enterprise
	CreatedAt        time.Time // Дата создания учётной записи
}

// RegistrationAttempt временные данные сценария регистрации.
// Существует только на время цепочки регистрация → подтверждение.
type RegistrationAttempt struct {
	Email     string
	Password  string
	PlanTier  string
	PackageID int // Производный идентификатор пакета: 1 free, 2 pro, 3 enterprise
}
