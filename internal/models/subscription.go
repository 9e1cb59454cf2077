// Package models содержит доменные структуры портала: идентичность устройства,
// платёж, тарифный пакет и подписку.
package models

import "time"

// Статусы подписки.
const (
	SubscriptionActive    = "active"
	SubscriptionPending   = "pending"
	SubscriptionExpired   = "expired"
	SubscriptionCancelled = "cancelled"
)

// Device устройство, привязанное к подписке.
type Device struct {
	MAC   string `json:"mac"`
	Label string `json:"label,omitempty"`
}

// Subscription подписка пользователя. Принадлежит шлюзу; устройства меняются
// только вызовами добавления/удаления в рамках конкретной подписки.
type Subscription struct {
	ID             string    `json:"id"`
	PackageKey     string    `json:"packageKey"`
	Devices        []Device  `json:"devices"`
	DevicesAllowed int       `json:"devicesAllowed"`
	StartAt        time.Time `json:"startAt"`
	EndAt          time.Time `json:"endAt"`
	Status         string    `json:"status"`
	Cancelled      bool      `json:"cancelled,omitempty"`
}

// EffectiveStatus вычисляет статус на момент now. Результат нельзя кешировать:
// граница EndAt пересекается без какого-либо уведомления от сервера.
func (s Subscription) EffectiveStatus(now time.Time) string {
	switch {
	case s.Cancelled || s.Status == SubscriptionCancelled:
		return SubscriptionCancelled
	case s.Status == SubscriptionPending:
		return SubscriptionPending
	case !s.EndAt.After(now):
		return SubscriptionExpired
	default:
		return SubscriptionActive
	}
}
