package models

import (
	"time"

	"github.com/google/uuid"
)

// TimeBalance представляет накопленный баланс пользователя в кредитах-часах.
// Создаётся лениво со стартовым грантом и изменяется только при получении
// кредитов за завершённый обмен.
type TimeBalance struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Balance   int       `db:"balance" json:"balance"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BalanceView дополняет хранимый баланс вычисленным доступным остатком:
// balance минус кредиты, зарезервированные незавершёнными запросами.
type BalanceView struct {
	UserID    uuid.UUID `json:"user_id"`
	Balance   int       `json:"balance"`
	Available int       `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction фиксирует один завершённый обмен. Запись создаётся один раз
// при завершении запроса; claimed переходит из false в true ровно один раз.
type Transaction struct {
	ID          uuid.UUID `db:"id" json:"id"`
	OfferID     uuid.UUID `db:"offer_id" json:"offer_id"`
	RequesterID uuid.UUID `db:"requester_id" json:"requester_id"`
	ProviderID  uuid.UUID `db:"provider_id" json:"provider_id"`
	ServiceType string    `db:"service_type" json:"service_type"`
	Hours       int       `db:"hours" json:"hours"`
	Claimed     bool      `db:"claimed" json:"claimed"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TransactionStats агрегирует журнал обменов пользователя.
type TransactionStats struct {
	TotalHours         int    `db:"total_hours" json:"total_hours"`
	CompletedExchanges int    `db:"completed_exchanges" json:"completed_exchanges"`
	TopService         string `db:"top_service" json:"top_service"`
}
