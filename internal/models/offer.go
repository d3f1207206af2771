package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы запроса услуги.
const (
	OfferStatusAvailable = "available"
	OfferStatusBooked    = "booked"
	OfferStatusCompleted = "completed"
)

// Статусы заявки на запрос.
const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusAccepted = "accepted"
	ApplicationStatusRejected = "rejected"
)

// Offer описывает запрос услуги: владелец резервирует time_credits
// из своего доступного баланса до завершения обмена.
type Offer struct {
	ID          uuid.UUID `db:"id" json:"id"`
	OwnerID     uuid.UUID `db:"owner_id" json:"owner_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	ServiceType string    `db:"service_type" json:"service_type"`
	Hours       int       `db:"hours" json:"hours"`
	TimeCredits int       `db:"time_credits" json:"time_credits"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Open сообщает, потребляет ли запрос доступный баланс владельца.
func (o *Offer) Open() bool {
	return o.Status != OfferStatusCompleted
}

// Application представляет заявку исполнителя на запрос услуги.
type Application struct {
	ID          uuid.UUID `db:"id" json:"id"`
	OfferID     uuid.UUID `db:"offer_id" json:"offer_id"`
	ApplicantID uuid.UUID `db:"applicant_id" json:"applicant_id"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
