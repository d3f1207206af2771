package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/timecraft/timebank-backend/internal/models"
	"github.com/timecraft/timebank-backend/internal/repository/common"
)

// Ошибки уровня репозитория.
var (
	ErrApplicationNotFound   = errors.New("application not found")
	ErrAlreadyApplied        = errors.New("applicant already applied to this offer")
	ErrOwnOffer              = errors.New("owner cannot apply to own offer")
	ErrOfferNotAvailable     = errors.New("offer is not available")
	ErrApplicationNotPending = errors.New("application is not pending")
)

// ApplicationRepository отвечает за заявки исполнителей на запросы услуг.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository создаёт новый экземпляр.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create вставляет заявку со статусом pending. Запрос должен существовать и
// быть доступным, заявитель не может быть владельцем, повторная заявка
// отклоняется (страхуется уникальным индексом offer_id+applicant_id).
func (r *ApplicationRepository) Create(ctx context.Context, offerID, applicantID uuid.UUID) (*models.Application, error) {
	var app models.Application
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var offer models.Offer
		err := tx.GetContext(ctx, &offer, `
			SELECT id, owner_id, status FROM offers WHERE id = $1 FOR UPDATE
		`, offerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrOfferNotFound
			}
			return fmt.Errorf("application repository: lock offer %w", err)
		}

		if offer.OwnerID == applicantID {
			return ErrOwnOffer
		}
		if offer.Status != models.OfferStatusAvailable {
			return ErrOfferNotAvailable
		}

		err = tx.GetContext(ctx, &app, `
			INSERT INTO offer_applications (offer_id, applicant_id, status)
			VALUES ($1, $2, 'pending')
			RETURNING id, offer_id, applicant_id, status, created_at, updated_at
		`, offerID, applicantID)
		if err != nil {
			if common.IsUniqueViolation(err, "") {
				return ErrAlreadyApplied
			}
			return fmt.Errorf("application repository: insert %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// GetByID возвращает заявку по идентификатору.
func (r *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return common.GetByID[models.Application](ctx, r.db, "offer_applications", id, ErrApplicationNotFound)
}

// UpdateStatus переводит pending-заявку в accepted или rejected от имени
// владельца запроса. Принятие заявки в той же транзакции бронирует запрос
// (offers.status = booked); вторую принятую заявку на один запрос блокирует
// частичный уникальный индекс.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, applicationID, callerID uuid.UUID, status string) (*models.Application, error) {
	var app models.Application
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		// Сначала блокируем запрос, затем заявку: единый порядок захвата
		// строк во всех операциях исключает взаимные блокировки.
		var offer models.Offer
		err := tx.GetContext(ctx, &offer, `
			SELECT o.id, o.owner_id, o.status
			FROM offers o
			JOIN offer_applications a ON a.offer_id = o.id
			WHERE a.id = $1
			FOR UPDATE OF o
		`, applicationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrApplicationNotFound
			}
			return fmt.Errorf("application repository: lock offer %w", err)
		}

		if offer.OwnerID != callerID {
			return ErrNotOfferOwner
		}

		err = tx.GetContext(ctx, &app, `
			SELECT id, offer_id, applicant_id, status, created_at, updated_at
			FROM offer_applications WHERE id = $1 FOR UPDATE
		`, applicationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrApplicationNotFound
			}
			return fmt.Errorf("application repository: lock application %w", err)
		}

		if app.Status != models.ApplicationStatusPending {
			return ErrApplicationNotPending
		}

		if status == models.ApplicationStatusAccepted && offer.Status != models.OfferStatusAvailable {
			return ErrOfferNotAvailable
		}

		err = tx.GetContext(ctx, &app, `
			UPDATE offer_applications
			SET status = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING id, offer_id, applicant_id, status, created_at, updated_at
		`, applicationID, status)
		if err != nil {
			if common.IsUniqueViolation(err, "idx_offer_applications_one_accepted") {
				return common.ErrConflict
			}
			return fmt.Errorf("application repository: update status %w", err)
		}

		if status == models.ApplicationStatusAccepted {
			res, err := tx.ExecContext(ctx, `
				UPDATE offers SET status = 'booked', updated_at = NOW()
				WHERE id = $1 AND status = 'available'
			`, app.OfferID)
			if err != nil {
				return fmt.Errorf("application repository: book offer %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return common.ErrConflict
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// GetAcceptedByOffer возвращает принятую заявку запроса, если она есть.
func (r *ApplicationRepository) GetAcceptedByOffer(ctx context.Context, offerID uuid.UUID) (*models.Application, error) {
	var app models.Application
	err := r.db.GetContext(ctx, &app, `
		SELECT id, offer_id, applicant_id, status, created_at, updated_at
		FROM offer_applications
		WHERE offer_id = $1 AND status = 'accepted'
	`, offerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("application repository: get accepted %w", err)
	}
	return &app, nil
}

// ListByOffer возвращает все заявки на запрос.
func (r *ApplicationRepository) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]models.Application, error) {
	var apps []models.Application
	err := r.db.SelectContext(ctx, &apps, `
		SELECT id, offer_id, applicant_id, status, created_at, updated_at
		FROM offer_applications
		WHERE offer_id = $1
		ORDER BY created_at
	`, offerID)
	if err != nil {
		return nil, fmt.Errorf("application repository: list by offer %w", err)
	}
	return apps, nil
}

// CountsByOffer возвращает число заявок по каждому из запросов.
func (r *ApplicationRepository) CountsByOffer(ctx context.Context, offerIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(offerIDs))
	if len(offerIDs) == 0 {
		return counts, nil
	}

	rows, err := r.db.QueryxContext(ctx, `
		SELECT offer_id, COUNT(*) FROM offer_applications
		WHERE offer_id = ANY($1)
		GROUP BY offer_id
	`, pq.Array(offerIDs))
	if err != nil {
		return nil, fmt.Errorf("application repository: counts by offer %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("application repository: scan count %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// ListByApplicant возвращает заявки пользователя.
func (r *ApplicationRepository) ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]models.Application, error) {
	var apps []models.Application
	err := r.db.SelectContext(ctx, &apps, `
		SELECT id, offer_id, applicant_id, status, created_at, updated_at
		FROM offer_applications
		WHERE applicant_id = $1
		ORDER BY created_at DESC
	`, applicantID)
	if err != nil {
		return nil, fmt.Errorf("application repository: list by applicant %w", err)
	}
	return apps, nil
}
