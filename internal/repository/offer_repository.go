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
	ErrOfferNotFound       = errors.New("offer not found")
	ErrInsufficientCredits = errors.New("insufficient time credits")
	ErrNotOfferOwner       = errors.New("caller is not the offer owner")
	ErrOfferCompleted      = errors.New("offer already completed")
)

// OfferRepository отвечает за запросы услуг.
type OfferRepository struct {
	db *sqlx.DB
}

// NewOfferRepository создаёт новый экземпляр.
func NewOfferRepository(db *sqlx.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

// Create вставляет новый запрос, атомарно проверяя доступный баланс владельца.
// Доступный баланс = хранимый баланс минус сумма time_credits незавершённых
// запросов владельца; проверка и вставка выполняются в одной транзакции,
// строка баланса блокируется upsert-ом, чтобы исключить двойное резервирование.
// При нехватке кредитов возвращает ErrInsufficientCredits, запрос не создаётся.
func (r *OfferRepository) Create(ctx context.Context, offer *models.Offer, initialGrant int) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		// Ленивое создание баланса; запись в строку удерживает блокировку до конца транзакции.
		var stored int
		err := tx.GetContext(ctx, &stored, `
			INSERT INTO time_balances (user_id, balance)
			VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
			RETURNING balance
		`, offer.OwnerID, initialGrant)
		if err != nil {
			return fmt.Errorf("offer repository: lock balance %w", err)
		}

		var reserved int
		err = tx.GetContext(ctx, &reserved, `
			SELECT COALESCE(SUM(time_credits), 0)
			FROM offers
			WHERE owner_id = $1 AND status <> 'completed'
		`, offer.OwnerID)
		if err != nil {
			return fmt.Errorf("offer repository: sum reserved credits %w", err)
		}

		if stored-reserved < offer.TimeCredits {
			return ErrInsufficientCredits
		}

		err = tx.GetContext(ctx, offer, `
			INSERT INTO offers (owner_id, title, description, service_type, hours, time_credits, status)
			VALUES ($1, $2, $3, $4, $5, $6, 'available')
			RETURNING id, owner_id, title, description, service_type, hours, time_credits, status, created_at, updated_at
		`, offer.OwnerID, offer.Title, offer.Description, offer.ServiceType, offer.Hours, offer.TimeCredits)
		if err != nil {
			return fmt.Errorf("offer repository: insert offer %w", err)
		}

		return nil
	})
}

// GetByID возвращает запрос по идентификатору.
func (r *OfferRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	query := `
		SELECT id, owner_id, title, description, service_type, hours, time_credits, status, created_at, updated_at
		FROM offers
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &offer, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("offer repository: get by id %w", err)
	}
	return &offer, nil
}

// List возвращает запросы с опциональным фильтром по статусу.
func (r *OfferRepository) List(ctx context.Context, status string, limit, offset int) ([]models.Offer, error) {
	var offers []models.Offer
	var err error
	if status != "" {
		err = r.db.SelectContext(ctx, &offers, `
			SELECT id, owner_id, title, description, service_type, hours, time_credits, status, created_at, updated_at
			FROM offers WHERE status = $1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`, status, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &offers, `
			SELECT id, owner_id, title, description, service_type, hours, time_credits, status, created_at, updated_at
			FROM offers
			ORDER BY created_at DESC LIMIT $1 OFFSET $2
		`, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("offer repository: list %w", err)
	}
	return offers, nil
}

// ListByOwner возвращает запросы пользователя.
func (r *OfferRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Offer, error) {
	var offers []models.Offer
	err := r.db.SelectContext(ctx, &offers, `
		SELECT id, owner_id, title, description, service_type, hours, time_credits, status, created_at, updated_at
		FROM offers WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("offer repository: list by owner %w", err)
	}
	return offers, nil
}

// AcceptedServiceTypes возвращает множество услуг, на которые пользователь
// был принят исполнителем. Используется сортировкой по релевантности.
func (r *OfferRepository) AcceptedServiceTypes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var services []string
	err := r.db.SelectContext(ctx, &services, `
		SELECT DISTINCT o.service_type
		FROM offers o
		JOIN offer_applications a ON a.offer_id = o.id
		WHERE a.applicant_id = $1 AND a.status = 'accepted'
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("offer repository: accepted service types %w", err)
	}
	return services, nil
}

// AcceptedCounts возвращает число принятых заявок по каждому из запросов.
func (r *OfferRepository) AcceptedCounts(ctx context.Context, offerIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(offerIDs))
	if len(offerIDs) == 0 {
		return counts, nil
	}

	rows, err := r.db.QueryxContext(ctx, `
		SELECT offer_id, COUNT(*) FROM offer_applications
		WHERE offer_id = ANY($1) AND status = 'accepted'
		GROUP BY offer_id
	`, pq.Array(offerIDs))
	if err != nil {
		return nil, fmt.Errorf("offer repository: accepted counts %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("offer repository: scan accepted count %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// Update изменяет поля незавершённого запроса владельца. Увеличение
// time_credits проходит ту же проверку доступного баланса, что и создание:
// строка баланса блокируется, резерв считается без учёта старой стоимости
// этого запроса. Статус при обновлении не меняется.
func (r *OfferRepository) Update(ctx context.Context, offer *models.Offer, initialGrant int) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var current models.Offer
		err := tx.GetContext(ctx, &current, `
			SELECT id, owner_id, time_credits, status FROM offers WHERE id = $1 FOR UPDATE
		`, offer.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrOfferNotFound
			}
			return fmt.Errorf("offer repository: lock offer %w", err)
		}

		if current.OwnerID != offer.OwnerID {
			return ErrNotOfferOwner
		}
		if current.Status == models.OfferStatusCompleted {
			return ErrOfferCompleted
		}

		if offer.TimeCredits > current.TimeCredits {
			var stored int
			err := tx.GetContext(ctx, &stored, `
				INSERT INTO time_balances (user_id, balance)
				VALUES ($1, $2)
				ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
				RETURNING balance
			`, offer.OwnerID, initialGrant)
			if err != nil {
				return fmt.Errorf("offer repository: lock balance %w", err)
			}

			var reserved int
			err = tx.GetContext(ctx, &reserved, `
				SELECT COALESCE(SUM(time_credits), 0)
				FROM offers
				WHERE owner_id = $1 AND status <> 'completed' AND id <> $2
			`, offer.OwnerID, offer.ID)
			if err != nil {
				return fmt.Errorf("offer repository: sum reserved credits %w", err)
			}

			if stored-reserved < offer.TimeCredits {
				return ErrInsufficientCredits
			}
		}

		err = tx.GetContext(ctx, offer, `
			UPDATE offers
			SET title = $1, description = $2, service_type = $3, hours = $4,
			    time_credits = $5, updated_at = NOW()
			WHERE id = $6
			RETURNING id, owner_id, title, description, service_type, hours, time_credits, status, created_at, updated_at
		`, offer.Title, offer.Description, offer.ServiceType, offer.Hours, offer.TimeCredits, offer.ID)
		if err != nil {
			return fmt.Errorf("offer repository: update offer %w", err)
		}

		return nil
	})
}

// Delete удаляет запрос владельца, пока обмен не завершён. Заявки удаляются
// каскадно. Резервирование кредитов снимается само собой: незавершённый
// запрос перестаёт учитываться в доступном балансе, хранимый баланс не трогаем.
func (r *OfferRepository) Delete(ctx context.Context, offerID, ownerID uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var offer models.Offer
		err := tx.GetContext(ctx, &offer, `
			SELECT id, owner_id, status FROM offers WHERE id = $1 FOR UPDATE
		`, offerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrOfferNotFound
			}
			return fmt.Errorf("offer repository: lock offer %w", err)
		}

		if offer.OwnerID != ownerID {
			return ErrNotOfferOwner
		}
		if offer.Status == models.OfferStatusCompleted {
			return ErrOfferCompleted
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM offers WHERE id = $1`, offerID); err != nil {
			return fmt.Errorf("offer repository: delete %w", err)
		}
		return nil
	})
}
