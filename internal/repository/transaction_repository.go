package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/timecraft/timebank-backend/internal/models"
	"github.com/timecraft/timebank-backend/internal/repository/common"
)

// Ошибки уровня репозитория.
var (
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrNotProvider           = errors.New("caller is not the transaction provider")
	ErrNoAcceptedApplication = errors.New("offer has no accepted application")
)

// TransactionRepository отвечает за журнал завершённых обменов и зачисление
// кредитов. Журнал append-only: одна запись на запрос, claimed монотонен.
type TransactionRepository struct {
	db           *sqlx.DB
	initialGrant int
}

// NewTransactionRepository создаёт новый экземпляр.
func NewTransactionRepository(db *sqlx.DB, initialGrant int) *TransactionRepository {
	return &TransactionRepository{db: db, initialGrant: initialGrant}
}

// CreateForCompletedOffer атомарно завершает запрос и создаёт запись обмена.
// Кредиты при этом НЕ переводятся: перевод отложен до явного ClaimCredits
// исполнителя. Условный UPDATE по status = 'booked' закрывает гонку двух
// конкурентных завершений.
func (r *TransactionRepository) CreateForCompletedOffer(ctx context.Context, offerID, ownerID uuid.UUID) (*models.Transaction, error) {
	var trx models.Transaction
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var offer models.Offer
		err := tx.GetContext(ctx, &offer, `
			SELECT id, owner_id, service_type, time_credits, status
			FROM offers WHERE id = $1 FOR UPDATE
		`, offerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrOfferNotFound
			}
			return fmt.Errorf("transaction repository: lock offer %w", err)
		}

		if offer.OwnerID != ownerID {
			return ErrNotOfferOwner
		}
		if offer.Status == models.OfferStatusCompleted {
			return ErrOfferCompleted
		}

		var accepted models.Application
		err = tx.GetContext(ctx, &accepted, `
			SELECT id, offer_id, applicant_id, status, created_at, updated_at
			FROM offer_applications
			WHERE offer_id = $1 AND status = 'accepted'
		`, offerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNoAcceptedApplication
			}
			return fmt.Errorf("transaction repository: get accepted application %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE offers SET status = 'completed', updated_at = NOW()
			WHERE id = $1 AND status = 'booked'
		`, offerID)
		if err != nil {
			return fmt.Errorf("transaction repository: complete offer %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return common.ErrConflict
		}

		err = tx.GetContext(ctx, &trx, `
			INSERT INTO transactions (offer_id, requester_id, provider_id, service_type, hours, claimed)
			VALUES ($1, $2, $3, $4, $5, FALSE)
			RETURNING id, offer_id, requester_id, provider_id, service_type, hours, claimed, created_at
		`, offerID, ownerID, accepted.ApplicantID, offer.ServiceType, offer.TimeCredits)
		if err != nil {
			if common.IsUniqueViolation(err, "") {
				return ErrOfferCompleted
			}
			return fmt.Errorf("transaction repository: insert transaction %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &trx, nil
}

// Claim атомарно помечает обмен полученным и зачисляет кредиты исполнителю.
// Compare-and-set по claimed = FALSE и инкремент баланса выполняются в одной
// транзакции: из двух конкурентных вызовов ровно один зачисляет кредиты,
// второй видит alreadyClaimed = true. Повторный вызов после успеха — мягкий
// no-op, не ошибка.
func (r *TransactionRepository) Claim(ctx context.Context, offerID, providerID uuid.UUID) (trx *models.Transaction, alreadyClaimed bool, err error) {
	err = common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var claimed models.Transaction
		err := tx.GetContext(ctx, &claimed, `
			UPDATE transactions SET claimed = TRUE
			WHERE offer_id = $1 AND provider_id = $2 AND claimed = FALSE
			RETURNING id, offer_id, requester_id, provider_id, service_type, hours, claimed, created_at
		`, offerID, providerID)
		if err == nil {
			// CAS выиграл: зачисляем кредиты в той же транзакции. Баланс
			// исполнителя может ещё не существовать, создаём с грантом.
			_, err = tx.ExecContext(ctx, `
				INSERT INTO time_balances (user_id, balance)
				VALUES ($1, $2 + $3)
				ON CONFLICT (user_id) DO UPDATE
				SET balance = time_balances.balance + $3, updated_at = NOW()
			`, providerID, r.initialGrant, claimed.Hours)
			if err != nil {
				return fmt.Errorf("transaction repository: credit balance %w", err)
			}
			trx = &claimed
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("transaction repository: claim cas %w", err)
		}

		// CAS не сработал: выясняем почему, не изменяя состояние.
		var existing models.Transaction
		err = tx.GetContext(ctx, &existing, `
			SELECT id, offer_id, requester_id, provider_id, service_type, hours, claimed, created_at
			FROM transactions WHERE offer_id = $1
		`, offerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTransactionNotFound
			}
			return fmt.Errorf("transaction repository: get existing %w", err)
		}
		if existing.ProviderID != providerID {
			return ErrNotProvider
		}

		trx = &existing
		alreadyClaimed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return trx, alreadyClaimed, nil
}

// GetByOfferID возвращает запись обмена по запросу.
func (r *TransactionRepository) GetByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Transaction, error) {
	var trx models.Transaction
	err := r.db.GetContext(ctx, &trx, `
		SELECT id, offer_id, requester_id, provider_id, service_type, hours, claimed, created_at
		FROM transactions WHERE offer_id = $1
	`, offerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction repository: get by offer %w", err)
	}
	return &trx, nil
}

// ListByUser возвращает обмены, где пользователь был заказчиком или исполнителем.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT id, offer_id, requester_id, provider_id, service_type, hours, claimed, created_at
		FROM transactions
		WHERE requester_id = $1 OR provider_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: list by user %w", err)
	}
	return transactions, nil
}

// StatsByUser агрегирует журнал обменов пользователя одним запросом.
func (r *TransactionRepository) StatsByUser(ctx context.Context, userID uuid.UUID) (*models.TransactionStats, error) {
	var stats models.TransactionStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT COALESCE(SUM(hours), 0)                                    AS total_hours,
		       COUNT(*)                                                   AS completed_exchanges,
		       COALESCE(MODE() WITHIN GROUP (ORDER BY service_type), '')  AS top_service
		FROM transactions
		WHERE requester_id = $1 OR provider_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: stats %w", err)
	}
	return &stats, nil
}
