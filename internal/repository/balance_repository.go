package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/timecraft/timebank-backend/internal/models"
)

// BalanceRepository отвечает за хранимые балансы временных кредитов.
// Баланс создаётся лениво со стартовым грантом и напрямую изменяется
// только при зачислении кредитов за завершённый обмен.
type BalanceRepository struct {
	db           *sqlx.DB
	initialGrant int
}

// NewBalanceRepository создаёт новый экземпляр.
func NewBalanceRepository(db *sqlx.DB, initialGrant int) *BalanceRepository {
	return &BalanceRepository{db: db, initialGrant: initialGrant}
}

// GetOrCreate возвращает баланс пользователя, создаёт со стартовым грантом если не существует.
func (r *BalanceRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.TimeBalance, error) {
	var balance models.TimeBalance
	query := `
		INSERT INTO time_balances (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING user_id, balance, updated_at
	`
	if err := r.db.GetContext(ctx, &balance, query, userID, r.initialGrant); err != nil {
		return nil, fmt.Errorf("balance repository: get or create %w", err)
	}
	return &balance, nil
}

// GetView возвращает хранимый баланс вместе с доступным остатком.
// Доступный остаток пересчитывается по живым данным: balance минус сумма
// time_credits незавершённых запросов пользователя.
func (r *BalanceRepository) GetView(ctx context.Context, userID uuid.UUID) (*models.BalanceView, error) {
	if _, err := r.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	var view models.BalanceView
	query := `
		SELECT b.user_id,
		       b.balance,
		       b.balance - COALESCE((
		           SELECT SUM(o.time_credits)
		           FROM offers o
		           WHERE o.owner_id = b.user_id AND o.status <> 'completed'
		       ), 0) AS available,
		       b.updated_at
		FROM time_balances b
		WHERE b.user_id = $1
	`
	if err := r.db.QueryRowxContext(ctx, query, userID).
		Scan(&view.UserID, &view.Balance, &view.Available, &view.UpdatedAt); err != nil {
		return nil, fmt.Errorf("balance repository: get view %w", err)
	}
	return &view, nil
}
