package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/timecraft/timebank-backend/internal/cache"
	"github.com/timecraft/timebank-backend/internal/changefeed"
	"github.com/timecraft/timebank-backend/internal/logger"
	"github.com/timecraft/timebank-backend/internal/models"
	"github.com/timecraft/timebank-backend/internal/pkg/apperror"
)

// Префиксы ключей кэша.
const (
	balanceKeyPrefix = "balance:"
	statsKeyPrefix   = "stats:"
)

// BalanceStore описывает зависимости от хранилища балансов.
type BalanceStore interface {
	GetView(ctx context.Context, userID uuid.UUID) (*models.BalanceView, error)
}

// TransactionLogStore описывает журнал обменов для чтения.
type TransactionLogStore interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	StatsByUser(ctx context.Context, userID uuid.UUID) (*models.TransactionStats, error)
}

// StatsService отдаёт балансы и агрегаты журнала обменов, кэшируя ответы.
// Кэш — только ускорение чтения: источник истины всегда хранилище, записи
// инвалидируются по уведомлениям ленты изменений.
type StatsService struct {
	balances     BalanceStore
	transactions TransactionLogStore
	cache        cache.Cache
	ttl          time.Duration
}

// NewStatsService создаёт сервис статистики.
func NewStatsService(balances BalanceStore, transactions TransactionLogStore, c cache.Cache, ttl time.Duration) *StatsService {
	return &StatsService{
		balances:     balances,
		transactions: transactions,
		cache:        c,
		ttl:          ttl,
	}
}

// BalanceView возвращает хранимый и доступный баланс пользователя.
func (s *StatsService) BalanceView(ctx context.Context, userID uuid.UUID) (*models.BalanceView, error) {
	key := balanceKeyPrefix + userID.String()
	if view, ok := getCached[models.BalanceView](ctx, s.cache, key); ok {
		return view, nil
	}

	view, err := s.balances.GetView(ctx, userID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить баланс")
	}

	setCached(ctx, s.cache, key, view, s.ttl)
	return view, nil
}

// Stats возвращает агрегаты журнала обменов пользователя.
func (s *StatsService) Stats(ctx context.Context, userID uuid.UUID) (*models.TransactionStats, error) {
	key := statsKeyPrefix + userID.String()
	if stats, ok := getCached[models.TransactionStats](ctx, s.cache, key); ok {
		return stats, nil
	}

	stats, err := s.transactions.StatsByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить статистику")
	}

	setCached(ctx, s.cache, key, stats, s.ttl)
	return stats, nil
}

// ListTransactions возвращает журнал обменов пользователя.
func (s *StatsService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	trxs, err := s.transactions.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить журнал обменов")
	}
	return trxs, nil
}

// Invalidator возвращает подписчика ленты изменений, сбрасывающего кэш.
// Уведомление трактуется как подсказка: лишняя инвалидация безопасна.
func (s *StatsService) Invalidator() changefeed.Publisher {
	return changefeed.Func(func(change changefeed.Change) {
		ctx := context.Background()
		switch change.Table {
		case changefeed.TableBalances:
			s.invalidateUsers(ctx, balanceKeyPrefix, change.UserIDs)
		case changefeed.TableTransactions:
			s.invalidateUsers(ctx, statsKeyPrefix, change.UserIDs)
		case changefeed.TableOffers:
			// Создание и удаление запросов меняет доступный баланс владельца.
			s.invalidateUsers(ctx, balanceKeyPrefix, change.UserIDs)
		}
	})
}

func (s *StatsService) invalidateUsers(ctx context.Context, prefix string, userIDs []uuid.UUID) {
	if len(userIDs) == 0 {
		s.cache.InvalidateByPrefix(ctx, prefix)
		return
	}
	for _, id := range userIDs {
		s.cache.InvalidateByPrefix(ctx, prefix+id.String())
	}
}

func getCached[T any](ctx context.Context, c cache.Cache, key string) (*T, bool) {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("stats: повреждённая запись кэша")
		return nil, false
	}
	return &value, true
}

func setCached(ctx context.Context, c cache.Cache, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.Set(ctx, key, raw, ttl)
}
