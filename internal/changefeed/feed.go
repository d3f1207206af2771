package changefeed

import (
	"sync"

	"github.com/google/uuid"

	"github.com/timecraft/timebank-backend/internal/goroutine"
)

// Таблицы, изменения которых публикуются в ленту.
const (
	TableOffers       = "offers"
	TableApplications = "offer_applications"
	TableTransactions = "transactions"
	TableBalances     = "time_balances"
)

// Op описывает вид изменения строки.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change — уведомление о зафиксированном изменении таблицы. Доставка
// at-least-once и best-effort: потребители обязаны трактовать уведомление
// как подсказку для инвалидации кэша и перечитывать состояние из хранилища,
// пропущенное или продублированное уведомление не должно их ломать.
type Change struct {
	Table   string      `json:"table"`
	Op      Op          `json:"op"`
	RowID   uuid.UUID   `json:"row_id"`
	UserIDs []uuid.UUID `json:"user_ids,omitempty"`
}

// Touches сообщает, касается ли изменение конкретного пользователя.
// Изменение без привязки к пользователям касается всех.
func (c Change) Touches(userID uuid.UUID) bool {
	if len(c.UserIDs) == 0 {
		return true
	}
	for _, id := range c.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Publisher принимает уведомления об изменениях. Реализации не должны
// блокировать вызывающего и не должны возвращать ошибку наружу: лента не
// является транзакционной гарантией, источник истины — хранилище.
type Publisher interface {
	Publish(change Change)
}

// Fanout рассылает каждое изменение всем зарегистрированным издателям.
// Публикация выполняется асинхронно, чтобы фиксация мутации не ждала
// медленных потребителей; каждый издатель изолирован, паника одного не
// лишает доставки остальных.
type Fanout struct {
	mu   sync.RWMutex
	pubs []Publisher
}

// NewFanout создаёт пустой fanout.
func NewFanout(pubs ...Publisher) *Fanout {
	return &Fanout{pubs: pubs}
}

// Add регистрирует издателя.
func (f *Fanout) Add(p Publisher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pubs = append(f.pubs, p)
}

// Publish реализует Publisher.
func (f *Fanout) Publish(change Change) {
	f.mu.RLock()
	pubs := make([]Publisher, len(f.pubs))
	copy(pubs, f.pubs)
	f.mu.RUnlock()

	for _, p := range pubs {
		p := p
		goroutine.SafeGo(func() {
			p.Publish(change)
		})
	}
}

// Func адаптирует функцию к интерфейсу Publisher.
type Func func(change Change)

// Publish реализует Publisher.
func (fn Func) Publish(change Change) {
	fn(change)
}
