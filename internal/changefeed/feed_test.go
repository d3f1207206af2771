package changefeed

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type countingPublisher struct {
	mu      sync.Mutex
	changes []Change
}

func (p *countingPublisher) Publish(change Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
}

func (p *countingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.changes)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("условие не выполнилось за отведённое время")
}

func TestChange_Touches(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()

	scoped := Change{Table: TableBalances, UserIDs: []uuid.UUID{alice}}
	assert.True(t, scoped.Touches(alice))
	assert.False(t, scoped.Touches(bob))

	// Изменение без адресатов касается всех.
	broadcast := Change{Table: TableOffers}
	assert.True(t, broadcast.Touches(alice))
	assert.True(t, broadcast.Touches(bob))
}

func TestFanout_DeliversToAll(t *testing.T) {
	first := &countingPublisher{}
	second := &countingPublisher{}
	fanout := NewFanout(first, second)

	fanout.Publish(Change{Table: TableOffers, Op: OpInsert, RowID: uuid.New()})

	waitFor(t, func() bool { return first.count() == 1 && second.count() == 1 })
}

func TestFanout_AddAfterCreation(t *testing.T) {
	fanout := NewFanout()
	late := &countingPublisher{}

	fanout.Publish(Change{Table: TableOffers, Op: OpInsert})
	fanout.Add(late)
	fanout.Publish(Change{Table: TableOffers, Op: OpUpdate})

	waitFor(t, func() bool { return late.count() == 1 })
}

func TestFanout_PanicDoesNotStopOthers(t *testing.T) {
	healthy := &countingPublisher{}
	fanout := NewFanout(Func(func(Change) { panic("потребитель упал") }), healthy)

	fanout.Publish(Change{Table: TableTransactions, Op: OpInsert})
	fanout.Publish(Change{Table: TableTransactions, Op: OpUpdate})

	waitFor(t, func() bool { return healthy.count() == 2 })
}
