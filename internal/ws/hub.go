package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/timecraft/timebank-backend/internal/changefeed"
)

// Hub рассылает уведомления ленты изменений подключённым WebSocket клиентам.
// Клиент получает изменение, если подписан на таблицу и изменение его касается.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan changefeed.Change
	ctx        context.Context
}

// NewHub создаёт новый хаб.
func NewHub(ctx context.Context) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan changefeed.Change, 64),
		ctx:        ctx,
	}
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case change := <-h.broadcast:
			h.send(change)
		case <-h.ctx.Done():
			return
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Publish реализует changefeed.Publisher. Переполненный буфер —
// допустимая потеря: лента best-effort, клиенты перечитывают состояние.
func (h *Hub) Publish(change changefeed.Change) {
	select {
	case h.broadcast <- change:
	default:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

func (h *Hub) send(change changefeed.Change) {
	// Сообщение клиенту следует контракту WebSocket API:
	// "type" содержит имя события, "data" — полезную нагрузку.
	raw, err := json.Marshal(map[string]any{
		"type": "change",
		"data": change,
	})
	if err != nil {
		fmt.Printf("ws: не удалось сериализовать изменение: %v\n", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.WantsTable(change.Table) || !change.Touches(client.userID) {
			continue
		}
		select {
		case client.send <- raw:
		default:
			// Отстающий клиент закрывается асинхронно, хаб не блокируется.
			go client.Close()
		}
	}
}

// SubscriberCount возвращает число клиентов пользователя (для диагностики).
func (h *Hub) SubscriberCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for client := range h.clients {
		if client.userID == userID {
			count++
		}
	}
	return count
}
