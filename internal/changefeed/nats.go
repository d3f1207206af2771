package changefeed

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/timecraft/timebank-backend/internal/logger"
)

// NATSPublisher транслирует ленту изменений в NATS, чтобы другие экземпляры
// сервиса могли разослать уведомления своим подключённым клиентам.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// ConnectNATS подключается к NATS. Пустой URL отключает трансляцию.
func ConnectNATS(url string) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}
	// NoEcho: собственные публикации не возвращаются этому же экземпляру.
	return nats.Connect(url, nats.NoEcho())
}

// NewNATSPublisher создаёт издателя с префиксом сабжекта timebank.changes.
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: "timebank.changes."}
}

// Publish реализует Publisher. Ошибки публикации логируются и не
// прерывают вызывающего: лента best-effort.
func (p *NATSPublisher) Publish(change Change) {
	raw, err := json.Marshal(change)
	if err != nil {
		logError("changefeed: не удалось сериализовать изменение", err)
		return
	}
	if err := p.nc.Publish(p.prefix+change.Table, raw); err != nil {
		logError("changefeed: не удалось опубликовать изменение в NATS", err)
	}
}

// Subscribe подписывает fanout на изменения других экземпляров.
func (p *NATSPublisher) Subscribe(local Publisher) (*nats.Subscription, error) {
	return p.nc.Subscribe(p.prefix+">", func(msg *nats.Msg) {
		var change Change
		if err := json.Unmarshal(msg.Data, &change); err != nil {
			logError("changefeed: не удалось разобрать изменение из NATS", err)
			return
		}
		local.Publish(change)
	})
}

func logError(msg string, err error) {
	if logger.Log != nil {
		logger.Log.WithFields(logrus.Fields{"error": err.Error()}).Warn(msg)
	}
}
