package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/materiales-erp/internal/application/ports"
)

var _ ports.Notifier = (*Publisher)(nil)

// DefaultChannel canal por defecto para notificaciones del ERP.
const DefaultChannel = "materiales-erp:notifications"

// Publisher publica cada notificación como JSON en un canal Pub/Sub.
type Publisher struct {
	client  *goredis.Client
	channel string
}

// NewPublisher crea el notificador. Con channel vacío se usa DefaultChannel.
func NewPublisher(client *goredis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

func (p *Publisher) Send(ctx context.Context, n ports.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", p.channel, err)
	}
	return nil
}
