// Package notify implementaciones del puerto ports.Notifier.
package notify

import (
	"context"

	"github.com/jhoicas/materiales-erp/internal/application/ports"
	"github.com/jhoicas/materiales-erp/pkg/logger"
)

var (
	_ ports.Notifier = (*LogNotifier)(nil)
	_ ports.Notifier = Fanout(nil)
)

// LogNotifier escribe cada notificación en el log estructurado.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) Send(_ context.Context, msg ports.Notification) error {
	ev := n.log.Info()
	if msg.Priority == ports.PriorityHigh {
		ev = n.log.Warn()
	}
	ev.Str("type", msg.Type).
		Str("priority", msg.Priority).
		Fields(msg.Data).
		Msg(msg.Title + ": " + msg.Message)
	return nil
}

// Fanout reenvía la notificación a todos los destinos. Un destino que falla no impide los demás;
// se devuelve el primer error.
type Fanout []ports.Notifier

func (f Fanout) Send(ctx context.Context, msg ports.Notification) error {
	var first error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
