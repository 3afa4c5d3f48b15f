package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/materiales-erp/internal/application/ports"
	"github.com/jhoicas/materiales-erp/pkg/logger"
)

type stubNotifier struct {
	err  error
	sent []ports.Notification
}

func (s *stubNotifier) Send(_ context.Context, n ports.Notification) error {
	s.sent = append(s.sent, n)
	return s.err
}

func TestLogNotifier_WritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(logger.NewWithWriter(&buf, "debug"))

	err := n.Send(context.Background(), ports.Notification{
		Type:     ports.NotificationOutOfStock,
		Title:    "Sin stock",
		Message:  "varilla 1/2",
		Priority: ports.PriorityHigh,
		Data:     map[string]any{"inventory_item_id": "it-1"},
	})
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "notify", entry["component"])
	assert.Equal(t, ports.NotificationOutOfStock, entry["type"])
	assert.Equal(t, "it-1", entry["inventory_item_id"])
	assert.Equal(t, "Sin stock: varilla 1/2", entry["message"])
}

func TestFanout_DeliversToAllAndReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	failing := &stubNotifier{err: boom}
	ok := &stubNotifier{}

	err := Fanout{failing, nil, ok}.Send(context.Background(), ports.Notification{Type: ports.NotificationOrderStatus})

	assert.ErrorIs(t, err, boom)
	assert.Len(t, failing.sent, 1)
	assert.Len(t, ok.sent, 1)
}

func TestFanout_Empty(t *testing.T) {
	assert.NoError(t, Fanout{}.Send(context.Background(), ports.Notification{}))
}
