package redis

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/materiales-erp/internal/application/ports"
)

func testClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client, err := NewClient(context.Background(), Config{Addr: addr})
	if err != nil {
		t.Skipf("Redis no disponible: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSequenceGenerator_Next(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), sequencePrefix+key) })

	gen := NewSequenceGenerator(client)
	n, err := gen.Next(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = gen.Next(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSequenceGenerator_ConcurrentValuesAreUnique(t *testing.T) {
	client := testClient(t)
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), sequencePrefix+key) })

	gen := NewSequenceGenerator(client)
	const workers = 50
	var (
		mu   sync.Mutex
		seen = make(map[int64]bool, workers)
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := gen.Next(context.Background(), key)
			if err != nil {
				return
			}
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers)
}

func TestPublisher_Send(t *testing.T) {
	client := testClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	channel := "test:" + uuid.NewString()
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewPublisher(client, channel)
	require.NoError(t, pub.Send(ctx, ports.Notification{
		Type:     ports.NotificationLowStock,
		Title:    "Stock bajo",
		Message:  "cemento",
		Priority: ports.PriorityMedium,
		Data:     map[string]any{"quantity": 3},
	}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var got ports.Notification
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, ports.NotificationLowStock, got.Type)
	assert.Equal(t, "cemento", got.Message)
	assert.EqualValues(t, 3, got.Data["quantity"])
}

func TestNewPublisher_DefaultChannel(t *testing.T) {
	p := NewPublisher(nil, "")
	assert.Equal(t, DefaultChannel, p.channel)
}
