package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/materiales-erp/internal/domain/repository"
)

var _ repository.SequenceGenerator = (*SequenceGenerator)(nil)

const sequencePrefix = "seq:"

// SequenceGenerator contadores de documentos con INCR (atómico en el servidor).
type SequenceGenerator struct {
	client *goredis.Client
}

func NewSequenceGenerator(client *goredis.Client) *SequenceGenerator {
	return &SequenceGenerator{client: client}
}

// Next incrementa seq:<key>; el primer valor es 1.
func (g *SequenceGenerator) Next(ctx context.Context, key string) (int64, error) {
	n, err := g.client.Incr(ctx, sequencePrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return n, nil
}
