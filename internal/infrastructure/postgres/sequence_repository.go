package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/materiales-erp/internal/domain/repository"
)

var _ repository.SequenceGenerator = (*SequenceRepo)(nil)

// SequenceRepo contadores con nombre en la tabla document_sequences.
// El upsert con RETURNING es atómico: dos llamadas concurrentes nunca reciben el mismo valor.
type SequenceRepo struct {
	q Querier
}

// NewSequenceRepository construye el contador. Pasar pool o tx (Querier).
func NewSequenceRepository(q Querier) *SequenceRepo {
	return &SequenceRepo{q: q}
}

// Next incrementa y devuelve el contador key (el primero es 1).
func (r *SequenceRepo) Next(ctx context.Context, key string) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO document_sequences (key, value) VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET value = document_sequences.value + 1
		RETURNING value`, key,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", key, err)
	}
	return n, nil
}
