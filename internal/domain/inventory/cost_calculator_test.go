package inventory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/materiales-erp/internal/domain/inventory"
)

func TestWeightedAverageCost(t *testing.T) {
	tests := []struct {
		name         string
		onHand       int
		onHandCost   string
		received     int
		receivedCost string
		want         string
	}{
		// 100 sacos a $10 + 50 sacos a $16 = $1800 / 150
		{"promedio ponderado", 100, "10", 50, "16", "12"},
		{"sin stock toma el costo de entrada", 0, "0", 20, "7.5", "7.5"},
		{"redondeo a 4 decimales", 2, "1", 1, "2", "1.3333"},
		{"total cero", 0, "5", 0, "9", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inventory.WeightedAverageCost(tt.onHand, decimal.RequireFromString(tt.onHandCost),
				tt.received, decimal.RequireFromString(tt.receivedCost))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "costo %s", got)
		})
	}
}
