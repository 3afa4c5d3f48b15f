package inventory

import "github.com/shopspring/decimal"

// WeightedAverageCost costo unitario promedio ponderado tras una entrada de mercancía.
// Con stock total <= 0 devuelve cero; el resultado se redondea a 4 decimales.
func WeightedAverageCost(onHand int, onHandCost decimal.Decimal, received int, receivedCost decimal.Decimal) decimal.Decimal {
	total := onHand + received
	if total <= 0 {
		return decimal.Zero
	}
	value := decimal.NewFromInt(int64(onHand)).Mul(onHandCost).
		Add(decimal.NewFromInt(int64(received)).Mul(receivedCost))
	return value.Div(decimal.NewFromInt(int64(total))).Round(4)
}
