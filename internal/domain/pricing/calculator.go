package pricing

import (
	"github.com/shopspring/decimal"
	"github.com/jhoicas/materiales-erp/internal/domain"
)

// Policy parámetros de impuestos y envío de un tipo de documento.
type Policy struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal // subtotal a partir del cual el envío es gratis
	ShippingFee           decimal.Decimal // tarifa plana por debajo del umbral
}

var (
	// SalesPolicy: IVA 8%, envío gratis desde $500, si no $50.
	SalesPolicy = Policy{
		TaxRate:               decimal.NewFromFloat(0.08),
		FreeShippingThreshold: decimal.NewFromInt(500),
		ShippingFee:           decimal.NewFromInt(50),
	}
	// PurchasePolicy: IVA 8%, envío gratis desde $1000, si no $100.
	PurchasePolicy = Policy{
		TaxRate:               decimal.NewFromFloat(0.08),
		FreeShippingThreshold: decimal.NewFromInt(1000),
		ShippingFee:           decimal.NewFromInt(100),
	}
)

// Line línea con cantidad y precio unitario (o costo unitario en compras).
type Line struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Total de la línea: cantidad * precio unitario.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}

// Totals resultado del cálculo; Total = Subtotal + Tax + Shipping.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Calculate calcula subtotal, impuesto, envío y total. Función pura.
// El único error posible es una lista de líneas vacía.
func Calculate(lines []Line, policy Policy) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, domain.ErrEmptyLines
	}
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
	}
	tax := subtotal.Mul(policy.TaxRate).Round(2)
	shipping := policy.ShippingFee
	if subtotal.GreaterThanOrEqual(policy.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}, nil
}
