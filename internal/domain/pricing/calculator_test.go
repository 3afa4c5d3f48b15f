package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/jhoicas/materiales-erp/internal/domain"
	"github.com/jhoicas/materiales-erp/internal/domain/pricing"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// Subtotal $600 con umbral de ventas $500: envío 0, impuesto 48, total 648.
func TestCalculate_VentaSobreUmbral(t *testing.T) {
	lines := []pricing.Line{
		{Quantity: 10, UnitPrice: d("40")},
		{Quantity: 4, UnitPrice: d("50")},
	}
	totals, err := pricing.Calculate(lines, pricing.SalesPolicy)
	require.NoError(t, err)
	assert.True(t, totals.Subtotal.Equal(d("600")), "subtotal %s", totals.Subtotal)
	assert.True(t, totals.Shipping.IsZero(), "el envío debe ser gratis desde $500")
	assert.True(t, totals.Tax.Equal(d("48")), "impuesto %s", totals.Tax)
	assert.True(t, totals.Total.Equal(d("648")), "total %s", totals.Total)
}

func TestCalculate_VentaBajoUmbralCobraEnvio(t *testing.T) {
	totals, err := pricing.Calculate([]pricing.Line{{Quantity: 2, UnitPrice: d("100")}}, pricing.SalesPolicy)
	require.NoError(t, err)
	assert.True(t, totals.Shipping.Equal(d("50")))
	assert.True(t, totals.Tax.Equal(d("16")))
	assert.True(t, totals.Total.Equal(d("266")))
}

func TestCalculate_UmbralExactoEsGratis(t *testing.T) {
	totals, err := pricing.Calculate([]pricing.Line{{Quantity: 1, UnitPrice: d("500")}}, pricing.SalesPolicy)
	require.NoError(t, err)
	assert.True(t, totals.Shipping.IsZero())
}

func TestCalculate_CompraUsaPoliticaDeCompras(t *testing.T) {
	totals, err := pricing.Calculate([]pricing.Line{{Quantity: 9, UnitPrice: d("100")}}, pricing.PurchasePolicy)
	require.NoError(t, err)
	assert.True(t, totals.Shipping.Equal(d("100")), "bajo $1000 se cobra $100")
	assert.True(t, totals.Total.Equal(d("1072")), "900 + 72 + 100, obtenido %s", totals.Total)

	totals, err = pricing.Calculate([]pricing.Line{{Quantity: 10, UnitPrice: d("100")}}, pricing.PurchasePolicy)
	require.NoError(t, err)
	assert.True(t, totals.Shipping.IsZero())
}

func TestCalculate_SinLineasEsErrorDeValidacion(t *testing.T) {
	_, err := pricing.Calculate(nil, pricing.SalesPolicy)
	assert.ErrorIs(t, err, domain.ErrEmptyLines)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCalculate_Determinista(t *testing.T) {
	lines := []pricing.Line{{Quantity: 3, UnitPrice: d("19.99")}, {Quantity: 7, UnitPrice: d("0.35")}}
	a, err := pricing.Calculate(lines, pricing.SalesPolicy)
	require.NoError(t, err)
	b, err := pricing.Calculate(lines, pricing.SalesPolicy)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
