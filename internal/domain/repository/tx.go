package repository

import "context"

// TxRepositories repositorios atados a una misma transacción.
type TxRepositories struct {
	Items     InventoryItemRepository
	Movements StockMovementRepository
	Orders    OrderRepository
	Purchases PurchaseOrderRepository
}

// SequenceGenerator entrega el siguiente valor de un contador con nombre de forma atómica.
// Lo usan los números de documento mensuales (ORD-YYYYMM, PO-YYYYMM).
type SequenceGenerator interface {
	Next(ctx context.Context, key string) (int64, error)
}
