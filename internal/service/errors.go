package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors surfaced by the pipeline. Handlers map these onto HTTP
// status codes; nothing below the handler layer knows about HTTP.
var (
	ErrNotAuthenticated = errors.New("usuario no autenticado")
	ErrSaleNotFound     = errors.New("venta no encontrada")
	ErrEmptyCart        = errors.New("el carrito está vacío")

	// ErrStoreUnavailable marks a transient persistence failure. Callers may
	// retry; the pipeline already retried internally with backoff before
	// surfacing it.
	ErrStoreUnavailable = errors.New("almacén de datos no disponible")
)

// ProductNotFoundError aborts a sale or amendment before any mutation: the
// referenced product is missing, inactive, or belongs to another user.
type ProductNotFoundError struct {
	ProductID uuid.UUID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("producto %s no encontrado", e.ProductID)
}

// InsufficientStockError is a validation failure: nothing has been written
// when it is returned. Available/Requested let the caller render a precise
// message ("quedan 3, pediste 5").
type InsufficientStockError struct {
	ProductID uuid.UUID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para producto %s: disponible %d, solicitado %d",
		e.ProductID, e.Available, e.Requested)
}

// StockInconsistencyError means an amendment computed a delta that would
// drive stock negative — the ledger and the product row disagree. The
// transaction is rolled back; this is a hard error, never a silent clamp,
// and it needs manual reconciliation against the movement history.
type StockInconsistencyError struct {
	ProductID uuid.UUID
	Stock     int
	Delta     int
}

func (e *StockInconsistencyError) Error() string {
	return fmt.Sprintf("inconsistencia de stock en producto %s: stock %d, delta %d",
		e.ProductID, e.Stock, e.Delta)
}
