package port

import (
	"context"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

// StockReader serves read-only stock queries.
type StockReader interface {
	// GetStock returns the stock record, or domain.ErrProductNotFound
	GetStock(ctx context.Context, productID string) (domain.StockRecord, error)

	// ListLowStock returns products with 0 < stock <= threshold, ascending by stock
	ListLowStock(ctx context.Context, threshold int) ([]domain.StockRecord, error)

	// ListOutOfStock returns products with stock == 0
	ListOutOfStock(ctx context.Context) ([]domain.StockRecord, error)
}

// StockTx is the unit of work handed to WithinTx callbacks. Every call runs in
// the same database transaction.
type StockTx interface {
	// GetStock re-reads stock inside the transaction
	GetStock(ctx context.Context, productID string) (domain.StockRecord, error)

	// DecrementIfAvailable subtracts quantity only when stock >= quantity,
	// the predicate being evaluated by the write itself. Returns false when no row matched.
	DecrementIfAvailable(ctx context.Context, productID string, quantity int) (bool, error)

	// Increment adds quantity unconditionally. Returns false when the product does not exist.
	Increment(ctx context.Context, productID string, quantity int) (bool, error)

	// ClaimOperation records an operation key, returns false if it was already committed
	ClaimOperation(ctx context.Context, key string, kind domain.OperationKind) (bool, error)
}

// StockStore owns the authoritative stock column.
type StockStore interface {
	StockReader

	// WithinTx runs fn in one transaction; a non-nil error from fn rolls it back
	WithinTx(ctx context.Context, fn func(tx StockTx) error) error

	// CreateProduct inserts a stock row, or fails with domain.ErrProductExists
	CreateProduct(ctx context.Context, productID string, stock int) error
}
