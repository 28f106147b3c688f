package product

import (
	"context"

	"consigna/internal/domain"
)

// Repository persists products and their stock journal.
// All methods join the transaction carried by ctx when there is one.
type Repository interface {
	// NextID reserves the identifier of the next product, so the barcode
	// can be generated before the row is written.
	NextID(ctx context.Context) (int64, error)
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByBarcode(ctx context.Context, code string) (*Product, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	ExistsByBarcode(ctx context.Context, code string) (bool, error)
	UpdatePricing(ctx context.Context, p *Product) error
	List(ctx context.Context, filter Filter) (domain.ListResult[*Product], error)
	// IsReferenced reports whether any line item or sale line points at the product.
	IsReferenced(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error

	// DecrementStock subtracts quantity only when enough stock is available.
	// applied is false when the product is missing or short.
	DecrementStock(ctx context.Context, id int64, quantity int) (p *Product, applied bool, err error)
	// IncrementStock adds quantity. applied is false when the product is missing.
	IncrementStock(ctx context.Context, id int64, quantity int) (p *Product, applied bool, err error)
	// SetStock overwrites the stock and returns the previous value.
	SetStock(ctx context.Context, id int64, quantity int) (previous int, err error)

	RecordMovements(ctx context.Context, movements []Movement) error
	ListMovements(ctx context.Context, productID int64, limit int) ([]Movement, error)
}

// PieceTypeRepository persists piece types.
type PieceTypeRepository interface {
	Create(ctx context.Context, pt *PieceType) error
	GetByID(ctx context.Context, id int64) (*PieceType, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]PieceType, error)
}

// SupplierVerifier confirms a party may be referenced as a supplier.
type SupplierVerifier interface {
	IsSupplier(ctx context.Context, partyID int64) (bool, error)
}

// BarcodeCache maps barcodes to product ids. Implementations must treat a
// miss as (0, false, nil).
type BarcodeCache interface {
	Get(ctx context.Context, code string) (int64, bool, error)
	Set(ctx context.Context, code string, productID int64) error
	Delete(ctx context.Context, code string) error
}
