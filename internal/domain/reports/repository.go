package reports

import (
	"context"

	"consigna/internal/core/types"
)

// Repository defines report data access interface.
type Repository interface {
	// StockSummary returns Σ sale price × stock and Σ stock.
	StockSummary(ctx context.Context) (value types.Money, quantity int, err error)
	// ConsignedSummary covers CONSIGNED lines.
	ConsignedSummary(ctx context.Context) (pieces int, value types.Money, err error)

	SalesByPayment(ctx context.Context, filter SalesFilter) ([]PaymentTotal, error)
	GetTurnover(ctx context.Context, filter TurnoverFilter) (*TurnoverReport, error)
}
