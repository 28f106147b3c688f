package shipment

import (
	"context"

	"consigna/internal/domain"
)

// Repository persists shipments and their line items.
type Repository interface {
	Create(ctx context.Context, s *Shipment) error
	GetByID(ctx context.Context, id int64) (*Shipment, error)
	// GetForUpdate locks the shipment row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id int64) (*Shipment, error)
	UpdateState(ctx context.Context, s *Shipment) error
	Search(ctx context.Context, filter Filter) (domain.ListResult[*Shipment], error)

	// AddLines inserts line items in order and assigns their ids.
	AddLines(ctx context.Context, lines []LineItem) error
	// GetLines returns the shipment's lines in creation order, joined with
	// product name and barcode.
	GetLines(ctx context.Context, shipmentID int64) ([]LineItem, error)
	// LockLines is GetLines with row locks.
	LockLines(ctx context.Context, shipmentID int64) ([]LineItem, error)
	UpdateLine(ctx context.Context, l *LineItem) error
	// OpenConsignedLines returns CONSIGNED lines of the party's OPEN shipments.
	OpenConsignedLines(ctx context.Context, partyID int64) ([]LineItem, error)
}
