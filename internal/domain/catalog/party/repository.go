package party

import "context"

// Repository persists parties.
type Repository interface {
	Create(ctx context.Context, p *Party) error
	GetByID(ctx context.Context, id int64) (*Party, error)
	ExistsByDocument(ctx context.Context, document string) (bool, error)
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
	UpdateContact(ctx context.Context, p *Party) error
	Search(ctx context.Context, filter Filter) ([]*Party, error)
	// IsReferenced reports whether a shipment, sale or product points at the party.
	IsReferenced(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}
