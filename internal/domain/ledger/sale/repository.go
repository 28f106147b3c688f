package sale

import (
	"context"

	"consigna/internal/domain"
)

// Repository persists sales.
type Repository interface {
	Create(ctx context.Context, s *Sale) error
	SaveLines(ctx context.Context, saleID int64, lines []Line) error
	GetByID(ctx context.Context, id int64) (*Sale, error)
	GetLines(ctx context.Context, saleID int64) ([]Line, error)
	List(ctx context.Context, filter Filter) (domain.ListResult[*Sale], error)
}
