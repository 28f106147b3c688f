package sale

import (
	"context"
	"fmt"
	"strings"

	"consigna/internal/core/apperror"
	"consigna/internal/core/clock"
	"consigna/internal/core/tx"
	"consigna/internal/domain"
	"consigna/internal/domain/audit"
	"consigna/pkg/logger"
)

// Service records and reads sales.
type Service struct {
	repo      Repository
	audit     audit.Recorder
	txManager tx.Manager
	clock     clock.Clock
}

// NewService creates a new sale service.
func NewService(repo Repository, recorder audit.Recorder, txManager tx.Manager, clk clock.Clock) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, audit: recorder, txManager: txManager, clock: clk}
}

// RecordSale appends a sale. It never touches stock: the shipment operation
// that triggered it has already adjusted it. Joins the caller's transaction.
func (s *Service) RecordSale(ctx context.Context, d Draft) (*Sale, error) {
	if err := validateDraft(&d); err != nil {
		return nil, err
	}

	sl := &Sale{
		PartyID:       d.PartyID,
		ShipmentID:    d.ShipmentID,
		Operator:      d.Operator,
		PaymentMethod: d.PaymentMethod,
		CreatedAt:     s.clock.Now(),
		Lines:         make([]Line, 0, len(d.Lines)),
	}
	for _, l := range d.Lines {
		sl.Lines = append(sl.Lines, Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, sl); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		for i := range sl.Lines {
			sl.Lines[i].SaleID = sl.ID
		}
		if err := s.repo.SaveLines(ctx, sl.ID, sl.Lines); err != nil {
			return fmt.Errorf("save sale lines: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEntry(audit.EntitySale, sl.ID, audit.ActionCreate, sl.Operator, sl.CreatedAt,
			map[string]any{"payment_method": sl.PaymentMethod, "total": sl.Total(), "lines": len(sl.Lines)}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale recorded", "sale_id", sl.ID, "total", sl.Total(), "operator", sl.Operator)
	return sl, nil
}

func validateDraft(d *Draft) error {
	d.Operator = strings.TrimSpace(d.Operator)
	if d.Operator == "" {
		return apperror.NewValidation("operator is required").WithDetail(apperror.DetailField, "operator")
	}
	d.PaymentMethod = d.PaymentMethod.OrDefault()
	if !d.PaymentMethod.Valid() {
		return apperror.NewValidation("unknown payment method").
			WithDetail(apperror.DetailField, "paymentMethod").
			WithDetail("value", string(d.PaymentMethod))
	}
	if len(d.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail(apperror.DetailField, "lines")
	}
	for i, l := range d.Lines {
		if l.Quantity <= 0 {
			return apperror.NewInvalidQuantity("lines", l.Quantity).WithDetail("lineNo", i+1)
		}
		if l.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price must not be negative").
				WithDetail(apperror.DetailField, "lines").
				WithDetail("lineNo", i+1)
		}
	}
	return nil
}

// Get retrieves a sale with its lines.
func (s *Service) Get(ctx context.Context, saleID int64) (*Sale, error) {
	sl, err := s.repo.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	sl.Lines = lines
	return sl, nil
}

// List retrieves sales, newest first. Lines are not loaded.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Sale], error) {
	if filter.PaymentMethod != "" && !filter.PaymentMethod.Valid() {
		return domain.ListResult[*Sale]{}, apperror.NewValidation("unknown payment method").
			WithDetail(apperror.DetailField, "paymentMethod")
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return domain.ListResult[*Sale]{}, apperror.NewValidation("from must be before to").
			WithDetail(apperror.DetailField, "from")
	}
	filter.Page = filter.Page.Normalize()
	return s.repo.List(ctx, filter)
}
