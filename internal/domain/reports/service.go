package reports

import (
	"context"
	"fmt"
	"sort"

	"consigna/internal/core/apperror"
	"consigna/internal/core/tx"
)

// Service provides report generation operations.
type Service struct {
	repo      Repository
	snapshots tx.ReadOnlyManager
}

// NewService creates a new reports service.
func NewService(repo Repository, snapshots tx.ReadOnlyManager) *Service {
	return &Service{repo: repo, snapshots: snapshots}
}

// Dashboard returns stock and consignment figures. Both summaries read the
// same snapshot, so a piece moving to consignment mid-report is counted once.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{}
	err := s.snapshots.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		if d.StockValue, d.StockQuantity, err = s.repo.StockSummary(ctx); err != nil {
			return fmt.Errorf("stock summary: %w", err)
		}
		if d.ConsignedPieces, d.ConsignedValue, err = s.repo.ConsignedSummary(ctx); err != nil {
			return fmt.Errorf("consigned summary: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// SalesSummary groups sale totals by payment method, largest first.
func (s *Service) SalesSummary(ctx context.Context, filter SalesFilter) ([]PaymentTotal, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, apperror.NewValidation("from must be before to").WithDetail(apperror.DetailField, "from")
	}

	totals, err := s.repo.SalesByPayment(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("sales by payment: %w", err)
	}
	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Total.GreaterThan(totals[j].Total)
	})
	return totals, nil
}

// Turnover generates the stock turnover report.
func (s *Service) Turnover(ctx context.Context, filter TurnoverFilter) (*TurnoverReport, error) {
	// Validate required dates
	if filter.FromDate.IsZero() || filter.ToDate.IsZero() {
		return nil, apperror.NewValidation("fromDate and toDate are required").WithDetail(apperror.DetailField, "fromDate")
	}
	if filter.FromDate.After(filter.ToDate) {
		return nil, apperror.NewValidation("fromDate must be before toDate").WithDetail(apperror.DetailField, "fromDate")
	}

	// Set default pagination
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}

	report, err := s.repo.GetTurnover(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get turnover report: %w", err)
	}
	return report, nil
}
