// Package report_repo provides the PostgreSQL implementation of reports.Repository.
package report_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"consigna/internal/core/types"
	"consigna/internal/domain/ledger/shipment"
	"consigna/internal/domain/reports"
	"consigna/internal/infrastructure/storage/postgres"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ reports.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a new report repository.
func NewReportRepo(txm *postgres.TxManager) *ReportRepo {
	return &ReportRepo{txm: txm, builder: postgres.Builder()}
}

// StockSummary sums price × stock over the catalog.
func (r *ReportRepo) StockSummary(ctx context.Context) (types.Money, int, error) {
	var (
		value    types.Money
		quantity int
	)
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(sale_price * stock), 0), COALESCE(SUM(stock), 0)::int
		FROM products
	`).Scan(&value, &quantity)
	if err != nil {
		return types.Zero(), 0, fmt.Errorf("stock summary: %w", err)
	}
	return value, quantity, nil
}

// ConsignedSummary covers CONSIGNED lines of every shipment.
func (r *ReportRepo) ConsignedSummary(ctx context.Context) (int, types.Money, error) {
	var (
		pieces int
		value  types.Money
	)
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)::int, COALESCE(SUM(quantity * unit_price), 0)
		FROM line_items
		WHERE status = $1
	`, shipment.LineConsigned).Scan(&pieces, &value)
	if err != nil {
		return 0, types.Zero(), fmt.Errorf("consigned summary: %w", err)
	}
	return pieces, value, nil
}

// SalesByPayment groups sale totals by payment method.
func (r *ReportRepo) SalesByPayment(ctx context.Context, filter reports.SalesFilter) ([]reports.PaymentTotal, error) {
	sql, args, err := r.salesByPaymentQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []reports.PaymentTotal
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("sales by payment: %w", err)
	}
	return out, nil
}

// salesByPaymentQuery bounds the period inclusively on both ends.
func (r *ReportRepo) salesByPaymentQuery(filter reports.SalesFilter) squirrel.SelectBuilder {
	q := r.builder.Select(
		"s.payment_method",
		"COUNT(DISTINCT s.id)::int AS sales",
		"COALESCE(SUM(l.quantity * l.unit_price), 0) AS total",
	).
		From("sales s").
		LeftJoin("sale_line_items l ON l.sale_id = s.id").
		GroupBy("s.payment_method").
		OrderBy("s.payment_method")

	if !filter.From.IsZero() {
		q = q.Where(squirrel.GtOrEq{"s.created_at": filter.From})
	}
	if !filter.To.IsZero() {
		q = q.Where(squirrel.LtOrEq{"s.created_at": filter.To})
	}
	return q
}

// GetTurnover sums the stock journal per product over the period. The closing
// quantity is the stock after the last movement in the period.
func (r *ReportRepo) GetTurnover(ctx context.Context, filter reports.TurnoverFilter) (*reports.TurnoverReport, error) {
	sql, args, err := r.turnoverQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []reports.TurnoverItem
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("stock turnover report: %w", err)
	}

	report := &reports.TurnoverReport{
		FromDate:   filter.FromDate,
		ToDate:     filter.ToDate,
		TotalItems: len(items),
	}
	for _, item := range items {
		report.TotalReserved += item.Reserved
		report.TotalReleased += item.Released
	}

	start := min(filter.Offset, len(items))
	end := len(items)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(items))
	}
	report.Items = items[start:end]
	return report, nil
}

func (r *ReportRepo) turnoverQuery(filter reports.TurnoverFilter) squirrel.SelectBuilder {
	where := squirrel.And{
		squirrel.GtOrEq{"m.created_at": filter.FromDate},
		squirrel.LtOrEq{"m.created_at": filter.ToDate},
	}
	if len(filter.ProductIDs) > 0 {
		where = append(where, squirrel.Eq{"m.product_id": filter.ProductIDs})
	}

	return r.builder.Select(
		"m.product_id",
		"p.name AS product_name",
		"COALESCE(-SUM(m.delta) FILTER (WHERE m.kind = 'reserve'), 0)::int AS reserved",
		"COALESCE(SUM(m.delta) FILTER (WHERE m.kind = 'release'), 0)::int AS released",
		"COALESCE(SUM(m.delta) FILTER (WHERE m.kind = 'set'), 0)::int AS adjusted",
		"(ARRAY_AGG(m.stock_after ORDER BY m.created_at DESC, m.id DESC))[1] AS closing_qty",
	).
		From("stock_movements m").
		Join("products p ON p.id = m.product_id").
		Where(where).
		GroupBy("m.product_id", "p.name").
		OrderBy("p.name", "m.product_id")
}
