package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"consigna/internal/domain"
	"consigna/internal/domain/ledger/sale"
	"consigna/internal/infrastructure/storage/postgres"
)

const (
	salesTable     = "sales"
	saleLinesTable = "sale_line_items"
)

var (
	saleCols     = postgres.ExtractDBColumns[sale.Sale]()
	saleLineCols = postgres.ExtractDBColumns[sale.Line]()
)

// SaleRepo implements sale.Repository.
type SaleRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
	batch   *postgres.BatchExecutor
}

var _ sale.Repository = (*SaleRepo)(nil)

// NewSaleRepo creates a new sale repository.
func NewSaleRepo(txm *postgres.TxManager) *SaleRepo {
	return &SaleRepo{
		txm:     txm,
		builder: postgres.Builder(),
		batch:   postgres.NewBatchExecutor(txm),
	}
}

func (r *SaleRepo) Create(ctx context.Context, s *sale.Sale) error {
	data := postgres.StructToMap(s, saleCols...)
	delete(data, "id")

	sql, args, err := r.builder.Insert(salesTable).
		SetMap(data).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&s.ID); err != nil {
		return postgres.MapError(err, "insert sale", "sale", s.Operator)
	}
	return nil
}

// SaveLines sends all inserts in one batch; sales are always recorded inside
// a ledger transaction.
func (r *SaleRepo) SaveLines(ctx context.Context, saleID int64, lines []sale.Line) error {
	if len(lines) == 0 {
		return nil
	}

	queries := make([]postgres.BatchQuery, 0, len(lines))
	for _, l := range lines {
		sql, args, err := r.builder.Insert(saleLinesTable).
			Columns("sale_id", "product_id", "quantity", "unit_price").
			Values(saleID, l.ProductID, l.Quantity, l.UnitPrice).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}

	if _, err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return postgres.MapError(err, "insert sale lines", "sale", saleID)
	}

	// Ids come back in insertion order.
	ids, err := r.lineIDs(ctx, saleID)
	if err != nil {
		return err
	}
	for i := range lines {
		lines[i].SaleID = saleID
		if i < len(ids) {
			lines[i].ID = ids[i]
		}
	}
	return nil
}

func (r *SaleRepo) lineIDs(ctx context.Context, saleID int64) ([]int64, error) {
	var ids []int64
	err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &ids,
		`SELECT id FROM sale_line_items WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("sale line ids: %w", err)
	}
	return ids, nil
}

func (r *SaleRepo) GetByID(ctx context.Context, id int64) (*sale.Sale, error) {
	sql, args, err := r.builder.Select(saleCols...).
		From(salesTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var s sale.Sale
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, sql, args...); err != nil {
		return nil, postgres.MapError(err, "get sale", "sale", id)
	}
	return &s, nil
}

func (r *SaleRepo) GetLines(ctx context.Context, saleID int64) ([]sale.Line, error) {
	sql, args, err := r.builder.Select(saleLineCols...).
		From(saleLinesTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []sale.Line
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select sale lines: %w", err)
	}
	return out, nil
}

// List returns newest first.
func (r *SaleRepo) List(ctx context.Context, filter sale.Filter) (domain.ListResult[*sale.Sale], error) {
	q := r.builder.Select(saleCols...).From(salesTable)

	if filter.PartyID != nil {
		q = q.Where(squirrel.Eq{"party_id": *filter.PartyID})
	}
	if filter.PaymentMethod != "" {
		q = q.Where(squirrel.Eq{"payment_method": filter.PaymentMethod})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.To})
	}

	return postgres.SelectPage[*sale.Sale](ctx, r.txm.GetQuerier(ctx), q, filter.Page, "created_at DESC", "id DESC")
}
