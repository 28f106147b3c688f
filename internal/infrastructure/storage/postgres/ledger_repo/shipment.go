// Package ledger_repo provides PostgreSQL implementations of the shipment
// and sale ledgers.
package ledger_repo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"consigna/internal/core/apperror"
	"consigna/internal/domain"
	"consigna/internal/domain/ledger/shipment"
	"consigna/internal/infrastructure/storage/postgres"
)

const (
	shipmentsTable = "shipments"
	lineItemsTable = "line_items"
)

var (
	shipmentCols = postgres.ExtractDBColumns[shipment.Shipment]("party_name")
	lineCols     = postgres.ExtractDBColumns[shipment.LineItem]("product_name", "barcode")

	// Reads join the party and product for display names.
	shipmentSelect = append(postgres.Qualify("s", shipmentCols), "p.full_name AS party_name")
	lineSelect     = append(postgres.Qualify("l", lineCols), "pr.name AS product_name", "pr.barcode AS barcode")
)

// ShipmentRepo implements shipment.Repository.
type ShipmentRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ shipment.Repository = (*ShipmentRepo)(nil)

// NewShipmentRepo creates a new shipment repository.
func NewShipmentRepo(txm *postgres.TxManager) *ShipmentRepo {
	return &ShipmentRepo{txm: txm, builder: postgres.Builder()}
}

func (r *ShipmentRepo) Create(ctx context.Context, s *shipment.Shipment) error {
	data := postgres.StructToMap(s, shipmentCols...)
	delete(data, "id")

	sql, args, err := r.builder.Insert(shipmentsTable).
		SetMap(data).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&s.ID); err != nil {
		return postgres.MapError(err, "insert shipment", "party", s.PartyID)
	}
	return nil
}

func (r *ShipmentRepo) selectShipments() squirrel.SelectBuilder {
	return r.builder.Select(shipmentSelect...).
		From(shipmentsTable + " s").
		Join("parties p ON p.id = s.party_id")
}

// getQuery locks only the shipment row; the joined party stays unlocked.
func (r *ShipmentRepo) getQuery(id int64, lock bool) squirrel.SelectBuilder {
	q := r.selectShipments().Where(squirrel.Eq{"s.id": id})
	if lock {
		q = q.Suffix("FOR UPDATE OF s")
	}
	return q
}

func (r *ShipmentRepo) get(ctx context.Context, id int64, lock bool) (*shipment.Shipment, error) {
	sql, args, err := r.getQuery(id, lock).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var s shipment.Shipment
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, sql, args...); err != nil {
		return nil, postgres.MapError(err, "get shipment", "shipment", id)
	}
	return &s, nil
}

func (r *ShipmentRepo) GetByID(ctx context.Context, id int64) (*shipment.Shipment, error) {
	return r.get(ctx, id, false)
}

func (r *ShipmentRepo) GetForUpdate(ctx context.Context, id int64) (*shipment.Shipment, error) {
	return r.get(ctx, id, true)
}

func (r *ShipmentRepo) UpdateState(ctx context.Context, s *shipment.Shipment) error {
	sql, args, err := r.builder.Update(shipmentsTable).
		Set("status", s.Status).
		Set("departed_at", s.DepartedAt).
		Set("settled_at", s.SettledAt).
		Where(squirrel.Eq{"id": s.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "update shipment", "shipment", s.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("shipment", s.ID)
	}
	return nil
}

// Search matches the term against the shipment id and the party's name,
// document and phone. Newest first.
func (r *ShipmentRepo) Search(ctx context.Context, filter shipment.Filter) (domain.ListResult[*shipment.Shipment], error) {
	return postgres.SelectPage[*shipment.Shipment](ctx, r.txm.GetQuerier(ctx), r.searchQuery(filter), filter.Page, "departed_at DESC", "id DESC")
}

func (r *ShipmentRepo) searchQuery(filter shipment.Filter) squirrel.SelectBuilder {
	q := r.selectShipments()

	if filter.Term != "" {
		pattern := postgres.Contains(filter.Term)
		match := squirrel.Or{
			squirrel.ILike{"p.full_name": pattern},
			squirrel.ILike{"p.document": pattern},
			squirrel.ILike{"p.phone": pattern},
		}
		if id, err := strconv.ParseInt(filter.Term, 10, 64); err == nil {
			match = append(match, squirrel.Eq{"s.id": id})
		}
		q = q.Where(match)
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"s.status": filter.Status})
	}
	if filter.PartyID != nil {
		q = q.Where(squirrel.Eq{"s.party_id": *filter.PartyID})
	}
	return q
}

// AddLines inserts in order so ids follow the request order.
func (r *ShipmentRepo) AddLines(ctx context.Context, lines []shipment.LineItem) error {
	q := r.txm.GetQuerier(ctx)
	for i := range lines {
		l := &lines[i]
		data := postgres.StructToMap(l, lineCols...)
		delete(data, "id")

		sql, args, err := r.builder.Insert(lineItemsTable).
			SetMap(data).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if err := q.QueryRow(ctx, sql, args...).Scan(&l.ID); err != nil {
			return postgres.MapError(err, "insert line item", "line item", strconv.FormatInt(l.ProductID, 10))
		}
	}
	return nil
}

func (r *ShipmentRepo) selectLines() squirrel.SelectBuilder {
	return r.builder.Select(lineSelect...).
		From(lineItemsTable + " l").
		Join("products pr ON pr.id = l.product_id")
}

func (r *ShipmentRepo) lines(ctx context.Context, q squirrel.SelectBuilder) ([]shipment.LineItem, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []shipment.LineItem
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select line items: %w", err)
	}
	return out, nil
}

// linesQuery orders by id, which follows the request order of the lines.
func (r *ShipmentRepo) linesQuery(shipmentID int64, lock bool) squirrel.SelectBuilder {
	q := r.selectLines().
		Where(squirrel.Eq{"l.shipment_id": shipmentID}).
		OrderBy("l.id")
	if lock {
		q = q.Suffix("FOR UPDATE OF l")
	}
	return q
}

func (r *ShipmentRepo) GetLines(ctx context.Context, shipmentID int64) ([]shipment.LineItem, error) {
	return r.lines(ctx, r.linesQuery(shipmentID, false))
}

func (r *ShipmentRepo) LockLines(ctx context.Context, shipmentID int64) ([]shipment.LineItem, error) {
	return r.lines(ctx, r.linesQuery(shipmentID, true))
}

func (r *ShipmentRepo) UpdateLine(ctx context.Context, l *shipment.LineItem) error {
	sql, args, err := r.builder.Update(lineItemsTable).
		Set("quantity", l.Quantity).
		Set("returned_quantity", l.ReturnedQuantity).
		Set("status", l.Status).
		Where(squirrel.Eq{"id": l.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "update line item", "line item", l.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("line item", l.ID)
	}
	return nil
}

func (r *ShipmentRepo) OpenConsignedLines(ctx context.Context, partyID int64) ([]shipment.LineItem, error) {
	return r.lines(ctx, r.openConsignedQuery(partyID))
}

func (r *ShipmentRepo) openConsignedQuery(partyID int64) squirrel.SelectBuilder {
	return r.selectLines().
		Join("shipments s ON s.id = l.shipment_id").
		Where(squirrel.Eq{
			"s.party_id": partyID,
			"s.status":   shipment.StatusOpen,
			"l.status":   shipment.LineConsigned,
		}).
		OrderBy("l.id")
}
