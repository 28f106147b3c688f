package catalog_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"consigna/internal/core/apperror"
	"consigna/internal/domain"
	"consigna/internal/domain/catalog/product"
	"consigna/internal/infrastructure/storage/postgres"
)

const (
	productsTable       = "products"
	pieceTypesTable     = "piece_types"
	stockMovementsTable = "stock_movements"
)

var (
	productCols  = postgres.ExtractDBColumns[product.Product]()
	movementCols = postgres.ExtractDBColumns[product.Movement]()
)

// ProductRepo implements product.Repository.
type ProductRepo struct {
	baseRepo
	inserter *postgres.BatchInserter
}

var _ product.Repository = (*ProductRepo)(nil)

// NewProductRepo creates a new product repository.
func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		baseRepo: newBaseRepo(txm),
		inserter: postgres.NewBatchInserter(txm),
	}
}

// NextID draws from the serial sequence so the barcode can be built before insert.
func (r *ProductRepo) NextID(ctx context.Context) (int64, error) {
	var next int64
	err := r.querier(ctx).QueryRow(ctx, `SELECT nextval(pg_get_serial_sequence('products', 'id'))`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next product id: %w", err)
	}
	return next, nil
}

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	data := postgres.StructToMap(p, productCols...)
	if p.ID == 0 {
		delete(data, "id")
	}

	sql, args, err := r.builder.Insert(productsTable).
		SetMap(data).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&p.ID); err != nil {
		return postgres.MapError(err, "insert product", "product", p.Name)
	}
	return nil
}

func (r *ProductRepo) getOne(ctx context.Context, where squirrel.Sqlizer, key any) (*product.Product, error) {
	sql, args, err := r.builder.Select(productCols...).
		From(productsTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p product.Product
	if err := pgxscan.Get(ctx, r.querier(ctx), &p, sql, args...); err != nil {
		return nil, postgres.MapError(err, "get product", "product", key)
	}
	return &p, nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, id)
}

func (r *ProductRepo) GetByBarcode(ctx context.Context, code string) (*product.Product, error) {
	return r.getOne(ctx, squirrel.Eq{"barcode": code}, code)
}

func (r *ProductRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	return postgres.Exists(ctx, r.querier(ctx),
		r.builder.Select("1").From(productsTable).Where(squirrel.Eq{"name": name}))
}

func (r *ProductRepo) ExistsByBarcode(ctx context.Context, code string) (bool, error) {
	return postgres.Exists(ctx, r.querier(ctx),
		r.builder.Select("1").From(productsTable).Where(squirrel.Eq{"barcode": code}))
}

func (r *ProductRepo) UpdatePricing(ctx context.Context, p *product.Product) error {
	sql, args, err := r.builder.Update(productsTable).
		Set("cost", p.Cost).
		Set("margin_pct", p.MarginPct).
		Set("sale_price", p.SalePrice).
		Set("updated_at", p.UpdatedAt).
		Where(squirrel.Eq{"id": p.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "update pricing", "product", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("product", p.ID)
	}
	return nil
}

func (r *ProductRepo) List(ctx context.Context, filter product.Filter) (domain.ListResult[*product.Product], error) {
	return postgres.SelectPage[*product.Product](ctx, r.querier(ctx), r.listQuery(filter), filter.Page, "name", "id")
}

// listQuery matches the term against the name anywhere and the barcode as a prefix.
func (r *ProductRepo) listQuery(filter product.Filter) squirrel.SelectBuilder {
	q := r.builder.Select(productCols...).From(productsTable)

	if filter.Term != "" {
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": postgres.Contains(filter.Term)},
			squirrel.Like{"barcode": postgres.HasPrefix(filter.Term)},
		})
	}
	if filter.Material != "" {
		q = q.Where(squirrel.Eq{"material": filter.Material})
	}
	if filter.PieceTypeID != nil {
		q = q.Where(squirrel.Eq{"piece_type_id": *filter.PieceTypeID})
	}
	if filter.SupplierID != nil {
		q = q.Where(squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	return q
}

func (r *ProductRepo) IsReferenced(ctx context.Context, id int64) (bool, error) {
	var referenced bool
	err := r.querier(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM line_items WHERE product_id = $1)
			OR EXISTS (SELECT 1 FROM sale_line_items WHERE product_id = $1)`, id,
	).Scan(&referenced)
	if err != nil {
		return false, fmt.Errorf("product references: %w", err)
	}
	return referenced, nil
}

func (r *ProductRepo) Delete(ctx context.Context, id int64) error {
	sql, args, err := r.builder.Delete(productsTable).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "delete product", "product", id)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("product", id)
	}
	return nil
}

// DecrementStock is a guarded delta update; a short product matches no row.
func (r *ProductRepo) DecrementStock(ctx context.Context, id int64, quantity int) (*product.Product, bool, error) {
	return r.adjust(ctx, id, -quantity, stockGuard(quantity))
}

// stockGuard leaves the row untouched unless quantity pieces are available.
func stockGuard(quantity int) squirrel.Sqlizer {
	return squirrel.GtOrEq{"stock": quantity}
}

func (r *ProductRepo) IncrementStock(ctx context.Context, id int64, quantity int) (*product.Product, bool, error) {
	return r.adjust(ctx, id, quantity, nil)
}

// stockUpdate adds delta to the stored value, never overwriting it, so
// concurrent reservations compose. guard may be nil.
func (r *ProductRepo) stockUpdate(id int64, delta int, guard squirrel.Sqlizer) squirrel.UpdateBuilder {
	q := r.builder.Update(productsTable).
		Set("stock", squirrel.Expr("stock + ?", delta)).
		Where(squirrel.Eq{"id": id})
	if guard != nil {
		q = q.Where(guard)
	}
	return q.Suffix("RETURNING " + strings.Join(productCols, ", "))
}

func (r *ProductRepo) adjust(ctx context.Context, id int64, delta int, guard squirrel.Sqlizer) (*product.Product, bool, error) {
	sql, args, err := r.stockUpdate(id, delta, guard).ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build stock update: %w", err)
	}

	var p product.Product
	if err := pgxscan.Get(ctx, r.querier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, false, nil
		}
		return nil, false, postgres.MapError(err, "update stock", "product", id)
	}
	return &p, true, nil
}

const (
	lockStockSQL = `SELECT stock FROM products WHERE id = $1 FOR UPDATE`
	setStockSQL  = `UPDATE products SET stock = $2 WHERE id = $1`
)

// SetStock reads the previous value under a row lock, then overwrites it.
func (r *ProductRepo) SetStock(ctx context.Context, id int64, quantity int) (int, error) {
	q := r.querier(ctx)

	var previous int
	if err := q.QueryRow(ctx, lockStockSQL, id).Scan(&previous); err != nil {
		return 0, postgres.MapError(err, "lock product", "product", id)
	}

	if _, err := q.Exec(ctx, setStockSQL, id, quantity); err != nil {
		return 0, postgres.MapError(err, "set stock", "product", id)
	}
	return previous, nil
}

// RecordMovements appends to the journal over COPY.
func (r *ProductRepo) RecordMovements(ctx context.Context, movements []product.Movement) error {
	rows := make([][]any, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, []any{
			m.ID, m.ProductID, string(m.Kind), m.Delta, m.StockAfter,
			m.ShipmentID, m.Operator, m.CreatedAt,
		})
	}
	if _, err := r.inserter.CopyFromSlice(ctx, stockMovementsTable, movementCols, rows); err != nil {
		return fmt.Errorf("copy movements: %w", err)
	}
	return nil
}

// ListMovements returns newest first.
func (r *ProductRepo) ListMovements(ctx context.Context, productID int64, limit int) ([]product.Movement, error) {
	sql, args, err := r.movementsQuery(productID, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []product.Movement
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return out, nil
}

func (r *ProductRepo) movementsQuery(productID int64, limit int) squirrel.SelectBuilder {
	q := r.builder.Select(movementCols...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q
}

// PieceTypeRepo implements product.PieceTypeRepository.
type PieceTypeRepo struct {
	baseRepo
}

var _ product.PieceTypeRepository = (*PieceTypeRepo)(nil)

// NewPieceTypeRepo creates a new piece type repository.
func NewPieceTypeRepo(txm *postgres.TxManager) *PieceTypeRepo {
	return &PieceTypeRepo{baseRepo: newBaseRepo(txm)}
}

func (r *PieceTypeRepo) Create(ctx context.Context, pt *product.PieceType) error {
	sql, args, err := r.builder.Insert(pieceTypesTable).
		Columns("name").
		Values(pt.Name).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&pt.ID); err != nil {
		return postgres.MapError(err, "insert piece type", "piece type", pt.Name)
	}
	return nil
}

func (r *PieceTypeRepo) GetByID(ctx context.Context, id int64) (*product.PieceType, error) {
	var pt product.PieceType
	err := pgxscan.Get(ctx, r.querier(ctx), &pt, `SELECT id, name FROM piece_types WHERE id = $1`, id)
	if err != nil {
		return nil, postgres.MapError(err, "get piece type", "piece type", id)
	}
	return &pt, nil
}

func (r *PieceTypeRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	return postgres.Exists(ctx, r.querier(ctx),
		r.builder.Select("1").From(pieceTypesTable).Where(squirrel.Eq{"name": name}))
}

func (r *PieceTypeRepo) List(ctx context.Context) ([]product.PieceType, error) {
	var out []product.PieceType
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, `SELECT id, name FROM piece_types ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list piece types: %w", err)
	}
	return out, nil
}
