package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"consigna/internal/core/apperror"
	"consigna/internal/domain/catalog/party"
	"consigna/internal/infrastructure/storage/postgres"
)

const partiesTable = "parties"

var (
	partyCols   = postgres.ExtractDBColumns[party.Party]()
	contactCols = []string{"email", "phone", "street", "number", "district", "city", "state", "postal_code", "updated_at"}
)

// PartyRepo implements party.Repository.
type PartyRepo struct {
	baseRepo
}

var _ party.Repository = (*PartyRepo)(nil)

// NewPartyRepo creates a new party repository.
func NewPartyRepo(txm *postgres.TxManager) *PartyRepo {
	return &PartyRepo{baseRepo: newBaseRepo(txm)}
}

func (r *PartyRepo) Create(ctx context.Context, p *party.Party) error {
	data := postgres.StructToMap(p, partyCols...)
	delete(data, "id")

	sql, args, err := r.builder.Insert(partiesTable).
		SetMap(data).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&p.ID); err != nil {
		return postgres.MapError(err, "insert party", "party", p.Document)
	}
	return nil
}

func (r *PartyRepo) GetByID(ctx context.Context, id int64) (*party.Party, error) {
	sql, args, err := r.builder.Select(partyCols...).
		From(partiesTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p party.Party
	if err := pgxscan.Get(ctx, r.querier(ctx), &p, sql, args...); err != nil {
		return nil, postgres.MapError(err, "get party", "party", id)
	}
	return &p, nil
}

func (r *PartyRepo) ExistsByDocument(ctx context.Context, document string) (bool, error) {
	return postgres.Exists(ctx, r.querier(ctx),
		r.builder.Select("1").From(partiesTable).Where(squirrel.Eq{"document": document}))
}

func (r *PartyRepo) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	return postgres.Exists(ctx, r.querier(ctx),
		r.builder.Select("1").
			From(partiesTable).
			Where(squirrel.Eq{"email": email}).
			Where(squirrel.NotEq{"id": excludeID}))
}

func (r *PartyRepo) UpdateContact(ctx context.Context, p *party.Party) error {
	sql, args, err := r.builder.Update(partiesTable).
		SetMap(postgres.StructToMap(p, contactCols...)).
		Where(squirrel.Eq{"id": p.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "update party", "party", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("party", p.ID)
	}
	return nil
}

// Search combines every provided filter with AND.
func (r *PartyRepo) Search(ctx context.Context, filter party.Filter) ([]*party.Party, error) {
	sql, args, err := r.searchQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*party.Party
	if err := pgxscan.Select(ctx, r.querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("search parties: %w", err)
	}
	return out, nil
}

func (r *PartyRepo) searchQuery(filter party.Filter) squirrel.SelectBuilder {
	q := r.builder.Select(partyCols...).From(partiesTable)

	contains := []struct{ col, term string }{
		{"full_name", filter.Name},
		{"document", filter.Document},
		{"phone", filter.Phone},
		{"city", filter.City},
	}
	for _, c := range contains {
		if c.term != "" {
			q = q.Where(squirrel.ILike{c.col: postgres.Contains(c.term)})
		}
	}
	if filter.IsSupplier != nil {
		q = q.Where(squirrel.Eq{"is_supplier": *filter.IsSupplier})
	}
	return q.OrderBy("full_name", "id")
}

func (r *PartyRepo) IsReferenced(ctx context.Context, id int64) (bool, error) {
	var referenced bool
	err := r.querier(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM shipments WHERE party_id = $1)
			OR EXISTS (SELECT 1 FROM products WHERE supplier_id = $1)
			OR EXISTS (SELECT 1 FROM sales WHERE party_id = $1)`, id,
	).Scan(&referenced)
	if err != nil {
		return false, fmt.Errorf("party references: %w", err)
	}
	return referenced, nil
}

func (r *PartyRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.querier(ctx).Exec(ctx, `DELETE FROM parties WHERE id = $1`, id)
	if err != nil {
		return postgres.MapError(err, "delete party", "party", id)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("party", id)
	}
	return nil
}
