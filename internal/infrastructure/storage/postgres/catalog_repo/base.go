// Package catalog_repo provides PostgreSQL implementations of the product,
// piece type and party repositories.
package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"consigna/internal/infrastructure/storage/postgres"
)

// baseRepo holds what every catalog repository shares.
type baseRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func newBaseRepo(txm *postgres.TxManager) baseRepo {
	return baseRepo{txm: txm, builder: postgres.Builder()}
}

func (r baseRepo) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}
