package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"consigna/internal/core/apperror"
	"consigna/internal/core/tx"
	"consigna/pkg/logger"
)

var tracer = otel.Tracer("consigna/tx")

var _ tx.LedgerManager = (*TxManager)(nil)

// SQLSTATE codes that abort a transaction because of a concurrent writer.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// defaultStatementTimeout bounds every statement run inside a transaction.
const defaultStatementTimeout = 30 * time.Second

// txMode is how a top-level transaction is opened.
type txMode struct {
	name string
	opts pgx.TxOptions
}

var (
	modeReadWrite = txMode{name: "read_write", opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}}
	// Ledger mutations: reserve, settle and bulk stock overwrite.
	modeSerializable = txMode{name: "serializable", opts: pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite}}
	// Reports: several aggregate queries that must agree with each other.
	modeSnapshot = txMode{name: "snapshot", opts: pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}}
)

// TxManager keeps the active pgx transaction in the context. Repositories
// call GetQuerier and so join whatever transaction the service opened.
// A nested Run* call joins the outer transaction with the outer mode.
type TxManager struct {
	pool             *pgxpool.Pool
	statementTimeout time.Duration
}

// NewTxManager creates a new transaction manager.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool, statementTimeout: defaultStatementTimeout}
}

type txKey struct{}

// RunInTransaction executes fn in a READ COMMITTED transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, modeReadWrite, fn)
}

// RunSerializable executes fn in a SERIALIZABLE transaction. Serialization
// failures and deadlocks surface as apperror.CodeConcurrentModification.
func (m *TxManager) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, modeSerializable, fn)
}

// ReadOnly executes fn in a REPEATABLE READ, READ ONLY transaction.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, modeSnapshot, fn)
}

func (m *TxManager) run(ctx context.Context, mode txMode, fn func(ctx context.Context) error) error {
	if m.current(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(attribute.String("tx.mode", mode.name)))
	defer span.End()

	err := m.begin(ctx, mode, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction failed")
	}
	return err
}

func (m *TxManager) begin(ctx context.Context, mode txMode, fn func(ctx context.Context) error) error {
	pgTx, err := m.pool.BeginTx(ctx, mode.opts)
	if err != nil {
		return fmt.Errorf("begin %s transaction: %w", mode.name, err)
	}

	if m.statementTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", m.statementTimeout.Milliseconds())
		if _, err := pgTx.Exec(ctx, stmt); err != nil {
			m.rollback(ctx, pgTx, err)
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	if err := fn(context.WithValue(ctx, txKey{}, pgTx)); err != nil {
		m.rollback(ctx, pgTx, err)
		return mapConcurrencyError(err)
	}

	if err := pgTx.Commit(ctx); err != nil {
		return mapConcurrencyError(fmt.Errorf("commit %s transaction: %w", mode.name, err))
	}
	return nil
}

// rollback ignores ctx cancellation so an aborted command still releases its locks.
func (m *TxManager) rollback(ctx context.Context, pgTx pgx.Tx, cause error) {
	if err := pgTx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		logger.Error(ctx, "rollback failed", "error", err, "cause", cause)
	}
}

// mapConcurrencyError turns serialization failures and deadlocks into
// ConcurrentModification. They are never retried here; the caller may.
func mapConcurrencyError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.Code != sqlStateSerializationFailure && pgErr.Code != sqlStateDeadlockDetected {
		return err
	}
	return apperror.NewConcurrentModification(pgErr.TableName, nil).
		WithDetail("sqlstate", pgErr.Code).
		WithCause(err)
}

func (m *TxManager) current(ctx context.Context) pgx.Tx {
	if t, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return t
	}
	return nil
}

// Querier is the subset of pgx shared by a pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnSrc []string, rowSrc pgx.CopyFromSource) (int64, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// GetQuerier returns the transaction in ctx, or the pool outside one.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.current(ctx); t != nil {
		return t
	}
	return m.pool
}
