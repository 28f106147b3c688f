// Package memory is an in-process store used by tests, demos and the seed
// tool. It implements every repository and the transaction manager.
//
// Transactions are serialized: one runs at a time, and a failed one restores
// the snapshot taken when it began. Writes made outside a transaction take
// the same lock, so they never interleave with one. Reads outside a
// transaction see that snapshot while a transaction is in flight, never its
// uncommitted writes.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"consigna/internal/core/tx"
	"consigna/internal/domain"
	"consigna/internal/domain/audit"
	"consigna/internal/domain/catalog/party"
	"consigna/internal/domain/catalog/product"
	"consigna/internal/domain/ledger/sale"
	"consigna/internal/domain/ledger/shipment"
)

type txKey struct{}

type txMode int

const (
	txNone txMode = iota
	txReadWrite
	txReadOnly
)

var errReadOnly = errors.New("memory: write inside a read-only transaction")

var _ tx.LedgerManager = (*Store)(nil)

// Store holds all data in maps guarded by mutexes.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state
	// committed is the state as of the start of the running transaction.
	committed *state
}

type state struct {
	seq        map[string]int64
	products   map[int64]product.Product
	pieceTypes map[int64]product.PieceType
	movements  []product.Movement
	parties    map[int64]party.Party
	shipments  map[int64]shipment.Shipment
	lines      map[int64]shipment.LineItem
	sales      map[int64]sale.Sale
	saleLines  []sale.Line
	audit      []audit.Entry
}

func newState() *state {
	return &state{
		seq:        make(map[string]int64),
		products:   make(map[int64]product.Product),
		pieceTypes: make(map[int64]product.PieceType),
		parties:    make(map[int64]party.Party),
		shipments:  make(map[int64]shipment.Shipment),
		lines:      make(map[int64]shipment.LineItem),
		sales:      make(map[int64]sale.Sale),
	}
}

// clone copies containers. Stored values are replaced, never mutated in
// place, so sharing their pointer fields is safe.
func (s *state) clone() *state {
	return &state{
		seq:        maps.Clone(s.seq),
		products:   maps.Clone(s.products),
		pieceTypes: maps.Clone(s.pieceTypes),
		movements:  slices.Clone(s.movements),
		parties:    maps.Clone(s.parties),
		shipments:  maps.Clone(s.shipments),
		lines:      maps.Clone(s.lines),
		sales:      maps.Clone(s.sales),
		saleLines:  slices.Clone(s.saleLines),
		audit:      slices.Clone(s.audit),
	}
}

func (s *state) next(sequence string) int64 {
	s.seq[sequence]++
	return s.seq[sequence]
}

// New creates an empty store.
func New() *Store {
	return &Store{st: newState()}
}

// RunInTransaction implements tx.Manager. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.committed = snapshot
	s.mu.Unlock()

	err := fn(context.WithValue(ctx, txKey{}, txReadWrite))

	s.mu.Lock()
	if err != nil {
		s.st = snapshot
	}
	s.committed = nil
	s.mu.Unlock()
	return err
}

// RunSerializable implements tx.SerializableManager. Transactions here are
// already fully serialized.
func (s *Store) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

// ReadOnly implements tx.ReadOnlyManager. Writers wait until fn returns,
// so every read inside fn sees the same state.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, txReadOnly))
}

func modeOf(ctx context.Context) txMode {
	v, _ := ctx.Value(txKey{}).(txMode)
	return v
}

func inTx(ctx context.Context) bool {
	return modeOf(ctx) != txNone
}

func (s *Store) read(ctx context.Context, fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.committed != nil && !inTx(ctx) {
		fn(s.committed)
		return
	}
	fn(s.st)
}

func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if modeOf(ctx) == txReadOnly {
		return errReadOnly
	}
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Products returns the product repository.
func (s *Store) Products() *ProductRepo { return &ProductRepo{s: s} }

// PieceTypes returns the piece type repository.
func (s *Store) PieceTypes() *PieceTypeRepo { return &PieceTypeRepo{s: s} }

// Parties returns the party repository.
func (s *Store) Parties() *PartyRepo { return &PartyRepo{s: s} }

// Shipments returns the shipment repository.
func (s *Store) Shipments() *ShipmentRepo { return &ShipmentRepo{s: s} }

// Sales returns the sale repository.
func (s *Store) Sales() *SaleRepo { return &SaleRepo{s: s} }

// Audit returns the audit recorder.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{s: s} }

// Reports returns the report repository.
func (s *Store) Reports() *ReportRepo { return &ReportRepo{s: s} }

func page[T any](items []T, p domain.Page) domain.ListResult[T] {
	total := len(items)
	start := min(p.Offset, total)
	end := total
	if p.Limit > 0 {
		end = min(start+p.Limit, total)
	}
	return domain.ListResult[T]{
		Items:      items[start:end],
		TotalCount: int64(total),
		Limit:      p.Limit,
		Offset:     p.Offset,
	}
}
