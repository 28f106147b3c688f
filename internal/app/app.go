// Package app assembles the service graph from configuration.
package app

import (
	"context"
	"fmt"

	"consigna/internal/config"
	"consigna/internal/core/clock"
	"consigna/internal/core/tx"
	"consigna/internal/core/types"
	"consigna/internal/domain/audit"
	"consigna/internal/domain/catalog/party"
	"consigna/internal/domain/catalog/product"
	"consigna/internal/domain/labels"
	"consigna/internal/domain/ledger/sale"
	"consigna/internal/domain/ledger/shipment"
	"consigna/internal/domain/receipt"
	"consigna/internal/domain/reports"
	"consigna/internal/infrastructure/cache"
	"consigna/internal/infrastructure/render"
	"consigna/internal/infrastructure/storage/memory"
	"consigna/internal/infrastructure/storage/postgres"
	"consigna/internal/infrastructure/storage/postgres/catalog_repo"
	"consigna/internal/infrastructure/storage/postgres/ledger_repo"
	"consigna/internal/infrastructure/storage/postgres/report_repo"
	"consigna/pkg/logger"
)

// App is the wired application.
type App struct {
	Products  *product.Service
	Parties   *party.Service
	Sales     *sale.Service
	Shipments *shipment.Service
	Reports   *reports.Service
	Labels    *labels.Service
	Audit     audit.Recorder

	// TxManager is set for the postgres driver only.
	TxManager *postgres.TxManager

	closers []func()
}

// repositories is the storage half of the graph.
type repositories struct {
	products   product.Repository
	pieceTypes product.PieceTypeRepository
	parties    party.Repository
	shipments  shipment.Repository
	sales      sale.Repository
	reports    reports.Repository
	audit      audit.Recorder
	txManager  tx.LedgerManager
}

// New connects storage and the optional cache, then wires every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	repos, err := a.openStorage(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	barcodes, err := a.openCache(ctx, cfg.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}

	settings, err := receiptSettings(cfg.Receipt)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.wire(repos, barcodes, settings, clock.System{})
	return a, nil
}

// NewMemory wires an application over a fresh in-memory store.
func NewMemory(clk clock.Clock) *App {
	a := &App{}
	a.wire(memoryRepositories(memory.New()), cache.Noop{}, receipt.Settings{}, clk)
	return a
}

func (a *App) openStorage(ctx context.Context, cfg *config.Config) (repositories, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Warn(ctx, "using in-memory storage; data is lost on exit")
		return memoryRepositories(memory.New()), nil
	}

	pool, closePool, err := postgres.OpenPool(ctx, postgres.PoolSettings{
		DSN:             cfg.Postgres.DSN,
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
	})
	if err != nil {
		return repositories{}, fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, closePool)

	txm := postgres.NewTxManager(pool)
	recorder, err := postgres.NewAuditRecorder(txm)
	if err != nil {
		return repositories{}, err
	}

	a.TxManager = txm
	return repositories{
		products:   catalog_repo.NewProductRepo(txm),
		pieceTypes: catalog_repo.NewPieceTypeRepo(txm),
		parties:    catalog_repo.NewPartyRepo(txm),
		shipments:  ledger_repo.NewShipmentRepo(txm),
		sales:      ledger_repo.NewSaleRepo(txm),
		reports:    report_repo.NewReportRepo(txm),
		audit:      recorder,
		txManager:  txm,
	}, nil
}

func memoryRepositories(store *memory.Store) repositories {
	return repositories{
		products:   store.Products(),
		pieceTypes: store.PieceTypes(),
		parties:    store.Parties(),
		shipments:  store.Shipments(),
		sales:      store.Sales(),
		reports:    store.Reports(),
		audit:      store.Audit(),
		txManager:  store,
	}
}

func (a *App) openCache(ctx context.Context, cfg config.Redis) (product.BarcodeCache, error) {
	if !cfg.Enabled {
		return cache.Noop{}, nil
	}

	c, err := cache.Connect(ctx, cache.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		TTL:      cfg.TTL,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = c.Close() })
	return c, nil
}

func receiptSettings(cfg config.Receipt) (receipt.Settings, error) {
	s := receipt.Settings{
		PageSize:   cfg.PageSize,
		StoreLines: cfg.StoreLines,
		TaxID:      cfg.TaxID,
	}

	var err error
	if s.DiscountRate, err = parseRate("receipt.discountRate", cfg.DiscountRate); err != nil {
		return s, err
	}
	if s.TaxRate, err = parseRate("receipt.taxRate", cfg.TaxRate); err != nil {
		return s, err
	}
	return s, nil
}

func parseRate(key, raw string) (types.Money, error) {
	if raw == "" {
		return types.Zero(), nil
	}
	rate, err := types.NewMoneyFromString(raw)
	if err != nil {
		return types.Zero(), fmt.Errorf("%s: %w", key, err)
	}
	if rate.IsNegative() {
		return types.Zero(), fmt.Errorf("%s: must not be negative", key)
	}
	return rate, nil
}

func (a *App) wire(r repositories, barcodes product.BarcodeCache, settings receipt.Settings, clk clock.Clock) {
	a.Audit = r.audit
	a.Parties = party.NewService(r.parties, r.audit, r.txManager, clk)
	a.Products = product.NewService(product.Deps{
		Repo:       r.products,
		PieceTypes: r.pieceTypes,
		Suppliers:  a.Parties,
		Cache:      barcodes,
		Audit:      r.audit,
		TxManager:  r.txManager,
		Clock:      clk,
	})
	a.Sales = sale.NewService(r.sales, r.audit, r.txManager, clk)
	a.Shipments = shipment.NewService(shipment.Deps{
		Repo:      r.shipments,
		Stock:     a.Products,
		Parties:   r.parties,
		Sales:     a.Sales,
		Receipts:  receipt.NewComposer(settings, render.NewReceiptRenderer()),
		Audit:     r.audit,
		TxManager: r.txManager,
		Clock:     clk,
	})
	a.Reports = reports.NewService(r.reports, r.txManager)
	a.Labels = labels.NewService(a.Products, render.NewLabelRenderer())
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
