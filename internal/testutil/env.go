// Package testutil wires the services over the in-memory store for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"consigna/internal/core/clock"
	"consigna/internal/domain/catalog/party"
	"consigna/internal/domain/catalog/product"
	"consigna/internal/domain/ledger/sale"
	"consigna/internal/domain/ledger/shipment"
	"consigna/internal/domain/receipt"
	"consigna/internal/domain/reports"
	"consigna/internal/infrastructure/storage/memory"
)

// Operator attributes every test mutation.
const Operator = "caixa"

// Epoch is the instant the test clock starts at.
var Epoch = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// Env is a fully wired service graph.
type Env struct {
	Store     *memory.Store
	Clock     *clock.Fixed
	Renderer  *receipt.MockRenderer
	Products  *product.Service
	Parties   *party.Service
	Sales     *sale.Service
	Shipments *shipment.Service
	Reports   *reports.Service
}

// NewEnv builds an Env over an empty store.
func NewEnv(t testing.TB) *Env {
	t.Helper()

	store := memory.New()
	clk := clock.NewFixed(Epoch)
	renderer := &receipt.MockRenderer{}

	parties := party.NewService(store.Parties(), store.Audit(), store, clk)
	products := product.NewService(product.Deps{
		Repo:       store.Products(),
		PieceTypes: store.PieceTypes(),
		Suppliers:  parties,
		Audit:      store.Audit(),
		TxManager:  store,
		Clock:      clk,
	})
	sales := sale.NewService(store.Sales(), store.Audit(), store, clk)
	shipments := shipment.NewService(shipment.Deps{
		Repo:      store.Shipments(),
		Stock:     products,
		Parties:   store.Parties(),
		Sales:     sales,
		Receipts:  receipt.NewComposer(receipt.Settings{StoreLines: []string{"Loja Teste"}}, renderer),
		Audit:     store.Audit(),
		TxManager: store,
		Clock:     clk,
	})

	return &Env{
		Store:     store,
		Clock:     clk,
		Renderer:  renderer,
		Products:  products,
		Parties:   parties,
		Sales:     sales,
		Shipments: shipments,
		Reports:   reports.NewService(store.Reports(), store),
	}
}

// Client registers a non-supplier party.
func (e *Env) Client(t testing.TB, name, document string) *party.Party {
	t.Helper()
	p, err := e.Parties.Register(context.Background(), party.Draft{FullName: name, Document: document}, Operator)
	require.NoError(t, err)
	return p
}

// Plated registers a plated product priced from cost with the default margin.
func (e *Env) Plated(t testing.TB, name, cost string, stock int) *product.Product {
	t.Helper()
	c := decimal.RequireFromString(cost)
	p, err := e.Products.Register(context.Background(), product.Draft{
		Name:     name,
		Material: product.MaterialPlated,
		Stock:    stock,
		Cost:     &c,
	}, Operator)
	require.NoError(t, err)
	return p
}

// Stock reads a product's current stock.
func (e *Env) Stock(t testing.TB, productID int64) int {
	t.Helper()
	p, err := e.Products.Get(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}
