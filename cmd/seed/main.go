// Package main provides a CLI tool for seeding the database with demo data.
// Re-running it is safe: existing piece types, parties and products are reused.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"consigna/internal/app"
	"consigna/internal/config"
	"consigna/internal/core/apperror"
	"consigna/internal/domain/catalog/party"
	"consigna/internal/domain/catalog/product"
	"consigna/internal/domain/ledger/shipment"
	"consigna/pkg/logger"
)

const operator = "seed"

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Env.Log.Level,
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to start", "error", err)
	}
	defer a.Close()

	if err := seed(ctx, a, log, os.Getenv("SEED_DEMO_SHIPMENT") == "true"); err != nil {
		log.Fatalw("failed to seed", "error", err)
	}
	log.Info("seeding completed successfully")
}

func seed(ctx context.Context, a *app.App, log *logger.Logger, withShipment bool) error {
	pieceTypes := map[string]int64{}
	for _, name := range []string{"Anel", "Brinco", "Colar", "Pulseira"} {
		pt, err := seedPieceType(ctx, a, name)
		if err != nil {
			return err
		}
		pieceTypes[name] = pt
	}

	supplier, err := seedParty(ctx, a, party.Draft{
		FullName:       "Atacado Dourado Ltda",
		Document:       "12.345.678/0001-90",
		Email:          "vendas@atacadodourado.com.br",
		City:           "Limeira",
		State:          "SP",
		IsSupplier:     true,
		SupplyMaterial: party.SupplyPlated,
	})
	if err != nil {
		return err
	}

	client, err := seedParty(ctx, a, party.Draft{
		FullName: "Maria Aparecida Souza",
		Document: "123.456.789-09",
		Phone:    "(19) 99876-5432",
		City:     "Campinas",
		State:    "SP",
	})
	if err != nil {
		return err
	}

	type productSeed struct {
		name      string
		material  product.Material
		pieceType string
		stock     int
		cost      string
		weight    string
		price     string
	}

	seeds := []productSeed{
		{name: "Anel Solitário Zircônia", material: product.MaterialPlated, pieceType: "Anel", stock: 12, cost: "18.50"},
		{name: "Brinco Argola Média", material: product.MaterialPlated, pieceType: "Brinco", stock: 30, cost: "9.90"},
		{name: "Colar Veneziana 45cm", material: product.MaterialSilver, pieceType: "Colar", stock: 8, cost: "42.00"},
		{name: "Pulseira Elos Ouro 18k", material: product.MaterialGold, pieceType: "Pulseira", stock: 2, weight: "3.2", price: "1890.00"},
	}

	var products []*product.Product
	for _, s := range seeds {
		d := product.Draft{
			Name:     s.name,
			Material: s.material,
			Stock:    s.stock,
		}
		pt := pieceTypes[s.pieceType]
		d.PieceTypeID = &pt
		if s.material == product.MaterialPlated {
			d.SupplierID = &supplier.ID
		}
		if s.cost != "" {
			c := decimal.RequireFromString(s.cost)
			d.Cost = &c
		}
		if s.weight != "" {
			d.WeightGrams = decimal.RequireFromString(s.weight)
		}
		if s.price != "" {
			p := decimal.RequireFromString(s.price)
			d.SalePrice = &p
		}

		p, err := seedProduct(ctx, a, d)
		if err != nil {
			return err
		}
		log.Infow("product ready", "product_id", p.ID, "barcode", p.Barcode, "sale_price", p.SalePrice)
		products = append(products, p)
	}

	if !withShipment {
		return nil
	}

	res, err := a.Shipments.CreateShipment(ctx, shipment.CreateInput{
		PartyID: client.ID,
		Kind:    shipment.KindConsignment,
		Lines: []shipment.LineRequest{
			{ProductID: products[0].ID, Quantity: 2},
			{ProductID: products[1].ID, Quantity: 5},
		},
		Operator: operator,
	})
	if err != nil {
		return fmt.Errorf("seed shipment: %w", err)
	}
	log.Infow("demo consignment created", "shipment_id", res.Shipment.ID, "party_id", client.ID)
	return nil
}

func seedPieceType(ctx context.Context, a *app.App, name string) (int64, error) {
	pt, err := a.Products.RegisterPieceType(ctx, name, operator)
	if err == nil {
		return pt.ID, nil
	}
	if !apperror.HasCode(err, apperror.CodeDuplicate) {
		return 0, fmt.Errorf("seed piece type %s: %w", name, err)
	}

	all, err := a.Products.ListPieceTypes(ctx)
	if err != nil {
		return 0, err
	}
	for _, existing := range all {
		if existing.Name == name {
			return existing.ID, nil
		}
	}
	return 0, fmt.Errorf("piece type %s reported duplicate but not listed", name)
}

func seedParty(ctx context.Context, a *app.App, d party.Draft) (*party.Party, error) {
	p, err := a.Parties.Register(ctx, d, operator)
	if err == nil {
		return p, nil
	}
	if !apperror.HasCode(err, apperror.CodeDuplicate) {
		return nil, fmt.Errorf("seed party %s: %w", d.FullName, err)
	}

	found, err := a.Parties.Search(ctx, party.Filter{Document: d.Document})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("party %s reported duplicate but not found", d.Document)
	}
	return found[0], nil
}

func seedProduct(ctx context.Context, a *app.App, d product.Draft) (*product.Product, error) {
	p, err := a.Products.Register(ctx, d, operator)
	if err == nil {
		return p, nil
	}
	if !apperror.HasCode(err, apperror.CodeDuplicate) {
		return nil, fmt.Errorf("seed product %s: %w", d.Name, err)
	}

	found, err := a.Products.Search(ctx, product.Filter{Term: d.Name})
	if err != nil {
		return nil, err
	}
	for _, existing := range found.Items {
		if existing.Name == d.Name {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("product %s reported duplicate but not found", d.Name)
}
