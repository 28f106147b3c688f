package main

import (
	"context"
	"strconv"

	"consigna/internal/app"
	"consigna/internal/core/apperror"
	"consigna/internal/domain/catalog/party"
	"consigna/internal/domain/catalog/product"
)

func runRegisterParty(ctx context.Context, a *app.App, inv invocation) (any, error) {
	var d party.Draft
	if err := readJSON(inv.args[0], &d); err != nil {
		return nil, err
	}
	return a.Parties.Register(ctx, d, inv.operator)
}

func runUpdateParty(ctx context.Context, a *app.App, inv invocation) (any, error) {
	partyID, err := inv.id(0)
	if err != nil {
		return nil, err
	}
	var change party.ContactChange
	if err := readJSON(inv.args[1], &change); err != nil {
		return nil, err
	}
	return a.Parties.Update(ctx, partyID, change, inv.operator)
}

func runDeleteParty(ctx context.Context, a *app.App, inv invocation) (any, error) {
	partyID, err := inv.id(0)
	if err != nil {
		return nil, err
	}
	if err := a.Parties.Delete(ctx, partyID, inv.operator); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": partyID}, nil
}

func runRegisterProduct(ctx context.Context, a *app.App, inv invocation) (any, error) {
	var d product.Draft
	if err := readJSON(inv.args[0], &d); err != nil {
		return nil, err
	}
	return a.Products.Register(ctx, d, inv.operator)
}

func runPricing(ctx context.Context, a *app.App, inv invocation) (any, error) {
	productID, err := inv.id(0)
	if err != nil {
		return nil, err
	}
	var change product.PricingChange
	if err := readJSON(inv.args[1], &change); err != nil {
		return nil, err
	}
	return a.Products.UpdatePricing(ctx, productID, change, inv.operator)
}

func runDeleteProduct(ctx context.Context, a *app.App, inv invocation) (any, error) {
	productID, err := inv.id(0)
	if err != nil {
		return nil, err
	}
	if err := a.Products.Delete(ctx, productID, inv.operator); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": productID}, nil
}

func runFindBarcode(ctx context.Context, a *app.App, inv invocation) (any, error) {
	return a.Products.FindByBarcode(ctx, inv.args[0])
}

func runStockSet(ctx context.Context, a *app.App, inv invocation) (any, error) {
	var settings []product.StockSetting
	if err := readJSON(inv.args[0], &settings); err != nil {
		return nil, err
	}
	if err := a.Products.BulkSetStock(ctx, settings, inv.operator); err != nil {
		return nil, err
	}
	return map[string]any{"updated": len(settings)}, nil
}

// defaultMovementLimit caps the journal printout when no limit is given.
const defaultMovementLimit = 50

func runMovements(ctx context.Context, a *app.App, inv invocation) (any, error) {
	productID, err := inv.id(0)
	if err != nil {
		return nil, err
	}
	limit := defaultMovementLimit
	if raw := inv.arg(1); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			return nil, apperror.NewValidation("limit must be a positive number").WithDetail(apperror.DetailField, "limit")
		}
	}
	return a.Products.Movements(ctx, productID, limit)
}
