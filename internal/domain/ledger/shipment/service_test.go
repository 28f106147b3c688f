package shipment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consigna/internal/core/apperror"
	"consigna/internal/domain/catalog/product"
	"consigna/internal/domain/ledger/sale"
	"consigna/internal/domain/ledger/shipment"
	"consigna/internal/domain/receipt"
	"consigna/internal/testutil"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	env    *testutil.Env
	client int64
	ring   *product.Product // 45.00, stock 5
	hoop   *product.Product // 20.00, stock 3
}

func newFixture(t *testing.T) *fixture {
	env := testutil.NewEnv(t)
	return &fixture{
		env:    env,
		client: env.Client(t, "Maria Souza", "123.456.789-00").ID,
		ring:   env.Plated(t, "Anel Dourado", "22.50", 5),
		hoop:   env.Plated(t, "Brinco Argola", "10.00", 3),
	}
}

func (f *fixture) consign(t *testing.T) *shipment.CreateResult {
	t.Helper()
	res, err := f.env.Shipments.CreateShipment(context.Background(), shipment.CreateInput{
		PartyID:  f.client,
		Kind:     shipment.KindConsignment,
		Lines:    []shipment.LineRequest{{ProductID: f.ring.ID, Quantity: 3}, {ProductID: f.hoop.ID, Quantity: 2}},
		Operator: testutil.Operator,
	})
	require.NoError(t, err)
	return res
}

func lineFor(t *testing.T, shp *shipment.Shipment, productID int64) shipment.LineItem {
	t.Helper()
	for _, l := range shp.Lines {
		if l.ProductID == productID {
			return l
		}
	}
	t.Fatalf("no line for product %d", productID)
	return shipment.LineItem{}
}

func TestCreateShipment_Consignment(t *testing.T) {
	f := newFixture(t)
	res := f.consign(t)

	shp := res.Shipment
	assert.Equal(t, shipment.StatusOpen, shp.Status)
	assert.Nil(t, shp.SettledAt)
	assert.Equal(t, testutil.Epoch, shp.DepartedAt)
	assert.Nil(t, res.Sale)
	require.Len(t, shp.Lines, 2)
	for _, l := range shp.Lines {
		assert.Equal(t, shipment.LineConsigned, l.Status)
	}
	assert.True(t, money("45").Equal(lineFor(t, shp, f.ring.ID).UnitPrice))

	assert.Equal(t, 2, f.env.Stock(t, f.ring.ID))
	assert.Equal(t, 1, f.env.Stock(t, f.hoop.ID))

	require.True(t, res.Receipt.OK())
	assert.Equal(t, "recibo_remessa_1.xlsx", res.Receipt.Rendered.Filename)
	assert.Equal(t, receipt.LabelOpen, res.Receipt.Document.Header.StatusLabel)
	assert.Equal(t, "Maria Souza", res.Receipt.Document.Header.PartyName)
	assert.Equal(t, 5, res.Receipt.Document.ItemCount)
	assert.True(t, money("175").Equal(res.Receipt.Document.Total))
}

func TestCreateShipment_SaleIsFinalizedAndMirrored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.env.Shipments.CreateShipment(ctx, shipment.CreateInput{
		PartyID:  f.client,
		Kind:     shipment.KindSale,
		Lines:    []shipment.LineRequest{{ProductID: f.ring.ID, Quantity: 2}},
		Operator: testutil.Operator,
	})
	require.NoError(t, err)

	assert.Equal(t, shipment.StatusFinalized, res.Shipment.Status)
	require.NotNil(t, res.Shipment.SettledAt)
	assert.Equal(t, shipment.LineSold, res.Shipment.Lines[0].Status)

	require.NotNil(t, res.Sale)
	assert.Equal(t, sale.PaymentPix, res.Sale.PaymentMethod)
	assert.True(t, money("90").Equal(res.Sale.Total()))
	require.NotNil(t, res.Sale.ShipmentID)
	assert.Equal(t, res.Shipment.ID, *res.Sale.ShipmentID)
	assert.Equal(t, receipt.LabelSale, res.Receipt.Document.Header.StatusLabel)

	totals, err := f.env.Shipments.Totals(ctx, res.Shipment.ID)
	require.NoError(t, err)
	assert.True(t, money("90").Equal(totals.Sold))
	assert.True(t, totals.StillConsigned.IsZero())
}

func TestCreateShipment_InsufficientStockAbortsEverything(t *testing.T) {
	f := newFixture(t)

	_, err := f.env.Shipments.CreateShipment(context.Background(), shipment.CreateInput{
		PartyID:  f.client,
		Kind:     shipment.KindConsignment,
		Lines:    []shipment.LineRequest{{ProductID: f.ring.ID, Quantity: 2}, {ProductID: f.hoop.ID, Quantity: 4}},
		Operator: testutil.Operator,
	})
	require.Error(t, err)
	require.True(t, apperror.IsInsufficientStock(err))

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "Brinco Argola", appErr.Details["product_name"])
	assert.Equal(t, 3, appErr.Details["available"])

	// The first line's reservation was rolled back with the rest.
	assert.Equal(t, 5, f.env.Stock(t, f.ring.ID))
	assert.Equal(t, 3, f.env.Stock(t, f.hoop.ID))

	found, err := f.env.Shipments.Search(context.Background(), shipment.Filter{})
	require.NoError(t, err)
	assert.Zero(t, found.TotalCount)
}

func TestCreateShipment_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input shipment.CreateInput
		check func(error) bool
	}{
		{
			name:  "no lines",
			input: shipment.CreateInput{PartyID: f.client, Kind: shipment.KindConsignment, Operator: testutil.Operator},
			check: func(err error) bool { return apperror.HasCode(err, apperror.CodeValidation) },
		},
		{
			name: "zero quantity",
			input: shipment.CreateInput{PartyID: f.client, Kind: shipment.KindConsignment, Operator: testutil.Operator,
				Lines: []shipment.LineRequest{{ProductID: f.ring.ID, Quantity: 0}}},
			check: func(err error) bool { return apperror.HasCode(err, apperror.CodeValidation) },
		},
		{
			name: "duplicate product",
			input: shipment.CreateInput{PartyID: f.client, Kind: shipment.KindConsignment, Operator: testutil.Operator,
				Lines: []shipment.LineRequest{{ProductID: f.ring.ID, Quantity: 1}, {ProductID: f.ring.ID, Quantity: 1}}},
			check: func(err error) bool { return apperror.HasCode(err, apperror.CodeValidation) },
		},
		{
			name: "missing operator",
			input: shipment.CreateInput{PartyID: f.client, Kind: shipment.KindConsignment,
				Lines: []shipment.LineRequest{{ProductID: f.ring.ID, Quantity: 1}}},
			check: func(err error) bool { return apperror.HasCode(err, apperror.CodeValidation) },
		},
		{
			name: "unknown party",
			input: shipment.CreateInput{PartyID: 999, Kind: shipment.KindConsignment, Operator: testutil.Operator,
				Lines: []shipment.LineRequest{{ProductID: f.ring.ID, Quantity: 1}}},
			check: apperror.IsNotFound,
		},
		{
			name: "unknown product",
			input: shipment.CreateInput{PartyID: f.client, Kind: shipment.KindConsignment, Operator: testutil.Operator,
				Lines: []shipment.LineRequest{{ProductID: 999, Quantity: 1}}},
			check: apperror.IsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.env.Shipments.CreateShipment(ctx, tt.input)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Equal(t, 5, f.env.Stock(t, f.ring.ID))
		})
	}
}

func TestPriceFreeze(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.consign(t)

	newCost := money("40")
	updated, err := f.env.Products.UpdatePricing(ctx, f.ring.ID, product.PricingChange{Cost: &newCost}, testutil.Operator)
	require.NoError(t, err)
	assert.True(t, money("80").Equal(updated.SalePrice))

	shp, err := f.env.Shipments.Get(ctx, res.Shipment.ID)
	require.NoError(t, err)
	assert.True(t, money("45").Equal(lineFor(t, shp, f.ring.ID).UnitPrice))

	balance, err := f.env.Shipments.OutstandingBalance(ctx, f.client)
	require.NoError(t, err)
	assert.True(t, money("175").Equal(balance), balance.String())
}

func TestSettle_KeepOpenThenClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.consign(t)
	ring := lineFor(t, created.Shipment, f.ring.ID)
	hoop := lineFor(t, created.Shipment, f.hoop.ID)

	f.env.Clock.Advance(72 * time.Hour)
	res, err := f.env.Shipments.Settle(ctx, shipment.SettleInput{
		ShipmentID: created.Shipment.ID,
		Reported:   []shipment.ReportedQuantity{{LineItemID: ring.ID, Quantity: 1}, {LineItemID: hoop.ID, Quantity: 0}},
		Outcome:    shipment.OutcomeKeepOpen,
		Operator:   testutil.Operator,
	})
	require.NoError(t, err)

	// Stock conservation: every returned unit is back.
	assert.Equal(t, 4, f.env.Stock(t, f.ring.ID))
	assert.Equal(t, 3, f.env.Stock(t, f.hoop.ID))

	assert.Equal(t, shipment.StatusOpen, res.Shipment.Status)
	assert.Equal(t, testutil.Epoch.Add(72*time.Hour), res.Shipment.DepartedAt)
	assert.Nil(t, res.Sale)

	ringAfter := lineFor(t, res.Shipment, f.ring.ID)
	assert.Equal(t, shipment.LineConsigned, ringAfter.Status)
	assert.Equal(t, 1, ringAfter.Quantity)
	assert.Equal(t, 2, ringAfter.ReturnedQuantity)
	hoopAfter := lineFor(t, res.Shipment, f.hoop.ID)
	assert.Equal(t, shipment.LineReturned, hoopAfter.Status)
	assert.Zero(t, hoopAfter.Quantity)

	require.Len(t, res.Statement.Lines, 1)
	assert.Equal(t, "Anel Dourado", res.Statement.Lines[0].Name)
	assert.Equal(t, 1, res.Statement.Lines[0].Quantity)
	require.Len(t, res.Statement.Removed, 1)
	assert.Equal(t, "Brinco Argola", res.Statement.Removed[0].Name)
	assert.Equal(t, 2, res.Statement.Removed[0].Quantity)

	require.True(t, res.Receipt.OK())
	assert.Equal(t, "acerto_remessa_1.xlsx", res.Receipt.Rendered.Filename)
	assert.Equal(t, receipt.LabelOpen, res.Receipt.Document.Header.StatusLabel)
	assert.Equal(t, 1, res.Receipt.Document.ItemCount)
	assert.True(t, money("45").Equal(res.Receipt.Document.Subtotal))
	assert.Len(t, res.Receipt.Document.Pages[0].Rows, 2)
	assert.True(t, res.Receipt.Document.Pages[0].Rows[1].Struck)

	totals, err := f.env.Shipments.Totals(ctx, created.Shipment.ID)
	require.NoError(t, err)
	assert.True(t, totals.Sold.IsZero())
	assert.True(t, money("130").Equal(totals.Returned), totals.Returned.String())
	assert.True(t, money("45").Equal(totals.StillConsigned))

	closed, err := f.env.Shipments.Settle(ctx, shipment.SettleInput{
		ShipmentID:    created.Shipment.ID,
		Reported:      []shipment.ReportedQuantity{{LineItemID: ring.ID, Quantity: 1}},
		Outcome:       shipment.OutcomeClose,
		PaymentMethod: sale.PaymentCash,
		Operator:      testutil.Operator,
	})
	require.NoError(t, err)

	assert.Equal(t, shipment.StatusFinalized, closed.Shipment.Status)
	require.NotNil(t, closed.Shipment.SettledAt)
	assert.Equal(t, shipment.LineSold, lineFor(t, closed.Shipment, f.ring.ID).Status)
	require.NotNil(t, closed.Sale)
	assert.Equal(t, sale.PaymentCash, closed.Sale.PaymentMethod)
	assert.True(t, money("45").Equal(closed.Sale.Total()))
	assert.Equal(t, receipt.LabelFinalized, closed.Receipt.Document.Header.StatusLabel)
	assert.Equal(t, 4, f.env.Stock(t, f.ring.ID))

	totals, err = f.env.Shipments.Totals(ctx, created.Shipment.ID)
	require.NoError(t, err)
	assert.True(t, money("45").Equal(totals.Sold))
	assert.True(t, money("130").Equal(totals.Returned))
	assert.True(t, totals.StillConsigned.IsZero())

	balance, err := f.env.Shipments.OutstandingBalance(ctx, f.client)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestSettle_CloseWithEverythingReturnedRecordsNoSale(t *testing.T) {
	f := newFixture(t)
	created := f.consign(t)

	res, err := f.env.Shipments.Settle(context.Background(), shipment.SettleInput{
		ShipmentID: created.Shipment.ID,
		Reported: []shipment.ReportedQuantity{
			{LineItemID: lineFor(t, created.Shipment, f.ring.ID).ID, Quantity: 0},
			{LineItemID: lineFor(t, created.Shipment, f.hoop.ID).ID, Quantity: 0},
		},
		Outcome:  shipment.OutcomeClose,
		Operator: testutil.Operator,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Sale)
	assert.Equal(t, shipment.StatusFinalized, res.Shipment.Status)
	assert.Empty(t, res.Statement.Lines)
	assert.Len(t, res.Statement.Removed, 2)
	assert.Equal(t, 5, f.env.Stock(t, f.ring.ID))
	assert.Equal(t, 3, f.env.Stock(t, f.hoop.ID))
}

func TestSettle_FinalizedIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.consign(t)
	ring := lineFor(t, created.Shipment, f.ring.ID)
	hoop := lineFor(t, created.Shipment, f.hoop.ID)

	_, err := f.env.Shipments.Settle(ctx, shipment.SettleInput{
		ShipmentID: created.Shipment.ID,
		Reported:   []shipment.ReportedQuantity{{LineItemID: ring.ID, Quantity: 3}, {LineItemID: hoop.ID, Quantity: 2}},
		Outcome:    shipment.OutcomeClose,
		Operator:   testutil.Operator,
	})
	require.NoError(t, err)

	_, err = f.env.Shipments.Settle(ctx, shipment.SettleInput{
		ShipmentID: created.Shipment.ID,
		Reported:   []shipment.ReportedQuantity{{LineItemID: ring.ID, Quantity: 0}},
		Outcome:    shipment.OutcomeKeepOpen,
		Operator:   testutil.Operator,
	})
	assert.True(t, apperror.IsInvalidSettlement(err))

	_, err = f.env.Shipments.AddLines(ctx, created.Shipment.ID, []shipment.LineRequest{{ProductID: f.hoop.ID, Quantity: 1}}, testutil.Operator)
	assert.True(t, apperror.IsInvalidSettlement(err))

	shp, err := f.env.Shipments.Get(ctx, created.Shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, lineFor(t, shp, f.ring.ID).Quantity)
	assert.Equal(t, shipment.LineSold, lineFor(t, shp, f.ring.ID).Status)
	assert.Equal(t, 2, f.env.Stock(t, f.ring.ID))
}

func TestSettle_RejectsInvalidReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.consign(t)
	ring := lineFor(t, created.Shipment, f.ring.ID)
	hoop := lineFor(t, created.Shipment, f.hoop.ID)

	other, err := f.env.Shipments.CreateShipment(ctx, shipment.CreateInput{
		PartyID:  f.client,
		Kind:     shipment.KindConsignment,
		Lines:    []shipment.LineRequest{{ProductID: f.ring.ID, Quantity: 1}},
		Operator: testutil.Operator,
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		reported []shipment.ReportedQuantity
		outcome  shipment.Outcome
	}{
		{"duplicate line", []shipment.ReportedQuantity{{LineItemID: ring.ID, Quantity: 1}, {LineItemID: ring.ID, Quantity: 2}}, shipment.OutcomeKeepOpen},
		{"negative quantity", []shipment.ReportedQuantity{{LineItemID: ring.ID, Quantity: -1}}, shipment.OutcomeKeepOpen},
		{"more than consigned", []shipment.ReportedQuantity{{LineItemID: ring.ID, Quantity: 4}}, shipment.OutcomeKeepOpen},
		{"foreign line", []shipment.ReportedQuantity{{LineItemID: other.Shipment.Lines[0].ID, Quantity: 0}}, shipment.OutcomeKeepOpen},
		{"close with unreported line", []shipment.ReportedQuantity{{LineItemID: hoop.ID, Quantity: 1}}, shipment.OutcomeClose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.env.Shipments.Settle(ctx, shipment.SettleInput{
				ShipmentID: created.Shipment.ID,
				Reported:   tt.reported,
				Outcome:    tt.outcome,
				Operator:   testutil.Operator,
			})
			require.Error(t, err)
			assert.True(t, apperror.IsInvalidSettlement(err), "unexpected error: %v", err)

			assert.Equal(t, 1, f.env.Stock(t, f.ring.ID))
			assert.Equal(t, 1, f.env.Stock(t, f.hoop.ID))
		})
	}

	_, err = f.env.Shipments.Settle(ctx, shipment.SettleInput{ShipmentID: 999, Outcome: shipment.OutcomeKeepOpen, Operator: testutil.Operator})
	assert.True(t, apperror.IsNotFound(err))
}

func TestSettle_DocumentFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.consign(t)

	f.env.Renderer.RenderFunc = func(context.Context, *receipt.Document) (*receipt.Rendered, error) {
		return nil, errors.New("disk full")
	}

	res, err := f.env.Shipments.Settle(ctx, shipment.SettleInput{
		ShipmentID: created.Shipment.ID,
		Reported: []shipment.ReportedQuantity{
			{LineItemID: lineFor(t, created.Shipment, f.ring.ID).ID, Quantity: 0},
			{LineItemID: lineFor(t, created.Shipment, f.hoop.ID).ID, Quantity: 2},
		},
		Outcome:  shipment.OutcomeClose,
		Operator: testutil.Operator,
	})
	require.NoError(t, err)
	require.False(t, res.Receipt.OK())
	assert.True(t, apperror.HasCode(res.Receipt.Warning, apperror.CodeDocumentComposition))
	assert.Nil(t, res.Receipt.Rendered)

	shp, err := f.env.Shipments.Get(ctx, created.Shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, shipment.StatusFinalized, shp.Status)
	assert.Equal(t, 5, f.env.Stock(t, f.ring.ID))
}

func TestAddLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chain := f.env.Plated(t, "Corrente Fina", "15.00", 4)

	created, err := f.env.Shipments.CreateShipment(ctx, shipment.CreateInput{
		PartyID:  f.client,
		Kind:     shipment.KindConsignment,
		Lines:    []shipment.LineRequest{{ProductID: f.ring.ID, Quantity: 1}},
		Operator: testutil.Operator,
	})
	require.NoError(t, err)

	shp, err := f.env.Shipments.AddLines(ctx, created.Shipment.ID, []shipment.LineRequest{{ProductID: chain.ID, Quantity: 2}}, testutil.Operator)
	require.NoError(t, err)
	require.Len(t, shp.Lines, 2)
	assert.Equal(t, shipment.LineConsigned, lineFor(t, shp, chain.ID).Status)
	assert.Equal(t, 2, f.env.Stock(t, chain.ID))

	_, err = f.env.Shipments.AddLines(ctx, created.Shipment.ID, []shipment.LineRequest{{ProductID: f.ring.ID, Quantity: 1}}, testutil.Operator)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Equal(t, 4, f.env.Stock(t, f.ring.ID))
}

func TestConcurrentReservationNeverOversells(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.env.Shipments.CreateShipment(ctx, shipment.CreateInput{
				PartyID:  f.client,
				Kind:     shipment.KindConsignment,
				Lines:    []shipment.LineRequest{{ProductID: f.ring.ID, Quantity: 1}},
				Operator: testutil.Operator,
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, apperror.IsInsufficientStock(err), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Zero(t, f.env.Stock(t, f.ring.ID))
}

func TestReceiptReprint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.consign(t)

	_, err := f.env.Shipments.Settle(ctx, shipment.SettleInput{
		ShipmentID: created.Shipment.ID,
		Reported:   []shipment.ReportedQuantity{{LineItemID: lineFor(t, created.Shipment, f.hoop.ID).ID, Quantity: 0}},
		Outcome:    shipment.OutcomeKeepOpen,
		Operator:   testutil.Operator,
	})
	require.NoError(t, err)

	out, err := f.env.Shipments.Receipt(ctx, created.Shipment.ID)
	require.NoError(t, err)
	require.True(t, out.OK())
	assert.Equal(t, receipt.LabelOpen, out.Document.Header.StatusLabel)

	rows := out.Document.Pages[0].Rows
	require.Len(t, rows, 2)
	assert.False(t, rows[0].Struck)
	assert.Equal(t, 3, rows[0].Quantity)
	assert.True(t, rows[1].Struck)
	assert.Equal(t, 2, rows[1].Quantity)
	assert.True(t, rows[1].Subtotal.IsZero())
	assert.Equal(t, 3, out.Document.ItemCount)

	_, err = f.env.Shipments.Receipt(ctx, 404)
	assert.True(t, apperror.IsNotFound(err))
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.consign(t)
	other := f.env.Client(t, "Joana Lima", "987.654.321-00")
	_, err := f.env.Shipments.CreateShipment(ctx, shipment.CreateInput{
		PartyID:  other.ID,
		Kind:     shipment.KindConsignment,
		Lines:    []shipment.LineRequest{{ProductID: f.hoop.ID, Quantity: 1}},
		Operator: testutil.Operator,
	})
	require.NoError(t, err)

	byName, err := f.env.Shipments.Search(ctx, shipment.Filter{Term: "souza"})
	require.NoError(t, err)
	require.Len(t, byName.Items, 1)
	assert.Equal(t, created.Shipment.ID, byName.Items[0].ID)
	assert.Equal(t, "Maria Souza", byName.Items[0].PartyName)

	byDoc, err := f.env.Shipments.Search(ctx, shipment.Filter{Term: "987.654"})
	require.NoError(t, err)
	assert.Len(t, byDoc.Items, 1)

	all, err := f.env.Shipments.Search(ctx, shipment.Filter{Status: shipment.StatusOpen})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.TotalCount)

	_, err = f.env.Shipments.Search(ctx, shipment.Filter{Status: "LOST"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
