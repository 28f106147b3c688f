package reports_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consigna/internal/core/apperror"
	"consigna/internal/domain/ledger/sale"
	"consigna/internal/domain/ledger/shipment"
	"consigna/internal/domain/reports"
	"consigna/internal/testutil"
)

func TestDashboard(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	client := env.Client(t, "Maria", "111")
	ring := env.Plated(t, "Anel", "22.50", 10)   // 45.00
	chain := env.Plated(t, "Corrente", "600", 5) // 1200.00

	_, err := env.Shipments.CreateShipment(ctx, shipment.CreateInput{
		PartyID:  client.ID,
		Kind:     shipment.KindConsignment,
		Lines:    []shipment.LineRequest{{ProductID: ring.ID, Quantity: 4}, {ProductID: chain.ID, Quantity: 1}},
		Operator: testutil.Operator,
	})
	require.NoError(t, err)

	dash, err := env.Reports.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, dash.StockQuantity)
	assert.True(t, decimal.RequireFromString("5070").Equal(dash.StockValue), dash.StockValue.String())
	assert.Equal(t, "5.070,00", dash.StockValueText())
	assert.Equal(t, 5, dash.ConsignedPieces)
	assert.Equal(t, "1.380,00", dash.ConsignedValueText())
}

func TestSalesSummary(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	ring := env.Plated(t, "Anel", "10", 1)
	line := func(price int64) []sale.LineDraft {
		return []sale.LineDraft{{ProductID: ring.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(price)}}
	}

	for _, d := range []sale.Draft{
		{Operator: testutil.Operator, Lines: line(10)},
		{Operator: testutil.Operator, Lines: line(15)},
		{Operator: testutil.Operator, PaymentMethod: sale.PaymentCredit, Lines: line(100)},
	} {
		_, err := env.Sales.RecordSale(ctx, d)
		require.NoError(t, err)
	}
	env.Clock.Advance(48 * time.Hour)
	_, err := env.Sales.RecordSale(ctx, sale.Draft{Operator: testutil.Operator, PaymentMethod: sale.PaymentCash, Lines: line(5)})
	require.NoError(t, err)

	summary, err := env.Reports.SalesSummary(ctx, reports.SalesFilter{To: testutil.Epoch.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "CRE", summary[0].PaymentMethod)
	assert.Equal(t, "PIX", summary[1].PaymentMethod)
	assert.Equal(t, 2, summary[1].Sales)
	assert.True(t, decimal.NewFromInt(25).Equal(summary[1].Total))

	_, err = env.Reports.SalesSummary(ctx, reports.SalesFilter{From: testutil.Epoch, To: testutil.Epoch.Add(-time.Hour)})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestTurnover(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	client := env.Client(t, "Maria", "111")
	ring := env.Plated(t, "Anel", "10", 6)

	created, err := env.Shipments.CreateShipment(ctx, shipment.CreateInput{
		PartyID:  client.ID,
		Kind:     shipment.KindConsignment,
		Lines:    []shipment.LineRequest{{ProductID: ring.ID, Quantity: 4}},
		Operator: testutil.Operator,
	})
	require.NoError(t, err)
	_, err = env.Shipments.Settle(ctx, shipment.SettleInput{
		ShipmentID: created.Shipment.ID,
		Reported:   []shipment.ReportedQuantity{{LineItemID: created.Shipment.Lines[0].ID, Quantity: 1}},
		Outcome:    shipment.OutcomeClose,
		Operator:   testutil.Operator,
	})
	require.NoError(t, err)

	report, err := env.Reports.Turnover(ctx, reports.TurnoverFilter{FromDate: testutil.Epoch, ToDate: testutil.Epoch.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	item := report.Items[0]
	assert.Equal(t, "Anel", item.ProductName)
	assert.Equal(t, 4, item.Reserved)
	assert.Equal(t, 3, item.Released)
	assert.Equal(t, 6, item.Adjusted)
	assert.Equal(t, 5, item.ClosingQty)

	_, err = env.Reports.Turnover(ctx, reports.TurnoverFilter{FromDate: testutil.Epoch})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
