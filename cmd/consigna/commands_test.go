package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consigna/internal/app"
	"consigna/internal/config"
	"consigna/internal/core/apperror"
	"consigna/internal/core/clock"
	"consigna/internal/domain/catalog/party"
	"consigna/internal/domain/catalog/product"
	"consigna/internal/domain/ledger/shipment"
	"consigna/internal/domain/reports"
)

type cli struct {
	t   *testing.T
	ctx context.Context
	a   *app.App
	dir string
	n   int
}

func newCLI(t *testing.T) *cli {
	return &cli{
		t:   t,
		ctx: context.Background(),
		a:   app.NewMemory(clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))),
		dir: t.TempDir(),
	}
}

// file writes body to a fresh JSON file and returns its path.
func (c *cli) file(body string) string {
	c.t.Helper()
	c.n++
	path := filepath.Join(c.dir, fmt.Sprintf("in_%d.json", c.n))
	require.NoError(c.t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func (c *cli) run(name string, args ...string) (any, error) {
	c.t.Helper()
	cmd, ok := commands[name]
	require.True(c.t, ok, name)
	inv := parseArgs(name, args, "caixa")
	require.GreaterOrEqual(c.t, len(inv.args), cmd.args)
	return cmd.run(c.ctx, c.a, inv)
}

func TestCommands_CatalogAndLedgerFlow(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("register-party", c.file(`{"fullName":"Maria Souza","document":"123.456.789-09"}`))
	require.NoError(t, err)
	client := out.(*party.Party)

	out, err = c.run("register-product", c.file(`{"name":"Colar Veneziana","material":"PR","stock":10,"cost":"42.00"}`))
	require.NoError(t, err)
	colar := out.(*product.Product)

	out, err = c.run("find-barcode", colar.Barcode)
	require.NoError(t, err)
	assert.Equal(t, colar.ID, out.(*product.Product).ID)

	_, err = c.run("stock-set", c.file(fmt.Sprintf(`[{"productId":%d,"quantity":6}]`, colar.ID)))
	require.NoError(t, err)

	out, err = c.run("ship", c.file(fmt.Sprintf(`{"partyId":%d,"kind":"CONSIGNMENT","lines":[{"productId":%d,"quantity":1}]}`, client.ID, colar.ID)), c.dir)
	require.NoError(t, err)
	sh := out.(map[string]any)["shipment"].(*shipment.Shipment)

	before, err := c.a.Products.Get(c.ctx, colar.ID)
	require.NoError(t, err)

	other, err := c.run("register-product", c.file(`{"name":"Pulseira Prata","material":"PR","stock":4,"cost":"30.00"}`))
	require.NoError(t, err)
	pulseira := other.(*product.Product)

	_, err = c.run("add-lines", fmt.Sprint(sh.ID), c.file(fmt.Sprintf(`[{"productId":%d,"quantity":3}]`, pulseira.ID)))
	require.NoError(t, err)

	after, err := c.a.Products.Get(c.ctx, pulseira.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Stock)

	out, err = c.run("movements", fmt.Sprint(colar.ID), "10")
	require.NoError(t, err)
	movements := out.([]product.Movement)
	require.NotEmpty(t, movements)
	assert.Equal(t, before.Stock, movements[0].StockAfter)

	_, err = c.run("pricing", fmt.Sprint(colar.ID), c.file(`{"cost":"50.00"}`))
	require.NoError(t, err)

	_, err = c.run("update-party", fmt.Sprint(client.ID), c.file(`{"city":"Campinas"}`))
	require.NoError(t, err)
	updated, err := c.a.Parties.Get(c.ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "Campinas", updated.City)

	_, err = c.run("delete-party", fmt.Sprint(client.ID))
	assert.True(t, apperror.HasCode(err, apperror.CodeReferenced), err)
}

func TestCommands_SalesSummaryAndTurnover(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("register-party", c.file(`{"fullName":"Ana Lima","document":"987.654.321-00"}`))
	require.NoError(t, err)
	client := out.(*party.Party)
	out, err = c.run("register-product", c.file(`{"name":"Anel Prata","material":"PR","stock":5,"cost":"20.00"}`))
	require.NoError(t, err)
	anel := out.(*product.Product)

	_, err = c.run("ship", c.file(fmt.Sprintf(`{"partyId":%d,"kind":"SALE","lines":[{"productId":%d,"quantity":2}]}`, client.ID, anel.ID)), c.dir)
	require.NoError(t, err)

	out, err = c.run("sales-summary", "2025-03-01", "2025-03-10")
	require.NoError(t, err)
	totals := out.([]reports.PaymentTotal)
	require.Len(t, totals, 1)
	assert.Equal(t, 1, totals[0].Sales)

	out, err = c.run("sales-summary", "2025-03-11")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = c.run("turnover", "2025-03-01", "2025-03-31")
	require.NoError(t, err)
	report := out.(*reports.TurnoverReport)
	require.Len(t, report.Items, 1)
	assert.Equal(t, 2, report.Items[0].Reserved)

	_, err = c.run("sales-summary", "10/03/2025")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCommands_MovementsRejectsBadLimit(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("movements", "1", "many")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestPeriod_ToCoversWholeDay(t *testing.T) {
	from, to, err := period("2025-03-01", "2025-03-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 3, 31, 23, 59, 59, 999999999, time.UTC), to)

	from, to, err = period("", "")
	require.NoError(t, err)
	assert.True(t, from.IsZero())
	assert.True(t, to.IsZero())
}

func TestCheckDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Driver = config.DriverMemory
	assert.Error(t, checkDriver(cfg))

	cfg.Storage.Driver = config.DriverPostgres
	assert.NoError(t, checkDriver(cfg))
}

func TestExecute_UsageErrors(t *testing.T) {
	assert.Equal(t, exitUsage, execute(nil))
	assert.Equal(t, exitUsage, execute([]string{"no-such-command"}))
	assert.Equal(t, 0, execute([]string{"help"}))
}
