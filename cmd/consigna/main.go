// Package main is the consigna command-line front end.
// Usage: consigna ship shipment.json --operator caixa
//        consigna settle settlement.json --operator caixa
//        consigna receipt 42 ./out
//        consigna dashboard
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"consigna/internal/app"
	"consigna/internal/config"
	"consigna/internal/core/apperror"
	appctx "consigna/internal/core/context"
	"consigna/internal/core/types"
	"consigna/internal/domain/catalog/party"
	"consigna/internal/domain/labels"
	"consigna/internal/domain/ledger/shipment"
	"consigna/internal/domain/receipt"
	"consigna/internal/infrastructure/storage/postgres"
	"consigna/pkg/logger"
)

// command runs one subcommand. Positional arguments exclude the command name.
type command struct {
	run          func(ctx context.Context, a *app.App, inv invocation) (any, error)
	args         int
	needOperator bool
}

// invocation is a parsed command line.
type invocation struct {
	name     string
	args     []string
	operator string
}

var commands = map[string]command{
	"migrate":          {run: runMigrate},
	"dashboard":        {run: runDashboard},
	"ship":             {run: runShip, args: 1, needOperator: true},
	"settle":           {run: runSettle, args: 1, needOperator: true},
	"receipt":          {run: runReceipt, args: 1},
	"balance":          {run: runBalance, args: 1},
	"totals":           {run: runTotals, args: 1},
	"labels":           {run: runLabels, args: 1},
	"search-parties":   {run: runSearchParties},
	"search-shipments": {run: runSearchShipments},
	"add-lines":        {run: runAddLines, args: 2, needOperator: true},

	"register-party":   {run: runRegisterParty, args: 1, needOperator: true},
	"update-party":     {run: runUpdateParty, args: 2, needOperator: true},
	"delete-party":     {run: runDeleteParty, args: 1, needOperator: true},
	"register-product": {run: runRegisterProduct, args: 1, needOperator: true},
	"pricing":          {run: runPricing, args: 2, needOperator: true},
	"delete-product":   {run: runDeleteProduct, args: 1, needOperator: true},
	"find-barcode":     {run: runFindBarcode, args: 1},
	"stock-set":        {run: runStockSet, args: 1, needOperator: true},
	"movements":        {run: runMovements, args: 1},

	"sales-summary": {run: runSalesSummary},
	"turnover":      {run: runTurnover, args: 2},
}

// exitUsage is returned for a bad command line or configuration. Failures
// of the command itself exit with apperror.ExitStatus.
const exitUsage = 2

func main() {
	os.Exit(execute(os.Args[1:]))
}

// execute runs one command line and returns the exit status. Returning
// instead of exiting lets the deferred logger flush run.
func execute(argv []string) int {
	if len(argv) < 1 {
		printUsage()
		return exitUsage
	}
	switch argv[0] {
	case "help", "--help", "-h":
		printUsage()
		return 0
	}

	cmd, ok := commands[argv[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", argv[0])
		printUsage()
		return exitUsage
	}

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitUsage
	}
	if err := checkDriver(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	inv := parseArgs(argv[0], argv[1:], cfg.CLI.Operator)
	if len(inv.args) < cmd.args {
		fmt.Fprintf(os.Stderr, "Error: %s needs %d argument(s)\n", inv.name, cmd.args)
		printUsage()
		return exitUsage
	}
	if cmd.needOperator && inv.operator == "" {
		fmt.Fprintln(os.Stderr, "Error: --operator (or CLI_OPERATOR) is required")
		return exitUsage
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Env.Log.Level,
		Development: cfg.Env.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return apperror.ExitInternal
	}
	defer func() { _ = log.Sync() }()

	ctx := appctx.WithRun(context.Background(), appctx.NewRun(inv.name))
	ctx = logger.WithLogger(ctx, log.WithComponent("cli"))

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Errorw("failed to start", "error", err)
		return apperror.ExitInternal
	}
	defer a.Close()

	out, err := cmd.run(ctx, a, inv)
	if err != nil {
		printError(err)
		return apperror.ExitStatus(err)
	}
	printJSON(out)
	return 0
}

// checkDriver refuses the memory store: each run is a separate process, so
// nothing registered by one command would exist for the next. cmd/seed and
// tests use it in process.
func checkDriver(cfg *config.Config) error {
	if cfg.Storage.Driver == config.DriverMemory {
		return fmt.Errorf("storage driver %q keeps no data between runs; use %q", config.DriverMemory, config.DriverPostgres)
	}
	return nil
}

func printUsage() {
	fmt.Println(`consigna: consignment settlement and inventory

Usage:
  consigna <command> [arguments] [--operator <name>]

Commands:
  migrate                          Apply the embedded database schema
  dashboard                        Stock and consignment summary
  ship <file.json>                 Create a sale or consignment shipment
  settle <file.json>               Settle a consignment shipment
  receipt <shipment-id> [dir]      Reprint the receipt of a shipment
  balance <party-id>               Value still consigned to a party
  totals <shipment-id>             Sold, returned and consigned value of a shipment
  labels <file.json> [dir]         Print label sheets
  search-parties [term]            Search parties by name
  search-shipments [term]          Search shipments by party or id
  add-lines <shipment-id> <file.json>  Add products to an open consignment

  register-party <file.json>       Register a client or supplier
  update-party <party-id> <file.json>  Change contact data
  delete-party <party-id>          Delete an unreferenced party
  register-product <file.json>     Register a product
  pricing <product-id> <file.json> Change cost, margin or gold price
  delete-product <product-id>      Delete an unreferenced product
  find-barcode <code>              Look a product up by barcode
  stock-set <file.json>            Overwrite stock counts
  movements <product-id> [limit]   Stock journal of a product, newest first

  sales-summary [from] [to]        Sales per payment method (dates as YYYY-MM-DD)
  turnover <from> <to>             Stock turnover per product

Configuration:
  config/config.yaml, overridden by environment variables such as
  POSTGRES_DSN, REDIS_ENABLED and CLI_OPERATOR. The memory storage driver
  is for cmd/seed and tests only.
  CONSIGNA_ENV selects another config/<env>.yaml.`)
}

func parseArgs(name string, raw []string, operator string) invocation {
	inv := invocation{name: name, operator: operator}
	for i := 0; i < len(raw); i++ {
		switch {
		case raw[i] == "--operator" && i+1 < len(raw):
			inv.operator = raw[i+1]
			i++
		case strings.HasPrefix(raw[i], "--operator="):
			inv.operator = strings.TrimPrefix(raw[i], "--operator=")
		default:
			inv.args = append(inv.args, raw[i])
		}
	}
	inv.operator = strings.TrimSpace(inv.operator)
	return inv
}

// arg returns the n-th positional argument, or "" when absent.
func (inv invocation) arg(n int) string {
	if n < len(inv.args) {
		return inv.args[n]
	}
	return ""
}

func (inv invocation) id(i int) (int64, error) {
	v, err := strconv.ParseInt(inv.args[i], 10, 64)
	if err != nil || v <= 0 {
		return 0, apperror.NewValidation(fmt.Sprintf("invalid id %q", inv.args[i]))
	}
	return v, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperror.NewValidation(fmt.Sprintf("malformed %s: %v", filepath.Base(path), err))
	}
	return nil
}

// writeDocument stores a rendered document under dir and returns its path.
func writeDocument(dir, filename string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// receiptView is the printed half of a receipt outcome.
type receiptView struct {
	File    string `json:"file,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func saveReceipt(ctx context.Context, dir string, o receipt.Outcome) receiptView {
	if !o.OK() {
		logger.Warn(ctx, "receipt not produced", "error", o.Warning)
		return receiptView{Warning: o.Warning.Error()}
	}
	if o.Rendered == nil {
		return receiptView{}
	}
	path, err := writeDocument(dir, o.Rendered.Filename, o.Rendered.Bytes)
	if err != nil {
		return receiptView{Warning: err.Error()}
	}
	return receiptView{File: path}
}

func runMigrate(ctx context.Context, a *app.App, _ invocation) (any, error) {
	if a.TxManager == nil {
		return nil, fmt.Errorf("migrate needs the postgres storage driver")
	}
	applied, err := postgres.Migrate(ctx, a.TxManager)
	if err != nil {
		return nil, err
	}
	return map[string]any{"applied": applied}, nil
}

func runDashboard(ctx context.Context, a *app.App, _ invocation) (any, error) {
	d, err := a.Reports.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"stockValue":      d.StockValueText(),
		"stockQuantity":   d.StockQuantity,
		"consignedPieces": d.ConsignedPieces,
		"consignedValue":  d.ConsignedValueText(),
	}, nil
}

func runShip(ctx context.Context, a *app.App, inv invocation) (any, error) {
	var in shipment.CreateInput
	if err := readJSON(inv.args[0], &in); err != nil {
		return nil, err
	}
	in.Operator = inv.operator

	res, err := a.Shipments.CreateShipment(ctx, in)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"shipment": res.Shipment,
		"sale":     res.Sale,
		"receipt":  saveReceipt(ctx, inv.arg(1), res.Receipt),
	}, nil
}

func runSettle(ctx context.Context, a *app.App, inv invocation) (any, error) {
	var in shipment.SettleInput
	if err := readJSON(inv.args[0], &in); err != nil {
		return nil, err
	}
	in.Operator = inv.operator

	res, err := a.Shipments.Settle(ctx, in)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"shipment":  res.Shipment,
		"sale":      res.Sale,
		"statement": res.Statement,
		"receipt":   saveReceipt(ctx, inv.arg(1), res.Receipt),
	}, nil
}

func runReceipt(ctx context.Context, a *app.App, inv invocation) (any, error) {
	shipmentID, err := inv.id(0)
	if err != nil {
		return nil, err
	}
	o, err := a.Shipments.Receipt(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	return saveReceipt(ctx, inv.arg(1), o), nil
}

func runBalance(ctx context.Context, a *app.App, inv invocation) (any, error) {
	partyID, err := inv.id(0)
	if err != nil {
		return nil, err
	}
	balance, err := a.Shipments.OutstandingBalance(ctx, partyID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"partyId": partyID, "balance": types.FormatBRL(balance)}, nil
}

func runTotals(ctx context.Context, a *app.App, inv invocation) (any, error) {
	shipmentID, err := inv.id(0)
	if err != nil {
		return nil, err
	}
	t, err := a.Shipments.Totals(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"shipmentId":     shipmentID,
		"sold":           types.FormatBRL(t.Sold),
		"returned":       types.FormatBRL(t.Returned),
		"stillConsigned": types.FormatBRL(t.StillConsigned),
	}, nil
}

func runLabels(ctx context.Context, a *app.App, inv invocation) (any, error) {
	var reqs []labels.PrintRequest
	if err := readJSON(inv.args[0], &reqs); err != nil {
		return nil, err
	}
	sheet, err := a.Labels.Print(ctx, reqs)
	if err != nil {
		return nil, err
	}
	path, err := writeDocument(inv.arg(1), sheet.Filename, sheet.Bytes)
	if err != nil {
		return nil, err
	}
	return map[string]any{"file": path}, nil
}

func runSearchParties(ctx context.Context, a *app.App, inv invocation) (any, error) {
	return a.Parties.Search(ctx, party.Filter{Name: inv.arg(0)})
}

func runSearchShipments(ctx context.Context, a *app.App, inv invocation) (any, error) {
	return a.Shipments.Search(ctx, shipment.Filter{Term: inv.arg(0)})
}

func runAddLines(ctx context.Context, a *app.App, inv invocation) (any, error) {
	shipmentID, err := inv.id(0)
	if err != nil {
		return nil, err
	}
	var lines []shipment.LineRequest
	if err := readJSON(inv.args[1], &lines); err != nil {
		return nil, err
	}
	return a.Shipments.AddLines(ctx, shipmentID, lines, inv.operator)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
	}
}

func printError(err error) {
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		appErr = apperror.NewInternal(err)
	}
	enc := json.NewEncoder(os.Stderr)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{"error": appErr})
}
