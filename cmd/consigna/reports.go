package main

import (
	"context"
	"fmt"
	"time"

	"consigna/internal/app"
	"consigna/internal/core/apperror"
	"consigna/internal/domain/reports"
)

const dayLayout = "2006-01-02"

// period parses the from/to days. to covers its whole day; an empty
// argument leaves that end open.
func period(from, to string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if from != "" {
		if start, err = time.Parse(dayLayout, from); err != nil {
			return start, end, apperror.NewValidation(fmt.Sprintf("invalid date %q, want YYYY-MM-DD", from)).WithDetail(apperror.DetailField, "from")
		}
	}
	if to != "" {
		if end, err = time.Parse(dayLayout, to); err != nil {
			return start, end, apperror.NewValidation(fmt.Sprintf("invalid date %q, want YYYY-MM-DD", to)).WithDetail(apperror.DetailField, "to")
		}
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return start, end, nil
}

func runSalesSummary(ctx context.Context, a *app.App, inv invocation) (any, error) {
	from, to, err := period(inv.arg(0), inv.arg(1))
	if err != nil {
		return nil, err
	}
	return a.Reports.SalesSummary(ctx, reports.SalesFilter{From: from, To: to})
}

func runTurnover(ctx context.Context, a *app.App, inv invocation) (any, error) {
	from, to, err := period(inv.args[0], inv.args[1])
	if err != nil {
		return nil, err
	}
	return a.Reports.Turnover(ctx, reports.TurnoverFilter{FromDate: from, ToDate: to})
}
