package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"consigna/internal/domain"
)

// Builder returns a squirrel builder with PostgreSQL placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// Contains is a LIKE pattern matching term anywhere. % and _ in term match
// themselves, as with strings.Contains in the memory store.
func Contains(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// HasPrefix is a LIKE pattern matching values that start with term.
func HasPrefix(term string) string {
	return likeEscaper.Replace(term) + "%"
}

// Exists runs SELECT EXISTS over q.
func Exists(ctx context.Context, q Querier, sel squirrel.SelectBuilder) (bool, error) {
	inner, args, err := sel.ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}
	var found bool
	if err := q.QueryRow(ctx, "SELECT EXISTS ("+inner+")", args...).Scan(&found); err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return found, nil
}

// SelectPage counts the rows of sel, then scans one ordered page of them.
func SelectPage[T any](ctx context.Context, q Querier, sel squirrel.SelectBuilder, page domain.Page, orderBy ...string) (domain.ListResult[T], error) {
	page = page.Normalize()
	result := domain.ListResult[T]{Limit: page.Limit, Offset: page.Offset}

	countSQL, countArgs, err := Builder().Select("COUNT(*)").FromSelect(sel, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	sql, args, err := sel.OrderBy(orderBy...).
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build list query: %w", err)
	}
	if err := pgxscan.Select(ctx, q, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}
	if result.Items == nil {
		result.Items = []T{}
	}
	return result, nil
}
