package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DefaultPerPage = 50

type Pagination struct {
	Page    int
	PerPage int
}

func (p Pagination) normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	return p
}

// Page is one page of a filtered listing.
type Page[T any] struct {
	Page     int   `json:"page"`
	PerPage  int   `json:"per_page"`
	Items    []T   `json:"items"`
	NumTotal int64 `json:"num_total"`
}

// listPage runs a paginated SELECT * over table with the given filters and
// ordering, plus a COUNT over the same filters.
func listPage[T any](ctx context.Context, pool *pgxpool.Pool, table, orderBy string, filters Filters, p Pagination) (*Page[T], error) {
	p = p.normalize()
	var args []any
	where := filters.whereClause(&args)

	var total int64
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table+where, args...).Scan(&total); err != nil {
		return nil, wrapDBError(err)
	}

	query := fmt.Sprintf("SELECT * FROM %s%s ORDER BY %s LIMIT %d OFFSET %d",
		table, where, orderBy, p.PerPage, (p.Page-1)*p.PerPage)
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError(err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, wrapDBError(err)
	}
	return &Page[T]{Page: p.Page, PerPage: p.PerPage, Items: items, NumTotal: total}, nil
}

// listAll runs an unpaginated SELECT * over table with the given filters.
func listAll[T any](ctx context.Context, pool *pgxpool.Pool, table, orderBy string, filters Filters) ([]T, error) {
	var args []any
	where := filters.whereClause(&args)
	rows, err := pool.Query(ctx, fmt.Sprintf("SELECT * FROM %s%s ORDER BY %s", table, where, orderBy), args...)
	if err != nil {
		return nil, wrapDBError(err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, wrapDBError(err)
	}
	return items, nil
}

func getOne[T any](ctx context.Context, pool *pgxpool.Pool, query string, args ...any) (*T, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError(err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByNameLax[T])
	if err != nil {
		return nil, wrapDBError(err)
	}
	return item, nil
}
