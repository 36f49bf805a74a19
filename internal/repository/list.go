package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/media-rental/internal/model"
)

// Paging defaults of list endpoints.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ListQuery carries the filter, sort and pagination parameters shared by
// every list endpoint.  Sort names a column key known to the repository;
// unknown keys fall back to the default order.
type ListQuery struct {
	Q        string
	Sort     string
	Order    string
	Page     int
	PageSize int
	// Status filters rentals by lifecycle stage (open, returned, settled).
	Status string
	// MemberID filters dependents by sponsor.
	MemberID uint64
	// TitleID filters items by title.
	TitleID uint64
}

// Normalize clamps paging to sane values.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	q.Q = strings.TrimSpace(q.Q)
	q.Order = strings.ToLower(strings.TrimSpace(q.Order))
	q.Sort = strings.ToLower(strings.TrimSpace(q.Sort))
	q.Status = strings.ToLower(strings.TrimSpace(q.Status))
	return q
}

// listDef describes how one entity is listed.  from may be a plain table
// or a derived table; derived columns are computed with correlated
// subqueries so the count query needs no GROUP BY.
type listDef struct {
	columns     string
	from        string
	idColumn    string
	search      []string
	sorts       map[string]string
	defaultSort string
	where       []string
	args        []any
}

func (s listDef) orderBy(q ListQuery) string {
	col, ok := s.sorts[q.Sort]
	if !ok {
		col = s.defaultSort
	}
	dir := "ASC"
	if q.Order == "desc" {
		dir = "DESC"
	}
	out := col + " " + dir
	if col != s.idColumn {
		out += ", " + s.idColumn + " ASC"
	}
	return out
}

// listPage runs the count and data queries of def and scans each row
// with scan.
func listPage[T any](ctx context.Context, db *sql.DB, q ListQuery, def listDef, scan func(scanner) (T, error)) (model.Page[T], error) {
	q = q.Normalize()
	where := append([]string{}, def.where...)
	args := append([]any{}, def.args...)

	if q.Q != "" && len(def.search) > 0 {
		ors := make([]string, 0, len(def.search))
		for _, col := range def.search {
			ors = append(ors, "LOWER("+col+") LIKE ?")
			args = append(args, "%"+strings.ToLower(q.Q)+"%")
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	page := model.Page[T]{Page: q.Page, PageSize: q.PageSize, Data: []T{}}
	countSQL := "SELECT COUNT(*) FROM " + def.from + " WHERE " + cond
	if err := db.QueryRowContext(ctx, countSQL, args...).Scan(&page.Total); err != nil {
		return page, err
	}

	dataSQL := "SELECT " + def.columns + " FROM " + def.from +
		" WHERE " + cond +
		" ORDER BY " + def.orderBy(q) +
		" LIMIT ? OFFSET ?"
	argsData := append(append([]any{}, args...), q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return page, err
	}
	defer rows.Close()
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return page, err
		}
		page.Data = append(page.Data, v)
	}
	return page, rows.Err()
}

// getOne runs the select of def restricted to one id.
func getOne[T any](ctx context.Context, q queryer, def listDef, id uint64, notFound error, scan func(scanner) (T, error)) (T, error) {
	where := append([]string{def.idColumn + " = ?"}, def.where...)
	args := append([]any{id}, def.args...)
	query := "SELECT " + def.columns + " FROM " + def.from + " WHERE " + strings.Join(where, " AND ")
	v, err := scan(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, notFound
	}
	return v, err
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func uintArgs(ids []uint64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
