package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/media-rental/internal/calendar"
	"github.com/iliyamo/media-rental/internal/model"
	"github.com/iliyamo/media-rental/internal/rental"
)

// RentalRepo encapsulates all database queries related to rentals.  The
// lifecycle stage is never stored; it is derived from the actual return
// date and the paid flag when rows are read.
type RentalRepo struct {
	db *sql.DB
}

func NewRentalRepo(db *sql.DB) *RentalRepo {
	return &RentalRepo{db: db}
}

// DB exposes the underlying database handle so services can open
// transactions spanning several repositories.
func (r *RentalRepo) DB() *sql.DB { return r.db }

const rentalBaseColumns = `r.id, r.client_kind, r.client_id, r.item_id, r.rental_date,
		r.expected_return_date, r.actual_return_date, r.paid, r.amount_charged,
		r.late_fee, r.is_late, r.days_late`

var rentalDef = listDef{
	columns: rentalBaseColumns + `,
		COALESCE(CASE r.client_kind WHEN 'MEMBER' THEN m.name ELSE d.name END, ''),
		t.name, i.serial_number`,
	from: `rentals r
		JOIN items i  ON i.id = r.item_id
		JOIN titles t ON t.id = i.title_id
		LEFT JOIN members m    ON r.client_kind = 'MEMBER'    AND m.id = r.client_id
		LEFT JOIN dependents d ON r.client_kind = 'DEPENDENT' AND d.id = r.client_id`,
	idColumn: "r.id",
	search:   []string{"m.name", "d.name", "t.name", "i.serial_number"},
	sorts: map[string]string{
		"id": "r.id", "rental_date": "r.rental_date", "expected_return_date": "r.expected_return_date",
		"actual_return_date": "r.actual_return_date", "title": "t.name", "paid": "r.paid",
	},
	defaultSort: "r.rental_date",
}

// Conditions selecting each lifecycle stage.
var rentalStatusWhere = map[string]string{
	"open":     "r.actual_return_date IS NULL",
	"returned": "r.actual_return_date IS NOT NULL AND NOT r.paid",
	"settled":  "r.actual_return_date IS NOT NULL AND r.paid",
}

type rentalRow struct {
	model.Rental
	actual   calendar.NullDate
	lateFee  decimal.NullDecimal
	isLate   sql.NullBool
	daysLate sql.NullInt64
}

func (row *rentalRow) targets() []any {
	r := &row.Rental
	return []any{&r.ID, &r.ClientKind, &r.ClientID, &r.ItemID, &r.RentalDate,
		&r.ExpectedReturn, &row.actual, &r.Paid, &r.AmountCharged,
		&row.lateFee, &row.isLate, &row.daysLate}
}

func (row *rentalRow) rental() *model.Rental {
	r := row.Rental
	r.ActualReturn = row.actual.Ptr()
	if row.lateFee.Valid {
		fee := row.lateFee.Decimal
		r.LateFee = &fee
	}
	if row.isLate.Valid {
		late := row.isLate.Bool
		r.IsLate = &late
	}
	if row.daysLate.Valid {
		days := int(row.daysLate.Int64)
		r.DaysLate = &days
	}
	return rental.Annotate(&r)
}

func scanRental(s scanner) (*model.Rental, error) {
	var row rentalRow
	dest := append(row.targets(), &row.ClientName, &row.TitleName, &row.ItemSerial)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return row.rental(), nil
}

// List returns one page of rentals joined with client, title and item
// serial.  Status filters on the lifecycle stage; unknown values are
// ignored.
func (r *RentalRepo) List(ctx context.Context, q ListQuery) (model.Page[*model.Rental], error) {
	def := rentalDef
	if cond, ok := rentalStatusWhere[q.Normalize().Status]; ok {
		def.where = []string{cond}
	}
	return listPage(ctx, r.db, q, def, scanRental)
}

// GetByID returns a rental with its joined display fields.
func (r *RentalRepo) GetByID(ctx context.Context, id uint64) (*model.Rental, error) {
	return getOne(ctx, r.db, rentalDef, id, ErrRentalNotFound, scanRental)
}

// GetForUpdateTx locks and returns the rental row without joins.
func (r *RentalRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Rental, error) {
	var row rentalRow
	err := tx.QueryRowContext(ctx,
		"SELECT "+rentalBaseColumns+" FROM rentals r WHERE r.id = ? FOR UPDATE", id).
		Scan(row.targets()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRentalNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.rental(), nil
}

// CreateTx inserts a rental and populates its ID.
func (r *RentalRepo) CreateTx(ctx context.Context, tx *sql.Tx, rt *model.Rental) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO rentals (client_kind, client_id, item_id, rental_date, expected_return_date,
		 actual_return_date, paid, amount_charged, late_fee, is_late, days_late)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rt.ClientKind, rt.ClientID, rt.ItemID, rt.RentalDate, rt.ExpectedReturn,
		calendar.NullFrom(rt.ActualReturn), rt.Paid, rt.AmountCharged,
		nullDecimal(rt.LateFee), nullBool(rt.IsLate), nullInt(rt.DaysLate))
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rt.ID = uint64(id)
	return nil
}

// UpdateTx writes back the mutable fields of a rental.
func (r *RentalRepo) UpdateTx(ctx context.Context, tx *sql.Tx, rt *model.Rental) error {
	return execAffected(ctx, tx, ErrRentalNotFound,
		`UPDATE rentals SET rental_date = ?, expected_return_date = ?, actual_return_date = ?,
		 paid = ?, late_fee = ?, is_late = ?, days_late = ? WHERE id = ?`,
		rt.RentalDate, rt.ExpectedReturn, calendar.NullFrom(rt.ActualReturn), rt.Paid,
		nullDecimal(rt.LateFee), nullBool(rt.IsLate), nullInt(rt.DaysLate), rt.ID)
}

// DeleteTx removes a rental row.
func (r *RentalRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	return execAffected(ctx, tx, ErrRentalNotFound, "DELETE FROM rentals WHERE id = ?", id)
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}
