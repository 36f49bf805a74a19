package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/media-rental/internal/model"
)

// ItemRepo encapsulates all database queries related to items, the
// physical copies of titles.
type ItemRepo struct {
	db *sql.DB
}

func NewItemRepo(db *sql.DB) *ItemRepo {
	return &ItemRepo{db: db}
}

const itemStatusExpr = `CASE WHEN EXISTS (
			SELECT 1 FROM rentals r WHERE r.item_id = i.id AND r.actual_return_date IS NULL
		) THEN 'UNAVAILABLE' ELSE 'AVAILABLE' END`

var itemDef = listDef{
	columns: `i.id, i.serial_number, i.title_id, t.name, i.media_type, i.acquisition_date,
		(SELECT COUNT(*) FROM rentals r WHERE r.item_id = i.id) AS rental_count,
		` + itemStatusExpr + ` AS status,
		t.class_id`,
	from:     "items i JOIN titles t ON t.id = i.title_id",
	idColumn: "i.id",
	search:   []string{"i.serial_number", "t.name"},
	sorts: map[string]string{
		"id": "i.id", "serial_number": "i.serial_number", "title": "t.name",
		"media_type": "i.media_type", "acquisition_date": "i.acquisition_date",
		"rental_count": "rental_count", "status": "status",
	},
	defaultSort: "i.id",
}

func scanItem(s scanner) (model.Item, error) {
	var it model.Item
	err := s.Scan(&it.ID, &it.SerialNumber, &it.TitleID, &it.TitleName, &it.MediaType,
		&it.AcquiredOn, &it.RentalCount, &it.Status, &it.ClassID)
	return it, err
}

// List returns one page of items with rental counts and availability.
// Status "available" or "unavailable" filters on availability and a
// TitleID restricts the listing to the copies of one title.
func (r *ItemRepo) List(ctx context.Context, q ListQuery) (model.Page[model.Item], error) {
	def := itemDef
	q = q.Normalize()
	switch q.Status {
	case "available":
		def.where = append(def.where, itemStatusExpr+" = 'AVAILABLE'")
	case "unavailable":
		def.where = append(def.where, itemStatusExpr+" = 'UNAVAILABLE'")
	}
	if q.TitleID != 0 {
		def.where = append(def.where, "i.title_id = ?")
		def.args = append(def.args, q.TitleID)
	}
	return listPage(ctx, r.db, q, def, scanItem)
}

func (r *ItemRepo) GetByID(ctx context.Context, id uint64) (*model.Item, error) {
	it, err := getOne(ctx, r.db, itemDef, id, ErrItemNotFound, scanItem)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// GetForUpdateTx locks the item row and returns the item with its
// availability as seen inside tx.  Concurrent rentals of the same item
// serialise on this lock.
func (r *ItemRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Item, error) {
	if err := lockRow(ctx, tx, "items", id, ErrItemNotFound); err != nil {
		return nil, err
	}
	it, err := getOne(ctx, tx, itemDef, id, ErrItemNotFound, scanItem)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *ItemRepo) Create(ctx context.Context, it *model.Item) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO items (serial_number, title_id, media_type, acquisition_date) VALUES (?, ?, ?, ?)",
		it.SerialNumber, it.TitleID, it.MediaType, it.AcquiredOn)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	it.ID = uint64(id)
	return nil
}

func (r *ItemRepo) Update(ctx context.Context, it *model.Item) error {
	return execAffected(ctx, r.db, ErrItemNotFound,
		"UPDATE items SET serial_number = ?, title_id = ?, media_type = ?, acquisition_date = ? WHERE id = ?",
		it.SerialNumber, it.TitleID, it.MediaType, it.AcquiredOn, it.ID)
}

// Delete removes an item that was never rented.  Rental history keeps
// the item referenced, so any rental blocks deletion.
func (r *ItemRepo) Delete(ctx context.Context, id uint64) error {
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockRow(ctx, tx, "items", id, ErrItemNotFound); err != nil {
			return err
		}
		n, err := lockedCount(ctx, tx, "SELECT COUNT(*) FROM rentals WHERE item_id = ?", id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}
		return execAffected(ctx, tx, ErrItemNotFound, "DELETE FROM items WHERE id = ?", id)
	})
}
