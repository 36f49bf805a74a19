package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/media-rental/internal/model"
)

// ClassRepo encapsulates all database queries related to classes.
type ClassRepo struct {
	db *sql.DB
}

func NewClassRepo(db *sql.DB) *ClassRepo {
	return &ClassRepo{db: db}
}

var classDef = listDef{
	columns: `c.id, c.name, c.value, c.return_days,
		(SELECT COUNT(*) FROM titles t WHERE t.class_id = c.id) AS title_count`,
	from:     "classes c",
	idColumn: "c.id",
	search:   []string{"c.name"},
	sorts: map[string]string{
		"id": "c.id", "name": "c.name", "value": "c.value",
		"return_days": "c.return_days", "title_count": "title_count",
	},
	defaultSort: "c.name",
}

func scanClass(s scanner) (model.Class, error) {
	var c model.Class
	err := s.Scan(&c.ID, &c.Name, &c.Value, &c.ReturnDays, &c.TitleCount)
	return c, err
}

func (r *ClassRepo) List(ctx context.Context, q ListQuery) (model.Page[model.Class], error) {
	return listPage(ctx, r.db, q, classDef, scanClass)
}

func (r *ClassRepo) GetByID(ctx context.Context, id uint64) (*model.Class, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

// GetByIDTx reads a class through q, which may be a transaction.
func (r *ClassRepo) GetByIDTx(ctx context.Context, q queryer, id uint64) (*model.Class, error) {
	c, err := getOne(ctx, q, classDef, id, ErrClassNotFound, scanClass)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClassRepo) Create(ctx context.Context, c *model.Class) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO classes (name, value, return_days) VALUES (?, ?, ?)",
		c.Name, c.Value, c.ReturnDays)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// Update rewrites a class.  Open rentals keep the amount charged when
// they were created.
func (r *ClassRepo) Update(ctx context.Context, c *model.Class) error {
	return execAffected(ctx, r.db, ErrClassNotFound,
		"UPDATE classes SET name = ?, value = ?, return_days = ? WHERE id = ?",
		c.Name, c.Value, c.ReturnDays, c.ID)
}

// Delete removes a class no title uses.
func (r *ClassRepo) Delete(ctx context.Context, id uint64) error {
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockRow(ctx, tx, "classes", id, ErrClassNotFound); err != nil {
			return err
		}
		n, err := lockedCount(ctx, tx, "SELECT COUNT(*) FROM titles WHERE class_id = ?", id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}
		return execAffected(ctx, tx, ErrClassNotFound, "DELETE FROM classes WHERE id = ?", id)
	})
}
