package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/media-rental/internal/model"
)

// DirectorRepo encapsulates all database queries related to directors.
type DirectorRepo struct {
	db *sql.DB
}

func NewDirectorRepo(db *sql.DB) *DirectorRepo {
	return &DirectorRepo{db: db}
}

var directorDef = listDef{
	columns: `d.id, d.name,
		(SELECT COUNT(*) FROM titles t WHERE t.director_id = d.id) AS title_count`,
	from:        "directors d",
	idColumn:    "d.id",
	search:      []string{"d.name"},
	sorts:       map[string]string{"id": "d.id", "name": "d.name", "title_count": "title_count"},
	defaultSort: "d.name",
}

func scanDirector(s scanner) (model.Director, error) {
	var d model.Director
	err := s.Scan(&d.ID, &d.Name, &d.TitleCount)
	return d, err
}

func (r *DirectorRepo) List(ctx context.Context, q ListQuery) (model.Page[model.Director], error) {
	return listPage(ctx, r.db, q, directorDef, scanDirector)
}

func (r *DirectorRepo) GetByID(ctx context.Context, id uint64) (*model.Director, error) {
	d, err := getOne(ctx, r.db, directorDef, id, ErrDirectorNotFound, scanDirector)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DirectorRepo) Create(ctx context.Context, d *model.Director) error {
	res, err := r.db.ExecContext(ctx, "INSERT INTO directors (name) VALUES (?)", d.Name)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	return nil
}

func (r *DirectorRepo) Update(ctx context.Context, d *model.Director) error {
	return execAffected(ctx, r.db, ErrDirectorNotFound, "UPDATE directors SET name = ? WHERE id = ?", d.Name, d.ID)
}

// Delete removes a director that no longer directs any title.
func (r *DirectorRepo) Delete(ctx context.Context, id uint64) error {
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockRow(ctx, tx, "directors", id, ErrDirectorNotFound); err != nil {
			return err
		}
		n, err := lockedCount(ctx, tx, "SELECT COUNT(*) FROM titles WHERE director_id = ?", id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}
		return execAffected(ctx, tx, ErrDirectorNotFound, "DELETE FROM directors WHERE id = ?", id)
	})
}
