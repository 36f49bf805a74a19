package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/media-rental/internal/model"
)

// TitleRepo encapsulates all database queries related to titles and
// their actor credits.
type TitleRepo struct {
	db *sql.DB
}

func NewTitleRepo(db *sql.DB) *TitleRepo {
	return &TitleRepo{db: db}
}

var titleDef = listDef{
	columns: `t.id, t.name, t.original_name, t.year, t.synopsis, t.category,
		t.director_id, t.class_id, d.name, c.name,
		(SELECT COUNT(*) FROM items i WHERE i.title_id = t.id) AS item_count,
		(SELECT COUNT(*) FROM items i WHERE i.title_id = t.id
			AND NOT EXISTS (SELECT 1 FROM rentals r WHERE r.item_id = i.id AND r.actual_return_date IS NULL)) AS available_items`,
	from: `titles t
		JOIN directors d ON d.id = t.director_id
		JOIN classes c   ON c.id = t.class_id`,
	idColumn: "t.id",
	search:   []string{"t.name", "t.original_name", "t.category"},
	sorts: map[string]string{
		"id": "t.id", "name": "t.name", "year": "t.year", "category": "t.category",
		"director": "d.name", "class": "c.name", "available_items": "available_items",
	},
	defaultSort: "t.name",
}

func scanTitle(s scanner) (model.Title, error) {
	var t model.Title
	err := s.Scan(&t.ID, &t.Name, &t.OriginalName, &t.Year, &t.Synopsis, &t.Category,
		&t.DirectorID, &t.ClassID, &t.DirectorName, &t.ClassName,
		&t.ItemCount, &t.AvailableItems)
	return t, err
}

// List returns one page of titles with available item counts and actor ids.
func (r *TitleRepo) List(ctx context.Context, q ListQuery) (model.Page[model.Title], error) {
	page, err := listPage(ctx, r.db, q, titleDef, scanTitle)
	if err != nil {
		return page, err
	}
	ids := make([]uint64, len(page.Data))
	for i, t := range page.Data {
		ids[i] = t.ID
	}
	cast, err := r.actorIDs(ctx, ids)
	if err != nil {
		return page, err
	}
	for i := range page.Data {
		page.Data[i].ActorIDs = cast[page.Data[i].ID]
	}
	return page, nil
}

func (r *TitleRepo) GetByID(ctx context.Context, id uint64) (*model.Title, error) {
	t, err := getOne(ctx, r.db, titleDef, id, ErrTitleNotFound, scanTitle)
	if err != nil {
		return nil, err
	}
	cast, err := r.actorIDs(ctx, []uint64{id})
	if err != nil {
		return nil, err
	}
	t.ActorIDs = cast[id]
	return &t, nil
}

// actorIDs returns the credited actor ids of each title, ascending.
// Titles without actors map to an empty, non-nil slice.
func (r *TitleRepo) actorIDs(ctx context.Context, titleIDs []uint64) (map[uint64][]uint64, error) {
	out := make(map[uint64][]uint64, len(titleIDs))
	if len(titleIDs) == 0 {
		return out, nil
	}
	for _, id := range titleIDs {
		out[id] = []uint64{}
	}
	query := "SELECT title_id, actor_id FROM title_actors WHERE title_id IN (" +
		placeholders(len(titleIDs)) + ") ORDER BY title_id, actor_id"
	rows, err := r.db.QueryContext(ctx, query, uintArgs(titleIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var titleID, actorID uint64
		if err := rows.Scan(&titleID, &actorID); err != nil {
			return nil, err
		}
		out[titleID] = append(out[titleID], actorID)
	}
	return out, rows.Err()
}

// Create inserts a title and its actor credits in one transaction.
func (r *TitleRepo) Create(ctx context.Context, t *model.Title) error {
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO titles (name, original_name, year, synopsis, category, director_id, class_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.Name, t.OriginalName, t.Year, t.Synopsis, t.Category, t.DirectorID, t.ClassID)
		if err != nil {
			return translate(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		t.ID = uint64(id)
		return r.linkActorsTx(ctx, tx, t.ID, t.ActorIDs)
	})
}

// Update rewrites a title and replaces its actor credits.
func (r *TitleRepo) Update(ctx context.Context, t *model.Title) error {
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := execAffected(ctx, tx, ErrTitleNotFound,
			`UPDATE titles SET name = ?, original_name = ?, year = ?, synopsis = ?, category = ?,
			 director_id = ?, class_id = ? WHERE id = ?`,
			t.Name, t.OriginalName, t.Year, t.Synopsis, t.Category, t.DirectorID, t.ClassID, t.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM title_actors WHERE title_id = ?", t.ID); err != nil {
			return err
		}
		return r.linkActorsTx(ctx, tx, t.ID, t.ActorIDs)
	})
}

func (r *TitleRepo) linkActorsTx(ctx context.Context, tx *sql.Tx, titleID uint64, actorIDs []uint64) error {
	seen := make(map[uint64]bool, len(actorIDs))
	for _, actorID := range actorIDs {
		if seen[actorID] {
			continue
		}
		seen[actorID] = true
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO title_actors (title_id, actor_id) VALUES (?, ?)", titleID, actorID); err != nil {
			return translate(err)
		}
	}
	return nil
}

// Delete removes a title that owns no items.  A title with available
// copies is always refused; copies that are rented out still reference
// the title, so any remaining item blocks deletion.
func (r *TitleRepo) Delete(ctx context.Context, id uint64) error {
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockRow(ctx, tx, "titles", id, ErrTitleNotFound); err != nil {
			return err
		}
		n, err := lockedCount(ctx, tx, "SELECT COUNT(*) FROM items WHERE title_id = ?", id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM title_actors WHERE title_id = ?", id); err != nil {
			return err
		}
		return execAffected(ctx, tx, ErrTitleNotFound, "DELETE FROM titles WHERE id = ?", id)
	})
}
