package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/media-rental/internal/model"
)

// ActorRepo encapsulates all database queries related to actors.
type ActorRepo struct {
	db *sql.DB
}

// NewActorRepo constructs an ActorRepo with the provided DB handle.
func NewActorRepo(db *sql.DB) *ActorRepo {
	return &ActorRepo{db: db}
}

var actorDef = listDef{
	columns: `a.id, a.name,
		(SELECT COUNT(*) FROM title_actors ta WHERE ta.actor_id = a.id) AS title_count`,
	from:        "actors a",
	idColumn:    "a.id",
	search:      []string{"a.name"},
	sorts:       map[string]string{"id": "a.id", "name": "a.name", "title_count": "title_count"},
	defaultSort: "a.name",
}

func scanActor(s scanner) (model.Actor, error) {
	var a model.Actor
	err := s.Scan(&a.ID, &a.Name, &a.TitleCount)
	return a, err
}

// List returns one page of actors with their title counts.
func (r *ActorRepo) List(ctx context.Context, q ListQuery) (model.Page[model.Actor], error) {
	return listPage(ctx, r.db, q, actorDef, scanActor)
}

// GetByID fetches an actor.  It returns ErrActorNotFound if no row is found.
func (r *ActorRepo) GetByID(ctx context.Context, id uint64) (*model.Actor, error) {
	a, err := getOne(ctx, r.db, actorDef, id, ErrActorNotFound, scanActor)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new actor and populates its ID.
func (r *ActorRepo) Create(ctx context.Context, a *model.Actor) error {
	res, err := r.db.ExecContext(ctx, "INSERT INTO actors (name) VALUES (?)", a.Name)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// Update renames an actor.
func (r *ActorRepo) Update(ctx context.Context, a *model.Actor) error {
	return execAffected(ctx, r.db, ErrActorNotFound, "UPDATE actors SET name = ? WHERE id = ?", a.Name, a.ID)
}

// Delete removes an actor.  It returns ErrConflict while any title still
// credits the actor.
func (r *ActorRepo) Delete(ctx context.Context, id uint64) error {
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockRow(ctx, tx, "actors", id, ErrActorNotFound); err != nil {
			return err
		}
		n, err := lockedCount(ctx, tx, "SELECT COUNT(*) FROM title_actors WHERE actor_id = ?", id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}
		return execAffected(ctx, tx, ErrActorNotFound, "DELETE FROM actors WHERE id = ?", id)
	})
}

// Missing reports which of ids do not exist.  Titles use it to reject
// unknown actor ids before linking them.
func (r *ActorRepo) Missing(ctx context.Context, ids []uint64) ([]uint64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := "SELECT id FROM actors WHERE id IN (" + placeholders(len(ids)) + ")"
	rows, err := r.db.QueryContext(ctx, query, uintArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make(map[uint64]bool, len(ids))
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var missing []uint64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
