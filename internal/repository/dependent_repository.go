package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/media-rental/internal/model"
)

// DependentRepo encapsulates all database queries related to dependents.
type DependentRepo struct {
	db *sql.DB
}

func NewDependentRepo(db *sql.DB) *DependentRepo {
	return &DependentRepo{db: db}
}

var dependentDef = listDef{
	columns: `d.id, d.name, d.birth_date, d.sex, d.active, d.registration_number, d.member_id`,
	from:     "dependents d",
	idColumn: "d.id",
	search:   []string{"d.name", "d.registration_number"},
	sorts: map[string]string{
		"id": "d.id", "name": "d.name", "birth_date": "d.birth_date",
		"active": "d.active", "member_id": "d.member_id",
	},
	defaultSort: "d.name",
}

func scanDependent(s scanner) (*model.Dependent, error) {
	d := new(model.Dependent)
	err := s.Scan(&d.ID, &d.Name, &d.BirthDate, &d.Sex, &d.Active, &d.RegistrationNumber, &d.MemberID)
	return d, err
}

// List returns one page of dependents, optionally of one member.
func (r *DependentRepo) List(ctx context.Context, q ListQuery) (model.Page[*model.Dependent], error) {
	def := dependentDef
	if q.MemberID != 0 {
		def.where = []string{"d.member_id = ?"}
		def.args = []any{q.MemberID}
	}
	return listPage(ctx, r.db, q, def, scanDependent)
}

func (r *DependentRepo) GetByID(ctx context.Context, id uint64) (*model.Dependent, error) {
	return getOne(ctx, r.db, dependentDef, id, ErrDependentNotFound, scanDependent)
}

// GetForUpdateTx locks the dependent row inside tx.
func (r *DependentRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Dependent, error) {
	if err := lockRow(ctx, tx, "dependents", id, ErrDependentNotFound); err != nil {
		return nil, err
	}
	return getOne(ctx, tx, dependentDef, id, ErrDependentNotFound, scanDependent)
}

// ListByMemberForUpdateTx locks and returns every dependent of a member,
// ordered by id.
func (r *DependentRepo) ListByMemberForUpdateTx(ctx context.Context, tx *sql.Tx, memberID uint64) ([]*model.Dependent, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT "+dependentDef.columns+" FROM dependents d WHERE d.member_id = ? ORDER BY d.id FOR UPDATE",
		memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Dependent
	for rows.Next() {
		d, err := scanDependent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DependentRepo) Create(ctx context.Context, d *model.Dependent) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO dependents (member_id, name, birth_date, sex, active, registration_number)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.MemberID, d.Name, d.BirthDate, d.Sex, d.Active, d.RegistrationNumber)
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

// Update rewrites a dependent.  Unlike members, a dependent's own active
// flag may be edited directly.
func (r *DependentRepo) Update(ctx context.Context, d *model.Dependent) error {
	return execAffected(ctx, r.db, ErrDependentNotFound,
		`UPDATE dependents SET member_id = ?, name = ?, birth_date = ?, sex = ?, active = ?,
		 registration_number = ? WHERE id = ?`,
		d.MemberID, d.Name, d.BirthDate, d.Sex, d.Active, d.RegistrationNumber, d.ID)
}

// SetActiveTx stores the active flag of a dependent.
func (r *DependentRepo) SetActiveTx(ctx context.Context, tx *sql.Tx, id uint64, active bool) error {
	return execAffected(ctx, tx, ErrDependentNotFound, "UPDATE dependents SET active = ? WHERE id = ?", active, id)
}

// Delete removes a dependent without rental history.
func (r *DependentRepo) Delete(ctx context.Context, id uint64) error {
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockRow(ctx, tx, "dependents", id, ErrDependentNotFound); err != nil {
			return err
		}
		n, err := lockedCount(ctx, tx,
			"SELECT COUNT(*) FROM rentals WHERE client_kind = 'DEPENDENT' AND client_id = ?", id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}
		return execAffected(ctx, tx, ErrDependentNotFound, "DELETE FROM dependents WHERE id = ?", id)
	})
}
