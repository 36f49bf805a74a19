package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/media-rental/internal/model"
)

// MemberRepo encapsulates all database queries related to members.
type MemberRepo struct {
	db *sql.DB
}

func NewMemberRepo(db *sql.DB) *MemberRepo {
	return &MemberRepo{db: db}
}

var memberDef = listDef{
	columns: `m.id, m.name, m.birth_date, m.sex, m.active, m.registration_number,
		m.cpf, m.address, m.phone,
		(SELECT COUNT(*) FROM dependents d WHERE d.member_id = m.id AND d.active) AS active_dependents`,
	from:     "members m",
	idColumn: "m.id",
	search:   []string{"m.name", "m.cpf", "m.registration_number"},
	sorts: map[string]string{
		"id": "m.id", "name": "m.name", "birth_date": "m.birth_date",
		"active": "m.active", "registration_number": "m.registration_number",
		"active_dependents": "active_dependents",
	},
	defaultSort: "m.name",
}

func scanMember(s scanner) (*model.Member, error) {
	m := new(model.Member)
	err := s.Scan(&m.ID, &m.Name, &m.BirthDate, &m.Sex, &m.Active, &m.RegistrationNumber,
		&m.CPF, &m.Address, &m.Phone, &m.ActiveDependents)
	return m, err
}

func (r *MemberRepo) List(ctx context.Context, q ListQuery) (model.Page[*model.Member], error) {
	return listPage(ctx, r.db, q, memberDef, scanMember)
}

func (r *MemberRepo) GetByID(ctx context.Context, id uint64) (*model.Member, error) {
	return getOne(ctx, r.db, memberDef, id, ErrMemberNotFound, scanMember)
}

// GetForUpdateTx locks the member row inside tx.
func (r *MemberRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Member, error) {
	if err := lockRow(ctx, tx, "members", id, ErrMemberNotFound); err != nil {
		return nil, err
	}
	return getOne(ctx, tx, memberDef, id, ErrMemberNotFound, scanMember)
}

func (r *MemberRepo) Create(ctx context.Context, m *model.Member) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO members (name, birth_date, sex, active, registration_number, cpf, address, phone)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.BirthDate, m.Sex, m.Active, m.RegistrationNumber, m.CPF, m.Address, m.Phone)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// Update rewrites the registration data of a member.  The active flag is
// left alone; it only changes through deactivate and reactivate so the
// dependents cascade cannot be bypassed.
func (r *MemberRepo) Update(ctx context.Context, m *model.Member) error {
	return execAffected(ctx, r.db, ErrMemberNotFound,
		`UPDATE members SET name = ?, birth_date = ?, sex = ?, registration_number = ?,
		 cpf = ?, address = ?, phone = ? WHERE id = ?`,
		m.Name, m.BirthDate, m.Sex, m.RegistrationNumber, m.CPF, m.Address, m.Phone, m.ID)
}

// SetActiveTx stores the active flag of a member.
func (r *MemberRepo) SetActiveTx(ctx context.Context, tx *sql.Tx, id uint64, active bool) error {
	return execAffected(ctx, tx, ErrMemberNotFound, "UPDATE members SET active = ? WHERE id = ?", active, id)
}

// Delete removes a member without dependents or rental history.
func (r *MemberRepo) Delete(ctx context.Context, id uint64) error {
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockRow(ctx, tx, "members", id, ErrMemberNotFound); err != nil {
			return err
		}
		n, err := lockedCount(ctx, tx,
			`SELECT (SELECT COUNT(*) FROM dependents WHERE member_id = ?)
			      + (SELECT COUNT(*) FROM rentals WHERE client_kind = 'MEMBER' AND client_id = ?)`, id, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}
		return execAffected(ctx, tx, ErrMemberNotFound, "DELETE FROM members WHERE id = ?", id)
	})
}
