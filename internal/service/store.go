// Package service runs the multi-row mutations of the rental backend:
// rental creation, return, payment and deletion, and the member
// activation cascade.  Each operation runs in one transaction with row
// locks on every rental, item and client row it reads, and publishes a
// domain event once the transaction has committed.
package service

import (
	"context"
	"database/sql"

	"github.com/iliyamo/media-rental/internal/model"
	"github.com/iliyamo/media-rental/internal/repository"
)

// Tx is the transactional view of the store.  Lock methods take a row
// lock that is held until the transaction ends.
type Tx interface {
	LockRental(ctx context.Context, id uint64) (*model.Rental, error)
	LockItem(ctx context.Context, id uint64) (*model.Item, error)
	Class(ctx context.Context, id uint64) (*model.Class, error)
	LockMember(ctx context.Context, id uint64) (*model.Member, error)
	LockDependent(ctx context.Context, id uint64) (*model.Dependent, error)
	LockDependents(ctx context.Context, memberID uint64) ([]*model.Dependent, error)

	InsertRental(ctx context.Context, r *model.Rental) error
	UpdateRental(ctx context.Context, r *model.Rental) error
	DeleteRental(ctx context.Context, id uint64) error
	SetMemberActive(ctx context.Context, id uint64, active bool) error
	SetDependentActive(ctx context.Context, id uint64, active bool) error
}

// Store runs transactions and serves the joined reads returned to
// clients once a mutation has committed.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	Rental(ctx context.Context, id uint64) (*model.Rental, error)
	Member(ctx context.Context, id uint64) (*model.Member, error)
}

// SQLStore implements Store over the MySQL repositories.
type SQLStore struct {
	db         *sql.DB
	rentals    *repository.RentalRepo
	items      *repository.ItemRepo
	classes    *repository.ClassRepo
	members    *repository.MemberRepo
	dependents *repository.DependentRepo
}

// NewSQLStore wires the repositories sharing db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:         db,
		rentals:    repository.NewRentalRepo(db),
		items:      repository.NewItemRepo(db),
		classes:    repository.NewClassRepo(db),
		members:    repository.NewMemberRepo(db),
		dependents: repository.NewDependentRepo(db),
	}
}

func (s *SQLStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	return repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&sqlTx{s: s, tx: tx})
	})
}

func (s *SQLStore) Rental(ctx context.Context, id uint64) (*model.Rental, error) {
	return s.rentals.GetByID(ctx, id)
}

func (s *SQLStore) Member(ctx context.Context, id uint64) (*model.Member, error) {
	return s.members.GetByID(ctx, id)
}

type sqlTx struct {
	s  *SQLStore
	tx *sql.Tx
}

func (t *sqlTx) LockRental(ctx context.Context, id uint64) (*model.Rental, error) {
	return t.s.rentals.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlTx) LockItem(ctx context.Context, id uint64) (*model.Item, error) {
	return t.s.items.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlTx) Class(ctx context.Context, id uint64) (*model.Class, error) {
	return t.s.classes.GetByIDTx(ctx, t.tx, id)
}

func (t *sqlTx) LockMember(ctx context.Context, id uint64) (*model.Member, error) {
	return t.s.members.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlTx) LockDependent(ctx context.Context, id uint64) (*model.Dependent, error) {
	return t.s.dependents.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlTx) LockDependents(ctx context.Context, memberID uint64) ([]*model.Dependent, error) {
	return t.s.dependents.ListByMemberForUpdateTx(ctx, t.tx, memberID)
}

func (t *sqlTx) InsertRental(ctx context.Context, r *model.Rental) error {
	return t.s.rentals.CreateTx(ctx, t.tx, r)
}

func (t *sqlTx) UpdateRental(ctx context.Context, r *model.Rental) error {
	return t.s.rentals.UpdateTx(ctx, t.tx, r)
}

func (t *sqlTx) DeleteRental(ctx context.Context, id uint64) error {
	return t.s.rentals.DeleteTx(ctx, t.tx, id)
}

func (t *sqlTx) SetMemberActive(ctx context.Context, id uint64, active bool) error {
	return t.s.members.SetActiveTx(ctx, t.tx, id, active)
}

func (t *sqlTx) SetDependentActive(ctx context.Context, id uint64, active bool) error {
	return t.s.dependents.SetActiveTx(ctx, t.tx, id, active)
}
