package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/media-rental/internal/calendar"
	"github.com/iliyamo/media-rental/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestListQueryNormalize(t *testing.T) {
	q := ListQuery{Page: -2, PageSize: 1000, Order: " DESC ", Sort: "Name"}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, MaxPageSize, q.PageSize)
	assert.Equal(t, "desc", q.Order)
	assert.Equal(t, "name", q.Sort)

	assert.Equal(t, DefaultPageSize, ListQuery{}.Normalize().PageSize)
}

func TestOrderByFallsBackToDefault(t *testing.T) {
	assert.Equal(t, "a.name ASC, a.id ASC", actorDef.orderBy(ListQuery{Sort: "nope"}))
	assert.Equal(t, "title_count DESC, a.id ASC", actorDef.orderBy(ListQuery{Sort: "title_count", Order: "desc"}))
	assert.Equal(t, "a.id ASC", actorDef.orderBy(ListQuery{Sort: "id"}))
}

func TestActorList(t *testing.T) {
	db, mock := newMock(t)
	repo := NewActorRepo(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM actors a WHERE \(LOWER\(a.name\) LIKE \?\)`).
		WithArgs("%keanu%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT a.id, a.name,.+FROM actors a WHERE .+ ORDER BY a.name ASC, a.id ASC LIMIT \? OFFSET \?`).
		WithArgs("%keanu%", 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "title_count"}).AddRow(4, "Keanu Reeves", 2))

	page, err := repo.List(context.Background(), ListQuery{Q: "Keanu", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, model.Actor{ID: 4, Name: "Keanu Reeves", TitleCount: 2}, page.Data[0])
}

func TestActorGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM actors a WHERE a.id = \?`).WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "title_count"}))

	_, err := NewActorRepo(db).GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrActorNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirectorDeleteWithTitlesConflicts(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM directors WHERE id = \? FOR UPDATE`).WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM titles WHERE director_id = \?`).WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectRollback()

	err := NewDirectorRepo(db).Delete(context.Background(), 3)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestClassDelete(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM classes WHERE id = \? FOR UPDATE`).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM titles WHERE class_id = \?`).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM classes WHERE id = \?`).WithArgs(uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, NewClassRepo(db).Delete(context.Background(), 1))
}

func TestItemDeleteMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM items WHERE id = \? FOR UPDATE`).WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	assert.ErrorIs(t, NewItemRepo(db).Delete(context.Background(), 5), ErrItemNotFound)
}

// No DELETE is expected: sqlmock fails any statement it was not told
// about, so reaching one would surface as a different error.
func TestItemDeleteWithRentalsConflicts(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM items WHERE id = \? FOR UPDATE`).WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM rentals WHERE item_id = \?`).WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	err := NewItemRepo(db).Delete(context.Background(), 4)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestItemDeleteNeverRented(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM items WHERE id = \? FOR UPDATE`).WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM rentals WHERE item_id = \?`).WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM items WHERE id = \?`).WithArgs(uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, NewItemRepo(db).Delete(context.Background(), 4))
}

func TestTitleDeleteWithItemsConflicts(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM titles WHERE id = \? FOR UPDATE`).WithArgs(uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM items WHERE title_id = \?`).WithArgs(uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	mock.ExpectRollback()

	err := NewTitleRepo(db).Delete(context.Background(), 8)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestTitleDeleteDropsCast(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM titles WHERE id = \? FOR UPDATE`).WithArgs(uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM items WHERE title_id = \?`).WithArgs(uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM title_actors WHERE title_id = \?`).WithArgs(uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM titles WHERE id = \?`).WithArgs(uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, NewTitleRepo(db).Delete(context.Background(), 8))
}

func TestItemListAvailableFilter(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM items i JOIN titles t .+ = 'AVAILABLE' AND i.title_id = \?`).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT i.id, i.serial_number`).
		WithArgs(uint64(2), DefaultPageSize, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "serial", "title_id", "title", "media", "acq", "rc", "status", "class_id"}).
			AddRow(8, "DVD-8", 2, "Matrix", "DVD", time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), 3, "AVAILABLE", 1))

	page, err := NewItemRepo(db).List(context.Background(), ListQuery{Status: "available", TitleID: 2})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	it := page.Data[0]
	assert.Equal(t, model.MediaDVD, it.MediaType)
	assert.Equal(t, model.ItemAvailable, it.Status)
	assert.Equal(t, 3, it.RentalCount)
	assert.Equal(t, "2023-05-01", it.AcquiredOn.Format())
}

func TestTitleGetByIDLoadsActors(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM titles t\s+JOIN directors d .+ WHERE t.id = \?`).WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "on", "year", "syn", "cat", "did", "cid", "dn", "cn", "ic", "ai"}).
			AddRow(2, "Matrix", "The Matrix", 1999, "", "Sci-fi", 1, 1, "Wachowski", "Catálogo", 3, 1))
	mock.ExpectQuery(`SELECT title_id, actor_id FROM title_actors WHERE title_id IN \(\?\)`).WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"title_id", "actor_id"}).AddRow(2, 4).AddRow(2, 7))

	tt, err := NewTitleRepo(db).GetByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 7}, tt.ActorIDs)
	assert.Equal(t, 1, tt.AvailableItems)
	assert.Equal(t, "Wachowski", tt.DirectorName)
}

func TestTitleCreateRollsBackOnUnknownActor(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO titles`).WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectExec(`INSERT INTO title_actors`).WithArgs(uint64(10), uint64(99)).
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "fk"})
	mock.ExpectRollback()

	err := NewTitleRepo(db).Create(context.Background(), &model.Title{Name: "X", ActorIDs: []uint64{99, 99}})
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestMemberCreateDuplicateCPF(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO members`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_members_cpf'"})

	err := NewMemberRepo(db).Create(context.Background(), &model.Member{Person: model.Person{Name: "Ana", BirthDate: calendar.MustParse("1990-01-01"), Sex: model.SexFemale}})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDependentsByMemberForUpdate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM dependents d WHERE d.member_id = \? ORDER BY d.id FOR UPDATE`).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "bd", "sex", "active", "reg", "member_id"}).
			AddRow(2, "Bia", "2010-02-03", "FEMALE", 1, "D-2", 1).
			AddRow(3, "Caio", "2012-04-05", "MALE", 0, "D-3", 1))
	mock.ExpectCommit()

	var deps []*model.Dependent
	err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
		var err error
		deps, err = NewDependentRepo(db).ListByMemberForUpdateTx(context.Background(), tx, 1)
		return err
	})
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.True(t, deps[0].Active)
	assert.False(t, deps[1].Active)
	assert.Equal(t, "2012-04-05", deps[1].BirthDate.Format())
}

func TestClientListKeys(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM \(.+UNION ALL.+\) c WHERE c.active`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT c.kind, c.id`).
		WillReturnRows(sqlmock.NewRows([]string{"kind", "id", "name", "active", "bd", "sex", "reg", "cpf", "phone", "ad", "mid"}).
			AddRow("MEMBER", 1, "Ana", 1, "1990-01-01", "FEMALE", "M-1", "123", "555", 1, 0).
			AddRow("DEPENDENT", 1, "Bia", 1, "2010-02-03", "FEMALE", "D-1", "", "", 0, 1))

	page, err := NewClientRepo(db).List(context.Background(), ListQuery{Status: "active"})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "m-1", page.Data[0].Key)
	assert.Equal(t, "d-1", page.Data[1].Key)
	assert.Equal(t, uint64(1), page.Data[1].MemberID)
}

func rentalColumns() []string {
	return []string{"id", "kind", "client_id", "item_id", "rental_date", "expected", "actual", "paid",
		"amount", "late_fee", "is_late", "days_late"}
}

func TestRentalGetForUpdateDerivesStatus(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM rentals r WHERE r.id = \? FOR UPDATE`).WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows(rentalColumns()).
			AddRow(7, "MEMBER", 1, 8, "2024-01-01", "2024-01-08", "2024-01-10", 0, "5.50", "4.00", 1, 2))
	mock.ExpectCommit()

	var got *model.Rental
	err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
		var err error
		got, err = NewRentalRepo(db).GetForUpdateTx(context.Background(), tx, 7)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, model.RentalReturned, got.Status)
	require.NotNil(t, got.ActualReturn)
	assert.Equal(t, "2024-01-10", got.ActualReturn.Format())
	require.NotNil(t, got.LateFee)
	assert.True(t, got.LateFee.Equal(decimal.NewFromInt(4)))
	require.NotNil(t, got.IsLate)
	assert.True(t, *got.IsLate)
	assert.Equal(t, 2, *got.DaysLate)
}

func TestRentalListOpen(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM rentals r.+WHERE r.actual_return_date IS NULL`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY r.rental_date DESC, r.id ASC LIMIT`).
		WillReturnRows(sqlmock.NewRows(append(rentalColumns(), "client", "title", "serial")).
			AddRow(3, "DEPENDENT", 2, 8, "2024-01-01", "2024-01-08", nil, 0, "5.50", nil, nil, nil, "Bia", "Matrix", "DVD-8"))

	page, err := NewRentalRepo(db).List(context.Background(), ListQuery{Status: "OPEN", Order: "desc"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	r := page.Data[0]
	assert.Equal(t, model.RentalOpen, r.Status)
	assert.Nil(t, r.ActualReturn)
	assert.Nil(t, r.LateFee)
	assert.Nil(t, r.IsLate)
	assert.Equal(t, "d-2", r.ClientKey())
	assert.Equal(t, "Matrix", r.TitleName)
}

func TestRentalDeleteMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM rentals WHERE id = \?`).WithArgs(uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
		return NewRentalRepo(db).DeleteTx(context.Background(), tx, 3)
	})
	assert.ErrorIs(t, err, ErrRentalNotFound)
}

func TestTranslate(t *testing.T) {
	assert.ErrorIs(t, translate(&mysql.MySQLError{Number: 1451}), ErrConflict)
	assert.ErrorIs(t, translate(&mysql.MySQLError{Number: 3819}), ErrConflict)
	assert.ErrorIs(t, translate(&mysql.MySQLError{Number: 1452}), ErrInvalidReference)
	other := &mysql.MySQLError{Number: 1205}
	assert.Same(t, other, translate(other))
	assert.Equal(t, sql.ErrConnDone, translate(sql.ErrConnDone))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}
