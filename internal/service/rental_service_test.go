package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/media-rental/internal/calendar"
	"github.com/iliyamo/media-rental/internal/model"
	"github.com/iliyamo/media-rental/internal/queue"
	"github.com/iliyamo/media-rental/internal/rental"
	"github.com/iliyamo/media-rental/internal/repository"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func seeded() *memStore {
	s := newMemStore()
	s.classes[1] = model.Class{ID: 1, Name: "Semanal", Value: decimal.RequireFromString("5.50"), ReturnDays: 7}
	s.items[8] = model.Item{ID: 8, SerialNumber: "DVD-8", TitleID: 2, MediaType: model.MediaDVD, ClassID: 1}
	s.members[1] = model.Member{Person: model.Person{ID: 1, Name: "Ana", Active: true}}
	s.dependents[2] = model.Dependent{Person: model.Person{ID: 2, Name: "Bia", Active: true}, MemberID: 1}
	return s
}

func newRentalService(s *memStore, pub Publisher) *RentalService {
	svc := NewRentalService(s, rental.NewLifecycle(nil), pub, quietLogger(), time.UTC)
	svc.today = func() calendar.Date { return calendar.MustParse("2024-01-10") }
	return svc
}

func openRental(t *testing.T, svc *RentalService) *model.Rental {
	t.Helper()
	r, err := svc.Create(context.Background(), CreateRentalInput{
		ClientKind:     model.KindMember,
		ClientID:       1,
		ItemID:         8,
		RentalDate:     calendar.MustParse("2024-01-01"),
		ExpectedReturn: calendar.MustParse("2024-01-08"),
	})
	require.NoError(t, err)
	return r
}

func TestCreateThenDeleteLeavesRentalCount(t *testing.T) {
	store := seeded()
	pub := &recorder{}
	svc := newRentalService(store, pub)
	before := store.rentalCount(8)

	r := openRental(t, svc)
	assert.Equal(t, before+1, store.rentalCount(8))
	require.NoError(t, svc.Delete(context.Background(), r.ID))

	assert.Equal(t, before, store.rentalCount(8))
	assert.Equal(t, []string{queue.RentalCreated, queue.RentalDeleted}, pub.types())
}

func TestCreateMarksItemUnavailable(t *testing.T) {
	store := seeded()
	svc := newRentalService(store, nil)
	openRental(t, svc)

	_, err := svc.Create(context.Background(), CreateRentalInput{
		ClientKind: model.KindDependent, ClientID: 2, ItemID: 8,
		ExpectedReturn: calendar.MustParse("2024-01-12"),
	})
	assert.ErrorIs(t, err, rental.ErrItemUnavailable)
}

func TestCreateDefaultsRentalDateToToday(t *testing.T) {
	svc := newRentalService(seeded(), nil)
	r, err := svc.Create(context.Background(), CreateRentalInput{
		ClientKind: model.KindDependent, ClientID: 2, ItemID: 8,
		ExpectedReturn: calendar.MustParse("2024-01-12"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", r.RentalDate.Format())
	assert.Equal(t, model.KindDependent, r.ClientKind)
	assert.True(t, r.AmountCharged.Equal(decimal.RequireFromString("5.50")))
}

func TestCreateRejectsDependentOfInactiveMember(t *testing.T) {
	store := seeded()
	m := store.members[1]
	m.Active = false
	store.members[1] = m
	svc := newRentalService(store, nil)

	_, err := svc.Create(context.Background(), CreateRentalInput{
		ClientKind: model.KindDependent, ClientID: 2, ItemID: 8,
		ExpectedReturn: calendar.MustParse("2024-01-12"),
	})
	assert.ErrorIs(t, err, rental.ErrInvalidClient)
	assert.Equal(t, 0, store.rentalCount(8))
}

func TestCreateUnknownClient(t *testing.T) {
	svc := newRentalService(seeded(), nil)
	_, err := svc.Create(context.Background(), CreateRentalInput{ClientKind: model.KindMember, ClientID: 42, ItemID: 8})
	assert.ErrorIs(t, err, repository.ErrMemberNotFound)

	_, err = svc.Create(context.Background(), CreateRentalInput{ClientKind: "ROBOT", ClientID: 1, ItemID: 8})
	assert.ErrorIs(t, err, rental.ErrInvalidClient)
}

func TestReturnPayFlow(t *testing.T) {
	store := seeded()
	pub := &recorder{}
	svc := newRentalService(store, pub)
	r := openRental(t, svc)
	ctx := context.Background()

	_, err := svc.ConfirmPayment(ctx, r.ID)
	assert.ErrorIs(t, err, rental.ErrNotYetReturned)

	returned, err := svc.Return(ctx, r.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.RentalReturned, returned.Status)
	assert.Equal(t, "2024-01-10", returned.ActualReturn.Format())
	require.NotNil(t, returned.LateFee)
	assert.True(t, returned.LateFee.Equal(decimal.NewFromInt(4)))
	assert.True(t, *returned.IsLate)

	assert.ErrorIs(t, svc.Delete(ctx, r.ID), rental.ErrCannotDeleteSettledOrReturned)
	_, err = svc.Return(ctx, r.ID, nil)
	assert.ErrorIs(t, err, rental.ErrAlreadyReturned)

	_, s, err := svc.Settlement(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, s.TotalDue.Equal(decimal.RequireFromString("9.50")))

	paid, err := svc.ConfirmPayment(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RentalSettled, paid.Status)

	_, err = svc.ConfirmPayment(ctx, r.ID)
	assert.ErrorIs(t, err, rental.ErrAlreadyPaid)

	assert.Equal(t, []string{queue.RentalCreated, queue.RentalReturned, queue.RentalSettled}, pub.types())
}

func TestEarlyReturnHasNoFee(t *testing.T) {
	svc := newRentalService(seeded(), nil)
	r := openRental(t, svc)

	early := calendar.MustParse("2024-01-05")
	out, err := svc.Return(context.Background(), r.ID, &early)
	require.NoError(t, err)
	assert.False(t, *out.IsLate)
	assert.Equal(t, -3, *out.DaysLate)
	assert.True(t, out.LateFee.IsZero())
}

func TestReschedule(t *testing.T) {
	svc := newRentalService(seeded(), nil)
	r := openRental(t, svc)
	ctx := context.Background()

	out, err := svc.Reschedule(ctx, r.ID, calendar.Date{}, calendar.MustParse("2024-01-06"))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", out.RentalDate.Format())
	assert.Equal(t, "2024-01-06", out.ExpectedReturn.Format())

	_, err = svc.Reschedule(ctx, r.ID, calendar.Date{}, calendar.MustParse("2024-01-20"))
	assert.ErrorIs(t, err, rental.ErrReturnWindowExceeded)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &recorder{err: errors.New("broker down")}
	svc := newRentalService(seeded(), pub)
	r := openRental(t, svc)
	assert.NotZero(t, r.ID)
	assert.Len(t, pub.types(), 1)
}

func TestDeleteMissingRental(t *testing.T) {
	svc := newRentalService(seeded(), nil)
	assert.ErrorIs(t, svc.Delete(context.Background(), 999), repository.ErrNotFound)
}
