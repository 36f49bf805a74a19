// Package rental holds the rental lifecycle: creation, return, payment
// and deletion guards, plus the late fee settlement computed at return.
//
// A rental moves Open -> Returned -> Settled.  An Open rental may also be
// deleted, which removes it entirely.  The stage is not stored; it is
// read off the actual return date and the paid flag.
package rental

import (
	"github.com/iliyamo/media-rental/internal/calendar"
	"github.com/iliyamo/media-rental/internal/membership"
	"github.com/iliyamo/media-rental/internal/model"
)

// State returns the lifecycle stage of r.
func State(r *model.Rental) model.RentalStatus {
	switch {
	case r.ActualReturn == nil || r.ActualReturn.IsZero():
		return model.RentalOpen
	case !r.Paid:
		return model.RentalReturned
	default:
		return model.RentalSettled
	}
}

// Annotate fills the derived Status field of r and returns r.
func Annotate(r *model.Rental) *model.Rental {
	r.Status = State(r)
	return r
}

// Lifecycle applies the transitions of a rental.  It does not persist
// anything; callers write the mutated rental back inside their own
// transaction.
type Lifecycle struct {
	Calc Calculator
	// EnforceReturnWindow rejects due dates further out than the class
	// return period.
	EnforceReturnWindow bool
}

// NewLifecycle returns a Lifecycle settling with fees.
func NewLifecycle(fees FeeSchedule) *Lifecycle {
	return &Lifecycle{Calc: NewCalculator(fees), EnforceReturnWindow: true}
}

// CreateRequest gathers the collaborators of a new rental.  Sponsor is
// only consulted when Client is a dependent.
type CreateRequest struct {
	Client         model.Client
	Sponsor        *model.Member
	Item           *model.Item
	Class          model.Class
	RentalDate     calendar.Date
	ExpectedReturn calendar.Date
}

// Create produces a new Open rental.
func (l *Lifecycle) Create(req CreateRequest) (*model.Rental, error) {
	if req.Client == nil || !membership.CanRent(req.Client, req.Sponsor) {
		return nil, ErrInvalidClient
	}
	if req.Item == nil || !req.Item.Available() {
		return nil, ErrItemUnavailable
	}
	if req.RentalDate.IsZero() || req.ExpectedReturn.IsZero() || req.ExpectedReturn.Before(req.RentalDate) {
		return nil, ErrInvalidDates
	}
	if l.EnforceReturnWindow && req.Class.ReturnDays > 0 &&
		calendar.DaysBetween(req.RentalDate, req.ExpectedReturn) > req.Class.ReturnDays {
		return nil, ErrReturnWindowExceeded
	}

	r := &model.Rental{
		ClientKind:     req.Client.Kind(),
		ClientID:       req.Client.Base().ID,
		ItemID:         req.Item.ID,
		RentalDate:     req.RentalDate,
		ExpectedReturn: req.ExpectedReturn,
		AmountCharged:  req.Class.Value,
	}
	return Annotate(r), nil
}

// Reschedule changes the dates of an Open rental.
func (l *Lifecycle) Reschedule(r *model.Rental, class model.Class, rentalDate, expected calendar.Date) error {
	if State(r) != model.RentalOpen {
		return ErrAlreadyReturned
	}
	if rentalDate.IsZero() || expected.IsZero() || expected.Before(rentalDate) {
		return ErrInvalidDates
	}
	if l.EnforceReturnWindow && class.ReturnDays > 0 &&
		calendar.DaysBetween(rentalDate, expected) > class.ReturnDays {
		return ErrReturnWindowExceeded
	}
	r.RentalDate = rentalDate
	r.ExpectedReturn = expected
	return nil
}

// RecordReturn marks r returned on actual and attaches the settlement.
// Any late fee or lateness already on the rental is discarded first;
// a fresh return is always computed locally.
func (l *Lifecycle) RecordReturn(r *model.Rental, class model.Class, actual calendar.Date) (Settlement, error) {
	if State(r) != model.RentalOpen {
		return Settlement{}, ErrAlreadyReturned
	}
	if actual.IsZero() {
		return Settlement{}, ErrInvalidDates
	}
	snap := SnapshotOf(r, class)
	snap.Actual = &actual
	snap.PrecomputedLateFee = nil
	snap.PrecomputedIsLate = nil

	s, err := l.Calc.Calculate(snap)
	if err != nil {
		return Settlement{}, err
	}

	r.ActualReturn = &actual
	fee := s.LateFee
	late := s.IsLate
	days := s.DaysLate
	r.LateFee = &fee
	r.IsLate = &late
	r.DaysLate = &days
	Annotate(r)
	return s, nil
}

// ConfirmPayment settles a returned rental.
func (l *Lifecycle) ConfirmPayment(r *model.Rental) error {
	switch State(r) {
	case model.RentalOpen:
		return ErrNotYetReturned
	case model.RentalSettled:
		return ErrAlreadyPaid
	}
	r.Paid = true
	Annotate(r)
	return nil
}

// CheckDelete allows deletion only while r is Open.
func (l *Lifecycle) CheckDelete(r *model.Rental) error {
	if State(r) != model.RentalOpen {
		return ErrCannotDeleteSettledOrReturned
	}
	return nil
}

// Settle returns the settlement of a returned rental, preferring the
// stored fee and lateness.
func (l *Lifecycle) Settle(r *model.Rental, class model.Class) (Settlement, error) {
	return l.Calc.Calculate(SnapshotOf(r, class))
}
