package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/media-rental/internal/calendar"
	"github.com/iliyamo/media-rental/internal/model"
	"github.com/iliyamo/media-rental/internal/queue"
	"github.com/iliyamo/media-rental/internal/rental"
)

// RentalService applies the rental lifecycle against the store.
type RentalService struct {
	store  Store
	life   *rental.Lifecycle
	pub    Publisher
	logger *slog.Logger
	loc    *time.Location
	// today returns the current date in loc; replaced in tests.
	today func() calendar.Date
}

// NewRentalService returns a RentalService.  loc is the reference
// timezone deciding which day "today" is when a return date or rental
// date is omitted.
func NewRentalService(store Store, life *rental.Lifecycle, pub Publisher, logger *slog.Logger, loc *time.Location) *RentalService {
	if life == nil {
		life = rental.NewLifecycle(nil)
	}
	if pub == nil {
		pub = NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &RentalService{store: store, life: life, pub: pub, logger: logger, loc: loc}
	s.today = func() calendar.Date { return calendar.Today(s.loc) }
	return s
}

// CreateRentalInput identifies the client and item of a new rental.  A
// zero RentalDate means today.
type CreateRentalInput struct {
	ClientKind     model.ClientKind
	ClientID       uint64
	ItemID         uint64
	RentalDate     calendar.Date
	ExpectedReturn calendar.Date
}

// Create opens a rental.  The client (and sponsor of a dependent) and the
// item are locked first, so two clerks renting the same copy serialise
// and the second one sees it unavailable.
func (s *RentalService) Create(ctx context.Context, in CreateRentalInput) (*model.Rental, error) {
	if in.RentalDate.IsZero() {
		in.RentalDate = s.today()
	}
	var created *model.Rental
	err := s.store.Atomic(ctx, func(tx Tx) error {
		client, sponsor, err := lockClient(ctx, tx, in.ClientKind, in.ClientID)
		if err != nil {
			return err
		}
		item, err := tx.LockItem(ctx, in.ItemID)
		if err != nil {
			return err
		}
		class, err := tx.Class(ctx, item.ClassID)
		if err != nil {
			return err
		}
		r, err := s.life.Create(rental.CreateRequest{
			Client:         client,
			Sponsor:        sponsor,
			Item:           item,
			Class:          *class,
			RentalDate:     in.RentalDate,
			ExpectedReturn: in.ExpectedReturn,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertRental(ctx, r); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := s.reload(ctx, created)
	amount := out.AmountCharged
	s.publish(queue.Event{
		Type:           queue.RentalCreated,
		RentalID:       out.ID,
		ClientKey:      out.ClientKey(),
		ItemID:         out.ItemID,
		RentalDate:     out.RentalDate.Format(),
		ExpectedReturn: out.ExpectedReturn.Format(),
		AmountCharged:  &amount,
	})
	return out, nil
}

// Reschedule changes the dates of an open rental.  A zero date keeps the
// stored one.
func (s *RentalService) Reschedule(ctx context.Context, id uint64, rentalDate, expected calendar.Date) (*model.Rental, error) {
	var updated *model.Rental
	err := s.store.Atomic(ctx, func(tx Tx) error {
		r, class, err := lockRentalWithClass(ctx, tx, id)
		if err != nil {
			return err
		}
		if rentalDate.IsZero() {
			rentalDate = r.RentalDate
		}
		if expected.IsZero() {
			expected = r.ExpectedReturn
		}
		if err := s.life.Reschedule(r, *class, rentalDate, expected); err != nil {
			return err
		}
		if err := tx.UpdateRental(ctx, r); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, updated), nil
}

// Return records the item as back on actual, or today when actual is
// nil, and stores the late fee and lateness computed at that moment.
func (s *RentalService) Return(ctx context.Context, id uint64, actual *calendar.Date) (*model.Rental, error) {
	day := s.today()
	if actual != nil && !actual.IsZero() {
		day = *actual
	}
	var updated *model.Rental
	err := s.store.Atomic(ctx, func(tx Tx) error {
		r, class, err := lockRentalWithClass(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := s.life.RecordReturn(r, *class, day); err != nil {
			return err
		}
		if err := tx.UpdateRental(ctx, r); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := s.reload(ctx, updated)
	s.publish(queue.Event{
		Type:         queue.RentalReturned,
		RentalID:     out.ID,
		ClientKey:    out.ClientKey(),
		ItemID:       out.ItemID,
		ActualReturn: day.Format(),
		LateFee:      out.LateFee,
		DaysLate:     out.DaysLate,
	})
	return out, nil
}

// ConfirmPayment settles a returned rental.
func (s *RentalService) ConfirmPayment(ctx context.Context, id uint64) (*model.Rental, error) {
	var updated *model.Rental
	err := s.store.Atomic(ctx, func(tx Tx) error {
		r, err := tx.LockRental(ctx, id)
		if err != nil {
			return err
		}
		if err := s.life.ConfirmPayment(r); err != nil {
			return err
		}
		if err := tx.UpdateRental(ctx, r); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := s.reload(ctx, updated)
	s.publish(queue.Event{
		Type:          queue.RentalSettled,
		RentalID:      out.ID,
		ClientKey:     out.ClientKey(),
		ItemID:        out.ItemID,
		AmountCharged: &out.AmountCharged,
		LateFee:       out.LateFee,
	})
	return out, nil
}

// Delete removes an open rental.  Returned and settled rentals are
// history and stay.
func (s *RentalService) Delete(ctx context.Context, id uint64) error {
	var deleted *model.Rental
	err := s.store.Atomic(ctx, func(tx Tx) error {
		r, err := tx.LockRental(ctx, id)
		if err != nil {
			return err
		}
		if err := s.life.CheckDelete(r); err != nil {
			return err
		}
		deleted = r
		return tx.DeleteRental(ctx, id)
	})
	if err != nil {
		return err
	}
	s.publish(queue.Event{
		Type:      queue.RentalDeleted,
		RentalID:  deleted.ID,
		ClientKey: deleted.ClientKey(),
		ItemID:    deleted.ItemID,
	})
	return nil
}

// Settlement returns the amount due of a returned rental, preferring the
// fee stored at return time.
func (s *RentalService) Settlement(ctx context.Context, id uint64) (*model.Rental, rental.Settlement, error) {
	var (
		r   *model.Rental
		out rental.Settlement
	)
	err := s.store.Atomic(ctx, func(tx Tx) error {
		locked, class, err := lockRentalWithClass(ctx, tx, id)
		if err != nil {
			return err
		}
		out, err = s.life.Settle(locked, *class)
		r = locked
		return err
	})
	if err != nil {
		return nil, rental.Settlement{}, err
	}
	return s.reload(ctx, r), out, nil
}

// reload returns the joined view of r after commit.  When the read fails
// the committed row is returned without display fields; the mutation
// itself already succeeded.
func (s *RentalService) reload(ctx context.Context, r *model.Rental) *model.Rental {
	out, err := s.store.Rental(ctx, r.ID)
	if err != nil {
		s.logger.Warn("reload rental after commit", "rental_id", r.ID, "err", err)
		return rental.Annotate(r)
	}
	return out
}

func (s *RentalService) publish(ev queue.Event) {
	ev.OccurredAt = time.Now().UTC()
	publishAfterCommit(s.pub, s.logger, ev)
}

func lockRentalWithClass(ctx context.Context, tx Tx, id uint64) (*model.Rental, *model.Class, error) {
	r, err := tx.LockRental(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	item, err := tx.LockItem(ctx, r.ItemID)
	if err != nil {
		return nil, nil, err
	}
	class, err := tx.Class(ctx, item.ClassID)
	if err != nil {
		return nil, nil, err
	}
	return r, class, nil
}

// lockClient locks the client row, and for a dependent its sponsor too.
// Dependents are always locked before their member, the same order the
// activation cascade uses.
func lockClient(ctx context.Context, tx Tx, kind model.ClientKind, id uint64) (model.Client, *model.Member, error) {
	switch kind {
	case model.KindMember:
		m, err := tx.LockMember(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return m, nil, nil
	case model.KindDependent:
		d, err := tx.LockDependent(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		sponsor, err := tx.LockMember(ctx, d.MemberID)
		if err != nil {
			return nil, nil, err
		}
		return d, sponsor, nil
	default:
		return nil, nil, rental.ErrInvalidClient
	}
}
