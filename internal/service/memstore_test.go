package service

import (
	"context"
	"sync"

	"github.com/iliyamo/media-rental/internal/model"
	"github.com/iliyamo/media-rental/internal/queue"
	"github.com/iliyamo/media-rental/internal/repository"
)

// memStore is an in-memory Store.  Atomic serialises transactions and
// restores a snapshot when fn fails.
type memStore struct {
	mu         sync.Mutex
	nextID     uint64
	rentals    map[uint64]model.Rental
	items      map[uint64]model.Item
	classes    map[uint64]model.Class
	members    map[uint64]model.Member
	dependents map[uint64]model.Dependent
}

func newMemStore() *memStore {
	return &memStore{
		nextID:     100,
		rentals:    map[uint64]model.Rental{},
		items:      map[uint64]model.Item{},
		classes:    map[uint64]model.Class{},
		members:    map[uint64]model.Member{},
		dependents: map[uint64]model.Dependent{},
	}
}

func clone[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rentals, members, dependents, nextID := clone(s.rentals), clone(s.members), clone(s.dependents), s.nextID
	if err := fn(memTx{s}); err != nil {
		s.rentals, s.members, s.dependents, s.nextID = rentals, members, dependents, nextID
		return err
	}
	return nil
}

func (s *memStore) Rental(ctx context.Context, id uint64) (*model.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s}.LockRental(ctx, id)
}

func (s *memStore) Member(ctx context.Context, id uint64) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memTx{s}.LockMember(ctx, id)
}

// rentalCount is the derived count the item listing shows.
func (s *memStore) rentalCount(itemID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rentals {
		if r.ItemID == itemID {
			n++
		}
	}
	return n
}

type memTx struct{ s *memStore }

func (t memTx) LockRental(_ context.Context, id uint64) (*model.Rental, error) {
	r, ok := t.s.rentals[id]
	if !ok {
		return nil, repository.ErrRentalNotFound
	}
	return &r, nil
}

func (t memTx) LockItem(_ context.Context, id uint64) (*model.Item, error) {
	it, ok := t.s.items[id]
	if !ok {
		return nil, repository.ErrItemNotFound
	}
	it.Status = model.ItemAvailable
	it.RentalCount = 0
	for _, r := range t.s.rentals {
		if r.ItemID != id {
			continue
		}
		it.RentalCount++
		if r.ActualReturn == nil {
			it.Status = model.ItemUnavailable
		}
	}
	return &it, nil
}

func (t memTx) Class(_ context.Context, id uint64) (*model.Class, error) {
	c, ok := t.s.classes[id]
	if !ok {
		return nil, repository.ErrClassNotFound
	}
	return &c, nil
}

func (t memTx) LockMember(_ context.Context, id uint64) (*model.Member, error) {
	m, ok := t.s.members[id]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	m.ActiveDependents = 0
	for _, d := range t.s.dependents {
		if d.MemberID == id && d.Active {
			m.ActiveDependents++
		}
	}
	return &m, nil
}

func (t memTx) LockDependent(_ context.Context, id uint64) (*model.Dependent, error) {
	d, ok := t.s.dependents[id]
	if !ok {
		return nil, repository.ErrDependentNotFound
	}
	return &d, nil
}

func (t memTx) LockDependents(_ context.Context, memberID uint64) ([]*model.Dependent, error) {
	var out []*model.Dependent
	for _, d := range t.s.dependents {
		if d.MemberID == memberID {
			d := d
			out = append(out, &d)
		}
	}
	return out, nil
}

func (t memTx) InsertRental(_ context.Context, r *model.Rental) error {
	t.s.nextID++
	r.ID = t.s.nextID
	t.s.rentals[r.ID] = *r
	return nil
}

func (t memTx) UpdateRental(_ context.Context, r *model.Rental) error {
	if _, ok := t.s.rentals[r.ID]; !ok {
		return repository.ErrRentalNotFound
	}
	t.s.rentals[r.ID] = *r
	return nil
}

func (t memTx) DeleteRental(_ context.Context, id uint64) error {
	if _, ok := t.s.rentals[id]; !ok {
		return repository.ErrRentalNotFound
	}
	delete(t.s.rentals, id)
	return nil
}

func (t memTx) SetMemberActive(_ context.Context, id uint64, active bool) error {
	m, ok := t.s.members[id]
	if !ok {
		return repository.ErrMemberNotFound
	}
	m.Active = active
	t.s.members[id] = m
	return nil
}

func (t memTx) SetDependentActive(_ context.Context, id uint64, active bool) error {
	d, ok := t.s.dependents[id]
	if !ok {
		return repository.ErrDependentNotFound
	}
	d.Active = active
	t.s.dependents[id] = d
	return nil
}

// recorder is a Publisher that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []queue.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, ev queue.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
