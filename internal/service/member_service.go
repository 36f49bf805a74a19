package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/media-rental/internal/membership"
	"github.com/iliyamo/media-rental/internal/model"
	"github.com/iliyamo/media-rental/internal/queue"
)

// MemberService switches members on and off together with their
// dependents.
type MemberService struct {
	store  Store
	policy membership.Policy
	pub    Publisher
	logger *slog.Logger
}

func NewMemberService(store Store, policy membership.Policy, pub Publisher, logger *slog.Logger) *MemberService {
	if pub == nil {
		pub = NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemberService{store: store, policy: policy, pub: pub, logger: logger}
}

// Deactivate switches the member off along with every active dependent.
func (s *MemberService) Deactivate(ctx context.Context, id uint64) (*model.Member, []*model.Dependent, error) {
	return s.apply(ctx, id, false, s.policy.Deactivate)
}

// Reactivate switches the member on and restores at most the policy cap
// of dependents, lowest id first.
func (s *MemberService) Reactivate(ctx context.Context, id uint64) (*model.Member, []*model.Dependent, error) {
	return s.apply(ctx, id, true, s.policy.Reactivate)
}

func (s *MemberService) apply(ctx context.Context, id uint64, active bool,
	cascade func(*model.Member, []*model.Dependent) membership.Cascade) (*model.Member, []*model.Dependent, error) {
	var changed []*model.Dependent
	err := s.store.Atomic(ctx, func(tx Tx) error {
		deps, err := tx.LockDependents(ctx, id)
		if err != nil {
			return err
		}
		m, err := tx.LockMember(ctx, id)
		if err != nil {
			return err
		}
		c := cascade(m, deps)
		if err := tx.SetMemberActive(ctx, m.ID, active); err != nil {
			return err
		}
		for _, d := range c.Changed {
			if err := tx.SetDependentActive(ctx, d.ID, d.Active); err != nil {
				return err
			}
		}
		changed = c.Changed
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	m, err := s.store.Member(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]uint64, len(changed))
	for i, d := range changed {
		ids[i] = d.ID
	}
	publishAfterCommit(s.pub, s.logger, queue.Event{
		Type:         queue.MemberStatusChanged,
		OccurredAt:   time.Now().UTC(),
		MemberID:     id,
		Active:       &active,
		DependentIDs: ids,
	})
	if changed == nil {
		changed = []*model.Dependent{}
	}
	return m, changed, nil
}
