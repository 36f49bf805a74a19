// Package membership decides whether a client may transact and which
// dependents change status when their sponsoring member is switched off
// or back on.
package membership

import (
	"sort"

	"github.com/iliyamo/media-rental/internal/model"
)

// ReactivationCap is how many dependents come back with their member.
// It is a business rule observed in the shop's workflow, not a general
// limit; product has not confirmed whether it should stay at three.
const ReactivationCap = 3

// CanRent reports whether c may take an item.  A dependent inherits its
// eligibility from the sponsoring member, so sponsor must be the member
// referenced by the dependent; a nil sponsor makes a dependent ineligible.
func CanRent(c model.Client, sponsor *model.Member) bool {
	switch v := c.(type) {
	case *model.Member:
		return v != nil && v.Active
	case *model.Dependent:
		if v == nil || !v.Active {
			return false
		}
		return sponsor != nil && sponsor.ID == v.MemberID && sponsor.Active
	default:
		return false
	}
}

// Cascade is the set of rows a status change touched.  Changed holds
// only the dependents whose flag actually flipped.
type Cascade struct {
	Member  *model.Member
	Changed []*model.Dependent
}

// Policy carries the reactivation cap so deployments can override it.
type Policy struct {
	ReactivationCap int
}

// DefaultPolicy uses ReactivationCap.
func DefaultPolicy() Policy { return Policy{ReactivationCap: ReactivationCap} }

// Deactivate switches the member off and every active dependent with it.
func (p Policy) Deactivate(m *model.Member, dependents []*model.Dependent) Cascade {
	m.Active = false
	out := Cascade{Member: m}
	for _, d := range ownedBy(m, dependents) {
		if d.Active {
			d.Active = false
			out.Changed = append(out.Changed, d)
		}
	}
	m.ActiveDependents = 0
	return out
}

// Reactivate switches the member on and brings back at most
// ReactivationCap inactive dependents, lowest id first.  Dependents that
// are already active count towards the cap.
func (p Policy) Reactivate(m *model.Member, dependents []*model.Dependent) Cascade {
	limit := p.ReactivationCap
	if limit < 0 {
		limit = 0
	}
	m.Active = true
	out := Cascade{Member: m}

	owned := ownedBy(m, dependents)
	active := 0
	for _, d := range owned {
		if d.Active {
			active++
		}
	}
	for _, d := range owned {
		if active >= limit {
			break
		}
		if !d.Active {
			d.Active = true
			active++
			out.Changed = append(out.Changed, d)
		}
	}
	m.ActiveDependents = active
	return out
}

// Deactivate applies DefaultPolicy.
func Deactivate(m *model.Member, dependents []*model.Dependent) Cascade {
	return DefaultPolicy().Deactivate(m, dependents)
}

// Reactivate applies DefaultPolicy.
func Reactivate(m *model.Member, dependents []*model.Dependent) Cascade {
	return DefaultPolicy().Reactivate(m, dependents)
}

func ownedBy(m *model.Member, dependents []*model.Dependent) []*model.Dependent {
	out := make([]*model.Dependent, 0, len(dependents))
	for _, d := range dependents {
		if d != nil && d.MemberID == m.ID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
