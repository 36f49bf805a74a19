package membership

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/media-rental/internal/model"
)

func member(id uint64, active bool) *model.Member {
	return &model.Member{Person: model.Person{ID: id, Name: "m", Active: active}}
}

func dependents(memberID uint64, n int, active bool) []*model.Dependent {
	out := make([]*model.Dependent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &model.Dependent{
			Person:   model.Person{ID: uint64(10 + i), Active: active},
			MemberID: memberID,
		})
	}
	return out
}

func countActive(ds []*model.Dependent) int {
	n := 0
	for _, d := range ds {
		if d.Active {
			n++
		}
	}
	return n
}

func TestCanRent(t *testing.T) {
	active := member(1, true)
	inactive := member(2, false)

	testCases := []struct {
		name    string
		client  model.Client
		sponsor *model.Member
		want    bool
	}{
		{"active member", active, nil, true},
		{"inactive member", inactive, nil, false},
		{"active dependent of active member", &model.Dependent{Person: model.Person{ID: 5, Active: true}, MemberID: 1}, active, true},
		{"active dependent of inactive member", &model.Dependent{Person: model.Person{ID: 6, Active: true}, MemberID: 2}, inactive, false},
		{"inactive dependent", &model.Dependent{Person: model.Person{ID: 7}, MemberID: 1}, active, false},
		{"dependent without sponsor", &model.Dependent{Person: model.Person{ID: 8, Active: true}, MemberID: 1}, nil, false},
		{"dependent with someone else's sponsor", &model.Dependent{Person: model.Person{ID: 9, Active: true}, MemberID: 3}, active, false},
		{"nil client", nil, nil, false},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanRent(tt.client, tt.sponsor))
		})
	}
}

func TestDeactivateCascadesToAllDependents(t *testing.T) {
	m := member(1, true)
	deps := dependents(1, 5, true)

	c := Deactivate(m, deps)

	assert.False(t, m.Active)
	assert.Len(t, c.Changed, 5)
	assert.Equal(t, 0, countActive(deps))
	assert.Equal(t, 0, m.ActiveDependents)
}

func TestReactivateStopsAtCap(t *testing.T) {
	m := member(1, true)
	deps := dependents(1, 5, true)

	Deactivate(m, deps)
	c := Reactivate(m, deps)

	assert.True(t, m.Active)
	assert.Len(t, c.Changed, ReactivationCap)
	assert.Equal(t, 3, countActive(deps))
	assert.Equal(t, 2, len(deps)-countActive(deps))
	// lowest ids come back first
	assert.True(t, deps[0].Active)
	assert.True(t, deps[2].Active)
	assert.False(t, deps[3].Active)
	assert.Equal(t, 3, m.ActiveDependents)
}

func TestReactivateCountsAlreadyActiveDependents(t *testing.T) {
	m := member(1, false)
	deps := dependents(1, 4, false)
	deps[1].Active = true
	deps[3].Active = true

	c := Reactivate(m, deps)

	assert.Len(t, c.Changed, 1)
	assert.Equal(t, uint64(10), c.Changed[0].ID)
	assert.Equal(t, 3, countActive(deps))
}

func TestCascadeIgnoresOtherMembersDependents(t *testing.T) {
	m := member(1, true)
	others := dependents(2, 2, true)

	c := Deactivate(m, others)

	assert.Empty(t, c.Changed)
	assert.Equal(t, 2, countActive(others))
}

func TestPolicyOverride(t *testing.T) {
	m := member(1, false)
	deps := dependents(1, 5, false)

	c := Policy{ReactivationCap: 5}.Reactivate(m, deps)
	assert.Len(t, c.Changed, 5)

	m2 := member(2, false)
	deps2 := dependents(2, 2, false)
	c = Policy{ReactivationCap: -1}.Reactivate(m2, deps2)
	assert.Empty(t, c.Changed)
	assert.True(t, m2.Active)
}
