package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/media-rental/internal/calendar"
)

// ClientKind discriminates the two client variants.
type ClientKind string

const (
	KindMember    ClientKind = "MEMBER"
	KindDependent ClientKind = "DEPENDENT"
)

// Sex is stored as one of two fixed values.
type Sex string

const (
	SexMale   Sex = "MALE"
	SexFemale Sex = "FEMALE"
)

// Valid reports whether s is a known value.
func (s Sex) Valid() bool { return s == SexMale || s == SexFemale }

// Person holds the attributes shared by members and dependents.
type Person struct {
	ID                 uint64        `json:"id"`
	Name               string        `json:"name"`
	BirthDate          calendar.Date `json:"birth_date"`
	Sex                Sex           `json:"sex"`
	Active             bool          `json:"active"`
	RegistrationNumber string        `json:"registration_number"`
}

// Client is either a *Member or a *Dependent.  The set is closed: only
// types in this package implement it, so a type switch over the two
// variants is exhaustive.
type Client interface {
	Kind() ClientKind
	Base() *Person
	isClient()
}

// Member is a fully registered client who may sponsor dependents.
type Member struct {
	Person
	CPF              string `json:"cpf"`
	Address          string `json:"address"`
	Phone            string `json:"phone"`
	ActiveDependents int    `json:"active_dependents"`
}

// Dependent is linked to exactly one sponsoring member.
type Dependent struct {
	Person
	MemberID uint64 `json:"member_id"`
}

func (*Member) Kind() ClientKind    { return KindMember }
func (*Dependent) Kind() ClientKind { return KindDependent }
func (m *Member) Base() *Person     { return &m.Person }
func (d *Dependent) Base() *Person  { return &d.Person }
func (*Member) isClient()           {}
func (*Dependent) isClient()        {}

// ClientRef is the union listing row used by pickers and the clients
// table.  Key is prefixed by kind ("m-4", "d-9") because member and
// dependent ids live in separate sequences.
type ClientRef struct {
	Key                string        `json:"key"`
	Kind               ClientKind    `json:"kind"`
	ID                 uint64        `json:"id"`
	Name               string        `json:"name"`
	Active             bool          `json:"active"`
	BirthDate          calendar.Date `json:"birth_date"`
	Sex                Sex           `json:"sex"`
	RegistrationNumber string        `json:"registration_number"`
	CPF                string        `json:"cpf,omitempty"`
	Phone              string        `json:"phone,omitempty"`
	ActiveDependents   int           `json:"active_dependents"`
	MemberID           uint64        `json:"member_id,omitempty"`
}

// RefOf flattens a client into its listing row.
func RefOf(c Client) ClientRef {
	p := c.Base()
	ref := ClientRef{
		Key:                ClientKey(c.Kind(), p.ID),
		Kind:               c.Kind(),
		ID:                 p.ID,
		Name:               p.Name,
		Active:             p.Active,
		BirthDate:          p.BirthDate,
		Sex:                p.Sex,
		RegistrationNumber: p.RegistrationNumber,
	}
	switch v := c.(type) {
	case *Member:
		ref.CPF = v.CPF
		ref.Phone = v.Phone
		ref.ActiveDependents = v.ActiveDependents
	case *Dependent:
		ref.MemberID = v.MemberID
	}
	return ref
}

// ClientKey renders the prefixed key of a client.
func ClientKey(kind ClientKind, id uint64) string {
	if kind == KindDependent {
		return "d-" + strconv.FormatUint(id, 10)
	}
	return "m-" + strconv.FormatUint(id, 10)
}

// ParseClientKey is the inverse of ClientKey.
func ParseClientKey(key string) (ClientKind, uint64, error) {
	prefix, raw, ok := strings.Cut(strings.TrimSpace(key), "-")
	if !ok {
		return "", 0, fmt.Errorf("invalid client key %q", key)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return "", 0, fmt.Errorf("invalid client key %q", key)
	}
	switch prefix {
	case "m":
		return KindMember, id, nil
	case "d":
		return KindDependent, id, nil
	}
	return "", 0, fmt.Errorf("invalid client key %q", key)
}
