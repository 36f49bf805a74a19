// Package dto holds the request bodies of the REST API.  The server binds
// and validates them; the dashboard client validates the same structs
// before sending so bad input never leaves the process.
package dto

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/media-rental/internal/calendar"
	"github.com/iliyamo/media-rental/internal/model"
)

// NameInput is the body of actor and director create/update.
type NameInput struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

func (in NameInput) Actor(id uint64) *model.Actor {
	return &model.Actor{ID: id, Name: strings.TrimSpace(in.Name)}
}

func (in NameInput) Director(id uint64) *model.Director {
	return &model.Director{ID: id, Name: strings.TrimSpace(in.Name)}
}

type ClassInput struct {
	Name       string          `json:"name" validate:"required,min=2,max=100"`
	Value      decimal.Decimal `json:"value" validate:"gt=0"`
	ReturnDays int             `json:"return_days" validate:"min=1,max=7"`
}

func (in ClassInput) Class(id uint64) *model.Class {
	return &model.Class{ID: id, Name: strings.TrimSpace(in.Name), Value: in.Value, ReturnDays: in.ReturnDays}
}

type TitleInput struct {
	Name         string   `json:"name" validate:"required,min=2,max=100"`
	OriginalName string   `json:"original_name" validate:"max=200"`
	Year         int      `json:"year" validate:"min=1888,max=2100"`
	Synopsis     string   `json:"synopsis" validate:"max=4000"`
	Category     string   `json:"category" validate:"max=60"`
	DirectorID   uint64   `json:"director_id" validate:"required"`
	ClassID      uint64   `json:"class_id" validate:"required"`
	ActorIDs     []uint64 `json:"actor_ids" validate:"dive,gt=0"`
}

func (in TitleInput) Title(id uint64) *model.Title {
	return &model.Title{
		ID:           id,
		Name:         strings.TrimSpace(in.Name),
		OriginalName: strings.TrimSpace(in.OriginalName),
		Year:         in.Year,
		Synopsis:     in.Synopsis,
		Category:     strings.TrimSpace(in.Category),
		DirectorID:   in.DirectorID,
		ClassID:      in.ClassID,
		ActorIDs:     in.ActorIDs,
	}
}

type ItemInput struct {
	SerialNumber string        `json:"serial_number" validate:"required,max=60"`
	TitleID      uint64        `json:"title_id" validate:"required"`
	MediaType    string        `json:"media_type" validate:"required,oneof=VHS DVD BLU_RAY"`
	AcquiredOn   calendar.Date `json:"acquisition_date" validate:"required"`
}

func (in ItemInput) Item(id uint64) *model.Item {
	return &model.Item{
		ID:           id,
		SerialNumber: strings.TrimSpace(in.SerialNumber),
		TitleID:      in.TitleID,
		MediaType:    model.MediaType(in.MediaType),
		AcquiredOn:   in.AcquiredOn,
	}
}

// PersonInput holds the fields shared by members and dependents.
type PersonInput struct {
	Name               string        `json:"name" validate:"required,min=2,max=100"`
	BirthDate          calendar.Date `json:"birth_date" validate:"required"`
	Sex                string        `json:"sex" validate:"required,oneof=MALE FEMALE"`
	RegistrationNumber string        `json:"registration_number" validate:"required,max=30"`
}

func (in PersonInput) person(id uint64) model.Person {
	return model.Person{
		ID:                 id,
		Name:               strings.TrimSpace(in.Name),
		BirthDate:          in.BirthDate,
		Sex:                model.Sex(in.Sex),
		RegistrationNumber: strings.TrimSpace(in.RegistrationNumber),
	}
}

// MemberInput creates or edits a member.  New members start active; the
// flag changes afterwards only through deactivate and reactivate.
type MemberInput struct {
	PersonInput
	CPF     string `json:"cpf" validate:"required,numeric,len=11"`
	Address string `json:"address" validate:"max=200"`
	Phone   string `json:"phone" validate:"max=30"`
}

func (in MemberInput) Member(id uint64) *model.Member {
	m := &model.Member{Person: in.person(id), CPF: in.CPF, Address: in.Address, Phone: in.Phone}
	m.Active = true
	return m
}

type DependentInput struct {
	PersonInput
	MemberID uint64 `json:"member_id" validate:"required"`
	// Active defaults to true when omitted.
	Active *bool `json:"active"`
}

func (in DependentInput) Dependent(id uint64) *model.Dependent {
	d := &model.Dependent{Person: in.person(id), MemberID: in.MemberID}
	d.Active = in.Active == nil || *in.Active
	return d
}

// RentalInput opens a rental.  The client is named either by its
// prefixed key ("m-4", "d-9") or by kind and id.  A zero rental date
// means today.
type RentalInput struct {
	ClientKey      string        `json:"client_key" validate:"required_without=ClientID"`
	ClientKind     string        `json:"client_kind" validate:"required_with=ClientID,omitempty,oneof=MEMBER DEPENDENT"`
	ClientID       uint64        `json:"client_id"`
	ItemID         uint64        `json:"item_id" validate:"required"`
	RentalDate     calendar.Date `json:"rental_date"`
	ExpectedReturn calendar.Date `json:"expected_return_date" validate:"required"`
}

// Client resolves the client reference of the input.
func (in RentalInput) Client() (model.ClientKind, uint64, error) {
	if in.ClientKey != "" {
		return model.ParseClientKey(in.ClientKey)
	}
	return model.ClientKind(in.ClientKind), in.ClientID, nil
}

// RescheduleInput changes the dates of an open rental; a zero date keeps
// the stored value.
type RescheduleInput struct {
	RentalDate     calendar.Date `json:"rental_date"`
	ExpectedReturn calendar.Date `json:"expected_return_date"`
}

// ReturnInput records a return; a nil date means today.
type ReturnInput struct {
	ActualReturn *calendar.Date `json:"actual_return_date"`
}
