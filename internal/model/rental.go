package model

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/media-rental/internal/calendar"
)

// RentalStatus is the lifecycle stage of a rental.  It is never stored;
// it follows from the actual return date and the paid flag.
type RentalStatus string

const (
	RentalOpen     RentalStatus = "OPEN"
	RentalReturned RentalStatus = "RETURNED"
	RentalSettled  RentalStatus = "SETTLED"
)

// Rental records a client taking an item.
//
// Fields:
//
//	ID             – primary key identifier.
//	ClientKind     – MEMBER or DEPENDENT; selects the table ClientID refers to.
//	ClientID       – member or dependent id.
//	ItemID         – rented copy.
//	RentalDate     – day the item left the shop.
//	ExpectedReturn – due date, never before RentalDate.
//	ActualReturn   – day the item came back; nil while outstanding.
//	Paid           – set once payment is confirmed after the return.
//	AmountCharged  – base value of the rental, the class value at creation.
//	LateFee        – fee computed when the return was recorded; nil before.
//	IsLate         – lateness computed when the return was recorded; nil before.
//	DaysLate       – signed day difference between due and actual return.
//	Status         – derived lifecycle stage.
type Rental struct {
	ID             uint64           `json:"id"`
	ClientKind     ClientKind       `json:"client_kind"`
	ClientID       uint64           `json:"client_id"`
	ItemID         uint64           `json:"item_id"`
	RentalDate     calendar.Date    `json:"rental_date"`
	ExpectedReturn calendar.Date    `json:"expected_return_date"`
	ActualReturn   *calendar.Date   `json:"actual_return_date"`
	Paid           bool             `json:"paid"`
	AmountCharged  decimal.Decimal  `json:"amount_charged"`
	LateFee        *decimal.Decimal `json:"late_fee"`
	IsLate         *bool            `json:"is_late"`
	DaysLate       *int             `json:"days_late"`
	Status         RentalStatus     `json:"status"`

	ClientName string `json:"client_name,omitempty"`
	TitleName  string `json:"title_name,omitempty"`
	ItemSerial string `json:"item_serial,omitempty"`
}

// ClientKey returns the prefixed key of the rental's client.
func (r *Rental) ClientKey() string { return ClientKey(r.ClientKind, r.ClientID) }
