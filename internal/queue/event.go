// Package queue defines the domain events exchanged over the message
// broker and the consumer that records them.
package queue

import (
	"time"

	"github.com/shopspring/decimal"
)

// QueueName is the durable queue every rental and membership event is
// published to.
const QueueName = "rental.events"

// Event types.
const (
	RentalCreated       = "rental.created"
	RentalReturned      = "rental.returned"
	RentalSettled       = "rental.settled"
	RentalDeleted       = "rental.deleted"
	MemberStatusChanged = "member.status_changed"
)

// Event is published after a mutation commits.  It carries enough for
// downstream consumers to log or notify without querying the database;
// fields that do not apply to a type are left empty.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	RentalID       uint64           `json:"rental_id,omitempty"`
	ClientKey      string           `json:"client_key,omitempty"`
	ItemID         uint64           `json:"item_id,omitempty"`
	RentalDate     string           `json:"rental_date,omitempty"`
	ExpectedReturn string           `json:"expected_return_date,omitempty"`
	ActualReturn   string           `json:"actual_return_date,omitempty"`
	AmountCharged  *decimal.Decimal `json:"amount_charged,omitempty"`
	LateFee        *decimal.Decimal `json:"late_fee,omitempty"`
	DaysLate       *int             `json:"days_late,omitempty"`

	MemberID     uint64   `json:"member_id,omitempty"`
	Active       *bool    `json:"active,omitempty"`
	DependentIDs []uint64 `json:"dependent_ids,omitempty"`
}
