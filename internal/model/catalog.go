package model

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/media-rental/internal/calendar"
)

func init() {
	// Money travels as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Return period bounds for a class, in days.
const (
	MinReturnDays = 1
	MaxReturnDays = 7
)

// Actor is a performer credited on titles.  TitleCount is derived from
// the title_actors relation and blocks deletion while non-zero.
type Actor struct {
	ID         uint64 `json:"id"`          // actors.id
	Name       string `json:"name"`        // actors.name
	TitleCount int    `json:"title_count"` // COUNT(title_actors)
}

// Director directs titles.  TitleCount blocks deletion while non-zero.
type Director struct {
	ID         uint64 `json:"id"`          // directors.id
	Name       string `json:"name"`        // directors.name
	TitleCount int    `json:"title_count"` // COUNT(titles)
}

// Class is a pricing and return-policy tier assigned to titles.
//
// Fields:
//
//	ID         – primary key identifier.
//	Name       – display name ("Lançamento", "Catálogo", ...).
//	Value      – amount charged for a rental of a title in this class.
//	ReturnDays – maximum rental window in days, MinReturnDays..MaxReturnDays.
//	TitleCount – derived number of titles using the class.
type Class struct {
	ID         uint64          `json:"id"`
	Name       string          `json:"name"`
	Value      decimal.Decimal `json:"value"`
	ReturnDays int             `json:"return_days"`
	TitleCount int             `json:"title_count"`
}

// Title is a catalogued work.  AvailableItems is derived from the items
// of the title that have no open rental.
type Title struct {
	ID             uint64   `json:"id"`
	Name           string   `json:"name"`
	OriginalName   string   `json:"original_name"`
	Year           int      `json:"year"`
	Synopsis       string   `json:"synopsis"`
	Category       string   `json:"category"`
	DirectorID     uint64   `json:"director_id"`
	ClassID        uint64   `json:"class_id"`
	ActorIDs       []uint64 `json:"actor_ids"`
	ItemCount      int      `json:"item_count"`
	AvailableItems int      `json:"available_items"`
	DirectorName   string   `json:"director_name,omitempty"`
	ClassName      string   `json:"class_name,omitempty"`
}

// MediaType is the physical format of an item.
type MediaType string

const (
	MediaVHS    MediaType = "VHS"
	MediaDVD    MediaType = "DVD"
	MediaBluRay MediaType = "BLU_RAY"
)

// Valid reports whether m is one of the known media types.
func (m MediaType) Valid() bool {
	switch m {
	case MediaVHS, MediaDVD, MediaBluRay:
		return true
	}
	return false
}

// ItemStatus tells whether an item can be rented right now.
type ItemStatus string

const (
	ItemAvailable   ItemStatus = "AVAILABLE"
	ItemUnavailable ItemStatus = "UNAVAILABLE"
)

// Item is a physical copy of a title.
//
// Fields:
//
//	ID           – primary key identifier.
//	SerialNumber – unique serial printed on the copy.
//	TitleID      – title the copy belongs to.
//	MediaType    – VHS, DVD or BLU_RAY.
//	AcquiredOn   – acquisition date.
//	RentalCount  – derived count of rentals ever made of the copy.
//	Status       – derived; UNAVAILABLE while an open rental references it.
//	ClassID      – class of the title, joined for pricing.
type Item struct {
	ID           uint64        `json:"id"`
	SerialNumber string        `json:"serial_number"`
	TitleID      uint64        `json:"title_id"`
	TitleName    string        `json:"title_name,omitempty"`
	MediaType    MediaType     `json:"media_type"`
	AcquiredOn   calendar.Date `json:"acquisition_date"`
	RentalCount  int           `json:"rental_count"`
	Status       ItemStatus    `json:"status"`
	ClassID      uint64        `json:"class_id,omitempty"`
}

// Available reports whether the item has no open rental.
func (i *Item) Available() bool { return i.Status == ItemAvailable }
