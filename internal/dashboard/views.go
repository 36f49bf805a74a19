package dashboard

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/media-rental/internal/calendar"
	"github.com/iliyamo/media-rental/internal/model"
	"github.com/iliyamo/media-rental/internal/rental"
)

// Placeholders shown for missing values.
const (
	PendingDate = "Pendente"
	Missing     = "—"
)

// Dashboard builds the views of the dashboard on top of a Client.  Calc
// fills the late fee of rentals the backend has not settled yet.
type Dashboard struct {
	API  *Client
	Calc rental.Calculator
}

func New(api *Client, fees rental.FeeSchedule) *Dashboard {
	return &Dashboard{API: api, Calc: rental.NewCalculator(fees)}
}

// ReturnRow is one line of the returns view.
type ReturnRow struct {
	RentalID       uint64          `json:"rental_id"`
	ItemSerial     string          `json:"item_serial"`
	TitleName      string          `json:"title_name"`
	ClientName     string          `json:"client_name"`
	RentalDate     string          `json:"rental_date"`
	ExpectedReturn string          `json:"expected_return"`
	ActualReturn   string          `json:"actual_return"`
	Value          decimal.Decimal `json:"value"`
	LateFee        decimal.Decimal `json:"late_fee"`
	Total          decimal.Decimal `json:"total"`
	IsLate         bool            `json:"is_late"`
	DaysLate       int             `json:"days_late"`
	Paid           bool            `json:"paid"`
}

// catalog is the lookup data the returns view joins against.
type catalog struct {
	items   map[uint64]model.Item
	titles  map[uint64]model.Title
	classes map[uint64]model.Class
	clients map[string]model.ClientRef
}

// loadCatalog fetches items, titles, classes and clients concurrently.
// The first failure cancels the other requests.
func (d *Dashboard) loadCatalog(ctx context.Context, g *errgroup.Group, cat *catalog) {
	g.Go(func() error {
		items, err := listAll[model.Item](ctx, d.API, pathItems, ListParams{})
		cat.items = make(map[uint64]model.Item, len(items))
		for _, it := range items {
			cat.items[it.ID] = it
		}
		return err
	})
	g.Go(func() error {
		titles, err := listAll[model.Title](ctx, d.API, pathTitles, ListParams{})
		cat.titles = make(map[uint64]model.Title, len(titles))
		for _, t := range titles {
			cat.titles[t.ID] = t
		}
		return err
	})
	g.Go(func() error {
		classes, err := listAll[model.Class](ctx, d.API, pathClasses, ListParams{})
		cat.classes = make(map[uint64]model.Class, len(classes))
		for _, c := range classes {
			cat.classes[c.ID] = c
		}
		return err
	})
	g.Go(func() error {
		clients, err := listAll[model.ClientRef](ctx, d.API, pathClients, ListParams{})
		cat.clients = make(map[string]model.ClientRef, len(clients))
		for _, c := range clients {
			cat.clients[c.Key] = c
		}
		return err
	})
}

// ReturnsView lists every returned rental, paid or not, joined with its
// item, title and client.  The late fee reported by the backend wins;
// it is only computed locally when the backend sent none.  Total is the
// charged value plus the fee.
func (d *Dashboard) ReturnsView(ctx context.Context) ([]ReturnRow, error) {
	g, gctx := errgroup.WithContext(ctx)
	var (
		returned, settled []*model.Rental
		cat               catalog
	)
	g.Go(func() (err error) {
		returned, err = listAll[*model.Rental](gctx, d.API, pathRentals, ListParams{Status: "returned", Sort: "actual_return_date", Order: "desc"})
		return err
	})
	g.Go(func() (err error) {
		settled, err = listAll[*model.Rental](gctx, d.API, pathRentals, ListParams{Status: "settled", Sort: "actual_return_date", Order: "desc"})
		return err
	})
	d.loadCatalog(gctx, g, &cat)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var done []*model.Rental
	for _, r := range append(returned, settled...) {
		if r.ActualReturn != nil {
			done = append(done, r)
		}
	}
	// Most recent return first across both stages.
	sort.SliceStable(done, func(i, j int) bool {
		return done[i].ActualReturn.After(*done[j].ActualReturn)
	})

	rows := make([]ReturnRow, 0, len(done))
	for _, r := range done {
		row, err := d.returnRow(r, cat)
		if err != nil {
			return nil, fmt.Errorf("rental %d: %w", r.ID, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (d *Dashboard) returnRow(r *model.Rental, cat catalog) (ReturnRow, error) {
	item, hasItem := cat.items[r.ItemID]
	title, hasTitle := cat.titles[item.TitleID]
	client, hasClient := cat.clients[r.ClientKey()]

	row := ReturnRow{
		RentalID:       r.ID,
		ItemSerial:     pick(hasItem, item.SerialNumber, r.ItemSerial),
		TitleName:      pick(hasItem && hasTitle, title.Name, r.TitleName),
		ClientName:     pick(hasClient, client.Name, r.ClientName),
		RentalDate:     calendar.DisplayPtr(&r.RentalDate, PendingDate),
		ExpectedReturn: calendar.DisplayPtr(&r.ExpectedReturn, PendingDate),
		ActualReturn:   calendar.DisplayPtr(r.ActualReturn, PendingDate),
		Value:          r.AmountCharged,
		Paid:           r.Paid,
	}

	// The class only matters when the backend sent no fee.
	class := cat.classes[title.ClassID]
	s, err := d.Calc.Calculate(rental.SnapshotOf(r, class))
	if err != nil {
		return ReturnRow{}, err
	}
	row.LateFee = s.LateFee
	row.Total = s.TotalDue
	row.IsLate = s.IsLate
	row.DaysLate = s.DaysLate
	return row, nil
}

// pick returns the joined value when present, then the backend's own
// display field, then the placeholder.
func pick(joined bool, value, fallback string) string {
	switch {
	case joined && value != "":
		return value
	case fallback != "":
		return fallback
	}
	return Missing
}

// RentalOption is an entry of the open rentals picker.
type RentalOption struct {
	ID    uint64 `json:"id"`
	Label string `json:"label"`
}

// OpenRentals lists the rentals that can still be returned, as picker
// options.
func (d *Dashboard) OpenRentals(ctx context.Context) ([]RentalOption, error) {
	open, err := listAll[*model.Rental](ctx, d.API, pathRentals, ListParams{Status: "open", Sort: "expected_return_date", Order: "asc"})
	if err != nil {
		return nil, err
	}
	out := make([]RentalOption, 0, len(open))
	for _, r := range open {
		out = append(out, RentalOption{
			ID: r.ID,
			Label: fmt.Sprintf("#%d %s %s / %s, due %s", r.ID,
				orMissing(r.ItemSerial), orMissing(r.TitleName), orMissing(r.ClientName), r.ExpectedReturn.Display()),
		})
	}
	return out, nil
}

func orMissing(s string) string {
	if s == "" {
		return Missing
	}
	return s
}

// TitleDetail is a title with its director, class and cast resolved.
type TitleDetail struct {
	Title    *model.Title    `json:"title"`
	Director *model.Director `json:"director"`
	Class    *model.Class    `json:"class"`
	Actors   []*model.Actor  `json:"actors"`
}

// TitleDetail loads a title, then its director, class and actors
// concurrently.
func (d *Dashboard) TitleDetail(ctx context.Context, id uint64) (*TitleDetail, error) {
	t, err := d.API.Title(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &TitleDetail{Title: t, Actors: make([]*model.Actor, len(t.ActorIDs))}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Director, err = d.API.Director(gctx, t.DirectorID)
		return err
	})
	g.Go(func() (err error) {
		out.Class, err = d.API.Class(gctx, t.ClassID)
		return err
	})
	for i, actorID := range t.ActorIDs {
		g.Go(func() (err error) {
			out.Actors[i], err = d.API.Actor(gctx, actorID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// MergeRental puts an updated rental into a loaded list in place, or
// appends it when the list did not have it.  The input slice is not
// modified.
func MergeRental(rows []*model.Rental, updated *model.Rental) []*model.Rental {
	out := make([]*model.Rental, len(rows), len(rows)+1)
	copy(out, rows)
	for i, r := range out {
		if r.ID == updated.ID {
			out[i] = updated
			return out
		}
	}
	return append(out, updated)
}

// RemoveRental drops a deleted rental from a loaded list.
func RemoveRental(rows []*model.Rental, id uint64) []*model.Rental {
	out := make([]*model.Rental, 0, len(rows))
	for _, r := range rows {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}
