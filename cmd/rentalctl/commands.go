package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/media-rental/internal/calendar"
	"github.com/iliyamo/media-rental/internal/config"
	"github.com/iliyamo/media-rental/internal/dashboard"
	"github.com/iliyamo/media-rental/internal/dto"
	"github.com/iliyamo/media-rental/internal/model"
	"github.com/iliyamo/media-rental/internal/rental"
	"github.com/iliyamo/media-rental/internal/utils"
)

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"rentals":    {"list rentals (-status open|returned|settled, -q)", cmdRentals},
	"open":       {"list rentals that can be returned", cmdOpen},
	"returns":    {"returns view with late fees and totals (-watch 30s)", cmdReturns},
	"rent":       {"open a rental (-client m-4 -item 3 -due 2024-01-08 [-date])", cmdRent},
	"return":     {"record a return (<id> [-date] [-list])", cmdReturn},
	"pay":        {"confirm payment of a returned rental (<id> [-list])", cmdPay},
	"reschedule": {"change the dates of an open rental (<id> [-date] [-due] [-list])", cmdReschedule},
	"delete":     {"delete an open rental (<id> [-list])", cmdDelete},
	"settle":     {"show days late, fee and total due (<id>)", cmdSettle},
	"title":      {"title detail with director, class and cast (<id>)", cmdTitle},
	"clients":    {"list members and dependents (-q, -status active|inactive)", cmdClients},
	"deactivate": {"deactivate a member and its dependents (<id>)", cmdDeactivate},
	"reactivate": {"reactivate a member and up to the cap of dependents (<id>)", cmdReactivate},
	"token":      {"mint an API token (-secret -sub -role -ttl)", cmdToken},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: rentalctl <command> [flags]")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-11s %s\n", n, commands[n].summary)
	}
}

// app builds the client lazily so "token" and "help" work without any
// API configuration.
type app struct {
	out  io.Writer
	dash *dashboard.Dashboard
}

func (a *app) dashboard() (*dashboard.Dashboard, error) {
	if a.dash != nil {
		return a.dash, nil
	}
	policy, err := config.LoadPolicy()
	if err != nil {
		return nil, err
	}
	fees, err := rental.NewFeeSchedule(policy.LateFeePolicy, policy.LateFeePerDay, policy.LateFeeClassFactor)
	if err != nil {
		return nil, err
	}
	a.dash = dashboard.New(dashboard.NewClient(config.LoadClientConfig()), fees)
	return a.dash, nil
}

func (a *app) api() (*dashboard.Client, error) {
	d, err := a.dashboard()
	if err != nil {
		return nil, err
	}
	return d.API, nil
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
}

// describe renders an error as the one-line notification shown to the
// clerk.
func describe(err error) string {
	var (
		verr *dashboard.ValidationError
		cerr *dashboard.ConflictError
		nerr *dashboard.NotFoundError
		terr *dashboard.NetworkError
	)
	switch {
	case errors.As(err, &verr):
		return "invalid input: " + fmt.Sprint(verr.Fields)
	case errors.As(err, &cerr):
		return fmt.Sprintf("rejected (%s): %s", cerr.Code, cerr.Message)
	case errors.As(err, &nerr):
		return "not found: " + nerr.Message
	case errors.As(err, &terr):
		return "network error: " + terr.Error()
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "error: " + err.Error()
}

// idArg parses the single positional id of a command, which may come
// before or after the flags.
func idArg(fs *flag.FlagSet, args []string) (uint64, error) {
	var pos []string
	for len(args) > 0 {
		if err := fs.Parse(args); err != nil {
			return 0, err
		}
		args = fs.Args()
		if len(args) > 0 {
			pos = append(pos, args[0])
			args = args[1:]
		}
	}
	if len(pos) != 1 {
		return 0, errors.New("expected exactly one id")
	}
	id, err := strconv.ParseUint(pos[0], 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Errorf("invalid id %q", pos[0])
	}
	return id, nil
}

func dateFlag(fs *flag.FlagSet, name, usage string) *string {
	return fs.String(name, "", usage+" (YYYY-MM-DD)")
}

func parseOptionalDate(s string) (calendar.Date, error) {
	if s == "" {
		return calendar.Date{}, nil
	}
	return calendar.Parse(s)
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func printRentals(a *app, rows []*model.Rental) {
	w := a.table()
	fmt.Fprintln(w, "ID\tSTATUS\tCLIENT\tITEM\tTITLE\tRENTED\tDUE\tRETURNED\tVALUE\tFEE\tPAID")
	for _, r := range rows {
		fee := "-"
		if r.LateFee != nil {
			fee = r.LateFee.StringFixed(2)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			r.ID, r.Status, r.ClientName, r.ItemSerial, r.TitleName,
			r.RentalDate.Display(), r.ExpectedReturn.Display(),
			calendar.DisplayPtr(r.ActualReturn, dashboard.PendingDate),
			r.AmountCharged.StringFixed(2), fee, r.Paid)
	}
	w.Flush()
}

// listFlag adds the -list switch of the rental mutations.
func listFlag(fs *flag.FlagSet) *bool {
	return fs.Bool("list", false, "print the rentals page with the change applied")
}

// loadPage reads the first rentals page when the caller asked for the
// list.  It is read before the mutation, the way the rentals screen
// already holds its rows when a clerk acts on one of them.
func loadPage(ctx context.Context, api *dashboard.Client, list bool) ([]*model.Rental, error) {
	if !list {
		return nil, nil
	}
	page, err := api.Rentals(ctx, dashboard.ListParams{})
	if err != nil {
		return nil, err
	}
	return page.Data, nil
}

// mutateRental runs a rental mutation and prints either the updated
// rental or, with -list, the loaded page with the row replaced in place.
func mutateRental(ctx context.Context, a *app, list bool, fn func(*dashboard.Client) (*model.Rental, error)) error {
	api, err := a.api()
	if err != nil {
		return err
	}
	rows, err := loadPage(ctx, api, list)
	if err != nil {
		return err
	}
	r, err := fn(api)
	if err != nil {
		return err
	}
	if !list {
		printRentals(a, []*model.Rental{r})
		return nil
	}
	printRentals(a, dashboard.MergeRental(rows, r))
	return nil
}

func cmdRentals(ctx context.Context, a *app, args []string) error {
	fs := newFlags("rentals")
	status := fs.String("status", "", "open, returned or settled")
	q := fs.String("q", "", "search")
	pageN := fs.Int("page", 1, "page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	api, err := a.api()
	if err != nil {
		return err
	}
	page, err := api.Rentals(ctx, dashboard.ListParams{Status: *status, Q: *q, Page: *pageN})
	if err != nil {
		return err
	}
	printRentals(a, page.Data)
	fmt.Fprintf(a.out, "page %d, %d of %d\n", page.Page, len(page.Data), page.Total)
	return nil
}

func cmdOpen(ctx context.Context, a *app, args []string) error {
	d, err := a.dashboard()
	if err != nil {
		return err
	}
	opts, err := d.OpenRentals(ctx)
	if err != nil {
		return err
	}
	for _, o := range opts {
		fmt.Fprintln(a.out, o.Label)
	}
	return nil
}

func cmdReturns(ctx context.Context, a *app, args []string) error {
	fs := newFlags("returns")
	watch := fs.Duration("watch", 0, "reload at this interval until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	d, err := a.dashboard()
	if err != nil {
		return err
	}
	var loader dashboard.Loader[[]dashboard.ReturnRow]
	if *watch <= 0 {
		rows, err := loader.Load(ctx, d.ReturnsView)
		if err != nil {
			return err
		}
		return printReturns(a, rows)
	}
	return watchReturns(ctx, a, d, &loader, *watch)
}

type returnsResult struct {
	rows []dashboard.ReturnRow
	err  error
}

// watchReturns reloads the returns view on every tick.  A reload that is
// still running when the next tick fires is cancelled by the loader and
// its result dropped, so the table never goes back to older data.
// Failures are reported and the next tick tries again.
func watchReturns(ctx context.Context, a *app, d *dashboard.Dashboard, loader *dashboard.Loader[[]dashboard.ReturnRow], every time.Duration) error {
	results := make(chan returnsResult)
	load := func() {
		go func() {
			rows, err := loader.Load(ctx, d.ReturnsView)
			select {
			case results <- returnsResult{rows: rows, err: err}:
			case <-ctx.Done():
			}
		}()
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	load()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			load()
		case res := <-results:
			switch {
			case errors.Is(res.err, dashboard.ErrStale):
			case res.err != nil && ctx.Err() != nil:
				return nil
			case res.err != nil:
				fmt.Fprintln(a.out, describe(res.err))
			default:
				fmt.Fprintf(a.out, "generation %d\n", loader.Generation())
				if err := printReturns(a, res.rows); err != nil {
					return err
				}
			}
		}
	}
}

func printReturns(a *app, rows []dashboard.ReturnRow) error {
	w := a.table()
	fmt.Fprintln(w, "ID\tSERIAL\tTITLE\tCLIENT\tRENTED\tDUE\tRETURNED\tLATE\tVALUE\tFEE\tTOTAL\tPAID")
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%t\t%s\t%s\t%s\t%t\n",
			r.RentalID, r.ItemSerial, r.TitleName, r.ClientName,
			r.RentalDate, r.ExpectedReturn, r.ActualReturn, r.IsLate,
			r.Value.StringFixed(2), r.LateFee.StringFixed(2), r.Total.StringFixed(2), r.Paid)
	}
	return w.Flush()
}

func cmdRent(ctx context.Context, a *app, args []string) error {
	fs := newFlags("rent")
	client := fs.String("client", "", "client key, m-<id> or d-<id>")
	item := fs.Uint64("item", 0, "item id")
	date := dateFlag(fs, "date", "rental date, default today")
	due := dateFlag(fs, "due", "expected return date")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rentalDate, err := parseOptionalDate(*date)
	if err != nil {
		return err
	}
	expected, err := parseOptionalDate(*due)
	if err != nil {
		return err
	}
	api, err := a.api()
	if err != nil {
		return err
	}
	r, err := api.CreateRental(ctx, dto.RentalInput{
		ClientKey:      *client,
		ItemID:         *item,
		RentalDate:     rentalDate,
		ExpectedReturn: expected,
	})
	if err != nil {
		return err
	}
	printRentals(a, []*model.Rental{r})
	return nil
}

func cmdReturn(ctx context.Context, a *app, args []string) error {
	fs := newFlags("return")
	date := dateFlag(fs, "date", "actual return date, default today")
	list := listFlag(fs)
	id, err := idArg(fs, args)
	if err != nil {
		return err
	}
	var actual *calendar.Date
	if *date != "" {
		d, err := calendar.Parse(*date)
		if err != nil {
			return err
		}
		actual = &d
	}
	return mutateRental(ctx, a, *list, func(api *dashboard.Client) (*model.Rental, error) {
		return api.ReturnRental(ctx, id, actual)
	})
}

func cmdPay(ctx context.Context, a *app, args []string) error {
	fs := newFlags("pay")
	list := listFlag(fs)
	id, err := idArg(fs, args)
	if err != nil {
		return err
	}
	return mutateRental(ctx, a, *list, func(api *dashboard.Client) (*model.Rental, error) {
		return api.ConfirmPayment(ctx, id)
	})
}

func cmdReschedule(ctx context.Context, a *app, args []string) error {
	fs := newFlags("reschedule")
	date := dateFlag(fs, "date", "new rental date")
	due := dateFlag(fs, "due", "new expected return date")
	list := listFlag(fs)
	id, err := idArg(fs, args)
	if err != nil {
		return err
	}
	var in dto.RescheduleInput
	if in.RentalDate, err = parseOptionalDate(*date); err != nil {
		return err
	}
	if in.ExpectedReturn, err = parseOptionalDate(*due); err != nil {
		return err
	}
	return mutateRental(ctx, a, *list, func(api *dashboard.Client) (*model.Rental, error) {
		return api.RescheduleRental(ctx, id, in)
	})
}

func cmdDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlags("delete")
	list := listFlag(fs)
	id, err := idArg(fs, args)
	if err != nil {
		return err
	}
	api, err := a.api()
	if err != nil {
		return err
	}
	rows, err := loadPage(ctx, api, *list)
	if err != nil {
		return err
	}
	if err := api.DeleteRental(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "rental %d deleted\n", id)
	if *list {
		printRentals(a, dashboard.RemoveRental(rows, id))
	}
	return nil
}

func cmdSettle(ctx context.Context, a *app, args []string) error {
	id, err := idArg(newFlags("settle"), args)
	if err != nil {
		return err
	}
	api, err := a.api()
	if err != nil {
		return err
	}
	res, err := api.Settlement(ctx, id)
	if err != nil {
		return err
	}
	s := res.Settlement
	fmt.Fprintf(a.out, "rental %d: days late %d, late %t, fee %s, total due %s\n",
		id, s.DaysLate, s.IsLate, s.LateFee.StringFixed(2), s.TotalDue.StringFixed(2))
	return nil
}

func cmdTitle(ctx context.Context, a *app, args []string) error {
	id, err := idArg(newFlags("title"), args)
	if err != nil {
		return err
	}
	d, err := a.dashboard()
	if err != nil {
		return err
	}
	detail, err := d.TitleDetail(ctx, id)
	if err != nil {
		return err
	}
	t := detail.Title
	fmt.Fprintf(a.out, "%s (%d)\n", t.Name, t.Year)
	if t.OriginalName != "" {
		fmt.Fprintf(a.out, "original: %s\n", t.OriginalName)
	}
	fmt.Fprintf(a.out, "director: %s\n", detail.Director.Name)
	fmt.Fprintf(a.out, "class: %s, %s for %d days\n", detail.Class.Name, detail.Class.Value.StringFixed(2), detail.Class.ReturnDays)
	for _, actor := range detail.Actors {
		fmt.Fprintf(a.out, "cast: %s\n", actor.Name)
	}
	fmt.Fprintf(a.out, "copies: %d, available: %d\n", t.ItemCount, t.AvailableItems)
	return nil
}

func cmdClients(ctx context.Context, a *app, args []string) error {
	fs := newFlags("clients")
	q := fs.String("q", "", "search")
	status := fs.String("status", "", "active or inactive")
	if err := fs.Parse(args); err != nil {
		return err
	}
	api, err := a.api()
	if err != nil {
		return err
	}
	page, err := api.Clients(ctx, dashboard.ListParams{Q: *q, Status: *status})
	if err != nil {
		return err
	}
	w := a.table()
	fmt.Fprintln(w, "KEY\tKIND\tNAME\tACTIVE\tREGISTRATION")
	for _, c := range page.Data {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", c.Key, c.Kind, c.Name, c.Active, c.RegistrationNumber)
	}
	return w.Flush()
}

func cmdDeactivate(ctx context.Context, a *app, args []string) error {
	return activation(ctx, a, "deactivate", args, (*dashboard.Client).DeactivateMember)
}

func cmdReactivate(ctx context.Context, a *app, args []string) error {
	return activation(ctx, a, "reactivate", args, (*dashboard.Client).ReactivateMember)
}

func activation(ctx context.Context, a *app, name string, args []string,
	fn func(*dashboard.Client, context.Context, uint64) (dashboard.Activation, error)) error {
	id, err := idArg(newFlags(name), args)
	if err != nil {
		return err
	}
	api, err := a.api()
	if err != nil {
		return err
	}
	res, err := fn(api, ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "member %d active=%t, %d dependents changed\n", res.Member.ID, res.Member.Active, len(res.Changed))
	for _, d := range res.Changed {
		fmt.Fprintf(a.out, "  dependent %d %s active=%t\n", d.ID, d.Name, d.Active)
	}
	return nil
}

func cmdToken(ctx context.Context, a *app, args []string) error {
	fs := newFlags("token")
	secret := fs.String("secret", "", "HS256 secret, default $JWT_SECRET")
	sub := fs.String("sub", "", "subject")
	role := fs.String("role", "CLERK", "ADMIN or CLERK")
	ttl := fs.Duration("ttl", 12*time.Hour, "lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *secret == "" {
		*secret = config.JWTSecret()
	}
	if *sub == "" {
		return errors.New("-sub is required")
	}
	tok, err := utils.NewAccessToken(*secret, *sub, *role, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, tok.Token)
	return nil
}
