package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/media-rental/internal/calendar"
	"github.com/iliyamo/media-rental/internal/dto"
	"github.com/iliyamo/media-rental/internal/model"
	"github.com/iliyamo/media-rental/internal/rental"
	"github.com/iliyamo/media-rental/internal/repository"
	"github.com/iliyamo/media-rental/internal/service"
)

// RentalReader reads rentals with their display joins.
type RentalReader interface {
	List(ctx context.Context, q repository.ListQuery) (model.Page[*model.Rental], error)
	GetByID(ctx context.Context, id uint64) (*model.Rental, error)
}

// RentalCommands runs the rental lifecycle transitions.
type RentalCommands interface {
	Create(ctx context.Context, in service.CreateRentalInput) (*model.Rental, error)
	Reschedule(ctx context.Context, id uint64, rentalDate, expected calendar.Date) (*model.Rental, error)
	Return(ctx context.Context, id uint64, actual *calendar.Date) (*model.Rental, error)
	ConfirmPayment(ctx context.Context, id uint64) (*model.Rental, error)
	Delete(ctx context.Context, id uint64) error
	Settlement(ctx context.Context, id uint64) (*model.Rental, rental.Settlement, error)
}

// RentalHandler serves /v1/rentals.  Reads go straight to the
// repository; every mutation goes through the lifecycle service so its
// guards and row locks always apply.
type RentalHandler struct {
	base
	Repo RentalReader
	Svc  RentalCommands
}

func NewRentalHandler(repo RentalReader, svc RentalCommands, logger *slog.Logger) *RentalHandler {
	return &RentalHandler{base: newBase(logger), Repo: repo, Svc: svc}
}

func (h *RentalHandler) Register(g *echo.Group, prefix string) {
	g.GET(prefix, h.List)
	g.POST(prefix, h.Create)
	g.GET(prefix+"/:id", h.Get)
	g.PUT(prefix+"/:id", h.Reschedule)
	g.DELETE(prefix+"/:id", h.Delete)
	g.PATCH(prefix+"/:id/return", h.Return)
	g.PATCH(prefix+"/:id/payment", h.ConfirmPayment)
	g.GET(prefix+"/:id/settlement", h.Settlement)
}

// List handles GET /v1/rentals; status=open|returned|settled filters by
// lifecycle stage.
func (h *RentalHandler) List(c echo.Context) error {
	page, err := h.Repo.List(c.Request().Context(), listQuery(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *RentalHandler) Get(c echo.Context) error {
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	r, err := h.Repo.GetByID(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, r)
}

// Create handles POST /v1/rentals.
func (h *RentalHandler) Create(c echo.Context) error {
	var in dto.RentalInput
	if valid, err := bindValid(c, &in); !valid {
		return err
	}
	kind, clientID, err := in.Client()
	if err != nil {
		return badRequest(c, err.Error())
	}
	r, err := h.Svc.Create(c.Request().Context(), service.CreateRentalInput{
		ClientKind:     kind,
		ClientID:       clientID,
		ItemID:         in.ItemID,
		RentalDate:     in.RentalDate,
		ExpectedReturn: in.ExpectedReturn,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return created(c, r)
}

// Reschedule handles PUT /v1/rentals/:id.  Only the dates of an open
// rental can change.
func (h *RentalHandler) Reschedule(c echo.Context) error {
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	var in dto.RescheduleInput
	if valid, err := bindValid(c, &in); !valid {
		return err
	}
	r, err := h.Svc.Reschedule(c.Request().Context(), id, in.RentalDate, in.ExpectedReturn)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, r)
}

// Return handles PATCH /v1/rentals/:id/return.  The body is optional;
// without a date the return is recorded today.
func (h *RentalHandler) Return(c echo.Context) error {
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	var in dto.ReturnInput
	if valid, err := bindOptional(c, &in); !valid {
		return err
	}
	r, err := h.Svc.Return(c.Request().Context(), id, in.ActualReturn)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, r)
}

// ConfirmPayment handles PATCH /v1/rentals/:id/payment.
func (h *RentalHandler) ConfirmPayment(c echo.Context) error {
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	r, err := h.Svc.ConfirmPayment(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, r)
}

// Delete handles DELETE /v1/rentals/:id; only open rentals can go.
func (h *RentalHandler) Delete(c echo.Context) error {
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type settlementResult struct {
	Rental     *model.Rental     `json:"rental"`
	Settlement rental.Settlement `json:"settlement"`
}

// Settlement handles GET /v1/rentals/:id/settlement: days late, fee and
// total due of a returned rental.
func (h *RentalHandler) Settlement(c echo.Context) error {
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	r, s, err := h.Svc.Settlement(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, settlementResult{Rental: r, Settlement: s})
}
