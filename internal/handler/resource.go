package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/media-rental/internal/dto"
	"github.com/iliyamo/media-rental/internal/model"
	"github.com/iliyamo/media-rental/internal/repository"
)

// Store is the repository surface a CRUD resource needs.  T is the
// entity and L the element type of its listing (the entity itself or a
// pointer to it).
type Store[T, L any] interface {
	List(ctx context.Context, q repository.ListQuery) (model.Page[L], error)
	GetByID(ctx context.Context, id uint64) (*T, error)
	Create(ctx context.Context, v *T) error
	Update(ctx context.Context, v *T) error
	Delete(ctx context.Context, id uint64) error
}

// Resource serves list, get, create, update and delete for one entity.
// Build turns a validated request body into the entity to store; id is
// zero on create.
type Resource[T, L, In any] struct {
	base
	Store Store[T, L]
	Build func(in In, id uint64) *T
}

func newResource[T, L, In any](store Store[T, L], build func(In, uint64) *T, logger *slog.Logger) *Resource[T, L, In] {
	return &Resource[T, L, In]{base: newBase(logger), Store: store, Build: build}
}

// Register mounts the five routes under prefix.
func (h *Resource[T, L, In]) Register(g *echo.Group, prefix string) {
	g.GET(prefix, h.List)
	g.POST(prefix, h.Create)
	g.GET(prefix+"/:id", h.Get)
	g.PUT(prefix+"/:id", h.Update)
	g.DELETE(prefix+"/:id", h.Delete)
}

// List handles GET <prefix> with the shared list parameters.
func (h *Resource[T, L, In]) List(c echo.Context) error {
	page, err := h.Store.List(c.Request().Context(), listQuery(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Resource[T, L, In]) Get(c echo.Context) error {
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	v, err := h.Store.GetByID(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, v)
}

// Create stores a new entity and answers it re-read, so derived counts
// are filled in.
func (h *Resource[T, L, In]) Create(c echo.Context) error {
	var in In
	if valid, err := bindValid(c, &in); !valid {
		return err
	}
	v := h.Build(in, 0)
	ctx := c.Request().Context()
	if err := h.Store.Create(ctx, v); err != nil {
		return h.fail(c, err)
	}
	id := entityID(v)
	out, err := h.Store.GetByID(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return created(c, out)
}

func (h *Resource[T, L, In]) Update(c echo.Context) error {
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	var in In
	if valid, err := bindValid(c, &in); !valid {
		return err
	}
	ctx := c.Request().Context()
	if err := h.Store.Update(ctx, h.Build(in, id)); err != nil {
		return h.fail(c, err)
	}
	out, err := h.Store.GetByID(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, out)
}

// Delete answers 204, or 409 while other records depend on the entity.
func (h *Resource[T, L, In]) Delete(c echo.Context) error {
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	if err := h.Store.Delete(c.Request().Context(), id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// entityID reads the id the repository assigned on insert.
func entityID(v any) uint64 {
	switch e := v.(type) {
	case *model.Actor:
		return e.ID
	case *model.Director:
		return e.ID
	case *model.Class:
		return e.ID
	case *model.Title:
		return e.ID
	case *model.Item:
		return e.ID
	case *model.Member:
		return e.ID
	case *model.Dependent:
		return e.ID
	}
	return 0
}

type (
	ActorHandler     = Resource[model.Actor, model.Actor, dto.NameInput]
	DirectorHandler  = Resource[model.Director, model.Director, dto.NameInput]
	ClassHandler     = Resource[model.Class, model.Class, dto.ClassInput]
	TitleHandler     = Resource[model.Title, model.Title, dto.TitleInput]
	ItemHandler      = Resource[model.Item, model.Item, dto.ItemInput]
	DependentHandler = Resource[model.Dependent, *model.Dependent, dto.DependentInput]
)

func NewActorHandler(s Store[model.Actor, model.Actor], logger *slog.Logger) *ActorHandler {
	return newResource(s, dto.NameInput.Actor, logger)
}

func NewDirectorHandler(s Store[model.Director, model.Director], logger *slog.Logger) *DirectorHandler {
	return newResource(s, dto.NameInput.Director, logger)
}

func NewClassHandler(s Store[model.Class, model.Class], logger *slog.Logger) *ClassHandler {
	return newResource(s, dto.ClassInput.Class, logger)
}

func NewTitleHandler(s Store[model.Title, model.Title], logger *slog.Logger) *TitleHandler {
	return newResource(s, dto.TitleInput.Title, logger)
}

func NewItemHandler(s Store[model.Item, model.Item], logger *slog.Logger) *ItemHandler {
	return newResource(s, dto.ItemInput.Item, logger)
}

func NewDependentHandler(s Store[model.Dependent, *model.Dependent], logger *slog.Logger) *DependentHandler {
	return newResource(s, dto.DependentInput.Dependent, logger)
}
