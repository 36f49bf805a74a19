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

// MemberActivation switches a member together with its dependents.
type MemberActivation interface {
	Deactivate(ctx context.Context, id uint64) (*model.Member, []*model.Dependent, error)
	Reactivate(ctx context.Context, id uint64) (*model.Member, []*model.Dependent, error)
}

// MemberHandler serves member CRUD plus the activation cascade.
type MemberHandler struct {
	*Resource[model.Member, *model.Member, dto.MemberInput]
	Svc MemberActivation
}

func NewMemberHandler(s Store[model.Member, *model.Member], svc MemberActivation, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{Resource: newResource(s, dto.MemberInput.Member, logger), Svc: svc}
}

// Register mounts CRUD and the two activation routes.
func (h *MemberHandler) Register(g *echo.Group, prefix string) {
	h.Resource.Register(g, prefix)
	g.POST(prefix+"/:id/deactivate", h.Deactivate)
	g.POST(prefix+"/:id/reactivate", h.Reactivate)
}

// activationResult is the body of deactivate/reactivate: the member as
// stored afterwards and the dependents whose flag changed.
type activationResult struct {
	Member  *model.Member      `json:"member"`
	Changed []*model.Dependent `json:"changed_dependents"`
}

// Deactivate handles POST /v1/members/:id/deactivate.
func (h *MemberHandler) Deactivate(c echo.Context) error {
	return h.activate(c, h.Svc.Deactivate)
}

// Reactivate handles POST /v1/members/:id/reactivate.
func (h *MemberHandler) Reactivate(c echo.Context) error {
	return h.activate(c, h.Svc.Reactivate)
}

func (h *MemberHandler) activate(c echo.Context,
	fn func(context.Context, uint64) (*model.Member, []*model.Dependent, error)) error {
	id, valid := parseID(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	m, changed, err := fn(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	if changed == nil {
		changed = []*model.Dependent{}
	}
	return ok(c, activationResult{Member: m, Changed: changed})
}

// ClientLister lists members and dependents together.
type ClientLister interface {
	List(ctx context.Context, q repository.ListQuery) (model.Page[model.ClientRef], error)
}

type ClientHandler struct {
	base
	Repo ClientLister
}

func NewClientHandler(repo ClientLister, logger *slog.Logger) *ClientHandler {
	return &ClientHandler{base: newBase(logger), Repo: repo}
}

// List handles GET /v1/clients.  Rows carry a kind tag and a prefixed
// key; status=active|inactive filters by the active flag.
func (h *ClientHandler) List(c echo.Context) error {
	page, err := h.Repo.List(c.Request().Context(), listQuery(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, page)
}
