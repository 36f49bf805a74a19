package dashboard

import (
	"context"
	"net/http"

	"github.com/iliyamo/media-rental/internal/calendar"
	"github.com/iliyamo/media-rental/internal/dto"
	"github.com/iliyamo/media-rental/internal/model"
	"github.com/iliyamo/media-rental/internal/rental"
)

const (
	pathActors     = "/v1/actors"
	pathDirectors  = "/v1/directors"
	pathClasses    = "/v1/classes"
	pathTitles     = "/v1/titles"
	pathItems      = "/v1/items"
	pathMembers    = "/v1/members"
	pathDependents = "/v1/dependents"
	pathClients    = "/v1/clients"
	pathRentals    = "/v1/rentals"
)

func (c *Client) Actors(ctx context.Context, p ListParams) (model.Page[model.Actor], error) {
	return list[model.Actor](ctx, c, pathActors, p)
}

func (c *Client) Actor(ctx context.Context, id uint64) (*model.Actor, error) {
	return getData[*model.Actor](ctx, c, http.MethodGet, idPath(pathActors, id), nil)
}

func (c *Client) CreateActor(ctx context.Context, in dto.NameInput) (*model.Actor, error) {
	return getData[*model.Actor](ctx, c, http.MethodPost, pathActors, in)
}

func (c *Client) Directors(ctx context.Context, p ListParams) (model.Page[model.Director], error) {
	return list[model.Director](ctx, c, pathDirectors, p)
}

func (c *Client) Director(ctx context.Context, id uint64) (*model.Director, error) {
	return getData[*model.Director](ctx, c, http.MethodGet, idPath(pathDirectors, id), nil)
}

func (c *Client) CreateDirector(ctx context.Context, in dto.NameInput) (*model.Director, error) {
	return getData[*model.Director](ctx, c, http.MethodPost, pathDirectors, in)
}

func (c *Client) Classes(ctx context.Context, p ListParams) (model.Page[model.Class], error) {
	return list[model.Class](ctx, c, pathClasses, p)
}

func (c *Client) Class(ctx context.Context, id uint64) (*model.Class, error) {
	return getData[*model.Class](ctx, c, http.MethodGet, idPath(pathClasses, id), nil)
}

func (c *Client) CreateClass(ctx context.Context, in dto.ClassInput) (*model.Class, error) {
	return getData[*model.Class](ctx, c, http.MethodPost, pathClasses, in)
}

func (c *Client) Titles(ctx context.Context, p ListParams) (model.Page[model.Title], error) {
	return list[model.Title](ctx, c, pathTitles, p)
}

func (c *Client) Title(ctx context.Context, id uint64) (*model.Title, error) {
	return getData[*model.Title](ctx, c, http.MethodGet, idPath(pathTitles, id), nil)
}

func (c *Client) CreateTitle(ctx context.Context, in dto.TitleInput) (*model.Title, error) {
	return getData[*model.Title](ctx, c, http.MethodPost, pathTitles, in)
}

func (c *Client) Items(ctx context.Context, p ListParams) (model.Page[model.Item], error) {
	return list[model.Item](ctx, c, pathItems, p)
}

func (c *Client) Item(ctx context.Context, id uint64) (*model.Item, error) {
	return getData[*model.Item](ctx, c, http.MethodGet, idPath(pathItems, id), nil)
}

func (c *Client) CreateItem(ctx context.Context, in dto.ItemInput) (*model.Item, error) {
	return getData[*model.Item](ctx, c, http.MethodPost, pathItems, in)
}

func (c *Client) Members(ctx context.Context, p ListParams) (model.Page[*model.Member], error) {
	return list[*model.Member](ctx, c, pathMembers, p)
}

func (c *Client) CreateMember(ctx context.Context, in dto.MemberInput) (*model.Member, error) {
	return getData[*model.Member](ctx, c, http.MethodPost, pathMembers, in)
}

func (c *Client) CreateDependent(ctx context.Context, in dto.DependentInput) (*model.Dependent, error) {
	return getData[*model.Dependent](ctx, c, http.MethodPost, pathDependents, in)
}

// Activation is the answer of deactivate and reactivate.
type Activation struct {
	Member  *model.Member      `json:"member"`
	Changed []*model.Dependent `json:"changed_dependents"`
}

func (c *Client) DeactivateMember(ctx context.Context, id uint64) (Activation, error) {
	return getData[Activation](ctx, c, http.MethodPost, idPath(pathMembers, id)+"/deactivate", nil)
}

func (c *Client) ReactivateMember(ctx context.Context, id uint64) (Activation, error) {
	return getData[Activation](ctx, c, http.MethodPost, idPath(pathMembers, id)+"/reactivate", nil)
}

// Clients lists members and dependents together.
func (c *Client) Clients(ctx context.Context, p ListParams) (model.Page[model.ClientRef], error) {
	return list[model.ClientRef](ctx, c, pathClients, p)
}

func (c *Client) Rentals(ctx context.Context, p ListParams) (model.Page[*model.Rental], error) {
	return list[*model.Rental](ctx, c, pathRentals, p)
}

func (c *Client) Rental(ctx context.Context, id uint64) (*model.Rental, error) {
	return getData[*model.Rental](ctx, c, http.MethodGet, idPath(pathRentals, id), nil)
}

func (c *Client) CreateRental(ctx context.Context, in dto.RentalInput) (*model.Rental, error) {
	return getData[*model.Rental](ctx, c, http.MethodPost, pathRentals, in)
}

func (c *Client) RescheduleRental(ctx context.Context, id uint64, in dto.RescheduleInput) (*model.Rental, error) {
	return getData[*model.Rental](ctx, c, http.MethodPut, idPath(pathRentals, id), in)
}

// ReturnRental records the return of a rental; a nil date means today
// on the server's reference day boundary.
func (c *Client) ReturnRental(ctx context.Context, id uint64, actual *calendar.Date) (*model.Rental, error) {
	return getData[*model.Rental](ctx, c, http.MethodPatch, idPath(pathRentals, id)+"/return", dto.ReturnInput{ActualReturn: actual})
}

func (c *Client) ConfirmPayment(ctx context.Context, id uint64) (*model.Rental, error) {
	return getData[*model.Rental](ctx, c, http.MethodPatch, idPath(pathRentals, id)+"/payment", nil)
}

func (c *Client) DeleteRental(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodDelete, idPath(pathRentals, id), nil, nil, nil)
}

// SettlementResult is the answer of the settlement endpoint.
type SettlementResult struct {
	Rental     *model.Rental     `json:"rental"`
	Settlement rental.Settlement `json:"settlement"`
}

func (c *Client) Settlement(ctx context.Context, id uint64) (SettlementResult, error) {
	return getData[SettlementResult](ctx, c, http.MethodGet, idPath(pathRentals, id)+"/settlement", nil)
}

// Delete removes an entity of any catalog resource, e.g. ("actors", 3).
func (c *Client) Delete(ctx context.Context, resource string, id uint64) error {
	return c.do(ctx, http.MethodDelete, idPath("/v1/"+resource, id), nil, nil, nil)
}
