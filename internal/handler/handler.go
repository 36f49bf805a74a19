// Package handler implements the REST endpoints of the rental backend.
// Every handler answers {"data": ...} on success and
// {"error": code, "message": text} on failure.
package handler

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/media-rental/internal/repository"
	"github.com/iliyamo/media-rental/internal/validation"
)

// base carries what every resource handler needs.
type base struct {
	Log *slog.Logger
}

func newBase(logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{Log: logger}
}

func (b base) fail(c echo.Context, err error) error { return fail(c, b.Log, err) }

// parseID reads the :id path parameter.
func parseID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// bindValid binds the request body into dst and validates it.  On
// failure the 400 response has already been written and ok is false.
func bindValid(c echo.Context, dst any) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, badRequest(c, "invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		if fields := validation.Fields(err); len(fields) > 0 {
			return false, badRequest(c, strings.Join(fields, "; "))
		}
		return false, badRequest(c, err.Error())
	}
	return true, nil
}

// maxOptionalBody caps how much of an optional body is buffered.
const maxOptionalBody = 64 << 10

// bindOptional is bindValid for endpoints whose body may be left out.
// An absent or blank body leaves dst untouched, whether or not the
// client announced a length (chunked requests carry ContentLength -1).
func bindOptional(c echo.Context, dst any) (bool, error) {
	req := c.Request()
	if req.Body == nil || req.Body == http.NoBody {
		return true, nil
	}
	raw, err := io.ReadAll(io.LimitReader(req.Body, maxOptionalBody+1))
	if err != nil {
		return false, badRequest(c, "invalid request body")
	}
	if len(raw) > maxOptionalBody {
		return false, badRequest(c, "request body too large")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return true, nil
	}
	req.Body = io.NopCloser(bytes.NewReader(raw))
	req.ContentLength = int64(len(raw))
	return bindValid(c, dst)
}

// listQuery reads the shared list parameters.  Malformed numbers fall
// back to the defaults instead of failing the request.
func listQuery(c echo.Context) repository.ListQuery {
	q := repository.ListQuery{
		Q:      c.QueryParam("q"),
		Sort:   c.QueryParam("sort"),
		Order:  c.QueryParam("order"),
		Status: c.QueryParam("status"),
	}
	q.Page, _ = strconv.Atoi(c.QueryParam("page"))
	q.PageSize, _ = strconv.Atoi(c.QueryParam("page_size"))
	q.MemberID, _ = strconv.ParseUint(c.QueryParam("member_id"), 10, 64)
	q.TitleID, _ = strconv.ParseUint(c.QueryParam("title_id"), 10, 64)
	return q.Normalize()
}

func data(c echo.Context, status int, v any) error {
	return c.JSON(status, echo.Map{"data": v})
}

func ok(c echo.Context, v any) error      { return data(c, http.StatusOK, v) }
func created(c echo.Context, v any) error { return data(c, http.StatusCreated, v) }
