package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/media-rental/internal/rental"
	"github.com/iliyamo/media-rental/internal/repository"
)

// Stable error codes of the API.  Clients switch on these, never on the
// message text.
const (
	CodeValidation       = "validation_error"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeInvalidReference = "invalid_reference"
	CodeInternal         = "internal_error"
)

// guardCodes maps the lifecycle guard violations to their codes.  All of
// them answer 409.
var guardCodes = []struct {
	err  error
	code string
}{
	{rental.ErrItemUnavailable, "item_unavailable"},
	{rental.ErrInvalidClient, "invalid_client"},
	{rental.ErrAlreadyReturned, "already_returned"},
	{rental.ErrNotYetReturned, "not_yet_returned"},
	{rental.ErrAlreadyPaid, "already_paid"},
	{rental.ErrCannotDeleteSettledOrReturned, "cannot_delete_settled_or_returned"},
	{rental.ErrReturnWindowExceeded, "return_window_exceeded"},
	{rental.ErrInvalidDates, "invalid_dates"},
	{rental.ErrOutstanding, "outstanding"},
}

// Classify returns the status and code an error is answered with.
func Classify(err error) (int, string) {
	for _, g := range guardCodes {
		if errors.Is(err, g.err) {
			return http.StatusConflict, g.code
		}
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, repository.ErrInvalidReference):
		return http.StatusBadRequest, CodeInvalidReference
	}
	return http.StatusInternalServerError, CodeInternal
}

func errorBody(code, message string) echo.Map {
	return echo.Map{"error": code, "message": message}
}

// fail writes err as a JSON error response.  Internal errors are logged
// and answered with a generic message.
func fail(c echo.Context, logger *slog.Logger, err error) error {
	status, code := Classify(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"req_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"err", err,
		)
		return c.JSON(status, errorBody(code, "internal error"))
	}
	return c.JSON(status, errorBody(code, err.Error()))
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorBody(CodeValidation, message))
}
