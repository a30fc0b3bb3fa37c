package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-booking-core/internal/service"
)

// writeError maps a classified service error onto an HTTP response.
// Contention tells the client to retry; conflict tells it to pick
// different input.  Credential failures carry one uniform message.
func writeError(c echo.Context, err error) error {
	e := service.AsError(err)
	body := echo.Map{"error": e.Code, "message": e.Msg}
	status := http.StatusServiceUnavailable

	switch e.Kind {
	case service.KindInvalidRequest:
		status = http.StatusBadRequest
		body["message"] = err.Error()
	case service.KindContention:
		status = http.StatusConflict
		body["retry"] = true
		c.Response().Header().Set("Retry-After", "1")
	case service.KindConflict:
		status = http.StatusConflict
		body["retry"] = false
		body["message"] = err.Error()
	case service.KindUnauthorized:
		status = http.StatusUnauthorized
		if e == service.ErrForbidden {
			status = http.StatusForbidden
		}
	case service.KindNotFound:
		status = http.StatusNotFound
	}
	return c.JSON(status, body)
}
