package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-booking-core/internal/middleware"
	"github.com/iliyamo/ticket-booking-core/internal/model"
	"github.com/iliyamo/ticket-booking-core/internal/service"
)

// BookingHandler exposes seat availability and the booking workflow.
type BookingHandler struct {
	Bookings *service.BookingService
	Seats    *service.SeatAvailability
}

func NewBookingHandler(bookings *service.BookingService, seats *service.SeatAvailability) *BookingHandler {
	return &BookingHandler{Bookings: bookings, Seats: seats}
}

type createBookingReq struct {
	SeatIDs          []string `json:"seat_ids"`
	BookingReference string   `json:"booking_reference"`
}

type ticketResp struct {
	SeatID         string `json:"seat_id"`
	PriceCents     int64  `json:"price_cents"`
	ValidationCode string `json:"validation_code"`
	Status         string `json:"status"`
}

type bookingResp struct {
	Reference  string       `json:"reference"`
	EventID    uint64       `json:"event_id"`
	Status     string       `json:"status"`
	TotalCents int64        `json:"total_cents"`
	CreatedAt  time.Time    `json:"created_at"`
	Tickets    []ticketResp `json:"tickets"`
}

func toBookingResp(b *model.Booking) bookingResp {
	out := bookingResp{
		Reference:  b.Reference,
		EventID:    b.EventID,
		Status:     b.Status,
		TotalCents: b.TotalCents,
		CreatedAt:  b.CreatedAt,
		Tickets:    make([]ticketResp, 0, len(b.Tickets)),
	}
	for _, t := range b.Tickets {
		out.Tickets = append(out.Tickets, ticketResp{
			SeatID:         t.SeatID,
			PriceCents:     t.PriceCents,
			ValidationCode: t.ValidationCode,
			Status:         t.Status,
		})
	}
	return out
}

func eventID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// ListSeats: GET /v1/events/:id/seats
func (h *BookingHandler) ListSeats(c echo.Context) error {
	id, ok := eventID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	seats, err := h.Seats.List(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"event_id": id, "seats": seats})
}

// Create: POST /v1/events/:id/bookings
//
// The optional Idempotency-Key header makes a retried request return the
// booking the first attempt created.
func (h *BookingHandler) Create(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := eventID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.Book(ctx, p, service.BookingRequest{
		EventID:          id,
		SeatIDs:          req.SeatIDs,
		BookingReference: req.BookingReference,
		IdempotencyKey:   c.Request().Header.Get("Idempotency-Key"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingResp(b))
}

// Get: GET /v1/bookings/:reference
func (h *BookingHandler) Get(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.Get(ctx, p, c.Param("reference"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResp(b))
}

// Cancel: DELETE /v1/bookings/:reference.  Cancelling twice is not an error.
func (h *BookingHandler) Cancel(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Bookings.Cancel(ctx, p, c.Param("reference"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResp(b))
}
