package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/showtime-booking/internal/model"
    "github.com/iliyamo/showtime-booking/internal/service"
)

// BookingHandler serves the customer booking endpoints.
type BookingHandler struct {
    bookings BookingAPI
    log      *zap.Logger
}

// NewBookingHandler panics if bookings is nil.
func NewBookingHandler(bookings BookingAPI, log *zap.Logger) *BookingHandler {
    if bookings == nil {
        panic("nil booking service passed to NewBookingHandler")
    }
    return &BookingHandler{bookings: bookings, log: orNop(log)}
}

type createBookingRequest struct {
    ShowtimeID    uint64   `json:"showtime_id"`
    Seats         []string `json:"seats"`
    PaymentMethod string   `json:"payment_method"`
    ConnectionID  string   `json:"connection_id"`
}

type createBookingResponse struct {
    BookingID        uint64              `json:"booking_id"`
    BookingCode      string              `json:"booking_code"`
    Seats            []model.BookingSeat `json:"seats"`
    TotalPriceCents  int64               `json:"total_price_cents"`
    PaymentReference string              `json:"payment_reference"`
    PaymentPayload   string              `json:"payment_payload"`
    QRCode           string              `json:"qr_code"`
    ExpiresAt        time.Time           `json:"expires_at"`
    Status           model.BookingStatus `json:"status"`
}

// Create handles POST /v1/bookings.  The caller must hold every seat.
func (h *BookingHandler) Create(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    var req createBookingRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
    }
    if req.ShowtimeID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtime_id is required"})
    }
    res, err := h.bookings.Create(c.Request().Context(), service.CreateBookingInput{
        ShowtimeID:    req.ShowtimeID,
        Seats:         req.Seats,
        UserID:        uid,
        PaymentMethod: req.PaymentMethod,
        ConnectionID:  req.ConnectionID,
    })
    if err != nil {
        return serviceError(c, h.log, err)
    }
    b := res.Booking
    return c.JSON(http.StatusCreated, createBookingResponse{
        BookingID:        b.ID,
        BookingCode:      b.BookingCode,
        Seats:            b.Seats,
        TotalPriceCents:  b.TotalPriceCents,
        PaymentReference: res.PaymentReference,
        PaymentPayload:   res.PaymentPayload,
        QRCode:           res.QRCode,
        ExpiresAt:        b.ExpiresAt,
        Status:           b.Status,
    })
}

// Get handles GET /v1/bookings/:id; clients poll it for the outcome.
func (h *BookingHandler) Get(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    id, err := parseID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    b, err := h.bookings.Get(c.Request().Context(), id, uid)
    if err != nil {
        return serviceError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, b)
}

// List handles GET /v1/my-bookings.
func (h *BookingHandler) List(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    list, err := h.bookings.ListByUser(c.Request().Context(), uid)
    if err != nil {
        return serviceError(c, h.log, err)
    }
    if list == nil {
        list = []model.Booking{}
    }
    return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// Cancel handles DELETE /v1/bookings/:id for a pending booking.
func (h *BookingHandler) Cancel(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    id, err := parseID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    b, err := h.bookings.Cancel(c.Request().Context(), id, uid)
    if err != nil {
        return serviceError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, b)
}
