package handler // handler defines http handlers

import (
    "context"
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/showtime-booking/internal/middleware"
    "github.com/iliyamo/showtime-booking/internal/model"
    "github.com/iliyamo/showtime-booking/internal/service"
)

// Client-facing messages for the two reservation conflicts.
const (
    msgSeatHeld    = "seat is held by another user, try another seat"
    msgHoldExpired = "hold expired or not yours, please reselect your seats"
)

// HoldService is the part of service.HoldManager the HTTP and websocket
// handlers use.
type HoldService interface {
    Acquire(ctx context.Context, showtimeID uint64, seat string, userID uint64) (model.Hold, error)
    Release(ctx context.Context, showtimeID uint64, seat string, userID uint64) (bool, error)
    ReleaseAll(ctx context.Context, showtimeID uint64, seats []string, userID uint64) int
    Snapshot(ctx context.Context, showtimeID uint64) (model.Event, error)
}

// BookingAPI is implemented by service.BookingService.
type BookingAPI interface {
    Create(ctx context.Context, in service.CreateBookingInput) (*service.CreateBookingResult, error)
    Get(ctx context.Context, bookingID, userID uint64) (*model.Booking, error)
    ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
    Cancel(ctx context.Context, bookingID, userID uint64) (*model.Booking, error)
}

// getUserID extracts the authenticated user id stored by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
    id, ok := middleware.CurrentUserID(c)
    if !ok {
        return 0, errors.New("invalid user_id in context")
    }
    return id, nil
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, errors.New("invalid " + name)
    }
    return id, nil
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// serviceError maps service errors onto HTTP responses.  Anything not
// recognised is an infrastructure failure: logged and answered with 500.
func serviceError(c echo.Context, log *zap.Logger, err error) error {
    var notHeld *service.NotHeldError
    switch {
    case errors.As(err, &notHeld):
        return c.JSON(http.StatusConflict, echo.Map{"error": msgHoldExpired, "seat": notHeld.Seat})
    case errors.Is(err, service.ErrHoldNotHeld):
        return c.JSON(http.StatusConflict, echo.Map{"error": msgHoldExpired})
    case errors.Is(err, service.ErrSeatHeld):
        log.Debug("hold conflict", zap.String("path", c.Request().URL.Path))
        return c.JSON(http.StatusConflict, echo.Map{"error": msgSeatHeld})
    case errors.Is(err, service.ErrSeatBooked):
        return c.JSON(http.StatusConflict, echo.Map{"error": "seat is already booked"})
    case errors.Is(err, service.ErrBookingNotPending):
        return c.JSON(http.StatusConflict, echo.Map{"error": "booking is no longer pending"})
    case errors.Is(err, service.ErrSeatNotFound),
        errors.Is(err, service.ErrShowtimeNotFound),
        errors.Is(err, service.ErrRoomNotFound),
        errors.Is(err, service.ErrBookingNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrNoSeats),
        errors.Is(err, service.ErrTooManySeats),
        errors.Is(err, service.ErrInvalidInput):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    log.Error("request failed", zap.String("method", c.Request().Method),
        zap.String("path", c.Request().URL.Path), zap.Error(err))
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func orNop(log *zap.Logger) *zap.Logger {
    if log == nil {
        return zap.NewNop()
    }
    return log
}
