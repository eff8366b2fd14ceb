package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
)

// HoldHandler exposes seat holds over plain HTTP for clients that do not
// keep a websocket open.
type HoldHandler struct {
    holds HoldService
    log   *zap.Logger
}

// NewHoldHandler panics if holds is nil.
func NewHoldHandler(holds HoldService, log *zap.Logger) *HoldHandler {
    if holds == nil {
        panic("nil hold service passed to NewHoldHandler")
    }
    return &HoldHandler{holds: holds, log: orNop(log)}
}

type holdRequest struct {
    SeatName string `json:"seat_name"`
}

// Acquire handles POST /v1/showtimes/:id/holds.
func (h *HoldHandler) Acquire(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    showtimeID, err := parseID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    var req holdRequest
    if err := c.Bind(&req); err != nil || req.SeatName == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_name is required"})
    }
    hold, err := h.holds.Acquire(c.Request().Context(), showtimeID, req.SeatName, uid)
    if err != nil {
        return serviceError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, hold)
}

// Release handles DELETE /v1/showtimes/:id/holds/:seat.  Releasing a seat
// the caller does not hold is a no-op reported as released=false.
func (h *HoldHandler) Release(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    showtimeID, err := parseID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    released, err := h.holds.Release(c.Request().Context(), showtimeID, c.Param("seat"), uid)
    if err != nil {
        return serviceError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"released": released})
}
