package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/showtime-booking/internal/model"
    "github.com/iliyamo/showtime-booking/internal/service"
)

// ShowtimeAPI is implemented by service.ShowtimeService.
type ShowtimeAPI interface {
    CreateRoom(ctx context.Context, room *model.Room) error
    GetRoom(ctx context.Context, id uint64) (*model.Room, error)
    CreateShowtime(ctx context.Context, in service.CreateShowtimeInput) (*model.Showtime, error)
    SeatMap(ctx context.Context, showtimeID uint64) ([]service.SeatView, error)
}

// ShowtimeHandler serves rooms, showtimes and seat maps.
type ShowtimeHandler struct {
    showtimes ShowtimeAPI
    log       *zap.Logger
}

func NewShowtimeHandler(showtimes ShowtimeAPI, log *zap.Logger) *ShowtimeHandler {
    if showtimes == nil {
        panic("nil showtime service passed to NewShowtimeHandler")
    }
    return &ShowtimeHandler{showtimes: showtimes, log: orNop(log)}
}

type createRoomRequest struct {
    Name         string `json:"name"`
    NumberOfRows int    `json:"number_of_rows"`
    SeatsPerRow  int    `json:"seats_per_row"`
    VIPRows      []int  `json:"vip_rows"`
    CoupleRows   []int  `json:"couple_rows"`
}

// CreateRoom handles POST /v1/rooms (owner only).
func (h *ShowtimeHandler) CreateRoom(c echo.Context) error {
    var req createRoomRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
    }
    room := &model.Room{
        Name:         req.Name,
        NumberOfRows: req.NumberOfRows,
        SeatsPerRow:  req.SeatsPerRow,
        VIPRows:      req.VIPRows,
        CoupleRows:   req.CoupleRows,
    }
    if err := h.showtimes.CreateRoom(c.Request().Context(), room); err != nil {
        return serviceError(c, h.log, err)
    }
    return c.JSON(http.StatusCreated, room)
}

// GetRoom handles GET /v1/rooms/:id.
func (h *ShowtimeHandler) GetRoom(c echo.Context) error {
    id, err := parseID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    room, err := h.showtimes.GetRoom(c.Request().Context(), id)
    if err != nil {
        return serviceError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, room)
}

type createShowtimeRequest struct {
    RoomID         uint64    `json:"room_id"`
    MovieTitle     string    `json:"movie_title"`
    StartsAt       time.Time `json:"starts_at"`
    EndsAt         time.Time `json:"ends_at"`
    BasePriceCents int64     `json:"base_price_cents"`
}

// CreateShowtime handles POST /v1/showtimes (owner only).  The response
// carries the showtime and the number of generated seats.
func (h *ShowtimeHandler) CreateShowtime(c echo.Context) error {
    var req createShowtimeRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
    }
    if req.RoomID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "room_id is required"})
    }
    st, err := h.showtimes.CreateShowtime(c.Request().Context(), service.CreateShowtimeInput{
        RoomID:         req.RoomID,
        MovieTitle:     req.MovieTitle,
        StartsAt:       req.StartsAt,
        EndsAt:         req.EndsAt,
        BasePriceCents: req.BasePriceCents,
    })
    if err != nil {
        return serviceError(c, h.log, err)
    }
    seats := len(st.Seats)
    out := *st
    out.Seats = nil
    return c.JSON(http.StatusCreated, echo.Map{"showtime": out, "seat_count": seats})
}

// SeatMap handles GET /v1/showtimes/:id/seats.
func (h *ShowtimeHandler) SeatMap(c echo.Context) error {
    id, err := parseID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    seats, err := h.showtimes.SeatMap(c.Request().Context(), id)
    if err != nil {
        return serviceError(c, h.log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"showtime_id": id, "seats": seats})
}
