package handler

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/gorilla/websocket"
    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/showtime-booking/internal/model"
    "github.com/iliyamo/showtime-booking/internal/pricing"
    "github.com/iliyamo/showtime-booking/internal/realtime"
    "github.com/iliyamo/showtime-booking/internal/service"
)

// BookingReader is used to check ownership before a connection starts
// watching a booking, and to keep holds that back a pending booking when
// a connection closes.
type BookingReader interface {
    Get(ctx context.Context, bookingID, userID uint64) (*model.Booking, error)
    UnclaimedSeats(ctx context.Context, showtimeID, userID uint64, seats []string) ([]string, error)
}

// WSHandler upgrades viewers of a showtime to the realtime channel.  Over
// the socket a client can hold and release seats and watch its bookings.
type WSHandler struct {
    hub                 *realtime.Hub
    holds               HoldService
    bookings            BookingReader
    releaseOnDisconnect bool
    upgrader            websocket.Upgrader
    log                 *zap.Logger
}

// NewWSHandler panics on nil dependencies.  With releaseOnDisconnect set,
// seats held through a connection and not covered by a pending booking
// are released when it closes.
func NewWSHandler(hub *realtime.Hub, holds HoldService, bookings BookingReader, releaseOnDisconnect bool, log *zap.Logger) *WSHandler {
    if hub == nil || holds == nil || bookings == nil {
        panic("nil dependency passed to NewWSHandler")
    }
    return &WSHandler{
        hub:                 hub,
        holds:               holds,
        bookings:            bookings,
        releaseOnDisconnect: releaseOnDisconnect,
        upgrader: websocket.Upgrader{
            ReadBufferSize:  1024,
            WriteBufferSize: 1024,
            // Authentication is by bearer token, not cookies.
            CheckOrigin: func(*http.Request) bool { return true },
        },
        log: orNop(log).Named("ws"),
    }
}

// Serve handles GET /v1/ws/showtimes/:id.  The client is registered
// before the snapshot is read so that no seat event falls between the
// two; events arriving meanwhile are queued and sent after the snapshot.
func (h *WSHandler) Serve(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    showtimeID, err := parseID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
    if err != nil {
        // the upgrader has already written the HTTP error
        h.log.Debug("upgrade failed", zap.Error(err))
        return nil
    }

    ctx := c.Request().Context()
    client := realtime.NewClient(h.hub, conn, uid, showtimeID)
    if err := h.hub.Join(ctx, client); err != nil {
        _ = conn.Close()
        return nil
    }
    go client.WritePump()

    snap, err := h.holds.Snapshot(ctx, showtimeID)
    if err == nil {
        err = h.hub.Ready(ctx, client, snap)
    }
    if err != nil {
        h.log.Error("snapshot failed", zap.Uint64("showtime_id", showtimeID), zap.Error(err))
        h.hub.Leave(client)
        return nil
    }
    h.log.Debug("viewer joined", zap.String("conn_id", client.ID),
        zap.Uint64("showtime_id", showtimeID), zap.Uint64("user_id", uid))

    client.ReadPump(func(msg model.Event) { h.onMessage(ctx, client, msg) })
    h.hub.Leave(client)

    if h.releaseOnDisconnect {
        if seats := client.TrackedSeats(); len(seats) > 0 {
            h.releaseOnClose(client, seats)
        }
    }
    return nil
}

// releaseOnClose releases the seats a closed connection held, except
// those a pending booking of the user covers.  A booking made over plain
// HTTP or from another tab never unbinds them from this connection.
func (h *WSHandler) releaseOnClose(client *realtime.Client, seats []string) {
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    free, err := h.bookings.UnclaimedSeats(ctx, client.ShowtimeID, client.UserID, seats)
    if err != nil {
        h.log.Warn("holds left to lapse on disconnect", zap.String("conn_id", client.ID), zap.Error(err))
        return
    }
    if len(free) == 0 {
        return
    }
    n := h.holds.ReleaseAll(ctx, client.ShowtimeID, free, client.UserID)
    h.log.Debug("released holds on disconnect", zap.String("conn_id", client.ID), zap.Int("released", n))
}

func (h *WSHandler) onMessage(ctx context.Context, client *realtime.Client, msg model.Event) {
    switch msg.Type {
    case model.MessageHold:
        h.onHold(ctx, client, msg.SeatName)
    case model.MessageRelease:
        seat := pricing.NormalizeSeatName(msg.SeatName)
        if _, err := h.holds.Release(ctx, client.ShowtimeID, seat, client.UserID); err != nil {
            h.log.Error("release failed", zap.String("seat", seat), zap.Error(err))
            h.hub.Reply(client, model.Event{Type: model.EventError, SeatName: seat, Message: "internal error"})
            return
        }
        client.Untrack(seat)
    case model.MessageWatchBooking:
        b, err := h.bookings.Get(ctx, msg.BookingID, client.UserID)
        if err != nil {
            h.hub.Reply(client, model.Event{Type: model.EventError, BookingID: msg.BookingID, Message: "booking not found"})
            return
        }
        h.hub.Watch(client, b.ID)
    case model.EventError:
        h.hub.Reply(client, msg)
    default:
        h.hub.Reply(client, model.Event{Type: model.EventError, Message: "unknown message type"})
    }
}

func (h *WSHandler) onHold(ctx context.Context, client *realtime.Client, seat string) {
    hold, err := h.holds.Acquire(ctx, client.ShowtimeID, seat, client.UserID)
    granted := err == nil
    res := model.Event{
        Type:       model.EventHoldResult,
        ShowtimeID: client.ShowtimeID,
        SeatName:   hold.SeatName,
        Granted:    &granted,
    }
    switch {
    case err == nil:
        client.Track(hold.SeatName)
        res.UserID = client.UserID
    case errors.Is(err, service.ErrSeatHeld):
        res.Reason = msgSeatHeld
    case errors.Is(err, service.ErrSeatBooked), errors.Is(err, service.ErrSeatNotFound):
        res.Reason = err.Error()
    default:
        h.log.Error("hold failed", zap.String("seat", hold.SeatName), zap.Error(err))
        res.Reason = "internal error"
    }
    h.hub.Reply(client, res)
}
