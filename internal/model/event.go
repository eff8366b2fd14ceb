package model

// Realtime message types.  Server to client: snapshot, seat_held,
// seat_released, seat_sold, hold_result, booking_success, booking_failed,
// booking_expired and error.  Client to server: hold, release and
// watch_booking.
const (
    EventSnapshot       = "snapshot"
    EventSeatHeld       = "seat_held"
    EventSeatReleased   = "seat_released"
    EventSeatSold       = "seat_sold"
    EventHoldResult     = "hold_result"
    EventBookingSuccess = "booking_success"
    EventBookingFailed  = "booking_failed"
    EventBookingExpired = "booking_expired"
    EventError          = "error"

    MessageHold         = "hold"
    MessageRelease      = "release"
    MessageWatchBooking = "watch_booking"
)

// Event is the JSON envelope exchanged over the realtime channel.  Only
// the fields relevant to Type are set.
type Event struct {
    Type        string            `json:"type"`
    ShowtimeID  uint64            `json:"showtime_id,omitempty"`
    SeatName    string            `json:"seat_name,omitempty"`
    UserID      uint64            `json:"user_id,omitempty"`
    BookingID   uint64            `json:"booking_id,omitempty"`
    BookingCode string            `json:"booking_code,omitempty"`
    Status      string            `json:"status,omitempty"`
    Reason      string            `json:"reason,omitempty"`
    Granted     *bool             `json:"granted,omitempty"`
    Booked      []string          `json:"booked,omitempty"`
    Held        map[string]uint64 `json:"held,omitempty"`
    Message     string            `json:"message,omitempty"`
    // ConnectionID is sent in the snapshot so that the client can pass it
    // when creating a booking.
    ConnectionID string `json:"connection_id,omitempty"`
}

// SeatEvent builds a seat_held, seat_released or seat_sold event.
func SeatEvent(typ string, showtimeID uint64, seat string, userID uint64) Event {
    return Event{Type: typ, ShowtimeID: showtimeID, SeatName: seat, UserID: userID}
}
