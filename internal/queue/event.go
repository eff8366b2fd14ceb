// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the audit consumer for them.
package queue

// QueueBookingSettled is the durable queue settlement events are routed to.
const QueueBookingSettled = "booking.settled"

// BookingSettledEvent is published after a booking's payment has been
// reconciled and its seats marked booked.  It carries enough for
// downstream consumers to log, notify, or trigger analytics without
// querying the primary database.
type BookingSettledEvent struct {
    MessageID       string   `json:"message_id"`
    BookingID       uint64   `json:"booking_id"`
    BookingCode     string   `json:"booking_code"`
    UserID          uint64   `json:"user_id"`
    ShowtimeID      uint64   `json:"showtime_id"`
    Seats           []string `json:"seats"`
    TotalPriceCents int64    `json:"total_price_cents"`
    PaidAmountCents int64    `json:"paid_amount_cents"`
    SettledAt       string   `json:"settled_at"`
}
