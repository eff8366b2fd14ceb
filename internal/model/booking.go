package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
    BookingPending BookingStatus = "pending"
    BookingSuccess BookingStatus = "success"
    BookingFailed  BookingStatus = "failed"
    BookingExpired BookingStatus = "expired"
)

// Failure reasons recorded on failed bookings.
const (
    FailureSeatUnavailable = "seat_unavailable"
    FailureCancelledByUser = "cancelled_by_user"
)

// PaymentBankTransfer is the default payment method tag.
const PaymentBankTransfer = "bank_transfer"

// Booking is a durable order covering one or more seats of a showtime.
// Seats is a snapshot taken at creation time and does not follow later
// changes to the showtime or room.
//
// Fields:
//  ID              – primary key identifier.
//  UserID          – user who created the booking.
//  ShowtimeID      – showtime the seats belong to.
//  Seats           – seat name and price snapshot.
//  TotalPriceCents – sum of the snapshot prices.
//  BookingCode     – unique 6 character code quoted in the payment.
//  Status          – pending, success, failed or expired.
//  FailureReason   – why a booking failed (empty otherwise).
//  PaymentMethod   – payment method tag.
//  PaidAmountCents – amount reported by the settling payment.
//  ExpiresAt       – deadline for payment while pending.
//  SettledAt       – when payment was reconciled (nil until success).
type Booking struct {
    ID              uint64        `json:"id"`
    UserID          uint64        `json:"user_id"`
    ShowtimeID      uint64        `json:"showtime_id"`
    Seats           []BookingSeat `json:"seats"`
    TotalPriceCents int64         `json:"total_price_cents"`
    BookingCode     string        `json:"booking_code"`
    Status          BookingStatus `json:"status"`
    FailureReason   string        `json:"failure_reason,omitempty"`
    PaymentMethod   string        `json:"payment_method"`
    PaidAmountCents int64         `json:"paid_amount_cents,omitempty"`
    ExpiresAt       time.Time     `json:"expires_at"`
    SettledAt       *time.Time    `json:"settled_at,omitempty"`
    CreatedAt       time.Time     `json:"created_at"`
    UpdatedAt       time.Time     `json:"updated_at"`
}

// BookingSeat is one entry of a booking's seat snapshot.
type BookingSeat struct {
    SeatName   string `json:"seat_name"`
    PriceCents int64  `json:"price_cents"`
}

// SeatNames returns the seat names of the snapshot in order.
func (b *Booking) SeatNames() []string {
    names := make([]string, 0, len(b.Seats))
    for _, s := range b.Seats {
        names = append(names, s.SeatName)
    }
    return names
}
