package model

import "time"

// Hold represents a temporary, exclusive claim on one seat of a showtime
// by one user.  Holds are not persisted in MySQL; they live in the hold
// store under a TTL and disappear on their own when it elapses.
//
// Fields:
//  ShowtimeID – showtime the seat belongs to.
//  SeatName   – seat being held.
//  UserID     – holder, compared by value.
//  ExpiresAt  – when the hold lapses unless refreshed.
type Hold struct {
    ShowtimeID uint64    `json:"showtime_id"`
    SeatName   string    `json:"seat_name"`
    UserID     uint64    `json:"user_id"`
    ExpiresAt  time.Time `json:"expires_at"`
}
