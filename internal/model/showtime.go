package model

import "time"

// SeatStatus is the durable, long-term state of a seat for one showtime.
type SeatStatus string

const (
    SeatAvailable SeatStatus = "available"
    SeatBooked    SeatStatus = "booked"
    // SeatLocked exists in the schema enum but is never written; holds
    // live only in the hold store.
    SeatLocked SeatStatus = "locked"
)

// Showtime represents a scheduled screening of a movie in a room.  It
// owns the seat inventory generated when the showtime was created.
//
// Fields:
//  ID             – primary key identifier.
//  RoomID         – room where the showtime takes place.
//  MovieTitle     – title of the movie being screened.
//  StartsAt       – when the screening begins.
//  EndsAt         – when the screening ends.
//  BasePriceCents – price of a standard seat before row multipliers.
//  Seats          – seat inventory, ordered by row then column.
//  CreatedAt      – creation timestamp.
type Showtime struct {
    ID             uint64    `json:"id"`               // showtimes.id
    RoomID         uint64    `json:"room_id"`          // showtimes.room_id
    MovieTitle     string    `json:"movie_title"`      // showtimes.movie_title
    StartsAt       time.Time `json:"starts_at"`        // showtimes.starts_at
    EndsAt         time.Time `json:"ends_at"`          // showtimes.ends_at
    BasePriceCents int64     `json:"base_price_cents"` // showtimes.base_price_cents
    Seats          []Seat    `json:"seats,omitempty"`  // showtime_seats rows
    CreatedAt      time.Time `json:"created_at"`       // showtimes.created_at
}

// Seat is one entry of a showtime's seat inventory.  The name is unique
// within a showtime and the price never changes after creation.
type Seat struct {
    Name       string     `json:"name"`        // showtime_seats.seat_name, e.g. "C12"
    Row        int        `json:"row"`         // showtime_seats.seat_row (1-based)
    Status     SeatStatus `json:"status"`      // showtime_seats.status
    PriceCents int64      `json:"price_cents"` // showtime_seats.price_cents
}
