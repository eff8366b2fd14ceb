package model

import "time"

// Room describes the physical layout of a screening room and the rows
// that carry a price premium.  Rooms are only consulted when seats are
// generated for a showtime and when a booking prices its seats.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – human readable label.
//  NumberOfRows – number of seat rows (A, B, C, ...).
//  SeatsPerRow  – number of seats in each row.
//  VIPRows      – 1-based row numbers priced at 1.5x.
//  CoupleRows   – 1-based row numbers priced at 2x.
type Room struct {
    ID           uint64    `json:"id"`             // rooms.id
    Name         string    `json:"name"`           // rooms.name
    NumberOfRows int       `json:"number_of_rows"` // rooms.number_of_rows
    SeatsPerRow  int       `json:"seats_per_row"`  // rooms.seats_per_row
    VIPRows      []int     `json:"vip_rows"`       // rooms.vip_rows (JSON array)
    CoupleRows   []int     `json:"couple_rows"`    // rooms.couple_rows (JSON array)
    CreatedAt    time.Time `json:"created_at"`     // rooms.created_at
}
