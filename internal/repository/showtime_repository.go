package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// ShowtimeRepo manages showtimes and their seat inventory (the
// showtime_seats table).  Seat status is only ever changed by
// BookingRepo.Settle; this repository writes seats once, at creation.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo constructs a ShowtimeRepo with the given DB handle.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo {
	return &ShowtimeRepo{db: db}
}

// Create inserts the showtime and its generated seats in one transaction.
// The generated ID and created_at are written back to st.
func (r *ShowtimeRepo) Create(ctx context.Context, st *model.Showtime) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const q = `INSERT INTO showtimes (room_id, movie_title, starts_at, ends_at, base_price_cents) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, st.RoomID, st.MovieTitle, st.StartsAt.UTC(), st.EndsAt.UTC(), st.BasePriceCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	st.ID = uint64(id)

	if err := r.createSeatsTx(ctx, tx, st.ID, st.Seats); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx, `SELECT created_at FROM showtimes WHERE id = ?`, st.ID).Scan(&st.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

// createSeatsTx bulk-inserts seats for a showtime, in chunks so that a
// large room stays below the placeholder limit.
func (r *ShowtimeRepo) createSeatsTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seats []model.Seat) error {
	const chunk = 500
	for start := 0; start < len(seats); start += chunk {
		end := start + chunk
		if end > len(seats) {
			end = len(seats)
		}
		var b strings.Builder
		b.WriteString(`INSERT INTO showtime_seats (showtime_id, seat_name, seat_row, status, price_cents) VALUES `)
		args := make([]interface{}, 0, (end-start)*5)
		for i, s := range seats[start:end] {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString("(?, ?, ?, ?, ?)")
			status := s.Status
			if status == "" {
				status = model.SeatAvailable
			}
			args = append(args, showtimeID, s.Name, s.Row, string(status), s.PriceCents)
		}
		if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
			return fmt.Errorf("insert seats: %w", err)
		}
	}
	return nil
}

// GetByID returns the showtime without its seats.  ErrNotFound when absent.
func (r *ShowtimeRepo) GetByID(ctx context.Context, id uint64) (*model.Showtime, error) {
	const q = `SELECT id, room_id, movie_title, starts_at, ends_at, base_price_cents, created_at FROM showtimes WHERE id = ?`
	var st model.Showtime
	err := r.db.QueryRowContext(ctx, q, id).Scan(&st.ID, &st.RoomID, &st.MovieTitle, &st.StartsAt, &st.EndsAt, &st.BasePriceCents, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

// ListSeats returns the seat inventory of a showtime ordered by row and
// seat id.
func (r *ShowtimeRepo) ListSeats(ctx context.Context, showtimeID uint64) ([]model.Seat, error) {
	const q = `SELECT seat_name, seat_row, status, price_cents FROM showtime_seats
               WHERE showtime_id = ? ORDER BY seat_row, id`
	rows, err := r.db.QueryContext(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]model.Seat, 0, 64)
	for rows.Next() {
		var s model.Seat
		var status string
		if err := rows.Scan(&s.Name, &s.Row, &status, &s.PriceCents); err != nil {
			return nil, err
		}
		s.Status = model.SeatStatus(status)
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// GetSeat returns one seat of a showtime.  ErrNotFound when the showtime
// has no seat with that name.
func (r *ShowtimeRepo) GetSeat(ctx context.Context, showtimeID uint64, seatName string) (*model.Seat, error) {
	const q = `SELECT seat_name, seat_row, status, price_cents FROM showtime_seats WHERE showtime_id = ? AND seat_name = ?`
	var s model.Seat
	var status string
	err := r.db.QueryRowContext(ctx, q, showtimeID, seatName).Scan(&s.Name, &s.Row, &status, &s.PriceCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.Status = model.SeatStatus(status)
	return &s, nil
}
