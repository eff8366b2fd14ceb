package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/iliyamo/showtime-booking/internal/model"
)

// BookingRepo persists bookings and performs settlement.  Every status
// transition is a conditional UPDATE on status = 'pending' so concurrent
// or repeated callers cannot move a booking twice.  All timestamps are
// stored in UTC.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, user_id, showtime_id, seats, total_price_cents, booking_code, status,
                        failure_reason, payment_method, paid_amount_cents, expires_at, settled_at,
                        created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...interface{}) error
}

func scanBooking(s rowScanner) (*model.Booking, error) {
    var b model.Booking
    var seats []byte
    var status string
    var settled sql.NullTime
    err := s.Scan(&b.ID, &b.UserID, &b.ShowtimeID, &seats, &b.TotalPriceCents, &b.BookingCode, &status,
        &b.FailureReason, &b.PaymentMethod, &b.PaidAmountCents, &b.ExpiresAt, &settled,
        &b.CreatedAt, &b.UpdatedAt)
    if err != nil {
        return nil, err
    }
    if err := json.Unmarshal(seats, &b.Seats); err != nil {
        return nil, fmt.Errorf("decode seats of booking %d: %w", b.ID, err)
    }
    b.Status = model.BookingStatus(status)
    if settled.Valid {
        t := settled.Time
        b.SettledAt = &t
    }
    return &b, nil
}

// Create inserts a pending booking.  It returns ErrDuplicateBookingCode
// when the code violates uniq_booking_code; the caller is expected to
// retry with a new code.  ID, CreatedAt and UpdatedAt are populated.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
    seats, err := json.Marshal(b.Seats)
    if err != nil {
        return err
    }
    if b.Status == "" {
        b.Status = model.BookingPending
    }
    if b.PaymentMethod == "" {
        b.PaymentMethod = model.PaymentBankTransfer
    }
    const q = `INSERT INTO bookings (user_id, showtime_id, seats, total_price_cents, booking_code, status, payment_method, expires_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q, b.UserID, b.ShowtimeID, string(seats), b.TotalPriceCents,
        b.BookingCode, string(b.Status), b.PaymentMethod, b.ExpiresAt.UTC())
    if err != nil {
        if isDuplicateKey(err) {
            return ErrDuplicateBookingCode
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)
    return r.db.QueryRowContext(ctx, `SELECT created_at, updated_at FROM bookings WHERE id = ?`, b.ID).
        Scan(&b.CreatedAt, &b.UpdatedAt)
}

// GetByID returns a booking regardless of owner or ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
    b, err := scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    return b, err
}

// GetByIDForUser returns the booking only when it belongs to userID.
// A booking owned by someone else is reported as ErrNotFound so that
// ids cannot be probed.
func (r *BookingRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? AND user_id = ?`
    b, err := scanBooking(r.db.QueryRowContext(ctx, q, id, userID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    return b, err
}

// ListByUser returns a user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Booking, 0)
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *b)
    }
    return out, rows.Err()
}

// FindPendingByCode returns the pending booking with the given code whose
// payment window is still open at now.  Settled, failed, expired and
// lapsed bookings all yield ErrNotFound.
func (r *BookingRepo) FindPendingByCode(ctx context.Context, code string, now time.Time) (*model.Booking, error) {
    const q = `SELECT ` + bookingColumns + ` FROM bookings
               WHERE booking_code = ? AND status = 'pending' AND expires_at > ?`
    b, err := scanBooking(r.db.QueryRowContext(ctx, q, code, now.UTC()))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    return b, err
}

// Settle moves a pending booking to success and marks its seats booked in
// one transaction.
//
// Returns ErrConflict when the booking is no longer pending (another
// delivery settled or failed it first) and ErrSeatsUnavailable when fewer
// seats than requested could be moved from available to booked.  In both
// cases nothing is written.
func (r *BookingRepo) Settle(ctx context.Context, b *model.Booking, paidCents int64, now time.Time) error {
    names := b.SeatNames()
    if len(names) == 0 {
        return ErrSeatsUnavailable
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer tx.Rollback() //nolint:errcheck // no-op after commit

    const upd = `UPDATE bookings SET status = 'success', paid_amount_cents = ?, settled_at = ?
                 WHERE id = ? AND status = 'pending' AND expires_at > ?`
    res, err := tx.ExecContext(ctx, upd, paidCents, now.UTC(), b.ID, now.UTC())
    if err != nil {
        return err
    }
    if n, err := res.RowsAffected(); err != nil {
        return err
    } else if n == 0 {
        return ErrConflict
    }

    placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
    seatQ := `UPDATE showtime_seats SET status = 'booked'
              WHERE showtime_id = ? AND status = 'available' AND seat_name IN (` + placeholders + `)`
    args := make([]interface{}, 0, len(names)+1)
    args = append(args, b.ShowtimeID)
    for _, n := range names {
        args = append(args, n)
    }
    res, err = tx.ExecContext(ctx, seatQ, args...)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n != int64(len(names)) {
        return ErrSeatsUnavailable
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    b.Status = model.BookingSuccess
    b.PaidAmountCents = paidCents
    settled := now.UTC()
    b.SettledAt = &settled
    return nil
}

// MarkFailed moves a pending booking to failed with the given reason.  It
// reports false when the booking was not pending.
func (r *BookingRepo) MarkFailed(ctx context.Context, id uint64, reason string) (bool, error) {
    const q = `UPDATE bookings SET status = 'failed', failure_reason = ? WHERE id = ? AND status = 'pending'`
    res, err := r.db.ExecContext(ctx, q, reason, id)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    return n == 1, err
}

// ExpirePending marks every pending booking whose expires_at is not after
// now as expired and returns the bookings it moved.
func (r *BookingRepo) ExpirePending(ctx context.Context, now time.Time) ([]model.Booking, error) {
    const sel = `SELECT ` + bookingColumns + ` FROM bookings WHERE status = 'pending' AND expires_at <= ? LIMIT 500`
    rows, err := r.db.QueryContext(ctx, sel, now.UTC())
    if err != nil {
        return nil, err
    }
    var candidates []model.Booking
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            rows.Close()
            return nil, err
        }
        candidates = append(candidates, *b)
    }
    if err := rows.Close(); err != nil {
        return nil, err
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }

    const upd = `UPDATE bookings SET status = 'expired' WHERE id = ? AND status = 'pending' AND expires_at <= ?`
    expired := make([]model.Booking, 0, len(candidates))
    for _, b := range candidates {
        res, err := r.db.ExecContext(ctx, upd, b.ID, now.UTC())
        if err != nil {
            return expired, err
        }
        // a concurrent settlement may have won the row
        if n, _ := res.RowsAffected(); n == 1 {
            b.Status = model.BookingExpired
            expired = append(expired, b)
        }
    }
    return expired, nil
}
