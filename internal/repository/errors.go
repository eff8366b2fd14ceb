// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to tell failure scenarios apart without
// inspecting driver errors. For example, ErrDuplicateBookingCode tells
// the booking service to draw a fresh code, while ErrSeatsUnavailable
// signals that settlement lost a race for one of its seats.
package repository

import (
    "errors"

    "github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by primary key or code matches
// no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update matched no row
// because the record is no longer in the expected state, for example
// settling a booking that another delivery already settled.
var ErrConflict = errors.New("conflict")

// ErrDuplicateBookingCode is returned by BookingRepo.Create when the
// generated booking code collides with an existing one.
var ErrDuplicateBookingCode = errors.New("duplicate booking code")

// ErrSeatsUnavailable is returned by BookingRepo.Settle when at least one
// seat was no longer available.  The transaction is rolled back.
var ErrSeatsUnavailable = errors.New("seats unavailable")

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a MySQL duplicate entry error.
func isDuplicateKey(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
