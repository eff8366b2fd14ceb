package service

import (
	"errors"
	"fmt"
)

var (
	ErrSeatHeld             = errors.New("seat is held by another user")
	ErrSeatBooked           = errors.New("seat is already booked")
	ErrSeatNotFound         = errors.New("seat not found")
	ErrHoldNotHeld          = errors.New("hold expired or not yours")
	ErrNoSeats              = errors.New("no seats requested")
	ErrTooManySeats         = errors.New("too many seats requested")
	ErrShowtimeNotFound     = errors.New("showtime not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrBookingNotPending    = errors.New("booking is not pending")
	ErrBookingCodeExhausted = errors.New("could not allocate a unique booking code")
	ErrInvalidInput         = errors.New("invalid input")
)

// NotHeldError names the first seat whose hold is missing or owned by
// someone else.  It matches ErrHoldNotHeld with errors.Is.
type NotHeldError struct {
	Seat string
}

func (e *NotHeldError) Error() string {
	return fmt.Sprintf("hold on seat %s expired or not yours", e.Seat)
}

func (e *NotHeldError) Is(target error) bool { return target == ErrHoldNotHeld }
