package utils

import (
    "crypto/rand"
    "math/big"
)

// BookingCodeLength is the number of characters in a booking code.
const BookingCodeLength = 6

const bookingCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewBookingCode returns a random code of BookingCodeLength characters
// drawn uniformly from [A-Z0-9].  Uniqueness is enforced by the database;
// callers retry on collision.
func NewBookingCode() (string, error) {
    max := big.NewInt(int64(len(bookingCodeAlphabet)))
    buf := make([]byte, BookingCodeLength)
    for i := range buf {
        n, err := rand.Int(rand.Reader, max)
        if err != nil {
            return "", err
        }
        buf[i] = bookingCodeAlphabet[n.Int64()]
    }
    return string(buf), nil
}
