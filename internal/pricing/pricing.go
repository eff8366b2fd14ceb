// Package pricing derives seat names, row numbers and seat prices from a
// room layout.  The same functions are used when a showtime's seats are
// generated and when a booking prices the seats it covers, so both paths
// agree on tier precedence.
package pricing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// ErrInvalidSeatName is returned when a seat name is not row letters
// followed by a positive column number.
var ErrInvalidSeatName = errors.New("invalid seat name")

// Tier multipliers expressed as num/den so prices stay in integer cents.
const (
	standardNum, standardDen = 1, 1
	vipNum, vipDen           = 3, 2
	coupleNum, coupleDen     = 2, 1
)

// RowLabel converts a 1-based row number to its letter label: 1 -> A,
// 26 -> Z, 27 -> AA.  Non-positive rows yield "".
func RowLabel(row int) string {
	if row <= 0 {
		return ""
	}
	i := row - 1
	res := []rune{}
	for {
		res = append(res, rune('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// RowNumber converts a row label such as "A" or "AA" into its 1-based row
// number.  It returns false for empty or non A-Z labels.
func RowNumber(label string) (int, bool) {
	s := strings.ToUpper(strings.TrimSpace(label))
	if s == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch < 'A' || ch > 'Z' {
			return 0, false
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n, true
}

// ParseSeatName splits a seat name like "C12" into row 3 and column 12.
func ParseSeatName(name string) (row, col int, err error) {
	s := NormalizeSeatName(name)
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(s) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSeatName, name)
	}
	row, _ = RowNumber(s[:i])
	col, err = strconv.Atoi(s[i:])
	if err != nil || col <= 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSeatName, name)
	}
	return row, col, nil
}

// NormalizeSeatName trims and upper-cases a client supplied seat name.
func NormalizeSeatName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// SeatName builds the canonical name for a row and column.
func SeatName(row, col int) string {
	return RowLabel(row) + strconv.Itoa(col)
}

// Multiplier returns the price multiplier of a row as a fraction.  A row
// listed as both couple and VIP is priced as couple.
func Multiplier(room *model.Room, row int) (num, den int64) {
	if room == nil {
		return standardNum, standardDen
	}
	if containsRow(room.CoupleRows, row) {
		return coupleNum, coupleDen
	}
	if containsRow(room.VIPRows, row) {
		return vipNum, vipDen
	}
	return standardNum, standardDen
}

// PriceForRow applies the row multiplier to the base price, rounding half
// up to the nearest cent.
func PriceForRow(room *model.Room, basePriceCents int64, row int) int64 {
	num, den := Multiplier(room, row)
	return (basePriceCents*num + den/2) / den
}

// SeatPrice prices a seat by name.  The row comes from the name's leading
// letters; stored inventory prices are not consulted.
func SeatPrice(room *model.Room, basePriceCents int64, seatName string) (int64, error) {
	row, _, err := ParseSeatName(seatName)
	if err != nil {
		return 0, err
	}
	return PriceForRow(room, basePriceCents, row), nil
}

// GenerateSeats builds the full, available seat inventory of a room in
// row-major order.
func GenerateSeats(room *model.Room, basePriceCents int64) []model.Seat {
	if room == nil || room.NumberOfRows <= 0 || room.SeatsPerRow <= 0 {
		return nil
	}
	seats := make([]model.Seat, 0, room.NumberOfRows*room.SeatsPerRow)
	for row := 1; row <= room.NumberOfRows; row++ {
		price := PriceForRow(room, basePriceCents, row)
		for col := 1; col <= room.SeatsPerRow; col++ {
			seats = append(seats, model.Seat{
				Name:       SeatName(row, col),
				Row:        row,
				Status:     model.SeatAvailable,
				PriceCents: price,
			})
		}
	}
	return seats
}

func containsRow(rows []int, row int) bool {
	for _, r := range rows {
		if r == row {
			return true
		}
	}
	return false
}
