package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/pricing"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

// Seat map statuses as presented to viewers.
const (
	SeatViewAvailable = "available"
	SeatViewHeld      = "held"
	SeatViewBooked    = "booked"
)

// maxRows keeps generated row labels within two letters.
const maxRows = 702

// SeatView is one seat of the public seat map: durable status overlaid
// with the current holds.
type SeatView struct {
	Name       string `json:"name"`
	Row        int    `json:"row"`
	PriceCents int64  `json:"price_cents"`
	Status     string `json:"status"`
	HeldBy     uint64 `json:"held_by,omitempty"`
}

// CreateShowtimeInput describes a new screening.
type CreateShowtimeInput struct {
	RoomID         uint64
	MovieTitle     string
	StartsAt       time.Time
	EndsAt         time.Time
	BasePriceCents int64
}

// ShowtimeService manages rooms and showtimes and renders seat maps.
type ShowtimeService struct {
	rooms     RoomStore
	inventory SeatInventory
	writer    ShowtimeWriter
	holds     *HoldManager
}

// NewShowtimeService wires the service.  writer is usually the same
// repository as inventory.
func NewShowtimeService(rooms RoomStore, inventory SeatInventory, writer ShowtimeWriter, holds *HoldManager) *ShowtimeService {
	if rooms == nil || inventory == nil || writer == nil || holds == nil {
		panic("nil dependency passed to NewShowtimeService")
	}
	return &ShowtimeService{rooms: rooms, inventory: inventory, writer: writer, holds: holds}
}

// CreateRoom validates and stores a room.
func (s *ShowtimeService) CreateRoom(ctx context.Context, room *model.Room) error {
	room.Name = strings.TrimSpace(room.Name)
	if room.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if room.NumberOfRows <= 0 || room.NumberOfRows > maxRows {
		return fmt.Errorf("%w: number_of_rows must be between 1 and %d", ErrInvalidInput, maxRows)
	}
	if room.SeatsPerRow <= 0 || room.SeatsPerRow > 100 {
		return fmt.Errorf("%w: seats_per_row must be between 1 and 100", ErrInvalidInput)
	}
	for _, rows := range [][]int{room.VIPRows, room.CoupleRows} {
		for _, r := range rows {
			if r < 1 || r > room.NumberOfRows {
				return fmt.Errorf("%w: premium row %d outside 1..%d", ErrInvalidInput, r, room.NumberOfRows)
			}
		}
	}
	return s.rooms.Create(ctx, room)
}

// GetRoom returns a room or ErrRoomNotFound.
func (s *ShowtimeService) GetRoom(ctx context.Context, id uint64) (*model.Room, error) {
	room, err := s.rooms.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// CreateShowtime schedules a screening in a room and generates its seat
// inventory, every seat available and priced by row tier.
func (s *ShowtimeService) CreateShowtime(ctx context.Context, in CreateShowtimeInput) (*model.Showtime, error) {
	title := strings.TrimSpace(in.MovieTitle)
	if title == "" {
		return nil, fmt.Errorf("%w: movie_title is required", ErrInvalidInput)
	}
	if in.StartsAt.IsZero() || !in.EndsAt.After(in.StartsAt) {
		return nil, fmt.Errorf("%w: ends_at must be after starts_at", ErrInvalidInput)
	}
	if in.BasePriceCents <= 0 {
		return nil, fmt.Errorf("%w: base_price_cents must be positive", ErrInvalidInput)
	}
	room, err := s.GetRoom(ctx, in.RoomID)
	if err != nil {
		return nil, err
	}
	st := &model.Showtime{
		RoomID:         room.ID,
		MovieTitle:     title,
		StartsAt:       in.StartsAt.UTC(),
		EndsAt:         in.EndsAt.UTC(),
		BasePriceCents: in.BasePriceCents,
		Seats:          pricing.GenerateSeats(room, in.BasePriceCents),
	}
	if err := s.writer.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("create showtime: %w", err)
	}
	return st, nil
}

// SeatMap returns every seat of a showtime with holds overlaid.  Seat
// inventory and holds are read concurrently.
func (s *ShowtimeService) SeatMap(ctx context.Context, showtimeID uint64) ([]SeatView, error) {
	if _, err := s.inventory.GetByID(ctx, showtimeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShowtimeNotFound
		}
		return nil, err
	}
	var (
		seats []model.Seat
		held  map[string]uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		seats, err = s.inventory.ListSeats(gctx, showtimeID)
		return err
	})
	g.Go(func() error {
		var err error
		held, err = s.holds.Holders(gctx, showtimeID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]SeatView, 0, len(seats))
	for _, seat := range seats {
		v := SeatView{Name: seat.Name, Row: seat.Row, PriceCents: seat.PriceCents, Status: SeatViewAvailable}
		switch {
		case seat.Status == model.SeatBooked:
			v.Status = SeatViewBooked
		case held[seat.Name] != 0:
			v.Status = SeatViewHeld
			v.HeldBy = held[seat.Name]
		}
		out = append(out, v)
	}
	return out, nil
}
