package service

import (
	"context"
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/queue"
)

// HoldStore is the atomic key/value store behind seat holds.  Values are
// owner ids; every method is atomic with respect to the others.
// Implemented by repository.RedisHoldStore and repository.MemoryHoldStore.
type HoldStore interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (holder string, granted bool, err error)
	Release(ctx context.Context, key, owner string) (bool, error)
	Extend(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, keys ...string) ([]string, error)
	Scan(ctx context.Context, prefix string) (map[string]string, error)
}

// SeatInventory reads showtimes and their durable seat status.
type SeatInventory interface {
	GetByID(ctx context.Context, id uint64) (*model.Showtime, error)
	ListSeats(ctx context.Context, showtimeID uint64) ([]model.Seat, error)
	GetSeat(ctx context.Context, showtimeID uint64, seatName string) (*model.Seat, error)
}

// ShowtimeWriter creates showtimes together with their seats.
type ShowtimeWriter interface {
	Create(ctx context.Context, st *model.Showtime) error
}

// RoomStore reads and creates rooms.
type RoomStore interface {
	Create(ctx context.Context, room *model.Room) error
	GetByID(ctx context.Context, id uint64) (*model.Room, error)
}

// BookingStore persists bookings.  Status transitions are conditional on
// the booking still being pending.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Booking, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	FindPendingByCode(ctx context.Context, code string, now time.Time) (*model.Booking, error)
	Settle(ctx context.Context, b *model.Booking, paidCents int64, now time.Time) error
	MarkFailed(ctx context.Context, id uint64, reason string) (bool, error)
	ExpirePending(ctx context.Context, now time.Time) ([]model.Booking, error)
}

// Broadcaster fans an event out to every viewer of a showtime.
// Implementations must not block.
type Broadcaster interface {
	Broadcast(showtimeID uint64, ev model.Event)
}

// Notifier extends Broadcaster with point-to-point delivery keyed by
// booking id.
type Notifier interface {
	Broadcaster
	NotifyBooking(bookingID uint64, ev model.Event)
	// BindBooking routes booking notifications to the connection connID
	// and removes seats from that connection's disconnect-release set.
	BindBooking(connID string, bookingID uint64, seats []string)
}

// SettlementPublisher emits settlement events to the message broker.
type SettlementPublisher interface {
	PublishBookingSettled(ctx context.Context, ev queue.BookingSettledEvent) error
}
