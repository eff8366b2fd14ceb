package handler

import (
    "context"
    "errors"
    "sync"
    "time"

    "github.com/iliyamo/showtime-booking/internal/model"
    "github.com/iliyamo/showtime-booking/internal/pricing"
    "github.com/iliyamo/showtime-booking/internal/service"
)

var errInfra = errors.New("connection refused")

// fakeHolds grants every seat except those listed in taken.
type fakeHolds struct {
    mu       sync.Mutex
    taken    map[string]uint64
    released chan []string
    err      error
}

func newFakeHolds() *fakeHolds {
    return &fakeHolds{taken: map[string]uint64{}, released: make(chan []string, 4)}
}

func (f *fakeHolds) Acquire(_ context.Context, showtimeID uint64, seat string, userID uint64) (model.Hold, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    seat = pricing.NormalizeSeatName(seat)
    h := model.Hold{ShowtimeID: showtimeID, SeatName: seat}
    if f.err != nil {
        return h, f.err
    }
    if holder, ok := f.taken[seat]; ok && holder != userID {
        h.UserID = holder
        return h, service.ErrSeatHeld
    }
    f.taken[seat] = userID
    h.UserID = userID
    h.ExpiresAt = time.Now().Add(5 * time.Minute)
    return h, nil
}

func (f *fakeHolds) Release(_ context.Context, _ uint64, seat string, userID uint64) (bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    seat = pricing.NormalizeSeatName(seat)
    if f.taken[seat] != userID {
        return false, nil
    }
    delete(f.taken, seat)
    return true, nil
}

func (f *fakeHolds) ReleaseAll(_ context.Context, _ uint64, seats []string, _ uint64) int {
    f.released <- seats
    return len(seats)
}

func (f *fakeHolds) Snapshot(_ context.Context, showtimeID uint64) (model.Event, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    held := map[string]uint64{}
    for k, v := range f.taken {
        held[k] = v
    }
    return model.Event{Type: model.EventSnapshot, ShowtimeID: showtimeID, Booked: []string{"E1"}, Held: held}, nil
}

type fakeBookings struct {
    mu       sync.Mutex
    created  service.CreateBookingInput
    createFn func(in service.CreateBookingInput) (*service.CreateBookingResult, error)
    byID     map[uint64]*model.Booking
    err      error
}

func (f *fakeBookings) add(b *model.Booking) {
    f.mu.Lock()
    f.byID[b.ID] = b
    f.mu.Unlock()
}

// UnclaimedSeats drops seats covered by a pending booking of userID.
func (f *fakeBookings) UnclaimedSeats(_ context.Context, showtimeID, userID uint64, seats []string) ([]string, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.err != nil {
        return nil, f.err
    }
    claimed := map[string]bool{}
    for _, b := range f.byID {
        if b.UserID == userID && b.ShowtimeID == showtimeID && b.Status == model.BookingPending {
            for _, name := range b.SeatNames() {
                claimed[name] = true
            }
        }
    }
    var out []string
    for _, name := range seats {
        if !claimed[name] {
            out = append(out, name)
        }
    }
    return out, nil
}

func (f *fakeBookings) Create(_ context.Context, in service.CreateBookingInput) (*service.CreateBookingResult, error) {
    f.created = in
    return f.createFn(in)
}

func (f *fakeBookings) Get(_ context.Context, id, userID uint64) (*model.Booking, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.err != nil {
        return nil, f.err
    }
    b, ok := f.byID[id]
    if !ok || b.UserID != userID {
        return nil, service.ErrBookingNotFound
    }
    return b, nil
}

func (f *fakeBookings) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.err != nil {
        return nil, f.err
    }
    var out []model.Booking
    for _, b := range f.byID {
        if b.UserID == userID {
            out = append(out, *b)
        }
    }
    return out, nil
}

func (f *fakeBookings) Cancel(ctx context.Context, id, userID uint64) (*model.Booking, error) {
    b, err := f.Get(ctx, id, userID)
    if err != nil {
        return nil, err
    }
    if b.Status != model.BookingPending {
        return nil, service.ErrBookingNotPending
    }
    b.Status = model.BookingFailed
    b.FailureReason = model.FailureCancelledByUser
    return b, nil
}

type fakeReconciler struct {
    got     service.PaymentNotification
    outcome service.ReconcileOutcome
    err     error
}

func (f *fakeReconciler) Handle(_ context.Context, n service.PaymentNotification) (service.ReconcileOutcome, error) {
    f.got = n
    return f.outcome, f.err
}

type fakeShowtimes struct {
    rooms map[uint64]*model.Room
    seats []service.SeatView
}

func (f *fakeShowtimes) CreateRoom(_ context.Context, room *model.Room) error {
    if room.Name == "" {
        return errors.Join(service.ErrInvalidInput, errors.New("name is required"))
    }
    room.ID = uint64(len(f.rooms) + 1)
    f.rooms[room.ID] = room
    return nil
}

func (f *fakeShowtimes) GetRoom(_ context.Context, id uint64) (*model.Room, error) {
    if r, ok := f.rooms[id]; ok {
        return r, nil
    }
    return nil, service.ErrRoomNotFound
}

func (f *fakeShowtimes) CreateShowtime(_ context.Context, in service.CreateShowtimeInput) (*model.Showtime, error) {
    if _, ok := f.rooms[in.RoomID]; !ok {
        return nil, service.ErrRoomNotFound
    }
    return &model.Showtime{ID: 9, RoomID: in.RoomID, MovieTitle: in.MovieTitle, StartsAt: in.StartsAt,
        EndsAt: in.EndsAt, BasePriceCents: in.BasePriceCents, Seats: make([]model.Seat, 20)}, nil
}

func (f *fakeShowtimes) SeatMap(_ context.Context, id uint64) ([]service.SeatView, error) {
    if id != 1 {
        return nil, service.ErrShowtimeNotFound
    }
    return f.seats, nil
}
