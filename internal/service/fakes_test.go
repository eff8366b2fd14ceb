package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/pricing"
	"github.com/iliyamo/showtime-booking/internal/queue"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeInventory keeps showtimes, seats and rooms in memory.
type fakeInventory struct {
	mu        sync.Mutex
	showtimes map[uint64]*model.Showtime
	seats     map[uint64]map[string]*model.Seat
	rooms     map[uint64]*model.Room
	nextID    uint64
	// afterGetSeat runs after every GetSeat; used to simulate races.
	afterGetSeat func(showtimeID uint64, seat string)
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		showtimes: map[uint64]*model.Showtime{},
		seats:     map[uint64]map[string]*model.Seat{},
		rooms:     map[uint64]*model.Room{},
	}
}

// seed creates room 1 (rows A-E, 4 seats, VIP 3-4, couple 4-5) and
// showtime 1 at 1000 cents.
func (f *fakeInventory) seed() *model.Showtime {
	room := &model.Room{ID: 1, Name: "Hall", NumberOfRows: 5, SeatsPerRow: 4, VIPRows: []int{3, 4}, CoupleRows: []int{4, 5}}
	f.rooms[room.ID] = room
	st := &model.Showtime{RoomID: room.ID, MovieTitle: "Film", BasePriceCents: 1000,
		StartsAt: time.Date(2025, 3, 2, 20, 0, 0, 0, time.UTC), EndsAt: time.Date(2025, 3, 2, 22, 0, 0, 0, time.UTC)}
	st.Seats = pricing.GenerateSeats(room, st.BasePriceCents)
	_ = f.Create(context.Background(), st)
	return st
}

func (f *fakeInventory) Create(_ context.Context, st *model.Showtime) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	st.ID = f.nextID
	cp := *st
	cp.Seats = nil
	f.showtimes[st.ID] = &cp
	m := make(map[string]*model.Seat, len(st.Seats))
	for _, s := range st.Seats {
		s := s
		m[s.Name] = &s
	}
	f.seats[st.ID] = m
	return nil
}

func (f *fakeInventory) GetByID(_ context.Context, id uint64) (*model.Showtime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.showtimes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (f *fakeInventory) ListSeats(_ context.Context, showtimeID uint64) ([]model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Seat, 0, len(f.seats[showtimeID]))
	for _, s := range f.seats[showtimeID] {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (f *fakeInventory) GetSeat(_ context.Context, showtimeID uint64, seat string) (*model.Seat, error) {
	f.mu.Lock()
	s, ok := f.seats[showtimeID][seat]
	var cp model.Seat
	if ok {
		cp = *s
	}
	hook := f.afterGetSeat
	f.mu.Unlock()
	if hook != nil {
		hook(showtimeID, seat)
	}
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &cp, nil
}

func (f *fakeInventory) setStatus(showtimeID uint64, seat string, status model.SeatStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seats[showtimeID][seat].Status = status
}

func (f *fakeInventory) status(showtimeID uint64, seat string) model.SeatStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seats[showtimeID][seat].Status
}

type fakeRooms struct{ inv *fakeInventory }

func (r fakeRooms) Create(_ context.Context, room *model.Room) error {
	r.inv.mu.Lock()
	defer r.inv.mu.Unlock()
	room.ID = uint64(len(r.inv.rooms) + 1)
	cp := *room
	r.inv.rooms[room.ID] = &cp
	return nil
}

func (r fakeRooms) GetByID(_ context.Context, id uint64) (*model.Room, error) {
	r.inv.mu.Lock()
	defer r.inv.mu.Unlock()
	room, ok := r.inv.rooms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *room
	return &cp, nil
}

// fakeBookings mirrors BookingRepo's conditional transitions.
type fakeBookings struct {
	mu       sync.Mutex
	inv      *fakeInventory
	bookings map[uint64]*model.Booking
	codes    map[string]bool
	nextID   uint64
	creates  int
}

func newFakeBookings(inv *fakeInventory) *fakeBookings {
	return &fakeBookings{inv: inv, bookings: map[uint64]*model.Booking{}, codes: map[string]bool{}}
}

func (f *fakeBookings) Create(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.codes[b.BookingCode] {
		return repository.ErrDuplicateBookingCode
	}
	f.codes[b.BookingCode] = true
	f.nextID++
	f.creates++
	b.ID = f.nextID
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeBookings) get(id uint64) *model.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bookings[id]
	if b == nil {
		return nil
	}
	cp := *b
	return &cp
}

func (f *fakeBookings) GetByIDForUser(_ context.Context, id, userID uint64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.UserID != userID {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeBookings) FindPendingByCode(_ context.Context, code string, now time.Time) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.BookingCode == code && b.Status == model.BookingPending && b.ExpiresAt.After(now) {
			cp := *b
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeBookings) Settle(_ context.Context, b *model.Booking, paid int64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.bookings[b.ID]
	if cur == nil || cur.Status != model.BookingPending || !cur.ExpiresAt.After(now) {
		return repository.ErrConflict
	}
	for _, name := range cur.SeatNames() {
		if f.inv.status(cur.ShowtimeID, name) != model.SeatAvailable {
			return repository.ErrSeatsUnavailable
		}
	}
	for _, name := range cur.SeatNames() {
		f.inv.setStatus(cur.ShowtimeID, name, model.SeatBooked)
	}
	cur.Status = model.BookingSuccess
	cur.PaidAmountCents = paid
	t := now
	cur.SettledAt = &t
	b.Status = cur.Status
	return nil
}

func (f *fakeBookings) MarkFailed(_ context.Context, id uint64, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bookings[id]
	if b == nil || b.Status != model.BookingPending {
		return false, nil
	}
	b.Status = model.BookingFailed
	b.FailureReason = reason
	return true, nil
}

func (f *fakeBookings) ExpirePending(_ context.Context, now time.Time) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Booking
	for _, b := range f.bookings {
		if b.Status == model.BookingPending && !b.ExpiresAt.After(now) {
			b.Status = model.BookingExpired
			out = append(out, *b)
		}
	}
	return out, nil
}

// recordingNotifier captures every event.
type recordingNotifier struct {
	mu        sync.Mutex
	broadcast []model.Event
	direct    map[uint64][]model.Event
	bound     map[string]uint64
	claimed   map[string][]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{direct: map[uint64][]model.Event{}, bound: map[string]uint64{}, claimed: map[string][]string{}}
}

func (n *recordingNotifier) Broadcast(_ uint64, ev model.Event) {
	n.mu.Lock()
	n.broadcast = append(n.broadcast, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) NotifyBooking(bookingID uint64, ev model.Event) {
	n.mu.Lock()
	n.direct[bookingID] = append(n.direct[bookingID], ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) BindBooking(connID string, bookingID uint64, seats []string) {
	n.mu.Lock()
	n.bound[connID] = bookingID
	n.claimed[connID] = seats
	n.mu.Unlock()
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.broadcast))
	for _, ev := range n.broadcast {
		out = append(out, ev.Type+":"+ev.SeatName)
	}
	return out
}

func (n *recordingNotifier) directTypes(bookingID uint64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, ev := range n.direct[bookingID] {
		out = append(out, ev.Type)
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.BookingSettledEvent
	err    error
}

func (p *fakePublisher) PublishBookingSettled(_ context.Context, ev queue.BookingSettledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

// fixture wires every service over the fakes and an in-memory hold store.
type fixture struct {
	clock     *testClock
	inv       *fakeInventory
	bookings  *fakeBookings
	notifier  *recordingNotifier
	publisher *fakePublisher
	store     *repository.MemoryHoldStore
	holds     *HoldManager
	svc       *BookingService
	rec       *PaymentReconciler
	showtime  *model.Showtime
}

func newFixture(codes ...string) *fixture {
	f := &fixture{clock: newTestClock(), inv: newFakeInventory(), notifier: newRecordingNotifier(), publisher: &fakePublisher{}}
	f.showtime = f.inv.seed()
	f.bookings = newFakeBookings(f.inv)
	f.store = repository.NewMemoryHoldStoreWithClock(f.clock.Now)
	f.holds = NewHoldManager(f.store, f.inv, f.notifier, WithHoldClock(f.clock.Now))

	opts := []BookingOption{WithBookingClock(f.clock.Now)}
	if len(codes) > 0 {
		i := 0
		opts = append(opts, WithCodeGenerator(func() (string, error) {
			c := codes[i%len(codes)]
			i++
			return c, nil
		}))
	}
	f.svc = NewBookingService(f.holds, f.inv, fakeRooms{f.inv}, f.bookings, f.notifier, opts...)
	f.rec = NewPaymentReconciler(f.bookings, f.holds, f.notifier, f.publisher, nil)
	f.rec.SetClock(f.clock.Now)
	return f
}
