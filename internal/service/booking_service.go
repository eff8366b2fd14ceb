package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/pricing"
	"github.com/iliyamo/showtime-booking/internal/repository"
	"github.com/iliyamo/showtime-booking/internal/utils"
)

const (
	// DefaultBookingTTL is the payment window of a pending booking.
	DefaultBookingTTL = 10 * time.Minute
	// DefaultMaxSeats caps the seats of one booking.
	DefaultMaxSeats = 8

	maxCodeAttempts = 5
)

// PaymentReference returns the transfer description a customer must quote
// so that the reconciler can match the payment to the booking.
func PaymentReference(code string) string {
	return "TICKET " + code
}

// CreateBookingInput is the request to turn held seats into a booking.
// ConnectionID optionally names the realtime connection that should
// receive this booking's notifications.
type CreateBookingInput struct {
	ShowtimeID    uint64
	Seats         []string
	UserID        uint64
	PaymentMethod string
	ConnectionID  string
}

// CreateBookingResult is a pending booking plus what the customer needs
// to pay for it.
type CreateBookingResult struct {
	Booking          *model.Booking
	PaymentReference string
	QRCode           string // base64 PNG encoding PaymentPayload
	PaymentPayload   string
}

// BookingService drives the booking state machine from creation to
// cancellation.  Settlement lives in PaymentReconciler and expiry in
// ExpirySweeper.
type BookingService struct {
	holds     *HoldManager
	inventory SeatInventory
	rooms     RoomStore
	bookings  BookingStore
	notifier  Notifier
	newCode   func() (string, error)
	ttl       time.Duration
	maxSeats  int
	now       func() time.Time
	log       *zap.Logger
}

// BookingOption customises a BookingService.
type BookingOption func(*BookingService)

func WithBookingTTL(ttl time.Duration) BookingOption {
	return func(s *BookingService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithMaxSeats(n int) BookingOption {
	return func(s *BookingService) {
		if n > 0 {
			s.maxSeats = n
		}
	}
}

// WithCodeGenerator replaces utils.NewBookingCode.
func WithCodeGenerator(gen func() (string, error)) BookingOption {
	return func(s *BookingService) { s.newCode = gen }
}

func WithBookingClock(now func() time.Time) BookingOption {
	return func(s *BookingService) { s.now = now }
}

func WithBookingLogger(log *zap.Logger) BookingOption {
	return func(s *BookingService) { s.log = log.Named("bookings") }
}

// NewBookingService wires the booking service.
func NewBookingService(holds *HoldManager, inventory SeatInventory, rooms RoomStore, bookings BookingStore, notifier Notifier, opts ...BookingOption) *BookingService {
	if holds == nil || inventory == nil || rooms == nil || bookings == nil || notifier == nil {
		panic("nil dependency passed to NewBookingService")
	}
	s := &BookingService{
		holds:     holds,
		inventory: inventory,
		rooms:     rooms,
		bookings:  bookings,
		notifier:  notifier,
		newCode:   utils.NewBookingCode,
		ttl:       DefaultBookingTTL,
		maxSeats:  DefaultMaxSeats,
		now:       time.Now,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create verifies the caller still holds every requested seat and
// records a pending booking priced from the room tiers.  Seat inventory
// is not touched; the seats stay protected by their holds, which are
// extended to the booking's payment window.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*CreateBookingResult, error) {
	seats := normalizeSeats(in.Seats)
	if len(seats) == 0 {
		return nil, ErrNoSeats
	}
	if len(seats) > s.maxSeats {
		return nil, ErrTooManySeats
	}
	if err := s.holds.Verify(ctx, in.ShowtimeID, seats, in.UserID); err != nil {
		return nil, err
	}

	st, err := s.inventory.GetByID(ctx, in.ShowtimeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShowtimeNotFound
		}
		return nil, fmt.Errorf("load showtime: %w", err)
	}
	room, err := s.rooms.GetByID(ctx, st.RoomID)
	if err != nil {
		return nil, fmt.Errorf("load room %d: %w", st.RoomID, err)
	}
	inventory, err := s.inventory.ListSeats(ctx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("load seats: %w", err)
	}
	byName := make(map[string]model.Seat, len(inventory))
	for _, seat := range inventory {
		byName[seat.Name] = seat
	}

	lines := make([]model.BookingSeat, 0, len(seats))
	var total int64
	for _, name := range seats {
		seat, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSeatNotFound, name)
		}
		if seat.Status == model.SeatBooked {
			return nil, fmt.Errorf("%w: %s", ErrSeatBooked, name)
		}
		price, err := pricing.SeatPrice(room, st.BasePriceCents, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrSeatNotFound, name)
		}
		lines = append(lines, model.BookingSeat{SeatName: name, PriceCents: price})
		total += price
	}

	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = model.PaymentBankTransfer
	}
	b := &model.Booking{
		UserID:          in.UserID,
		ShowtimeID:      st.ID,
		Seats:           lines,
		TotalPriceCents: total,
		Status:          model.BookingPending,
		PaymentMethod:   method,
		ExpiresAt:       s.now().UTC().Add(s.ttl),
	}
	if err := s.insertWithCode(ctx, b); err != nil {
		return nil, err
	}

	if err := s.holds.Extend(ctx, st.ID, seats, in.UserID, s.ttl); err != nil {
		// settlement re-validates holds, so a lapse here is not fatal
		s.log.Warn("could not extend holds to booking window", zap.Uint64("booking_id", b.ID), zap.Error(err))
	}
	if in.ConnectionID != "" {
		s.notifier.BindBooking(in.ConnectionID, b.ID, seats)
	}

	ref := PaymentReference(b.BookingCode)
	payload := PaymentPayload(b.TotalPriceCents, ref)
	qr, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode payment qr: %w", err)
	}
	s.log.Info("booking created", zap.Uint64("booking_id", b.ID), zap.String("code", b.BookingCode),
		zap.Uint64("user_id", b.UserID), zap.Strings("seats", seats), zap.Int64("total_cents", total))
	return &CreateBookingResult{
		Booking:          b,
		PaymentReference: ref,
		PaymentPayload:   payload,
		QRCode:           base64.StdEncoding.EncodeToString(qr),
	}, nil
}

// insertWithCode draws booking codes until the insert succeeds or
// maxCodeAttempts collisions have been seen.
func (s *BookingService) insertWithCode(ctx context.Context, b *model.Booking) error {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return fmt.Errorf("generate booking code: %w", err)
		}
		b.BookingCode = code
		err = s.bookings.Create(ctx, b)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateBookingCode) {
			return fmt.Errorf("insert booking: %w", err)
		}
		s.log.Debug("booking code collision", zap.String("code", code), zap.Int("attempt", attempt))
	}
	return ErrBookingCodeExhausted
}

// PaymentPayload is the text encoded in the payment QR code.
func PaymentPayload(amountCents int64, reference string) string {
	return fmt.Sprintf("amount=%d;currency_unit=cents;reference=%s", amountCents, reference)
}

// Get returns one of the caller's bookings.  A pending booking whose
// payment window has closed is reported as expired even before the
// sweeper has persisted that.
func (s *BookingService) Get(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
	b, err := s.bookings.GetByIDForUser(ctx, bookingID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	s.applyReadExpiry(b)
	return b, nil
}

// ListByUser returns the caller's bookings, newest first.
func (s *BookingService) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	list, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		s.applyReadExpiry(&list[i])
	}
	return list, nil
}

func (s *BookingService) applyReadExpiry(b *model.Booking) {
	if b.Status == model.BookingPending && !s.now().Before(b.ExpiresAt) {
		b.Status = model.BookingExpired
	}
}

// Cancel abandons a pending booking: it is marked failed with reason
// cancelled_by_user and the caller's holds on its seats are released.
func (s *BookingService) Cancel(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
	b, err := s.Get(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if b.Status != model.BookingPending {
		return nil, ErrBookingNotPending
	}
	ok, err := s.bookings.MarkFailed(ctx, b.ID, model.FailureCancelledByUser)
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	if !ok {
		return nil, ErrBookingNotPending
	}
	b.Status = model.BookingFailed
	b.FailureReason = model.FailureCancelledByUser

	releaseUnclaimed(ctx, s.bookings, s.holds, s.log, s.now().UTC(), b)
	s.notifier.NotifyBooking(b.ID, model.Event{
		Type: model.EventBookingFailed, BookingID: b.ID, BookingCode: b.BookingCode,
		ShowtimeID: b.ShowtimeID, Status: string(b.Status), Reason: b.FailureReason,
	})
	s.log.Info("booking cancelled", zap.Uint64("booking_id", b.ID), zap.Uint64("user_id", userID))
	return b, nil
}

// UnclaimedSeats returns the seats that no live pending booking of userID
// for the showtime covers.  Holds on the other seats back a booking and
// must outlive the connection that took them.
func (s *BookingService) UnclaimedSeats(ctx context.Context, showtimeID, userID uint64, seats []string) ([]string, error) {
	return unclaimedSeats(ctx, s.bookings, s.now().UTC(), showtimeID, userID, 0, seats)
}

// unclaimedSeats filters seats down to those not covered by a pending,
// unexpired booking of userID other than exceptID.  Holds are keyed by
// owner rather than booking, so a seat re-held for a newer booking shares
// its hold with the older one.
func unclaimedSeats(ctx context.Context, store BookingStore, now time.Time, showtimeID, userID, exceptID uint64, seats []string) ([]string, error) {
	list, err := store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings of user %d: %w", userID, err)
	}
	claimed := make(map[string]bool)
	for i := range list {
		b := &list[i]
		if b.ID == exceptID || b.ShowtimeID != showtimeID || b.Status != model.BookingPending || !now.Before(b.ExpiresAt) {
			continue
		}
		for _, name := range b.SeatNames() {
			claimed[name] = true
		}
	}
	out := make([]string, 0, len(seats))
	for _, name := range seats {
		if !claimed[name] {
			out = append(out, name)
		}
	}
	return out, nil
}

// releaseUnclaimed releases the holds of a booking that left pending,
// keeping those another pending booking of the same user still needs.
// When the lookup fails the holds are left to lapse on their own.
func releaseUnclaimed(ctx context.Context, store BookingStore, holds *HoldManager, log *zap.Logger, now time.Time, b *model.Booking) {
	seats, err := unclaimedSeats(ctx, store, now, b.ShowtimeID, b.UserID, b.ID, b.SeatNames())
	if err != nil {
		log.Warn("holds left to lapse", zap.Uint64("booking_id", b.ID), zap.Error(err))
		return
	}
	holds.ReleaseAll(ctx, b.ShowtimeID, seats, b.UserID)
}

// normalizeSeats trims, upper-cases and de-duplicates seat names keeping
// the first occurrence order.
func normalizeSeats(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		n := pricing.NormalizeSeatName(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
