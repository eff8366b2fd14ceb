package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/pricing"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

// DefaultHoldTTL is how long a seat hold lives without being refreshed.
const DefaultHoldTTL = 5 * time.Minute

// HoldKey returns the hold store key of one seat of a showtime.
func HoldKey(showtimeID uint64, seat string) string {
	return fmt.Sprintf("hold:%d:%s", showtimeID, seat)
}

func holdPrefix(showtimeID uint64) string {
	return fmt.Sprintf("hold:%d:", showtimeID)
}

// HoldManager grants, releases and checks temporary exclusive seat holds.
// Mutual exclusion comes only from the store's atomic primitives; the
// manager itself keeps no state.
type HoldManager struct {
	store     HoldStore
	inventory SeatInventory
	events    Broadcaster
	ttl       time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// HoldOption customises a HoldManager.
type HoldOption func(*HoldManager)

// WithHoldTTL overrides DefaultHoldTTL.
func WithHoldTTL(ttl time.Duration) HoldOption {
	return func(m *HoldManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithHoldClock sets the clock used to compute hold expiry times.
func WithHoldClock(now func() time.Time) HoldOption {
	return func(m *HoldManager) { m.now = now }
}

// WithHoldLogger sets the logger.
func WithHoldLogger(log *zap.Logger) HoldOption {
	return func(m *HoldManager) { m.log = log.Named("holds") }
}

// NewHoldManager wires a manager over a hold store and the seat inventory.
// Events are broadcast through events after each successful acquire or
// release.
func NewHoldManager(store HoldStore, inventory SeatInventory, events Broadcaster, opts ...HoldOption) *HoldManager {
	if store == nil || inventory == nil || events == nil {
		panic("nil dependency passed to NewHoldManager")
	}
	m := &HoldManager{
		store:     store,
		inventory: inventory,
		events:    events,
		ttl:       DefaultHoldTTL,
		now:       time.Now,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the configured hold lifetime.
func (m *HoldManager) TTL() time.Duration { return m.ttl }

// Acquire places a hold on seat for userID.  A user re-acquiring a seat
// they already hold gets a fresh TTL.  Errors: ErrSeatNotFound,
// ErrSeatBooked, ErrSeatHeld (the returned Hold names the current
// holder), or an infrastructure error.
func (m *HoldManager) Acquire(ctx context.Context, showtimeID uint64, seat string, userID uint64) (model.Hold, error) {
	seat = pricing.NormalizeSeatName(seat)
	hold := model.Hold{ShowtimeID: showtimeID, SeatName: seat}
	if err := m.checkBookable(ctx, showtimeID, seat); err != nil {
		return hold, err
	}

	key := HoldKey(showtimeID, seat)
	owner := strconv.FormatUint(userID, 10)
	holder, granted, err := m.store.Acquire(ctx, key, owner, m.ttl)
	if err != nil {
		return hold, fmt.Errorf("acquire hold: %w", err)
	}
	if !granted {
		hold.UserID = parseOwner(holder)
		m.log.Debug("seat held by another user", zap.Uint64("showtime_id", showtimeID),
			zap.String("seat", seat), zap.Uint64("user_id", userID), zap.Uint64("holder", hold.UserID))
		return hold, ErrSeatHeld
	}

	// Settlement may have booked the seat between the check and the grant.
	if err := m.checkBookable(ctx, showtimeID, seat); err != nil {
		if _, relErr := m.store.Release(ctx, key, owner); relErr != nil {
			m.log.Warn("release after failed re-check", zap.String("key", key), zap.Error(relErr))
		}
		return hold, err
	}

	hold.UserID = userID
	hold.ExpiresAt = m.now().Add(m.ttl)
	m.events.Broadcast(showtimeID, model.SeatEvent(model.EventSeatHeld, showtimeID, seat, userID))
	return hold, nil
}

func (m *HoldManager) checkBookable(ctx context.Context, showtimeID uint64, seat string) error {
	if seat == "" {
		return ErrSeatNotFound
	}
	s, err := m.inventory.GetSeat(ctx, showtimeID, seat)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSeatNotFound
		}
		return fmt.Errorf("load seat: %w", err)
	}
	if s.Status == model.SeatBooked {
		return ErrSeatBooked
	}
	return nil
}

// Release removes userID's hold on seat.  It reports false, without
// error, when the seat is not held or held by someone else.
func (m *HoldManager) Release(ctx context.Context, showtimeID uint64, seat string, userID uint64) (bool, error) {
	seat = pricing.NormalizeSeatName(seat)
	ok, err := m.store.Release(ctx, HoldKey(showtimeID, seat), strconv.FormatUint(userID, 10))
	if err != nil {
		return false, fmt.Errorf("release hold: %w", err)
	}
	if ok {
		m.events.Broadcast(showtimeID, model.SeatEvent(model.EventSeatReleased, showtimeID, seat, userID))
	}
	return ok, nil
}

// ReleaseAll releases every listed seat held by userID and returns how
// many were released.  Store errors are logged and skipped.
func (m *HoldManager) ReleaseAll(ctx context.Context, showtimeID uint64, seats []string, userID uint64) int {
	n := 0
	for _, s := range seats {
		ok, err := m.Release(ctx, showtimeID, s, userID)
		if err != nil {
			m.log.Warn("release failed", zap.Uint64("showtime_id", showtimeID), zap.String("seat", s), zap.Error(err))
			continue
		}
		if ok {
			n++
		}
	}
	return n
}

// Drop deletes userID's holds on seats without broadcasting.  Settlement
// uses it because the seats are announced as sold instead.
func (m *HoldManager) Drop(ctx context.Context, showtimeID uint64, seats []string, userID uint64) {
	owner := strconv.FormatUint(userID, 10)
	for _, s := range seats {
		if _, err := m.store.Release(ctx, HoldKey(showtimeID, s), owner); err != nil {
			m.log.Warn("drop hold failed", zap.Uint64("showtime_id", showtimeID), zap.String("seat", s), zap.Error(err))
		}
	}
}

// Verify checks with one batched read that userID holds every seat.  The
// first seat, in request order, that is not held by userID is reported
// as a *NotHeldError.
func (m *HoldManager) Verify(ctx context.Context, showtimeID uint64, seats []string, userID uint64) error {
	holders, err := m.SeatHolders(ctx, showtimeID, seats)
	if err != nil {
		return err
	}
	for i, h := range holders {
		if h != userID {
			return &NotHeldError{Seat: seats[i]}
		}
	}
	return nil
}

// SeatHolders returns the holder of each seat in order, 0 where the seat
// is not held.
func (m *HoldManager) SeatHolders(ctx context.Context, showtimeID uint64, seats []string) ([]uint64, error) {
	if len(seats) == 0 {
		return nil, nil
	}
	keys := make([]string, len(seats))
	for i, s := range seats {
		keys[i] = HoldKey(showtimeID, s)
	}
	vals, err := m.store.Get(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("read holds: %w", err)
	}
	out := make([]uint64, len(vals))
	for i, v := range vals {
		out[i] = parseOwner(v)
	}
	return out, nil
}

// Extend sets the TTL of userID's holds on seats to ttl.  The first seat
// no longer held by userID is reported as a *NotHeldError; seats before
// it keep their new TTL.
func (m *HoldManager) Extend(ctx context.Context, showtimeID uint64, seats []string, userID uint64, ttl time.Duration) error {
	owner := strconv.FormatUint(userID, 10)
	for _, s := range seats {
		ok, err := m.store.Extend(ctx, HoldKey(showtimeID, s), owner, ttl)
		if err != nil {
			return fmt.Errorf("extend hold: %w", err)
		}
		if !ok {
			return &NotHeldError{Seat: s}
		}
	}
	return nil
}

// Holders returns every current hold of a showtime as seat name to user id.
func (m *HoldManager) Holders(ctx context.Context, showtimeID uint64) (map[string]uint64, error) {
	prefix := holdPrefix(showtimeID)
	raw, err := m.store.Scan(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan holds: %w", err)
	}
	out := make(map[string]uint64, len(raw))
	for k, v := range raw {
		if id := parseOwner(v); id != 0 {
			out[strings.TrimPrefix(k, prefix)] = id
		}
	}
	return out, nil
}

// Snapshot builds the seat map a joining viewer starts from: booked seats
// from the inventory and current holds, read concurrently.
func (m *HoldManager) Snapshot(ctx context.Context, showtimeID uint64) (model.Event, error) {
	var (
		seats []model.Seat
		held  map[string]uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		seats, err = m.inventory.ListSeats(gctx, showtimeID)
		return err
	})
	g.Go(func() error {
		var err error
		held, err = m.Holders(gctx, showtimeID)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Event{}, err
	}
	booked := make([]string, 0)
	for _, s := range seats {
		if s.Status == model.SeatBooked {
			booked = append(booked, s.Name)
			delete(held, s.Name)
		}
	}
	return model.Event{Type: model.EventSnapshot, ShowtimeID: showtimeID, Booked: booked, Held: held}, nil
}

func parseOwner(v string) uint64 {
	if v == "" {
		return 0
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
