package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// DefaultSweepInterval is how often the sweeper looks for lapsed bookings.
const DefaultSweepInterval = 30 * time.Second

// ExpirySweeper periodically moves pending bookings past their payment
// window to expired.  Reads already ignore lapsed bookings; the sweeper
// makes the state durable and notifies the owners.
type ExpirySweeper struct {
	bookings BookingStore
	holds    *HoldManager
	notifier Notifier
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewExpirySweeper returns a sweeper running every interval.
func NewExpirySweeper(bookings BookingStore, holds *HoldManager, notifier Notifier, interval time.Duration, log *zap.Logger) *ExpirySweeper {
	if bookings == nil || holds == nil || notifier == nil {
		panic("nil dependency passed to NewExpirySweeper")
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ExpirySweeper{
		bookings: bookings,
		holds:    holds,
		notifier: notifier,
		interval: interval,
		now:      time.Now,
		log:      log.Named("expiry"),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep expires lapsed pending bookings once and returns how many moved.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now().UTC()
	expired, err := s.bookings.ExpirePending(ctx, now)
	for i := range expired {
		b := &expired[i]
		releaseUnclaimed(ctx, s.bookings, s.holds, s.log, now, b)
		s.notifier.NotifyBooking(b.ID, model.Event{
			Type: model.EventBookingExpired, BookingID: b.ID, BookingCode: b.BookingCode,
			ShowtimeID: b.ShowtimeID, Status: string(model.BookingExpired),
		})
	}
	if len(expired) > 0 {
		s.log.Info("expired pending bookings", zap.Int("count", len(expired)))
	}
	return len(expired), err
}
