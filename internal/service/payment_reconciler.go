package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/queue"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

// ReconcileOutcome is the business result of one payment notification.
// Every outcome is acknowledged to the payment provider.
type ReconcileOutcome string

const (
	OutcomeSettled   ReconcileOutcome = "settled"
	OutcomeNoCode    ReconcileOutcome = "no_code"
	OutcomeNotFound  ReconcileOutcome = "not_found"
	OutcomeUnderpaid ReconcileOutcome = "underpaid"
	OutcomeFailed    ReconcileOutcome = "failed"
)

var bookingCodePattern = regexp.MustCompile(`(?i)TICKET\s*([A-Z0-9]{6})\b`)

// ExtractBookingCode finds the booking code quoted in a transfer
// description.  The result is upper-cased; ok is false when none is found.
func ExtractBookingCode(description string) (string, bool) {
	m := bookingCodePattern.FindStringSubmatch(description)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

// PaymentNotification is one inbound payment report.  Amount is in the
// same minor unit as booking prices and is rounded to the nearest unit.
type PaymentNotification struct {
	Description string
	Amount      float64
}

// PaymentReconciler settles pending bookings from payment notifications.
// It is safe under at-least-once delivery: only the first notification
// for a booking can move it out of pending.
type PaymentReconciler struct {
	bookings  BookingStore
	holds     *HoldManager
	notifier  Notifier
	publisher SettlementPublisher
	now       func() time.Time
	log       *zap.Logger
}

// NewPaymentReconciler wires the reconciler.  publisher may be nil when
// no broker is configured.
func NewPaymentReconciler(bookings BookingStore, holds *HoldManager, notifier Notifier, publisher SettlementPublisher, log *zap.Logger) *PaymentReconciler {
	if bookings == nil || holds == nil || notifier == nil {
		panic("nil dependency passed to NewPaymentReconciler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentReconciler{
		bookings:  bookings,
		holds:     holds,
		notifier:  notifier,
		publisher: publisher,
		now:       time.Now,
		log:       log.Named("reconciler"),
	}
}

// SetClock replaces the wall clock; used by tests.
func (r *PaymentReconciler) SetClock(now func() time.Time) { r.now = now }

// Handle matches a notification to a pending booking and settles it.  An
// error is returned only for infrastructure failures.
func (r *PaymentReconciler) Handle(ctx context.Context, n PaymentNotification) (ReconcileOutcome, error) {
	code, ok := ExtractBookingCode(n.Description)
	if !ok {
		r.log.Info("payment without booking code", zap.String("description", n.Description))
		return OutcomeNoCode, nil
	}
	now := r.now().UTC()
	b, err := r.bookings.FindPendingByCode(ctx, code, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.log.Info("no pending booking for code", zap.String("code", code))
			return OutcomeNotFound, nil
		}
		return "", fmt.Errorf("find booking %s: %w", code, err)
	}

	paid := int64(math.Round(n.Amount))
	if paid < b.TotalPriceCents {
		r.log.Info("underpaid booking", zap.Uint64("booking_id", b.ID),
			zap.Int64("paid_cents", paid), zap.Int64("total_cents", b.TotalPriceCents))
		return OutcomeUnderpaid, nil
	}

	seats := b.SeatNames()
	holders, err := r.holds.SeatHolders(ctx, b.ShowtimeID, seats)
	if err != nil {
		return "", err
	}
	for i, h := range holders {
		if h != 0 && h != b.UserID {
			r.log.Info("seat taken by another user before payment", zap.Uint64("booking_id", b.ID),
				zap.String("seat", seats[i]), zap.Uint64("holder", h))
			return r.fail(ctx, b)
		}
	}

	switch err := r.bookings.Settle(ctx, b, paid, now); {
	case err == nil:
	case errors.Is(err, repository.ErrConflict):
		r.log.Info("booking already left pending", zap.Uint64("booking_id", b.ID))
		return OutcomeNotFound, nil
	case errors.Is(err, repository.ErrSeatsUnavailable):
		r.log.Info("seats no longer available at settlement", zap.Uint64("booking_id", b.ID))
		return r.fail(ctx, b)
	default:
		return "", fmt.Errorf("settle booking %d: %w", b.ID, err)
	}

	r.holds.Drop(ctx, b.ShowtimeID, seats, b.UserID)
	for _, s := range seats {
		r.notifier.Broadcast(b.ShowtimeID, model.SeatEvent(model.EventSeatSold, b.ShowtimeID, s, b.UserID))
	}
	r.notifier.NotifyBooking(b.ID, model.Event{
		Type: model.EventBookingSuccess, BookingID: b.ID, BookingCode: b.BookingCode,
		ShowtimeID: b.ShowtimeID, Status: string(model.BookingSuccess),
	})
	r.publish(ctx, b, paid, now)
	r.log.Info("booking settled", zap.Uint64("booking_id", b.ID), zap.String("code", b.BookingCode),
		zap.Int64("paid_cents", paid))
	return OutcomeSettled, nil
}

// fail marks b failed for seat_unavailable, releases the owner's holds
// that no other pending booking needs and tells the owner's connection.
func (r *PaymentReconciler) fail(ctx context.Context, b *model.Booking) (ReconcileOutcome, error) {
	ok, err := r.bookings.MarkFailed(ctx, b.ID, model.FailureSeatUnavailable)
	if err != nil {
		return "", fmt.Errorf("mark booking %d failed: %w", b.ID, err)
	}
	if !ok {
		return OutcomeNotFound, nil
	}
	releaseUnclaimed(ctx, r.bookings, r.holds, r.log, r.now().UTC(), b)
	r.notifier.NotifyBooking(b.ID, model.Event{
		Type: model.EventBookingFailed, BookingID: b.ID, BookingCode: b.BookingCode,
		ShowtimeID: b.ShowtimeID, Status: string(model.BookingFailed), Reason: model.FailureSeatUnavailable,
	})
	return OutcomeFailed, nil
}

func (r *PaymentReconciler) publish(ctx context.Context, b *model.Booking, paid int64, at time.Time) {
	if r.publisher == nil {
		return
	}
	ev := queue.BookingSettledEvent{
		MessageID:       uuid.NewString(),
		BookingID:       b.ID,
		BookingCode:     b.BookingCode,
		UserID:          b.UserID,
		ShowtimeID:      b.ShowtimeID,
		Seats:           b.SeatNames(),
		TotalPriceCents: b.TotalPriceCents,
		PaidAmountCents: paid,
		SettledAt:       at.Format(time.RFC3339),
	}
	if err := r.publisher.PublishBookingSettled(ctx, ev); err != nil {
		r.log.Warn("publish booking.settled failed", zap.Uint64("booking_id", b.ID), zap.Error(err))
	}
}
