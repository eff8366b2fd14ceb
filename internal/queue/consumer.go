package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// Consumer listens to the booking.settled queue and writes one audit
// record per settlement through a dedicated logger (normally a file
// logger on logs/booking.log).
type Consumer struct {
    url   string
    log   *zap.Logger
    audit *zap.Logger
}

// NewConsumer returns a consumer that logs operational messages to log and
// audit records to audit.
func NewConsumer(url string, log, audit *zap.Logger) *Consumer {
    if log == nil || audit == nil {
        panic("nil logger passed to NewConsumer")
    }
    return &Consumer{url: url, log: log.Named("booking-consumer"), audit: audit}
}

// Run dials the broker and consumes until ctx is cancelled, reconnecting
// with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn("consume loop ended, reconnecting", zap.Error(err))
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn("set QoS failed", zap.Error(err))
    }
    if _, err := ch.QueueDeclare(QueueBookingSettled, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(QueueBookingSettled, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.HandleMessage(d.Body); err != nil {
                c.log.Error("handle message failed", zap.Error(err))
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// HandleMessage decodes one settlement event and writes its audit record.
func (c *Consumer) HandleMessage(body []byte) error {
    var ev BookingSettledEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.BookingID == 0 {
        return errors.New("event without booking_id")
    }
    c.audit.Info("booking settled",
        zap.String("message_id", ev.MessageID),
        zap.Uint64("booking_id", ev.BookingID),
        zap.String("booking_code", ev.BookingCode),
        zap.Uint64("user_id", ev.UserID),
        zap.Uint64("showtime_id", ev.ShowtimeID),
        zap.Strings("seats", ev.Seats),
        zap.Int64("total_price_cents", ev.TotalPriceCents),
        zap.Int64("paid_amount_cents", ev.PaidAmountCents),
        zap.String("settled_at", ev.SettledAt),
    )
    return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
