package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

const (
    // DialTimeout bounds how long a publish may wait on an unreachable broker.
    DialTimeout = 2 * time.Second
    // RedialBackoff is how long publishes fail fast after a failed dial.
    RedialBackoff = 10 * time.Second
)

// ErrBrokerUnavailable is returned while the publisher is backing off
// after a failed dial.
var ErrBrokerUnavailable = errors.New("rabbitmq unavailable")

// Publisher publishes settlement events to RabbitMQ.  The connection is
// dialed lazily and reused; a failed publish drops it so the next call
// redials.  After a failed dial, publishes fail immediately until
// RedialBackoff has passed.  Failures are logged and returned so the
// caller can choose to ignore them.
type Publisher struct {
    url  string
    log  *zap.Logger
    dial func(url string) (*amqp.Connection, error)
    now  func() time.Time

    mu        sync.Mutex
    conn      *amqp.Connection
    ch        *amqp.Channel
    downUntil time.Time
}

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url string, log *zap.Logger) *Publisher {
    if log == nil {
        log = zap.NewNop()
    }
    return &Publisher{
        url: url,
        log: log.Named("publisher"),
        dial: func(url string) (*amqp.Connection, error) {
            return amqp.DialConfig(url, amqp.Config{Locale: "en_US", Dial: amqp.DefaultDial(DialTimeout)})
        },
        now: time.Now,
    }
}

// PublishBookingSettled sends ev to the booking.settled queue as a
// persistent JSON message.
func (p *Publisher) PublishBookingSettled(ctx context.Context, ev BookingSettledEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    p.mu.Lock()
    defer p.mu.Unlock()

    ch, err := p.channel()
    if err != nil {
        p.log.Warn("rabbitmq unavailable", zap.Error(err))
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    ev.MessageID,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", QueueBookingSettled, false, false, pub); err != nil {
        p.log.Warn("publish failed", zap.Uint64("booking_id", ev.BookingID), zap.Error(err))
        p.reset()
        return err
    }
    return nil
}

// channel returns an open channel with the queue declared, dialing when
// needed.  Callers must hold p.mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
    if p.ch != nil && !p.ch.IsClosed() {
        return p.ch, nil
    }
    p.reset()
    if p.now().Before(p.downUntil) {
        return nil, ErrBrokerUnavailable
    }
    conn, err := p.dial(p.url)
    if err != nil {
        p.downUntil = p.now().Add(RedialBackoff)
        return nil, fmt.Errorf("dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("channel open: %w", err)
    }
    if _, err := ch.QueueDeclare(QueueBookingSettled, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, fmt.Errorf("queue declare: %w", err)
    }
    p.conn, p.ch = conn, ch
    return ch, nil
}

func (p *Publisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.reset()
    return nil
}
