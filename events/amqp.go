package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

const (
	dialAttempts   = 5
	dialBaseDelay  = 500 * time.Millisecond
	reconnectDelay = 5 * time.Second
	publishTimeout = 5 * time.Second
)

// ErrPublisherClosed is returned by Publish after Close
var ErrPublisherClosed = errors.New("amqp publisher is closed")

// dialFunc opens a connection and a channel with the exchange declared
type dialFunc func(ctx context.Context) (*amqp.Connection, *amqp.Channel, error)

// AMQPPublisher publishes events to a durable topic exchange, one routing key
// per event type. A dropped connection is re-established in the background,
// and a publish that finds no channel dials once before giving up.
type AMQPPublisher struct {
	exchange string
	log      *logrus.Logger
	dial     dialFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// DialAMQP connects to the broker, retrying with backoff, and declares the exchange
func DialAMQP(ctx context.Context, url, exchange string, log *logrus.Logger) (*AMQPPublisher, error) {
	p := newAMQPPublisher(exchange, log, func(context.Context) (*amqp.Connection, *amqp.Channel, error) {
		return openChannel(url, exchange)
	})

	backoff := retry.WithMaxRetries(dialAttempts-1, retry.NewExponential(dialBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := p.connect(ctx); err != nil {
			log.WithError(err).Warn("RabbitMQ dial failed, retrying")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		p.cancel()
		return nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	log.WithField("exchange", exchange).Info("Connected to RabbitMQ")
	return p, nil
}

func newAMQPPublisher(exchange string, log *logrus.Logger, dial dialFunc) *AMQPPublisher {
	ctx, cancel := context.WithCancel(context.Background())
	return &AMQPPublisher{exchange: exchange, log: log, dial: dial, ctx: ctx, cancel: cancel}
}

func openChannel(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return conn, ch, nil
}

// connect dials and installs a fresh connection. Callers must not hold mu.
func (p *AMQPPublisher) connect(ctx context.Context) error {
	conn, ch, err := p.dial(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		ch.Close()
		conn.Close()
		return ErrPublisherClosed
	}
	if p.channel != nil && !p.channel.IsClosed() {
		// lost a race with another reconnect
		p.mu.Unlock()
		ch.Close()
		conn.Close()
		return nil
	}
	p.conn, p.channel = conn, ch
	p.mu.Unlock()

	go p.monitor(conn)
	return nil
}

// monitor waits for conn to drop and reconnects until it succeeds or the
// publisher is closed
func (p *AMQPPublisher) monitor(conn *amqp.Connection) {
	notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

	select {
	case err := <-notifyClose:
		if err == nil {
			return // closed by us
		}
		p.log.WithError(err).Error("RabbitMQ connection closed unexpectedly")
	case <-p.ctx.Done():
		return
	}

	p.mu.Lock()
	if p.conn == conn {
		p.conn, p.channel = nil, nil
	}
	p.mu.Unlock()

	for attempt := 1; ; attempt++ {
		select {
		case <-p.ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}

		if p.connected() {
			return // a publish already reconnected
		}
		if err := p.connect(p.ctx); err != nil {
			if errors.Is(err, ErrPublisherClosed) {
				return
			}
			p.log.WithError(err).WithField("attempt", attempt).Warn("RabbitMQ reconnect failed")
			continue
		}
		p.log.WithField("attempt", attempt).Info("Reconnected to RabbitMQ")
		return
	}
}

func (p *AMQPPublisher) connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel != nil && !p.channel.IsClosed()
}

// Publish sends the event as a persistent JSON message
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	ch, err := p.currentChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	if err := ch.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

// currentChannel returns the open channel, dialing once if the connection
// has dropped
func (p *AMQPPublisher) currentChannel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPublisherClosed
	}
	if p.channel != nil && !p.channel.IsClosed() {
		ch := p.channel
		p.mu.Unlock()
		return ch, nil
	}
	p.mu.Unlock()

	if p.dial == nil {
		return nil, errors.New("amqp publisher is not connected")
	}
	if err := p.connect(ctx); err != nil {
		return nil, fmt.Errorf("reconnect: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel, nil
}

// Close shuts the channel and connection and stops reconnecting
func (p *AMQPPublisher) Close() error {
	if p.cancel != nil {
		p.cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

func newPublishing(event Event) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Body:         body,
	}, nil
}
