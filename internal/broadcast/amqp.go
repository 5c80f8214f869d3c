package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/valkyrion/radiobot/internal/radio"
)

const (
	publishTimeout = 5 * time.Second
	queueDepth     = 64
)

type event struct {
	routingKey string
	payload    any
}

// Publisher relays core events to an AMQP topic exchange for the external
// dashboard and API processes. Events are queued and published on the
// publisher's own goroutine; the emitter never blocks on the broker. A nil
// Publisher is a no-op, so the bot runs fine without a broker.
type Publisher struct {
	exchange string
	events   chan event
	done     chan struct{}

	closeOnce sync.Once

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect dials the broker, declares the exchange, and starts the publish
// loop. An empty url returns (nil, nil): broadcasting disabled.
func Connect(url, exchange string) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	p := &Publisher{
		exchange: exchange,
		events:   make(chan event, queueDepth),
		done:     make(chan struct{}),
		conn:     conn,
		ch:       ch,
	}
	go p.run()

	slog.Info("event broadcasting enabled", "exchange", exchange)
	return p, nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.done)
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.ch != nil {
			_ = p.ch.Close()
		}
		if p.conn != nil {
			_ = p.conn.Close()
		}
	})
}

func (p *Publisher) OnSessionUpdate(u radio.SessionUpdate) {
	p.enqueue("session.update", u)
}

func (p *Publisher) OnStatusUpdate(u radio.StatusUpdate) {
	p.enqueue("status.update", u)
}

// enqueue hands the event to the publish loop without ever blocking the
// caller. A full queue drops the event; the dashboard reconciles from the
// next one.
func (p *Publisher) enqueue(routingKey string, payload any) {
	if p == nil {
		return
	}
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.events <- event{routingKey: routingKey, payload: payload}:
	default:
		slog.Warn("broadcast queue full, dropping event", "routingKey", routingKey)
	}
}

func (p *Publisher) run() {
	for {
		select {
		case <-p.done:
			return
		case ev := <-p.events:
			p.publish(ev.routingKey, ev.payload)
		}
	}
}

func (p *Publisher) publish(routingKey string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("could not marshal broadcast event", "routingKey", routingKey, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        body,
	}); err != nil {
		slog.Warn("broadcast publish failed", "routingKey", routingKey, "err", err)
	}
}
