package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-busticketing/internal/config"
	"ms-busticketing/internal/logger"
	"ms-busticketing/internal/models"
)

const (
	publishTimeout = 5 * time.Second
	queueSize      = 256
)

type publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// TicketPublisher emits ticket and seat events after their transaction commits.
// Events are queued and written by a background worker, so a slow or unreachable
// broker never holds up the caller. Failures and dropped batches are logged.
type TicketPublisher struct {
	Producer publisher
	Topics   config.TopicConfig
	Logger   *logger.Logger
	now      func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan []kafka.Message
	done   chan struct{}
}

func NewTicketPublisher(p publisher, topics config.TopicConfig, log *logger.Logger) *TicketPublisher {
	return newTicketPublisher(p, topics, log, queueSize)
}

func newTicketPublisher(p publisher, topics config.TopicConfig, log *logger.Logger, size int) *TicketPublisher {
	tp := &TicketPublisher{
		Producer: p,
		Topics:   topics,
		Logger:   log,
		now:      time.Now,
		queue:    make(chan []kafka.Message, size),
		done:     make(chan struct{}),
	}
	go tp.run()
	return tp
}

// TicketsSold publishes the tickets of one sale as a single batch.
func (p *TicketPublisher) TicketsSold(_ context.Context, tickets []models.Ticket) {
	if len(tickets) == 0 {
		return
	}
	at := p.now().UTC()
	batch := make([]kafka.Message, 0, len(tickets))
	for _, t := range tickets {
		msg, err := p.message(p.Topics.TicketSold, t.TicketID, models.NewTicketEvent(t, at))
		if err != nil {
			p.Logger.Error("KAFKA", err.Error())
			continue
		}
		batch = append(batch, msg)
	}
	p.enqueue(batch)
}

func (p *TicketPublisher) TicketCancelled(_ context.Context, t models.Ticket) {
	msg, err := p.message(p.Topics.TicketCancelled, t.TicketID, models.NewTicketEvent(t, p.now().UTC()))
	if err != nil {
		p.Logger.Error("KAFKA", err.Error())
		return
	}
	p.enqueue([]kafka.Message{msg})
}

func (p *TicketPublisher) SeatsChanged(_ context.Context, tripID string, seats []int, status models.SeatStatus) {
	if len(seats) == 0 {
		return
	}
	msg, err := p.message(p.Topics.SeatStatus, tripID, models.SeatStatusChangeEvent{
		TripID: tripID,
		Seats:  seats,
		Status: status,
	})
	if err != nil {
		p.Logger.Error("KAFKA", err.Error())
		return
	}
	p.enqueue([]kafka.Message{msg})
}

func (p *TicketPublisher) message(topic, key string, event interface{}) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event for %s: %w", topic, err)
	}
	return kafka.Message{Topic: topic, Key: []byte(key), Value: value}, nil
}

func (p *TicketPublisher) enqueue(batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.Logger.Warn("KAFKA", fmt.Sprintf("Publisher closed, dropping %d event(s) for %s", len(batch), batch[0].Topic))
		return
	}
	select {
	case p.queue <- batch:
	default:
		p.Logger.Error("KAFKA", fmt.Sprintf("Publish queue full, dropping %d event(s) for %s", len(batch), batch[0].Topic))
	}
}

func (p *TicketPublisher) run() {
	defer close(p.done)
	for batch := range p.queue {
		p.write(batch)
	}
}

func (p *TicketPublisher) write(batch []kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	topic := batch[0].Topic
	if err := p.Producer.Publish(ctx, batch...); err != nil {
		p.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %d event(s) to %s: %v", len(batch), topic, err))
		return
	}
	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("%d event(s)", len(batch)))
}

// Close stops accepting events and waits until the queued ones are written.
func (p *TicketPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
}

// NopPublisher is used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) TicketsSold(context.Context, []models.Ticket) {}

func (NopPublisher) TicketCancelled(context.Context, models.Ticket) {}

func (NopPublisher) SeatsChanged(context.Context, string, []int, models.SeatStatus) {}
