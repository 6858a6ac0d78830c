package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-busticketing/internal/config"
	"ms-busticketing/internal/logger"
	"ms-busticketing/internal/models"
)

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]kafka.Message
	err     error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	w.batches = append(w.batches, msgs)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) messages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	var all []kafka.Message
	for _, b := range w.batches {
		all = append(all, b...)
	}
	return all
}

// blockingWriter holds every write until release is closed or the write times out.
type blockingWriter struct {
	release chan struct{}
	calls   chan int
}

func (w *blockingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.calls <- len(msgs)
	select {
	case <-w.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *blockingWriter) Close() error { return nil }

var topics = config.TopicConfig{
	TicketSold:      "busticketing.tickets.sold",
	TicketCancelled: "busticketing.tickets.cancelled",
	SeatStatus:      "busticketing.seats.status",
}

func newTestPublisher(t *testing.T, w messageWriter, log *logger.Logger, size int) *TicketPublisher {
	p := newTicketPublisher(&Producer{Writer: w}, topics, log, size)
	p.now = func() time.Time { return time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC) }
	t.Cleanup(p.Close)
	return p
}

func TestTicketsSoldIsOneBatch(t *testing.T) {
	w := &fakeWriter{}
	p := newTestPublisher(t, w, logger.Nop(), queueSize)

	p.TicketsSold(context.Background(), []models.Ticket{
		{TicketID: "t-1", TripID: "trip-1", SeatNumber: 12, Status: models.TicketStatusSold, Amount: 45, SellerID: "u-1"},
		{TicketID: "t-2", TripID: "trip-1", SeatNumber: 13, Status: models.TicketStatusSold, Amount: 45, SellerID: "u-1"},
	})
	p.Close()

	require.Len(t, w.batches, 1)
	require.Len(t, w.batches[0], 2)
	msg := w.batches[0][0]
	assert.Equal(t, topics.TicketSold, msg.Topic)
	assert.Equal(t, "t-1", string(msg.Key))
	assert.Equal(t, "t-2", string(w.batches[0][1].Key))

	var event models.TicketEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, 12, event.SeatNumber)
	assert.Equal(t, models.TicketStatusSold, event.Status)
	assert.Equal(t, 2025, event.OccurredAt.Year())
}

func TestSeatsChangedEvent(t *testing.T) {
	w := &fakeWriter{}
	p := newTestPublisher(t, w, logger.Nop(), queueSize)

	p.SeatsChanged(context.Background(), "trip-1", nil, models.SeatStatusSold)
	p.TicketsSold(context.Background(), nil)
	p.SeatsChanged(context.Background(), "trip-1", []int{3, 4}, models.SeatStatusAvailable)
	p.Close()

	msgs := w.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, topics.SeatStatus, msgs[0].Topic)
	assert.Equal(t, "trip-1", string(msgs[0].Key))
	assert.JSONEq(t, `{"trip_id":"trip-1","seats":[3,4],"status":"AVAILABLE"}`, string(msgs[0].Value))
}

func TestPublishFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	w := &fakeWriter{err: errors.New("broker down")}
	p := newTestPublisher(t, w, logger.NewWithWriter(&buf), queueSize)

	p.TicketCancelled(context.Background(), models.Ticket{TicketID: "t-9"})
	p.Close()

	assert.Contains(t, buf.String(), "broker down")
	assert.Contains(t, buf.String(), topics.TicketCancelled)
}

func TestPublishOutlivesCancelledRequest(t *testing.T) {
	w := &fakeWriter{}
	p := newTestPublisher(t, w, logger.Nop(), queueSize)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.TicketsSold(ctx, []models.Ticket{{TicketID: "t-2"}})
	p.Close()

	assert.Len(t, w.messages(), 1)
}

func TestSlowBrokerDoesNotBlockCaller(t *testing.T) {
	var buf bytes.Buffer
	w := &blockingWriter{release: make(chan struct{}), calls: make(chan int, 8)}
	p := newTestPublisher(t, w, logger.NewWithWriter(&buf), 1)
	ctx := context.Background()

	start := time.Now()
	p.TicketsSold(ctx, []models.Ticket{{TicketID: "t-1"}, {TicketID: "t-2"}, {TicketID: "t-3"}})
	assert.Equal(t, 3, <-w.calls)

	// the worker is stuck on the first batch; one more fits the queue, the next is dropped
	p.SeatsChanged(ctx, "trip-1", []int{1, 2, 3}, models.SeatStatusSold)
	p.TicketCancelled(ctx, models.Ticket{TicketID: "t-1"})
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, buf.String(), "Publish queue full")

	close(w.release)
	p.Close()
	assert.Equal(t, 1, <-w.calls)
}

func TestEventsAfterCloseAreDropped(t *testing.T) {
	w := &fakeWriter{}
	p := newTestPublisher(t, w, logger.Nop(), queueSize)

	p.Close()
	p.TicketCancelled(context.Background(), models.Ticket{TicketID: "t-1"})

	assert.Empty(t, w.messages())
}
