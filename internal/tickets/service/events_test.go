package tickets_test

import (
	"context"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-busticketing/internal/config"
	"ms-busticketing/internal/database/dbtest"
	"ms-busticketing/internal/kafka"
	"ms-busticketing/internal/logger"
	"ms-busticketing/internal/models"
	"ms-busticketing/internal/sse"
	tickets "ms-busticketing/internal/tickets/service"
)

func TestEventPublishersFanOut(t *testing.T) {
	first, second := new(MockEvents), new(MockEvents)
	ticket := models.Ticket{TicketID: "t-1", TripID: "trip-1", SeatNumber: 4}
	for _, m := range []*MockEvents{first, second} {
		m.On("TicketsSold", mock.Anything, []models.Ticket{ticket}).Once()
		m.On("TicketCancelled", mock.Anything, ticket).Once()
		m.On("SeatsChanged", mock.Anything, "trip-1", []int{4}, models.SeatStatusAvailable).Once()
	}

	pubs := tickets.EventPublishers{first, second}
	ctx := context.Background()
	pubs.TicketsSold(ctx, []models.Ticket{ticket})
	pubs.TicketCancelled(ctx, ticket)
	pubs.SeatsChanged(ctx, "trip-1", []int{4}, models.SeatStatusAvailable)

	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestSaleFlow_SeatStreamSeesSaleAndCancellation(t *testing.T) {
	f := newSaleFixture(t, dbtest.TripOptions{})
	emitter := sse.NewSeatEventEmitter()
	f.svc.Events = tickets.EventPublishers{kafka.NopPublisher{}, emitter}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := emitter.SubscribeToTrip(ctx, f.trip.ID)

	resp, err := f.svc.SellSeats(ctx, f.request(7, 8), f.seller.ID)
	require.NoError(t, err)
	require.Len(t, resp.Tickets, 2)

	_, err = f.svc.CancelTicket(ctx, resp.Tickets[0], "wrong date")
	require.NoError(t, err)

	expect := []models.SeatStatusChangeEvent{
		{TripID: f.trip.ID, Seats: []int{7, 8}, Status: models.SeatStatusSold},
		{TripID: f.trip.ID, Seats: []int{7}, Status: models.SeatStatusAvailable},
	}
	for _, want := range expect {
		select {
		case got := <-stream:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("missing seat event %+v", want)
		}
	}
}

// stalledBroker accepts no writes until its context expires.
type stalledBroker struct {
	mu      sync.Mutex
	batches []int
}

func (b *stalledBroker) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	b.mu.Lock()
	b.batches = append(b.batches, len(msgs))
	b.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (b *stalledBroker) Close() error { return nil }

func TestSaleFlow_StalledBrokerDoesNotDelaySale(t *testing.T) {
	f := newSaleFixture(t, dbtest.TripOptions{})
	broker := &stalledBroker{}
	publisher := kafka.NewTicketPublisher(&kafka.Producer{Writer: broker}, config.TopicConfig{
		TicketSold: "sold",
		SeatStatus: "seats",
	}, logger.Nop())
	f.svc.Events = publisher

	start := time.Now()
	resp, err := f.svc.SellSeats(context.Background(), f.request(1, 2, 3), f.seller.ID)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, resp.Tickets, 3)
	assert.Less(t, elapsed, time.Second)

	assert.Eventually(t, func() bool {
		broker.mu.Lock()
		defer broker.mu.Unlock()
		return len(broker.batches) > 0
	}, time.Second, 10*time.Millisecond)
	broker.mu.Lock()
	assert.Equal(t, 3, broker.batches[0])
	broker.mu.Unlock()
}
