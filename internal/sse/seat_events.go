package sse

import (
	"context"
	"sync"

	"ms-busticketing/internal/models"
)

// SeatEventEmitter fans seat status changes out to the open seat-map streams of a trip.
type SeatEventEmitter struct {
	mu      sync.RWMutex
	clients map[string][]chan models.SeatStatusChangeEvent
}

func NewSeatEventEmitter() *SeatEventEmitter {
	return &SeatEventEmitter{clients: make(map[string][]chan models.SeatStatusChangeEvent)}
}

// SubscribeToTrip returns a channel of seat changes for tripID. The channel is
// closed once ctx is done.
func (e *SeatEventEmitter) SubscribeToTrip(ctx context.Context, tripID string) <-chan models.SeatStatusChangeEvent {
	ch := make(chan models.SeatStatusChangeEvent, 16)

	e.mu.Lock()
	e.clients[tripID] = append(e.clients[tripID], ch)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(tripID, ch)
	}()
	return ch
}

// Emit never blocks; a client whose buffer is full misses the event.
func (e *SeatEventEmitter) Emit(event models.SeatStatusChangeEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ch := range e.clients[event.TripID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (e *SeatEventEmitter) remove(tripID string, ch chan models.SeatStatusChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[tripID]
	for i, c := range clients {
		if c == ch {
			e.clients[tripID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.clients[tripID]) == 0 {
		delete(e.clients, tripID)
	}
}

func (e *SeatEventEmitter) ClientCount(tripID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[tripID])
}

// The emitter doubles as a ticket event sink; only seat changes reach the streams.

func (e *SeatEventEmitter) TicketsSold(context.Context, []models.Ticket) {}

func (e *SeatEventEmitter) TicketCancelled(context.Context, models.Ticket) {}

func (e *SeatEventEmitter) SeatsChanged(_ context.Context, tripID string, seats []int, status models.SeatStatus) {
	if len(seats) == 0 {
		return
	}
	e.Emit(models.SeatStatusChangeEvent{TripID: tripID, Seats: seats, Status: status})
}
