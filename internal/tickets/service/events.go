package tickets

import (
	"context"

	"ms-busticketing/internal/models"
)

// EventPublishers delivers every ticket event to each of its sinks in order.
type EventPublishers []EventPublisher

func (ps EventPublishers) TicketsSold(ctx context.Context, tickets []models.Ticket) {
	for _, p := range ps {
		p.TicketsSold(ctx, tickets)
	}
}

func (ps EventPublishers) TicketCancelled(ctx context.Context, t models.Ticket) {
	for _, p := range ps {
		p.TicketCancelled(ctx, t)
	}
}

func (ps EventPublishers) SeatsChanged(ctx context.Context, tripID string, seats []int, status models.SeatStatus) {
	for _, p := range ps {
		p.SeatsChanged(ctx, tripID, seats, status)
	}
}
