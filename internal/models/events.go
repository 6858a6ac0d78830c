package models

import "time"

// TicketEvent is published after a sale or a cancellation commits.
type TicketEvent struct {
	TicketID     string       `json:"ticket_id"`
	TripID       string       `json:"trip_id"`
	SeatNumber   int          `json:"seat_number"`
	Status       TicketStatus `json:"status"`
	Amount       float64      `json:"amount"`
	RefundAmount float64      `json:"refund_amount,omitempty"`
	SellerID     string       `json:"seller_id,omitempty"`
	OccurredAt   time.Time    `json:"occurred_at"`
}

type SeatStatus string

const (
	SeatStatusSold      SeatStatus = "SOLD"
	SeatStatusAvailable SeatStatus = "AVAILABLE"
)

// SeatStatusChangeEvent tells seat-map consumers that seats of a trip changed state.
type SeatStatusChangeEvent struct {
	TripID string     `json:"trip_id"`
	Seats  []int      `json:"seats"`
	Status SeatStatus `json:"status"`
}

func NewTicketEvent(t Ticket, at time.Time) TicketEvent {
	return TicketEvent{
		TicketID:     t.TicketID,
		TripID:       t.TripID,
		SeatNumber:   t.SeatNumber,
		Status:       t.Status,
		Amount:       t.Amount,
		RefundAmount: t.RefundAmount,
		SellerID:     t.SellerID,
		OccurredAt:   at,
	}
}
