package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketStatusSold      TicketStatus = "sold"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusNoShow    TicketStatus = "no_show"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
	PaymentYape PaymentMethod = "yape"
	PaymentPlin PaymentMethod = "plin"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID      string        `bun:"ticket_id,pk" json:"ticket_id"`
	TripID        string        `bun:"trip_id,notnull" json:"trip_id"`
	PassengerID   string        `bun:"passenger_id,notnull" json:"passenger_id"`
	SeatNumber    int           `bun:"seat_number,notnull" json:"seat_number"`
	Status        TicketStatus  `bun:"status,notnull" json:"status"`
	Amount        float64       `bun:"amount,notnull" json:"amount"`
	PaymentMethod PaymentMethod `bun:"payment_method,notnull" json:"payment_method"`
	SellerID      string        `bun:"seller_id,notnull" json:"seller_id"`
	IssuedAt      time.Time     `bun:"issued_at,notnull" json:"issued_at"`
	CancelledAt   time.Time     `bun:"cancelled_at,nullzero" json:"cancelled_at,omitempty"`
	CancelReason  string        `bun:"cancel_reason,nullzero" json:"cancel_reason,omitempty"`
	RefundAmount  float64       `bun:"refund_amount" json:"refund_amount"`
}

// SeatClaim exists exactly while a seat is held by a sold ticket.
// The composite primary key is what makes a second sale of the
// same (trip, seat) fail inside its transaction.
type SeatClaim struct {
	bun.BaseModel `bun:"table:seat_claims"`

	TripID     string    `bun:"trip_id,pk"`
	SeatNumber int       `bun:"seat_number,pk"`
	TicketID   string    `bun:"ticket_id,notnull"`
	ClaimedAt  time.Time `bun:"claimed_at,notnull"`
}

// TicketForBoarding is the payload sealed into a boarding pass QR code.
type TicketForBoarding struct {
	TicketID    string    `json:"ticket_id"`
	TripID      string    `json:"trip_id"`
	PassengerID string    `json:"passenger_id"`
	SeatNumber  int       `json:"seat_number"`
	IssuedAt    time.Time `json:"issued_at"`
}

func (t Ticket) ToBoarding() TicketForBoarding {
	return TicketForBoarding{
		TicketID:    t.TicketID,
		TripID:      t.TripID,
		PassengerID: t.PassengerID,
		SeatNumber:  t.SeatNumber,
		IssuedAt:    t.IssuedAt,
	}
}
