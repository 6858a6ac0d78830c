package models

// SaleRequest is the body of the sale endpoint.
type SaleRequest struct {
	TripID        string        `json:"trip_id" validate:"required"`
	Passenger     Buyer         `json:"passenger"`
	Seats         []int         `json:"seats" validate:"required,min=1,max=60,dive,gt=0"`
	PaymentMethod PaymentMethod `json:"payment_method" validate:"required,oneof=cash card yape plin"`
}

// SeatSale is the input of one guarded seat reservation.
type SeatSale struct {
	TripID        string
	SeatNumber    int
	PassengerID   string
	Amount        float64
	PaymentMethod PaymentMethod
	SellerID      string
}

// SeatResult is the outcome of one seat in a multi-seat sale.
type SeatResult struct {
	Seat     int    `json:"seat"`
	TicketID string `json:"ticket_id,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
	Err      error  `json:"-"`
}

type SaleResponse struct {
	Tickets     []string     `json:"tickets"`
	Total       float64      `json:"total"`
	PassengerID string       `json:"passenger_id"`
	Results     []SeatResult `json:"results"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

type CancelResponse struct {
	TicketID     string  `json:"ticket_id"`
	Status       string  `json:"status"`
	RefundAmount float64 `json:"refund_amount"`
}
