package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-busticketing/internal/logger"
	"ms-busticketing/internal/models"
	"ms-busticketing/internal/tickets/db"
	"ms-busticketing/internal/tickets/qr"
)

type TicketDBLayer interface {
	GetTripSeating(ctx context.Context, tripID string) (*models.TripSeating, error)
	ReserveSeat(ctx context.Context, ticket *models.Ticket) error
	SoldSeats(ctx context.Context, tripID string) ([]int, error)
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	ListTicketsByTrip(ctx context.Context, tripID string) ([]models.Ticket, error)
	TransitionTicket(ctx context.Context, id string, apply db.TransitionFunc) (*models.Ticket, error)
	SearchTrips(ctx context.Context, f models.TripSearch) ([]models.TripSummary, error)
	ListRoutes(ctx context.Context) ([]models.Route, error)
}

type PassengerResolver interface {
	FindOrCreate(ctx context.Context, buyer models.Buyer) (*models.Passenger, error)
}

type EventPublisher interface {
	TicketsSold(ctx context.Context, tickets []models.Ticket)
	TicketCancelled(ctx context.Context, t models.Ticket)
	SeatsChanged(ctx context.Context, tripID string, seats []int, status models.SeatStatus)
}

type TicketService struct {
	DB         TicketDBLayer
	Passengers PassengerResolver
	Events     EventPublisher
	QR         *qr.QRGenerator
	Refunds    RefundPolicy
	Logger     *logger.Logger
	Now        func() time.Time

	// Location is the zone calendar days are counted in when searching trips.
	Location *time.Location
}

func NewTicketService(
	store TicketDBLayer,
	passengers PassengerResolver,
	events EventPublisher,
	qrGen *qr.QRGenerator,
	refunds RefundPolicy,
	log *logger.Logger,
) *TicketService {
	return &TicketService{
		DB:         store,
		Passengers: passengers,
		Events:     events,
		QR:         qrGen,
		Refunds:    refunds,
		Logger:     log,
		Now:        time.Now,
		Location:   time.UTC,
	}
}

// SellSeat sells one seat through the inventory guard. On success the ticket is
// committed before any event is published.
func (s *TicketService) SellSeat(ctx context.Context, sale models.SeatSale) (*models.Ticket, error) {
	ticket, err := s.reserve(ctx, sale)
	if err != nil {
		return nil, err
	}
	s.Events.TicketsSold(ctx, []models.Ticket{*ticket})
	return ticket, nil
}

func (s *TicketService) reserve(ctx context.Context, sale models.SeatSale) (*models.Ticket, error) {
	if sale.Amount < 0 {
		return nil, models.ErrInvalidAmount
	}

	ticket := &models.Ticket{
		TicketID:      uuid.NewString(),
		TripID:        sale.TripID,
		PassengerID:   sale.PassengerID,
		SeatNumber:    sale.SeatNumber,
		Status:        models.TicketStatusSold,
		Amount:        sale.Amount,
		PaymentMethod: sale.PaymentMethod,
		SellerID:      sale.SellerID,
		IssuedAt:      s.Now().UTC(),
	}

	if err := s.DB.ReserveSeat(ctx, ticket); err != nil {
		if errors.Is(err, models.ErrSeatAlreadySold) {
			s.Logger.Warn("TICKET", fmt.Sprintf("Seat %d of trip %s already sold", sale.SeatNumber, sale.TripID))
		}
		return nil, err
	}

	s.Logger.LogTicket("SOLD", ticket.TicketID, fmt.Sprintf("trip %s seat %d", ticket.TripID, ticket.SeatNumber))
	return ticket, nil
}

// SellSeats sells every requested seat to one buyer. Each seat is its own
// transaction, so the response carries an outcome per seat and the total covers
// only the seats that were sold. The sold tickets are published as one batch.
func (s *TicketService) SellSeats(ctx context.Context, req models.SaleRequest, sellerID string) (*models.SaleResponse, error) {
	if len(req.Seats) == 0 {
		return nil, models.ErrNoSeats
	}
	seen := make(map[int]bool, len(req.Seats))
	for _, seat := range req.Seats {
		if seen[seat] {
			return nil, fmt.Errorf("seat %d: %w", seat, models.ErrDuplicateSeat)
		}
		seen[seat] = true
	}

	trip, err := s.DB.GetTripSeating(ctx, req.TripID)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripStatusScheduled {
		return nil, models.ErrTripNotScheduled
	}

	passenger, err := s.Passengers.FindOrCreate(ctx, req.Passenger)
	if err != nil {
		return nil, err
	}

	resp := &models.SaleResponse{
		Tickets:     []string{},
		PassengerID: passenger.ID,
		Results:     make([]models.SeatResult, 0, len(req.Seats)),
	}
	var (
		sold    []models.Ticket
		soldIDs []int
	)

	for _, seat := range req.Seats {
		ticket, err := s.reserve(ctx, models.SeatSale{
			TripID:        req.TripID,
			SeatNumber:    seat,
			PassengerID:   passenger.ID,
			Amount:        trip.BaseFare,
			PaymentMethod: req.PaymentMethod,
			SellerID:      sellerID,
		})
		if err != nil {
			code := models.ErrorCode(err)
			if code == models.CodeStorage {
				s.Logger.Error("TICKET", fmt.Sprintf("Seat %d of trip %s: %v", seat, req.TripID, err))
			}
			resp.Results = append(resp.Results, models.SeatResult{
				Seat:  seat,
				Error: models.PublicMessage(err),
				Code:  code,
				Err:   err,
			})
			continue
		}

		resp.Results = append(resp.Results, models.SeatResult{Seat: seat, TicketID: ticket.TicketID})
		resp.Tickets = append(resp.Tickets, ticket.TicketID)
		resp.Total += ticket.Amount
		sold = append(sold, *ticket)
		soldIDs = append(soldIDs, seat)
	}
	resp.Total = roundCents(resp.Total)

	s.Events.TicketsSold(ctx, sold)
	s.Events.SeatsChanged(ctx, req.TripID, soldIDs, models.SeatStatusSold)
	return resp, nil
}

// SoldSeats is an advisory read; a seat listed as free can still be lost to a
// concurrent sale.
func (s *TicketService) SoldSeats(ctx context.Context, tripID string) ([]int, error) {
	return s.DB.SoldSeats(ctx, tripID)
}

func (s *TicketService) TripSeatMap(ctx context.Context, tripID string) (*models.SeatMap, error) {
	trip, err := s.DB.GetTripSeating(ctx, tripID)
	if err != nil {
		return nil, err
	}
	sold, err := s.DB.SoldSeats(ctx, tripID)
	if err != nil {
		return nil, err
	}

	available := trip.Capacity - len(sold)
	if available < 0 {
		available = 0
	}
	return &models.SeatMap{
		TripID:    tripID,
		Capacity:  trip.Capacity,
		Sold:      sold,
		Available: available,
	}, nil
}

// SearchTrips lists the scheduled trips leaving on date (YYYY-MM-DD), narrowed to
// origin and destination when they are given.
func (s *TicketService) SearchTrips(ctx context.Context, origin, destination, date string) ([]models.TripSummary, error) {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), s.Location)
	if err != nil {
		return nil, fmt.Errorf("date %q: %w", date, models.ErrInvalidDate)
	}
	return s.DB.SearchTrips(ctx, models.TripSearch{
		Origin:      strings.TrimSpace(origin),
		Destination: strings.TrimSpace(destination),
		From:        day,
		To:          day.AddDate(0, 0, 1),
	})
}

func (s *TicketService) Routes(ctx context.Context) ([]models.Route, error) {
	return s.DB.ListRoutes(ctx)
}

func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return s.DB.GetTicketByID(ctx, ticketID)
}

// TripManifest lists every ticket issued for a trip, any status.
func (s *TicketService) TripManifest(ctx context.Context, tripID string) ([]models.Ticket, error) {
	if _, err := s.DB.GetTripSeating(ctx, tripID); err != nil {
		return nil, err
	}
	return s.DB.ListTicketsByTrip(ctx, tripID)
}

// CancelTicket cancels a sold ticket before departure, frees its seat and
// records the refund owed under the refund policy.
func (s *TicketService) CancelTicket(ctx context.Context, ticketID, reason string) (*models.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.ErrCancelReason
	}

	now := s.Now()
	ticket, err := s.DB.TransitionTicket(ctx, ticketID, func(t *models.Ticket, trip models.TripSeating) error {
		if t.Status != models.TicketStatusSold {
			return fmt.Errorf("status %s: %w", t.Status, models.ErrTicketNotCancellable)
		}
		until := trip.DepartureAt.Sub(now)
		if until <= 0 {
			return fmt.Errorf("trip already departed: %w", models.ErrTicketNotCancellable)
		}

		t.Status = models.TicketStatusCancelled
		t.CancelledAt = now.UTC()
		t.CancelReason = reason
		t.RefundAmount = s.Refunds.Refund(t.Amount, until)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogTicket("CANCELLED", ticket.TicketID, fmt.Sprintf("seat %d released, refund %.2f", ticket.SeatNumber, ticket.RefundAmount))
	s.Events.TicketCancelled(ctx, *ticket)
	s.Events.SeatsChanged(ctx, ticket.TripID, []int{ticket.SeatNumber}, models.SeatStatusAvailable)
	return ticket, nil
}

// MarkNoShow records that the passenger of a sold ticket did not board. The seat
// stays consumed.
func (s *TicketService) MarkNoShow(ctx context.Context, ticketID string) (*models.Ticket, error) {
	now := s.Now()
	ticket, err := s.DB.TransitionTicket(ctx, ticketID, func(t *models.Ticket, trip models.TripSeating) error {
		if t.Status != models.TicketStatusSold {
			return fmt.Errorf("status %s: %w", t.Status, models.ErrNoShowNotAllowed)
		}
		if now.Before(trip.DepartureAt) {
			return fmt.Errorf("trip has not departed: %w", models.ErrNoShowNotAllowed)
		}
		t.Status = models.TicketStatusNoShow
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogTicket("NO_SHOW", ticket.TicketID, fmt.Sprintf("trip %s seat %d", ticket.TripID, ticket.SeatNumber))
	return ticket, nil
}

// BoardingPass renders the QR code of a sold ticket.
func (s *TicketService) BoardingPass(ctx context.Context, ticketID string) ([]byte, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != models.TicketStatusSold {
		return nil, models.ErrTicketNotBoardable
	}

	png, err := s.QR.GenerateEncryptedQR(ticket.ToBoarding())
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR: %w", err)
	}
	return png, nil
}

// VerifyBoardingPass opens a scanned token and checks it still matches a sold ticket.
func (s *TicketService) VerifyBoardingPass(ctx context.Context, token string) (*models.Ticket, error) {
	data, err := s.QR.Open(token)
	if err != nil {
		return nil, err
	}

	ticket, err := s.DB.GetTicketByID(ctx, data.TicketID)
	if errors.Is(err, models.ErrTicketNotFound) {
		return nil, models.ErrInvalidBoardingPass
	}
	if err != nil {
		return nil, err
	}
	if ticket.TripID != data.TripID || ticket.SeatNumber != data.SeatNumber {
		return nil, models.ErrInvalidBoardingPass
	}
	if ticket.Status != models.TicketStatusSold {
		return nil, models.ErrTicketNotBoardable
	}
	return ticket, nil
}
