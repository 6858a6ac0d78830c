package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-busticketing/internal/database"
	"ms-busticketing/internal/models"
)

// A no-show keeps its seat: the bus left with that seat paid for.
var seatHoldingStatuses = []models.TicketStatus{models.TicketStatusSold, models.TicketStatusNoShow}

type DB struct {
	Bun *bun.DB
}

// TransitionFunc mutates a locked ticket in place. Returning an error aborts the
// transaction.
type TransitionFunc func(ticket *models.Ticket, trip models.TripSeating) error

func tripSeatingQuery(idb bun.IDB, tripID string) *bun.SelectQuery {
	return idb.NewSelect().
		TableExpr("trips AS t").
		ColumnExpr("t.id AS trip_id").
		ColumnExpr("t.status AS status").
		ColumnExpr("t.departure_at AS departure_at").
		ColumnExpr("b.capacity AS capacity").
		ColumnExpr("r.base_fare AS base_fare").
		Join("JOIN buses AS b ON b.id = t.bus_id").
		Join("JOIN routes AS r ON r.id = t.route_id").
		Where("t.id = ?", tripID)
}

// lockTripRow locks the trip row only. The joined bus and route rows are shared
// by other trips and stay unlocked.
func lockTripRow(idb bun.IDB, q *bun.SelectQuery) *bun.SelectQuery {
	if !database.SupportsRowLocks(idb) {
		return q
	}
	return q.For("UPDATE OF t")
}

// heldTickets selects the tickets that occupy their seat.
func heldTickets(idb bun.IDB) *bun.SelectQuery {
	return idb.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("status IN (?)", bun.In(seatHoldingStatuses))
}

func getTripSeating(ctx context.Context, idb bun.IDB, tripID string, lock bool) (*models.TripSeating, error) {
	var seating models.TripSeating
	q := tripSeatingQuery(idb, tripID)
	if lock {
		q = lockTripRow(idb, q)
	}
	err := q.Scan(ctx, &seating)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select trip %s: %w", tripID, err)
	}
	return &seating, nil
}

// GetTripSeating reads a trip with its capacity and fare without locking it.
func (d *DB) GetTripSeating(ctx context.Context, tripID string) (*models.TripSeating, error) {
	return getTripSeating(ctx, d.Bun, tripID, false)
}

// ReserveSeat is the seat inventory guard. Inside one transaction it locks the
// trip, validates the seat and inserts the ticket together with its seat claim.
// A seat that is already held yields ErrSeatAlreadySold and nothing is written.
func (d *DB) ReserveSeat(ctx context.Context, ticket *models.Ticket) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		trip, err := getTripSeating(ctx, tx, ticket.TripID, true)
		if err != nil {
			return err
		}
		if trip.Status != models.TripStatusScheduled {
			return models.ErrTripNotScheduled
		}
		if ticket.SeatNumber < 1 || ticket.SeatNumber > trip.Capacity {
			return fmt.Errorf("seat %d of %d: %w", ticket.SeatNumber, trip.Capacity, models.ErrSeatOutOfRange)
		}

		taken, err := heldTickets(tx).
			Where("trip_id = ?", ticket.TripID).
			Where("seat_number = ?", ticket.SeatNumber).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check seat %d: %w", ticket.SeatNumber, err)
		}
		if taken {
			return models.ErrSeatAlreadySold
		}

		if _, err := tx.NewInsert().Model(ticket).Exec(ctx); err != nil {
			return claimError(ticket.SeatNumber, err)
		}

		claim := models.SeatClaim{
			TripID:     ticket.TripID,
			SeatNumber: ticket.SeatNumber,
			TicketID:   ticket.TicketID,
			ClaimedAt:  ticket.IssuedAt,
		}
		if _, err := tx.NewInsert().Model(&claim).Exec(ctx); err != nil {
			return claimError(ticket.SeatNumber, err)
		}
		return nil
	})
}

func claimError(seat int, err error) error {
	if database.IsUniqueViolation(err) {
		return models.ErrSeatAlreadySold
	}
	return fmt.Errorf("insert ticket for seat %d: %w", seat, err)
}

// SoldSeats lists the seat numbers held by sold or no-show tickets, ascending.
func (d *DB) SoldSeats(ctx context.Context, tripID string) ([]int, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.Trip)(nil)).
		Where("id = ?", tripID).
		Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("select trip %s: %w", tripID, err)
	}
	if !exists {
		return nil, models.ErrTripNotFound
	}

	seats := make([]int, 0)
	err = heldTickets(d.Bun).
		Column("seat_number").
		Where("trip_id = ?", tripID).
		Order("seat_number ASC").
		Scan(ctx, &seats)
	if err != nil {
		return nil, fmt.Errorf("select sold seats: %w", err)
	}
	return seats, nil
}

// SearchTrips lists the scheduled trips departing in [From, To), earliest first,
// with the seats each one still has free.
func (d *DB) SearchTrips(ctx context.Context, f models.TripSearch) ([]models.TripSummary, error) {
	held := heldTickets(d.Bun).
		ColumnExpr("trip_id").
		ColumnExpr("COUNT(*) AS held").
		Group("trip_id")

	q := d.Bun.NewSelect().
		TableExpr("trips AS t").
		ColumnExpr("t.id AS trip_id").
		ColumnExpr("r.origin AS origin").
		ColumnExpr("r.destination AS destination").
		ColumnExpr("t.departure_at AS departure_at").
		ColumnExpr("t.arrival_at AS arrival_at").
		ColumnExpr("t.status AS status").
		ColumnExpr("r.base_fare AS base_fare").
		ColumnExpr("b.plate AS bus_plate").
		ColumnExpr("b.manufacturer AS manufacturer").
		ColumnExpr("b.capacity AS capacity").
		ColumnExpr("d.full_name AS driver_name").
		ColumnExpr("b.capacity - COALESCE(h.held, 0) AS available").
		Join("JOIN routes AS r ON r.id = t.route_id").
		Join("JOIN buses AS b ON b.id = t.bus_id").
		Join("JOIN drivers AS d ON d.id = t.driver_id").
		Join("LEFT JOIN (?) AS h ON h.trip_id = t.id", held).
		Where("t.status = ?", models.TripStatusScheduled).
		Where("t.departure_at >= ?", f.From.UTC()).
		Where("t.departure_at < ?", f.To.UTC()).
		OrderExpr("t.departure_at ASC")
	if f.Origin != "" {
		q = q.Where("r.origin = ?", f.Origin)
	}
	if f.Destination != "" {
		q = q.Where("r.destination = ?", f.Destination)
	}

	trips := make([]models.TripSummary, 0)
	if err := q.Scan(ctx, &trips); err != nil {
		return nil, fmt.Errorf("search trips: %w", err)
	}
	return trips, nil
}

func (d *DB) ListRoutes(ctx context.Context) ([]models.Route, error) {
	routes := make([]models.Route, 0)
	err := d.Bun.NewSelect().
		Model(&routes).
		Order("origin ASC", "destination ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select routes: %w", err)
	}
	return routes, nil
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select ticket %s: %w", id, err)
	}
	return &ticket, nil
}

func (d *DB) ListTicketsByTrip(ctx context.Context, tripID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("trip_id = ?", tripID).
		Order("seat_number ASC", "issued_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select tickets of trip %s: %w", tripID, err)
	}
	return tickets, nil
}

// TransitionTicket locks a ticket, lets apply change it and stores the result.
// A ticket that leaves the sold state through cancellation releases its seat claim.
func (d *DB) TransitionTicket(ctx context.Context, id string, apply TransitionFunc) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&ticket).Where("ticket_id = ?", id)
		if database.SupportsRowLocks(tx) {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrTicketNotFound
			}
			return fmt.Errorf("select ticket %s: %w", id, err)
		}

		trip, err := getTripSeating(ctx, tx, ticket.TripID, false)
		if err != nil {
			return err
		}

		before := ticket.Status
		if err := apply(&ticket, *trip); err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model(&ticket).
			Column("status", "cancelled_at", "cancel_reason", "refund_amount").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update ticket %s: %w", id, err)
		}

		if before == models.TicketStatusSold && ticket.Status == models.TicketStatusCancelled {
			_, err = tx.NewDelete().
				Model((*models.SeatClaim)(nil)).
				Where("trip_id = ?", ticket.TripID).
				Where("seat_number = ?", ticket.SeatNumber).
				Where("ticket_id = ?", ticket.TicketID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("release seat %d: %w", ticket.SeatNumber, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}
