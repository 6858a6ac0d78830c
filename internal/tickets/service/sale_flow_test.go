package tickets_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-busticketing/internal/database/dbtest"
	"ms-busticketing/internal/kafka"
	"ms-busticketing/internal/logger"
	"ms-busticketing/internal/models"
	"ms-busticketing/internal/passengers"
	"ms-busticketing/internal/tickets/db"
	"ms-busticketing/internal/tickets/qr"
	tickets "ms-busticketing/internal/tickets/service"
)

type saleFixture struct {
	svc    *tickets.TicketService
	trip   models.Trip
	seller models.User
	clock  time.Time
}

func newSaleFixture(t *testing.T, opts dbtest.TripOptions) *saleFixture {
	bunDB := dbtest.New(t)
	log := logger.Nop()

	qrGen, err := qr.NewQRGenerator("test-secret")
	require.NoError(t, err)

	f := &saleFixture{
		trip:   dbtest.SeedTrip(t, bunDB, opts),
		seller: dbtest.SeedUser(t, bunDB, "taquilla1", "secret", models.RoleSeller),
		clock:  time.Now().UTC(),
	}
	f.svc = tickets.NewTicketService(
		&db.DB{Bun: bunDB},
		passengers.NewService(&passengers.DB{Bun: bunDB}, log),
		kafka.NopPublisher{},
		qrGen,
		tickets.DefaultRefundPolicy(),
		log,
	)
	f.svc.Now = func() time.Time { return f.clock }
	return f
}

func (f *saleFixture) request(seats ...int) models.SaleRequest {
	return models.SaleRequest{
		TripID:        f.trip.ID,
		Passenger:     models.Buyer{DNI: "70112233", FirstName: "Luis", LastNames: "Condori Apaza"},
		Seats:         seats,
		PaymentMethod: models.PaymentCash,
	}
}

func TestSaleFlow_MultiSeatPricing(t *testing.T) {
	f := newSaleFixture(t, dbtest.TripOptions{BaseFare: 35.5})
	ctx := context.Background()

	resp, err := f.svc.SellSeats(ctx, f.request(3, 4, 41), f.seller.ID)
	require.NoError(t, err)

	assert.Len(t, resp.Tickets, 2)
	assert.Equal(t, 71.0, resp.Total)
	assert.Equal(t, models.CodeValidation, resp.Results[2].Code)
	assert.ErrorIs(t, resp.Results[2].Err, models.ErrSeatOutOfRange)

	ticket, err := f.svc.GetTicket(ctx, resp.Tickets[0])
	require.NoError(t, err)
	assert.Equal(t, 35.5, ticket.Amount)
	assert.Equal(t, f.seller.ID, ticket.SellerID)
	assert.Equal(t, resp.PassengerID, ticket.PassengerID)

	seatMap, err := f.svc.TripSeatMap(ctx, f.trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, seatMap.Sold)
	assert.Equal(t, 38, seatMap.Available)
}

func TestSaleFlow_ConcurrentBuyersOneSeat(t *testing.T) {
	f := newSaleFixture(t, dbtest.TripOptions{})
	ctx := context.Background()

	const buyers = 5
	var wg sync.WaitGroup
	responses := make([]*models.SaleResponse, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.svc.SellSeats(ctx, f.request(12), f.seller.ID)
			if err == nil {
				responses[i] = resp
			}
		}(i)
	}
	wg.Wait()

	var sold int
	for _, resp := range responses {
		require.NotNil(t, resp)
		sold += len(resp.Tickets)
	}
	assert.Equal(t, 1, sold)

	seats, err := f.svc.SoldSeats(ctx, f.trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{12}, seats)
}

func TestSaleFlow_CancelThenResell(t *testing.T) {
	f := newSaleFixture(t, dbtest.TripOptions{DepartureAt: time.Now().Add(90 * time.Minute)})
	ctx := context.Background()

	first, err := f.svc.SellSeats(ctx, f.request(12), f.seller.ID)
	require.NoError(t, err)
	require.Len(t, first.Tickets, 1)

	again, err := f.svc.SellSeats(ctx, f.request(12), f.seller.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Tickets)
	assert.Equal(t, models.CodeSeatAlreadySold, again.Results[0].Code)

	cancelled, err := f.svc.CancelTicket(ctx, first.Tickets[0], "passenger request")
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusCancelled, cancelled.Status)
	assert.Equal(t, 12.5, cancelled.RefundAmount)

	_, err = f.svc.CancelTicket(ctx, first.Tickets[0], "twice")
	assert.ErrorIs(t, err, models.ErrTicketNotCancellable)

	resold, err := f.svc.SellSeats(ctx, f.request(12), f.seller.ID)
	require.NoError(t, err)
	assert.Len(t, resold.Tickets, 1)

	manifest, err := f.svc.TripManifest(ctx, f.trip.ID)
	require.NoError(t, err)
	assert.Len(t, manifest, 2)
}

func TestSaleFlow_NoShowKeepsSeat(t *testing.T) {
	f := newSaleFixture(t, dbtest.TripOptions{DepartureAt: time.Now().Add(time.Hour)})
	ctx := context.Background()

	resp, err := f.svc.SellSeats(ctx, f.request(5), f.seller.ID)
	require.NoError(t, err)
	require.Len(t, resp.Tickets, 1)

	_, err = f.svc.MarkNoShow(ctx, resp.Tickets[0])
	assert.ErrorIs(t, err, models.ErrNoShowNotAllowed)

	f.clock = f.clock.Add(2 * time.Hour)
	ticket, err := f.svc.MarkNoShow(ctx, resp.Tickets[0])
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusNoShow, ticket.Status)

	seats, err := f.svc.SoldSeats(ctx, f.trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, seats)

	_, err = f.svc.BoardingPass(ctx, resp.Tickets[0])
	assert.ErrorIs(t, err, models.ErrTicketNotBoardable)
}
