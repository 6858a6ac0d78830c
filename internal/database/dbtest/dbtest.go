// Package dbtest provides an in-memory SQLite schema and fixtures for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"

	"ms-busticketing/internal/database"
	"ms-busticketing/internal/models"
)

// New opens a private in-memory database with the full schema. The pool holds a
// single connection, so transactions from concurrent goroutines run one at a time.
func New(t testing.TB) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	bunDB, err := database.Wrap(sqldb, database.DriverSQLite)
	if err != nil {
		t.Fatalf("Failed to wrap database: %v", err)
	}

	if err := database.CreateSchema(context.Background(), bunDB); err != nil {
		bunDB.Close()
		t.Fatalf("Failed to create schema: %v", err)
	}

	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

// TripOptions controls SeedTrip. Zero values pick a 40-seat scheduled
// Lima-Arequipa trip departing in 24 hours with a fare of 45.00.
type TripOptions struct {
	Capacity    int
	BaseFare    float64
	DepartureAt time.Time
	Status      models.TripStatus
	Origin      string
	Destination string
}

// SeedTrip inserts a route, bus, driver and trip and returns the trip.
func SeedTrip(t testing.TB, db bun.IDB, opts TripOptions) models.Trip {
	t.Helper()
	ctx := context.Background()

	if opts.Capacity == 0 {
		opts.Capacity = 40
	}
	if opts.BaseFare == 0 {
		opts.BaseFare = 45
	}
	if opts.DepartureAt.IsZero() {
		opts.DepartureAt = time.Now().Add(24 * time.Hour)
	}
	if opts.Status == "" {
		opts.Status = models.TripStatusScheduled
	}
	if opts.Origin == "" {
		opts.Origin = "Lima"
	}
	if opts.Destination == "" {
		opts.Destination = "Arequipa"
	}

	route := models.Route{ID: uuid.NewString(), Origin: opts.Origin, Destination: opts.Destination, BaseFare: opts.BaseFare}
	bus := models.Bus{
		ID:           uuid.NewString(),
		Plate:        "ABC-" + uuid.NewString()[:6],
		Manufacturer: "Volvo",
		Capacity:     opts.Capacity,
		Status:       models.BusStatusOperational,
	}
	driver := models.Driver{ID: uuid.NewString(), FullName: "Carlos Quispe", LicenseNo: "Q" + uuid.NewString()[:8]}
	trip := models.Trip{
		ID:          uuid.NewString(),
		RouteID:     route.ID,
		BusID:       bus.ID,
		DriverID:    driver.ID,
		DepartureAt: opts.DepartureAt.UTC(),
		ArrivalAt:   opts.DepartureAt.Add(16 * time.Hour).UTC(),
		Status:      opts.Status,
	}

	for _, m := range []interface{}{&route, &bus, &driver, &trip} {
		if _, err := db.NewInsert().Model(m).Exec(ctx); err != nil {
			t.Fatalf("Failed to seed %T: %v", m, err)
		}
	}
	return trip
}

// SeedUser inserts an active user whose password is password.
func SeedUser(t testing.TB, db bun.IDB, username, password, role string) models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		FullName:     "Test " + username,
		Email:        username + "@example.com",
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := db.NewInsert().Model(&user).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user
}

// SeedPassenger inserts a passenger with the given DNI.
func SeedPassenger(t testing.TB, db bun.IDB, dni string) models.Passenger {
	t.Helper()

	p := models.Passenger{
		ID:        uuid.NewString(),
		DNI:       dni,
		FirstName: "Ana",
		LastNames: "Torres Huaman",
		CreatedAt: time.Now().UTC(),
	}
	if _, err := db.NewInsert().Model(&p).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed passenger: %v", err)
	}
	return p
}

// CountTickets counts ticket rows for a trip and seat, any status.
func CountTickets(t testing.TB, db bun.IDB, tripID string, seat int) int {
	t.Helper()

	n, err := db.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("trip_id = ?", tripID).
		Where("seat_number = ?", seat).
		Count(context.Background())
	if err != nil {
		t.Fatalf("Failed to count tickets: %v", err)
	}
	return n
}
