package db_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"

	"ms-busticketing/internal/config"
	"ms-busticketing/internal/database"
	"ms-busticketing/internal/database/dbtest"
	"ms-busticketing/internal/database/migrations"
	"ms-busticketing/internal/logger"
	"ms-busticketing/internal/models"
	"ms-busticketing/internal/tickets/db"
)

// startPostgres runs a migrated PostgreSQL in a container with a connection
// pool, so concurrent transactions really overlap.
func startPostgres(t *testing.T) *bun.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	ctx := context.Background()
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "busticketing",
				"POSTGRES_PASSWORD": "busticketing",
				"POSTGRES_DB":       "busticketing",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Skipping, PostgreSQL container unavailable: %v", err)
	}
	t.Cleanup(func() { pg.Terminate(ctx) })

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)

	log := logger.Nop()
	bunDB, err := database.Open(ctx, config.DatabaseConfig{
		Driver:         database.DriverPostgres,
		DSN:            fmt.Sprintf("postgres://busticketing:busticketing@%s:%s/busticketing?sslmode=disable", host, port.Port()),
		MaxOpenConns:   20,
		MaxIdleConns:   20,
		ConnectRetries: 5,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	runner := migrations.NewRunner(bunDB, log)
	require.NoError(t, runner.MigrateUp())
	t.Cleanup(func() { runner.Close() })
	return bunDB
}

func TestPostgresConcurrentSameSeat(t *testing.T) {
	bunDB := startPostgres(t)
	ctx := context.Background()

	f := &fixture{
		bun:       bunDB,
		db:        &db.DB{Bun: bunDB},
		trip:      dbtest.SeedTrip(t, bunDB, dbtest.TripOptions{}),
		seller:    dbtest.SeedUser(t, bunDB, "seller", "secret", models.RoleSeller),
		passenger: dbtest.SeedPassenger(t, bunDB, "12345678"),
	}

	const attempts = 20
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		ticket := f.ticket(12)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.db.ReserveSeat(ctx, ticket)
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.True(t, errors.Is(err, models.ErrSeatAlreadySold), err.Error())
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dbtest.CountTickets(t, bunDB, f.trip.ID, 12))
}

func TestPostgresTripLockLeavesSiblingTripsFree(t *testing.T) {
	bunDB := startPostgres(t)
	ctx := context.Background()

	f := &fixture{
		bun:       bunDB,
		db:        &db.DB{Bun: bunDB},
		trip:      dbtest.SeedTrip(t, bunDB, dbtest.TripOptions{}),
		seller:    dbtest.SeedUser(t, bunDB, "seller", "secret", models.RoleSeller),
		passenger: dbtest.SeedPassenger(t, bunDB, "12345678"),
	}

	// a later departure of the same route, bus and driver
	sibling := f.trip
	sibling.ID = uuid.NewString()
	sibling.DepartureAt = f.trip.DepartureAt.Add(48 * time.Hour)
	sibling.ArrivalAt = f.trip.ArrivalAt.Add(48 * time.Hour)
	_, err := bunDB.NewInsert().Model(&sibling).Exec(ctx)
	require.NoError(t, err)

	tx, err := bunDB.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = db.LockTripSeating(ctx, tx, f.trip.ID)
	require.NoError(t, err)

	saleCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	ticket := f.ticket(5)
	ticket.TripID = sibling.ID
	require.NoError(t, f.db.ReserveSeat(saleCtx, ticket))

	blocked, cancelBlocked := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancelBlocked()
	assert.Error(t, f.db.ReserveSeat(blocked, f.ticket(5)))
}
