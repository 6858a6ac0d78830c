package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-busticketing/internal/models"
)

// LockedTripSeatingQuery renders the trip read the guard issues inside its transaction.
func LockedTripSeatingQuery(idb bun.IDB, tripID string) string {
	return lockTripRow(idb, tripSeatingQuery(idb, tripID)).String()
}

// LockTripSeating reads a trip and holds its row lock until idb's transaction ends.
func LockTripSeating(ctx context.Context, idb bun.IDB, tripID string) (*models.TripSeating, error) {
	return getTripSeating(ctx, idb, tripID, true)
}
