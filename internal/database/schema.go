package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-busticketing/internal/models"
)

const mysqlDuplicateKeyName = 1061

type tableSpec struct {
	model       interface{}
	foreignKeys []string
}

var tables = []tableSpec{
	{model: (*models.Route)(nil)},
	{model: (*models.Bus)(nil)},
	{model: (*models.Driver)(nil)},
	{model: (*models.Trip)(nil), foreignKeys: []string{
		"(route_id) REFERENCES routes (id)",
		"(bus_id) REFERENCES buses (id)",
		"(driver_id) REFERENCES drivers (id)",
	}},
	{model: (*models.Passenger)(nil)},
	{model: (*models.User)(nil)},
	{model: (*models.Ticket)(nil), foreignKeys: []string{
		"(trip_id) REFERENCES trips (id)",
		"(passenger_id) REFERENCES passengers (id)",
		"(seller_id) REFERENCES users (id)",
	}},
	{model: (*models.SeatClaim)(nil), foreignKeys: []string{
		"(trip_id) REFERENCES trips (id)",
		"(ticket_id) REFERENCES tickets (ticket_id)",
	}},
}

// CreateSchema builds the tables from the bun models. It is the schema path for
// MySQL and SQLite; PostgreSQL uses the versioned migrations instead.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, t := range tables {
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", t.model, err)
		}
	}

	if err := createIndex(ctx, db, db.NewCreateIndex().
		Model((*models.Ticket)(nil)).
		Index("idx_tickets_trip_status").
		Column("trip_id", "status")); err != nil {
		return err
	}

	// MySQL has no partial indexes; seat_claims alone carries the invariant there.
	if db.Dialect().Name() == dialect.SQLite {
		if err := createIndex(ctx, db, db.NewCreateIndex().
			Model((*models.Ticket)(nil)).
			Unique().
			Index("ux_tickets_trip_seat_sold").
			Column("trip_id", "seat_number").
			Where("status = 'sold'")); err != nil {
			return err
		}
	}

	return nil
}

func createIndex(ctx context.Context, db *bun.DB, q *bun.CreateIndexQuery) error {
	if db.Dialect().Name() != dialect.MySQL {
		q = q.IfNotExists()
	}
	if _, err := q.Exec(ctx); err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateKeyName {
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// DropSchema removes every table in reverse dependency order.
func DropSchema(ctx context.Context, db *bun.DB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(tables[i].model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", tables[i].model, err)
		}
	}
	return nil
}
