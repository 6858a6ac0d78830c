package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"golang.org/x/crypto/bcrypt"

	"ms-busticketing/internal/config"
	"ms-busticketing/internal/database"
	"ms-busticketing/internal/database/migrations"
	"ms-busticketing/internal/logger"
	"ms-busticketing/internal/models"
)

func main() {
	down := flag.Bool("down", false, "drop the schema instead of creating it")
	seed := flag.Bool("seed", true, "insert demo routes, buses, drivers, trips and the admin user")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx := context.Background()
	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if *down {
		if err := dropSchema(ctx, bunDB, log); err != nil {
			log.Fatal("MIGRATION", fmt.Sprintf("Failed to drop schema: %v", err))
		}
		log.Info("MIGRATION", "Schema dropped")
		return
	}

	if err := migrations.Apply(ctx, bunDB, log); err != nil {
		log.Fatal("MIGRATION", fmt.Sprintf("Failed to apply schema: %v", err))
	}

	if *seed {
		password := os.Getenv("SEED_ADMIN_PASSWORD")
		if password == "" {
			log.Fatal("CONFIG", "SEED_ADMIN_PASSWORD not set")
		}
		if err := seedData(ctx, bunDB, password, time.Now()); err != nil {
			log.Fatal("SEED", fmt.Sprintf("Failed to seed data: %v", err))
		}
		log.Info("SEED", "Demo data ensured")
	}
	log.Info("MIGRATION", "Done")
}

func dropSchema(ctx context.Context, bunDB *bun.DB, log *logger.Logger) error {
	if bunDB.Dialect().Name() == dialect.PG {
		runner := migrations.NewRunner(bunDB, log)
		defer runner.Close()
		return runner.MigrateDown()
	}
	return database.DropSchema(ctx, bunDB)
}

type seedRoute struct {
	origin, destination string
	fare                float64
	departHour          int
}

var seedRoutes = []seedRoute{
	{"Lima", "Arequipa", 90, 20},
	{"Lima", "Trujillo", 55, 22},
	{"Arequipa", "Cusco", 45, 8},
}

// seedData inserts demo rows keyed by natural identifiers, so running it again
// changes nothing.
func seedData(ctx context.Context, bunDB *bun.DB, adminPassword string, now time.Time) error {
	return bunDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.User)(nil)).Where("username = ?", "admin").Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			admin := models.User{
				ID:           uuid.NewString(),
				Username:     "admin",
				PasswordHash: string(hash),
				FullName:     "Administrador",
				Email:        "admin@busticketing.local",
				Role:         models.RoleAdmin,
				Active:       true,
				CreatedAt:    now.UTC(),
			}
			if _, err := tx.NewInsert().Model(&admin).Exec(ctx); err != nil {
				return fmt.Errorf("insert admin: %w", err)
			}
		}

		routeCount, err := tx.NewSelect().Model((*models.Route)(nil)).Count(ctx)
		if err != nil {
			return err
		}
		if routeCount > 0 {
			return nil
		}

		for i, sr := range seedRoutes {
			route := models.Route{ID: uuid.NewString(), Origin: sr.origin, Destination: sr.destination, BaseFare: sr.fare}
			bus := models.Bus{
				ID:           uuid.NewString(),
				Plate:        fmt.Sprintf("BUS-%03d", i+1),
				Manufacturer: "Marcopolo",
				Capacity:     40,
				Status:       models.BusStatusOperational,
			}
			driver := models.Driver{ID: uuid.NewString(), FullName: fmt.Sprintf("Conductor %d", i+1), LicenseNo: fmt.Sprintf("LIC-%05d", i+1)}

			day := time.Date(now.Year(), now.Month(), now.Day(), sr.departHour, 0, 0, 0, time.UTC)
			trips := make([]models.Trip, 0, 7)
			for d := 1; d <= 7; d++ {
				departure := day.AddDate(0, 0, d)
				trips = append(trips, models.Trip{
					ID:          uuid.NewString(),
					RouteID:     route.ID,
					BusID:       bus.ID,
					DriverID:    driver.ID,
					DepartureAt: departure,
					ArrivalAt:   departure.Add(12 * time.Hour),
					Status:      models.TripStatusScheduled,
				})
			}

			for _, m := range []interface{}{&route, &bus, &driver, &trips} {
				if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
					return fmt.Errorf("insert %T: %w", m, err)
				}
			}
		}
		return nil
	})
}
