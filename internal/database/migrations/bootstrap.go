package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-busticketing/internal/database"
	"ms-busticketing/internal/logger"
)

// Apply brings the schema up to date: versioned migrations on PostgreSQL,
// model-driven bootstrap on MySQL and SQLite.
func Apply(ctx context.Context, bunDB *bun.DB, log *logger.Logger) error {
	if bunDB.Dialect().Name() != dialect.PG {
		if err := database.CreateSchema(ctx, bunDB); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		log.LogDatabase("BOOTSTRAP", "*", fmt.Sprintf("schema ensured on %s", bunDB.Dialect().Name()))
		return nil
	}

	runner := NewRunner(bunDB, log)
	defer runner.Close()
	return runner.MigrateUp()
}
