package passengers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-busticketing/internal/models"
)

type DB struct {
	Bun bun.IDB
}

func (d *DB) GetPassengerByDNI(ctx context.Context, dni string) (*models.Passenger, error) {
	var p models.Passenger
	err := d.Bun.NewSelect().
		Model(&p).
		Where("dni = ?", dni).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPassengerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select passenger: %w", err)
	}
	return &p, nil
}

func (d *DB) CreatePassenger(ctx context.Context, p *models.Passenger) error {
	_, err := d.Bun.NewInsert().Model(p).Exec(ctx)
	return err
}
