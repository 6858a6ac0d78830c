package passengers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-busticketing/internal/database"
	"ms-busticketing/internal/logger"
	"ms-busticketing/internal/models"
)

type PassengerDBLayer interface {
	GetPassengerByDNI(ctx context.Context, dni string) (*models.Passenger, error)
	CreatePassenger(ctx context.Context, p *models.Passenger) error
}

type Service struct {
	DB     PassengerDBLayer
	Logger *logger.Logger
	now    func() time.Time
}

func NewService(db PassengerDBLayer, log *logger.Logger) *Service {
	return &Service{DB: db, Logger: log, now: time.Now}
}

// ValidDNI reports whether dni is a Peruvian national ID: exactly eight digits.
func ValidDNI(dni string) bool {
	if len(dni) != 8 {
		return false
	}
	for _, c := range dni {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// FindOrCreate returns the passenger registered under the buyer's DNI, registering
// the buyer first when needed. Names of an existing passenger are not overwritten.
func (s *Service) FindOrCreate(ctx context.Context, buyer models.Buyer) (*models.Passenger, error) {
	dni := strings.TrimSpace(buyer.DNI)
	if !ValidDNI(dni) {
		return nil, models.ErrInvalidDNI
	}

	p, err := s.DB.GetPassengerByDNI(ctx, dni)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, models.ErrPassengerNotFound) {
		return nil, err
	}

	p = &models.Passenger{
		ID:        uuid.NewString(),
		DNI:       dni,
		FirstName: strings.TrimSpace(buyer.FirstName),
		LastNames: strings.TrimSpace(buyer.LastNames),
		CreatedAt: s.now().UTC(),
	}
	if err := s.DB.CreatePassenger(ctx, p); err != nil {
		if database.IsUniqueViolation(err) {
			// registered by a concurrent sale
			return s.DB.GetPassengerByDNI(ctx, dni)
		}
		return nil, fmt.Errorf("create passenger: %w", err)
	}

	s.Logger.LogDatabase("INSERT", "passengers", fmt.Sprintf("registered passenger %s", p.ID))
	return p, nil
}

func (s *Service) Lookup(ctx context.Context, dni string) (*models.Passenger, error) {
	if !ValidDNI(dni) {
		return nil, models.ErrInvalidDNI
	}
	return s.DB.GetPassengerByDNI(ctx, dni)
}
