package passengers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-busticketing/internal/database/dbtest"
	"ms-busticketing/internal/logger"
	"ms-busticketing/internal/models"
	"ms-busticketing/internal/passengers"
)

type MockPassengerDB struct {
	mock.Mock
}

func (m *MockPassengerDB) GetPassengerByDNI(ctx context.Context, dni string) (*models.Passenger, error) {
	args := m.Called(ctx, dni)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Passenger), args.Error(1)
}

func (m *MockPassengerDB) CreatePassenger(ctx context.Context, p *models.Passenger) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

var buyer = models.Buyer{DNI: "45678912", FirstName: "Rosa", LastNames: "Mamani Flores"}

func TestValidDNI(t *testing.T) {
	assert.True(t, passengers.ValidDNI("00012345"))
	assert.False(t, passengers.ValidDNI("1234567"))
	assert.False(t, passengers.ValidDNI("123456789"))
	assert.False(t, passengers.ValidDNI("1234567a"))
}

func TestFindOrCreate_InvalidDNI(t *testing.T) {
	mockDB := new(MockPassengerDB)
	svc := passengers.NewService(mockDB, logger.Nop())

	_, err := svc.FindOrCreate(context.Background(), models.Buyer{DNI: "12ab"})
	assert.ErrorIs(t, err, models.ErrInvalidDNI)
	mockDB.AssertExpectations(t)
}

func TestFindOrCreate_Existing(t *testing.T) {
	mockDB := new(MockPassengerDB)
	svc := passengers.NewService(mockDB, logger.Nop())
	existing := &models.Passenger{ID: "p-1", DNI: buyer.DNI}

	mockDB.On("GetPassengerByDNI", mock.Anything, buyer.DNI).Return(existing, nil)

	p, err := svc.FindOrCreate(context.Background(), buyer)
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)
	mockDB.AssertNotCalled(t, "CreatePassenger", mock.Anything, mock.Anything)
}

func TestFindOrCreate_ConcurrentInsertRereads(t *testing.T) {
	mockDB := new(MockPassengerDB)
	svc := passengers.NewService(mockDB, logger.Nop())
	winner := &models.Passenger{ID: "p-winner", DNI: buyer.DNI}

	mockDB.On("GetPassengerByDNI", mock.Anything, buyer.DNI).Return(nil, models.ErrPassengerNotFound).Once()
	mockDB.On("CreatePassenger", mock.Anything, mock.AnythingOfType("*models.Passenger")).Return(&pq.Error{Code: "23505"})
	mockDB.On("GetPassengerByDNI", mock.Anything, buyer.DNI).Return(winner, nil).Once()

	p, err := svc.FindOrCreate(context.Background(), buyer)
	require.NoError(t, err)
	assert.Equal(t, "p-winner", p.ID)
	mockDB.AssertExpectations(t)
}

func TestFindOrCreate_StorageError(t *testing.T) {
	mockDB := new(MockPassengerDB)
	svc := passengers.NewService(mockDB, logger.Nop())

	mockDB.On("GetPassengerByDNI", mock.Anything, buyer.DNI).Return(nil, errors.New("connection reset"))

	_, err := svc.FindOrCreate(context.Background(), buyer)
	assert.EqualError(t, err, "connection reset")
}

func TestFindOrCreate_SQLite(t *testing.T) {
	db := dbtest.New(t)
	svc := passengers.NewService(&passengers.DB{Bun: db}, logger.Nop())
	ctx := context.Background()

	first, err := svc.FindOrCreate(ctx, buyer)
	require.NoError(t, err)

	second, err := svc.FindOrCreate(ctx, models.Buyer{DNI: buyer.DNI, FirstName: "Other", LastNames: "Name"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Rosa", second.FirstName)

	found, err := svc.Lookup(ctx, buyer.DNI)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = svc.Lookup(ctx, "99999999")
	assert.ErrorIs(t, err, models.ErrPassengerNotFound)
}
