package uma

import (
	"context"
	"testing"
	"time"

	"pld/internal/domain"
	"pld/pkg/errors"
	"pld/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindByYear(ctx context.Context, year int) (*domain.UnitValue, error) {
	args := m.Called(ctx, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UnitValue), args.Error(1)
}

func (m *MockRepository) Upsert(ctx context.Context, uv *domain.UnitValue) error {
	args := m.Called(ctx, uv)
	return args.Error(0)
}

func TestUnitValueFromRepository(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil, time.Hour, logger.NewNop())

	mockRepo.On("FindByYear", mock.Anything, 2026).Return(&domain.UnitValue{
		Year:  2026,
		Value: decimal.RequireFromString("117.31"),
	}, nil)

	v, err := service.UnitValue(context.Background(), 2026)
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.RequireFromString("117.31")))
}

func TestUnitValueMissingYear(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil, time.Hour, logger.NewNop())

	mockRepo.On("FindByYear", mock.Anything, 1999).Return(nil, errors.ErrUnitValueNotFound)

	_, err := service.UnitValue(context.Background(), 1999)
	assert.ErrorIs(t, err, errors.ErrUnitValueNotFound)
}

func TestCurrentUnitValueUsesFiscalYear(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, nil, time.Hour, logger.NewNop())

	mockRepo.On("FindByYear", mock.Anything, 2025).Return(&domain.UnitValue{
		Year:  2025,
		Value: decimal.RequireFromString("113.14"),
	}, nil)

	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	v, err := service.CurrentUnitValue(context.Background(), now)
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.RequireFromString("113.14")))
}

func TestStaticProvider(t *testing.T) {
	static := Static{2026: decimal.RequireFromString("117.31")}

	v, err := static.UnitValue(context.Background(), 2026)
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.RequireFromString("117.31")))

	_, err = static.UnitValue(context.Background(), 2020)
	assert.ErrorIs(t, err, errors.ErrUnitValueNotFound)
}
