// Package uma resolves the fiscal unit-of-account value used to index
// regulatory thresholds. Values are revised annually and treated as
// read-mostly configuration.
package uma

import (
	"context"
	"fmt"
	"time"

	"pld/internal/domain"
	"pld/pkg/cache"
	"pld/pkg/errors"
	"pld/pkg/logger"

	"github.com/shopspring/decimal"
)

// Provider resolves the currency value of one unit for a fiscal year.
type Provider interface {
	UnitValue(ctx context.Context, year int) (decimal.Decimal, error)
}

// Repository is the persistence contract for annual unit values.
type Repository interface {
	FindByYear(ctx context.Context, year int) (*domain.UnitValue, error)
	Upsert(ctx context.Context, uv *domain.UnitValue) error
}

// Service is a Provider backed by postgres with a redis read-through
// cache; unit values change once a year, so a generous TTL is safe.
type Service struct {
	repo   Repository
	cache  *cache.RedisCache
	ttl    time.Duration
	logger logger.Logger
}

func NewService(repo Repository, c *cache.RedisCache, ttl time.Duration, log logger.Logger) *Service {
	return &Service{repo: repo, cache: c, ttl: ttl, logger: log}
}

func (s *Service) UnitValue(ctx context.Context, year int) (decimal.Decimal, error) {
	key := cacheKey(year)

	if s.cache != nil {
		var cached string
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if v, perr := decimal.NewFromString(cached); perr == nil {
				return v, nil
			}
		} else if !cache.Miss(err) {
			s.logger.Warn("Unit value cache read failed", map[string]interface{}{
				"year":  year,
				"error": err.Error(),
			})
		}
	}

	uv, err := s.repo.FindByYear(ctx, year)
	if err != nil {
		return decimal.Zero, err
	}
	if uv == nil {
		return decimal.Zero, errors.ErrUnitValueNotFound
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, uv.Value.String(), s.ttl); err != nil {
			s.logger.Warn("Unit value cache write failed", map[string]interface{}{
				"year":  year,
				"error": err.Error(),
			})
		}
	}

	return uv.Value, nil
}

// CurrentUnitValue resolves the value for the fiscal year of now.
func (s *Service) CurrentUnitValue(ctx context.Context, now time.Time) (decimal.Decimal, error) {
	return s.UnitValue(ctx, now.Year())
}

func cacheKey(year int) string {
	return fmt.Sprintf("uma:unit_value:%d", year)
}

// Static is a fixed-table Provider for tests and offline tooling.
type Static map[int]decimal.Decimal

func (s Static) UnitValue(_ context.Context, year int) (decimal.Decimal, error) {
	v, ok := s[year]
	if !ok {
		return decimal.Zero, errors.ErrUnitValueNotFound
	}
	return v, nil
}
