// Package catalog serves the active service catalog with its pricing tables.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_laundry/internal/apperr"
	"github.com/fjod/go_laundry/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Source interface {
	ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error)
}

type Service struct {
	source Source
	cache  Cache
	log    *zap.Logger
	sfg    singleflight.Group // Prevents cache stampede
}

func NewService(source Source, cache Cache, log *zap.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		source: source,
		cache:  cache,
		log:    log,
	}
}

// Active returns the active services. Concurrent misses share one API call.
func (s *Service) Active(ctx context.Context) ([]domain.Service, error) {
	v, err, _ := s.sfg.Do(cacheKey, func() (interface{}, error) {
		services, err := s.cache.Get(ctx)
		if err == nil {
			return services, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn("catalog cache get error", zap.Error(err))
		}

		services, err = s.source.ListServices(ctx, true)
		if err != nil {
			return nil, fmt.Errorf("list services: %w", err)
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(setCtx, services); errSet != nil {
				s.log.Warn("catalog cache set error", zap.Error(errSet))
			}
		}()

		return services, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Service), nil
}

func (s *Service) Catalog(ctx context.Context) (domain.Catalog, error) {
	services, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	return domain.NewCatalog(services), nil
}

// Pricing returns the pricing row for a pair offered by an active service, or
// apperr.ErrUnknownPair.
func (s *Service) Pricing(ctx context.Context, serviceID string, garment domain.GarmentType) (*domain.Pricing, error) {
	c, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	_, p, ok := c.Lookup(serviceID, garment)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", apperr.ErrUnknownPair, serviceID, garment)
	}
	return &p, nil
}

func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx); err != nil {
		s.log.Warn("catalog cache invalidate error", zap.Error(err))
	}
}
