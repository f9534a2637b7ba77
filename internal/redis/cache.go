package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"ridedispatch/internal/domain"
)

// DriverSummaryTTL bounds how stale a cached driver summary may get.
const DriverSummaryTTL = 5 * time.Minute

const driverSummaryPrefix = "cache:driver_summary:"

// CacheStore caches rider-facing driver summaries.
type CacheStore struct {
	client redis.UniversalClient
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client redis.UniversalClient) *CacheStore {
	return &CacheStore{client: client}
}

// GetDriverSummary returns the cached summary, or nil on a cache miss.
func (s *CacheStore) GetDriverSummary(ctx context.Context, driverID string) (*domain.DriverSummary, error) {
	data, err := s.client.Get(ctx, driverSummaryPrefix+driverID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var summary domain.DriverSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// SetDriverSummary stores a summary in cache.
func (s *CacheStore) SetDriverSummary(ctx context.Context, summary *domain.DriverSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, driverSummaryPrefix+summary.DriverID, data, DriverSummaryTTL).Err()
}

// InvalidateDriver removes a driver's summary from cache.
func (s *CacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, driverSummaryPrefix+driverID).Err()
}
