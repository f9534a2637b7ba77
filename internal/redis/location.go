package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const driverLocationKey = "drivers:locations"

// searchSlack widens GEOSEARCH slightly: Redis measures on a larger sphere
// than geo.EarthRadiusKm, so drivers right at the radius would be missed.
const searchSlack = 1.01

// LocationStore handles driver location operations in Redis.
type LocationStore struct {
	client redis.UniversalClient
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client redis.UniversalClient) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores a driver's location using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, driverLocationKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearby returns the IDs of drivers within radiusKm, nearest first.
func (s *LocationStore) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]string, error) {
	return s.client.GeoSearch(ctx, driverLocationKey, &redis.GeoSearchQuery{
		Longitude:  lng,
		Latitude:   lat,
		Radius:     radiusKm * searchSlack,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
}
