package memory

import (
	"context"
	"sort"
	"sync"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/geo"
)

// LocationIndex is an in-process geo index of driver positions.
type LocationIndex struct {
	mu        sync.RWMutex
	positions map[string]domain.Location
}

// NewLocationIndex creates an empty LocationIndex.
func NewLocationIndex() *LocationIndex {
	return &LocationIndex{positions: make(map[string]domain.Location)}
}

// UpdateLocation records the driver's position.
func (i *LocationIndex) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.positions[driverID] = domain.Location{Lat: lat, Lng: lng}
	return nil
}

// FindNearby returns the IDs of drivers within radiusKm, nearest first.
func (i *LocationIndex) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]string, error) {
	type hit struct {
		id   string
		dist float64
	}

	i.mu.RLock()
	hits := make([]hit, 0, len(i.positions))
	for id, pos := range i.positions {
		if d := geo.Distance(lat, lng, pos.Lat, pos.Lng); d <= radiusKm {
			hits = append(hits, hit{id: id, dist: d})
		}
	}
	i.mu.RUnlock()

	sort.Slice(hits, func(a, b int) bool { return hits[a].dist < hits[b].dist })

	ids := make([]string, len(hits))
	for n, h := range hits {
		ids[n] = h.id
	}
	return ids, nil
}
