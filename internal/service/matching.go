package service

import (
	"context"
	"fmt"
	"sort"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/geo"
	"ridedispatch/internal/repository"
)

// Matching defaults.
const (
	DefaultSearchRadiusKm = 10.0
	DefaultMaxCandidates  = 20
)

// MatchingService finds available drivers near a point.
type MatchingService struct {
	drivers       repository.DriverRepository
	index         LocationIndex
	radiusKm      float64
	maxCandidates int
}

// NewMatchingService creates a new MatchingService. Non-positive radius or
// limit fall back to DefaultSearchRadiusKm and DefaultMaxCandidates.
func NewMatchingService(drivers repository.DriverRepository, index LocationIndex, radiusKm float64, maxCandidates int) *MatchingService {
	if radiusKm <= 0 {
		radiusKm = DefaultSearchRadiusKm
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &MatchingService{
		drivers:       drivers,
		index:         index,
		radiusKm:      radiusKm,
		maxCandidates: maxCandidates,
	}
}

// NearbyQuery describes a driver search.
type NearbyQuery struct {
	Lat       float64
	Lng       float64
	RadiusKm  float64          // <= 0 uses the configured default
	RideClass domain.RideClass // empty matches every class
}

// NearbyDriver is a search hit.
type NearbyDriver struct {
	Driver     *domain.Driver
	DistanceKm float64
}

// FindNearby returns available drivers with a known location within the radius,
// nearest first, capped at the configured maximum.
func (s *MatchingService) FindNearby(ctx context.Context, q NearbyQuery) ([]NearbyDriver, error) {
	if !isValidLatitude(q.Lat) || !isValidLongitude(q.Lng) {
		return nil, ErrInvalidLocation
	}

	radius := q.RadiusKm
	if radius <= 0 {
		radius = s.radiusKm
	}

	candidateIDs, err := s.index.FindNearby(ctx, q.Lat, q.Lng, radius)
	if err != nil {
		return nil, fmt.Errorf("search location index: %w", err)
	}
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	// The index only pre-selects; the driver records are authoritative.
	drivers, err := s.drivers.GetByUserIDs(ctx, candidateIDs)
	if err != nil {
		return nil, fmt.Errorf("load candidate drivers: %w", err)
	}

	hits := make([]NearbyDriver, 0, len(drivers))
	for _, d := range drivers {
		if !d.IsAvailable || d.Location == nil {
			continue
		}
		if q.RideClass != "" && d.VehicleType != q.RideClass {
			continue
		}
		dist := geo.Distance(q.Lat, q.Lng, d.Location.Lat, d.Location.Lng)
		if dist > radius {
			continue
		}
		hits = append(hits, NearbyDriver{Driver: d, DistanceKm: dist})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceKm != hits[j].DistanceKm {
			return hits[i].DistanceKm < hits[j].DistanceKm
		}
		return hits[i].Driver.UserID < hits[j].Driver.UserID
	})

	if len(hits) > s.maxCandidates {
		hits = hits[:s.maxCandidates]
	}
	return hits, nil
}
