// Package geo computes great-circle distances and ride fares.
package geo

import (
	"math"

	"github.com/shopspring/decimal"

	"ridedispatch/internal/domain"
)

// EarthRadiusKm is the mean Earth radius used for haversine distances.
const EarthRadiusKm = 6371.0

// Distance returns the haversine distance in kilometers between two points.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Rate is the pricing of one ride class.
type Rate struct {
	Base  decimal.Decimal
	PerKm decimal.Decimal
}

var rates = map[domain.RideClass]Rate{
	domain.RideClassEconomy: {Base: decimal.RequireFromString("2.50"), PerKm: decimal.RequireFromString("1.20")},
	domain.RideClassComfort: {Base: decimal.RequireFromString("3.50"), PerKm: decimal.RequireFromString("1.80")},
	domain.RideClassPremium: {Base: decimal.RequireFromString("4.50"), PerKm: decimal.RequireFromString("2.50")},
	domain.RideClassSUV:     {Base: decimal.RequireFromString("5.00"), PerKm: decimal.RequireFromString("2.80")},
}

// RateFor returns the pricing for class. Unknown classes are priced as economy.
func RateFor(class domain.RideClass) Rate {
	if r, ok := rates[class]; ok {
		return r
	}
	return rates[domain.RideClassEconomy]
}

// Fare returns base + distance * per-km rate for class, rounded to cents.
func Fare(distanceKm float64, class domain.RideClass) float64 {
	r := RateFor(class)
	fare := r.Base.Add(decimal.NewFromFloat(distanceKm).Mul(r.PerKm))
	return fare.Round(2).InexactFloat64()
}

// RoundMoney rounds v to two decimal places.
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
