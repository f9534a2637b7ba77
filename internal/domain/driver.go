package domain

import "time"

// Location is a latitude/longitude pair in degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Driver is the availability record of a user who drives.
type Driver struct {
	UserID       string
	Name         string
	Phone        string
	IsAvailable  bool
	Location     *Location // nil until the first location update
	VehicleType  RideClass
	VehicleMake  string
	VehicleModel string
	VehicleColor string
	LicensePlate string
	Rating       float64
	TotalRides   int
	CreatedAt    time.Time
}

// Summary returns the rider-facing view of the driver.
func (d *Driver) Summary() *DriverSummary {
	return &DriverSummary{
		DriverID:     d.UserID,
		Name:         d.Name,
		Phone:        d.Phone,
		VehicleMake:  d.VehicleMake,
		VehicleModel: d.VehicleModel,
		VehicleColor: d.VehicleColor,
		LicensePlate: d.LicensePlate,
		Rating:       d.Rating,
	}
}

// DriverSummary is what a rider sees about their driver.
type DriverSummary struct {
	DriverID     string  `json:"driver_id"`
	Name         string  `json:"name"`
	Phone        string  `json:"phone"`
	VehicleMake  string  `json:"vehicle_make"`
	VehicleModel string  `json:"vehicle_model"`
	VehicleColor string  `json:"vehicle_color"`
	LicensePlate string  `json:"license_plate"`
	Rating       float64 `json:"rating"`
}
