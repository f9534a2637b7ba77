package redis

import "ridedispatch/internal/service"

// Ensure concrete types implement the service ports.
var (
	_ service.LocationIndex = (*LocationStore)(nil)
	_ service.DriverCache   = (*CacheStore)(nil)
)
