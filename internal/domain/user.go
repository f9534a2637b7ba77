package domain

import "time"

// User represents a rider or driver account.
type User struct {
	ID        string
	Name      string
	Phone     string
	CreatedAt time.Time
}
