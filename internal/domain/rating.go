package domain

import "time"

// Rating is a score left by one ride participant for the other.
type Rating struct {
	ID        string
	RideID    string
	RaterID   string
	RatedID   string
	Score     int
	Review    string
	CreatedAt time.Time
}
