package models

import "time"

// LoadStats is the marketplace dashboard snapshot.
type LoadStats struct {
	Total            int64     `json:"total"`
	Open             int64     `json:"open"`
	AcceptedByOwner  int64     `json:"acceptedByOwner"`
	AssignedToDriver int64     `json:"assignedToDriver"`
	InTransit        int64     `json:"inTransit"`
	Completed        int64     `json:"completed"`
	Cancelled        int64     `json:"cancelled"`
	NewThisMonth     int64     `json:"newThisMonth"`
	GeneratedAt      time.Time `json:"generatedAt"`
}
