package domain

import "time"

// Track is the public-facing record of a completed generation. Its URL
// always points at published storage, never at the raw provider URL.
type Track struct {
	ID          string
	OrderID     string
	PrincipalID string
	Title       string
	Style       string
	AudioURL    string
	DurationSec int
	CreatedAt   time.Time
}
