package models

import "time"

// RateLimitEntry is the counter for one client key in the current window
type RateLimitEntry struct {
	Count     int       `json:"count"`
	ResetTime time.Time `json:"resetTime"`
}

// Expired reports whether the window has closed at now
func (e *RateLimitEntry) Expired(now time.Time) bool {
	return now.After(e.ResetTime)
}
