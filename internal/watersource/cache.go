package watersource

import "time"

// DefaultTTL is how long provider results stay fresh. Water features
// change rarely, so the window is day-scale.
const DefaultTTL = 24 * time.Hour

// DefaultRadiusKm is the search radius around the farm centroid.
const DefaultRadiusKm = 10.0

// CacheValid reports whether a fetch stamped at lastFetched is still
// fresh at now. A nil stamp means the farm has never been fetched.
func CacheValid(lastFetched *time.Time, now time.Time, ttl time.Duration) bool {
	if lastFetched == nil {
		return false
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return now.Sub(*lastFetched) < ttl
}
