// Package geoip defines the geo-location lookup boundary.
// The engine treats geo data as strictly optional: a missing or failing
// resolver never blocks click recording.
package geoip

// Location is the coarse geographic attribution attached to a click.
type Location struct {
	Country string
	Region  string
	City    string
}

// Resolver maps a client IP address to a Location.
// Implementations wrap an external database or service (e.g. MaxMind).
type Resolver interface {
	// Lookup returns the location for ip and true on success.
	// Unknown addresses, private ranges, and backend failures all
	// return false; callers record the click without geo fields.
	Lookup(ip string) (Location, bool)
}

// NoopResolver is the default resolver used when no geo database is
// configured. It never resolves anything.
type NoopResolver struct{}

// Lookup always reports a miss.
func (NoopResolver) Lookup(string) (Location, bool) {
	return Location{}, false
}

// StaticResolver serves lookups from a fixed table. Intended for tests
// and local development.
type StaticResolver struct {
	Entries map[string]Location
}

// Lookup returns the table entry for ip, if any.
func (s *StaticResolver) Lookup(ip string) (Location, bool) {
	if s == nil || s.Entries == nil {
		return Location{}, false
	}
	loc, ok := s.Entries[ip]
	return loc, ok
}
