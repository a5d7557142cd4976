// Package geo maps client IP addresses to coarse locations.
package geo

import (
	"context"
	"net/netip"
)

const (
	UnknownName     = "Unknown"
	UnknownCode     = "UN"
	DefaultTimezone = "UTC"
	LocalISP        = "Local Network"
)

// Location is the coarse position attached to a click.
type Location struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	ISP         string  `json:"isp"`
	Timezone    string  `json:"timezone"`
}

// Resolver looks up an IP. Implementations return an error on any lookup
// failure; callers substitute Unknown.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (Location, error)
}

// Unknown is the placeholder for a failed lookup.
func Unknown() Location {
	return Location{
		Country:     UnknownName,
		CountryCode: UnknownCode,
		Region:      UnknownName,
		City:        UnknownName,
		ISP:         UnknownName,
		Timezone:    DefaultTimezone,
	}
}

// Local is the placeholder for loopback and private addresses.
func Local() Location {
	l := Unknown()
	l.ISP = LocalISP
	return l
}

// IsLocal reports whether ip cannot be geolocated: empty, loopback, private,
// link-local or unspecified. IPv4-mapped IPv6 addresses are unmapped first.
func IsLocal(ip string) bool {
	if ip == "" {
		return true
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsUnspecified()
}

// ResolveOrUnknown resolves ip and swallows any error into the Unknown placeholder.
func ResolveOrUnknown(ctx context.Context, r Resolver, ip string) (Location, error) {
	if r == nil {
		return Unknown(), nil
	}
	loc, err := r.Resolve(ctx, ip)
	if err != nil {
		return Unknown(), err
	}
	return loc, nil
}
