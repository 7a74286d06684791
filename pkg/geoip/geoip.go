// Package geoip resolves network addresses to geographic coordinates.
// Resolution is a pure lookup over injected data; an unknown address is a
// normal outcome, never an error.
package geoip

import (
	"net/netip"
	"strings"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
)

// Resolver maps an address to a location. The second return is false when
// the address is unknown.
type Resolver interface {
	Locate(address string) (ipdr.Location, bool)
}

// TableResolver resolves from a fixed address table. Private and
// non-routable addresses are never resolved, matching how investigators
// treat carrier-internal endpoints.
type TableResolver struct {
	table map[string]ipdr.Location
}

// NewTableResolver builds a resolver over the given address table. Keys are
// normalized to lowercase.
func NewTableResolver(table map[string]ipdr.Location) *TableResolver {
	normalized := make(map[string]ipdr.Location, len(table))
	for addr, loc := range table {
		normalized[strings.ToLower(strings.TrimSpace(addr))] = loc
	}
	return &TableResolver{table: normalized}
}

// Locate implements Resolver.
func (r *TableResolver) Locate(address string) (ipdr.Location, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(address))
	if err != nil {
		return ipdr.Location{}, false
	}
	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return ipdr.Location{}, false
	}
	loc, ok := r.table[strings.ToLower(addr.String())]
	return loc, ok
}

// NopResolver knows no addresses. Useful when geo enrichment is disabled.
type NopResolver struct{}

// Locate implements Resolver.
func (NopResolver) Locate(string) (ipdr.Location, bool) {
	return ipdr.Location{}, false
}
