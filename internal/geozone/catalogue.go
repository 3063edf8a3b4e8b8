// Package geozone provides the zone catalogue consulted for arrival and
// departure detection and for static address resolution.
package geozone

import (
	"context"
	"sort"

	"fleet-track/ingestion/internal/domain"
)

// Catalogue answers point-in-zone queries. ZoneContaining returns at most
// one zone per point; ties between overlapping zones are broken by the
// catalogue's own precedence.
type Catalogue interface {
	ZoneContaining(ctx context.Context, accountID string, p domain.GeoPoint) *domain.Geozone
	ZonesByClientID(ctx context.Context, accountID string, clientID int64) []*domain.Geozone
}

// Static is an in-memory catalogue over a fixed zone set, typically loaded
// from the geozones table at startup. Lookup precedence is zone priority,
// then zone ID.
type Static struct {
	zones []*domain.Geozone
}

func NewStatic(zones []*domain.Geozone) *Static {
	sorted := make([]*domain.Geozone, len(zones))
	copy(sorted, zones)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].ZoneID < sorted[j].ZoneID
	})
	return &Static{zones: sorted}
}

func (c *Static) ZoneContaining(_ context.Context, accountID string, p domain.GeoPoint) *domain.Geozone {
	for _, z := range c.zones {
		if z.AccountID == accountID && z.Contains(p) {
			return z
		}
	}
	return nil
}

func (c *Static) ZonesByClientID(_ context.Context, accountID string, clientID int64) []*domain.Geozone {
	if clientID <= 0 {
		return nil
	}
	var out []*domain.Geozone
	for _, z := range c.zones {
		if z.AccountID == accountID && z.ClientID == clientID {
			out = append(out, z)
		}
	}
	return out
}

// Nop is the empty catalogue used when no zones are configured.
type Nop struct{}

func (Nop) ZoneContaining(context.Context, string, domain.GeoPoint) *domain.Geozone { return nil }
func (Nop) ZonesByClientID(context.Context, string, int64) []*domain.Geozone        { return nil }
