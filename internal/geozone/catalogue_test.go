package geozone

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-track/ingestion/internal/domain"
)

func circleZone(account, id string, priority int, clientID int64, lat, lon, radiusM float64) *domain.Geozone {
	return &domain.Geozone{
		AccountID:       account,
		ZoneID:          id,
		Priority:        priority,
		ClientID:        clientID,
		Shape:           domain.ZoneShapeCircle,
		CenterLatitude:  lat,
		CenterLongitude: lon,
		RadiusMeters:    radiusM,
	}
}

func TestZoneContainingPriorityWins(t *testing.T) {
	// Two overlapping circles; the lower priority value must win
	// regardless of insertion order.
	low := circleZone("acme", "warehouse", 1, 0, 35.0, -120.0, 2000)
	high := circleZone("acme", "campus", 5, 0, 35.0, -120.0, 5000)
	c := NewStatic([]*domain.Geozone{high, low})

	z := c.ZoneContaining(context.Background(), "acme", domain.GeoPoint{Latitude: 35.0, Longitude: -120.0})
	require.NotNil(t, z)
	assert.Equal(t, "warehouse", z.ZoneID)
}

func TestZoneContainingTieBreaksOnZoneID(t *testing.T) {
	a := circleZone("acme", "alpha", 1, 0, 35.0, -120.0, 2000)
	b := circleZone("acme", "beta", 1, 0, 35.0, -120.0, 2000)
	c := NewStatic([]*domain.Geozone{b, a})

	z := c.ZoneContaining(context.Background(), "acme", domain.GeoPoint{Latitude: 35.0, Longitude: -120.0})
	require.NotNil(t, z)
	assert.Equal(t, "alpha", z.ZoneID)
}

func TestZoneContainingAccountIsolation(t *testing.T) {
	c := NewStatic([]*domain.Geozone{
		circleZone("acme", "depot", 1, 0, 35.0, -120.0, 2000),
	})
	z := c.ZoneContaining(context.Background(), "other", domain.GeoPoint{Latitude: 35.0, Longitude: -120.0})
	assert.Nil(t, z)
}

func TestZoneContainingOutsideAllZones(t *testing.T) {
	c := NewStatic([]*domain.Geozone{
		circleZone("acme", "depot", 1, 0, 35.0, -120.0, 1000),
	})
	z := c.ZoneContaining(context.Background(), "acme", domain.GeoPoint{Latitude: 36.0, Longitude: -121.0})
	assert.Nil(t, z)
}

func TestZonesByClientID(t *testing.T) {
	c := NewStatic([]*domain.Geozone{
		circleZone("acme", "depot", 1, 42, 35.0, -120.0, 1000),
		circleZone("acme", "yard", 2, 42, 35.5, -120.5, 1000),
		circleZone("acme", "office", 3, 7, 36.0, -121.0, 1000),
		circleZone("other", "depot", 1, 42, 35.0, -120.0, 1000),
	})

	zs := c.ZonesByClientID(context.Background(), "acme", 42)
	require.Len(t, zs, 2)
	assert.Equal(t, "depot", zs[0].ZoneID, "priority order preserved")

	assert.Nil(t, c.ZonesByClientID(context.Background(), "acme", 0))
	assert.Nil(t, c.ZonesByClientID(context.Background(), "acme", 99))
}

func TestNopCatalogue(t *testing.T) {
	var c Nop
	assert.Nil(t, c.ZoneContaining(context.Background(), "acme", domain.GeoPoint{Latitude: 35, Longitude: -120}))
	assert.Nil(t, c.ZonesByClientID(context.Background(), "acme", 1))
}
