package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "8001", cfg.HTTPPort)
	assert.Equal(t, "fleet_track", cfg.DBName)
	assert.Equal(t, "disabled", cfg.FutureDateAction)
	assert.Equal(t, int64(86400), cfg.FutureDateMaxSkewSec)
	assert.Equal(t, 30, cfg.EnrichWorkers)
	assert.Equal(t, 1000, cfg.EnrichQueueSize)
	assert.Equal(t, "full", cfg.GeocoderMode)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FUTURE_DATE_ACTION", "truncate")
	t.Setenv("ENRICH_WORKERS", "8")
	t.Setenv("MAX_ODOMETER_KM", "500000.5")
	t.Setenv("VALID_API_KEYS", "k1=acme/truck-1,k2=acme/truck-2")

	cfg := Load()
	assert.Equal(t, "truncate", cfg.FutureDateAction)
	assert.Equal(t, 8, cfg.EnrichWorkers)
	assert.Equal(t, 500000.5, cfg.MaxOdometerKM)
	assert.Equal(t, []string{"k1=acme/truck-1", "k2=acme/truck-2"}, cfg.ValidAPIKeys)
}

func TestGetEnvIntBadValueFallsBack(t *testing.T) {
	t.Setenv("ENRICH_WORKERS", "not-a-number")
	assert.Equal(t, 30, getEnvInt("ENRICH_WORKERS", 30))
}
