package pipeline

import "fleet-track/ingestion/internal/domain"

// UpdateDerivedState folds a validated event into the asset's last-known
// fields and returns the asset fields that changed, for the partial
// persistence write.
//
// The odometer guard here rejects only implausible (corrupt-sensor) values;
// a reading below the current odometer is accepted as-is. Monotonic clamping
// of externally supplied values is Asset.AdjustOdometerKM's job.
func UpdateDerivedState(asset *domain.Asset, ev *domain.Event, maxOdometerKM float64) []string {
	var changed []string

	if ev.HasValidFix() {
		asset.LastValidLatitude = ev.Latitude
		asset.LastValidLongitude = ev.Longitude
		asset.LastGPSTimestamp = ev.Timestamp
		changed = append(changed,
			domain.AssetFieldLastValidLatitude,
			domain.AssetFieldLastValidLongitude,
			domain.AssetFieldLastGPSTimestamp)
	}

	if ev.OdometerKM > 0 && ev.OdometerKM < maxPlausibleOdometer(asset, maxOdometerKM) {
		asset.LastOdometerKM = ev.OdometerKM
		changed = append(changed, domain.AssetFieldLastOdometerKM)
	}

	if ev.BatteryLevel > 0 {
		asset.LastBatteryLevel = ev.BatteryLevel
		changed = append(changed, domain.AssetFieldLastBatteryLevel)
	}
	if ev.FuelLevel > 0 {
		asset.LastFuelLevel = ev.FuelLevel
		changed = append(changed, domain.AssetFieldLastFuelLevel)
	}

	return changed
}

func maxPlausibleOdometer(asset *domain.Asset, cfgMax float64) float64 {
	if asset.MaxOdometerKM > 0 {
		return asset.MaxOdometerKM
	}
	if cfgMax > 0 {
		return cfgMax
	}
	return domain.DefaultMaxOdometerKM
}
