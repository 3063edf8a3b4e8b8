package domain

// DefaultMaxOdometerKM caps odometer readings accepted from sensors when the
// asset has no per-unit maximum configured (one million miles, in km).
const DefaultMaxOdometerKM = 1609344.0

// Asset is the per-unit aggregate of last-known state, mutated on every
// successfully ingested event. "Last known" fields reflect only events that
// passed validation and carried a valid GPS fix, except the odometer, which
// may be set from non-GPS sources.
type Asset struct {
	AccountID string
	AssetID   string

	LastValidLatitude  float64
	LastValidLongitude float64
	LastGPSTimestamp   int64

	LastOdometerKM   float64
	OdometerOffsetKM float64
	MaxOdometerKM    float64

	LastBatteryLevel float64
	LastFuelLevel    float64

	ActiveCorridor string

	LastNotifyTime int64
	LastNotifyCode StatusCode
	NotifySelector string
	AllowNotify    bool

	// IgnitionIndex is the input-mask bit carrying ignition state,
	// negative if the asset reports none.
	IgnitionIndex int
}

// LastValidLocation returns the asset's last GPS-confirmed position, which
// may be invalid (zero) for an asset that has never reported a fix.
func (a *Asset) LastValidLocation() GeoPoint {
	return GeoPoint{Latitude: a.LastValidLatitude, Longitude: a.LastValidLongitude}
}

// HasActiveCorridor reports whether the asset is currently inside a corridor.
func (a *Asset) HasActiveCorridor() bool {
	return a.ActiveCorridor != ""
}

// MaxOdometer returns the asset's maximum plausible odometer value.
func (a *Asset) MaxOdometer() float64 {
	if a.MaxOdometerKM > 0 {
		return a.MaxOdometerKM
	}
	return DefaultMaxOdometerKM
}

// AdjustOdometerKM clamps an externally supplied odometer value: candidates
// below the current reading or at/above the plausible maximum are rejected
// and the current reading is returned unchanged.
func (a *Asset) AdjustOdometerKM(v float64) float64 {
	if v < a.LastOdometerKM {
		return a.LastOdometerKM
	}
	if v >= a.MaxOdometer() {
		return a.LastOdometerKM
	}
	return v
}

// OdometerWithOffsetKM returns the display odometer, the raw reading plus
// the administratively configured offset.
func (a *Asset) OdometerWithOffsetKM() float64 {
	return a.LastOdometerKM + a.OdometerOffsetKM
}

// IsNearLastValidLocation reports whether p lies within meters of the last
// GPS-confirmed position. Returns false if either point is invalid or the
// radius is not positive.
func (a *Asset) IsNearLastValidLocation(p GeoPoint, meters float64) bool {
	last := a.LastValidLocation()
	if meters <= 0 || !p.Valid() || !last.Valid() {
		return false
	}
	return last.MetersTo(p) < meters
}

// IgnitionOn derives ignition state from an event input mask using the
// asset's configured ignition bit. The second return is false when the asset
// has no ignition input configured.
func (a *Asset) IgnitionOn(inputMask uint32) (on, known bool) {
	if a.IgnitionIndex < 0 || a.IgnitionIndex > 31 {
		return false, false
	}
	return inputMask&(1<<uint(a.IgnitionIndex)) != 0, true
}

// Asset field names used for partial persistence updates.
const (
	AssetFieldLastValidLatitude  = "last_valid_latitude"
	AssetFieldLastValidLongitude = "last_valid_longitude"
	AssetFieldLastGPSTimestamp   = "last_gps_timestamp"
	AssetFieldLastOdometerKM     = "last_odometer_km"
	AssetFieldLastBatteryLevel   = "last_battery_level"
	AssetFieldLastFuelLevel      = "last_fuel_level"
	AssetFieldActiveCorridor     = "active_corridor"
	AssetFieldLastNotifyTime     = "last_notify_time"
	AssetFieldLastNotifyCode     = "last_notify_code"
)
