package domain

import "time"

// StatusCode identifies what a telemetry event reports. The numeric values
// follow the common OpenGTS-compatible wire encoding so that device servers
// can pass codes through unchanged.
type StatusCode uint32

const (
	StatusNone             StatusCode = 0x0000
	StatusLocation         StatusCode = 0xF020
	StatusGeofenceArrive   StatusCode = 0xF210
	StatusGeofenceDepart   StatusCode = 0xF230
	StatusCorridorActive   StatusCode = 0xF278
	StatusCorridorInactive StatusCode = 0xF288
	StatusPanicOn          StatusCode = 0xF841
)

// HighPriority reports whether events with this code should be
// reverse-geocoded even under GeocoderModePartial.
func (sc StatusCode) HighPriority() bool {
	switch sc {
	case StatusGeofenceArrive, StatusGeofenceDepart, StatusPanicOn:
		return true
	}
	return false
}

// Event is one timestamped telemetry report from an asset. Once persisted it
// is append-only: background enrichment may fill in address and cell-tower
// fields with a single follow-up update, but never touches timestamp,
// status code or coordinates.
type Event struct {
	ReceivedAt time.Time

	AccountID string
	AssetID   string

	// Timestamp is epoch seconds as reported by the asset.
	Timestamp  int64
	StatusCode StatusCode

	Latitude   float64
	Longitude  float64
	SpeedKPH   float64
	Heading    float64
	OdometerKM float64
	InputMask  uint32

	BatteryLevel float64
	FuelLevel    float64

	// Mobile network identifiers, used for cell-tower location
	// when the event carries no usable GPS fix.
	MCC    int
	MNC    int
	CellID int
	LAC    int

	CellLatitude  float64
	CellLongitude float64

	// GeozoneIndex is the client-reported zone ID attached to
	// geofence arrive/depart status codes, 0 if absent.
	GeozoneIndex int64
	GeozoneID    string

	Address       string
	StreetAddress string
	City          string
	StateProvince string
	PostalCode    string
	Country       string
	Subdivision   string
	SpeedLimitKPH float64

	SensorData []byte
}

// GeoPoint returns the event's GPS coordinates.
func (ev *Event) GeoPoint() GeoPoint {
	return GeoPoint{Latitude: ev.Latitude, Longitude: ev.Longitude}
}

// HasValidFix reports whether the event carries an in-range, non-zero
// GPS coordinate pair.
func (ev *Event) HasValidFix() bool {
	return ev.GeoPoint().Valid()
}

// HasAddress reports whether an address has already been resolved.
func (ev *Event) HasAddress() bool {
	return ev.Address != ""
}

// HasCellIdentifiers reports whether the event carries enough mobile-network
// information for a cell-tower location lookup.
func (ev *Event) HasCellIdentifiers() bool {
	return ev.MCC > 0 && ev.MNC > 0
}

// Event field names used for partial persistence updates.
const (
	EventFieldCellLatitude  = "cell_latitude"
	EventFieldCellLongitude = "cell_longitude"
	EventFieldGeozoneID     = "geozone_id"
	EventFieldGeozoneIndex  = "geozone_index"
	EventFieldAddress       = "address"
	EventFieldStreetAddress = "street_address"
	EventFieldCity          = "city"
	EventFieldStateProvince = "state_province"
	EventFieldPostalCode    = "postal_code"
	EventFieldCountry       = "country"
	EventFieldSubdivision   = "subdivision"
	EventFieldSpeedLimitKPH = "speed_limit_kph"
)

// EnrichMask flags the post-insert work still owed to an event.
type EnrichMask int

const (
	EnrichNone      EnrichMask = 0x0000
	EnrichCellTower EnrichMask = 0x0001
	EnrichAddress   EnrichMask = 0x0002
)

// FutureDateAction selects what the validator does with event timestamps
// beyond the allowed clock skew.
type FutureDateAction int

const (
	FutureDateDisabled FutureDateAction = iota
	FutureDateIgnore
	FutureDateTruncate
)

// ParseFutureDateAction maps a config string to its action, defaulting
// to disabled for unknown values.
func ParseFutureDateAction(s string) FutureDateAction {
	switch s {
	case "ignore":
		return FutureDateIgnore
	case "truncate":
		return FutureDateTruncate
	}
	return FutureDateDisabled
}

// GeocoderMode gates per-account reverse-geocoding.
type GeocoderMode int

const (
	GeocoderModeNone GeocoderMode = iota
	GeocoderModePartial
	GeocoderModeFull
)

// ParseGeocoderMode maps a config string to its mode, defaulting to full.
func ParseGeocoderMode(s string) GeocoderMode {
	switch s {
	case "none":
		return GeocoderModeNone
	case "partial":
		return GeocoderModePartial
	}
	return GeocoderModeFull
}
