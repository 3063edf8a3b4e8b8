package domain

// GeozoneShape selects how a zone's geometry is tested.
type GeozoneShape int

const (
	ZoneShapeCircle GeozoneShape = iota
	ZoneShapeBoundingBox
)

// Geozone is a named geographic region used for arrival/departure detection
// and static address lookup. Read-only from the pipeline's perspective.
type Geozone struct {
	AccountID   string
	ZoneID      string
	Description string

	// ClientID is the device-side zone identifier that geofence-transition
	// events reference via Event.GeozoneIndex, 0 if none.
	ClientID int64

	// Priority breaks ties when a point falls inside overlapping zones;
	// lower sorts first.
	Priority int

	ArrivalZone   bool
	DepartureZone bool

	CorridorID    string
	CorridorStart bool
	CorridorEnd   bool

	// ReverseGeocode marks the zone as usable for static address resolution.
	ReverseGeocode bool
	// ClientUpload marks the zone as pushed to devices, so its ClientID may
	// be back-filled onto events resolved against it.
	ClientUpload bool

	StreetAddress string
	City          string
	StateProvince string
	PostalCode    string
	Country       string
	Subdivision   string

	Shape           GeozoneShape
	CenterLatitude  float64
	CenterLongitude float64
	RadiusMeters    float64
	MinLatitude     float64
	MaxLatitude     float64
	MinLongitude    float64
	MaxLongitude    float64
}

// Contains reports whether p lies inside the zone's geometry.
func (z *Geozone) Contains(p GeoPoint) bool {
	if !p.Valid() {
		return false
	}
	switch z.Shape {
	case ZoneShapeBoundingBox:
		return p.Latitude >= z.MinLatitude && p.Latitude <= z.MaxLatitude &&
			p.Longitude >= z.MinLongitude && p.Longitude <= z.MaxLongitude
	default:
		center := GeoPoint{Latitude: z.CenterLatitude, Longitude: z.CenterLongitude}
		return z.RadiusMeters > 0 && center.MetersTo(p) <= z.RadiusMeters
	}
}

// TransitionKind distinguishes synthesized zone transitions.
type TransitionKind int

const (
	TransitionDepart TransitionKind = iota
	TransitionArrive
)

// Transition is a synthesized, non-persisted arrive/depart record. The
// timestamps are offset from the triggering event (depart at T-2, arrive at
// T-1) so that, if ever materialized as events, depart sorts strictly before
// arrive which sorts strictly before the trigger.
type Transition struct {
	Timestamp int64
	Kind      TransitionKind
	Zone      *Geozone
}

// StatusCode returns the wire status code a transition would carry if
// materialized as its own event.
func (t Transition) StatusCode() StatusCode {
	if t.Kind == TransitionArrive {
		return StatusGeofenceArrive
	}
	return StatusGeofenceDepart
}
