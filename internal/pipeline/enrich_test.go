package pipeline

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-track/ingestion/internal/domain"
	"fleet-track/ingestion/internal/geocode"
	"fleet-track/ingestion/internal/geozone"
	"fleet-track/ingestion/internal/observability"
)

func addressedZone(id string, clientID int64) *domain.Geozone {
	z := zone(id, clientID, 35.00, -120.00, 1000)
	z.Description = "Main Depot"
	z.StreetAddress = "1 Depot Rd"
	z.City = "Santa Maria"
	z.StateProvince = "CA"
	z.PostalCode = "93454"
	z.Country = "us"
	return z
}

func TestResolveAddressSkipsExistingAddress(t *testing.T) {
	gc := &fakeGeocoder{enabled: true, fast: true, addr: &geocode.Address{FullAddress: "x"}}
	p := New(Config{}, Deps{Store: &fakeStore{}, Geocoder: gc, Log: testLogger()})

	ev := testEvent(1000)
	ev.Address = "already resolved"
	res := p.resolveAddress(context.Background(), ev, false, false)
	assert.Equal(t, AddressUnavailable, res.Outcome)
	assert.Zero(t, gc.calls)
	assert.Equal(t, "already resolved", ev.Address)
}

func TestResolveAddressForceOverwrites(t *testing.T) {
	gc := &fakeGeocoder{enabled: true, fast: true, addr: &geocode.Address{FullAddress: "new address"}}
	p := New(Config{}, Deps{Store: &fakeStore{}, Geocoder: gc, Log: testLogger()})

	ev := testEvent(1000)
	ev.Address = "stale"
	res := p.resolveAddress(context.Background(), ev, false, true)
	assert.Equal(t, AddressResolved, res.Outcome)
	assert.Equal(t, "new address", ev.Address)
}

func TestResolveAddressNoFix(t *testing.T) {
	p := New(Config{}, Deps{Store: &fakeStore{}, Log: testLogger()})
	ev := testEvent(1000)
	ev.Latitude, ev.Longitude = 0, 0
	res := p.resolveAddress(context.Background(), ev, false, false)
	assert.Equal(t, AddressUnavailable, res.Outcome)
}

func TestResolveAddressModeNoneShortCircuits(t *testing.T) {
	gc := &fakeGeocoder{enabled: true, fast: true, addr: &geocode.Address{FullAddress: "x"}}
	p := New(Config{}, Deps{
		Store:    &fakeStore{},
		Zones:    geozone.NewStatic([]*domain.Geozone{addressedZone("depot", 5)}),
		Geocoder: gc,
		Accounts: FixedAccountSettings{Mode: domain.GeocoderModeNone},
		Log:      testLogger(),
	})

	res := p.resolveAddress(context.Background(), testEvent(1000), false, false)
	assert.Equal(t, AddressUnavailable, res.Outcome)
	assert.Zero(t, gc.calls)
}

func TestResolveAddressClientReportedZone(t *testing.T) {
	z := addressedZone("depot", 5)
	p := New(Config{}, Deps{
		Store: &fakeStore{},
		Zones: geozone.NewStatic([]*domain.Geozone{z}),
		Log:   testLogger(),
	})

	ev := testEvent(1000)
	ev.StatusCode = domain.StatusGeofenceArrive
	ev.GeozoneIndex = 5
	// Position the event outside the zone: the device-reported index must
	// win over the point lookup.
	ev.Latitude, ev.Longitude = 36.0, -121.0

	res := p.resolveAddress(context.Background(), ev, false, false)
	assert.Equal(t, AddressResolved, res.Outcome)
	assert.Equal(t, "depot", ev.GeozoneID)
	assert.Equal(t, "Main Depot", ev.Address)
	assert.Equal(t, "Santa Maria", ev.City)
}

func TestResolveAddressCatalogueZoneBackfillsIndex(t *testing.T) {
	z := addressedZone("depot", 5)
	z.ClientUpload = true
	p := New(Config{}, Deps{
		Store: &fakeStore{},
		Zones: geozone.NewStatic([]*domain.Geozone{z}),
		Log:   testLogger(),
	})

	ev := testEvent(1000)
	res := p.resolveAddress(context.Background(), ev, false, false)
	assert.Equal(t, AddressResolved, res.Outcome)
	assert.Equal(t, int64(5), ev.GeozoneIndex)
	assert.Contains(t, res.Fields, domain.EventFieldGeozoneIndex)
}

func TestResolveAddressZoneWithoutReverseGeocodeFallsThrough(t *testing.T) {
	z := addressedZone("depot", 5)
	z.ReverseGeocode = false
	gc := &fakeGeocoder{enabled: true, fast: true, addr: &geocode.Address{FullAddress: "provider result"}}
	p := New(Config{}, Deps{
		Store:    &fakeStore{},
		Zones:    geozone.NewStatic([]*domain.Geozone{z}),
		Geocoder: gc,
		Log:      testLogger(),
	})

	ev := testEvent(1000)
	res := p.resolveAddress(context.Background(), ev, false, false)
	assert.Equal(t, AddressResolved, res.Outcome)
	assert.Equal(t, "provider result", ev.Address)
	assert.Equal(t, 1, gc.calls)
}

func TestResolveAddressPartialModeGatesLowPriority(t *testing.T) {
	gc := &fakeGeocoder{enabled: true, fast: true, addr: &geocode.Address{FullAddress: "x"}}
	p := New(Config{}, Deps{
		Store:    &fakeStore{},
		Geocoder: gc,
		Accounts: FixedAccountSettings{Mode: domain.GeocoderModePartial},
		Log:      testLogger(),
	})

	ev := testEvent(1000) // StatusLocation, not high priority
	res := p.resolveAddress(context.Background(), ev, false, false)
	assert.Equal(t, AddressUnavailable, res.Outcome)
	assert.Zero(t, gc.calls)

	ev = testEvent(1000)
	ev.StatusCode = domain.StatusPanicOn
	res = p.resolveAddress(context.Background(), ev, false, false)
	assert.Equal(t, AddressResolved, res.Outcome)
	assert.Equal(t, 1, gc.calls)
}

func TestResolveAddressDefersSlowProvider(t *testing.T) {
	gc := &fakeGeocoder{enabled: true, fast: false, addr: &geocode.Address{FullAddress: "x"}}
	p := New(Config{}, Deps{Store: &fakeStore{}, Geocoder: gc, Log: testLogger()})

	res := p.resolveAddress(context.Background(), testEvent(1000), true, false)
	assert.Equal(t, AddressDeferred, res.Outcome)
	assert.Zero(t, gc.calls)

	res = p.resolveAddress(context.Background(), testEvent(1000), false, false)
	assert.Equal(t, AddressResolved, res.Outcome)
	assert.Equal(t, 1, gc.calls)
}

func TestResolveAddressEmptyProviderResult(t *testing.T) {
	gc := &fakeGeocoder{enabled: true, fast: true}
	p := New(Config{}, Deps{Store: &fakeStore{}, Geocoder: gc, Log: testLogger()})

	res := p.resolveAddress(context.Background(), testEvent(1000), false, false)
	assert.Equal(t, AddressUnavailable, res.Outcome)
}

func TestProcessJobCellTowerUpdatesExactFields(t *testing.T) {
	st := &fakeStore{}
	loc := &fakeCellLocator{pt: &domain.GeoPoint{Latitude: 35.2, Longitude: -120.2}}
	p := New(Config{}, Deps{Store: st, CellLocator: loc, Log: testLogger()})

	ev := testEvent(1000)
	ev.Latitude, ev.Longitude = 0, 0
	ev.MCC, ev.MNC, ev.CellID, ev.LAC = 310, 260, 1234, 56

	p.processJob(context.Background(), enrichJob{ev: ev, mask: domain.EnrichCellTower})

	assert.Equal(t, 35.2, ev.CellLatitude)
	assert.Equal(t, -120.2, ev.CellLongitude)
	require.Len(t, st.eventWrites, 1)
	assert.ElementsMatch(t, []string{
		domain.EventFieldCellLatitude,
		domain.EventFieldCellLongitude,
	}, st.eventWrites[0])
}

func TestProcessJobNoResultsNoUpdate(t *testing.T) {
	st := &fakeStore{}
	p := New(Config{}, Deps{Store: st, Log: testLogger()})

	failedBefore := testutil.ToFloat64(observability.EnrichFailed)
	noResultBefore := testutil.ToFloat64(observability.EnrichNoResult)

	ev := testEvent(1000)
	ev.Latitude, ev.Longitude = 0, 0
	p.processJob(context.Background(), enrichJob{ev: ev, mask: domain.EnrichAddress})

	assert.Empty(t, st.eventWrites)
	// Resolving nothing is a no-result, not a failure.
	assert.Equal(t, failedBefore, testutil.ToFloat64(observability.EnrichFailed))
	assert.Equal(t, noResultBefore+1, testutil.ToFloat64(observability.EnrichNoResult))
}

func TestProcessJobUpdateFailureCounted(t *testing.T) {
	st := &fakeStore{updateEventErr: assert.AnError}
	loc := &fakeCellLocator{pt: &domain.GeoPoint{Latitude: 35.2, Longitude: -120.2}}
	p := New(Config{}, Deps{Store: st, CellLocator: loc, Log: testLogger()})

	failedBefore := testutil.ToFloat64(observability.EnrichFailed)

	ev := testEvent(1000)
	ev.Latitude, ev.Longitude = 0, 0
	ev.MCC, ev.MNC, ev.CellID, ev.LAC = 310, 260, 1234, 56
	p.processJob(context.Background(), enrichJob{ev: ev, mask: domain.EnrichCellTower})

	assert.Equal(t, failedBefore+1, testutil.ToFloat64(observability.EnrichFailed))
}

func TestProcessJobDeferredAddress(t *testing.T) {
	st := &fakeStore{}
	gc := &fakeGeocoder{enabled: true, fast: false, addr: &geocode.Address{
		FullAddress: "123 Main St, Santa Maria, CA",
		City:        "Santa Maria",
	}}
	p := New(Config{}, Deps{Store: st, Geocoder: gc, Log: testLogger()})

	ev := testEvent(1000)
	p.processJob(context.Background(), enrichJob{ev: ev, mask: domain.EnrichAddress})

	assert.Equal(t, "123 Main St, Santa Maria, CA", ev.Address)
	require.Len(t, st.eventWrites, 1)
	assert.Contains(t, st.eventWrites[0], domain.EventFieldAddress)
	assert.Contains(t, st.eventWrites[0], domain.EventFieldCity)
}
