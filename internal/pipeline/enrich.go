package pipeline

import (
	"context"

	"fleet-track/ingestion/internal/domain"
	"fleet-track/ingestion/internal/geocode"
)

// AddressOutcome classifies an address-resolution attempt. Deferred means a
// slow provider was skipped under fast-only semantics and the lookup should
// be queued to the worker pool; it is a normal branch, not an error.
type AddressOutcome int

const (
	AddressUnavailable AddressOutcome = iota
	AddressResolved
	AddressDeferred
)

// AddressResolution reports an attempt's outcome and, when resolved, the
// event fields that were filled in.
type AddressResolution struct {
	Outcome AddressOutcome
	Fields  []string
}

// resolveAddress applies the address-source precedence chain, first match
// wins: client-reported geofence zone, static zone catalogue, then the
// external provider gated by the account geocoder mode. An event that
// already has an address is left unchanged unless force is set.
func (p *Pipeline) resolveAddress(ctx context.Context, ev *domain.Event, fastOnly, force bool) AddressResolution {
	if !force && ev.HasAddress() {
		return AddressResolution{Outcome: AddressUnavailable}
	}
	if !ev.HasValidFix() {
		return AddressResolution{Outcome: AddressUnavailable}
	}

	mode := p.accounts.GeocoderMode(ev.AccountID)
	if mode == domain.GeocoderModeNone {
		return AddressResolution{Outcome: AddressUnavailable}
	}

	// Geofence transitions reference the zone the device says it crossed;
	// trust it over any point lookup.
	if ev.StatusCode == domain.StatusGeofenceArrive || ev.StatusCode == domain.StatusGeofenceDepart {
		if ev.GeozoneIndex > 0 {
			if zs := p.zones.ZonesByClientID(ctx, ev.AccountID, ev.GeozoneIndex); len(zs) > 0 {
				return AddressResolution{Outcome: AddressResolved, Fields: applyZoneAddress(ev, zs[0])}
			}
		}
	}

	if z := p.zones.ZoneContaining(ctx, ev.AccountID, ev.GeoPoint()); z != nil && z.ReverseGeocode {
		fields := applyZoneAddress(ev, z)
		if z.ClientUpload && ev.GeozoneIndex == 0 {
			ev.GeozoneIndex = z.ClientID
			fields = append(fields, domain.EventFieldGeozoneIndex)
		}
		return AddressResolution{Outcome: AddressResolved, Fields: fields}
	}

	if mode == domain.GeocoderModePartial && !ev.StatusCode.HighPriority() {
		return AddressResolution{Outcome: AddressUnavailable}
	}

	if !p.geocoder.IsEnabled() {
		return AddressResolution{Outcome: AddressUnavailable}
	}
	if fastOnly && !p.geocoder.IsFastOperation() {
		return AddressResolution{Outcome: AddressDeferred}
	}

	addr, err := p.geocoder.Resolve(ctx, ev.GeoPoint(), p.cfg.GeocoderLocale)
	if err != nil {
		p.log.Warn("reverse geocode failed",
			"account", ev.AccountID, "asset", ev.AssetID, "error", err)
		return AddressResolution{Outcome: AddressUnavailable}
	}
	if addr == nil {
		return AddressResolution{Outcome: AddressUnavailable}
	}
	fields := applyProviderAddress(ev, addr)
	if len(fields) == 0 {
		return AddressResolution{Outcome: AddressUnavailable}
	}
	return AddressResolution{Outcome: AddressResolved, Fields: fields}
}

func applyZoneAddress(ev *domain.Event, z *domain.Geozone) []string {
	ev.GeozoneID = z.ZoneID
	ev.Address = z.Description
	ev.StreetAddress = z.StreetAddress
	ev.City = z.City
	ev.StateProvince = z.StateProvince
	ev.PostalCode = z.PostalCode
	ev.Country = z.Country
	ev.Subdivision = z.Subdivision
	return []string{
		domain.EventFieldGeozoneID,
		domain.EventFieldAddress,
		domain.EventFieldStreetAddress,
		domain.EventFieldCity,
		domain.EventFieldStateProvince,
		domain.EventFieldPostalCode,
		domain.EventFieldCountry,
		domain.EventFieldSubdivision,
	}
}

func applyProviderAddress(ev *domain.Event, addr *geocode.Address) []string {
	var fields []string
	if addr.FullAddress != "" {
		ev.Address = addr.FullAddress
		fields = append(fields, domain.EventFieldAddress)
	}
	if addr.StreetAddress != "" {
		ev.StreetAddress = addr.StreetAddress
		fields = append(fields, domain.EventFieldStreetAddress)
	}
	if addr.City != "" {
		ev.City = addr.City
		fields = append(fields, domain.EventFieldCity)
	}
	if addr.StateProvince != "" {
		ev.StateProvince = addr.StateProvince
		fields = append(fields, domain.EventFieldStateProvince)
	}
	if addr.PostalCode != "" {
		ev.PostalCode = addr.PostalCode
		fields = append(fields, domain.EventFieldPostalCode)
	}
	if addr.Country != "" {
		ev.Country = addr.Country
		fields = append(fields, domain.EventFieldCountry)
	}
	if addr.Subdivision != "" {
		ev.Subdivision = addr.Subdivision
		fields = append(fields, domain.EventFieldSubdivision)
	}
	if addr.SpeedLimitKPH > 0 {
		ev.SpeedLimitKPH = addr.SpeedLimitKPH
		fields = append(fields, domain.EventFieldSpeedLimitKPH)
	}
	return fields
}
