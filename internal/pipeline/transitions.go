package pipeline

import (
	"context"

	"fleet-track/ingestion/internal/domain"
)

// detectTransitions compares the asset's previous location with the event's
// location and synthesizes up to two zone transitions. Depart is timestamped
// at T-2 and arrive at T-1 so that materialized transitions sort strictly
// before the triggering event, depart first.
func (p *Pipeline) detectTransitions(ctx context.Context, asset *domain.Asset, ev *domain.Event) []domain.Transition {
	if !ev.HasValidFix() {
		return nil
	}

	var prevZone *domain.Geozone
	if prev := asset.LastValidLocation(); prev.Valid() {
		prevZone = p.zones.ZoneContaining(ctx, asset.AccountID, prev)
	}
	thisZone := p.zones.ZoneContaining(ctx, asset.AccountID, ev.GeoPoint())

	switch {
	case prevZone != nil && thisZone == nil:
		if prevZone.DepartureZone {
			return []domain.Transition{
				{Timestamp: ev.Timestamp - 2, Kind: domain.TransitionDepart, Zone: prevZone},
			}
		}

	case prevZone == nil && thisZone != nil:
		if thisZone.ArrivalZone {
			return []domain.Transition{
				{Timestamp: ev.Timestamp - 1, Kind: domain.TransitionArrive, Zone: thisZone},
			}
		}

	case prevZone != nil && thisZone != nil && prevZone.ZoneID != thisZone.ZoneID:
		var out []domain.Transition
		if prevZone.DepartureZone {
			out = append(out, domain.Transition{
				Timestamp: ev.Timestamp - 2, Kind: domain.TransitionDepart, Zone: prevZone,
			})
		}
		if thisZone.ArrivalZone {
			out = append(out, domain.Transition{
				Timestamp: ev.Timestamp - 1, Kind: domain.TransitionArrive, Zone: thisZone,
			})
		}
		return out
	}

	return nil
}

// applyCorridorState applies corridor activation/deactivation side effects:
// departing a corridor-origin zone activates that corridor, arriving at a
// corridor-terminus zone deactivates it if currently active. Client-reported
// geofence events carry the same semantics as synthesized transitions.
// Mutations are in-memory only; the changed fields join the eventual asset
// write.
func (p *Pipeline) applyCorridorState(ctx context.Context, asset *domain.Asset, ev *domain.Event, transitions []domain.Transition) []string {
	changed := false

	apply := func(kind domain.TransitionKind, zone *domain.Geozone) {
		switch kind {
		case domain.TransitionDepart:
			if zone.CorridorStart && zone.CorridorID != "" && asset.ActiveCorridor != zone.CorridorID {
				asset.ActiveCorridor = zone.CorridorID
				changed = true
			}
		case domain.TransitionArrive:
			if zone.CorridorEnd && asset.HasActiveCorridor() && asset.ActiveCorridor == zone.CorridorID {
				asset.ActiveCorridor = ""
				changed = true
			}
		}
	}

	for _, t := range transitions {
		apply(t.Kind, t.Zone)
	}

	switch ev.StatusCode {
	case domain.StatusGeofenceArrive:
		if z := p.zoneForEvent(ctx, ev); z != nil {
			apply(domain.TransitionArrive, z)
		}
	case domain.StatusGeofenceDepart:
		if z := p.zoneForEvent(ctx, ev); z != nil {
			apply(domain.TransitionDepart, z)
		}
	}

	if !changed {
		return nil
	}
	return []string{domain.AssetFieldActiveCorridor}
}

func (p *Pipeline) zoneForEvent(ctx context.Context, ev *domain.Event) *domain.Geozone {
	if ev.GeozoneIndex > 0 {
		if zs := p.zones.ZonesByClientID(ctx, ev.AccountID, ev.GeozoneIndex); len(zs) > 0 {
			return zs[0]
		}
	}
	if !ev.HasValidFix() {
		return nil
	}
	return p.zones.ZoneContaining(ctx, ev.AccountID, ev.GeoPoint())
}
