// Package pipeline implements the event ingestion and state-enrichment
// pipeline: validation, derived-state update, geozone transition detection,
// enrichment dispatch and rule evaluation, composed behind a single
// Ingest entry point.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"fleet-track/ingestion/internal/domain"
	"fleet-track/ingestion/internal/geocode"
	"fleet-track/ingestion/internal/geozone"
	"fleet-track/ingestion/internal/observability"
	"fleet-track/ingestion/internal/rules"
)

// EventStore is the persistence contract the pipeline depends on. Insert
// failures propagate to the caller; partial updates target disjoint field
// subsets so foreground and background writers never collide.
type EventStore interface {
	InsertEvent(ctx context.Context, ev *domain.Event) error
	UpdateEventFields(ctx context.Context, ev *domain.Event, fields []string) error
	UpdateAssetFields(ctx context.Context, asset *domain.Asset, fields []string) error
	PreviousEvent(ctx context.Context, accountID, assetID string, before int64, codes []domain.StatusCode, validGPSOnly bool) (*domain.Event, error)
}

// StateMirror pushes the updated asset aggregate to the live-state cache
// after each successful ingest. Failures are logged and swallowed.
type StateMirror interface {
	MirrorAssetState(ctx context.Context, asset *domain.Asset, ev *domain.Event) error
}

// AccountSettings exposes the per-account geocoder gating mode.
type AccountSettings interface {
	GeocoderMode(accountID string) domain.GeocoderMode
}

// FixedAccountSettings applies one geocoder mode to every account.
type FixedAccountSettings struct {
	Mode domain.GeocoderMode
}

func (s FixedAccountSettings) GeocoderMode(string) domain.GeocoderMode { return s.Mode }

type nopMirror struct{}

func (nopMirror) MirrorAssetState(context.Context, *domain.Asset, *domain.Event) error { return nil }

// Config carries the pipeline's tuning knobs.
type Config struct {
	FutureDateAction     domain.FutureDateAction
	FutureDateMaxSkewSec int64
	MaxOdometerKM        float64
	GeocoderLocale       string
	Workers              int
	QueueSize            int
}

// Deps are the pipeline's collaborators. Store is required; every other
// dependency may be nil and is replaced with a no-op implementation.
type Deps struct {
	Store       EventStore
	Mirror      StateMirror
	Zones       geozone.Catalogue
	Geocoder    geocode.ReverseGeocodeProvider
	CellLocator geocode.CellTowerLocator
	Rules       rules.Factory
	Accounts    AccountSettings
	Log         *slog.Logger
}

// Pipeline is the ingest orchestrator. Ingest runs synchronously on the
// calling goroutine; only deferred enrichment runs on the worker pool.
// Callers must not invoke Ingest concurrently for the same asset.
type Pipeline struct {
	cfg       Config
	store     EventStore
	mirror    StateMirror
	zones     geozone.Catalogue
	geocoder  geocode.ReverseGeocodeProvider
	cells     geocode.CellTowerLocator
	rules     rules.Factory
	accounts  AccountSettings
	log       *slog.Logger
	validator *Validator
	jobs      chan enrichJob
}

func New(cfg Config, deps Deps) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 30
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if deps.Mirror == nil {
		deps.Mirror = nopMirror{}
	}
	if deps.Zones == nil {
		deps.Zones = geozone.Nop{}
	}
	if deps.Geocoder == nil {
		deps.Geocoder = geocode.NopReverseGeocoder{}
	}
	if deps.CellLocator == nil {
		deps.CellLocator = geocode.NopCellLocator{}
	}
	if deps.Rules == nil {
		deps.Rules = rules.Nop{}
	}
	if deps.Accounts == nil {
		deps.Accounts = FixedAccountSettings{Mode: domain.GeocoderModeFull}
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		store:     deps.Store,
		mirror:    deps.Mirror,
		zones:     deps.Zones,
		geocoder:  deps.Geocoder,
		cells:     deps.CellLocator,
		rules:     deps.Rules,
		accounts:  deps.Accounts,
		log:       deps.Log,
		validator: NewValidator(cfg.FutureDateAction, cfg.FutureDateMaxSkewSec),
		jobs:      make(chan enrichJob, cfg.QueueSize),
	}
}

// Ingest validates ev, updates asset state, persists the event and
// dispatches enrichment and rule evaluation. It reports whether the event
// was durably accepted: false with a nil error for rejected input, false
// with an error only when the insert itself fails. The insert is the
// durability boundary; failures after it are logged and swallowed.
func (p *Pipeline) Ingest(ctx context.Context, asset *domain.Asset, ev *domain.Event) (bool, error) {
	observability.EventsReceived.Inc()

	result, reason := p.validator.Validate(ev)
	switch result {
	case EventRejected:
		observability.EventsRejected.WithLabelValues(reason).Inc()
		p.log.Warn("event rejected",
			"account", ev.AccountID, "asset", ev.AssetID,
			"timestamp", ev.Timestamp, "reason", reason)
		return false, nil
	case EventHeartbeat:
		observability.HeartbeatsConsumed.Inc()
		return true, nil
	}

	p.warmAssetState(ctx, asset, ev)

	// Inline fast enrichment pass; slow work is flagged for the pool.
	mask := domain.EnrichNone
	if !ev.HasValidFix() && ev.HasCellIdentifiers() {
		mask |= domain.EnrichCellTower
	}
	res := p.resolveAddress(ctx, ev, true, false)
	if res.Outcome == AddressDeferred {
		mask |= domain.EnrichAddress
	}

	// Transitions are detected against the pre-update location.
	transitions := p.detectTransitions(ctx, asset, ev)

	if err := p.store.InsertEvent(ctx, ev); err != nil {
		observability.PersistFailures.Inc()
		return false, fmt.Errorf("event insert failed: %w", err)
	}
	observability.EventsPersisted.Inc()

	if mask != domain.EnrichNone {
		p.submit(enrichJob{ev: ev, mask: mask})
	}

	changed := p.applyCorridorState(ctx, asset, ev, transitions)
	changed = append(changed, p.evaluateRules(ctx, asset, ev)...)
	changed = append(changed, UpdateDerivedState(asset, ev, p.cfg.MaxOdometerKM)...)

	if len(changed) > 0 {
		if err := p.store.UpdateAssetFields(ctx, asset, dedupFields(changed)); err != nil {
			p.log.Error("asset state update failed",
				"account", asset.AccountID, "asset", asset.AssetID, "error", err)
		}
	}
	if err := p.mirror.MirrorAssetState(ctx, asset, ev); err != nil {
		p.log.Warn("asset state mirror failed",
			"account", asset.AccountID, "asset", asset.AssetID, "error", err)
	}

	return true, nil
}

// warmAssetState back-fills a cold aggregate's last-known fields from the
// most recent persisted event with a valid fix.
func (p *Pipeline) warmAssetState(ctx context.Context, asset *domain.Asset, ev *domain.Event) {
	if asset.LastValidLocation().Valid() || asset.LastOdometerKM > 0 {
		return
	}
	prev, err := p.store.PreviousEvent(ctx, asset.AccountID, asset.AssetID, ev.Timestamp, nil, true)
	if err != nil {
		p.log.Warn("previous event lookup failed",
			"account", asset.AccountID, "asset", asset.AssetID, "error", err)
		return
	}
	if prev == nil {
		return
	}
	asset.LastValidLatitude = prev.Latitude
	asset.LastValidLongitude = prev.Longitude
	asset.LastGPSTimestamp = prev.Timestamp
	if prev.OdometerKM > 0 {
		asset.LastOdometerKM = prev.OdometerKM
	}
}

func (p *Pipeline) evaluateRules(ctx context.Context, asset *domain.Asset, ev *domain.Event) []string {
	if !asset.AllowNotify {
		return nil
	}
	mask := rules.ActionNone
	if asset.NotifySelector != "" {
		mask |= p.rules.ExecuteSelector(ctx, asset.NotifySelector, ev, asset)
	}
	mask |= p.rules.ExecuteRules(ctx, ev, asset)

	if mask&rules.ActionSaveLast == 0 {
		return nil
	}
	asset.LastNotifyTime = ev.Timestamp
	asset.LastNotifyCode = ev.StatusCode
	return []string{domain.AssetFieldLastNotifyTime, domain.AssetFieldLastNotifyCode}
}

func dedupFields(fields []string) []string {
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
