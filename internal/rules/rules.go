// Package rules evaluates notification rules against ingested events and
// reports the actions the pipeline should apply to asset state.
package rules

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fleet-track/ingestion/internal/domain"
	"fleet-track/ingestion/internal/observability"
)

// ActionMask is the bitset a rule evaluation returns to the pipeline.
type ActionMask int

const (
	ActionNone     ActionMask = 0x0000
	ActionSaveLast ActionMask = 0x0001
	ActionNotify   ActionMask = 0x0002
)

// Factory is the rule-engine contract consumed by the pipeline. A missing
// engine is a normal, silent no-op and never an error.
type Factory interface {
	ExecuteSelector(ctx context.Context, selector string, ev *domain.Event, asset *domain.Asset) ActionMask
	ExecuteRules(ctx context.Context, ev *domain.Event, asset *domain.Asset) ActionMask
	CheckSelectorSyntax(selector string) bool
}

// Nop is the null rule engine.
type Nop struct{}

func (Nop) ExecuteSelector(context.Context, string, *domain.Event, *domain.Asset) ActionMask {
	return ActionNone
}
func (Nop) ExecuteRules(context.Context, *domain.Event, *domain.Asset) ActionMask {
	return ActionNone
}
func (Nop) CheckSelectorSyntax(string) bool { return true }

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

type Rule struct {
	Name      string
	Severity  Severity
	Evaluator func(ev *domain.Event, asset *domain.Asset) bool
	// Value extracts the reading that tripped the rule, for the
	// notification record.
	Value func(ev *domain.Event) float64
}

var DefaultRules = []Rule{
	{
		Name:     "SPEEDING",
		Severity: SeverityWarning,
		Evaluator: func(ev *domain.Event, _ *domain.Asset) bool {
			return ev.SpeedKPH > 120.0
		},
		Value: func(ev *domain.Event) float64 { return ev.SpeedKPH },
	},
	{
		Name:     "LOW_FUEL",
		Severity: SeverityWarning,
		Evaluator: func(ev *domain.Event, _ *domain.Asset) bool {
			return ev.FuelLevel > 0 && ev.FuelLevel < 0.10
		},
		Value: func(ev *domain.Event) float64 { return ev.FuelLevel },
	},
	{
		Name:     "LOW_BATTERY",
		Severity: SeverityCritical,
		Evaluator: func(ev *domain.Event, _ *domain.Asset) bool {
			return ev.BatteryLevel > 0 && ev.BatteryLevel < 0.20
		},
		Value: func(ev *domain.Event) float64 { return ev.BatteryLevel },
	},
}

// Notification is the record emitted when a rule fires.
type Notification struct {
	ID          string
	AccountID   string
	AssetID     string
	Rule        string
	Severity    Severity
	Value       float64
	StatusCode  domain.StatusCode
	Timestamp   int64
	TriggeredAt time.Time
}

// Deduper suppresses repeat notifications for the same asset/rule pair
// within a configured window.
type Deduper interface {
	CheckNotifyDedup(ctx context.Context, accountID, assetID, rule string) (bool, error)
	SetNotifyDedup(ctx context.Context, accountID, assetID, rule string) error
}

// NotificationSink records and publishes a fired notification.
type NotificationSink interface {
	RecordNotification(ctx context.Context, n *Notification) error
}

// MultiSink fans a notification out to several sinks; the first error wins
// but every sink is attempted.
type MultiSink []NotificationSink

func (m MultiSink) RecordNotification(ctx context.Context, n *Notification) error {
	var first error
	for _, s := range m {
		if err := s.RecordNotification(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Engine is the built-in threshold rule engine. Both dedup and sink are
// optional; a nil dedup fires every time, a nil sink only returns the mask.
type Engine struct {
	rules []Rule
	dedup Deduper
	sink  NotificationSink
	log   *slog.Logger
}

func NewEngine(defs []Rule, dedup Deduper, sink NotificationSink, log *slog.Logger) *Engine {
	if defs == nil {
		defs = DefaultRules
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{rules: defs, dedup: dedup, sink: sink, log: log}
}

func (e *Engine) ExecuteSelector(ctx context.Context, selector string, ev *domain.Event, asset *domain.Asset) ActionMask {
	if selector == "" {
		return ActionNone
	}
	eval, err := parseSelector(selector)
	if err != nil {
		e.log.Warn("bad notify selector", "selector", selector, "error", err)
		return ActionNone
	}
	if !eval(ev, asset) {
		return ActionNone
	}
	return e.fire(ctx, Rule{
		Name:     "SELECTOR",
		Severity: SeverityWarning,
		Value:    func(ev *domain.Event) float64 { return ev.SpeedKPH },
	}, ev, asset)
}

func (e *Engine) ExecuteRules(ctx context.Context, ev *domain.Event, asset *domain.Asset) ActionMask {
	mask := ActionNone
	for _, r := range e.rules {
		if !r.Evaluator(ev, asset) {
			continue
		}
		mask |= e.fire(ctx, r, ev, asset)
	}
	return mask
}

func (e *Engine) CheckSelectorSyntax(selector string) bool {
	if selector == "" {
		return true
	}
	_, err := parseSelector(selector)
	return err == nil
}

func (e *Engine) fire(ctx context.Context, r Rule, ev *domain.Event, asset *domain.Asset) ActionMask {
	if e.dedup != nil {
		dup, err := e.dedup.CheckNotifyDedup(ctx, asset.AccountID, asset.AssetID, r.Name)
		if err != nil {
			e.log.Warn("notify dedup check failed", "asset", asset.AssetID, "rule", r.Name, "error", err)
		} else if dup {
			return ActionNone
		}
	}

	observability.RuleTriggers.WithLabelValues(r.Name).Inc()

	if e.sink != nil {
		n := &Notification{
			ID:          uuid.NewString(),
			AccountID:   asset.AccountID,
			AssetID:     asset.AssetID,
			Rule:        r.Name,
			Severity:    r.Severity,
			StatusCode:  ev.StatusCode,
			Timestamp:   ev.Timestamp,
			TriggeredAt: time.Now(),
		}
		if r.Value != nil {
			n.Value = r.Value(ev)
		}
		if err := e.sink.RecordNotification(ctx, n); err != nil {
			e.log.Warn("notification record failed", "asset", asset.AssetID, "rule", r.Name, "error", err)
		}
	}

	if e.dedup != nil {
		if err := e.dedup.SetNotifyDedup(ctx, asset.AccountID, asset.AssetID, r.Name); err != nil {
			e.log.Warn("notify dedup set failed", "asset", asset.AssetID, "rule", r.Name, "error", err)
		}
	}

	return ActionSaveLast | ActionNotify
}
