package rules

import (
	"fmt"
	"strconv"
	"strings"

	"fleet-track/ingestion/internal/domain"
)

// Selectors are single threshold comparisons of the form "field op value",
// e.g. "speed>120", "fuel<0.1", "status==0xF210". Supported operators:
// == != >= <= > <.

type evaluator func(ev *domain.Event, asset *domain.Asset) bool

var selectorOps = []string{">=", "<=", "==", "!=", ">", "<"}

func parseSelector(s string) (evaluator, error) {
	s = strings.TrimSpace(s)
	for _, op := range selectorOps {
		idx := strings.Index(s, op)
		if idx < 0 {
			continue
		}
		field := strings.TrimSpace(s[:idx])
		valStr := strings.TrimSpace(s[idx+len(op):])

		val, err := parseSelectorValue(valStr)
		if err != nil {
			return nil, fmt.Errorf("selector value %q: %w", valStr, err)
		}
		get, err := selectorField(field)
		if err != nil {
			return nil, err
		}
		cmp := op
		return func(ev *domain.Event, asset *domain.Asset) bool {
			return compare(get(ev, asset), cmp, val)
		}, nil
	}
	return nil, fmt.Errorf("selector %q: no comparison operator", s)
}

func parseSelectorValue(s string) (float64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseUint(s[2:], 16, 32)
		return float64(n), err
	}
	return strconv.ParseFloat(s, 64)
}

func selectorField(name string) (func(ev *domain.Event, asset *domain.Asset) float64, error) {
	switch name {
	case "speed":
		return func(ev *domain.Event, _ *domain.Asset) float64 { return ev.SpeedKPH }, nil
	case "heading":
		return func(ev *domain.Event, _ *domain.Asset) float64 { return ev.Heading }, nil
	case "odometer":
		return func(ev *domain.Event, _ *domain.Asset) float64 { return ev.OdometerKM }, nil
	case "battery":
		return func(ev *domain.Event, _ *domain.Asset) float64 { return ev.BatteryLevel }, nil
	case "fuel":
		return func(ev *domain.Event, _ *domain.Asset) float64 { return ev.FuelLevel }, nil
	case "status":
		return func(ev *domain.Event, _ *domain.Asset) float64 { return float64(ev.StatusCode) }, nil
	case "input":
		return func(ev *domain.Event, _ *domain.Asset) float64 { return float64(ev.InputMask) }, nil
	case "lastBattery":
		return func(_ *domain.Event, a *domain.Asset) float64 { return a.LastBatteryLevel }, nil
	case "lastFuel":
		return func(_ *domain.Event, a *domain.Asset) float64 { return a.LastFuelLevel }, nil
	}
	return nil, fmt.Errorf("selector field %q unknown", name)
}

func compare(lhs float64, op string, rhs float64) bool {
	switch op {
	case ">=":
		return lhs >= rhs
	case "<=":
		return lhs <= rhs
	case "==":
		return lhs == rhs
	case "!=":
		return lhs != rhs
	case ">":
		return lhs > rhs
	case "<":
		return lhs < rhs
	}
	return false
}
