package pipeline

import (
	"time"

	"fleet-track/ingestion/internal/domain"
)

// ValidationResult classifies a raw event before any state mutation.
type ValidationResult int

const (
	EventAccepted ValidationResult = iota
	EventRejected
	EventHeartbeat
)

// Rejection reasons, used as metric labels.
const (
	ReasonInvalidTimestamp = "INVALID_TIMESTAMP"
	ReasonFutureTimestamp  = "FUTURE_TIMESTAMP"
)

// Timestamps above this are almost certainly epoch milliseconds sent where
// epoch seconds were expected (5e9 seconds is year 2128).
const maxEpochSeconds = 5_000_000_000

// Validator rejects or normalizes malformed and out-of-policy events.
// Validation failures are results, not errors: the ingestion feed keeps
// flowing after a bad record.
type Validator struct {
	action     domain.FutureDateAction
	maxSkewSec int64
	now        func() int64
}

func NewValidator(action domain.FutureDateAction, maxSkewSec int64) *Validator {
	return &Validator{
		action:     action,
		maxSkewSec: maxSkewSec,
		now:        func() int64 { return time.Now().Unix() },
	}
}

// Validate checks ev's timestamp and status code. Under the truncate policy
// a future timestamp is rewritten to now in place. The reason string is
// non-empty only for EventRejected.
func (v *Validator) Validate(ev *domain.Event) (ValidationResult, string) {
	ts := ev.Timestamp
	if ts <= 0 || ts > maxEpochSeconds {
		return EventRejected, ReasonInvalidTimestamp
	}

	if v.action != domain.FutureDateDisabled && v.maxSkewSec > 0 {
		now := v.now()
		if ts > now+v.maxSkewSec {
			switch v.action {
			case domain.FutureDateIgnore:
				return EventRejected, ReasonFutureTimestamp
			case domain.FutureDateTruncate:
				ev.Timestamp = now
			}
		}
	}

	if ev.StatusCode == domain.StatusNone {
		return EventHeartbeat, ""
	}
	return EventAccepted, ""
}
