// Package preferences decides whether and when a notification may be sent to
// a user. Users opt out per type and channel, and may declare a daily quiet
// window in their own timezone during which non-critical sends are deferred.
package preferences

import (
	"time"

	"github.com/angelmondragon/flightnotify/pkg/enums"
	"github.com/angelmondragon/flightnotify/pkg/types"
)

// ShouldSend reports whether the user's opt-outs allow the send. Critical
// types bypass opt-outs, and unset entries default to enabled.
func ShouldSend(prefs map[string]map[string]bool, notificationType enums.NotificationType, channel enums.Channel) bool {
	if notificationType.IsCritical() {
		return true
	}
	channels, ok := prefs[string(notificationType)]
	if !ok {
		return true
	}
	enabled, ok := channels[string(channel)]
	if !ok {
		return true
	}
	return enabled
}

// IsInQuietHours reports whether now falls inside the quiet window, evaluated
// at the user's local hour of day. A window whose start is after its end
// wraps past midnight.
func IsInQuietHours(quiet *types.QuietHours, timezone string, now time.Time) bool {
	if quiet == nil {
		return false
	}
	hour := now.In(LoadLocation(timezone)).Hour()
	if quiet.Start <= quiet.End {
		return quiet.Start <= hour && hour < quiet.End
	}
	return hour >= quiet.Start || hour < quiet.End
}

// NextAllowedSendTime is the next local end-of-window instant strictly after
// now, returned in UTC.
func NextAllowedSendTime(quiet *types.QuietHours, timezone string, now time.Time) time.Time {
	if quiet == nil {
		return now.UTC()
	}
	loc := LoadLocation(timezone)
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), quiet.End, 0, 0, 0, loc)
	if !next.After(now) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, quiet.End, 0, 0, 0, loc)
	}
	return next.UTC()
}

// LoadLocation resolves an IANA zone name, falling back to UTC for blank or
// unknown names.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Decision is the outcome of evaluating a job against a user's document.
type Decision int

const (
	// DecisionSend means the job may be dispatched now.
	DecisionSend Decision = iota
	// DecisionSkip means the user opted out; the job completes silently.
	DecisionSkip
	// DecisionDefer means the job must wait until the quiet window ends.
	DecisionDefer
)

// Evaluate combines the opt-out and quiet-hours checks. For DecisionDefer the
// returned time is when the job becomes deliverable.
func Evaluate(doc types.PreferenceDocument, notificationType enums.NotificationType, channel enums.Channel, now time.Time) (Decision, time.Time) {
	if !ShouldSend(doc.Preferences, notificationType, channel) {
		return DecisionSkip, time.Time{}
	}
	if notificationType.IsCritical() {
		return DecisionSend, time.Time{}
	}
	if IsInQuietHours(doc.QuietHours, doc.Timezone, now) {
		return DecisionDefer, NextAllowedSendTime(doc.QuietHours, doc.Timezone, now)
	}
	return DecisionSend, time.Time{}
}
