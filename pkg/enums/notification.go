package enums

import (
	"fmt"
	"strings"
)

// NotificationType identifies the business event a notification reports.
// Unknown types are still deliverable through the generic payload.
type NotificationType string

const (
	NotificationTypeBookingSuccess  NotificationType = "booking_success"
	NotificationTypeBookingFailure  NotificationType = "booking_failure"
	NotificationTypeBookingCanceled NotificationType = "booking_canceled"
	NotificationTypePriceAlert      NotificationType = "price_alert"
	NotificationTypeReminder        NotificationType = "reminder"
)

var knownNotificationTypes = []NotificationType{
	NotificationTypeBookingSuccess,
	NotificationTypeBookingFailure,
	NotificationTypeBookingCanceled,
	NotificationTypePriceAlert,
	NotificationTypeReminder,
}

// criticalNotificationTypes bypass preferences and quiet hours.
var criticalNotificationTypes = map[NotificationType]struct{}{
	NotificationTypeBookingSuccess: {},
	NotificationTypeBookingFailure: {},
}

// IsKnown reports whether the type has a typed payload.
func (n NotificationType) IsKnown() bool {
	for _, candidate := range knownNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// IsCritical reports whether the type must always be delivered immediately.
func (n NotificationType) IsCritical() bool {
	_, ok := criticalNotificationTypes[n]
	return ok
}

// ParseNotificationType normalizes raw strings. Any non-empty identifier is
// accepted so producers can ship new types before consumers learn them.
func ParseNotificationType(value string) (NotificationType, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return "", fmt.Errorf("notification type is required")
	}
	return NotificationType(trimmed), nil
}
