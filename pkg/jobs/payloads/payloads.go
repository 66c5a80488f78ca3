// Package payloads holds the typed data carried by each notification type.
package payloads

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/flightnotify/pkg/enums"
)

// Payload is the decoded data of a notification job.
type Payload interface {
	Type() enums.NotificationType
	// Fields flattens the payload into template tokens.
	Fields() map[string]string
	// Title is the default subject when no template is registered.
	Title() string
	// Summary is the default body when no template is registered.
	Summary() string
}

const dateTimeLayout = "Mon, 02 Jan 2006 15:04 MST"

// BookingSuccess reports a confirmed booking.
type BookingSuccess struct {
	BookingReference string          `json:"booking_reference"`
	PassengerName    string          `json:"passenger_name"`
	Origin           string          `json:"origin"`
	Destination      string          `json:"destination"`
	Airline          string          `json:"airline"`
	FlightNumber     string          `json:"flight_number"`
	DepartureAt      *time.Time      `json:"departure_at,omitempty"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	Currency         string          `json:"currency"`
}

func (BookingSuccess) Type() enums.NotificationType { return enums.NotificationTypeBookingSuccess }

func (p BookingSuccess) Fields() map[string]string {
	return map[string]string{
		"booking_reference": p.BookingReference,
		"passenger_name":    p.PassengerName,
		"origin":            p.Origin,
		"destination":       p.Destination,
		"airline":           p.Airline,
		"flight_number":     p.FlightNumber,
		"departure_at":      formatTime(p.DepartureAt),
		"total_price":       p.TotalPrice.StringFixed(2),
		"currency":          p.Currency,
	}
}

func (p BookingSuccess) Title() string {
	return fmt.Sprintf("Booking confirmed: %s to %s", p.Origin, p.Destination)
}

func (p BookingSuccess) Summary() string {
	return fmt.Sprintf("Your booking %s on %s %s is confirmed. Total paid %s %s.",
		p.BookingReference, p.Airline, p.FlightNumber, p.TotalPrice.StringFixed(2), p.Currency)
}

// BookingFailure reports a booking that could not be completed.
type BookingFailure struct {
	BookingReference string `json:"booking_reference"`
	PassengerName    string `json:"passenger_name"`
	Origin           string `json:"origin"`
	Destination      string `json:"destination"`
	Reason           string `json:"reason"`
}

func (BookingFailure) Type() enums.NotificationType { return enums.NotificationTypeBookingFailure }

func (p BookingFailure) Fields() map[string]string {
	return map[string]string{
		"booking_reference": p.BookingReference,
		"passenger_name":    p.PassengerName,
		"origin":            p.Origin,
		"destination":       p.Destination,
		"reason":            p.Reason,
	}
}

func (p BookingFailure) Title() string {
	return fmt.Sprintf("Booking failed: %s to %s", p.Origin, p.Destination)
}

func (p BookingFailure) Summary() string {
	if p.Reason == "" {
		return "We could not complete your booking. You have not been charged."
	}
	return fmt.Sprintf("We could not complete your booking: %s. You have not been charged.", p.Reason)
}

// BookingCanceled reports a canceled booking and any refund.
type BookingCanceled struct {
	BookingReference string          `json:"booking_reference"`
	PassengerName    string          `json:"passenger_name"`
	Origin           string          `json:"origin"`
	Destination      string          `json:"destination"`
	RefundAmount     decimal.Decimal `json:"refund_amount"`
	Currency         string          `json:"currency"`
	Reason           string          `json:"reason"`
}

func (BookingCanceled) Type() enums.NotificationType { return enums.NotificationTypeBookingCanceled }

func (p BookingCanceled) Fields() map[string]string {
	return map[string]string{
		"booking_reference": p.BookingReference,
		"passenger_name":    p.PassengerName,
		"origin":            p.Origin,
		"destination":       p.Destination,
		"refund_amount":     p.RefundAmount.StringFixed(2),
		"currency":          p.Currency,
		"reason":            p.Reason,
	}
}

func (p BookingCanceled) Title() string {
	return fmt.Sprintf("Booking %s canceled", p.BookingReference)
}

func (p BookingCanceled) Summary() string {
	if p.RefundAmount.IsPositive() {
		return fmt.Sprintf("Your booking %s was canceled. A refund of %s %s is on its way.",
			p.BookingReference, p.RefundAmount.StringFixed(2), p.Currency)
	}
	return fmt.Sprintf("Your booking %s was canceled.", p.BookingReference)
}

// PriceAlert reports a fare change on a watched route.
type PriceAlert struct {
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureDate string          `json:"departure_date"`
	OldPrice      decimal.Decimal `json:"old_price"`
	NewPrice      decimal.Decimal `json:"new_price"`
	Currency      string          `json:"currency"`
	DealURL       string          `json:"deal_url"`
}

func (PriceAlert) Type() enums.NotificationType { return enums.NotificationTypePriceAlert }

// Drop is the absolute price decrease; negative when the fare went up.
func (p PriceAlert) Drop() decimal.Decimal {
	return p.OldPrice.Sub(p.NewPrice)
}

// DropPercent is the decrease relative to the old fare, rounded to one decimal.
func (p PriceAlert) DropPercent() decimal.Decimal {
	if p.OldPrice.IsZero() {
		return decimal.Zero
	}
	return p.Drop().Div(p.OldPrice).Mul(decimal.NewFromInt(100)).Round(1)
}

func (p PriceAlert) Fields() map[string]string {
	return map[string]string{
		"origin":         p.Origin,
		"destination":    p.Destination,
		"departure_date": p.DepartureDate,
		"old_price":      p.OldPrice.StringFixed(2),
		"new_price":      p.NewPrice.StringFixed(2),
		"price_drop":     p.Drop().StringFixed(2),
		"drop_percent":   p.DropPercent().String(),
		"currency":       p.Currency,
		"deal_url":       p.DealURL,
	}
}

func (p PriceAlert) Title() string {
	return fmt.Sprintf("Price alert: %s to %s", p.Origin, p.Destination)
}

func (p PriceAlert) Summary() string {
	return fmt.Sprintf("Fares for %s to %s on %s changed from %s to %s %s.",
		p.Origin, p.Destination, p.DepartureDate, p.OldPrice.StringFixed(2), p.NewPrice.StringFixed(2), p.Currency)
}

// Reminder is a free-form nudge about an upcoming event.
type Reminder struct {
	Subject string     `json:"title"`
	Message string     `json:"message"`
	DueAt   *time.Time `json:"due_at,omitempty"`
	Link    string     `json:"link"`
}

func (Reminder) Type() enums.NotificationType { return enums.NotificationTypeReminder }

func (p Reminder) Fields() map[string]string {
	return map[string]string{
		"title":   p.Subject,
		"message": p.Message,
		"due_at":  formatTime(p.DueAt),
		"link":    p.Link,
	}
}

func (p Reminder) Title() string {
	if p.Subject == "" {
		return "Reminder"
	}
	return p.Subject
}

func (p Reminder) Summary() string { return p.Message }

// Generic carries data for types without a typed payload.
type Generic struct {
	NotificationType enums.NotificationType
	Values           map[string]any
}

func (g Generic) Type() enums.NotificationType { return g.NotificationType }

func (g Generic) Fields() map[string]string {
	out := make(map[string]string, len(g.Values))
	for k, v := range g.Values {
		out[k] = stringify(v)
	}
	return out
}

func (g Generic) Title() string {
	words := strings.Fields(strings.ReplaceAll(string(g.NotificationType), "_", " "))
	if len(words) == 0 {
		return "Notification"
	}
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ")
}

// Summary lists the payload as sorted key: value lines.
func (g Generic) Summary() string {
	fields := g.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %s", k, fields[k]))
	}
	return strings.Join(lines, "\n")
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeLayout)
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return decimal.NewFromFloat(val).String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		buf, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(buf)
	}
}
