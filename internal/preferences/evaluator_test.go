package preferences

import (
	"testing"
	"time"

	"github.com/angelmondragon/flightnotify/pkg/enums"
	"github.com/angelmondragon/flightnotify/pkg/types"
)

func TestShouldSend(t *testing.T) {
	prefs := map[string]map[string]bool{
		"price_alert":     {"sms": false, "email": true},
		"booking_failure": {"sms": false},
	}

	cases := []struct {
		name    string
		typ     enums.NotificationType
		channel enums.Channel
		want    bool
	}{
		{"explicit opt out", enums.NotificationTypePriceAlert, enums.ChannelSMS, false},
		{"explicit opt in", enums.NotificationTypePriceAlert, enums.ChannelEmail, true},
		{"unset channel defaults on", enums.NotificationTypePriceAlert, enums.ChannelPush, true},
		{"unset type defaults on", enums.NotificationTypeReminder, enums.ChannelSMS, true},
		{"critical overrides opt out", enums.NotificationTypeBookingFailure, enums.ChannelSMS, true},
		{"unknown type defaults on", enums.NotificationType("loyalty_points"), enums.ChannelEmail, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldSend(prefs, tc.typ, tc.channel); got != tc.want {
				t.Fatalf("ShouldSend(%s, %s) = %v, want %v", tc.typ, tc.channel, got, tc.want)
			}
		})
	}

	if !ShouldSend(nil, enums.NotificationTypeReminder, enums.ChannelEmail) {
		t.Fatal("expected nil preferences to allow sends")
	}
}

func TestIsInQuietHoursOvernightWindow(t *testing.T) {
	quiet := &types.QuietHours{Start: 22, End: 6}
	day := func(hour int) time.Time { return time.Date(2026, 3, 1, hour, 30, 0, 0, time.UTC) }

	if !IsInQuietHours(quiet, "UTC", day(23)) {
		t.Fatal("expected 23:30 to be quiet")
	}
	if !IsInQuietHours(quiet, "UTC", day(2)) {
		t.Fatal("expected 02:30 to be quiet")
	}
	if IsInQuietHours(quiet, "UTC", day(12)) {
		t.Fatal("expected 12:30 to be allowed")
	}
	if IsInQuietHours(quiet, "UTC", day(6)) {
		t.Fatal("expected window end to be exclusive")
	}
}

func TestIsInQuietHoursSameDayWindow(t *testing.T) {
	quiet := &types.QuietHours{Start: 9, End: 17}
	if !IsInQuietHours(quiet, "UTC", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatal("expected window start to be inclusive")
	}
	if IsInQuietHours(quiet, "UTC", time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)) {
		t.Fatal("expected 17:00 to be allowed")
	}
	if IsInQuietHours(nil, "UTC", time.Now()) {
		t.Fatal("expected no window to never be quiet")
	}
}

func TestIsInQuietHoursUsesUserTimezone(t *testing.T) {
	quiet := &types.QuietHours{Start: 22, End: 6}
	// 04:00 UTC is 23:00 the previous evening in New York (EST).
	now := time.Date(2026, 1, 15, 4, 0, 0, 0, time.UTC)
	if !IsInQuietHours(quiet, "America/New_York", now) {
		t.Fatal("expected local 23:00 to be quiet")
	}
	// 12:00 UTC is 07:00 local.
	if IsInQuietHours(quiet, "America/New_York", now.Add(8*time.Hour)) {
		t.Fatal("expected local 07:00 to be allowed")
	}
}

func TestIsInQuietHoursUnknownZoneFallsBackToUTC(t *testing.T) {
	quiet := &types.QuietHours{Start: 22, End: 6}
	if !IsInQuietHours(quiet, "Mars/Olympus_Mons", time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)) {
		t.Fatal("expected UTC evaluation for unknown zone")
	}
}

func TestNextAllowedSendTime(t *testing.T) {
	quiet := &types.QuietHours{Start: 22, End: 7}

	lateEvening := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	if got, want := NextAllowedSendTime(quiet, "UTC", lateEvening), time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("from 23:00 got %v want %v", got, want)
	}

	earlyMorning := time.Date(2026, 3, 1, 5, 0, 0, 0, time.UTC)
	if got, want := NextAllowedSendTime(quiet, "UTC", earlyMorning), time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("from 05:00 got %v want %v", got, want)
	}

	exactlyEnd := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	if got, want := NextAllowedSendTime(quiet, "UTC", exactlyEnd), time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("from 07:00 got %v want %v", got, want)
	}
}

func TestNextAllowedSendTimeInZone(t *testing.T) {
	quiet := &types.QuietHours{Start: 22, End: 7}
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2026, 3, 1, 23, 0, 0, 0, loc)
	got := NextAllowedSendTime(quiet, "Asia/Tokyo", now)
	want := time.Date(2026, 3, 2, 7, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC result, got %v", got.Location())
	}
}

func TestEvaluate(t *testing.T) {
	doc := types.PreferenceDocument{
		Preferences: map[string]map[string]bool{"price_alert": {"sms": false}},
		QuietHours:  &types.QuietHours{Start: 22, End: 6},
		Timezone:    "UTC",
	}
	night := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	noon := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if d, _ := Evaluate(doc, enums.NotificationTypePriceAlert, enums.ChannelSMS, noon); d != DecisionSkip {
		t.Fatalf("expected skip, got %v", d)
	}
	d, at := Evaluate(doc, enums.NotificationTypeReminder, enums.ChannelEmail, night)
	if d != DecisionDefer {
		t.Fatalf("expected defer, got %v", d)
	}
	if want := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC); !at.Equal(want) {
		t.Fatalf("expected defer until %v, got %v", want, at)
	}
	if d, _ := Evaluate(doc, enums.NotificationTypeBookingSuccess, enums.ChannelSMS, night); d != DecisionSend {
		t.Fatalf("expected critical send during quiet hours, got %v", d)
	}
	if d, _ := Evaluate(doc, enums.NotificationTypeReminder, enums.ChannelEmail, noon); d != DecisionSend {
		t.Fatalf("expected send, got %v", d)
	}
}
