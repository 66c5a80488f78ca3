package worker

import (
	"testing"
	"time"
)

func TestBackoffDelaySchedule(t *testing.T) {
	cases := []struct {
		retry       int
		rateLimited bool
		want        time.Duration
	}{
		{retry: 1, want: 30 * time.Second},
		{retry: 2, want: 120 * time.Second},
		{retry: 3, want: 600 * time.Second},
		{retry: 4, want: time.Hour},
		{retry: 5, want: 4 * time.Hour},
		{retry: 9, want: 4 * time.Hour},
		{retry: 0, want: 30 * time.Second},
		{retry: 1, rateLimited: true, want: 120 * time.Second},
		{retry: 4, rateLimited: true, want: 4 * time.Hour},
		{retry: 5, rateLimited: true, want: 4 * time.Hour},
	}
	for _, tc := range cases {
		if got := BackoffDelay(tc.retry, tc.rateLimited); got != tc.want {
			t.Fatalf("BackoffDelay(%d, %v) = %v, want %v", tc.retry, tc.rateLimited, got, tc.want)
		}
	}
}

func TestNextBackoffDoublesUpToMax(t *testing.T) {
	base := time.Second
	if got := nextBackoff(0, base, 10*time.Second); got != 2*time.Second {
		t.Fatalf("expected 2s from zero, got %v", got)
	}
	if got := nextBackoff(8*time.Second, base, 10*time.Second); got != 10*time.Second {
		t.Fatalf("expected cap at 10s, got %v", got)
	}
}

func TestWithJitterStaysInWindow(t *testing.T) {
	for i := 0; i < 50; i++ {
		got := withJitter(time.Second)
		if got < time.Second || got >= time.Second+jitterWindow {
			t.Fatalf("jittered delay %v outside window", got)
		}
	}
	if got := withJitter(0); got != 0 {
		t.Fatalf("expected zero delay to stay zero, got %v", got)
	}
}
