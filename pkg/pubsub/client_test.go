package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/flightnotify/pkg/config"
)

func TestSubscriptionResourceName(t *testing.T) {
	cases := []struct {
		project string
		name    string
		want    string
	}{
		{"proj", "notification-jobs", "projects/proj/subscriptions/notification-jobs"},
		{"proj", " projects/other/subscriptions/jobs ", "projects/other/subscriptions/jobs"},
		{"", "notification-jobs", ""},
		{"proj", "  ", ""},
	}
	for _, tc := range cases {
		if got := subscriptionResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("subscriptionResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestNewClientRequiresConfiguration(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{IntakeSubscription: "jobs"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "proj"}, config.PubSubConfig{}, nil); err != errNoSubscription {
		t.Fatalf("expected subscription error, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.IntakeSubscription() != nil {
		t.Fatal("expected nil subscriber")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Ping(context.Background()); err != errNotInitialized {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}
