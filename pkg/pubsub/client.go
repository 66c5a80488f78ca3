// Package pubsub connects the worker to the Pub/Sub subscription that feeds
// notification jobs into the queue.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/flightnotify/pkg/config"
	"github.com/angelmondragon/flightnotify/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoSubscription    = errors.New("pubsub intake subscription name is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client owns the Pub/Sub connection for the intake subscription.
type Client struct {
	client       *pubsub.Client
	subscription string
	cfg          config.PubSubConfig
}

// NewClient connects and verifies the intake subscription exists. A
// subscription without a dead-letter topic is accepted with a warning.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.IntakeSubscription) == "" {
		return nil, errNoSubscription
	}
	name := subscriptionResourceName(project, cfg.IntakeSubscription)

	ps, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	c := &Client{client: ps, subscription: name, cfg: cfg}

	sub, err := c.describe(ctx)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"subscription":      name,
			"ack_deadline_s":    sub.GetAckDeadlineSeconds(),
			"dead_letter_topic": sub.GetDeadLetterPolicy().GetDeadLetterTopic(),
		})
		if sub.GetDeadLetterPolicy() == nil {
			logg.Warn(ctx, "intake subscription has no dead-letter topic; undeliverable messages redeliver until acked")
		}
		logg.Info(ctx, "pubsub intake ready")
	}
	return c, nil
}

func (c *Client) describe(ctx context.Context) (*pubsubpb.Subscription, error) {
	sub, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.subscription})
	switch {
	case status.Code(err) == codes.NotFound:
		return nil, fmt.Errorf("subscription %s does not exist", c.subscription)
	case err != nil:
		return nil, fmt.Errorf("describe subscription %s: %w", c.subscription, err)
	}
	return sub, nil
}

// IntakeSubscription returns a subscriber with flow control taken from the
// config. It is nil on a nil client.
func (c *Client) IntakeSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	sub := c.client.Subscriber(c.subscription)
	if c.cfg.MaxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.cfg.MaxOutstanding
	}
	if c.cfg.ReceiveGoroutines > 0 {
		sub.ReceiveSettings.NumGoroutines = c.cfg.ReceiveGoroutines
	}
	return sub
}

// Ping re-reads the subscription, so a deleted subscription fails readiness.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	_, err := c.describe(ctx)
	return err
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// subscriptionResourceName accepts a bare ID or a full resource name.
func subscriptionResourceName(projectID, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(name, "projects/"); ok && strings.Contains(rest, "/subscriptions/") {
		return name
	}
	if projectID = strings.TrimSpace(projectID); projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/subscriptions/" + name
}
