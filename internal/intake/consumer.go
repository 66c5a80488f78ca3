// Package intake feeds notification jobs published to Pub/Sub into the queue.
package intake

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
	"github.com/angelmondragon/flightnotify/pkg/jobs"
	"github.com/angelmondragon/flightnotify/pkg/logger"
)

const intakeConsumer = "intake"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type enqueuer interface {
	Enqueue(ctx context.Context, job jobs.NotificationJob) (bool, error)
}

// idempotencyChecker remembers accepted job ids, so a redelivered message for
// a job that was already queued, delivered and removed is not queued again.
type idempotencyChecker interface {
	IsProcessed(ctx context.Context, consumer string, id string) (bool, error)
	MarkProcessed(ctx context.Context, consumer string, id string) error
}

// Consumer enqueues every valid job message exactly once per job id.
type Consumer struct {
	queue        enqueuer
	subscription receiver
	idempotency  idempotencyChecker
	logg         *logger.Logger
}

// NewConsumer builds an intake consumer.
func NewConsumer(queue enqueuer, subscription receiver, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue store required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("intake subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		queue:        queue,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run receives messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	job, err := jobs.Decode(msg.Data)
	if err != nil {
		// Redelivery cannot fix a malformed job.
		c.logg.Error(logCtx, "rejected intake message", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithJob(logCtx, job.ID.String(), job.NotificationID, string(job.Channel))

	jobID := job.ID.String()
	already, err := c.idempotency.IsProcessed(ctx, intakeConsumer, jobID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "job already accepted")
		return processResult{ack: true}
	}

	inserted, err := c.queue.Enqueue(ctx, job)
	if err != nil {
		if pkgerrors.CodeOf(err) == pkgerrors.CodeValidation {
			c.logg.Error(logCtx, "rejected intake job", err)
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "enqueue failed", err)
		return processResult{nack: true}
	}
	// The row is committed. Enqueue ignores duplicate ids, so a failed mark
	// only costs a harmless insert attempt on redelivery.
	if err := c.idempotency.MarkProcessed(context.WithoutCancel(ctx), intakeConsumer, jobID); err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "failed to record accepted job")
	}
	if !inserted {
		c.logg.Info(logCtx, "job already queued")
		return processResult{ack: true}
	}

	c.logg.Info(c.logg.WithField(logCtx, "queue", job.QueueName()), "job enqueued from intake")
	return processResult{ack: true}
}
