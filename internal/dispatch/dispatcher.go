// Package dispatch renders a notification and hands it to the sender for its
// channel, recording the attempt before and after the provider call.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/angelmondragon/flightnotify/internal/audit"
	"github.com/angelmondragon/flightnotify/internal/templates"
	"github.com/angelmondragon/flightnotify/pkg/db/models"
	"github.com/angelmondragon/flightnotify/pkg/enums"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
	"github.com/angelmondragon/flightnotify/pkg/jobs"
	"github.com/angelmondragon/flightnotify/pkg/jobs/payloads"
	"github.com/angelmondragon/flightnotify/pkg/logger"
)

const (
	defaultSendTimeout = 10 * time.Second
	dedupeConsumerBase = "dispatch"
)

type templateResolver interface {
	Resolve(ctx context.Context, channel enums.Channel, payload payloads.Payload) (templates.Rendered, error)
}

type addressResolver interface {
	Address(ctx context.Context, userID string, channel enums.Channel) (string, error)
}

type attemptLog interface {
	Start(ctx context.Context, attempt *models.DeliveryAttempt) error
	Finish(ctx context.Context, attempt *models.DeliveryAttempt, outcome audit.Outcome) error
}

// deduper remembers notifications already delivered on a channel. The mark
// is written after the provider accepted the message, so a worker that dies
// mid-send leaves nothing behind and the reclaimed job is sent again.
type deduper interface {
	IsProcessed(ctx context.Context, consumer string, id string) (bool, error)
	MarkProcessed(ctx context.Context, consumer string, id string) error
}

// Params wires the dispatcher. Dedupe is optional.
type Params struct {
	Senders       map[enums.Channel]Sender
	Templates     templateResolver
	Contacts      addressResolver
	Audit         attemptLog
	Dedupe        deduper
	Logger        *logger.Logger
	SendTimeout   time.Duration
	RatePerSecond float64
	RateBurst     int
}

// Dispatcher delivers one job on its channel.
type Dispatcher struct {
	senders   map[enums.Channel]Sender
	limiters  map[enums.Channel]*rate.Limiter
	templates templateResolver
	contacts  addressResolver
	audit     attemptLog
	dedupe    deduper
	logg      *logger.Logger
	timeout   time.Duration
}

// Result describes a completed dispatch.
type Result struct {
	AttemptID         uuid.UUID
	ProviderMessageID string
	// Deduplicated is true when the notification had already been delivered
	// on this channel and nothing was sent.
	Deduplicated bool
}

// New validates params and returns a Dispatcher.
func New(params Params) (*Dispatcher, error) {
	if len(params.Senders) == 0 {
		return nil, errors.New("at least one sender required")
	}
	if params.Templates == nil {
		return nil, errors.New("template resolver required")
	}
	if params.Contacts == nil {
		return nil, errors.New("contact resolver required")
	}
	if params.Audit == nil {
		return nil, errors.New("audit log required")
	}
	timeout := params.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	limiters := make(map[enums.Channel]*rate.Limiter, len(params.Senders))
	for channel := range params.Senders {
		if params.RatePerSecond > 0 {
			burst := params.RateBurst
			if burst < 1 {
				burst = 1
			}
			limiters[channel] = rate.NewLimiter(rate.Limit(params.RatePerSecond), burst)
		}
	}

	return &Dispatcher{
		senders:   params.Senders,
		limiters:  limiters,
		templates: params.Templates,
		contacts:  params.Contacts,
		audit:     params.Audit,
		dedupe:    params.Dedupe,
		logg:      params.Logger,
		timeout:   timeout,
	}, nil
}

// Dispatch renders and sends job. Returned errors carry a pkgerrors code:
// CodeValidation for failures a retry cannot fix, CodeRateLimit for provider
// throttling, anything else for transient trouble.
func (d *Dispatcher) Dispatch(ctx context.Context, job jobs.NotificationJob, payload payloads.Payload) (*Result, error) {
	sender, ok := d.senders[job.Channel]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no sender configured for channel "+string(job.Channel))
	}

	address, err := d.contacts.Address(ctx, job.UserID, job.Channel)
	if err != nil {
		return nil, err
	}

	rendered, err := d.templates.Resolve(ctx, job.Channel, payload)
	if err != nil {
		return nil, err
	}

	consumer := dedupeConsumerBase + ":" + string(job.Channel)
	if d.dedupe != nil {
		already, err := d.dedupe.IsProcessed(ctx, consumer, job.NotificationID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delivery dedupe check")
		}
		if already {
			d.logInfo(ctx, "notification already delivered on channel; skipping send")
			return &Result{Deduplicated: true}, nil
		}
	}

	result, err := d.deliver(ctx, sender, job, rendered, Recipient{
		UserID:         job.UserID,
		Address:        address,
		NotificationID: job.NotificationID,
		Type:           job.Type,
	}, payload)
	if err != nil {
		return nil, err
	}
	if d.dedupe != nil {
		// The send went out; a lost mark only risks a duplicate later.
		if err := d.dedupe.MarkProcessed(context.WithoutCancel(ctx), consumer, job.NotificationID); err != nil {
			d.logError(ctx, "failed to record delivery dedupe mark", err)
		}
	}
	return result, nil
}

func (d *Dispatcher) deliver(ctx context.Context, sender Sender, job jobs.NotificationJob, rendered templates.Rendered, recipient Recipient, payload payloads.Payload) (*Result, error) {
	if limiter := d.limiters[job.Channel]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send rate limiter")
		}
	}

	attempt := &models.DeliveryAttempt{
		JobID:           job.ID,
		NotificationID:  job.NotificationID,
		UserID:          job.UserID,
		Channel:         job.Channel,
		Provider:        sender.Name(),
		AttemptCount:    job.RetryCount + 1,
		TemplateVersion: rendered.Version,
	}
	if err := d.audit.Start(ctx, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record delivery attempt")
	}

	content := Content{
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
		Link:    payload.Fields()["link"],
	}
	sent := d.safeSend(ctx, sender, recipient, content)

	outcome := audit.Outcome{Success: sent.Success, ProviderMessageID: sent.ProviderMessageID, Error: sent.Error}
	if err := d.audit.Finish(context.WithoutCancel(ctx), attempt, outcome); err != nil {
		d.logError(ctx, "failed to finalize delivery attempt", err)
	}

	if !sent.Success {
		code := sent.Code
		if code == "" {
			code = pkgerrors.CodeDependency
		}
		return nil, pkgerrors.New(code, fmt.Sprintf("%s send failed: %s", sender.Name(), sent.Error))
	}
	return &Result{AttemptID: attempt.ID, ProviderMessageID: sent.ProviderMessageID}, nil
}

// safeSend bounds the provider call by the send timeout and converts a panic
// into a failed result. A sender that ignores its context is abandoned once
// the timeout fires.
func (d *Dispatcher) safeSend(ctx context.Context, sender Sender, recipient Recipient, content Content) SendResult {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan SendResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- SendResult{Error: fmt.Sprintf("sender panic: %v", r), Code: pkgerrors.CodeInternal}
			}
		}()
		done <- sender.Send(sendCtx, recipient, content)
	}()

	select {
	case result := <-done:
		if !result.Success && result.Error == "" {
			result.Error = "send failed"
		}
		return result
	case <-sendCtx.Done():
		return SendResult{Error: "send timed out: " + sendCtx.Err().Error(), Code: pkgerrors.CodeDependency}
	}
}

func (d *Dispatcher) logInfo(ctx context.Context, msg string) {
	if d.logg != nil {
		d.logg.Info(ctx, msg)
	}
}

func (d *Dispatcher) logError(ctx context.Context, msg string, err error) {
	if d.logg != nil {
		d.logg.Error(ctx, msg, err)
	}
}
