// Package worker drains the notification queues: it claims jobs, gates them on
// user preferences and quiet hours, dispatches them and settles each claim by
// completing, deferring, retrying or dead-lettering the job.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/flightnotify/internal/dispatch"
	"github.com/angelmondragon/flightnotify/internal/preferences"
	"github.com/angelmondragon/flightnotify/internal/queue"
	"github.com/angelmondragon/flightnotify/pkg/db"
	"github.com/angelmondragon/flightnotify/pkg/db/models"
	"github.com/angelmondragon/flightnotify/pkg/enums"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
	"github.com/angelmondragon/flightnotify/pkg/jobs"
	"github.com/angelmondragon/flightnotify/pkg/jobs/payloads"
	"github.com/angelmondragon/flightnotify/pkg/logger"
	"github.com/angelmondragon/flightnotify/pkg/metrics"
	"github.com/angelmondragon/flightnotify/pkg/types"
)

const (
	defaultBatchSize     = 10
	defaultConcurrency   = 4
	defaultMaxRetries    = 5
	defaultPollInterval  = 2 * time.Second
	defaultStatsInterval = 30 * time.Second
)

type queueStore interface {
	Dequeue(ctx context.Context, queueName string) (*models.QueueRecord, error)
	Complete(ctx context.Context, queueName string, jobID uuid.UUID) error
	Requeue(ctx context.Context, job jobs.NotificationJob, delay time.Duration) error
	RequeueAt(ctx context.Context, job jobs.NotificationJob, visibleAt time.Time) error
	DeadLetter(ctx context.Context, record models.QueueRecord, job *jobs.NotificationJob, reason enums.DeadLetterReason, cause error) error
	GetQueueStats(ctx context.Context, queueName string) (map[string]queue.Stats, error)
}

type preferenceSource interface {
	Get(ctx context.Context, userID string) (types.PreferenceDocument, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, job jobs.NotificationJob, payload payloads.Payload) (*dispatch.Result, error)
}

// Params wires a Worker. Zero numeric values fall back to defaults.
type Params struct {
	Store         queueStore
	Preferences   preferenceSource
	Dispatcher    dispatcher
	Logger        *logger.Logger
	Metrics       *metrics.WorkerMetrics
	BatchSize     int
	Concurrency   int
	MaxRetries    int
	PollInterval  time.Duration
	StatsInterval time.Duration
	Now           func() time.Time
}

// Worker processes queued notification jobs. It holds no job state between
// steps, so any number of workers may share one database.
type Worker struct {
	store         queueStore
	prefs         preferenceSource
	dispatcher    dispatcher
	logg          *logger.Logger
	metrics       *metrics.WorkerMetrics
	batchSize     int
	concurrency   int
	maxRetries    int
	pollInterval  time.Duration
	statsInterval time.Duration
	now           func() time.Time
}

// StepResult tallies one pass over every queue.
type StepResult struct {
	Claimed        int `json:"claimed"`
	Completed      int `json:"completed"`
	Skipped        int `json:"skipped"`
	Deferred       int `json:"deferred"`
	RetryScheduled int `json:"retry_scheduled"`
	DeadLettered   int `json:"dead_lettered"`
	Failed         int `json:"failed"`
}

// New validates params and returns a Worker. Zero numeric settings take the
// package defaults.
func New(params Params) (*Worker, error) {
	if params.Store == nil {
		return nil, errors.New("queue store is required")
	}
	if params.Preferences == nil {
		return nil, errors.New("preference source is required")
	}
	if params.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}

	w := &Worker{
		store:         params.Store,
		prefs:         params.Preferences,
		dispatcher:    params.Dispatcher,
		logg:          params.Logger,
		metrics:       params.Metrics,
		batchSize:     params.BatchSize,
		concurrency:   params.Concurrency,
		maxRetries:    params.MaxRetries,
		pollInterval:  params.PollInterval,
		statsInterval: params.StatsInterval,
		now:           params.Now,
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.concurrency <= 0 {
		w.concurrency = defaultConcurrency
	}
	if w.maxRetries <= 0 {
		w.maxRetries = defaultMaxRetries
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.statsInterval <= 0 {
		w.statsInterval = defaultStatsInterval
	}
	if w.now == nil {
		w.now = db.NowUTC
	}
	return w, nil
}

// Step claims up to BatchSize jobs from each queue, critical first, and
// processes every claimed job. A failing job never aborts the batch; the
// returned error aggregates queue store failures and recovered panics.
func (w *Worker) Step(ctx context.Context) (StepResult, error) {
	var (
		mu     sync.Mutex
		result StepResult
		errs   error
	)
	record := func(queueName, outcome string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.Failed++
			errs = multierr.Append(errs, err)
			return
		}
		switch outcome {
		case metrics.OutcomeCompleted:
			result.Completed++
		case metrics.OutcomeSkipped:
			result.Skipped++
		case metrics.OutcomeDeferred:
			result.Deferred++
		case metrics.OutcomeRetryScheduled:
			result.RetryScheduled++
		case metrics.OutcomeDeadLettered:
			result.DeadLettered++
		}
		w.metrics.IncOutcome(queueName, outcome)
	}

	for _, queueName := range enums.QueueNamesInDrainOrder() {
		qctx := w.logg.WithQueue(ctx, queueName)

		claimed, err := w.claim(qctx, queueName)
		if err != nil {
			mu.Lock()
			errs = multierr.Append(errs, err)
			mu.Unlock()
		}
		if len(claimed) == 0 {
			continue
		}
		mu.Lock()
		result.Claimed += len(claimed)
		mu.Unlock()

		var group errgroup.Group
		group.SetLimit(w.concurrency)
		for _, rec := range claimed {
			rec := rec
			group.Go(func() error {
				outcome, err := w.safeProcess(qctx, rec)
				record(queueName, outcome, err)
				return nil
			})
		}
		_ = group.Wait()
	}

	return result, errs
}

func (w *Worker) claim(ctx context.Context, queueName string) ([]models.QueueRecord, error) {
	claimed := make([]models.QueueRecord, 0, w.batchSize)
	for len(claimed) < w.batchSize {
		rec, err := w.store.Dequeue(ctx, queueName)
		if err != nil {
			return claimed, err
		}
		if rec == nil {
			break
		}
		claimed = append(claimed, *rec)
	}
	return claimed, nil
}

// safeProcess contains panics to the job that raised them. The claim is left
// in place and the lease returns the job to the queue.
func (w *Worker) safeProcess(ctx context.Context, rec models.QueueRecord) (outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("job %s panicked: %v", rec.ID, r))
			w.logg.Error(w.logg.WithField(ctx, "job_id", rec.ID.String()), "job processing panicked", err)
		}
	}()
	return w.processJob(ctx, rec)
}

func (w *Worker) processJob(ctx context.Context, rec models.QueueRecord) (string, error) {
	// Settling a claim must survive caller cancellation once work has started.
	settleCtx := context.WithoutCancel(ctx)

	job, err := jobs.Decode(rec.Message)
	if err != nil {
		w.logg.Error(w.logg.WithField(ctx, "job_id", rec.ID.String()), "undecodable job", err)
		return w.deadLetter(settleCtx, rec, nil, enums.DeadLetterReasonNonRetryable, err)
	}
	ctx = w.logg.WithJob(ctx, job.ID.String(), job.NotificationID, string(job.Channel))
	settleCtx = context.WithoutCancel(ctx)

	payload, err := job.Payload()
	if err != nil {
		w.logg.Error(ctx, "invalid job payload", err)
		return w.deadLetter(settleCtx, rec, &job, enums.DeadLetterReasonNonRetryable, err)
	}

	doc, err := w.prefs.Get(ctx, job.UserID)
	if err != nil {
		return w.handleFailure(settleCtx, rec, job, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load preferences"))
	}

	decision, nextAllowed := preferences.Evaluate(doc, job.Type, job.Channel, w.now())
	switch decision {
	case preferences.DecisionSkip:
		if err := w.store.Complete(settleCtx, rec.QueueName, job.ID); err != nil {
			return "", err
		}
		w.logg.Info(ctx, "notification suppressed by user preference")
		return metrics.OutcomeSkipped, nil
	case preferences.DecisionDefer:
		if err := w.store.RequeueAt(settleCtx, job, nextAllowed); err != nil {
			return "", err
		}
		w.logg.Info(w.logg.WithField(ctx, "next_allowed_at", nextAllowed.Format(time.RFC3339)), "notification deferred for quiet hours")
		return metrics.OutcomeDeferred, nil
	}

	res, err := w.dispatcher.Dispatch(ctx, job, payload)
	if err != nil {
		return w.handleFailure(settleCtx, rec, job, err)
	}
	if err := w.store.Complete(settleCtx, rec.QueueName, job.ID); err != nil {
		return "", err
	}
	if res != nil && res.Deduplicated {
		w.logg.Info(ctx, "notification already delivered on channel")
	}
	return metrics.OutcomeCompleted, nil
}

// handleFailure dead-letters permanent errors and jobs that exhausted their
// retries. Everything else is requeued on the backoff schedule.
func (w *Worker) handleFailure(ctx context.Context, rec models.QueueRecord, job jobs.NotificationJob, cause error) (string, error) {
	if pkgerrors.IsPermanent(cause) {
		return w.deadLetter(ctx, rec, &job, enums.DeadLetterReasonNonRetryable, cause)
	}

	retry := job.RetryCount + 1
	job.RetryCount = retry
	if retry > w.maxRetries {
		return w.deadLetter(ctx, rec, &job, enums.DeadLetterReasonMaxRetries, cause)
	}

	delay := BackoffDelay(retry, pkgerrors.IsRateLimited(cause))
	if hint := pkgerrors.RetryAfterOf(cause); hint > delay {
		delay = hint
	}
	if err := w.store.Requeue(ctx, job, delay); err != nil {
		return "", err
	}
	w.logg.Warn(w.logg.WithFields(ctx, map[string]any{
		"retry_count": retry,
		"retry_in":    delay.String(),
		"error":       cause.Error(),
	}), "delivery failed, retry scheduled")
	return metrics.OutcomeRetryScheduled, nil
}

func (w *Worker) deadLetter(ctx context.Context, rec models.QueueRecord, job *jobs.NotificationJob, reason enums.DeadLetterReason, cause error) (string, error) {
	if err := w.store.DeadLetter(ctx, rec, job, reason, cause); err != nil {
		return "", err
	}
	w.logg.Warn(w.logg.WithFields(ctx, map[string]any{
		"reason": string(reason),
		"error":  cause.Error(),
	}), "job dead-lettered")
	return metrics.OutcomeDeadLettered, nil
}
