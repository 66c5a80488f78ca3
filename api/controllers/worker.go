package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/flightnotify/api/responses"
	"github.com/angelmondragon/flightnotify/internal/queue"
	"github.com/angelmondragon/flightnotify/internal/worker"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
	"github.com/angelmondragon/flightnotify/pkg/logger"
)

// onDemandStepTimeout bounds a triggered step once it is detached from the
// request.
const onDemandStepTimeout = 2 * time.Minute

type stepRunner interface {
	Step(ctx context.Context) (worker.StepResult, error)
}

type queueStatsReader interface {
	GetQueueStats(ctx context.Context, queueName string) (map[string]queue.Stats, error)
}

type runWorkerResponse struct {
	worker.StepResult
	Errors string `json:"errors,omitempty"`
}

// RunWorkerStep drains one batch synchronously. Per-job failures are already
// settled by the step, so they are reported alongside the tally rather than
// failing the request. The step does not inherit the request's cancellation:
// a client hanging up must not abort in-flight sends and charge their jobs a
// retry.
func RunWorkerStep(runner stepRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "worker unavailable"))
			return
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), onDemandStepTimeout)
		defer cancel()
		result, err := runner.Step(ctx)
		resp := runWorkerResponse{StepResult: result}
		if err != nil {
			if result.Claimed == 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "worker step failed"))
				return
			}
			resp.Errors = err.Error()
			if logg != nil {
				logg.Error(r.Context(), "worker step finished with errors", err)
			}
		}
		responses.WriteSuccess(w, resp)
	}
}

// QueueStats reports per-queue counts. The optional queue query parameter
// narrows the result to one queue.
func QueueStats(store queueStatsReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "queue unavailable"))
			return
		}
		stats, err := store.GetQueueStats(r.Context(), r.URL.Query().Get("queue"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
