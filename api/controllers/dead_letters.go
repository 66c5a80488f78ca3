package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/flightnotify/api/responses"
	"github.com/angelmondragon/flightnotify/api/validators"
	"github.com/angelmondragon/flightnotify/internal/queue"
	"github.com/angelmondragon/flightnotify/pkg/db/models"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
	"github.com/angelmondragon/flightnotify/pkg/jobs"
	"github.com/angelmondragon/flightnotify/pkg/logger"
	"github.com/angelmondragon/flightnotify/pkg/pagination"
)

type deadLetterStore interface {
	ListDeadLetters(ctx context.Context, params queue.DeadLetterListParams) (*pagination.Page[models.DeadLetter], error)
	ReplayDeadLetter(ctx context.Context, id uuid.UUID) (*jobs.NotificationJob, error)
}

// ListDeadLetters pages dead-lettered jobs, newest first.
func ListDeadLetters(store deadLetterStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter store unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pendingOnly, err := validators.ParseQueryBool(r, "pendingOnly", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := store.ListDeadLetters(r.Context(), queue.DeadLetterListParams{
			Limit:       limit,
			Cursor:      r.URL.Query().Get("cursor"),
			PendingOnly: pendingOnly,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ReplayDeadLetter puts a dead-lettered job back on its queue with a fresh
// retry budget.
func ReplayDeadLetter(store deadLetterStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter store unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(chi.URLParam(r, "deadLetterId"), "deadLetterId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, err := store.ReplayDeadLetter(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithJob(r.Context(), job.ID.String(), job.NotificationID, string(job.Channel)), "dead letter replayed")
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{
			"job_id": job.ID.String(),
			"queue":  job.QueueName(),
		})
	}
}
