package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/flightnotify/api/responses"
	"github.com/angelmondragon/flightnotify/api/validators"
	"github.com/angelmondragon/flightnotify/pkg/enums"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
	"github.com/angelmondragon/flightnotify/pkg/jobs"
	"github.com/angelmondragon/flightnotify/pkg/logger"
)

type jobEnqueuer interface {
	Enqueue(ctx context.Context, job jobs.NotificationJob) (bool, error)
}

// SubmitJobRequest is the producer-facing job body. A missing id is assigned
// by the server, so retries that need exactly-once enqueue must send one.
type SubmitJobRequest struct {
	ID             string          `json:"id" validate:"omitempty,uuid"`
	Type           string          `json:"type" validate:"required,max=64"`
	UserID         string          `json:"user_id" validate:"required,max=128"`
	NotificationID string          `json:"notification_id" validate:"required,max=128"`
	Channel        string          `json:"channel" validate:"required,oneof=email sms push in_app"`
	Priority       string          `json:"priority" validate:"omitempty,oneof=critical high normal low"`
	Data           json.RawMessage `json:"data"`
	ScheduledFor   *time.Time      `json:"scheduled_for"`
}

type submitJobResponse struct {
	JobID    string `json:"job_id"`
	Queue    string `json:"queue"`
	Enqueued bool   `json:"enqueued"`
}

// SubmitJob validates and enqueues a notification job. Resubmitting a known
// job id is accepted and reported with enqueued=false.
func SubmitJob(queue jobEnqueuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if queue == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "queue unavailable"))
			return
		}

		var body SubmitJobRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job := jobs.NotificationJob{
			ID:             uuid.New(),
			Type:           enums.NotificationType(body.Type),
			UserID:         body.UserID,
			NotificationID: body.NotificationID,
			Channel:        enums.Channel(body.Channel),
			Priority:       enums.Priority(body.Priority),
			Data:           body.Data,
			ScheduledFor:   body.ScheduledFor,
		}
		if body.ID != "" {
			id, err := validators.ParseUUIDParam(body.ID, "id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			job.ID = id
		}
		if err := job.Normalize(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := job.Payload(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		inserted, err := queue.Enqueue(r.Context(), job)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusAccepted
		if !inserted {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, submitJobResponse{
			JobID:    job.ID.String(),
			Queue:    job.QueueName(),
			Enqueued: inserted,
		})
	}
}
