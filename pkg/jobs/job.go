// Package jobs defines the notification job wire format shared by producers,
// the queue store and the worker.
package jobs

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/flightnotify/pkg/enums"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
	"github.com/angelmondragon/flightnotify/pkg/jobs/payloads"
)

// NotificationJob is a unit of work: one notification on one channel.
type NotificationJob struct {
	ID             uuid.UUID              `json:"id"`
	Type           enums.NotificationType `json:"type"`
	UserID         string                 `json:"user_id"`
	NotificationID string                 `json:"notification_id"`
	Channel        enums.Channel          `json:"channel"`
	Priority       enums.Priority         `json:"priority"`
	Data           json.RawMessage        `json:"data"`
	RetryCount     int                    `json:"retry_count"`
	ScheduledFor   *time.Time             `json:"scheduled_for,omitempty"`
}

// Normalize fills defaults and validates the job. Every failure is a
// validation error since a malformed job never becomes deliverable.
func (j *NotificationJob) Normalize() error {
	if j.ID == uuid.Nil {
		return invalid("id is required")
	}
	t, err := enums.ParseNotificationType(string(j.Type))
	if err != nil {
		return invalid(err.Error())
	}
	j.Type = t

	j.UserID = strings.TrimSpace(j.UserID)
	if j.UserID == "" {
		return invalid("user_id is required")
	}
	j.NotificationID = strings.TrimSpace(j.NotificationID)
	if j.NotificationID == "" {
		return invalid("notification_id is required")
	}

	if !j.Channel.IsValid() {
		return invalid("channel must be one of email, sms, push, in_app")
	}
	priority, err := enums.ParsePriority(string(j.Priority))
	if err != nil {
		return invalid(err.Error())
	}
	j.Priority = priority

	if j.RetryCount < 0 {
		return invalid("retry_count must be non-negative")
	}

	trimmed := bytes.TrimSpace(j.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		j.Data = json.RawMessage(`{}`)
	} else if trimmed[0] != '{' {
		return invalid("data must be a JSON object")
	}

	if j.ScheduledFor != nil {
		utc := j.ScheduledFor.UTC()
		j.ScheduledFor = &utc
	}
	return nil
}

// QueueName is the queue the job belongs on.
func (j NotificationJob) QueueName() string {
	return j.Priority.QueueName()
}

// Payload decodes Data using the default payload registry.
func (j NotificationJob) Payload() (payloads.Payload, error) {
	p, err := payloads.Default().Decode(j.Type, j.Data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid job data")
	}
	return p, nil
}

// Encode renders the job as stored in the queue message column.
func (j NotificationJob) Encode() (json.RawMessage, error) {
	buf, err := json.Marshal(j)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode job")
	}
	return buf, nil
}

// Decode parses and normalizes a stored or submitted job.
func Decode(raw []byte) (NotificationJob, error) {
	var job NotificationJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return NotificationJob{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed job")
	}
	if err := job.Normalize(); err != nil {
		return NotificationJob{}, err
	}
	return job, nil
}

func invalid(msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg)
}
