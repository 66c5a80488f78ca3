package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/flightnotify/pkg/db"
	"github.com/angelmondragon/flightnotify/pkg/db/models"
	"github.com/angelmondragon/flightnotify/pkg/enums"
	pkgerrors "github.com/angelmondragon/flightnotify/pkg/errors"
	"github.com/angelmondragon/flightnotify/pkg/jobs"
	"github.com/angelmondragon/flightnotify/pkg/pagination"
)

const maxDeadLetterErrorLen = 1024

// DeadLetter moves a claimed record out of the queue. job may be nil when the
// message could not be decoded; identifying columns are then recovered on a
// best-effort basis from the raw message.
func (s *Store) DeadLetter(ctx context.Context, record models.QueueRecord, job *jobs.NotificationJob, reason enums.DeadLetterReason, cause error) error {
	if !reason.IsValid() {
		return fmt.Errorf("dead letter job %s: invalid reason %q", record.ID, reason)
	}

	entry := newDeadLetter(record, job, reason, cause, s.now().UTC())
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", record.ID).Delete(&models.QueueRecord{}).Error
	})
	if err != nil {
		return fmt.Errorf("dead letter job %s: %w", record.ID, err)
	}
	return nil
}

func newDeadLetter(record models.QueueRecord, job *jobs.NotificationJob, reason enums.DeadLetterReason, cause error, now time.Time) models.DeadLetter {
	var source jobs.NotificationJob
	if job != nil {
		source = *job
	} else {
		_ = json.Unmarshal(record.Message, &source)
	}

	payload := json.RawMessage(record.Message)
	if job != nil {
		if encoded, err := job.Encode(); err == nil {
			payload = encoded
		}
	}
	if !json.Valid(payload) {
		quoted, _ := json.Marshal(string(record.Message))
		payload = quoted
	}

	entry := models.DeadLetter{
		ID:             uuid.New(),
		JobID:          record.ID,
		QueueName:      record.QueueName,
		NotificationID: source.NotificationID,
		UserID:         source.UserID,
		Type:           source.Type,
		Channel:        source.Channel,
		Payload:        payload,
		Reason:         reason,
		RetryCount:     source.RetryCount,
		FailedAt:       now,
	}
	if cause != nil {
		msg := db.TruncateText(cause.Error(), maxDeadLetterErrorLen)
		entry.ErrorMessage = &msg
	}
	return entry
}

// DeadLetterListParams filters the dead-letter listing.
type DeadLetterListParams struct {
	Limit       int
	Cursor      string
	PendingOnly bool
}

// ListDeadLetters pages dead letters newest first.
func (s *Store) ListDeadLetters(ctx context.Context, params DeadLetterListParams) (*pagination.Page[models.DeadLetter], error) {
	query := s.db.WithContext(ctx).Model(&models.DeadLetter{})
	if params.PendingOnly {
		query = query.Where("replayed_at IS NULL")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	var rows []models.DeadLetter
	if err := query.Scopes(pagination.Newest("failed_at", cursor, params.Limit)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}

	page := pagination.BuildPage(rows, params.Limit, func(d models.DeadLetter) pagination.Cursor {
		return pagination.Cursor{At: d.FailedAt, ID: d.ID}
	})
	return &page, nil
}

// ReplayDeadLetter puts the dead-lettered job back on its queue with a fresh
// retry budget and stamps the entry as replayed.
func (s *Store) ReplayDeadLetter(ctx context.Context, id uuid.UUID) (*jobs.NotificationJob, error) {
	var replayed jobs.NotificationJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.DeadLetter
		if err := tx.Where("id = ?", id).Take(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found")
			}
			return err
		}
		if entry.ReplayedAt != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "dead letter already replayed")
		}

		job, err := jobs.Decode(entry.Payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "dead letter payload is not a valid job")
		}
		job.RetryCount = 0

		now := s.now().UTC()
		if err := s.requeueTx(tx, job, now, now); err != nil {
			return err
		}
		result := tx.Model(&models.DeadLetter{}).
			Where("id = ? AND replayed_at IS NULL", id).
			UpdateColumn("replayed_at", now)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "dead letter already replayed")
		}
		replayed = job
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("replay dead letter %s: %w", id, err)
	}
	return &replayed, nil
}

// DeleteDeadLettersOlderThan purges entries that failed before cutoff,
// replayed or not. tx may be nil.
func (s *Store) DeleteDeadLettersOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := s.db
	if tx != nil {
		conn = tx
	}
	result := conn.WithContext(ctx).
		Where("failed_at < ?", cutoff).
		Delete(&models.DeadLetter{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge dead letters: %w", result.Error)
	}
	return result.RowsAffected, nil
}
