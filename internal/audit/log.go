// Package audit records every delivery attempt: a row is written in the
// sending state before the provider is called and finalized afterwards, so a
// crash mid-send leaves a visible trace.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/flightnotify/pkg/db"
	"github.com/angelmondragon/flightnotify/pkg/db/models"
	"github.com/angelmondragon/flightnotify/pkg/enums"
	"github.com/angelmondragon/flightnotify/pkg/metrics"
)

const maxErrorLen = 1024

// Outcome is the provider result recorded by Finish.
type Outcome struct {
	Success           bool
	ProviderMessageID string
	Error             string
}

// LogParams wires the delivery log.
type LogParams struct {
	DB      *gorm.DB
	Metrics *metrics.DeliveryMetrics
	Now     func() time.Time
}

// Log is the delivery attempt store.
type Log struct {
	db      *gorm.DB
	metrics *metrics.DeliveryMetrics
	now     func() time.Time
}

// NewLog validates params and returns a Log.
func NewLog(params LogParams) (*Log, error) {
	if params.DB == nil {
		return nil, errors.New("database required")
	}
	now := params.Now
	if now == nil {
		now = db.NowUTC
	}
	return &Log{db: params.DB, metrics: params.Metrics, now: now}, nil
}

// Start persists attempt in the sending state. ID and timestamps are assigned
// here.
func (l *Log) Start(ctx context.Context, attempt *models.DeliveryAttempt) error {
	now := l.now().UTC()
	attempt.ID = uuid.New()
	attempt.Status = enums.DeliveryStatusSending
	attempt.CreatedAt = now
	attempt.UpdatedAt = now
	if attempt.AttemptCount < 1 {
		attempt.AttemptCount = 1
	}
	if err := l.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("record delivery attempt: %w", err)
	}
	return nil
}

// Finish moves attempt to sent or failed and observes the send metrics.
func (l *Log) Finish(ctx context.Context, attempt *models.DeliveryAttempt, outcome Outcome) error {
	now := l.now().UTC()
	updates := map[string]any{"updated_at": now}

	if outcome.Success {
		attempt.Status = enums.DeliveryStatusSent
		attempt.SentAt = &now
		updates["sent_at"] = now
		if outcome.ProviderMessageID != "" {
			id := outcome.ProviderMessageID
			attempt.ProviderMessageID = &id
			updates["provider_message_id"] = id
		}
	} else {
		attempt.Status = enums.DeliveryStatusFailed
		msg := db.TruncateText(outcome.Error, maxErrorLen)
		attempt.ErrorMessage = &msg
		updates["error_message"] = msg
	}
	updates["status"] = attempt.Status
	attempt.UpdatedAt = now

	err := l.db.WithContext(ctx).
		Model(&models.DeliveryAttempt{}).
		Where("id = ?", attempt.ID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("finalize delivery attempt %s: %w", attempt.ID, err)
	}

	if l.metrics != nil {
		l.metrics.ObserveAttempt(string(attempt.Channel), string(attempt.Status), now.Sub(attempt.CreatedAt))
	}
	return nil
}

// ListByNotification returns every attempt for a notification, oldest first.
func (l *Log) ListByNotification(ctx context.Context, notificationID string) ([]models.DeliveryAttempt, error) {
	var rows []models.DeliveryAttempt
	err := l.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list delivery attempts: %w", err)
	}
	return rows, nil
}

// DeleteOlderThan purges attempts created before cutoff. tx may be nil.
func (l *Log) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := l.db
	if tx != nil {
		conn = tx
	}
	result := conn.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.DeliveryAttempt{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge delivery attempts: %w", result.Error)
	}
	return result.RowsAffected, nil
}
