// Package queue is the durable notification job queue. The database is the
// only coordination point between workers: claims take a row lock with SKIP
// LOCKED and stamp a lease, and an expired lease makes the row claimable again.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/flightnotify/pkg/db"
	"github.com/angelmondragon/flightnotify/pkg/db/models"
	"github.com/angelmondragon/flightnotify/pkg/jobs"
)

// DefaultLease is how long a claim is honoured before another worker may take
// the row over.
const DefaultLease = 60 * time.Second

const claimablePredicate = "visible_at <= ? AND processed_at IS NULL AND (processing_started_at IS NULL OR processing_started_at < ?)"

// StoreParams wires the queue store.
type StoreParams struct {
	DB    *gorm.DB
	Lease time.Duration
	Now   func() time.Time
}

// Store persists notification jobs across the priority queues.
type Store struct {
	db    *gorm.DB
	lease time.Duration
	now   func() time.Time
}

// NewStore validates params and returns a Store.
func NewStore(params StoreParams) (*Store, error) {
	if params.DB == nil {
		return nil, errors.New("database required")
	}
	lease := params.Lease
	if lease <= 0 {
		lease = DefaultLease
	}
	now := params.Now
	if now == nil {
		now = db.NowUTC
	}
	return &Store{db: params.DB, lease: lease, now: now}, nil
}

// Lease reports the configured claim lease.
func (s *Store) Lease() time.Duration {
	return s.lease
}

// Enqueue inserts job. The bool is false when a row with the same id already
// exists, in which case nothing is written.
func (s *Store) Enqueue(ctx context.Context, job jobs.NotificationJob) (bool, error) {
	return s.EnqueueTx(s.db.WithContext(ctx), job)
}

// EnqueueTx is Enqueue inside the caller's transaction, so producers can
// commit their own writes and the job atomically.
func (s *Store) EnqueueTx(tx *gorm.DB, job jobs.NotificationJob) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	if err := job.Normalize(); err != nil {
		return false, err
	}

	now := s.now().UTC()
	visibleAt := now
	if job.ScheduledFor != nil {
		visibleAt = job.ScheduledFor.UTC()
	}
	record, err := newRecord(job, now, visibleAt)
	if err != nil {
		return false, err
	}

	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&record)
	if result.Error != nil {
		return false, fmt.Errorf("enqueue job %s: %w", job.ID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Dequeue claims the oldest claimable row of queueName. It returns nil when
// nothing is claimable, including when a concurrent worker won the row.
func (s *Store) Dequeue(ctx context.Context, queueName string) (*models.QueueRecord, error) {
	now := s.now().UTC()
	staleBefore := now.Add(-s.lease)

	var claimed *models.QueueRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.QueueRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("queue_name = ?", queueName).
			Where(claimablePredicate, now, staleBefore).
			Order("visible_at ASC").
			Order("created_at ASC").
			Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		result := tx.Model(&models.QueueRecord{}).
			Where("id = ?", record.ID).
			Where(claimablePredicate, now, staleBefore).
			UpdateColumn("processing_started_at", now)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		record.ProcessingStartedAt = &now
		claimed = &record
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dequeue %s: %w", queueName, err)
	}
	return claimed, nil
}

// Complete removes a finished job.
func (s *Store) Complete(ctx context.Context, queueName string, jobID uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Where("id = ? AND queue_name = ?", jobID, queueName).
		Delete(&models.QueueRecord{}).Error
	if err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	return nil
}

// Requeue makes job visible again after delay and releases any claim. The
// stored message is replaced, so the job's retry_count is persisted.
func (s *Store) Requeue(ctx context.Context, job jobs.NotificationJob, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	return s.RequeueAt(ctx, job, s.now().UTC().Add(delay))
}

// RequeueAt is Requeue with an absolute visibility time.
func (s *Store) RequeueAt(ctx context.Context, job jobs.NotificationJob, visibleAt time.Time) error {
	if err := s.requeueTx(s.db.WithContext(ctx), job, s.now().UTC(), visibleAt.UTC()); err != nil {
		return fmt.Errorf("requeue job %s: %w", job.ID, err)
	}
	return nil
}

func (s *Store) requeueTx(tx *gorm.DB, job jobs.NotificationJob, now, visibleAt time.Time) error {
	job.ScheduledFor = nil
	record, err := newRecord(job, now, visibleAt)
	if err != nil {
		return err
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"queue_name",
			"message",
			"visible_at",
			"processing_started_at",
			"processed_at",
		}),
	}).Create(&record).Error
}

func newRecord(job jobs.NotificationJob, now, visibleAt time.Time) (models.QueueRecord, error) {
	message, err := job.Encode()
	if err != nil {
		return models.QueueRecord{}, err
	}
	return models.QueueRecord{
		ID:        job.ID,
		QueueName: job.QueueName(),
		Message:   message,
		CreatedAt: now,
		VisibleAt: visibleAt,
	}, nil
}
