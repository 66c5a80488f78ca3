package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/flightnotify/internal/notifications"
	"github.com/angelmondragon/flightnotify/pkg/logger"
	"github.com/angelmondragon/flightnotify/pkg/metrics"
)

const (
	defaultInboxRetentionDays      = 30
	defaultAttemptRetentionDays    = 90
	defaultDeadLetterRetentionDays = 30
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type inboxRepository interface {
	WithTx(tx *gorm.DB) notifications.Repository
}

type attemptPurger interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type deadLetterPurger interface {
	DeleteDeadLettersOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type purgeFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

// RetentionJobParams configure one retention job. Zero RetentionDays falls
// back to the job's default window.
type RetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Metrics       *metrics.CronJobMetrics
	RetentionDays int
}

// NewInboxRetentionJob purges in-app inbox rows older than the window.
func NewInboxRetentionJob(params RetentionJobParams, repo inboxRepository) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("inbox repository required")
	}
	purge := func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
		return repo.WithTx(tx).DeleteOlderThan(ctx, cutoff)
	}
	return newRetentionJob("inbox-retention", params, defaultInboxRetentionDays, purge)
}

// NewAttemptRetentionJob purges delivery attempts older than the window.
func NewAttemptRetentionJob(params RetentionJobParams, log attemptPurger) (Job, error) {
	if log == nil {
		return nil, fmt.Errorf("delivery log required")
	}
	return newRetentionJob("delivery-attempt-retention", params, defaultAttemptRetentionDays, log.DeleteOlderThan)
}

// NewDeadLetterRetentionJob purges dead letters older than the window.
func NewDeadLetterRetentionJob(params RetentionJobParams, store deadLetterPurger) (Job, error) {
	if store == nil {
		return nil, fmt.Errorf("queue store required")
	}
	return newRetentionJob("dead-letter-retention", params, defaultDeadLetterRetentionDays, store.DeleteDeadLettersOlderThan)
}

func newRetentionJob(name string, params RetentionJobParams, defaultDays int, purge purgeFunc) (*retentionJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = defaultDays
	}
	return &retentionJob{
		name:      name,
		logg:      params.Logger,
		db:        params.DB,
		metrics:   params.Metrics,
		purge:     purge,
		retention: retention,
		now:       time.Now,
	}, nil
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	metrics   *metrics.CronJobMetrics
	purge     purgeFunc
	retention int
	now       func() time.Time
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.purge(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.metrics.AddPurged(j.name, deleted)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, j.name+" complete")
	return nil
}
