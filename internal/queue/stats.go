package queue

import (
	"context"
	"fmt"

	"github.com/angelmondragon/flightnotify/pkg/db/models"
	"github.com/angelmondragon/flightnotify/pkg/enums"
)

// Stats is the depth breakdown of one queue.
type Stats struct {
	TotalPending    int64 `json:"total_pending"`
	ReadyToProcess  int64 `json:"ready_to_process"`
	ScheduledFuture int64 `json:"scheduled_future"`
	InFlight        int64 `json:"in_flight"`
}

// Gauges flattens the stats into the labels used by the depth gauge.
func (s Stats) Gauges() map[string]int64 {
	return map[string]int64{
		"total_pending":    s.TotalPending,
		"ready_to_process": s.ReadyToProcess,
		"scheduled_future": s.ScheduledFuture,
		"in_flight":        s.InFlight,
	}
}

type statsRow struct {
	QueueName string
	Stats
}

// GetQueueStats reports depth per queue. An empty queueName covers every
// priority queue; queues with no rows report zeros.
func (s *Store) GetQueueStats(ctx context.Context, queueName string) (map[string]Stats, error) {
	now := s.now().UTC()
	staleBefore := now.Add(-s.lease)

	query := s.db.WithContext(ctx).
		Model(&models.QueueRecord{}).
		Select(`queue_name,
			COUNT(*) AS total_pending,
			SUM(CASE WHEN visible_at <= ? AND (processing_started_at IS NULL OR processing_started_at < ?) THEN 1 ELSE 0 END) AS ready_to_process,
			SUM(CASE WHEN visible_at > ? THEN 1 ELSE 0 END) AS scheduled_future,
			SUM(CASE WHEN processing_started_at IS NOT NULL AND processing_started_at >= ? THEN 1 ELSE 0 END) AS in_flight`,
			now, staleBefore, now, staleBefore).
		Where("processed_at IS NULL").
		Group("queue_name")
	if queueName != "" {
		query = query.Where("queue_name = ?", queueName)
	}

	var rows []statsRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}

	out := make(map[string]Stats, len(rows))
	if queueName != "" {
		out[queueName] = Stats{}
	} else {
		for _, name := range enums.QueueNamesInDrainOrder() {
			out[name] = Stats{}
		}
	}
	for _, row := range rows {
		out[row.QueueName] = row.Stats
	}
	return out, nil
}
