package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueueRecord is one pending notification job. ID equals the job id.
type QueueRecord struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	QueueName           string          `gorm:"column:queue_name;not null"`
	Message             json.RawMessage `gorm:"column:message;type:jsonb;not null"`
	CreatedAt           time.Time       `gorm:"column:created_at;not null"`
	VisibleAt           time.Time       `gorm:"column:visible_at;not null"`
	ProcessingStartedAt *time.Time      `gorm:"column:processing_started_at"`
	ProcessedAt         *time.Time      `gorm:"column:processed_at"`
}

func (QueueRecord) TableName() string { return "notification_queue" }
