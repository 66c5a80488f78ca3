package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/flightnotify/pkg/enums"
)

// DeadLetter captures jobs the worker gave up on, for operator replay.
type DeadLetter struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	JobID          uuid.UUID              `gorm:"column:job_id;type:uuid;not null"`
	QueueName      string                 `gorm:"column:queue_name;not null"`
	NotificationID string                 `gorm:"column:notification_id;not null"`
	UserID         string                 `gorm:"column:user_id;not null"`
	Type           enums.NotificationType `gorm:"column:type;not null"`
	Channel        enums.Channel          `gorm:"column:channel;not null"`
	Payload        json.RawMessage        `gorm:"column:payload;type:jsonb;not null"`
	Reason         enums.DeadLetterReason `gorm:"column:reason;not null"`
	ErrorMessage   *string                `gorm:"column:error_message"`
	RetryCount     int                    `gorm:"column:retry_count;not null"`
	FailedAt       time.Time              `gorm:"column:failed_at;not null"`
	ReplayedAt     *time.Time             `gorm:"column:replayed_at"`
}

func (DeadLetter) TableName() string { return "notification_dead_letters" }
