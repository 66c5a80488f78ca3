package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/flightnotify/pkg/enums"
)

// DeliveryAttempt records a single provider call for audit.
type DeliveryAttempt struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	JobID             uuid.UUID            `gorm:"column:job_id;type:uuid;not null"`
	NotificationID    string               `gorm:"column:notification_id;not null"`
	UserID            string               `gorm:"column:user_id;not null"`
	Channel           enums.Channel        `gorm:"column:channel;not null"`
	Provider          string               `gorm:"column:provider;not null"`
	Status            enums.DeliveryStatus `gorm:"column:status;not null"`
	AttemptCount      int                  `gorm:"column:attempt_count;not null"`
	TemplateVersion   *int                 `gorm:"column:template_version"`
	ProviderMessageID *string              `gorm:"column:provider_message_id"`
	ErrorMessage      *string              `gorm:"column:error_message"`
	SentAt            *time.Time           `gorm:"column:sent_at"`
	CreatedAt         time.Time            `gorm:"column:created_at;not null"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;not null"`
}
