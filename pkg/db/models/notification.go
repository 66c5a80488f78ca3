package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/flightnotify/pkg/enums"
)

// Notification stores in-app inbox entries scoped to a user.
type Notification struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID         string                 `gorm:"column:user_id;not null"`
	NotificationID string                 `gorm:"column:notification_id;not null"`
	Type           enums.NotificationType `gorm:"column:type;not null"`
	Title          string                 `gorm:"column:title;not null"`
	Message        string                 `gorm:"column:message;not null"`
	Link           *string                `gorm:"column:link"`
	ReadAt         *time.Time             `gorm:"column:read_at"`
	CreatedAt      time.Time              `gorm:"column:created_at;not null"`
}
