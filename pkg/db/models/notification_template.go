package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/flightnotify/pkg/enums"
)

// NotificationTemplate is a versioned body for a (type, channel) pair.
type NotificationTemplate struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Type      enums.NotificationType `gorm:"column:type;not null"`
	Channel   enums.Channel          `gorm:"column:channel;not null"`
	Version   int                    `gorm:"column:version;not null"`
	Active    bool                   `gorm:"column:active;not null"`
	Subject   string                 `gorm:"column:subject;not null"`
	BodyHTML  string                 `gorm:"column:body_html;not null"`
	BodyText  string                 `gorm:"column:body_text;not null"`
	CreatedAt time.Time              `gorm:"column:created_at;not null"`
}
