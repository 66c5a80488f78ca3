package models

import (
	"time"

	"github.com/angelmondragon/flightnotify/pkg/types"
)

type UserPreference struct {
	UserID    string                   `gorm:"column:user_id;primaryKey"`
	Document  types.PreferenceDocument `gorm:"column:document;type:jsonb;not null"`
	UpdatedAt time.Time                `gorm:"column:updated_at;not null"`
}
