package models

import "time"

// UserContact holds the addresses each external channel delivers to.
type UserContact struct {
	UserID       string    `gorm:"column:user_id;primaryKey"`
	Email        *string   `gorm:"column:email"`
	Phone        *string   `gorm:"column:phone"`
	PushEndpoint *string   `gorm:"column:push_endpoint"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}
