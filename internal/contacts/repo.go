// Package contacts stores where each user can be reached on the external
// channels.
package contacts

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/flightnotify/pkg/db/models"
)

// Repository persists user contact rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Get returns nil when the user has no contact row.
	Get(ctx context.Context, userID string) (*models.UserContact, error)
	Upsert(ctx context.Context, contact *models.UserContact) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, userID string) (*models.UserContact, error) {
	var contact models.UserContact
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *repository) Upsert(ctx context.Context, contact *models.UserContact) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "phone", "push_endpoint", "updated_at"}),
	}).Create(contact).Error
}
