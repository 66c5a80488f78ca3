package preferences

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/flightnotify/pkg/db/models"
	"github.com/angelmondragon/flightnotify/pkg/types"
)

// Repository loads and stores preference documents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Get returns the stored document, or the defaults when the user has none.
	Get(ctx context.Context, userID string) (types.PreferenceDocument, error)
	Upsert(ctx context.Context, userID string, doc types.PreferenceDocument) error
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

func (r *repository) Get(ctx context.Context, userID string) (types.PreferenceDocument, error) {
	var row models.UserPreference
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.DefaultPreferenceDocument(), nil
	}
	if err != nil {
		return types.PreferenceDocument{}, err
	}
	return row.Document, nil
}

func (r *repository) Upsert(ctx context.Context, userID string, doc types.PreferenceDocument) error {
	row := models.UserPreference{UserID: userID, Document: doc}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"document", "updated_at"}),
	}).Create(&row).Error
}
