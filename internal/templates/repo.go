package templates

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/flightnotify/pkg/db/models"
	"github.com/angelmondragon/flightnotify/pkg/enums"
)

// Repository persists versioned templates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// CreateVersion stores tpl as the next version of its (type, channel)
	// pair and sets tpl.Version accordingly.
	CreateVersion(ctx context.Context, tpl *models.NotificationTemplate) error
	FindActive(ctx context.Context, notificationType enums.NotificationType, channel enums.Channel) (*models.NotificationTemplate, error)
	List(ctx context.Context, filter ListFilter) ([]models.NotificationTemplate, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (bool, error)
}

// ListFilter narrows template listings; zero values match everything.
type ListFilter struct {
	Type    enums.NotificationType
	Channel enums.Channel
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

func (r *repository) CreateVersion(ctx context.Context, tpl *models.NotificationTemplate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int
		err := tx.Model(&models.NotificationTemplate{}).
			Select("COALESCE(MAX(version), 0)").
			Where("type = ? AND channel = ?", tpl.Type, tpl.Channel).
			Scan(&current).Error
		if err != nil {
			return err
		}
		tpl.Version = current + 1
		if tpl.ID == uuid.Nil {
			tpl.ID = uuid.New()
		}
		return tx.Create(tpl).Error
	})
}

func (r *repository) FindActive(ctx context.Context, notificationType enums.NotificationType, channel enums.Channel) (*models.NotificationTemplate, error) {
	var tpl models.NotificationTemplate
	err := r.db.WithContext(ctx).
		Where("type = ? AND channel = ? AND active = ?", notificationType, channel, true).
		Order("version DESC").
		Take(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.NotificationTemplate, error) {
	query := r.db.WithContext(ctx).Model(&models.NotificationTemplate{})
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Channel != "" {
		query = query.Where("channel = ?", filter.Channel)
	}
	var rows []models.NotificationTemplate
	if err := query.Order("type ASC, channel ASC, version DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.NotificationTemplate{}).
		Where("id = ?", id).
		UpdateColumn("active", active)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
