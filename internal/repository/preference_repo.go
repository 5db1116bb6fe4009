package repository

import (
	"context"
	"errors"

	"github.com/rankpilot/delivery-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PreferenceRepository interface {
	GetByTenant(ctx context.Context, tenantID string) (*domain.NotificationPreference, error)
	Upsert(ctx context.Context, pref *domain.NotificationPreference) error
}

type GormPreferenceRepo struct {
	db *gorm.DB
}

func NewGormPreferenceRepo(db *gorm.DB) *GormPreferenceRepo {
	return &GormPreferenceRepo{db: db}
}

func (r *GormPreferenceRepo) GetByTenant(ctx context.Context, tenantID string) (*domain.NotificationPreference, error) {
	var model PreferenceModel
	err := r.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return preferenceModelToDomain(&model)
}

func (r *GormPreferenceRepo) Upsert(ctx context.Context, pref *domain.NotificationPreference) error {
	model, err := preferenceModelFromDomain(pref)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"threshold", "allowed_types", "channels",
				"quiet_start_hour", "quiet_end_hour", "quiet_timezone",
				"weekend_suppress", "daily_cap", "updated_at",
			}),
		}).
		Create(model).Error
}
