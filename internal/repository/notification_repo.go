package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rankpilot/delivery-engine/internal/domain"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	// CountForTenantSince backs the daily volume cap. It counts prior
	// notifications only: the row identified by excludeID (the notification
	// under evaluation, already persisted) is left out. The counter is durable
	// so concurrent instances share one view of a tenant's volume.
	CountForTenantSince(ctx context.Context, tenantID, excludeID string, since time.Time) (int64, error)
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	model, err := notificationModelFromDomain(n)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model)
}

func (r *GormNotificationRepo) CountForTenantSince(ctx context.Context, tenantID, excludeID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("tenant_id = ? AND id <> ? AND created_at >= ?", tenantID, excludeID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
