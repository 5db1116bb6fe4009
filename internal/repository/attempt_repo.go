package repository

import (
	"context"
	"time"

	"github.com/rankpilot/delivery-engine/internal/domain"
	"gorm.io/gorm"
)

type AttemptListParams struct {
	TenantID       string
	NotificationID *string
	JobID          *string
	Channel        *domain.Channel
	Status         *domain.AttemptStatus
	From           *time.Time
	To             *time.Time
	Page           int
	PageSize       int
}

type AttemptRepository interface {
	Create(ctx context.Context, a *domain.DeliveryAttempt) error
	List(ctx context.Context, params AttemptListParams) ([]domain.DeliveryAttempt, int64, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	model := attemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if a != nil {
		*a = *attemptModelToDomain(model)
	}
	return nil
}

func (r *GormAttemptRepo) List(ctx context.Context, params AttemptListParams) ([]domain.DeliveryAttempt, int64, error) {
	query := r.db.WithContext(ctx).Model(&AttemptModel{})

	if params.TenantID != "" {
		query = query.Where("tenant_id = ?", params.TenantID)
	}
	if params.NotificationID != nil {
		query = query.Where("notification_id = ?", *params.NotificationID)
	}
	if params.JobID != nil {
		query = query.Where("job_id = ?", *params.JobID)
	}
	if params.Channel != nil {
		query = query.Where("channel = ?", *params.Channel)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []AttemptModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	attempts := make([]domain.DeliveryAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}

	return attempts, total, nil
}
