package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rankpilot/delivery-engine/internal/domain"
	"gorm.io/gorm"
)

type JobRepository interface {
	Create(ctx context.Context, j *domain.ScheduledJob) error
	GetByID(ctx context.Context, id string) (*domain.ScheduledJob, error)
	// GetDue returns pending jobs whose due time (and, for requeued jobs,
	// retry time) has passed, oldest due first.
	GetDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJob, error)
	// ClaimForSending is the per-row dispatch lock: a conditional
	// PENDING -> SENDING update. It returns (nil, nil) when another worker
	// already claimed the job or the job left PENDING.
	ClaimForSending(ctx context.Context, id string) (*domain.ScheduledJob, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time, providerMessageID *string) error
	// MarkForRetry re-queues a failed job: retry_count+1, status PENDING,
	// next_retry_at set.
	MarkForRetry(ctx context.Context, id string, nextRetryAt time.Time, errorMessage string) error
	MarkFailed(ctx context.Context, id string, errorMessage string) error
	// Cancel succeeds only from PENDING. A job in any other state is
	// ErrConflict; an unknown id is ErrNotFound.
	Cancel(ctx context.Context, id string) error
}

type GormJobRepo struct {
	db *gorm.DB
}

func NewGormJobRepo(db *gorm.DB) *GormJobRepo {
	return &GormJobRepo{db: db}
}

func (r *GormJobRepo) Create(ctx context.Context, j *domain.ScheduledJob) error {
	model := jobModelFromDomain(j)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if j != nil {
		*j = *jobModelToDomain(model)
	}
	return nil
}

func (r *GormJobRepo) GetByID(ctx context.Context, id string) (*domain.ScheduledJob, error) {
	var model JobModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return jobModelToDomain(&model), nil
}

func (r *GormJobRepo) GetDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJob, error) {
	var models []JobModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_at <= ? AND (next_retry_at IS NULL OR next_retry_at <= ?)",
			domain.JobPending, now, now).
		Order("due_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	jobs := make([]domain.ScheduledJob, 0, len(models))
	for i := range models {
		jobs = append(jobs, *jobModelToDomain(&models[i]))
	}

	return jobs, nil
}

func (r *GormJobRepo) ClaimForSending(ctx context.Context, id string) (*domain.ScheduledJob, error) {
	result := r.db.WithContext(ctx).
		Model(&JobModel{}).
		Where("id = ? AND status = ?", id, domain.JobPending).
		Update("status", domain.JobSending)
	if result.Error != nil {
		return nil, result.Error
	}
	// Zero rows means a concurrent worker won the claim or the job left
	// PENDING (cancelled, already sent). Not an error.
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var model JobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return jobModelToDomain(&model), nil
}

func (r *GormJobRepo) MarkSent(ctx context.Context, id string, sentAt time.Time, providerMessageID *string) error {
	updates := map[string]any{
		"status":        domain.JobSent,
		"sent_at":       sentAt,
		"next_retry_at": nil,
		"error_message": nil,
	}
	if providerMessageID != nil {
		updates["provider_message_id"] = *providerMessageID
	}

	result := r.db.WithContext(ctx).
		Model(&JobModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormJobRepo) MarkForRetry(ctx context.Context, id string, nextRetryAt time.Time, errorMessage string) error {
	result := r.db.WithContext(ctx).
		Model(&JobModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.JobPending,
			"next_retry_at": nextRetryAt,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"error_message": errorMessage,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormJobRepo) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	result := r.db.WithContext(ctx).
		Model(&JobModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.JobFailed,
			"error_message": errorMessage,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormJobRepo) Cancel(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&JobModel{}).
		Where("id = ? AND status = ?", id, domain.JobPending).
		Update("status", domain.JobCancelled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Zero rows is either a missing job or one that already left
		// PENDING; look it up to tell the two apart.
		var model JobModel
		err := r.db.WithContext(ctx).Select("id").First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return domain.ErrConflict
	}
	return nil
}
