package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/rankpilot/delivery-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StatsQueryParams struct {
	TenantID   string
	From       time.Time
	To         time.Time
	Channel    *domain.Channel
	CampaignID *string
}

type StatsRepository interface {
	// Increment upserts the rollup row keyed by (tenant, date, channel,
	// campaign) and bumps the named counter by one.
	Increment(ctx context.Context, key domain.StatsRollup, counter domain.StatCounter) error
	Query(ctx context.Context, params StatsQueryParams) ([]domain.StatsRollup, error)
}

type GormStatsRepo struct {
	db *gorm.DB
}

func NewGormStatsRepo(db *gorm.DB) *GormStatsRepo {
	return &GormStatsRepo{db: db}
}

func (r *GormStatsRepo) Increment(ctx context.Context, key domain.StatsRollup, counter domain.StatCounter) error {
	// The counter name becomes a column reference; only whitelisted values
	// may pass.
	if !counter.IsValid() {
		return fmt.Errorf("%w: invalid stat counter %q", domain.ErrValidation, counter)
	}

	column := counter.String()
	model := StatsRollupModel{
		TenantID:   key.TenantID,
		Date:       key.Date.UTC().Truncate(24 * time.Hour),
		Channel:    key.Channel,
		CampaignID: key.CampaignID,
	}

	switch counter {
	case domain.StatSent:
		model.Sent = 1
	case domain.StatDelivered:
		model.Delivered = 1
	case domain.StatOpened:
		model.Opened = 1
	case domain.StatClicked:
		model.Clicked = 1
	case domain.StatBounced:
		model.Bounced = 1
	case domain.StatFailed:
		model.Failed = 1
	case domain.StatUnsubscribed:
		model.Unsubscribed = 1
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"}, {Name: "date"}, {Name: "channel"}, {Name: "campaign_id"},
			},
			DoUpdates: clause.Assignments(map[string]any{
				column: gorm.Expr(fmt.Sprintf("delivery_stats_rollups.%s + 1", column)),
			}),
		}).
		Create(&model).Error
}

func (r *GormStatsRepo) Query(ctx context.Context, params StatsQueryParams) ([]domain.StatsRollup, error) {
	query := r.db.WithContext(ctx).Model(&StatsRollupModel{})

	if params.TenantID != "" {
		query = query.Where("tenant_id = ?", params.TenantID)
	}
	if !params.From.IsZero() {
		query = query.Where("date >= ?", params.From.UTC().Truncate(24*time.Hour))
	}
	if !params.To.IsZero() {
		query = query.Where("date <= ?", params.To.UTC().Truncate(24*time.Hour))
	}
	if params.Channel != nil {
		query = query.Where("channel = ?", *params.Channel)
	}
	if params.CampaignID != nil {
		query = query.Where("campaign_id = ?", *params.CampaignID)
	}

	var models []StatsRollupModel
	if err := query.Order("date ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	rollups := make([]domain.StatsRollup, 0, len(models))
	for i := range models {
		rollups = append(rollups, *rollupModelToDomain(&models[i]))
	}

	return rollups, nil
}
