package stats

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rankpilot/delivery-engine/internal/domain"
	"github.com/rankpilot/delivery-engine/internal/repository"
)

// Summary is one rollup row with its derived rates. Rates are computed on
// read and never stored.
type Summary struct {
	domain.StatsRollup
	DeliveryRate float64
	OpenRate     float64
	ClickRate    float64
}

// Aggregator maintains the per-day delivery rollups. Record is called from
// the hot delivery path, so a failed upsert is logged and swallowed rather
// than propagated.
type Aggregator struct {
	repo   repository.StatsRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewAggregator(repo repository.StatsRepository, logger *zap.Logger) (*Aggregator, error) {
	if repo == nil {
		return nil, fmt.Errorf("stats repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{repo: repo, logger: logger, now: time.Now}, nil
}

// Record bumps one counter on today's rollup row for the tenant/channel/
// campaign key. CampaignID is empty for alert traffic.
func (a *Aggregator) Record(ctx context.Context, tenantID string, channel domain.Channel, campaignID string, counter domain.StatCounter) {
	key := domain.StatsRollup{
		TenantID:   tenantID,
		Date:       a.now().UTC().Truncate(24 * time.Hour),
		Channel:    channel,
		CampaignID: campaignID,
	}
	if err := a.repo.Increment(ctx, key, counter); err != nil {
		a.logger.Warn("stats increment failed",
			zap.String("tenant_id", tenantID),
			zap.String("channel", channel.String()),
			zap.String("counter", counter.String()),
			zap.Error(err),
		)
	}
}

// RecordResult maps a delivery outcome to the sent or failed counter.
func (a *Aggregator) RecordResult(ctx context.Context, tenantID string, channel domain.Channel, campaignID string, delivered bool) {
	counter := domain.StatFailed
	if delivered {
		counter = domain.StatSent
	}
	a.Record(ctx, tenantID, channel, campaignID, counter)
}

// Summarize queries rollup rows and attaches derived rates.
func (a *Aggregator) Summarize(ctx context.Context, params repository.StatsQueryParams) ([]Summary, error) {
	rows, err := a.repo.Query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("querying stats rollups: %w", err)
	}

	summaries := make([]Summary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, Summary{
			StatsRollup:  row,
			DeliveryRate: row.DeliveryRate(),
			OpenRate:     row.OpenRate(),
			ClickRate:    row.ClickRate(),
		})
	}
	return summaries, nil
}
