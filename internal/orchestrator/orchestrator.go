package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rankpilot/delivery-engine/internal/dispatch"
	"github.com/rankpilot/delivery-engine/internal/domain"
	"github.com/rankpilot/delivery-engine/internal/observability"
	"github.com/rankpilot/delivery-engine/internal/policy"
	"github.com/rankpilot/delivery-engine/internal/repository"
)

// PolicyGate decides whether a notification may go out.
type PolicyGate interface {
	Evaluate(ctx context.Context, n *domain.Notification, pref *domain.NotificationPreference) policy.Decision
}

// ChannelDispatcher fans a notification out to its enabled channels.
type ChannelDispatcher interface {
	Dispatch(ctx context.Context, n *domain.Notification, targets map[domain.Channel]string) []dispatch.Result
}

// Reviewer queues capped notifications for a human to look at.
type Reviewer interface {
	Push(ctx context.Context, tenantID, notificationID, reason string) error
}

// StatsRecorder bumps the sent/failed rollup counters per channel outcome.
type StatsRecorder interface {
	RecordResult(ctx context.Context, tenantID string, channel domain.Channel, campaignID string, delivered bool)
}

// Orchestrator is the producer-facing entry point of the alert pipeline:
// persist the notification, run the policy gate, then fan out. It never
// returns an error to the producer; every failure path degrades to a logged
// skip or fail record.
type Orchestrator struct {
	notifications repository.NotificationRepository
	preferences   repository.PreferenceRepository
	attempts      dispatch.AttemptWriter
	gate          PolicyGate
	dispatcher    ChannelDispatcher
	reviewer      Reviewer
	stats         StatsRecorder
	metrics       *observability.Metrics
	logger        *zap.Logger
	newID         func() string
	now           func() time.Time
}

type Params struct {
	Notifications repository.NotificationRepository
	Preferences   repository.PreferenceRepository
	Attempts      dispatch.AttemptWriter
	Gate          PolicyGate
	Dispatcher    ChannelDispatcher
	Reviewer      Reviewer
	Stats         StatsRecorder
	Logger        *zap.Logger
}

func New(p Params) (*Orchestrator, error) {
	if p.Notifications == nil || p.Preferences == nil || p.Attempts == nil {
		return nil, fmt.Errorf("notification, preference and attempt stores are required")
	}
	if p.Gate == nil || p.Dispatcher == nil {
		return nil, fmt.Errorf("policy gate and dispatcher are required")
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &Orchestrator{
		notifications: p.Notifications,
		preferences:   p.Preferences,
		attempts:      p.Attempts,
		gate:          p.Gate,
		dispatcher:    p.Dispatcher,
		reviewer:      p.Reviewer,
		stats:         p.Stats,
		logger:        p.Logger,
		newID:         func() string { return uuid.NewString() },
		now:           time.Now,
	}, nil
}

func (o *Orchestrator) SetMetrics(metrics *observability.Metrics) {
	if o == nil {
		return
	}
	o.metrics = metrics
}

// OrchestrateNotification runs the full alert path for one candidate
// notification. Fire-and-forget: the producer gets no error back, outcomes
// surface through the audit log and stats rollups.
func (o *Orchestrator) OrchestrateNotification(ctx context.Context, n *domain.Notification) {
	if n == nil {
		return
	}
	if n.ID == "" {
		n.ID = o.newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = o.now()
	}

	log := o.logger.With(
		zap.String("notification_id", n.ID),
		zap.String("tenant_id", n.TenantID),
	)

	if err := n.Validate(); err != nil {
		log.Warn("dropping invalid notification", zap.Error(err))
		return
	}

	if err := o.notifications.Create(ctx, n); err != nil {
		log.Error("persisting notification failed", zap.Error(err))
		return
	}

	pref, err := o.preferences.GetByTenant(ctx, n.TenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Info("tenant has no delivery preferences, skipping")
		} else {
			log.Error("loading preferences failed", zap.Error(err))
		}
		return
	}

	decision := o.gate.Evaluate(ctx, n, pref)
	if !decision.Proceed {
		o.metrics.IncGated(decision.Reason)
		o.recordSkip(ctx, n, pref, decision.Reason)
		if decision.Reason == policy.ReasonCircuitBreaker {
			o.queueForReview(ctx, n, decision.Reason)
		}
		log.Info("notification gated", zap.String("reason", decision.Reason))
		return
	}

	targets := pref.EnabledTargets()
	if len(targets) == 0 {
		log.Info("no enabled channels, skipping dispatch")
		return
	}

	results := o.dispatcher.Dispatch(ctx, n, targets)
	sent := 0
	for _, result := range results {
		delivered := result.Status == domain.AttemptSent
		if delivered {
			sent++
		}
		o.metrics.IncDelivery(result.Channel.String(), result.Status.String())
		if o.stats != nil {
			o.stats.RecordResult(ctx, n.TenantID, result.Channel, "", delivered)
		}
	}

	log.Info("notification dispatched",
		zap.Int("channels", len(results)),
		zap.Int("sent", sent),
	)
}

// recordSkip writes one SKIPPED audit row per enabled channel so a tenant can
// see what the gate suppressed and why.
func (o *Orchestrator) recordSkip(ctx context.Context, n *domain.Notification, pref *domain.NotificationPreference, reason string) {
	for channel, target := range pref.EnabledTargets() {
		attempt := &domain.DeliveryAttempt{
			ID:             o.newID(),
			TenantID:       n.TenantID,
			NotificationID: &n.ID,
			Channel:        channel,
			Target:         target,
			Status:         domain.AttemptSkipped,
			Error:          &reason,
			CreatedAt:      o.now(),
		}
		if err := o.attempts.Create(ctx, attempt); err != nil {
			o.logger.Error("persisting skip attempt failed",
				zap.String("notification_id", n.ID),
				zap.String("channel", channel.String()),
				zap.Error(err),
			)
		}
	}
}

func (o *Orchestrator) queueForReview(ctx context.Context, n *domain.Notification, reason string) {
	if o.reviewer == nil {
		return
	}
	if err := o.reviewer.Push(ctx, n.TenantID, n.ID, reason); err != nil {
		o.logger.Error("queueing notification for review failed",
			zap.String("notification_id", n.ID),
			zap.Error(err),
		)
	}
}
