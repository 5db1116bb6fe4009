package policy

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rankpilot/delivery-engine/internal/domain"
)

// Skip reasons recorded on audit rows when the gate rejects a notification.
const (
	ReasonBelowThreshold = "severity below threshold"
	ReasonTypeFiltered   = "event type not allowed"
	ReasonQuietHours     = "quiet hours"
	ReasonCircuitBreaker = "circuit breaker"
)

// DailyCounter reports how many notifications a tenant has accepted since a
// point in time, excluding the one identified by excludeID. Backed by the
// notification store so the count survives restarts.
type DailyCounter interface {
	CountForTenantSince(ctx context.Context, tenantID, excludeID string, since time.Time) (int64, error)
}

// Decision is the outcome of a gate evaluation. When Proceed is false, Reason
// carries the first check that failed.
type Decision struct {
	Proceed bool
	Reason  string
}

// Gate decides whether a candidate notification may be dispatched for a
// tenant. Checks run in a fixed order and the first failure short-circuits.
type Gate struct {
	counter DailyCounter
	logger  *zap.Logger
	now     func() time.Time
}

func NewGate(counter DailyCounter, logger *zap.Logger) (*Gate, error) {
	if counter == nil {
		return nil, fmt.Errorf("daily counter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{counter: counter, logger: logger, now: time.Now}, nil
}

// Evaluate applies severity threshold, type filter, quiet hours and the daily
// volume cap, in that order. A counter read failure fails open: capping is a
// protection, not a correctness guarantee, and a Redis or database blip must
// not silence alerts.
func (g *Gate) Evaluate(ctx context.Context, n *domain.Notification, pref *domain.NotificationPreference) Decision {
	if n == nil || pref == nil {
		return Decision{Proceed: false, Reason: ReasonTypeFiltered}
	}

	if n.Severity.Rank() < pref.Threshold.ThresholdRank() {
		return Decision{Proceed: false, Reason: ReasonBelowThreshold}
	}

	if !pref.AllowsType(n.EventType) {
		return Decision{Proceed: false, Reason: ReasonTypeFiltered}
	}

	now := g.now()
	if pref.QuietHours.Suppresses(now) {
		return Decision{Proceed: false, Reason: ReasonQuietHours}
	}

	if pref.DailyCap > 0 {
		day := now.UTC()
		midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		// The notification under evaluation is already persisted; count only
		// the prior ones so a cap of N lets N through before tripping.
		count, err := g.counter.CountForTenantSince(ctx, pref.TenantID, n.ID, midnight)
		if err != nil {
			g.logger.Warn("daily cap check failed, proceeding without cap",
				zap.String("tenant_id", pref.TenantID),
				zap.Error(err),
			)
		} else if count >= int64(pref.DailyCap) {
			return Decision{Proceed: false, Reason: ReasonCircuitBreaker}
		}
	}

	return Decision{Proceed: true}
}
