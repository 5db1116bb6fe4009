package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rankpilot/delivery-engine/internal/domain"
	"github.com/rankpilot/delivery-engine/internal/driver"
	"github.com/rankpilot/delivery-engine/internal/ratelimit"
)

// AttemptWriter persists one audit row per channel send.
type AttemptWriter interface {
	Create(ctx context.Context, attempt *domain.DeliveryAttempt) error
}

// Result is the settled outcome of one channel invocation.
type Result struct {
	Channel    domain.Channel
	Target     string
	Status     domain.AttemptStatus
	StatusCode *int
	MessageID  string
	Err        error
}

// Dispatcher fans a notification out to every enabled channel concurrently.
// Channels settle independently: one channel's failure or panic never cancels
// the others, and Dispatch returns only after all of them finish. Drivers do
// not retry; a failed channel is audited and left to the scheduled engine.
type Dispatcher struct {
	registry *driver.Registry
	attempts AttemptWriter
	limiter  ratelimit.RateLimiter
	logger   *zap.Logger
	newID    func() string
	now      func() time.Time
}

func NewDispatcher(registry *driver.Registry, attempts AttemptWriter, limiter ratelimit.RateLimiter, logger *zap.Logger) (*Dispatcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("driver registry is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt writer is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		registry: registry,
		attempts: attempts,
		limiter:  limiter,
		logger:   logger,
		newID:    func() string { return uuid.NewString() },
		now:      time.Now,
	}, nil
}

// Dispatch sends the notification to every target concurrently and persists a
// DeliveryAttempt per channel before returning. Results come back sorted by
// channel name.
func (d *Dispatcher) Dispatch(ctx context.Context, n *domain.Notification, targets map[domain.Channel]string) []Result {
	if n == nil || len(targets) == 0 {
		return nil
	}

	channels := make([]domain.Channel, 0, len(targets))
	for channel := range targets {
		channels = append(channels, channel)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })

	payload := driver.Payload{
		Subject: n.Title,
		Body:    n.Description,
		Data:    n.Data,
	}

	results := make([]Result, len(channels))
	g, gctx := errgroup.WithContext(ctx)
	for i, channel := range channels {
		g.Go(func() error {
			results[i] = d.sendOne(gctx, n, channel, targets[channel], payload)
			return nil
		})
	}
	// Goroutines always return nil; Wait only synchronizes.
	_ = g.Wait()

	return results
}

func (d *Dispatcher) sendOne(ctx context.Context, n *domain.Notification, channel domain.Channel, target string, payload driver.Payload) (result Result) {
	result = Result{Channel: channel, Target: target, Status: domain.AttemptFailed}
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("driver panic: %v", r)
			result.Status = domain.AttemptFailed
			d.logger.Error("channel driver panicked",
				zap.String("channel", channel.String()),
				zap.String("notification_id", n.ID),
				zap.Any("panic", r),
			)
		}
		d.persistAttempt(ctx, n, result)
	}()

	drv, ok := d.registry.Lookup(channel)
	if !ok {
		result.Err = fmt.Errorf("no driver registered for channel %s", channel)
		return result
	}

	if err := d.limiter.Wait(ctx, channel.String()); err != nil {
		result.Err = fmt.Errorf("rate limit wait: %w", err)
		return result
	}

	res, err := drv.Send(ctx, target, payload)
	if res != nil && res.StatusCode != 0 {
		code := res.StatusCode
		result.StatusCode = &code
	}
	if err != nil {
		result.Err = err
		return result
	}

	result.Status = domain.AttemptSent
	if res != nil {
		result.MessageID = res.MessageID
	}
	return result
}

// persistAttempt writes the audit row. A write failure is logged and
// swallowed: losing one audit row must not turn a delivered notification into
// a failed one.
func (d *Dispatcher) persistAttempt(ctx context.Context, n *domain.Notification, result Result) {
	attempt := &domain.DeliveryAttempt{
		ID:             d.newID(),
		TenantID:       n.TenantID,
		NotificationID: &n.ID,
		Channel:        result.Channel,
		Target:         result.Target,
		Status:         result.Status,
		StatusCode:     result.StatusCode,
		CreatedAt:      d.now(),
	}
	if result.Err != nil {
		msg := result.Err.Error()
		attempt.Error = &msg
	}

	if err := d.attempts.Create(ctx, attempt); err != nil {
		d.logger.Error("persisting delivery attempt failed",
			zap.String("notification_id", n.ID),
			zap.String("channel", result.Channel.String()),
			zap.Error(err),
		)
	}
}
