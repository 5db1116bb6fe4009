package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rankpilot/delivery-engine/internal/dispatch"
	"github.com/rankpilot/delivery-engine/internal/domain"
	"github.com/rankpilot/delivery-engine/internal/driver"
	"github.com/rankpilot/delivery-engine/internal/observability"
	"github.com/rankpilot/delivery-engine/internal/ratelimit"
	"github.com/rankpilot/delivery-engine/internal/repository"
)

const (
	// DefaultBatchSize bounds one due-job scan.
	DefaultBatchSize = 50

	// retryDelay is the fixed requeue delay. No exponential growth.
	defaultRetryDelay = 5 * time.Minute
)

// StatsRecorder bumps the sent/failed rollup counters per job outcome.
type StatsRecorder interface {
	RecordResult(ctx context.Context, tenantID string, channel domain.Channel, campaignID string, delivered bool)
}

// BatchSummary is the synchronous result of one due-job batch. A bad job
// lands in Errors instead of aborting the batch.
type BatchSummary struct {
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// Engine runs the scheduled-delivery state machine:
// PENDING -> SENDING -> {SENT | PENDING(retry) | FAILED}, plus
// PENDING -> CANCELLED from the outside. It holds no in-process queue; the
// backing store is the queue and the conditional SENDING claim is the only
// lock, so overlapping batches on separate instances stay safe.
type Engine struct {
	jobs       repository.JobRepository
	attempts   dispatch.AttemptWriter
	registry   *driver.Registry
	limiter    ratelimit.RateLimiter
	stats      StatsRecorder
	metrics    *observability.Metrics
	logger     *zap.Logger
	retryDelay time.Duration
	newID      func() string
	now        func() time.Time
}

type Params struct {
	Jobs       repository.JobRepository
	Attempts   dispatch.AttemptWriter
	Registry   *driver.Registry
	Limiter    ratelimit.RateLimiter
	Stats      StatsRecorder
	Logger     *zap.Logger
	RetryDelay time.Duration
}

func New(p Params) (*Engine, error) {
	if p.Jobs == nil {
		return nil, fmt.Errorf("job repository is required")
	}
	if p.Attempts == nil {
		return nil, fmt.Errorf("attempt writer is required")
	}
	if p.Registry == nil {
		return nil, fmt.Errorf("driver registry is required")
	}
	if p.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = defaultRetryDelay
	}
	return &Engine{
		jobs:       p.Jobs,
		attempts:   p.Attempts,
		registry:   p.Registry,
		limiter:    p.Limiter,
		stats:      p.Stats,
		logger:     p.Logger,
		retryDelay: p.RetryDelay,
		newID:      func() string { return uuid.NewString() },
		now:        time.Now,
	}, nil
}

func (e *Engine) SetMetrics(metrics *observability.Metrics) {
	if e == nil {
		return
	}
	e.metrics = metrics
}

// EnqueueJob validates and persists a new scheduled job, returning its id.
// The job becomes eligible for dispatch at or after DueAt.
func (e *Engine) EnqueueJob(ctx context.Context, job *domain.ScheduledJob) (string, error) {
	if job == nil {
		return "", fmt.Errorf("%w: job is required", domain.ErrValidation)
	}
	if job.ID == "" {
		job.ID = e.newID()
	}
	if job.Status == "" {
		job.Status = domain.JobPending
	}
	if job.Status != domain.JobPending {
		return "", fmt.Errorf("%w: new jobs must be PENDING (got %s)", domain.ErrValidation, job.Status)
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = domain.DefaultJobMaxRetries
	}
	if err := job.Validate(); err != nil {
		return "", err
	}

	if err := e.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("persisting job: %w", err)
	}

	e.logger.Info("job enqueued",
		zap.String("job_id", job.ID),
		zap.String("tenant_id", job.TenantID),
		zap.String("channel", job.Channel.String()),
		zap.Time("due_at", job.DueAt),
	)
	return job.ID, nil
}

// CancelJob cancels a job that has not been claimed yet. Once a worker holds
// the SENDING lock the in-flight send runs to completion and Cancel returns
// ErrConflict.
func (e *Engine) CancelJob(ctx context.Context, id string) error {
	return e.jobs.Cancel(ctx, id)
}

// ProcessDueJobs scans one bounded batch of due jobs and drives each through
// the state machine to completion. It returns a summary instead of an error:
// one broken job must not abort its batch. Safe to invoke concurrently; the
// per-row claim makes the doubled work a no-op.
func (e *Engine) ProcessDueJobs(ctx context.Context, batchSize int) BatchSummary {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var summary BatchSummary

	due, err := e.jobs.GetDue(ctx, e.now(), batchSize)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("scanning due jobs: %v", err))
		return summary
	}

	for i := range due {
		job, err := e.jobs.ClaimForSending(ctx, due[i].ID)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("claiming job %s: %v", due[i].ID, err))
			continue
		}
		if job == nil {
			// Another worker claimed it, or it was cancelled between scan
			// and claim.
			continue
		}

		summary.Processed++
		if e.deliverJob(ctx, job, &summary) {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}

	e.logger.Info("due-job batch complete",
		zap.Int("processed", summary.Processed),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary
}

// deliverJob performs the single send for a claimed job, audits it, and moves
// the job to its next state. Returns true when the job reached SENT.
func (e *Engine) deliverJob(ctx context.Context, job *domain.ScheduledJob, summary *BatchSummary) bool {
	channel := job.Channel.String()
	e.metrics.IncJobInFlight(channel)
	start := e.now()
	result, sendErr := e.send(ctx, job)
	e.metrics.ObserveSendDuration(channel, time.Since(start))
	e.metrics.DecJobInFlight(channel)

	e.auditJob(ctx, job, result, sendErr)

	campaign := ""
	if job.CampaignID != nil {
		campaign = *job.CampaignID
	}

	if sendErr == nil {
		var messageID *string
		if result != nil && result.MessageID != "" {
			messageID = &result.MessageID
		}
		if err := e.jobs.MarkSent(ctx, job.ID, e.now(), messageID); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("marking job %s sent: %v", job.ID, err))
		}
		e.metrics.IncDelivery(channel, domain.AttemptSent.String())
		if e.stats != nil {
			e.stats.RecordResult(ctx, job.TenantID, job.Channel, campaign, true)
		}
		return true
	}

	if job.CanRetry() {
		nextRetryAt := e.now().Add(e.retryDelay)
		if err := e.jobs.MarkForRetry(ctx, job.ID, nextRetryAt, sendErr.Error()); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("requeueing job %s: %v", job.ID, err))
		}
		e.metrics.IncRetryScheduled(channel)
		e.logger.Warn("job send failed, requeued",
			zap.String("job_id", job.ID),
			zap.Int("retry_count", job.RetryCount+1),
			zap.Time("next_retry_at", nextRetryAt),
			zap.Error(sendErr),
		)
		return false
	}

	if err := e.jobs.MarkFailed(ctx, job.ID, sendErr.Error()); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("failing job %s: %v", job.ID, err))
	}
	e.metrics.IncDelivery(channel, domain.AttemptFailed.String())
	if e.stats != nil {
		e.stats.RecordResult(ctx, job.TenantID, job.Channel, campaign, false)
	}
	e.logger.Error("job retries exhausted",
		zap.String("job_id", job.ID),
		zap.Int("retry_count", job.RetryCount),
		zap.Error(sendErr),
	)
	return false
}

func (e *Engine) send(ctx context.Context, job *domain.ScheduledJob) (result *driver.SendResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("driver panic: %v", r)
		}
	}()

	drv, ok := e.registry.Lookup(job.Channel)
	if !ok {
		return nil, fmt.Errorf("no driver registered for channel %s", job.Channel)
	}

	if err := e.limiter.Wait(ctx, job.Channel.String()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	payload := driver.Payload{Body: job.Content}
	if job.Subject != nil {
		payload.Subject = *job.Subject
	}
	return drv.Send(ctx, job.Recipient, payload)
}

// auditJob appends the delivery attempt row before any state transition so a
// crash between send and update still leaves a trace. Audit failures are
// logged, never propagated.
func (e *Engine) auditJob(ctx context.Context, job *domain.ScheduledJob, result *driver.SendResult, sendErr error) {
	attempt := &domain.DeliveryAttempt{
		ID:        e.newID(),
		TenantID:  job.TenantID,
		JobID:     &job.ID,
		Channel:   job.Channel,
		Target:    job.Recipient,
		Status:    domain.AttemptSent,
		CreatedAt: e.now(),
	}
	if result != nil && result.StatusCode != 0 {
		code := result.StatusCode
		attempt.StatusCode = &code
	}
	if sendErr != nil {
		attempt.Status = domain.AttemptFailed
		msg := sendErr.Error()
		attempt.Error = &msg
	}

	if err := e.attempts.Create(ctx, attempt); err != nil {
		e.logger.Error("persisting job attempt failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
}
