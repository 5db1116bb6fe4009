package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultPollInterval = 30 * time.Second

// Poller is an optional in-process trigger for deployments without an
// external cron: it invokes one due-job batch per tick. The engine stays
// correct with any number of pollers running; the per-row claim absorbs
// overlap.
type Poller struct {
	engine    *Engine
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

func NewPoller(engine *Engine, interval time.Duration, batchSize int, logger *zap.Logger) (*Poller, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		engine:    engine,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}, nil
}

// Start blocks until the context is cancelled, running one batch per tick.
func (p *Poller) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial batch so already-due jobs do not wait for the first
	// ticker edge.
	p.runBatch(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.runBatch(ctx)
		}
	}
}

func (p *Poller) runBatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	summary := p.engine.ProcessDueJobs(ctx, p.batchSize)
	if len(summary.Errors) > 0 {
		p.logger.Warn("poll batch finished with errors",
			zap.Int("processed", summary.Processed),
			zap.Strings("errors", summary.Errors),
		)
	}
}
