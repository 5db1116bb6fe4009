package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rankpilot/delivery-engine/internal/domain"
)

func TestPollerProcessesDueJobs(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	id := h.enqueue(t, h.now.Add(-time.Minute), 2)

	poller, err := NewPoller(h.engine, 5*time.Millisecond, 10, nil)
	if err != nil {
		t.Fatalf("NewPoller() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- poller.Start(ctx) }()

	deadline := time.After(time.Second)
	for {
		j := h.job(t, id)
		if j.Status == domain.JobSent {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job never sent, status = %s", j.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func TestPollerRequiresEngine(t *testing.T) {
	t.Parallel()

	if _, err := NewPoller(nil, time.Second, 10, nil); err == nil {
		t.Fatal("expected error for nil engine")
	}
}
