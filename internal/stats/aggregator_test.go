package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rankpilot/delivery-engine/internal/domain"
	"github.com/rankpilot/delivery-engine/internal/repository"
)

type fakeStatsRepo struct {
	increments []struct {
		key     domain.StatsRollup
		counter domain.StatCounter
	}
	incrementErr error
	rows         []domain.StatsRollup
	queryErr     error
}

func (f *fakeStatsRepo) Increment(_ context.Context, key domain.StatsRollup, counter domain.StatCounter) error {
	f.increments = append(f.increments, struct {
		key     domain.StatsRollup
		counter domain.StatCounter
	}{key, counter})
	return f.incrementErr
}

func (f *fakeStatsRepo) Query(context.Context, repository.StatsQueryParams) ([]domain.StatsRollup, error) {
	return f.rows, f.queryErr
}

func TestAggregatorRecordKeysByUTCDay(t *testing.T) {
	t.Parallel()

	repo := &fakeStatsRepo{}
	agg, err := NewAggregator(repo, nil)
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}
	agg.now = func() time.Time {
		return time.Date(2026, time.March, 2, 23, 45, 0, 0, time.UTC)
	}

	agg.Record(context.Background(), "tenant-1", domain.ChannelEmail, "camp-1", domain.StatDelivered)

	if len(repo.increments) != 1 {
		t.Fatalf("got %d increments, want 1", len(repo.increments))
	}
	inc := repo.increments[0]
	wantDate := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	if !inc.key.Date.Equal(wantDate) {
		t.Errorf("date = %v, want %v", inc.key.Date, wantDate)
	}
	if inc.key.TenantID != "tenant-1" || inc.key.Channel != domain.ChannelEmail || inc.key.CampaignID != "camp-1" {
		t.Errorf("key = %+v", inc.key)
	}
	if inc.counter != domain.StatDelivered {
		t.Errorf("counter = %s, want delivered", inc.counter)
	}
}

func TestAggregatorRecordResult(t *testing.T) {
	t.Parallel()

	repo := &fakeStatsRepo{}
	agg, err := NewAggregator(repo, nil)
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}

	agg.RecordResult(context.Background(), "tenant-1", domain.ChannelChat, "", true)
	agg.RecordResult(context.Background(), "tenant-1", domain.ChannelChat, "", false)

	if len(repo.increments) != 2 {
		t.Fatalf("got %d increments, want 2", len(repo.increments))
	}
	if repo.increments[0].counter != domain.StatSent {
		t.Errorf("first counter = %s, want sent", repo.increments[0].counter)
	}
	if repo.increments[1].counter != domain.StatFailed {
		t.Errorf("second counter = %s, want failed", repo.increments[1].counter)
	}
}

func TestAggregatorRecordSwallowsErrors(t *testing.T) {
	t.Parallel()

	repo := &fakeStatsRepo{incrementErr: errors.New("deadlock detected")}
	agg, err := NewAggregator(repo, nil)
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}

	// Must not panic or propagate.
	agg.Record(context.Background(), "tenant-1", domain.ChannelEmail, "", domain.StatSent)
}

func TestAggregatorSummarizeDerivesRates(t *testing.T) {
	t.Parallel()

	repo := &fakeStatsRepo{rows: []domain.StatsRollup{
		{TenantID: "tenant-1", Channel: domain.ChannelEmail, Sent: 100, Delivered: 80, Opened: 40, Clicked: 10},
		{TenantID: "tenant-1", Channel: domain.ChannelSMS},
	}}
	agg, err := NewAggregator(repo, nil)
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}

	summaries, err := agg.Summarize(context.Background(), repository.StatsQueryParams{TenantID: "tenant-1"})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}

	first := summaries[0]
	if first.DeliveryRate != 0.8 {
		t.Errorf("delivery rate = %v, want 0.8", first.DeliveryRate)
	}
	if first.OpenRate != 0.5 {
		t.Errorf("open rate = %v, want 0.5", first.OpenRate)
	}
	if first.ClickRate != 0.25 {
		t.Errorf("click rate = %v, want 0.25", first.ClickRate)
	}

	// Zero counters must not divide by zero.
	second := summaries[1]
	if second.DeliveryRate != 0 || second.OpenRate != 0 || second.ClickRate != 0 {
		t.Errorf("zero-row rates = %+v, want all zero", second)
	}
}

func TestAggregatorSummarizeWrapsError(t *testing.T) {
	t.Parallel()

	repo := &fakeStatsRepo{queryErr: errors.New("relation missing")}
	agg, err := NewAggregator(repo, nil)
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}

	if _, err := agg.Summarize(context.Background(), repository.StatsQueryParams{}); err == nil {
		t.Fatal("expected error from failing query")
	}
}
