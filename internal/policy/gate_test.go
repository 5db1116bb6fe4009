package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rankpilot/delivery-engine/internal/domain"
)

type fakeCounter struct {
	count     int64
	err       error
	excludeID string
	since     time.Time
}

func (f *fakeCounter) CountForTenantSince(_ context.Context, _ string, excludeID string, since time.Time) (int64, error) {
	f.excludeID = excludeID
	f.since = since
	return f.count, f.err
}

func newTestGate(t *testing.T, counter DailyCounter, at time.Time) *Gate {
	t.Helper()

	gate, err := NewGate(counter, nil)
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}
	gate.now = func() time.Time { return at }
	return gate
}

func basePreference() *domain.NotificationPreference {
	return &domain.NotificationPreference{
		TenantID:  "tenant-1",
		Threshold: domain.SeverityLow,
		Channels: []domain.ChannelSetting{
			{Channel: domain.ChannelEmail, Enabled: true, Target: "alerts@example.com"},
		},
	}
}

func baseNotification() *domain.Notification {
	return &domain.Notification{
		ID:        "notif-1",
		TenantID:  "tenant-1",
		Severity:  domain.SeverityHigh,
		EventType: "ranking_drop",
		Title:     "Ranking drop detected",
	}
}

func TestGateSeverityThreshold(t *testing.T) {
	t.Parallel()

	// Monday, well outside any quiet window.
	at := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		severity    domain.Severity
		threshold   domain.Severity
		wantProceed bool
	}{
		{"equal clears", domain.SeverityHigh, domain.SeverityHigh, true},
		{"above clears", domain.SeverityCritical, domain.SeverityHigh, true},
		{"below gated", domain.SeverityMedium, domain.SeverityHigh, false},
		{"low vs low clears", domain.SeverityLow, domain.SeverityLow, true},
		{"unknown severity never clears", domain.Severity("BOGUS"), domain.SeverityLow, false},
		{"unknown threshold defaults to high", domain.SeverityMedium, domain.Severity(""), false},
		{"high clears unknown threshold", domain.SeverityHigh, domain.Severity(""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gate := newTestGate(t, &fakeCounter{}, at)
			n := baseNotification()
			n.Severity = tt.severity
			pref := basePreference()
			pref.Threshold = tt.threshold

			got := gate.Evaluate(context.Background(), n, pref)
			if got.Proceed != tt.wantProceed {
				t.Fatalf("Evaluate() proceed = %v, want %v (reason %q)", got.Proceed, tt.wantProceed, got.Reason)
			}
			if !tt.wantProceed && got.Reason != ReasonBelowThreshold {
				t.Errorf("reason = %q, want %q", got.Reason, ReasonBelowThreshold)
			}
		})
	}
}

func TestGateTypeFilter(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	gate := newTestGate(t, &fakeCounter{}, at)

	pref := basePreference()
	pref.AllowedTypes = []string{"ranking_drop", "backlink_lost"}

	n := baseNotification()
	n.EventType = "crawl_error"

	got := gate.Evaluate(context.Background(), n, pref)
	if got.Proceed {
		t.Fatal("filtered event type should be gated")
	}
	if got.Reason != ReasonTypeFiltered {
		t.Errorf("reason = %q, want %q", got.Reason, ReasonTypeFiltered)
	}

	n.EventType = "backlink_lost"
	if got := gate.Evaluate(context.Background(), n, pref); !got.Proceed {
		t.Fatalf("allowed event type gated with reason %q", got.Reason)
	}
}

func TestGateQuietHoursWraparound(t *testing.T) {
	t.Parallel()

	pref := basePreference()
	pref.QuietHours = &domain.QuietHours{StartHour: 22, EndHour: 8}

	for hour := 0; hour < 24; hour++ {
		at := time.Date(2026, time.March, 2, hour, 30, 0, 0, time.UTC)
		gate := newTestGate(t, &fakeCounter{}, at)

		got := gate.Evaluate(context.Background(), baseNotification(), pref)
		wantSuppressed := hour >= 22 || hour < 8
		if got.Proceed == wantSuppressed {
			t.Errorf("hour %d: proceed = %v, want suppressed = %v", hour, got.Proceed, wantSuppressed)
		}
		if wantSuppressed && got.Reason != ReasonQuietHours {
			t.Errorf("hour %d: reason = %q, want %q", hour, got.Reason, ReasonQuietHours)
		}
	}
}

func TestGateDailyCap(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	pref := basePreference()
	pref.DailyCap = 3

	counter := &fakeCounter{count: 2}
	gate := newTestGate(t, counter, at)
	if got := gate.Evaluate(context.Background(), baseNotification(), pref); !got.Proceed {
		t.Fatalf("under cap gated with reason %q", got.Reason)
	}

	wantSince := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	if !counter.since.Equal(wantSince) {
		t.Errorf("counter since = %v, want UTC midnight %v", counter.since, wantSince)
	}
	// The notification being evaluated is already in the store and must not
	// count against its own cap.
	if counter.excludeID != "notif-1" {
		t.Errorf("counter excludeID = %q, want notif-1", counter.excludeID)
	}

	// Fourth notification of the day with cap=3: count is already 3.
	counter.count = 3
	n := baseNotification()
	n.Severity = domain.SeverityCritical
	got := gate.Evaluate(context.Background(), n, pref)
	if got.Proceed {
		t.Fatal("at cap should be gated regardless of severity")
	}
	if got.Reason != ReasonCircuitBreaker {
		t.Errorf("reason = %q, want %q", got.Reason, ReasonCircuitBreaker)
	}
}

func TestGateDailyCapFailsOpen(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	pref := basePreference()
	pref.DailyCap = 1

	counter := &fakeCounter{err: errors.New("connection refused")}
	gate := newTestGate(t, counter, at)

	if got := gate.Evaluate(context.Background(), baseNotification(), pref); !got.Proceed {
		t.Fatalf("counter failure should fail open, gated with reason %q", got.Reason)
	}
}

func TestGateZeroCapDisablesCheck(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	counter := &fakeCounter{count: 1_000}
	gate := newTestGate(t, counter, at)

	pref := basePreference()
	pref.DailyCap = 0

	if got := gate.Evaluate(context.Background(), baseNotification(), pref); !got.Proceed {
		t.Fatalf("zero cap should disable the check, gated with reason %q", got.Reason)
	}
}
