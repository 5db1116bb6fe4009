package domain

import "testing"

func TestSeverityRank(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		severity Severity
		want     int
	}{
		{SeverityLow, 1},
		{SeverityMedium, 2},
		{SeverityHigh, 3},
		{SeverityCritical, 4},
		{Severity("BOGUS"), 0},
		{Severity(""), 0},
	}

	for _, tc := range testCases {
		if got := tc.severity.Rank(); got != tc.want {
			t.Errorf("Rank(%q) = %d, want %d", tc.severity, got, tc.want)
		}
	}
}

func TestSeverityThresholdRankUnknownDefaultsToHigh(t *testing.T) {
	t.Parallel()

	if got := Severity("").ThresholdRank(); got != 3 {
		t.Fatalf("ThresholdRank(\"\") = %d, want 3", got)
	}
	if got := Severity("WHATEVER").ThresholdRank(); got != 3 {
		t.Fatalf("ThresholdRank(WHATEVER) = %d, want 3", got)
	}
	if got := SeverityLow.ThresholdRank(); got != 1 {
		t.Fatalf("ThresholdRank(LOW) = %d, want 1", got)
	}
}

func TestParseSeverityFromString(t *testing.T) {
	t.Parallel()

	sev, err := ParseSeverityFromString(" critical ")
	if err != nil {
		t.Fatalf("ParseSeverityFromString() error = %v", err)
	}
	if sev != SeverityCritical {
		t.Fatalf("severity = %s, want CRITICAL", sev)
	}

	if _, err := ParseSeverityFromString("urgent"); err == nil {
		t.Fatal("expected error for unknown severity")
	}
}
