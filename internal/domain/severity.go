package domain

import (
	"fmt"
	"strings"
)

// Severity represents how urgent a detected event is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) String() string { return string(s) }

func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rank orders severities for threshold comparison. Unknown values rank 0 so
// they never clear any configured threshold.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// ThresholdRank is Rank with the opposite unknown default: an unreadable
// threshold falls back to HIGH so misconfigured tenants are not flooded.
func (s Severity) ThresholdRank() int {
	if !s.IsValid() {
		return SeverityHigh.Rank()
	}
	return s.Rank()
}

func ParseSeverityFromString(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if !sev.IsValid() {
		return "", fmt.Errorf("%w: invalid severity %q", ErrValidation, s)
	}
	return sev, nil
}
