package domain

import (
	"fmt"
	"strings"
	"time"
)

// AttemptStatus is the outcome of one delivery attempt.
type AttemptStatus string

const (
	AttemptSent    AttemptStatus = "SENT"
	AttemptFailed  AttemptStatus = "FAILED"
	AttemptSkipped AttemptStatus = "SKIPPED"
)

func (s AttemptStatus) String() string { return string(s) }

func (s AttemptStatus) IsValid() bool {
	switch s {
	case AttemptSent, AttemptFailed, AttemptSkipped:
		return true
	}
	return false
}

func ParseAttemptStatusFromString(s string) (AttemptStatus, error) {
	st := AttemptStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid attempt status %q", ErrValidation, s)
	}
	return st, nil
}

// DeliveryAttempt is one append-only audit row per channel send (or policy
// skip). Rows are never updated; retries insert new rows.
type DeliveryAttempt struct {
	ID             string
	TenantID       string
	NotificationID *string
	JobID          *string
	Channel        Channel
	Target         string
	Status         AttemptStatus
	StatusCode     *int
	Error          *string
	CreatedAt      time.Time
}
