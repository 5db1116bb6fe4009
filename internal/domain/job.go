package domain

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a scheduled delivery job.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobSending   JobStatus = "SENDING"
	JobSent      JobStatus = "SENT"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
)

func (s JobStatus) String() string { return string(s) }

func (s JobStatus) IsValid() bool {
	switch s {
	case JobPending, JobSending, JobSent, JobFailed, JobCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the job can never be dispatched again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobSent, JobFailed, JobCancelled:
		return true
	}
	return false
}

func ParseJobStatusFromString(s string) (JobStatus, error) {
	st := JobStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid job status %q", ErrValidation, s)
	}
	return st, nil
}

const DefaultJobMaxRetries = 3

// ScheduledJob is one queued, time-triggered delivery step, e.g. a single
// email in a drip sequence. It is mutated only by the delivery engine.
type ScheduledJob struct {
	ID                string
	TenantID          string
	CampaignID        *string
	Channel           Channel
	Recipient         string
	Subject           *string
	Content           string
	DueAt             time.Time
	Status            JobStatus
	RetryCount        int
	MaxRetries        int
	NextRetryAt       *time.Time
	ErrorMessage      *string
	ProviderMessageID *string
	SentAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (j *ScheduledJob) Validate() error {
	if strings.TrimSpace(j.TenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if strings.TrimSpace(j.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if strings.TrimSpace(j.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if !j.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, j.Channel)
	}
	if j.DueAt.IsZero() {
		return fmt.Errorf("%w: due at is required", ErrValidation)
	}
	if j.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrValidation)
	}
	return nil
}

// CanRetry reports whether a failed attempt may re-enter PENDING. The check
// uses the current retry count; the terminal failure leaves the count as-is.
func (j *ScheduledJob) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}
