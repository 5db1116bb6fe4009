package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rankpilot/delivery-engine/internal/domain"
)

// PreferenceModel is the persistence model for notification_preferences.
// Allowed types and channel settings are stored as JSONB documents; the
// pipeline only ever reads the whole row.
type PreferenceModel struct {
	TenantID        string          `gorm:"type:varchar(64);primaryKey"`
	Threshold       domain.Severity `gorm:"type:varchar(10);not null"`
	AllowedTypes    []byte          `gorm:"type:jsonb"`
	Channels        []byte          `gorm:"type:jsonb"`
	QuietStartHour  *int            `gorm:"type:int"`
	QuietEndHour    *int            `gorm:"type:int"`
	QuietTimezone   *string         `gorm:"type:varchar(64)"`
	WeekendSuppress bool            `gorm:"not null;default:false"`
	DailyCap        int             `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (PreferenceModel) TableName() string {
	return "notification_preferences"
}

// NotificationModel is the persistence model for the notifications audit
// table. Rows are immutable; the daily volume cap counts them per tenant.
type NotificationModel struct {
	ID          string          `gorm:"type:uuid;primaryKey"`
	TenantID    string          `gorm:"type:varchar(64);not null"`
	Severity    domain.Severity `gorm:"type:varchar(10);not null"`
	EventType   string          `gorm:"type:varchar(64);not null"`
	Title       string          `gorm:"type:varchar(255);not null"`
	Description string          `gorm:"type:text"`
	Data        []byte          `gorm:"type:jsonb"`
	CreatedAt   time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// AttemptModel is the persistence model for delivery_attempts.
type AttemptModel struct {
	ID             string               `gorm:"type:uuid;primaryKey"`
	TenantID       string               `gorm:"type:varchar(64);not null"`
	NotificationID *string              `gorm:"type:uuid"`
	JobID          *string              `gorm:"type:uuid"`
	Channel        domain.Channel       `gorm:"type:varchar(10);not null"`
	Target         string               `gorm:"type:varchar(512);not null"`
	Status         domain.AttemptStatus `gorm:"type:varchar(10);not null"`
	StatusCode     *int                 `gorm:"type:int"`
	Error          *string              `gorm:"type:text"`
	CreatedAt      time.Time
}

func (AttemptModel) TableName() string {
	return "delivery_attempts"
}

// JobModel is the persistence model for scheduled_jobs.
type JobModel struct {
	ID                string           `gorm:"type:uuid;primaryKey"`
	TenantID          string           `gorm:"type:varchar(64);not null"`
	CampaignID        *string          `gorm:"type:uuid"`
	Channel           domain.Channel   `gorm:"type:varchar(10);not null"`
	Recipient         string           `gorm:"type:varchar(512);not null"`
	Subject           *string          `gorm:"type:varchar(255)"`
	Content           string           `gorm:"type:text;not null"`
	DueAt             time.Time        `gorm:"type:timestamptz;not null"`
	Status            domain.JobStatus `gorm:"type:varchar(10);not null"`
	RetryCount        int              `gorm:"not null;default:0"`
	MaxRetries        int              `gorm:"not null;default:3"`
	NextRetryAt       *time.Time
	ErrorMessage      *string `gorm:"type:text"`
	ProviderMessageID *string `gorm:"type:varchar(255)"`
	SentAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (JobModel) TableName() string {
	return "scheduled_jobs"
}

// StatsRollupModel is the persistence model for delivery_stats_rollups. The
// campaign id is stored as an empty string for alert traffic so the unique
// upsert key stays simple.
type StatsRollupModel struct {
	TenantID     string         `gorm:"type:varchar(64);primaryKey"`
	Date         time.Time      `gorm:"type:date;primaryKey"`
	Channel      domain.Channel `gorm:"type:varchar(10);primaryKey"`
	CampaignID   string         `gorm:"type:varchar(64);primaryKey;default:''"`
	Sent         int64          `gorm:"not null;default:0"`
	Delivered    int64          `gorm:"not null;default:0"`
	Opened       int64          `gorm:"not null;default:0"`
	Clicked      int64          `gorm:"not null;default:0"`
	Bounced      int64          `gorm:"not null;default:0"`
	Failed       int64          `gorm:"not null;default:0"`
	Unsubscribed int64          `gorm:"not null;default:0"`
}

func (StatsRollupModel) TableName() string {
	return "delivery_stats_rollups"
}

func preferenceModelFromDomain(p *domain.NotificationPreference) (*PreferenceModel, error) {
	if p == nil {
		return nil, nil
	}

	allowedTypes, err := json.Marshal(p.AllowedTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode allowed types: %w", err)
	}
	channels, err := json.Marshal(p.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode channel settings: %w", err)
	}

	model := &PreferenceModel{
		TenantID:     p.TenantID,
		Threshold:    p.Threshold,
		AllowedTypes: allowedTypes,
		Channels:     channels,
		DailyCap:     p.DailyCap,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}

	if p.QuietHours != nil {
		start := p.QuietHours.StartHour
		end := p.QuietHours.EndHour
		tz := p.QuietHours.Timezone
		model.QuietStartHour = &start
		model.QuietEndHour = &end
		model.QuietTimezone = &tz
		model.WeekendSuppress = p.QuietHours.WeekendSuppress
	}

	return model, nil
}

func preferenceModelToDomain(m *PreferenceModel) (*domain.NotificationPreference, error) {
	if m == nil {
		return nil, nil
	}

	pref := &domain.NotificationPreference{
		TenantID:  m.TenantID,
		Threshold: m.Threshold,
		DailyCap:  m.DailyCap,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}

	if len(m.AllowedTypes) > 0 {
		if err := json.Unmarshal(m.AllowedTypes, &pref.AllowedTypes); err != nil {
			return nil, fmt.Errorf("failed to decode allowed types: %w", err)
		}
	}
	if len(m.Channels) > 0 {
		if err := json.Unmarshal(m.Channels, &pref.Channels); err != nil {
			return nil, fmt.Errorf("failed to decode channel settings: %w", err)
		}
	}

	if m.QuietStartHour != nil && m.QuietEndHour != nil {
		window := &domain.QuietHours{
			StartHour:       *m.QuietStartHour,
			EndHour:         *m.QuietEndHour,
			WeekendSuppress: m.WeekendSuppress,
		}
		if m.QuietTimezone != nil {
			window.Timezone = *m.QuietTimezone
		}
		pref.QuietHours = window
	}

	return pref, nil
}

func notificationModelFromDomain(n *domain.Notification) (*NotificationModel, error) {
	if n == nil {
		return nil, nil
	}

	var data []byte
	if n.Data != nil {
		encoded, err := json.Marshal(n.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode notification data: %w", err)
		}
		data = encoded
	}

	return &NotificationModel{
		ID:          n.ID,
		TenantID:    n.TenantID,
		Severity:    n.Severity,
		EventType:   n.EventType,
		Title:       n.Title,
		Description: n.Description,
		Data:        data,
		CreatedAt:   n.CreatedAt,
	}, nil
}

func notificationModelToDomain(m *NotificationModel) (*domain.Notification, error) {
	if m == nil {
		return nil, nil
	}

	n := &domain.Notification{
		ID:          m.ID,
		TenantID:    m.TenantID,
		Severity:    m.Severity,
		EventType:   m.EventType,
		Title:       m.Title,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, &n.Data); err != nil {
			return nil, fmt.Errorf("failed to decode notification data: %w", err)
		}
	}

	return n, nil
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *AttemptModel {
	if a == nil {
		return nil
	}

	return &AttemptModel{
		ID:             a.ID,
		TenantID:       a.TenantID,
		NotificationID: a.NotificationID,
		JobID:          a.JobID,
		Channel:        a.Channel,
		Target:         a.Target,
		Status:         a.Status,
		StatusCode:     a.StatusCode,
		Error:          a.Error,
		CreatedAt:      a.CreatedAt,
	}
}

func attemptModelToDomain(m *AttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:             m.ID,
		TenantID:       m.TenantID,
		NotificationID: m.NotificationID,
		JobID:          m.JobID,
		Channel:        m.Channel,
		Target:         m.Target,
		Status:         m.Status,
		StatusCode:     m.StatusCode,
		Error:          m.Error,
		CreatedAt:      m.CreatedAt,
	}
}

func jobModelFromDomain(j *domain.ScheduledJob) *JobModel {
	if j == nil {
		return nil
	}

	return &JobModel{
		ID:                j.ID,
		TenantID:          j.TenantID,
		CampaignID:        j.CampaignID,
		Channel:           j.Channel,
		Recipient:         j.Recipient,
		Subject:           j.Subject,
		Content:           j.Content,
		DueAt:             j.DueAt,
		Status:            j.Status,
		RetryCount:        j.RetryCount,
		MaxRetries:        j.MaxRetries,
		NextRetryAt:       j.NextRetryAt,
		ErrorMessage:      j.ErrorMessage,
		ProviderMessageID: j.ProviderMessageID,
		SentAt:            j.SentAt,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
	}
}

func jobModelToDomain(m *JobModel) *domain.ScheduledJob {
	if m == nil {
		return nil
	}

	return &domain.ScheduledJob{
		ID:                m.ID,
		TenantID:          m.TenantID,
		CampaignID:        m.CampaignID,
		Channel:           m.Channel,
		Recipient:         m.Recipient,
		Subject:           m.Subject,
		Content:           m.Content,
		DueAt:             m.DueAt,
		Status:            m.Status,
		RetryCount:        m.RetryCount,
		MaxRetries:        m.MaxRetries,
		NextRetryAt:       m.NextRetryAt,
		ErrorMessage:      m.ErrorMessage,
		ProviderMessageID: m.ProviderMessageID,
		SentAt:            m.SentAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func rollupModelToDomain(m *StatsRollupModel) *domain.StatsRollup {
	if m == nil {
		return nil
	}

	return &domain.StatsRollup{
		TenantID:     m.TenantID,
		Date:         m.Date,
		Channel:      m.Channel,
		CampaignID:   m.CampaignID,
		Sent:         m.Sent,
		Delivered:    m.Delivered,
		Opened:       m.Opened,
		Clicked:      m.Clicked,
		Bounced:      m.Bounced,
		Failed:       m.Failed,
		Unsubscribed: m.Unsubscribed,
	}
}
