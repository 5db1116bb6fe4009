package domain

import (
	"fmt"
	"strings"
	"time"
)

// QuietHours is a suppression window expressed in hours of day. A window may
// wrap midnight: start=22, end=8 suppresses 22:00 through 07:59.
type QuietHours struct {
	StartHour       int
	EndHour         int
	Timezone        string
	WeekendSuppress bool
}

func (q *QuietHours) Validate() error {
	if q.StartHour < 0 || q.StartHour > 23 {
		return fmt.Errorf("%w: quiet hours start must be 0-23 (got %d)", ErrValidation, q.StartHour)
	}
	if q.EndHour < 0 || q.EndHour > 23 {
		return fmt.Errorf("%w: quiet hours end must be 0-23 (got %d)", ErrValidation, q.EndHour)
	}
	return nil
}

// Suppresses reports whether the window covers the given instant. The hour is
// taken in the configured timezone, falling back to UTC when the zone is
// empty or unknown.
func (q *QuietHours) Suppresses(at time.Time) bool {
	if q == nil {
		return false
	}

	loc := time.UTC
	if tz := strings.TrimSpace(q.Timezone); tz != "" {
		if parsed, err := time.LoadLocation(tz); err == nil {
			loc = parsed
		}
	}
	local := at.In(loc)

	if q.WeekendSuppress {
		switch local.Weekday() {
		case time.Saturday, time.Sunday:
			return true
		}
	}

	hour := local.Hour()
	if q.StartHour < q.EndHour {
		return hour >= q.StartHour && hour < q.EndHour
	}
	// Wraparound window, e.g. 22 -> 8.
	return hour >= q.StartHour || hour < q.EndHour
}

// ChannelSetting enables one delivery channel for a tenant and names its
// target (webhook URL, recipient address, phone number).
type ChannelSetting struct {
	Channel Channel
	Enabled bool
	Target  string
}

// NotificationPreference is the per-tenant delivery policy. It is written by
// tenant configuration and read-only to the pipeline.
type NotificationPreference struct {
	TenantID     string
	Threshold    Severity
	AllowedTypes []string
	Channels     []ChannelSetting
	QuietHours   *QuietHours
	DailyCap     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p *NotificationPreference) Validate() error {
	if strings.TrimSpace(p.TenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if p.DailyCap < 0 {
		return fmt.Errorf("%w: daily cap must not be negative", ErrValidation)
	}
	for _, setting := range p.Channels {
		if !setting.Channel.IsValid() {
			return fmt.Errorf("%w: invalid channel %q", ErrValidation, setting.Channel)
		}
		if setting.Enabled && strings.TrimSpace(setting.Target) == "" {
			return fmt.Errorf("%w: channel %s is enabled without a target", ErrValidation, setting.Channel)
		}
	}
	if p.QuietHours != nil {
		if err := p.QuietHours.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// AllowsType reports whether the event type passes the tenant's type filter.
// An empty filter allows everything.
func (p *NotificationPreference) AllowsType(eventType string) bool {
	if len(p.AllowedTypes) == 0 {
		return true
	}
	for _, allowed := range p.AllowedTypes {
		if strings.EqualFold(strings.TrimSpace(allowed), strings.TrimSpace(eventType)) {
			return true
		}
	}
	return false
}

// EnabledTargets returns the targets of every enabled channel.
func (p *NotificationPreference) EnabledTargets() map[Channel]string {
	targets := make(map[Channel]string, len(p.Channels))
	for _, setting := range p.Channels {
		if setting.Enabled && strings.TrimSpace(setting.Target) != "" {
			targets[setting.Channel] = setting.Target
		}
	}
	return targets
}
