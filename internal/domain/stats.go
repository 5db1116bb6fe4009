package domain

import (
	"fmt"
	"strings"
	"time"
)

// StatCounter names one counter column of a stats rollup row.
type StatCounter string

const (
	StatSent         StatCounter = "sent"
	StatDelivered    StatCounter = "delivered"
	StatOpened       StatCounter = "opened"
	StatClicked      StatCounter = "clicked"
	StatBounced      StatCounter = "bounced"
	StatFailed       StatCounter = "failed"
	StatUnsubscribed StatCounter = "unsubscribed"
)

func (c StatCounter) String() string { return string(c) }

func (c StatCounter) IsValid() bool {
	switch c {
	case StatSent, StatDelivered, StatOpened, StatClicked, StatBounced, StatFailed, StatUnsubscribed:
		return true
	}
	return false
}

func ParseStatCounterFromString(s string) (StatCounter, error) {
	c := StatCounter(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: invalid stat counter %q", ErrValidation, s)
	}
	return c, nil
}

// StatsRollup is one per-day aggregate keyed by tenant, date, channel, and
// campaign. CampaignID is empty for alert traffic. Counters are upserted
// incrementally; rates are derived on read and never stored.
type StatsRollup struct {
	TenantID     string
	Date         time.Time
	Channel      Channel
	CampaignID   string
	Sent         int64
	Delivered    int64
	Opened       int64
	Clicked      int64
	Bounced      int64
	Failed       int64
	Unsubscribed int64
}

func (r *StatsRollup) DeliveryRate() float64 {
	return ratio(r.Delivered, r.Sent)
}

func (r *StatsRollup) OpenRate() float64 {
	return ratio(r.Opened, r.Delivered)
}

func (r *StatsRollup) ClickRate() float64 {
	return ratio(r.Clicked, r.Opened)
}

func ratio(numerator, denominator int64) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}
