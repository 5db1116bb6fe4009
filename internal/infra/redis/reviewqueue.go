package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReviewEntry is one capped notification parked for manual review instead of
// being dropped silently.
type ReviewEntry struct {
	NotificationID string    `json:"notificationId"`
	TenantID       string    `json:"tenantId"`
	Reason         string    `json:"reason"`
	QueuedAt       time.Time `json:"queuedAt"`
}

// ReviewQueue is a per-tenant Redis list of notifications held back by the
// daily volume cap.
type ReviewQueue struct {
	client *goredis.Client
	now    func() time.Time
}

func NewReviewQueue(client *goredis.Client) (*ReviewQueue, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &ReviewQueue{client: client, now: time.Now}, nil
}

func reviewKey(tenantID string) string {
	return fmt.Sprintf("review:pending:%s", tenantID)
}

func (q *ReviewQueue) Push(ctx context.Context, tenantID, notificationID, reason string) error {
	if q == nil || q.client == nil {
		return fmt.Errorf("review queue is not initialized")
	}
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant id is required")
	}

	entry := ReviewEntry{
		NotificationID: notificationID,
		TenantID:       tenantID,
		Reason:         reason,
		QueuedAt:       q.now().UTC(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode review entry: %w", err)
	}

	return q.client.LPush(ctx, reviewKey(tenantID), payload).Err()
}

// Pending lists queued entries newest first without consuming them.
func (q *ReviewQueue) Pending(ctx context.Context, tenantID string, limit int64) ([]ReviewEntry, error) {
	if q == nil || q.client == nil {
		return nil, fmt.Errorf("review queue is not initialized")
	}
	if limit <= 0 {
		limit = 100
	}

	raw, err := q.client.LRange(ctx, reviewKey(tenantID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read review queue: %w", err)
	}

	entries := make([]ReviewEntry, 0, len(raw))
	for _, item := range raw {
		var entry ReviewEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode review entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
