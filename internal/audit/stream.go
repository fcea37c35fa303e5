package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Stream is the Redis stream audit events are published to.
const Stream = "ledger.audit"

// StreamRecorder publishes events to a Redis stream so external
// consumers (analytics, alerting) can tail the audit trail without
// touching the ledger process.
type StreamRecorder struct {
	client *redis.Client
}

func NewStreamRecorder(client *redis.Client) *StreamRecorder {
	return &StreamRecorder{client: client}
}

func (r *StreamRecorder) Record(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: Stream,
		Values: map[string]any{
			"event": payload,
		},
	}
	if _, err := r.client.XAdd(context.Background(), args).Result(); err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}
