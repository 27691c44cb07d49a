package notifier

import (
	"context"
	"encoding/json"

	"academy/internal/checkin"
	"academy/internal/queue"
)

// QueuePublisher hands late check-ins to the notification queue. It is
// the verifier-facing side of the messaging collaborator; the worker
// drains the queue and talks to the service itself.
type QueuePublisher struct {
	q queue.Queue
}

// NewQueuePublisher wraps a queue.
func NewQueuePublisher(q queue.Queue) *QueuePublisher {
	return &QueuePublisher{q: q}
}

// LateCheckIn enqueues one notice.
func (p *QueuePublisher) LateCheckIn(ctx context.Context, o checkin.Outcome) error {
	body, err := json.Marshal(NoticeFromOutcome(o))
	if err != nil {
		return err
	}
	return p.q.Publish(ctx, queue.Message{Type: queue.TypeLateCheckIn, Body: body})
}
