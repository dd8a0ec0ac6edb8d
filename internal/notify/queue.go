package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/example/pantrysync/internal/syncer"
	"github.com/example/pantrysync/pkg/messagequeue"
)

// DefaultQueue is the queue notifications are published to.
const DefaultQueue = "pantry.notifications"

const publishTimeout = 5 * time.Second

// Message is the body published for every notification.
type Message struct {
	UserID  string      `json:"uid"`
	Message string      `json:"message"`
	Kind    syncer.Kind `json:"kind"`
	At      time.Time   `json:"at"`
}

// Queue publishes notifications of one user to a message queue, where the
// push and email delivery services pick them up. Publishing happens in the
// background; failures are logged.
type Queue struct {
	mq     messagequeue.MessageQueue
	queue  string
	userID string
	logger *zap.Logger
	now    func() time.Time
}

// NewQueue creates a Queue notifier for userID.
func NewQueue(mq messagequeue.MessageQueue, queue, userID string, logger *zap.Logger) *Queue {
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{mq: mq, queue: queue, userID: userID, logger: logger.Named("notify"), now: time.Now}
}

// Notify implements syncer.Notifier.
func (q *Queue) Notify(message string, kind syncer.Kind) {
	body, err := json.Marshal(Message{UserID: q.userID, Message: message, Kind: kind, At: q.now().UTC()})
	if err != nil {
		q.logger.Error("Failed to encode notification", zap.Error(err))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := q.mq.Publish(ctx, q.queue, body); err != nil {
			q.logger.Warn("Failed to publish notification", zap.String("queue", q.queue), zap.String("user_id", q.userID), zap.Error(err))
		}
	}()
}
