package engine

import (
	"strings"
	"time"
)

const defaultQueueCapacity = 5

// QueuedMessage is a completed utterance waiting for its turn while a
// generation is already in flight.
type QueuedMessage struct {
	Content   string
	Timestamp time.Time
}

// messageQueue is a capacity-bounded FIFO of pending utterances. It is not
// safe for concurrent use on its own; the turn state machine owns it and
// serializes access.
type messageQueue struct {
	messages []QueuedMessage
	capacity int
}

func newMessageQueue(capacity int) *messageQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &messageQueue{capacity: capacity}
}

// Push appends content unless an equal message (case-insensitive) is already
// queued or currently in flight. The oldest entry is evicted once the queue
// is full.
func (q *messageQueue) Push(content, inFlight string) bool {
	normalized := normalizeMessage(content)
	if normalized == "" {
		return false
	}
	if normalized == normalizeMessage(inFlight) {
		return false
	}
	for _, queued := range q.messages {
		if normalizeMessage(queued.Content) == normalized {
			return false
		}
	}

	if len(q.messages) >= q.capacity {
		q.messages = q.messages[1:]
	}
	q.messages = append(q.messages, QueuedMessage{Content: content, Timestamp: time.Now()})
	return true
}

func (q *messageQueue) Pop() (QueuedMessage, bool) {
	if len(q.messages) == 0 {
		return QueuedMessage{}, false
	}
	message := q.messages[0]
	q.messages = q.messages[1:]
	return message, true
}

func (q *messageQueue) Clear() {
	q.messages = nil
}

func (q *messageQueue) Len() int {
	return len(q.messages)
}

func (q *messageQueue) Snapshot() []QueuedMessage {
	snapshot := make([]QueuedMessage, len(q.messages))
	copy(snapshot, q.messages)
	return snapshot
}

func normalizeMessage(message string) string {
	return strings.ToLower(strings.TrimSpace(message))
}
