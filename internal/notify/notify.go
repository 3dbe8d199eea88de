package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types emitted by the scheduling engine. Delivery mechanics and
// wording live in the external notification service; the engine only names
// what happened.
const (
	EventStudentRegistered = "student_registered"
	EventSessionBooked     = "session_booked"
	EventSessionConfirmed  = "session_confirmed"
	EventSessionCompleted  = "session_completed"
	EventSessionCancelled  = "session_cancelled"
	EventSessionNoShow     = "session_no_show"
)

// Event is a single "notify user X of event Y" request.
type Event struct {
	UserID  string         `json:"user_id"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

// Notifier is the fire-and-forget side channel to the notification service.
// A failed publish must never roll back the state change that triggered it;
// callers log the error and move on.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// Memory records events in-process for dev mode and tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory creates an in-memory notifier.
func NewMemory() *Memory {
	return &Memory{}
}

// Notify appends the event.
func (m *Memory) Notify(_ context.Context, evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

// Events returns a copy of everything recorded so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// ByType returns recorded events of the given type.
func (m *Memory) ByType(eventType string) []Event {
	var out []Event
	for _, evt := range m.Events() {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

// RedisNotifier pushes JSON events onto a Redis list consumed by the
// notification service.
type RedisNotifier struct {
	client *redis.Client
	key    string
}

// NewRedis builds a notifier using LPUSH onto key.
func NewRedis(client *redis.Client, key string) *RedisNotifier {
	if key == "" {
		key = "tutorhub:notifications"
	}
	return &RedisNotifier{client: client, key: key}
}

// Notify enqueues the event.
func (n *RedisNotifier) Notify(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return n.client.LPush(ctx, n.key, body).Err()
}
