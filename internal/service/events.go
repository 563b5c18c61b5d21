package service

import (
	"encoding/json"
	"sync"
	"time"
)

// Notification names
const (
	EventOccasionCreated           = "occasion:created"
	EventOccasionUpdated           = "occasion:updated"
	EventOccasionDeleted           = "occasion:deleted"
	EventOccasionAttendanceUpdated = "occasion:attendance-updated"
	EventOccasionEventsGrouped     = "occasion:events-grouped"
	EventOccasionStatusChanged     = "occasion:status-changed"

	EventGroupCreated        = "group:created"
	EventGroupUpdated        = "group:updated"
	EventGroupDeleted        = "group:deleted"
	EventGroupMembersChanged = "group:members-changed"

	EventHeartbeat = "heartbeat"
)

// Notifier publishes named events. Publish never blocks and never fails.
type Notifier interface {
	Publish(name string, payload any)
}

// Event is a notification delivered to live subscribers
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Format returns the SSE formatted string
func (e *Event) Format() string {
	data, _ := json.Marshal(e)
	return "event: " + e.Type + "\ndata: " + string(data) + "\n\n"
}

// Subscriber represents a connected live client
type Subscriber struct {
	ID     string
	Events chan *Event
	Done   chan struct{}
}

// NotificationHub fans events out to every connected subscriber. A
// subscriber whose buffer is full misses the event.
type NotificationHub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	heartbeat   *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
	now         func() time.Time
}

// NewNotificationHub creates a hub that sends a heartbeat every interval.
// A zero interval disables heartbeats.
func NewNotificationHub(heartbeat time.Duration) *NotificationHub {
	hub := &NotificationHub{
		subscribers: make(map[string]*Subscriber),
		done:        make(chan struct{}),
		now:         time.Now,
	}
	if heartbeat > 0 {
		hub.heartbeat = time.NewTicker(heartbeat)
		go hub.sendHeartbeats()
	}
	return hub
}

// Subscribe registers a subscriber
func (h *NotificationHub) Subscribe(subscriberID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		ID:     subscriberID,
		Events: make(chan *Event, 100), // Buffer to prevent blocking
		Done:   make(chan struct{}),
	}
	if old, ok := h.subscribers[subscriberID]; ok {
		close(old.Done)
		close(old.Events)
	}
	h.subscribers[subscriberID] = sub
	return sub
}

// Unsubscribe removes a subscriber
func (h *NotificationHub) Unsubscribe(subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subscribers[subscriberID]; ok {
		close(sub.Done)
		close(sub.Events)
		delete(h.subscribers, subscriberID)
	}
}

// Publish sends an event to all subscribers
func (h *NotificationHub) Publish(name string, payload any) {
	h.broadcast(&Event{
		Type:      name,
		Data:      payload,
		Timestamp: h.now().UTC(),
	})
}

func (h *NotificationHub) broadcast(event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		select {
		case sub.Events <- event:
		default:
			// Buffer full, skip this subscriber
		}
	}
}

// sendHeartbeats sends periodic heartbeats to all subscribers
func (h *NotificationHub) sendHeartbeats() {
	for {
		select {
		case <-h.heartbeat.C:
			h.Publish(EventHeartbeat, map[string]string{
				"timestamp": h.now().UTC().Format(time.RFC3339),
			})
		case <-h.done:
			return
		}
	}
}

// Close stops the hub and disconnects every subscriber
func (h *NotificationHub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		if h.heartbeat != nil {
			h.heartbeat.Stop()
		}

		h.mu.Lock()
		defer h.mu.Unlock()
		for id, sub := range h.subscribers {
			close(sub.Done)
			close(sub.Events)
			delete(h.subscribers, id)
		}
	})
}

// SubscriberCount returns the number of connected subscribers
func (h *NotificationHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
