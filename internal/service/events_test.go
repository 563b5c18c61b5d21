package service

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationHub_PublishFansOut(t *testing.T) {
	hub := NewNotificationHub(0)
	defer hub.Close()

	a := hub.Subscribe("a")
	b := hub.Subscribe("b")
	assert.Equal(t, 2, hub.SubscriberCount())

	hub.Publish(EventOccasionDeleted, OccasionDeletedNotification{OccasionID: "occasion:1"})

	for _, sub := range []*Subscriber{a, b} {
		select {
		case ev := <-sub.Events:
			assert.Equal(t, EventOccasionDeleted, ev.Type)
			assert.Equal(t, OccasionDeletedNotification{OccasionID: "occasion:1"}, ev.Data)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s received nothing", sub.ID)
		}
	}
}

func TestNotificationHub_FullBufferDoesNotBlock(t *testing.T) {
	hub := NewNotificationHub(0)
	defer hub.Close()

	sub := hub.Subscribe("slow")
	for i := 0; i < cap(sub.Events)+10; i++ {
		hub.Publish(EventOccasionUpdated, i)
	}

	assert.Len(t, sub.Events, cap(sub.Events))
}

func TestNotificationHub_Unsubscribe(t *testing.T) {
	hub := NewNotificationHub(0)
	defer hub.Close()

	sub := hub.Subscribe("a")
	hub.Unsubscribe("a")
	hub.Unsubscribe("a")

	_, open := <-sub.Done
	assert.False(t, open)
	assert.Zero(t, hub.SubscriberCount())

	// publishing with nobody listening is a no-op
	hub.Publish(EventOccasionCreated, nil)
}

func TestNotificationHub_ResubscribeReplacesOld(t *testing.T) {
	hub := NewNotificationHub(0)
	defer hub.Close()

	old := hub.Subscribe("a")
	hub.Subscribe("a")

	_, open := <-old.Done
	assert.False(t, open)
	assert.Equal(t, 1, hub.SubscriberCount())
}

func TestNotificationHub_Heartbeat(t *testing.T) {
	hub := NewNotificationHub(5 * time.Millisecond)
	defer hub.Close()

	sub := hub.Subscribe("a")
	select {
	case ev := <-sub.Events:
		assert.Equal(t, EventHeartbeat, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat")
	}
}

func TestNotificationHub_CloseIsIdempotent(t *testing.T) {
	hub := NewNotificationHub(time.Hour)
	sub := hub.Subscribe("a")

	hub.Close()
	hub.Close()

	_, open := <-sub.Events
	assert.False(t, open)
	assert.Zero(t, hub.SubscriberCount())
}

func TestEvent_Format(t *testing.T) {
	ev := &Event{
		Type:      EventOccasionCreated,
		Data:      map[string]string{"id": "occasion:1"},
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	out := ev.Format()

	require.True(t, strings.HasPrefix(out, "event: occasion:created\ndata: "))
	require.True(t, strings.HasSuffix(out, "\n\n"))

	payload := strings.TrimSuffix(strings.TrimPrefix(out, "event: occasion:created\ndata: "), "\n\n")
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, "occasion:created", decoded["type"])
	assert.Equal(t, "2026-01-02T03:04:05Z", decoded["timestamp"])
}
