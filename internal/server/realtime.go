package server

import (
	"context"
	"sync"
	"time"
)

const (
	// RealtimeEventVideoAdded announces a new catalog record.
	RealtimeEventVideoAdded = "video-added"
	// RealtimeEventCountsChanged announces fresh like/comment aggregates for a video.
	RealtimeEventCountsChanged = "counts-changed"
	realtimeEventHeartbeat     = "heartbeat"
)

// RealtimeEvent is one broadcast feed notification. The catalog is shared by
// every user, so events fan out to all subscribers rather than per-user.
type RealtimeEvent struct {
	EventType string
	VideoID   int64
	Likes     int64
	Comments  int64
	Timestamp time.Time
}

// RealtimeDispatcher fans feed events out to subscribed web clients.
// Delivery is best effort: a subscriber that cannot keep up loses events
// rather than blocking the publisher.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeEvent
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a listener for broadcast events. The subscription ends
// when the context is canceled or the returned cleanup runs.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context) (<-chan RealtimeEvent, func()) {
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeEvent, d.bufferSize),
	}
	d.registerSubscriber(subscriber)
	cleanup := func() {
		d.unregisterSubscriber(subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers an event to every current subscriber without blocking.
func (d *RealtimeDispatcher) Publish(event RealtimeEvent) {
	if event.EventType == "" {
		return
	}
	d.mu.RLock()
	copies := make([]*realtimeSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(subscriberID int64) {
	d.mu.Lock()
	delete(d.subscribers, subscriberID)
	d.mu.Unlock()
}
