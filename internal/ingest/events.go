package ingest

import (
	"sync"
	"time"
)

// EventType classifies queue lifecycle events.
type EventType string

const (
	EventDocumentQueued  EventType = "document_queued"
	EventDocumentSkipped EventType = "document_skipped"
	EventDocumentDropped EventType = "document_dropped"
	EventJobStarted      EventType = "job_started"
	EventStageCompleted  EventType = "stage_completed"
	EventJobCompleted    EventType = "job_completed"
	EventJobRetry        EventType = "job_retry"
	EventJobFailed       EventType = "job_failed"
	EventStatsSnapshot   EventType = "stats_snapshot"
)

// Event is one typed queue notification.
type Event struct {
	Type       EventType `json:"type"`
	Time       time.Time `json:"time"`
	DocumentID string    `json:"document_id,omitempty"`
	Path       string    `json:"path,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Percent    float64   `json:"percent,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Error      string    `json:"error,omitempty"`
	RetryCount int       `json:"retry_count,omitempty"`
	Stats      *Stats    `json:"stats,omitempty"`
}

// Bus fans events out to subscribers. Slow subscribers drop events
// rather than stalling the queue.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener with the given channel buffer. The
// returned cancel func removes the subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}

	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
