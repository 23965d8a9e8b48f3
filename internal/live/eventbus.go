package live

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/snarg/whisper-remote/internal/transcribe"
)

// Event types published on the bus.
const (
	TypeInfo    = "info"
	TypeSegment = "segment"
	TypeResult  = "result"
	TypeError   = "error"
)

// Event is one live-feed message.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Job       string          `json:"job"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Filter restricts a subscription. Empty fields match everything.
type Filter struct {
	Types []string
	Jobs  []string
}

// EventBus provides pub-sub event distribution for live subscribers.
// It maintains a ring buffer for replay on reconnect and implements
// transcribe.Observer so it can be attached to a Client directly.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[uint64]subscriber
	nextID      uint64
	seq         atomic.Uint64

	// Ring buffer for replay
	ring     []Event
	ringSize int
	ringHead int
	ringMu   sync.RWMutex

	jobsMu sync.Mutex
	jobs   map[string]struct{}
}

type subscriber struct {
	ch     chan Event
	filter Filter
}

// NewEventBus creates an event bus with the given ring buffer size.
func NewEventBus(ringSize int) *EventBus {
	return &EventBus{
		subscribers: make(map[uint64]subscriber),
		ring:        make([]Event, ringSize),
		ringSize:    ringSize,
		jobs:        make(map[string]struct{}),
	}
}

// Subscribe registers a new subscriber and returns a channel and cancel function.
func (eb *EventBus) Subscribe(filter Filter) (<-chan Event, func()) {
	eb.mu.Lock()
	id := eb.nextID
	eb.nextID++
	ch := make(chan Event, 64)
	eb.subscribers[id] = subscriber{ch: ch, filter: filter}
	eb.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			eb.mu.Lock()
			delete(eb.subscribers, id)
			eb.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// SubscriberCount returns the number of active subscribers.
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// ActiveJobCount returns the number of jobs that have published events but
// not finished.
func (eb *EventBus) ActiveJobCount() int {
	eb.jobsMu.Lock()
	defer eb.jobsMu.Unlock()
	return len(eb.jobs)
}

// ReplaySince returns buffered events since the given event ID.
func (eb *EventBus) ReplaySince(lastEventID string, filter Filter) []Event {
	eb.ringMu.RLock()
	defer eb.ringMu.RUnlock()

	var events []Event
	found := lastEventID == ""

	for i := 0; i < eb.ringSize; i++ {
		idx := (eb.ringHead + i) % eb.ringSize
		e := eb.ring[idx]
		if e.ID == "" {
			continue
		}
		if !found {
			if e.ID == lastEventID {
				found = true
			}
			continue
		}
		if matchesFilter(e, filter) {
			events = append(events, e)
		}
	}
	return events
}

// Publish sends an event to all matching subscribers and adds it to the ring buffer.
func (eb *EventBus) Publish(eventType, job string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	seq := eb.seq.Add(1)
	now := time.Now()
	event := Event{
		ID:        fmt.Sprintf("%d-%d", now.UnixMilli(), seq),
		Type:      eventType,
		Job:       job,
		Timestamp: now.UTC().Format(time.RFC3339),
		Data:      data,
	}

	if eb.ringSize > 0 {
		eb.ringMu.Lock()
		eb.ring[eb.ringHead] = event
		eb.ringHead = (eb.ringHead + 1) % eb.ringSize
		eb.ringMu.Unlock()
	}

	eb.mu.RLock()
	for _, sub := range eb.subscribers {
		if matchesFilter(event, sub.filter) {
			select {
			case sub.ch <- event:
			default:
				// Drop if subscriber is slow
			}
		}
	}
	eb.mu.RUnlock()
}

type infoPayload struct {
	transcribe.Info
	LanguageName string `json:"language_name"`
}

type segmentPayload struct {
	Index int `json:"index"`
	transcribe.Segment
}

type errorPayload struct {
	Error string `json:"error"`
}

func (eb *EventBus) OnInfo(job string, info transcribe.Info, language string) {
	eb.track(job)
	eb.Publish(TypeInfo, job, infoPayload{Info: info, LanguageName: language})
}

func (eb *EventBus) OnSegment(job string, index int, seg transcribe.Segment) {
	eb.track(job)
	eb.Publish(TypeSegment, job, segmentPayload{Index: index, Segment: seg})
}

func (eb *EventBus) OnDone(job string, res *transcribe.Result, err error) {
	eb.jobsMu.Lock()
	delete(eb.jobs, job)
	eb.jobsMu.Unlock()

	if err != nil {
		eb.Publish(TypeError, job, errorPayload{Error: err.Error()})
		return
	}
	eb.Publish(TypeResult, job, res)
}

func (eb *EventBus) track(job string) {
	eb.jobsMu.Lock()
	eb.jobs[job] = struct{}{}
	eb.jobsMu.Unlock()
}

func matchesFilter(e Event, f Filter) bool {
	if len(f.Types) > 0 && !contains(f.Types, e.Type) {
		return false
	}
	if len(f.Jobs) > 0 && !contains(f.Jobs, e.Job) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
