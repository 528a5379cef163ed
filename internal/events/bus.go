// Package events provides the in-process pub/sub bus wiring the signal
// pipeline to its observers (persistence, websocket streaming, logging).
package events

import (
	"sync"
	"time"
)

// EventType represents the kinds of events the pipeline emits.
type EventType string

const (
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventSignalSkipped   EventType = "SIGNAL_SKIPPED"
	EventDataDegraded    EventType = "DATA_DEGRADED"
	EventEngineError     EventType = "ENGINE_ERROR"
)

// Event is one published occurrence.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events. Handlers run on their own
// goroutine per publish and must not block indefinitely.
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignalGenerated publishes a generated-signal event with the full
// payload attached for streaming consumers.
func (eb *EventBus) PublishSignalGenerated(signalID, symbol, direction, strategy string, confidence int, payload interface{}) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"signal_id":  signalID,
			"symbol":     symbol,
			"direction":  direction,
			"strategy":   strategy,
			"confidence": confidence,
			"signal":     payload,
		},
	})
}

// PublishSignalSkipped publishes a no-signal outcome and its reason.
func (eb *EventBus) PublishSignalSkipped(symbol, reason string) {
	eb.Publish(Event{
		Type: EventSignalSkipped,
		Data: map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
		},
	})
}

// PublishDataDegraded publishes a synthetic-data fallback notice.
func (eb *EventBus) PublishDataDegraded(symbol, quality string) {
	eb.Publish(Event{
		Type: EventDataDegraded,
		Data: map[string]interface{}{
			"symbol":  symbol,
			"quality": quality,
		},
	})
}

// PublishError publishes an engine error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventEngineError,
		Data: data,
	})
}
