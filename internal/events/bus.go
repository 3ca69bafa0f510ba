// Package events fans committed session events out to observers: the
// structured log, the Postgres journal, a Redis channel and metrics.
package events

import (
	"sync"

	"session-tracker/internal/models"
)

type Sink interface {
	Handle(ev models.SessionEvent)
}

type SinkFunc func(ev models.SessionEvent)

func (f SinkFunc) Handle(ev models.SessionEvent) { f(ev) }

// Bus is a synchronous observer list. Publish runs on the caller's
// goroutine, so sinks must return quickly; slow sinks wrap themselves in
// an AsyncSink.
type Bus struct {
	mu    sync.RWMutex
	sinks []Sink
}

func NewBus(sinks ...Sink) *Bus {
	return &Bus{sinks: sinks}
}

func (b *Bus) Subscribe(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

func (b *Bus) Publish(ev models.SessionEvent) {
	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()

	for _, s := range sinks {
		s.Handle(ev)
	}
}
