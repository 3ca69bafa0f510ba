package events

import (
	"context"
	"sync"

	"session-tracker/internal/models"
	"session-tracker/pkg/logger"
)

// AsyncSink queues events for a background worker. When the queue is full
// the event is dropped and logged; the publisher never waits.
type AsyncSink struct {
	name    string
	queue   chan models.SessionEvent
	handle  func(ctx context.Context, ev models.SessionEvent) error
	wg      sync.WaitGroup
	closed  bool
	dropped uint64
	mu      sync.Mutex
}

func NewAsyncSink(name string, size int, handle func(ctx context.Context, ev models.SessionEvent) error) *AsyncSink {
	if size < 1 {
		size = 1
	}
	return &AsyncSink{
		name:   name,
		queue:  make(chan models.SessionEvent, size),
		handle: handle,
	}
}

// Handle enqueues ev. After Close it is a no-op.
func (s *AsyncSink) Handle(ev models.SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- ev:
	default:
		s.dropped++
		logger.Warn("%s sink queue full, dropping %s event for session %s", s.name, ev.Type, ev.SessionID)
	}
}

// Start runs the worker until ctx is cancelled or Close drains the queue.
func (s *AsyncSink) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-s.queue:
				if !ok {
					return
				}
				if err := s.handle(ctx, ev); err != nil {
					logger.Error("%s sink failed on %s event: %v", s.name, ev.Type, err)
				}
			}
		}
	}()
}

// Close stops accepting events and waits for the worker to drain.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *AsyncSink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
