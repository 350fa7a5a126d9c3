package jobs

import (
	"sync"

	"lorekeep/internal/domain"
)

// DefaultEventBuffer is the per-subscriber buffer size used when the
// configured size is zero or negative.
const DefaultEventBuffer = 64

// Bus is an in-process, per-job fan-out of progress events. Each subscriber
// receives the full event stream for its job in publish order through a
// bounded buffer. A slow subscriber never blocks a publisher: when a buffer
// is full the oldest buffered event is dropped to make room. Subscriptions
// are closed after the job's terminal event has been delivered.
type Bus struct {
	mu      sync.Mutex
	bufSize int
	subs    map[string][]*subscriber
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan domain.ProgressEvent
	closed bool
}

// NewBus creates a bus whose subscriber buffers hold bufSize events.
func NewBus(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = DefaultEventBuffer
	}
	return &Bus{
		bufSize: bufSize,
		subs:    make(map[string][]*subscriber),
	}
}

// Subscribe registers interest in one job's event stream. The returned
// cancel function is idempotent and must be called when the caller stops
// reading; the channel is closed either by cancel or after a terminal event.
func (b *Bus) Subscribe(jobID string) (<-chan domain.ProgressEvent, func()) {
	sub := &subscriber{ch: make(chan domain.ProgressEvent, b.bufSize)}

	b.mu.Lock()
	b.subs[jobID] = append(b.subs[jobID], sub)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		list := b.subs[jobID]
		for i, s := range list {
			if s == sub {
				b.subs[jobID] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(b.subs[jobID]) == 0 {
			delete(b.subs, jobID)
		}
		b.mu.Unlock()
		sub.close()
	}
	return sub.ch, cancel
}

// Publish fans the event out to every subscriber of its job. Terminal events
// additionally close all of the job's subscriptions once delivered.
func (b *Bus) Publish(ev domain.ProgressEvent) {
	b.mu.Lock()
	list := b.subs[ev.JobID]
	subs := make([]*subscriber, len(list))
	copy(subs, list)
	if ev.Terminal() {
		delete(b.subs, ev.JobID)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.send(ev)
		if ev.Terminal() {
			s.close()
		}
	}
}

func (s *subscriber) send(ev domain.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		// Buffer full: drop the oldest buffered event.
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
