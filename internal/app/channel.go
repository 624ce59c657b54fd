package app

import (
	"sync"

	"course-content-service/internal/domain"
)

// DefaultSubscriberBuffer is used when a channel is created with a
// non-positive buffer size.
const DefaultSubscriberBuffer = 16

// CourseChannel is the live subscriber set of one course feed.
type CourseChannel struct {
	courseID string
	buffer   int

	mu          sync.Mutex
	retired     bool
	subscribers map[chan domain.FeedEvent]struct{}
}

// NewCourseChannel is exported for registries that create channels on demand.
func NewCourseChannel(courseID string, buffer int) *CourseChannel {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &CourseChannel{
		courseID:    courseID,
		buffer:      buffer,
		subscribers: make(map[chan domain.FeedEvent]struct{}),
	}
}

// subscribe registers a new subscriber and queues the handshake event. It
// fails once the channel has been retired by its registry.
func (c *CourseChannel) subscribe() (chan domain.FeedEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.retired {
		return nil, false
	}

	ch := make(chan domain.FeedEvent, c.buffer)
	ch <- domain.FeedEvent{Type: domain.FeedEventHello, OK: true, CourseID: c.courseID}
	c.subscribers[ch] = struct{}{}
	return ch, true
}

func (c *CourseChannel) unsubscribe(ch chan domain.FeedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscribers[ch]; ok {
		delete(c.subscribers, ch)
		close(ch)
	}
}

// publish delivers ev to every subscriber without blocking. A subscriber whose
// buffer is full is considered broken: it is removed and its channel closed.
// It returns the number of dropped subscribers.
func (c *CourseChannel) publish(ev domain.FeedEvent) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
			delete(c.subscribers, ch)
			close(ch)
			dropped++
		}
	}
	return dropped
}

// Len reports the number of live subscribers.
func (c *CourseChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers)
}

// IsEmpty reports whether the channel has no subscribers.
func (c *CourseChannel) IsEmpty() bool {
	return c.Len() == 0
}

// RetireIfEmpty marks an empty channel as unusable so that a racing subscribe
// goes back to the registry for a fresh one. Registries call it while holding
// their own lock, right before forgetting the channel.
func (c *CourseChannel) RetireIfEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subscribers) > 0 {
		return false
	}
	c.retired = true
	return true
}

// Subscription is one live connection to a course feed.
type Subscription struct {
	events <-chan domain.FeedEvent
	once   sync.Once
	cancel func()
}

// Events yields feed envelopes until the subscription is cancelled or dropped.
func (s *Subscription) Events() <-chan domain.FeedEvent {
	return s.events
}

// Cancel unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}
