package memory

import (
	"sync"

	"course-content-service/internal/app"
)

// ChannelStore is an in-memory implementation of app.ChannelRegistry.
type ChannelStore struct {
	buffer int

	mu       sync.RWMutex
	channels map[string]*app.CourseChannel
}

// NewChannelStore creates channels whose subscribers buffer up to buffer
// events before being dropped.
func NewChannelStore(buffer int) *ChannelStore {
	return &ChannelStore{
		buffer:   buffer,
		channels: make(map[string]*app.CourseChannel),
	}
}

func (s *ChannelStore) GetOrCreate(courseID string) *app.CourseChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel, ok := s.channels[courseID]; ok {
		return channel
	}
	channel := app.NewCourseChannel(courseID, s.buffer)
	s.channels[courseID] = channel
	return channel
}

func (s *ChannelStore) Get(courseID string) (*app.CourseChannel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	channel, ok := s.channels[courseID]
	return channel, ok
}

// DeleteIfEmpty forgets the course channel once its last subscriber is gone.
func (s *ChannelStore) DeleteIfEmpty(courseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	channel, ok := s.channels[courseID]
	if !ok {
		return
	}
	if channel.RetireIfEmpty() {
		delete(s.channels, courseID)
	}
}

// Len reports the number of courses with a live channel.
func (s *ChannelStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels)
}
