package redis

import (
	"context"
	"sync"
	"time"

	"course-content-service/internal/app"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ChannelStore is a Redis-aware implementation of app.ChannelRegistry.
// Channels and their subscribers live in process; Redis only carries a
// liveness marker per course so operators can see which feeds have
// listeners on which instance.
type ChannelStore struct {
	client   *redis.Client
	ttl      time.Duration
	buffer   int
	instance string
	log      zerolog.Logger

	mu       sync.RWMutex
	channels map[string]*app.CourseChannel
}

func NewChannelStore(client *redis.Client, ttl time.Duration, buffer int, instance string, log zerolog.Logger) *ChannelStore {
	return &ChannelStore{
		client:   client,
		ttl:      ttl,
		buffer:   buffer,
		instance: instance,
		log:      log.With().Str("component", "channel_store").Logger(),
		channels: make(map[string]*app.CourseChannel),
	}
}

func (s *ChannelStore) GetOrCreate(courseID string) *app.CourseChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	channel, ok := s.channels[courseID]
	if !ok {
		channel = app.NewCourseChannel(courseID, s.buffer)
		s.channels[courseID] = channel
	}
	// Every new subscriber re-arms the marker's TTL.
	s.mark(courseID)
	return channel
}

// mark writes the best-effort liveness marker.
func (s *ChannelStore) mark(courseID string) {
	if err := s.client.Set(context.Background(), s.key(courseID), s.instance, s.ttl).Err(); err != nil {
		s.log.Debug().Err(err).Str("course_id", courseID).Msg("Failed to set feed liveness marker")
	}
}

func (s *ChannelStore) Get(courseID string) (*app.CourseChannel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	channel, ok := s.channels[courseID]
	return channel, ok
}

func (s *ChannelStore) DeleteIfEmpty(courseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	channel, ok := s.channels[courseID]
	if !ok {
		return
	}
	if channel.RetireIfEmpty() {
		delete(s.channels, courseID)
		if err := s.client.Del(context.Background(), s.key(courseID)).Err(); err != nil {
			s.log.Debug().Err(err).Str("course_id", courseID).Msg("Failed to clear feed liveness marker")
		}
	}
}

func (s *ChannelStore) key(courseID string) string {
	return "feed:channel:" + courseID
}
