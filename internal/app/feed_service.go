package app

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"course-content-service/internal/domain"
	"github.com/rs/zerolog"
)

// FeedStore persists feed items. Update and Delete run their callbacks inside
// the store's critical section so checks and mutation are atomic.
type FeedStore interface {
	Append(ctx context.Context, item domain.FeedItem) (domain.FeedItem, error)
	Update(ctx context.Context, courseID, id string, mutate func(*domain.FeedItem) error) (domain.FeedItem, error)
	Delete(ctx context.Context, courseID, id string, guard func(domain.FeedItem) error) error
	List(ctx context.Context, courseID string) ([]domain.FeedItem, error)
}

// ChannelRegistry abstracts where course channels live (in-memory, Redis-marked, etc).
type ChannelRegistry interface {
	GetOrCreate(courseID string) *CourseChannel
	Get(courseID string) (*CourseChannel, bool)
	DeleteIfEmpty(courseID string)
}

// FeedService owns course feeds and fans out their changes to live subscribers.
type FeedService struct {
	store    FeedStore
	channels ChannelRegistry
	now      func() time.Time
	newID    IDGenerator
	log      zerolog.Logger
}

func NewFeedService(store FeedStore, channels ChannelRegistry, log zerolog.Logger) *FeedService {
	return NewFeedServiceWithClock(store, channels, log, time.Now, NewID)
}

// NewFeedServiceWithClock allows deterministic timestamps and ids in tests.
func NewFeedServiceWithClock(store FeedStore, channels ChannelRegistry, log zerolog.Logger, now func() time.Time, newID IDGenerator) *FeedService {
	return &FeedService{
		store:    store,
		channels: channels,
		now:      now,
		newID:    newID,
		log:      log.With().Str("component", "feed_service").Logger(),
	}
}

// List returns the course feed, newest first.
func (s *FeedService) List(ctx context.Context, courseID string) ([]domain.FeedItem, error) {
	return s.store.List(ctx, courseID)
}

// CreatePost appends a lecturer post.
func (s *FeedService) CreatePost(ctx context.Context, courseID, message string) (domain.FeedItem, error) {
	msg, err := normalizeMessage(message)
	if err != nil {
		return domain.FeedItem{}, err
	}
	return s.append(ctx, courseID, domain.FeedPost, msg)
}

// CreateAutoEvent appends a system event. A blank message is ignored and
// yields a nil item.
func (s *FeedService) CreateAutoEvent(ctx context.Context, courseID, message string) (*domain.FeedItem, error) {
	msg, err := normalizeMessage(message)
	if err != nil {
		return nil, nil
	}
	item, err := s.append(ctx, courseID, domain.FeedAuto, msg)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Emit implements AutoEventSink.
func (s *FeedService) Emit(ctx context.Context, courseID, message string) error {
	_, err := s.CreateAutoEvent(ctx, courseID, message)
	return err
}

// UpdatePost replaces the message of a lecturer post. A missing item is
// reported before an AUTO item, and both before a blank message.
func (s *FeedService) UpdatePost(ctx context.Context, courseID, id, message string) (domain.FeedItem, error) {
	item, err := s.store.Update(ctx, courseID, id, func(item *domain.FeedItem) error {
		if item.Type != domain.FeedPost {
			return domain.ErrAutoItemImmutable
		}
		msg, err := normalizeMessage(message)
		if err != nil {
			return err
		}
		item.Message = msg
		item.Edited = true
		item.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return domain.FeedItem{}, err
	}

	s.broadcast(courseID, domain.FeedEvent{Type: domain.FeedEventUpdate, Item: &item})
	return item, nil
}

// DeletePost removes a lecturer post.
func (s *FeedService) DeletePost(ctx context.Context, courseID, id string) error {
	err := s.store.Delete(ctx, courseID, id, func(item domain.FeedItem) error {
		if item.Type != domain.FeedPost {
			return domain.ErrAutoItemImmutable
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.broadcast(courseID, domain.FeedEvent{Type: domain.FeedEventDelete, ID: id})
	return nil
}

// Subscribe opens a live feed for courseID. The first event is always the
// hello handshake. The caller must Cancel the subscription to avoid leaks.
func (s *FeedService) Subscribe(_ context.Context, courseID string) *Subscription {
	for {
		channel := s.channels.GetOrCreate(courseID)
		ch, ok := channel.subscribe()
		if !ok {
			// Lost a race with the registry tearing the channel down.
			continue
		}

		s.log.Debug().Str("course_id", courseID).Msg("Feed subscriber attached")
		return &Subscription{
			events: ch,
			cancel: func() {
				channel.unsubscribe(ch)
				s.channels.DeleteIfEmpty(courseID)
				s.log.Debug().Str("course_id", courseID).Msg("Feed subscriber detached")
			},
		}
	}
}

// Subscribers reports the number of live subscribers of courseID.
func (s *FeedService) Subscribers(courseID string) int {
	channel, ok := s.channels.Get(courseID)
	if !ok {
		return 0
	}
	return channel.Len()
}

func (s *FeedService) append(ctx context.Context, courseID string, typ domain.FeedItemType, msg string) (domain.FeedItem, error) {
	now := s.now().UTC()
	item, err := s.store.Append(ctx, domain.FeedItem{
		ID:        s.newID(),
		CourseID:  courseID,
		Type:      typ,
		Message:   msg,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.FeedItem{}, err
	}

	s.broadcast(courseID, domain.FeedEvent{Type: domain.FeedEventNew, Item: &item})
	return item, nil
}

func (s *FeedService) broadcast(courseID string, ev domain.FeedEvent) {
	channel, ok := s.channels.Get(courseID)
	if !ok {
		return
	}
	if dropped := channel.publish(ev); dropped > 0 {
		s.log.Warn().Str("course_id", courseID).Int("dropped", dropped).Msg("Dropped unresponsive feed subscribers")
		s.channels.DeleteIfEmpty(courseID)
	}
}

var errBlankMessage = domain.NewValidationError("message", "message must not be blank")

// normalizeMessage trims and truncates to MaxFeedMessageLen characters.
func normalizeMessage(raw string) (string, error) {
	msg := strings.TrimSpace(raw)
	if msg == "" {
		return "", errBlankMessage
	}
	if utf8.RuneCountInString(msg) > domain.MaxFeedMessageLen {
		msg = string([]rune(msg)[:domain.MaxFeedMessageLen])
	}
	return msg, nil
}
