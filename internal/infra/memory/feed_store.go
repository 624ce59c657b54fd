package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"course-content-service/internal/domain"
	"github.com/rs/zerolog"
)

// FeedStore keeps course feeds in memory and writes the feed snapshot after
// every mutation. It implements app.FeedStore.
type FeedStore struct {
	snapshots    SnapshotStore
	flushTimeout time.Duration
	log          zerolog.Logger

	mu    sync.RWMutex
	items map[string][]domain.FeedItem
}

func NewFeedStore(snapshots SnapshotStore, flushTimeout time.Duration, log zerolog.Logger) *FeedStore {
	return &FeedStore{
		snapshots:    snapshots,
		flushTimeout: flushTimeout,
		log:          log.With().Str("component", "feed_store").Logger(),
		items:        make(map[string][]domain.FeedItem),
	}
}

// Load replaces the in-memory feeds with the persisted snapshot.
func (s *FeedStore) Load(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}

	items := make(map[string][]domain.FeedItem)
	if err := loadSnapshot(ctx, s.snapshots, FeedSnapshot, &items); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items

	s.log.Info().Int("courses", len(items)).Msg("Feed snapshot loaded")
	return nil
}

func (s *FeedStore) Append(ctx context.Context, item domain.FeedItem) (domain.FeedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[item.CourseID] = append(s.items[item.CourseID], item)
	s.flushLocked(ctx)
	return item, nil
}

// Update runs mutate on a copy of the item and stores it only when mutate
// succeeds.
func (s *FeedStore) Update(ctx context.Context, courseID, id string, mutate func(*domain.FeedItem) error) (domain.FeedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(courseID, id)
	if idx < 0 {
		return domain.FeedItem{}, domain.ErrFeedItemNotFound
	}

	working := s.items[courseID][idx]
	if err := mutate(&working); err != nil {
		return domain.FeedItem{}, err
	}
	s.items[courseID][idx] = working
	s.flushLocked(ctx)
	return working, nil
}

// Delete removes the item when guard accepts it.
func (s *FeedStore) Delete(ctx context.Context, courseID, id string, guard func(domain.FeedItem) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(courseID, id)
	if idx < 0 {
		return domain.ErrFeedItemNotFound
	}

	list := s.items[courseID]
	if guard != nil {
		if err := guard(list[idx]); err != nil {
			return err
		}
	}

	s.items[courseID] = append(list[:idx:idx], list[idx+1:]...)
	if len(s.items[courseID]) == 0 {
		delete(s.items, courseID)
	}
	s.flushLocked(ctx)
	return nil
}

// List returns the course feed, newest-created first.
func (s *FeedStore) List(_ context.Context, courseID string) ([]domain.FeedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.items[courseID]
	out := make([]domain.FeedItem, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *FeedStore) indexLocked(courseID, id string) int {
	for i, item := range s.items[courseID] {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (s *FeedStore) flushLocked(ctx context.Context) {
	if s.snapshots == nil {
		return
	}

	data, err := encodeSnapshot(FeedSnapshot, s.items)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to encode feed snapshot")
		return
	}

	ctx, cancel := flushContext(ctx, s.flushTimeout)
	defer cancel()
	if err := s.snapshots.Save(ctx, FeedSnapshot, data); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist feed snapshot")
	}
}
