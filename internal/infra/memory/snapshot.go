package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotStore persists whole named blobs (file, Redis, Postgres, ...).
type SnapshotStore interface {
	Load(ctx context.Context, name string) ([]byte, bool, error)
	Save(ctx context.Context, name string, data []byte) error
}

// Snapshot names; they double as file names for the file backend.
const (
	QuizzesSnapshot = "quizzes"
	ResultsSnapshot = "quiz_results"
	FeedSnapshot    = "feed"
)

const defaultFlushTimeout = 5 * time.Second

func loadSnapshot(ctx context.Context, store SnapshotStore, name string, dst any) error {
	data, ok, err := store.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("load %s snapshot: %w", name, err)
	}
	if !ok || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s snapshot: %w", name, err)
	}
	return nil
}

func encodeSnapshot(name string, v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s snapshot: %w", name, err)
	}
	return data, nil
}

// flushContext detaches the flush from request cancellation so a client
// hanging up cannot leave a half-written snapshot behind.
func flushContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultFlushTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
