package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"course-content-service/internal/app"
	"course-content-service/internal/domain"
	"course-content-service/internal/infra/file"
	"course-content-service/internal/infra/memory"
	"github.com/rs/zerolog"
)

// TestConcurrentCourseActivity drives quizzes, the feed and live subscribers
// of one course from many goroutines at once. Run with -race.
func TestConcurrentCourseActivity(t *testing.T) {
	const (
		workers  = 24
		courseID = "course-1"
	)
	ctx := context.Background()
	log := zerolog.Nop()

	snapshots, err := file.NewSnapshotStore(t.TempDir())
	if err != nil {
		t.Fatalf("snapshot store: %v", err)
	}
	repo := memory.NewQuizRepository(snapshots, time.Second, log)
	feedStore := memory.NewFeedStore(snapshots, time.Second, log)
	channels := memory.NewChannelStore(4)
	feed := app.NewFeedService(feedStore, channels, log)
	quizzes := app.NewQuizService(repo, feed, log)

	quiz, err := quizzes.Create(ctx, courseID, "Capitals")
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	question := capitalsQuestion()
	question.ID = "q-france"
	if _, err := quizzes.UpsertQuestion(ctx, courseID, quiz.ID, question); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			sub := feed.Subscribe(ctx, courseID)
			defer sub.Cancel()

			if _, err := quizzes.UpsertQuestion(ctx, courseID, quiz.ID, question); err != nil {
				t.Errorf("worker %d upsert: %v", i, err)
			}
			got, err := quizzes.Submit(ctx, courseID, quiz.ID, map[string][]string{"q-france": {"a"}}, fmt.Sprintf("student-%d", i))
			if err != nil {
				t.Errorf("worker %d submit: %v", i, err)
			} else if got.CorrectQuestions != 1 || got.TotalQuestions != 1 {
				t.Errorf("worker %d graded %+v", i, got)
			}

			post, err := feed.CreatePost(ctx, courseID, fmt.Sprintf("post %d", i))
			if err != nil {
				t.Errorf("worker %d post: %v", i, err)
				return
			}
			if _, err := feed.UpdatePost(ctx, courseID, post.ID, fmt.Sprintf("post %d edited", i)); err != nil {
				t.Errorf("worker %d update: %v", i, err)
			}

			// The handshake is queued first, so it is readable even if the
			// subscriber was dropped for falling behind.
			select {
			case ev, ok := <-sub.Events():
				if !ok || ev.Type != domain.FeedEventHello {
					t.Errorf("worker %d expected hello, got %+v (open=%v)", i, ev, ok)
				}
			case <-time.After(2 * time.Second):
				t.Errorf("worker %d timed out waiting for hello", i)
			}
		}(i)
	}
	wg.Wait()

	if got := feed.Subscribers(courseID); got != 0 {
		t.Fatalf("expected no subscribers left, got %d", got)
	}
	if got := channels.Len(); got != 0 {
		t.Fatalf("expected no channels left, got %d", got)
	}

	results, err := quizzes.Results(ctx, courseID, quiz.ID)
	if err != nil || len(results) != workers {
		t.Fatalf("expected %d results, got %d (%v)", workers, len(results), err)
	}
	full, _ := quizzes.Full(ctx, courseID, quiz.ID)
	if len(full.Questions) != 1 {
		t.Fatalf("repeated upserts of one id must keep one question, got %d", len(full.Questions))
	}

	reloadedRepo := memory.NewQuizRepository(snapshots, time.Second, log)
	if err := reloadedRepo.Load(ctx); err != nil {
		t.Fatalf("reload quizzes: %v", err)
	}
	reloaded, err := reloadedRepo.Results(ctx, courseID, quiz.ID)
	if err != nil || len(reloaded) != workers {
		t.Fatalf("expected %d persisted results, got %d (%v)", workers, len(reloaded), err)
	}

	reloadedFeed := memory.NewFeedStore(snapshots, time.Second, log)
	if err := reloadedFeed.Load(ctx); err != nil {
		t.Fatalf("reload feed: %v", err)
	}
	items, _ := reloadedFeed.List(ctx, courseID)
	posts := 0
	for _, item := range items {
		if item.Type == domain.FeedPost {
			posts++
			if !item.Edited {
				t.Fatalf("expected every post edited, got %+v", item)
			}
		}
	}
	if posts != workers {
		t.Fatalf("expected %d persisted posts, got %d", workers, posts)
	}
}

func TestConcurrentCloseAnnouncesOnce(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	service := newTestQuizService(sink)
	quiz, _ := service.Create(ctx, "course-1", "Capitals")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.UpdateStatus(ctx, "course-1", quiz.ID, domain.QuizClosed); err != nil {
				t.Errorf("close: %v", err)
			}
		}()
	}
	wg.Wait()

	closed := 0
	for _, msg := range sink.messages() {
		if msg == "Quiz closed: Capitals" {
			closed++
		}
	}
	if closed != 1 {
		t.Fatalf("expected exactly one close announcement, got %d in %v", closed, sink.messages())
	}
}
