package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"course-content-service/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// QuizRepository keeps quizzes (per course) and results (per quiz) in memory
// and writes both snapshots after every mutation. It implements
// app.QuizRepository.
type QuizRepository struct {
	snapshots    SnapshotStore
	flushTimeout time.Duration
	log          zerolog.Logger

	mu      sync.RWMutex
	quizzes map[string][]domain.Quiz
	results map[string][]domain.Result
}

// NewQuizRepository creates an empty repository. A nil snapshots store keeps
// the data in memory only.
func NewQuizRepository(snapshots SnapshotStore, flushTimeout time.Duration, log zerolog.Logger) *QuizRepository {
	return &QuizRepository{
		snapshots:    snapshots,
		flushTimeout: flushTimeout,
		log:          log.With().Str("component", "quiz_repository").Logger(),
		quizzes:      make(map[string][]domain.Quiz),
		results:      make(map[string][]domain.Result),
	}
}

// Load replaces the in-memory state with the persisted snapshots. Missing
// snapshots start empty.
func (r *QuizRepository) Load(ctx context.Context) error {
	if r.snapshots == nil {
		return nil
	}

	quizzes := make(map[string][]domain.Quiz)
	results := make(map[string][]domain.Result)
	if err := loadSnapshot(ctx, r.snapshots, QuizzesSnapshot, &quizzes); err != nil {
		return err
	}
	if err := loadSnapshot(ctx, r.snapshots, ResultsSnapshot, &results); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.quizzes = quizzes
	r.results = results

	r.log.Info().Int("courses", len(quizzes)).Int("quizzes_with_results", len(results)).Msg("Quiz snapshots loaded")
	return nil
}

func (r *QuizRepository) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneQuiz(quiz)
	r.quizzes[quiz.CourseID] = append(r.quizzes[quiz.CourseID], stored)
	r.flushLocked(ctx)
	return cloneQuiz(stored), nil
}

func (r *QuizRepository) GetQuiz(_ context.Context, courseID, quizID string) (domain.Quiz, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.indexLocked(courseID, quizID)
	if idx < 0 {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(r.quizzes[courseID][idx]), nil
}

// ListSummaries returns the course's quizzes, newest-created first.
func (r *QuizRepository) ListSummaries(_ context.Context, courseID string) ([]domain.QuizSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.quizzes[courseID]
	out := make([]domain.QuizSummary, 0, len(list))
	// Walk backwards so equal timestamps keep the latest insert first.
	for i := len(list) - 1; i >= 0; i-- {
		q := list[i]
		out = append(out, domain.QuizSummary{
			ID:          q.ID,
			Title:       q.Title,
			CreatedAt:   q.CreatedAt,
			FilledCount: len(r.results[q.ID]),
			Status:      q.EffectiveStatus(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *QuizRepository) UpdateTitle(ctx context.Context, courseID, quizID, title string) (domain.Quiz, error) {
	return r.mutate(ctx, courseID, quizID, func(q *domain.Quiz) error {
		q.Title = title
		return nil
	})
}

// UpdateStatus sets the status and returns the effective status it replaced,
// read under the same lock.
func (r *QuizRepository) UpdateStatus(ctx context.Context, courseID, quizID string, status domain.QuizStatus) (domain.Quiz, domain.QuizStatus, error) {
	var previous domain.QuizStatus
	quiz, err := r.mutate(ctx, courseID, quizID, func(q *domain.Quiz) error {
		previous = q.EffectiveStatus()
		q.Status = status
		return nil
	})
	if err != nil {
		return domain.Quiz{}, "", err
	}
	return quiz, previous, nil
}

// UpsertQuestion replaces the question with the same id in place, or appends
// it when the id is new.
func (r *QuizRepository) UpsertQuestion(ctx context.Context, courseID, quizID string, question domain.Question) (domain.Quiz, error) {
	return r.mutate(ctx, courseID, quizID, func(q *domain.Quiz) error {
		question := cloneQuestion(question)
		for i := range q.Questions {
			if q.Questions[i].ID == question.ID {
				q.Questions[i] = question
				return nil
			}
		}
		q.Questions = append(q.Questions, question)
		return nil
	})
}

func (r *QuizRepository) DeleteQuestion(ctx context.Context, courseID, quizID, questionID string) (domain.Quiz, error) {
	return r.mutate(ctx, courseID, quizID, func(q *domain.Quiz) error {
		for i := range q.Questions {
			if q.Questions[i].ID == questionID {
				q.Questions = append(q.Questions[:i], q.Questions[i+1:]...)
				return nil
			}
		}
		return domain.ErrQuestionNotFound
	})
}

// DeleteQuiz removes the quiz and every result submitted for it.
func (r *QuizRepository) DeleteQuiz(ctx context.Context, courseID, quizID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(courseID, quizID)
	if idx < 0 {
		return domain.ErrQuizNotFound
	}

	list := r.quizzes[courseID]
	r.quizzes[courseID] = append(list[:idx:idx], list[idx+1:]...)
	if len(r.quizzes[courseID]) == 0 {
		delete(r.quizzes, courseID)
	}
	delete(r.results, quizID)

	r.flushLocked(ctx)
	return nil
}

func (r *QuizRepository) AddResult(ctx context.Context, result domain.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(result.CourseID, result.QuizID) < 0 {
		return domain.ErrQuizNotFound
	}
	r.results[result.QuizID] = append(r.results[result.QuizID], result)
	r.flushLocked(ctx)
	return nil
}

// Results returns the quiz's submissions, newest first.
func (r *QuizRepository) Results(_ context.Context, courseID, quizID string) ([]domain.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.indexLocked(courseID, quizID) < 0 {
		return nil, domain.ErrQuizNotFound
	}

	stored := r.results[quizID]
	out := make([]domain.Result, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out, nil
}

// mutate applies fn to a working copy and commits it only when fn succeeds.
func (r *QuizRepository) mutate(ctx context.Context, courseID, quizID string, fn func(*domain.Quiz) error) (domain.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(courseID, quizID)
	if idx < 0 {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}

	working := cloneQuiz(r.quizzes[courseID][idx])
	if err := fn(&working); err != nil {
		return domain.Quiz{}, err
	}
	r.quizzes[courseID][idx] = working
	r.flushLocked(ctx)
	return cloneQuiz(working), nil
}

func (r *QuizRepository) indexLocked(courseID, quizID string) int {
	for i, q := range r.quizzes[courseID] {
		if q.ID == quizID {
			return i
		}
	}
	return -1
}

// flushLocked writes both snapshots. Failures are logged; the in-memory
// state stays authoritative until the next successful flush.
func (r *QuizRepository) flushLocked(ctx context.Context) {
	if r.snapshots == nil {
		return
	}

	quizzes, err := encodeSnapshot(QuizzesSnapshot, r.quizzes)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to encode quizzes snapshot")
		return
	}
	results, err := encodeSnapshot(ResultsSnapshot, r.results)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to encode results snapshot")
		return
	}

	ctx, cancel := flushContext(ctx, r.flushTimeout)
	defer cancel()

	// Each save stands alone: one failing must not cancel the other.
	var g errgroup.Group
	g.Go(func() error { return r.snapshots.Save(ctx, QuizzesSnapshot, quizzes) })
	g.Go(func() error { return r.snapshots.Save(ctx, ResultsSnapshot, results) })
	if err := g.Wait(); err != nil {
		r.log.Warn().Err(err).Msg("Failed to persist quiz snapshots")
	}
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	out := q
	out.Questions = make([]domain.Question, 0, len(q.Questions))
	for _, question := range q.Questions {
		out.Questions = append(out.Questions, cloneQuestion(question))
	}
	return out
}

func cloneQuestion(q domain.Question) domain.Question {
	out := q
	out.Options = append([]domain.Option(nil), q.Options...)
	out.CorrectOptionIDs = append([]string(nil), q.CorrectOptionIDs...)
	if out.Options == nil {
		out.Options = []domain.Option{}
	}
	if out.CorrectOptionIDs == nil {
		out.CorrectOptionIDs = []string{}
	}
	return out
}
