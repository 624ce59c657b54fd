package app

import (
	"context"
	"strings"
	"time"

	"course-content-service/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QuizRepository stores quizzes and their results. Implementations serialize
// all access and persist every mutation before returning.
type QuizRepository interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	GetQuiz(ctx context.Context, courseID, quizID string) (domain.Quiz, error)
	ListSummaries(ctx context.Context, courseID string) ([]domain.QuizSummary, error)
	UpdateTitle(ctx context.Context, courseID, quizID, title string) (domain.Quiz, error)
	// UpdateStatus also returns the effective status before the change.
	UpdateStatus(ctx context.Context, courseID, quizID string, status domain.QuizStatus) (domain.Quiz, domain.QuizStatus, error)
	UpsertQuestion(ctx context.Context, courseID, quizID string, question domain.Question) (domain.Quiz, error)
	DeleteQuestion(ctx context.Context, courseID, quizID, questionID string) (domain.Quiz, error)
	DeleteQuiz(ctx context.Context, courseID, quizID string) error
	AddResult(ctx context.Context, result domain.Result) error
	Results(ctx context.Context, courseID, quizID string) ([]domain.Result, error)
}

// AutoEventSink receives system generated feed messages.
type AutoEventSink interface {
	Emit(ctx context.Context, courseID, message string) error
}

// NewID returns a random UUID string.
func NewID() string {
	return uuid.NewString()
}

// QuizService contains the quiz use cases.
type QuizService struct {
	quizzes QuizRepository
	events  AutoEventSink
	now     func() time.Time
	newID   IDGenerator
	log     zerolog.Logger
}

func NewQuizService(quizzes QuizRepository, events AutoEventSink, log zerolog.Logger) *QuizService {
	return NewQuizServiceWithClock(quizzes, events, log, time.Now, NewID)
}

// NewQuizServiceWithClock allows deterministic timestamps and ids in tests.
func NewQuizServiceWithClock(quizzes QuizRepository, events AutoEventSink, log zerolog.Logger, now func() time.Time, newID IDGenerator) *QuizService {
	return &QuizService{
		quizzes: quizzes,
		events:  events,
		now:     now,
		newID:   newID,
		log:     log.With().Str("component", "quiz_service").Logger(),
	}
}

// Create adds an OPEN quiz without questions and announces it in the course feed.
func (s *QuizService) Create(ctx context.Context, courseID, title string) (domain.Quiz, error) {
	t, err := NormalizeTitle(title)
	if err != nil {
		return domain.Quiz{}, err
	}

	quiz, err := s.quizzes.CreateQuiz(ctx, domain.Quiz{
		ID:        s.newID(),
		CourseID:  courseID,
		Title:     t,
		CreatedAt: s.now().UTC(),
		Questions: []domain.Question{},
		Status:    domain.QuizOpen,
	})
	if err != nil {
		return domain.Quiz{}, err
	}

	s.emit(ctx, courseID, "New quiz created: "+quiz.Title)
	return quiz, nil
}

// List returns the course's quizzes, newest first.
func (s *QuizService) List(ctx context.Context, courseID string) ([]domain.QuizSummary, error) {
	return s.quizzes.ListSummaries(ctx, courseID)
}

// Public returns the quiz without its answer key.
func (s *QuizService) Public(ctx context.Context, courseID, quizID string) (domain.PublicQuiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, courseID, quizID)
	if err != nil {
		return domain.PublicQuiz{}, err
	}
	return publicView(quiz), nil
}

// Full returns the quiz including correct option ids. Callers must have
// checked the lecturer credential.
func (s *QuizService) Full(ctx context.Context, courseID, quizID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, courseID, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.Status = quiz.EffectiveStatus()
	return quiz, nil
}

// UpdateTitle renames a quiz.
func (s *QuizService) UpdateTitle(ctx context.Context, courseID, quizID, title string) (domain.Quiz, error) {
	t, err := NormalizeTitle(title)
	if err != nil {
		return domain.Quiz{}, err
	}
	return s.quizzes.UpdateTitle(ctx, courseID, quizID, t)
}

// UpdateStatus opens or closes a quiz for submissions.
func (s *QuizService) UpdateStatus(ctx context.Context, courseID, quizID string, status domain.QuizStatus) (domain.Quiz, error) {
	if !status.Valid() {
		return domain.Quiz{}, domain.NewValidationError("status", "status must be OPEN or CLOSED")
	}

	quiz, previous, err := s.quizzes.UpdateStatus(ctx, courseID, quizID, status)
	if err != nil {
		return domain.Quiz{}, err
	}

	// Only the call that actually flipped the status announces it.
	if previous != status {
		if status == domain.QuizClosed {
			s.emit(ctx, courseID, "Quiz closed: "+quiz.Title)
		} else {
			s.emit(ctx, courseID, "Quiz reopened: "+quiz.Title)
		}
	}
	return quiz, nil
}

// UpsertQuestion validates and normalizes the question before touching the
// quiz, so a rejected question leaves the quiz unchanged.
func (s *QuizService) UpsertQuestion(ctx context.Context, courseID, quizID string, raw domain.Question) (domain.Quiz, error) {
	question, err := NormalizeQuestion(raw, s.newID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return s.quizzes.UpsertQuestion(ctx, courseID, quizID, question)
}

// DeleteQuestion removes a question from a quiz.
func (s *QuizService) DeleteQuestion(ctx context.Context, courseID, quizID, questionID string) (domain.Quiz, error) {
	return s.quizzes.DeleteQuestion(ctx, courseID, quizID, questionID)
}

// Delete removes a quiz together with its results.
func (s *QuizService) Delete(ctx context.Context, courseID, quizID string) error {
	return s.quizzes.DeleteQuiz(ctx, courseID, quizID)
}

// Submit grades answers and stores the outcome. The full breakdown is
// returned to the submitter.
func (s *QuizService) Submit(ctx context.Context, courseID, quizID string, answers map[string][]string, studentKey string) (domain.SubmitResponse, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, courseID, quizID)
	if err != nil {
		return domain.SubmitResponse{}, err
	}
	if quiz.EffectiveStatus() == domain.QuizClosed {
		return domain.SubmitResponse{}, domain.ErrQuizClosed
	}

	graded := Grade(quiz, answers)

	result := domain.Result{
		ID:               s.newID(),
		CourseID:         courseID,
		QuizID:           quizID,
		SubmittedAt:      s.now().UTC(),
		TotalQuestions:   graded.TotalQuestions,
		CorrectQuestions: graded.CorrectQuestions,
		StudentKey:       strings.TrimSpace(studentKey),
	}
	if err := s.quizzes.AddResult(ctx, result); err != nil {
		return domain.SubmitResponse{}, err
	}

	s.log.Debug().
		Str("course_id", courseID).
		Str("quiz_id", quizID).
		Int("correct", graded.CorrectQuestions).
		Int("total", graded.TotalQuestions).
		Msg("Quiz submitted and graded")

	return graded, nil
}

// Results lists the stored submissions of a quiz, newest first.
func (s *QuizService) Results(ctx context.Context, courseID, quizID string) ([]domain.ResultView, error) {
	results, err := s.quizzes.Results(ctx, courseID, quizID)
	if err != nil {
		return nil, err
	}
	views := make([]domain.ResultView, 0, len(results))
	for _, r := range results {
		views = append(views, domain.ResultView{
			ID:               r.ID,
			CourseID:         r.CourseID,
			QuizID:           r.QuizID,
			SubmittedAt:      r.SubmittedAt,
			TotalQuestions:   r.TotalQuestions,
			CorrectQuestions: r.CorrectQuestions,
		})
	}
	return views, nil
}

// emit forwards an advisory feed message; failures never fail the quiz operation.
func (s *QuizService) emit(ctx context.Context, courseID, message string) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, courseID, message); err != nil {
		s.log.Warn().Err(err).Str("course_id", courseID).Msg("Failed to emit feed auto-event")
	}
}

func publicView(quiz domain.Quiz) domain.PublicQuiz {
	questions := make([]domain.PublicQuestion, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		options := q.Options
		if options == nil {
			options = []domain.Option{}
		}
		questions = append(questions, domain.PublicQuestion{
			ID:      q.ID,
			Type:    q.Type,
			Text:    q.Text,
			Options: options,
		})
	}
	return domain.PublicQuiz{
		ID:        quiz.ID,
		CourseID:  quiz.CourseID,
		Title:     quiz.Title,
		CreatedAt: quiz.CreatedAt,
		Questions: questions,
		Status:    quiz.EffectiveStatus(),
	}
}
