package domain

import "time"

// QuestionType selects how many options may be marked correct.
type QuestionType string

const (
	QuestionSingle QuestionType = "SINGLE"
	QuestionMulti  QuestionType = "MULTI"
)

// QuizStatus controls whether a quiz accepts new submissions.
type QuizStatus string

const (
	QuizOpen   QuizStatus = "OPEN"
	QuizClosed QuizStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s QuizStatus) Valid() bool {
	return s == QuizOpen || s == QuizClosed
}

// Option represents a possible answer for a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question models a choice question. CorrectOptionIDs only ever references
// ids from Options.
type Question struct {
	ID               string       `json:"id"`
	Type             QuestionType `json:"type"`
	Text             string       `json:"text"`
	Options          []Option     `json:"options"`
	CorrectOptionIDs []string     `json:"correctOptionIds"`
}

// Quiz is an ordered collection of questions scoped to a course.
type Quiz struct {
	ID        string     `json:"id"`
	CourseID  string     `json:"courseId"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"createdAt"`
	Questions []Question `json:"questions"`
	Status    QuizStatus `json:"status,omitempty"`
}

// EffectiveStatus treats a missing status as OPEN.
func (q Quiz) EffectiveStatus() QuizStatus {
	if q.Status == "" {
		return QuizOpen
	}
	return q.Status
}

// Result is an immutable graded submission.
type Result struct {
	ID               string    `json:"id"`
	CourseID         string    `json:"courseId"`
	QuizID           string    `json:"quizId"`
	SubmittedAt      time.Time `json:"submittedAt"`
	TotalQuestions   int       `json:"totalQuestions"`
	CorrectQuestions int       `json:"correctQuestions"`
	StudentKey       string    `json:"studentKey,omitempty"`
}

// QuizSummary is the list projection of a quiz.
type QuizSummary struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	CreatedAt   time.Time  `json:"createdAt"`
	FilledCount int        `json:"filledCount"`
	Status      QuizStatus `json:"status"`
}

// PublicQuestion is a question without its answer key.
type PublicQuestion struct {
	ID      string       `json:"id"`
	Type    QuestionType `json:"type"`
	Text    string       `json:"text"`
	Options []Option     `json:"options"`
}

// PublicQuiz is the student-facing view of a quiz.
type PublicQuiz struct {
	ID        string           `json:"id"`
	CourseID  string           `json:"courseId"`
	Title     string           `json:"title"`
	CreatedAt time.Time        `json:"createdAt"`
	Questions []PublicQuestion `json:"questions"`
	Status    QuizStatus       `json:"status"`
}

// ResultView is what lecturers see when listing results.
type ResultView struct {
	ID               string    `json:"id"`
	CourseID         string    `json:"courseId"`
	QuizID           string    `json:"quizId"`
	SubmittedAt      time.Time `json:"submittedAt"`
	TotalQuestions   int       `json:"totalQuestions"`
	CorrectQuestions int       `json:"correctQuestions"`
}

// QuestionResult is the per-question grading breakdown.
type QuestionResult struct {
	QuestionID        string   `json:"questionId"`
	Correct           bool     `json:"correct"`
	CorrectOptionIDs  []string `json:"correctOptionIds"`
	SelectedOptionIDs []string `json:"selectedOptionIds"`
}

// SubmitResponse summarizes a graded submission for the submitter.
type SubmitResponse struct {
	TotalQuestions   int              `json:"totalQuestions"`
	CorrectQuestions int              `json:"correctQuestions"`
	ScorePercent     float64          `json:"scorePercent"`
	Details          []QuestionResult `json:"details"`
}

// FeedItemType distinguishes lecturer posts from system events.
type FeedItemType string

const (
	FeedPost FeedItemType = "POST"
	FeedAuto FeedItemType = "AUTO"
)

// MaxFeedMessageLen is the maximum stored message length in characters.
const MaxFeedMessageLen = 4000

// FeedItem is a single entry of a course feed.
type FeedItem struct {
	ID        string       `json:"id"`
	CourseID  string       `json:"courseId"`
	Type      FeedItemType `json:"type"`
	Message   string       `json:"message"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Edited    bool         `json:"edited"`
}

// FeedEventType names the envelopes pushed to live subscribers.
type FeedEventType string

const (
	FeedEventHello  FeedEventType = "hello"
	FeedEventNew    FeedEventType = "new"
	FeedEventUpdate FeedEventType = "update"
	FeedEventDelete FeedEventType = "delete"
)

// FeedEvent is the envelope delivered to subscribers.
type FeedEvent struct {
	Type     FeedEventType `json:"type"`
	OK       bool          `json:"ok,omitempty"`
	CourseID string        `json:"courseId,omitempty"`
	Item     *FeedItem     `json:"item,omitempty"`
	ID       string        `json:"id,omitempty"`
}
