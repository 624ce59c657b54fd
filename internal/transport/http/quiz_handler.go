package http

import (
	"net/http"
	"strings"

	"course-content-service/internal/app"
	"course-content-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type createQuizRequest struct {
	Title string `json:"title" binding:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=OPEN CLOSED"`
}

type optionRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type questionRequest struct {
	ID               string          `json:"id"`
	Type             string          `json:"type" binding:"required"`
	Text             string          `json:"text" binding:"required"`
	Options          []optionRequest `json:"options" binding:"required"`
	CorrectOptionIDs []string        `json:"correctOptionIds"`
}

type submitRequest struct {
	Answers map[string][]string `json:"answers"`
}

// QuizHandler serves the quiz REST endpoints.
type QuizHandler struct {
	quizzes *app.QuizService
	log     zerolog.Logger
}

func NewQuizHandler(quizzes *app.QuizService, log zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		quizzes: quizzes,
		log:     log.With().Str("component", "quiz_handler").Logger(),
	}
}

// List handles GET /api/courses/:courseId/quizzes.
func (h *QuizHandler) List(c *gin.Context) {
	summaries, err := h.quizzes.List(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusOK, gin.H{"quizzes": summaries})
}

// Create handles POST /api/courses/:courseId/quizzes.
func (h *QuizHandler) Create(c *gin.Context) {
	var req createQuizRequest
	if !bind(c, &req) {
		return
	}
	quiz, err := h.quizzes.Create(c.Request.Context(), c.Param("courseId"), req.Title)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusCreated, gin.H{"quiz": quiz})
}

// Get handles GET /api/courses/:courseId/quizzes/:quizId. Answer keys are
// never part of this view.
func (h *QuizHandler) Get(c *gin.Context) {
	quiz, err := h.quizzes.Public(c.Request.Context(), c.Param("courseId"), c.Param("quizId"))
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// GetFull handles GET /api/courses/:courseId/quizzes/:quizId/full.
func (h *QuizHandler) GetFull(c *gin.Context) {
	quiz, err := h.quizzes.Full(c.Request.Context(), c.Param("courseId"), c.Param("quizId"))
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// UpdateTitle handles PUT /api/courses/:courseId/quizzes/:quizId.
func (h *QuizHandler) UpdateTitle(c *gin.Context) {
	var req createQuizRequest
	if !bind(c, &req) {
		return
	}
	quiz, err := h.quizzes.UpdateTitle(c.Request.Context(), c.Param("courseId"), c.Param("quizId"), req.Title)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// UpdateStatus handles PUT /api/courses/:courseId/quizzes/:quizId/status.
func (h *QuizHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if !bind(c, &req) {
		return
	}
	quiz, err := h.quizzes.UpdateStatus(c.Request.Context(), c.Param("courseId"), c.Param("quizId"), domain.QuizStatus(req.Status))
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// Delete handles DELETE /api/courses/:courseId/quizzes/:quizId.
func (h *QuizHandler) Delete(c *gin.Context) {
	if err := h.quizzes.Delete(c.Request.Context(), c.Param("courseId"), c.Param("quizId")); err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusOK, gin.H{"deleted": true})
}

// UpsertQuestion handles POST /api/courses/:courseId/quizzes/:quizId/questions.
func (h *QuizHandler) UpsertQuestion(c *gin.Context) {
	var req questionRequest
	if !bind(c, &req) {
		return
	}

	options := make([]domain.Option, 0, len(req.Options))
	for _, o := range req.Options {
		options = append(options, domain.Option{ID: o.ID, Text: o.Text})
	}
	question := domain.Question{
		ID:               strings.TrimSpace(req.ID),
		Type:             domain.QuestionType(req.Type),
		Text:             req.Text,
		Options:          options,
		CorrectOptionIDs: req.CorrectOptionIDs,
	}

	quiz, err := h.quizzes.UpsertQuestion(c.Request.Context(), c.Param("courseId"), c.Param("quizId"), question)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// DeleteQuestion handles DELETE /api/courses/:courseId/quizzes/:quizId/questions/:questionId.
func (h *QuizHandler) DeleteQuestion(c *gin.Context) {
	quiz, err := h.quizzes.DeleteQuestion(c.Request.Context(), c.Param("courseId"), c.Param("quizId"), c.Param("questionId"))
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// Submit handles POST /api/courses/:courseId/quizzes/:quizId/submit. The
// optional X-Student-Key header is stored with the result.
func (h *QuizHandler) Submit(c *gin.Context) {
	var req submitRequest
	if !bind(c, &req) {
		return
	}
	graded, err := h.quizzes.Submit(c.Request.Context(), c.Param("courseId"), c.Param("quizId"), req.Answers, c.GetHeader("X-Student-Key"))
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusOK, gin.H{"submission": graded})
}

// Results handles GET /api/courses/:courseId/quizzes/:quizId/results.
func (h *QuizHandler) Results(c *gin.Context) {
	results, err := h.quizzes.Results(c.Request.Context(), c.Param("courseId"), c.Param("quizId"))
	if err != nil {
		failWithError(c, h.log, err)
		return
	}
	success(c, http.StatusOK, gin.H{"results": results})
}
