package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"course-content-service/internal/app"
	"course-content-service/internal/auth"
	"course-content-service/internal/infra/memory"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const lecturerToken = "lecturer-secret"

type testStack struct {
	router http.Handler
	feed   *app.FeedService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()

	feed := app.NewFeedService(memory.NewFeedStore(nil, 0, log), memory.NewChannelStore(app.DefaultSubscriberBuffer), log)
	quizzes := app.NewQuizService(memory.NewQuizRepository(nil, 0, log), feed, log)

	router := NewRouter(RouterConfig{
		Lecturer: auth.NewStaticToken(lecturerToken),
		Log:      log,
	}, Handlers{
		Quiz: NewQuizHandler(quizzes, log),
		Feed: NewFeedHandler(feed, feed, 0, log),
		WS:   NewWSHandler(feed, nil, log),
	})
	return &testStack{router: router, feed: feed}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
	Metadata struct {
		RequestID string `json:"request_id"`
	} `json:"metadata"`
}

// do sends a request; lecturer adds the bearer token.
func (s *testStack) do(t *testing.T, method, path string, body any, lecturer bool, headers ...string) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if lecturer {
		req.Header.Set("Authorization", "Bearer "+lecturerToken)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s response %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestStack(t)
	code, env := s.do(t, http.MethodGet, "/healthz", nil, false, "X-Request-ID", "req-1")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if env.Metadata.RequestID != "req-1" {
		t.Fatalf("expected request id echoed, got %q", env.Metadata.RequestID)
	}
}

func TestLecturerRoutesRequireToken(t *testing.T) {
	s := newTestStack(t)

	code, env := s.do(t, http.MethodPost, "/api/courses/c1/quizzes", map[string]string{"title": "Quiz"}, false)
	if code != http.StatusUnauthorized || env.Error == nil || env.Error.Code != string(ErrTokenRequired) {
		t.Fatalf("expected 401 TOKEN_REQUIRED, got %d %+v", code, env.Error)
	}

	code, env = s.do(t, http.MethodPost, "/api/courses/c1/quizzes", map[string]string{"title": "Quiz"}, false, "Authorization", "Bearer wrong")
	if code != http.StatusUnauthorized || env.Error.Code != string(ErrTokenInvalid) {
		t.Fatalf("expected 401 TOKEN_INVALID, got %d %+v", code, env.Error)
	}
}

func TestQuizLifecycleOverHTTP(t *testing.T) {
	s := newTestStack(t)
	base := "/api/courses/c1/quizzes"

	code, env := s.do(t, http.MethodPost, base, map[string]string{"title": "  Capitals  "}, true)
	if code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d %+v", code, env.Error)
	}
	var created struct {
		Quiz struct {
			ID     string `json:"id"`
			Title  string `json:"title"`
			Status string `json:"status"`
		} `json:"quiz"`
	}
	decodeData(t, env, &created)
	if created.Quiz.Title != "Capitals" || created.Quiz.Status != "OPEN" {
		t.Fatalf("unexpected created quiz: %+v", created.Quiz)
	}
	quizPath := base + "/" + created.Quiz.ID

	question := map[string]any{
		"type": "SINGLE",
		"text": "Capital of France?",
		"options": []map[string]string{
			{"id": "a", "text": "Paris"},
			{"id": "b", "text": "Rome"},
		},
		"correctOptionIds": []string{"a"},
	}
	code, env = s.do(t, http.MethodPost, quizPath+"/questions", question, true)
	if code != http.StatusOK {
		t.Fatalf("upsert question: expected 200, got %d %+v", code, env.Error)
	}
	var withQuestion struct {
		Quiz struct {
			Questions []struct {
				ID string `json:"id"`
			} `json:"questions"`
		} `json:"quiz"`
	}
	decodeData(t, env, &withQuestion)
	questionID := withQuestion.Quiz.Questions[0].ID

	// Public view never exposes the answer key.
	code, env = s.do(t, http.MethodGet, quizPath, nil, false)
	if code != http.StatusOK {
		t.Fatalf("public get: %d", code)
	}
	if bytes.Contains(env.Data, []byte("correctOptionIds")) {
		t.Fatalf("public view leaked answer key: %s", env.Data)
	}
	if code, _ := s.do(t, http.MethodGet, quizPath+"/full", nil, false); code != http.StatusUnauthorized {
		t.Fatalf("full view without token: expected 401, got %d", code)
	}

	code, env = s.do(t, http.MethodPost, quizPath+"/submit", map[string]any{
		"answers": map[string][]string{questionID: {"a"}},
	}, false, "X-Student-Key", "student-42")
	if code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d %+v", code, env.Error)
	}
	var submitted struct {
		Submission struct {
			TotalQuestions   int     `json:"totalQuestions"`
			CorrectQuestions int     `json:"correctQuestions"`
			ScorePercent     float64 `json:"scorePercent"`
		} `json:"submission"`
	}
	decodeData(t, env, &submitted)
	if submitted.Submission.ScorePercent != 100 || submitted.Submission.CorrectQuestions != 1 {
		t.Fatalf("unexpected grading: %+v", submitted.Submission)
	}

	code, env = s.do(t, http.MethodGet, quizPath+"/results", nil, true)
	if code != http.StatusOK {
		t.Fatalf("results: %d", code)
	}
	if bytes.Contains(env.Data, []byte("student-42")) {
		t.Fatalf("results leaked student key: %s", env.Data)
	}

	code, env = s.do(t, http.MethodPut, quizPath+"/status", map[string]string{"status": "CLOSED"}, true)
	if code != http.StatusOK {
		t.Fatalf("close: %d %+v", code, env.Error)
	}
	code, env = s.do(t, http.MethodPost, quizPath+"/submit", map[string]any{"answers": map[string][]string{}}, false)
	if code != http.StatusConflict || env.Error.Code != string(ErrActionForbidden) {
		t.Fatalf("submit closed: expected 409, got %d %+v", code, env.Error)
	}
	if code, _ := s.do(t, http.MethodGet, quizPath, nil, false); code != http.StatusOK {
		t.Fatalf("closed quiz must stay readable, got %d", code)
	}

	if code, _ := s.do(t, http.MethodDelete, quizPath, nil, true); code != http.StatusOK {
		t.Fatalf("delete: %d", code)
	}
	code, env = s.do(t, http.MethodGet, quizPath+"/results", nil, true)
	if code != http.StatusNotFound || env.Error.Code != string(ErrNotFound) {
		t.Fatalf("results after delete: expected 404, got %d %+v", code, env.Error)
	}
}

func TestUpsertQuestionValidation(t *testing.T) {
	s := newTestStack(t)
	base := "/api/courses/c1/quizzes"

	_, env := s.do(t, http.MethodPost, base, map[string]string{"title": "Quiz"}, true)
	var created struct {
		Quiz struct {
			ID string `json:"id"`
		} `json:"quiz"`
	}
	decodeData(t, env, &created)

	code, env := s.do(t, http.MethodPost, base+"/"+created.Quiz.ID+"/questions", map[string]any{
		"type":             "SINGLE",
		"text":             "Pick one",
		"options":          []map[string]string{{"id": "a", "text": "A"}, {"id": "b", "text": "B"}},
		"correctOptionIds": []string{"a", "b"},
	}, true)
	if code != http.StatusBadRequest || env.Error.Code != string(ErrValidation) {
		t.Fatalf("expected 400 VALIDATION_ERROR, got %d %+v", code, env.Error)
	}
	if len(env.Error.Fields) == 0 {
		t.Fatalf("expected field details")
	}

	code, env = s.do(t, http.MethodPost, base+"/"+created.Quiz.ID+"/questions", map[string]any{"text": "No type"}, true)
	if code != http.StatusBadRequest || env.Error.Fields["type"] == "" {
		t.Fatalf("expected binding error on type, got %d %+v", code, env.Error)
	}

	code, _ = s.do(t, http.MethodPost, "/api/courses/other/quizzes/"+created.Quiz.ID+"/questions", map[string]any{
		"type":             "MULTI",
		"text":             "Pick some",
		"options":          []map[string]string{{"text": "A"}, {"text": "B"}},
		"correctOptionIds": []string{"x"},
	}, true)
	if code != http.StatusBadRequest {
		t.Fatalf("expected validation before lookup, got %d", code)
	}
}

func TestFeedOverHTTP(t *testing.T) {
	s := newTestStack(t)
	base := "/api/courses/c1/feed"

	long := bytes.Repeat([]byte("x"), 5000)
	code, env := s.do(t, http.MethodPost, base, map[string]string{"message": string(long)}, true)
	if code != http.StatusCreated {
		t.Fatalf("create post: %d %+v", code, env.Error)
	}
	var created struct {
		Item struct {
			ID      string `json:"id"`
			Message string `json:"message"`
		} `json:"item"`
	}
	decodeData(t, env, &created)
	if len(created.Item.Message) != 4000 {
		t.Fatalf("expected message truncated to 4000, got %d", len(created.Item.Message))
	}

	code, env = s.do(t, http.MethodPut, base+"/"+created.Item.ID, map[string]string{"message": "edited"}, true)
	if code != http.StatusOK {
		t.Fatalf("update: %d %+v", code, env.Error)
	}

	code, _ = s.do(t, http.MethodPost, base+"/events", map[string]string{"message": "New material uploaded: notes.pdf"}, true)
	if code != http.StatusAccepted {
		t.Fatalf("auto event: expected 202, got %d", code)
	}

	code, env = s.do(t, http.MethodGet, base, nil, false)
	if code != http.StatusOK {
		t.Fatalf("list: %d", code)
	}
	var listed struct {
		Items []struct {
			ID     string `json:"id"`
			Type   string `json:"type"`
			Edited bool   `json:"edited"`
		} `json:"items"`
	}
	decodeData(t, env, &listed)
	if len(listed.Items) != 2 {
		t.Fatalf("expected 2 items, got %+v", listed.Items)
	}
	var autoID string
	for _, item := range listed.Items {
		if item.Type == "AUTO" {
			autoID = item.ID
		}
		if item.Type == "POST" && !item.Edited {
			t.Fatalf("expected post marked edited")
		}
	}
	if autoID == "" {
		t.Fatalf("expected an AUTO item in %+v", listed.Items)
	}

	code, env = s.do(t, http.MethodDelete, base+"/"+autoID, nil, true)
	if code != http.StatusConflict || env.Error.Code != string(ErrActionForbidden) {
		t.Fatalf("delete auto: expected 409, got %d %+v", code, env.Error)
	}
	code, _ = s.do(t, http.MethodDelete, "/api/courses/c2/feed/"+created.Item.ID, nil, true)
	if code != http.StatusNotFound {
		t.Fatalf("cross-course delete: expected 404, got %d", code)
	}
	code, _ = s.do(t, http.MethodPost, base, map[string]string{"message": "   "}, true)
	if code != http.StatusBadRequest {
		t.Fatalf("blank post: expected 400, got %d", code)
	}
}

func TestAutoEventIgnoresBlankMessages(t *testing.T) {
	s := newTestStack(t)
	base := "/api/courses/c1/feed"

	for _, msg := range []string{"", "   "} {
		code, env := s.do(t, http.MethodPost, base+"/events", map[string]string{"message": msg}, true)
		if code != http.StatusAccepted {
			t.Fatalf("auto event %q: expected 202, got %d %+v", msg, code, env.Error)
		}
	}

	_, env := s.do(t, http.MethodGet, base, nil, false)
	var listed struct {
		Items []json.RawMessage `json:"items"`
	}
	decodeData(t, env, &listed)
	if len(listed.Items) != 0 {
		t.Fatalf("expected blank auto events dropped, got %d items", len(listed.Items))
	}
}

func TestBlankEditOfAutoItemIsForbidden(t *testing.T) {
	s := newTestStack(t)
	base := "/api/courses/c1/feed"

	_, _ = s.do(t, http.MethodPost, base+"/events", map[string]string{"message": "New material uploaded: notes.pdf"}, true)
	items, _ := s.feed.List(context.Background(), "c1")
	if len(items) != 1 {
		t.Fatalf("expected one auto item, got %d", len(items))
	}

	code, env := s.do(t, http.MethodPut, base+"/"+items[0].ID, map[string]string{"message": "   "}, true)
	if code != http.StatusConflict || env.Error.Code != string(ErrActionForbidden) {
		t.Fatalf("expected 409 for auto item, got %d %+v", code, env.Error)
	}
	code, _ = s.do(t, http.MethodPut, base+"/missing", map[string]string{"message": "   "}, true)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing item, got %d", code)
	}
}

func TestMalformedBodyIsInvalidPayload(t *testing.T) {
	s := newTestStack(t)

	req := httptest.NewRequest(http.MethodPost, "/api/courses/c1/quizzes", strings.NewReader(`{"title":`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+lecturerToken)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	if rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != string(ErrInvalidPayload) {
		t.Fatalf("expected 400 INVALID_PAYLOAD, got %d %+v", rec.Code, env.Error)
	}

	code, env := s.do(t, http.MethodPost, "/api/courses/c1/quizzes", map[string]string{}, true)
	if code != http.StatusBadRequest || env.Error.Code != string(ErrValidation) {
		t.Fatalf("expected 400 VALIDATION_ERROR for missing title, got %d %+v", code, env.Error)
	}
}

func waitForSubscribers(t *testing.T, feed *app.FeedService, courseID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for feed.Subscribers(courseID) != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, got %d", want, feed.Subscribers(courseID))
		}
		time.Sleep(10 * time.Millisecond)
	}
}
