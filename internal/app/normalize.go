package app

import (
	"strings"

	"course-content-service/internal/domain"
)

// IDGenerator returns a fresh unique identifier.
type IDGenerator func() string

// NormalizeTitle trims a quiz title and rejects blank ones.
func NormalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", domain.NewValidationError("title", "quiz title must not be blank")
	}
	return title, nil
}

// NormalizeQuestion turns lecturer input into a canonical question or fails
// with a validation error. Correct ids that do not name a kept option are
// dropped rather than rejected.
func NormalizeQuestion(raw domain.Question, newID IDGenerator) (domain.Question, error) {
	if raw.Type != domain.QuestionSingle && raw.Type != domain.QuestionMulti {
		return domain.Question{}, domain.NewValidationError("type", "question type must be SINGLE or MULTI")
	}

	text := strings.TrimSpace(raw.Text)
	if text == "" {
		return domain.Question{}, domain.NewValidationError("text", "question text must not be blank")
	}

	options := normalizeOptions(raw.Options, newID)
	if len(options) < 2 {
		return domain.Question{}, domain.NewValidationError("options", "question needs at least 2 non-blank options")
	}

	correct := normalizeCorrect(raw.CorrectOptionIDs, options)
	switch raw.Type {
	case domain.QuestionSingle:
		if len(correct) != 1 {
			return domain.Question{}, domain.NewValidationError("correctOptionIds", "SINGLE question needs exactly 1 correct option")
		}
	case domain.QuestionMulti:
		if len(correct) == 0 {
			return domain.Question{}, domain.NewValidationError("correctOptionIds", "MULTI question needs at least 1 correct option")
		}
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = newID()
	}

	return domain.Question{
		ID:               id,
		Type:             raw.Type,
		Text:             text,
		Options:          options,
		CorrectOptionIDs: correct,
	}, nil
}

func normalizeOptions(in []domain.Option, newID IDGenerator) []domain.Option {
	out := make([]domain.Option, 0, len(in))
	for _, o := range in {
		text := strings.TrimSpace(o.Text)
		if text == "" {
			continue
		}
		id := strings.TrimSpace(o.ID)
		if id == "" {
			id = newID()
		}
		out = append(out, domain.Option{ID: id, Text: text})
	}
	return out
}

// normalizeCorrect keeps the first occurrence of every id that names an option.
func normalizeCorrect(in []string, options []domain.Option) []string {
	allowed := make(map[string]struct{}, len(options))
	for _, o := range options {
		allowed[o.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		if _, ok := allowed[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
