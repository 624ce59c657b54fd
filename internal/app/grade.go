package app

import (
	"math"

	"course-content-service/internal/domain"
)

// Grade scores answers against quiz. A question counts as correct only when
// the selected set equals the correct set; order and duplicates are ignored
// and a missing answer is an empty selection.
func Grade(quiz domain.Quiz, answers map[string][]string) domain.SubmitResponse {
	total := len(quiz.Questions)
	correct := 0
	details := make([]domain.QuestionResult, 0, total)

	for _, q := range quiz.Questions {
		selected := dedupe(answers[q.ID])
		expected := dedupe(q.CorrectOptionIDs)

		ok := sameSet(selected, expected)
		if ok {
			correct++
		}
		details = append(details, domain.QuestionResult{
			QuestionID:        q.ID,
			Correct:           ok,
			CorrectOptionIDs:  expected,
			SelectedOptionIDs: selected,
		})
	}

	return domain.SubmitResponse{
		TotalQuestions:   total,
		CorrectQuestions: correct,
		ScorePercent:     scorePercent(correct, total),
		Details:          details,
	}
}

// scorePercent rounds to one decimal place.
func scorePercent(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(total)*1000) / 10
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// sameSet expects both slices to be free of duplicates.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	for _, id := range a {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
