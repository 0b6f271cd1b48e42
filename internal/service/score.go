package service

import (
	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// NoAnswer is the sentinel for an unanswered slot in an answer vector.
const NoAnswer = -1

// Score counts the positions where the submitted answer equals the
// answer key. Unanswered slots never match; a vector shorter than the
// key leaves the tail unanswered, a longer one has its tail ignored.
func Score(answers, key []int) int {
	n := len(key)
	if len(answers) < n {
		n = len(answers)
	}

	score := 0
	for i := 0; i < n; i++ {
		if answers[i] != NoAnswer && answers[i] == key[i] {
			score++
		}
	}
	return score
}

// AnswerKey extracts the correct-answer vector from an ordered
// question list.
func AnswerKey(questions []model.Question) []int {
	key := make([]int, len(questions))
	for i, q := range questions {
		key[i] = q.CorrectAnswer
	}
	return key
}

// AnswerVector maps buffered per-question answers onto the ordered
// question list, filling gaps with the NoAnswer sentinel.
func AnswerVector(questions []model.Question, byQuestion map[uuid.UUID]int) []int {
	answers := make([]int, len(questions))
	for i, q := range questions {
		if idx, ok := byQuestion[q.ID]; ok {
			answers[i] = idx
		} else {
			answers[i] = NoAnswer
		}
	}
	return answers
}
