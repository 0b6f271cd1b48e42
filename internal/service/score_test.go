package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

func TestScoreCountsIndexwiseMatches(t *testing.T) {
	key := []int{1, 0, 2}

	if got := Score([]int{1, 0, 2}, key); got != 3 {
		t.Fatalf("full match Score = %d, want 3", got)
	}
	if got := Score([]int{1, 0, NoAnswer}, key); got != 2 {
		t.Fatalf("partial Score = %d, want 2", got)
	}
	if got := Score([]int{2, 1, 0}, key); got != 0 {
		t.Fatalf("no match Score = %d, want 0", got)
	}
}

func TestScoreSentinelNeverMatches(t *testing.T) {
	// A -1 in the key position must not pair with a -1 answer.
	if got := Score([]int{NoAnswer}, []int{NoAnswer}); got != 0 {
		t.Fatalf("sentinel Score = %d, want 0", got)
	}
}

func TestScoreLengthMismatch(t *testing.T) {
	key := []int{0, 1, 2}

	if got := Score([]int{0}, key); got != 1 {
		t.Fatalf("short answers Score = %d, want 1", got)
	}
	if got := Score([]int{0, 1, 2, 3, 0}, key); got != 3 {
		t.Fatalf("long answers Score = %d, want 3", got)
	}
	if got := Score(nil, key); got != 0 {
		t.Fatalf("nil answers Score = %d, want 0", got)
	}
	if got := Score([]int{0, 1}, nil); got != 0 {
		t.Fatalf("nil key Score = %d, want 0", got)
	}
}

func TestAnswerVectorFollowsQuestionOrder(t *testing.T) {
	q1 := model.Question{ID: uuid.New(), CorrectAnswer: 1, OrderNum: 1}
	q2 := model.Question{ID: uuid.New(), CorrectAnswer: 0, OrderNum: 2}
	q3 := model.Question{ID: uuid.New(), CorrectAnswer: 2, OrderNum: 3}
	questions := []model.Question{q1, q2, q3}

	key := AnswerKey(questions)
	if len(key) != 3 || key[0] != 1 || key[1] != 0 || key[2] != 2 {
		t.Fatalf("AnswerKey = %v, want [1 0 2]", key)
	}

	buffered := map[uuid.UUID]int{
		q1.ID: 1,
		q3.ID: 0,
	}
	vector := AnswerVector(questions, buffered)
	if len(vector) != 3 || vector[0] != 1 || vector[1] != NoAnswer || vector[2] != 0 {
		t.Fatalf("AnswerVector = %v, want [1 -1 0]", vector)
	}

	if got := Score(vector, key); got != 1 {
		t.Fatalf("Score of buffered vector = %d, want 1", got)
	}
}
