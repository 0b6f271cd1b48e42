package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// AnswerStore buffers in-progress answers in Redis. Every save also
// enqueues the answer on the persistence queue consumed by the answer
// worker, so the buffer survives a Redis flush via PostgreSQL.
type AnswerStore struct {
	rdb *redis.Client
}

// NewAnswerStore creates a new AnswerStore.
func NewAnswerStore(rdb *redis.Client) *AnswerStore {
	return &AnswerStore{rdb: rdb}
}

// QueuedAnswer is the payload pushed onto the persistence queue.
type QueuedAnswer struct {
	SessionID   string `json:"session_id"`
	QuestionID  string `json:"question_id"`
	OptionIndex int    `json:"option_index"`
}

// Save records a single answer. Last write wins per question.
func (s *AnswerStore) Save(ctx context.Context, sessionID, questionID uuid.UUID, optionIndex int) error {
	key := config.CacheKey.SessionAnswersKey(sessionID.String())
	if err := s.rdb.HSet(ctx, key, questionID.String(), optionIndex).Err(); err != nil {
		return fmt.Errorf("buffer answer: %w", err)
	}

	payload, _ := json.Marshal(QueuedAnswer{
		SessionID:   sessionID.String(),
		QuestionID:  questionID.String(),
		OptionIndex: optionIndex,
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue answer: %w", err)
	}
	return nil
}

// All returns every buffered answer for a session keyed by question ID.
func (s *AnswerStore) All(ctx context.Context, sessionID uuid.UUID) (map[uuid.UUID]int, error) {
	key := config.CacheKey.SessionAnswersKey(sessionID.String())
	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}

	answers := make(map[uuid.UUID]int, len(raw))
	for field, value := range raw {
		qid, err := uuid.Parse(field)
		if err != nil {
			continue
		}
		idx, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		answers[qid] = idx
	}
	return answers, nil
}

// Clear drops the buffered answers of a session.
func (s *AnswerStore) Clear(ctx context.Context, sessionID uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.SessionAnswersKey(sessionID.String())).Err()
}
