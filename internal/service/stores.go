package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/cache"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
)

// Store interfaces consumed by the attempt lifecycle services. The
// repository package provides the PostgreSQL implementations; tests
// substitute in-memory fakes.

type TestStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error)
}

type StudentStore interface {
	GetByEmail(ctx context.Context, email string) (*model.Student, error)
}

type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.TestSession, error)
	GetOpen(ctx context.Context, testID uuid.UUID, studentID int) (*model.TestSession, error)
	Create(ctx context.Context, s *model.TestSession) error
	CloseAndMarkTaken(ctx context.Context, sessionID uuid.UUID, studentID int, score, totalQuestions int) (bool, error)
	ListAnswers(ctx context.Context, sessionID uuid.UUID) (map[uuid.UUID]int, error)
	ListExpiredOpen(ctx context.Context, grace time.Duration) ([]repository.ExpiredSession, error)
}

type QuestionStore interface {
	ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error)
}

// AnswerBuffer holds in-progress answers between page loads.
type AnswerBuffer interface {
	Save(ctx context.Context, sessionID, questionID uuid.UUID, optionIndex int) error
	All(ctx context.Context, sessionID uuid.UUID) (map[uuid.UUID]int, error)
	Clear(ctx context.Context, sessionID uuid.UUID) error
}

var (
	_ TestStore     = (*repository.TestRepository)(nil)
	_ StudentStore  = (*repository.StudentRepository)(nil)
	_ SessionStore  = (*repository.TestSessionRepository)(nil)
	_ QuestionStore = (*repository.QuestionRepository)(nil)
	_ AnswerBuffer  = (*cache.AnswerStore)(nil)
)
