package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/rs/zerolog"
)

var (
	// ErrSessionExpired covers every way a stored attempt reference can
	// go stale: missing session row, triple mismatch, closed session.
	// The client reaction is always the same: clear state and re-login.
	ErrSessionExpired = errors.New("attempt session is no longer valid")
	// ErrPersistence marks a failed submission write. Buffered answers
	// are kept so the submission can be retried without data loss.
	ErrPersistence = errors.New("could not persist submission")
)

// AttemptRef is the verified identity triple carried by an attempt token.
type AttemptRef struct {
	SessionID uuid.UUID
	StudentID int
	TestID    uuid.UUID
}

// AttemptState is the reload view of an in-progress attempt.
type AttemptState struct {
	SessionID        uuid.UUID         `json:"session_id"`
	RemainingSeconds int               `json:"remaining_seconds"`
	Answers          map[uuid.UUID]int `json:"answers"`
}

// SubmitResult is the outcome of closing an attempt.
type SubmitResult struct {
	SessionID        uuid.UUID `json:"session_id"`
	TotalScore       int       `json:"total_score"`
	TotalQuestions   int       `json:"total_questions"`
	AlreadySubmitted bool      `json:"already_submitted"`
}

// AttemptService controls a running attempt: it re-verifies the session
// binding on every entry, serves the paper without answer keys, buffers
// answers, and performs the exactly-once scored close.
type AttemptService struct {
	sessions  SessionStore
	tests     TestStore
	questions QuestionStore
	answers   AnswerBuffer
	log       zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(sessions SessionStore, tests TestStore, questions QuestionStore, answers AnswerBuffer, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		sessions:  sessions,
		tests:     tests,
		questions: questions,
		answers:   answers,
		log:       log.With().Str("component", "attempt_service").Logger(),
	}
}

// Verify checks the stored attempt reference against the data store:
// the session row must exist, match all three fields, and still be
// open. Any mismatch is ErrSessionExpired and forces a re-login.
func (s *AttemptService) Verify(ctx context.Context, ref AttemptRef) (*model.TestSession, error) {
	session, err := s.sessions.GetByID(ctx, ref.SessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.StudentID != ref.StudentID || session.TestID != ref.TestID {
		return nil, ErrSessionExpired
	}
	if session.CompletedAt != nil {
		return nil, ErrSessionExpired
	}
	return session, nil
}

// GetPaper loads the test and its ordered questions for a verified
// attempt. The active flag and time window are re-checked: a test may
// have been deactivated or expired between login and paper load.
// Correct answers never leave the server.
func (s *AttemptService) GetPaper(ctx context.Context, ref AttemptRef) (*model.TestPaper, error) {
	session, err := s.Verify(ctx, ref)
	if err != nil {
		return nil, err
	}

	test, err := s.tests.GetByID(ctx, ref.TestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}

	if err := checkTestOpen(test, time.Now()); err != nil {
		return nil, err
	}

	questions, err := s.questions.ListByTest(ctx, ref.TestID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	forStudent := make([]model.QuestionForStudent, len(questions))
	for i, q := range questions {
		forStudent[i] = q.ForStudent()
	}

	return &model.TestPaper{
		TestID:           test.ID,
		Title:            test.Title,
		DurationMinutes:  test.DurationMinutes,
		RemainingSeconds: remainingSeconds(session.StartedAt, test.DurationMinutes, time.Now()),
		Questions:        forStudent,
	}, nil
}

// GetState returns the remaining time and buffered answers so a page
// reload can resume where the student left off.
func (s *AttemptService) GetState(ctx context.Context, ref AttemptRef) (*AttemptState, error) {
	session, err := s.Verify(ctx, ref)
	if err != nil {
		return nil, err
	}

	test, err := s.tests.GetByID(ctx, ref.TestID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}

	answers, err := s.bufferedAnswers(ctx, ref.SessionID)
	if err != nil {
		return nil, err
	}

	return &AttemptState{
		SessionID:        session.ID,
		RemainingSeconds: remainingSeconds(session.StartedAt, test.DurationMinutes, time.Now()),
		Answers:          answers,
	}, nil
}

// SaveAnswer buffers a single answer for a verified attempt. Selecting
// another option for the same question overwrites it. Last click wins.
func (s *AttemptService) SaveAnswer(ctx context.Context, ref AttemptRef, questionID uuid.UUID, optionIndex int) error {
	if _, err := s.Verify(ctx, ref); err != nil {
		return err
	}
	if optionIndex < 0 {
		return fmt.Errorf("option index must not be negative")
	}
	return s.answers.Save(ctx, ref.SessionID, questionID, optionIndex)
}

// Submit scores the answer vector and closes the session. The close is
// conditional on the session still being open, so the user clicking
// Submit while the deadline worker fires resolves to exactly one scored
// close; the loser reads back the recorded result.
func (s *AttemptService) Submit(ctx context.Context, ref AttemptRef, answers []int) (*SubmitResult, error) {
	session, err := s.sessions.GetByID(ctx, ref.SessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.StudentID != ref.StudentID || session.TestID != ref.TestID {
		return nil, ErrSessionExpired
	}
	if session.CompletedAt != nil {
		return recordedResult(session), nil
	}

	questions, err := s.questions.ListByTest(ctx, ref.TestID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	score := Score(answers, AnswerKey(questions))

	closed, err := s.sessions.CloseAndMarkTaken(ctx, ref.SessionID, ref.StudentID, score, len(questions))
	if err != nil {
		// Buffered answers stay in place so the client can retry.
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !closed {
		session, err = s.sessions.GetByID(ctx, ref.SessionID)
		if err != nil {
			return nil, fmt.Errorf("refetch session after lost close race: %w", err)
		}
		return recordedResult(session), nil
	}

	if err := s.answers.Clear(ctx, ref.SessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", ref.SessionID.String()).Msg("Clear answer buffer failed")
	}

	s.log.Info().
		Str("session_id", ref.SessionID.String()).
		Int("student_id", ref.StudentID).
		Int("score", score).
		Int("total", len(questions)).
		Msg("Attempt submitted and scored")

	return &SubmitResult{
		SessionID:      ref.SessionID,
		TotalScore:     score,
		TotalQuestions: len(questions),
	}, nil
}

// SubmitBuffered closes an attempt from the buffered answers. Used by
// the WebSocket submit action and by the deadline worker on timeout.
func (s *AttemptService) SubmitBuffered(ctx context.Context, ref AttemptRef) (*SubmitResult, error) {
	questions, err := s.questions.ListByTest(ctx, ref.TestID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	buffered, err := s.bufferedAnswers(ctx, ref.SessionID)
	if err != nil {
		return nil, err
	}

	return s.Submit(ctx, ref, AnswerVector(questions, buffered))
}

// bufferedAnswers reads the Redis answer buffer. An empty buffer falls
// back to the session_answers rows written by the answer worker, so a
// Redis flush does not lose an in-progress attempt.
func (s *AttemptService) bufferedAnswers(ctx context.Context, sessionID uuid.UUID) (map[uuid.UUID]int, error) {
	answers, err := s.answers.All(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read buffered answers: %w", err)
	}
	if len(answers) > 0 {
		return answers, nil
	}

	persisted, err := s.sessions.ListAnswers(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read persisted answers: %w", err)
	}
	if len(persisted) > 0 {
		s.log.Warn().
			Str("session_id", sessionID.String()).
			Int("count", len(persisted)).
			Msg("Answer buffer empty, recovered persisted answers")
	}
	return persisted, nil
}

func recordedResult(session *model.TestSession) *SubmitResult {
	result := &SubmitResult{
		SessionID:        session.ID,
		AlreadySubmitted: true,
	}
	if session.TotalScore != nil {
		result.TotalScore = *session.TotalScore
	}
	if session.TotalQuestions != nil {
		result.TotalQuestions = *session.TotalQuestions
	}
	return result
}

// remainingSeconds counts down from started_at + duration, floored at zero.
func remainingSeconds(startedAt time.Time, durationMinutes int, now time.Time) int {
	deadline := startedAt.Add(time.Duration(durationMinutes) * time.Minute)
	remaining := int(deadline.Sub(now).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
