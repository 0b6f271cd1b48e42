package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// Attempt lifecycle errors surfaced to the login endpoint.
var (
	ErrTestNotFound   = errors.New("test not found")
	ErrTestInactive   = errors.New("test is not open for attempts")
	ErrTestNotStarted = errors.New("test has not started yet")
	ErrTestEnded      = errors.New("test has already ended")
	ErrAlreadyTaken   = errors.New("student has already taken this test")
)

// AttemptAuthorizer verifies credentials and issues attempt tokens.
// Implemented by AuthService.
type AttemptAuthorizer interface {
	CheckPassword(hash, password string) error
	IssueAttemptToken(ctx context.Context, sessionID uuid.UUID, studentID int, testID uuid.UUID) (string, error)
}

// AttemptGrant is the result of a successful attempt login.
type AttemptGrant struct {
	Token       string             `json:"token"`
	Session     *model.TestSession `json:"session"`
	StudentID   int                `json:"student_id"`
	StudentName string             `json:"student_name"`
	TestID      uuid.UUID          `json:"test_id"`
}

// SessionService negotiates attempt sessions: it validates that a test
// is open, authenticates the student, and returns the open session for
// the pair, reusing an existing one so repeated logins are idempotent.
type SessionService struct {
	tests    TestStore
	students StudentStore
	sessions SessionStore
	auth     AttemptAuthorizer
}

// NewSessionService creates a new SessionService.
func NewSessionService(tests TestStore, students StudentStore, sessions SessionStore, auth AttemptAuthorizer) *SessionService {
	return &SessionService{
		tests:    tests,
		students: students,
		sessions: sessions,
		auth:     auth,
	}
}

// checkTestOpen validates the attempt gate shared by login and paper
// load: the test must be active, and when both window bounds are set
// the current time must fall inside them. Absent bounds mean no time
// restriction.
func checkTestOpen(t *model.Test, now time.Time) error {
	if !t.IsActive {
		return ErrTestInactive
	}
	if t.StartTime != nil && t.EndTime != nil {
		if now.Before(*t.StartTime) {
			return ErrTestNotStarted
		}
		if now.After(*t.EndTime) {
			return ErrTestEnded
		}
	}
	return nil
}

// StartAttempt authenticates a student against a test and returns a
// signed attempt grant. No session row is ever created when any gate
// fails. Order of checks: test exists → test open → credentials →
// already-taken → reuse-or-create session.
func (s *SessionService) StartAttempt(ctx context.Context, testID uuid.UUID, email, password string) (*AttemptGrant, error) {
	test, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}

	if err := checkTestOpen(test, time.Now()); err != nil {
		return nil, err
	}

	student, err := s.students.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get student: %w", err)
	}

	if err := s.auth.CheckPassword(student.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	if student.HasTakenTest {
		return nil, ErrAlreadyTaken
	}

	session, err := s.sessions.GetOpen(ctx, testID, student.ID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("check existing session: %w", err)
		}

		session = &model.TestSession{TestID: testID, StudentID: student.ID}
		if err := s.sessions.Create(ctx, session); err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("create session: %w", err)
			}
			// A concurrent login won the insert; reuse its session.
			session, err = s.sessions.GetOpen(ctx, testID, student.ID)
			if err != nil {
				return nil, fmt.Errorf("concurrent login detected, but fetch failed: %w", err)
			}
		}
	}

	token, err := s.auth.IssueAttemptToken(ctx, session.ID, student.ID, testID)
	if err != nil {
		return nil, fmt.Errorf("issue attempt token: %w", err)
	}

	return &AttemptGrant{
		Token:       token,
		Session:     session,
		StudentID:   student.ID,
		StudentName: student.Name,
		TestID:      testID,
	}, nil
}
