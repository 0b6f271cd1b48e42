package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// TestResult combines student data with their session details for
// the admin results listing.
type TestResult struct {
	SessionID      uuid.UUID  `json:"session_id"`
	StudentID      int        `json:"student_id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	TotalScore     *int       `json:"total_score"`
	TotalQuestions *int       `json:"total_questions"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// ExpiredSession identifies an open session whose deadline has passed.
type ExpiredSession struct {
	ID        uuid.UUID
	TestID    uuid.UUID
	StudentID int
}

// TestSessionRepository handles test session data access.
type TestSessionRepository struct {
	pool *pgxpool.Pool
}

// NewTestSessionRepository creates a new TestSessionRepository.
func NewTestSessionRepository(pool *pgxpool.Pool) *TestSessionRepository {
	return &TestSessionRepository{pool: pool}
}

// GetByID retrieves a session by its UUID.
func (r *TestSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TestSession, error) {
	s := &model.TestSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, student_id, started_at, completed_at, total_score, total_questions
		 FROM test_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.TestID, &s.StudentID, &s.StartedAt, &s.CompletedAt, &s.TotalScore, &s.TotalQuestions)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetOpen retrieves the open (not yet completed) session for a
// test-student combination, if any.
func (r *TestSessionRepository) GetOpen(ctx context.Context, testID uuid.UUID, studentID int) (*model.TestSession, error) {
	s := &model.TestSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, student_id, started_at, completed_at, total_score, total_questions
		 FROM test_sessions
		 WHERE test_id = $1 AND student_id = $2 AND completed_at IS NULL`, testID, studentID,
	).Scan(&s.ID, &s.TestID, &s.StudentID, &s.StartedAt, &s.CompletedAt, &s.TotalScore, &s.TotalQuestions)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new open session. The partial unique index on
// (test_id, student_id) WHERE completed_at IS NULL turns a concurrent
// duplicate into pgx.ErrNoRows, which the caller resolves by refetching.
func (r *TestSessionRepository) Create(ctx context.Context, s *model.TestSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO test_sessions (test_id, student_id)
		 VALUES ($1, $2)
		 ON CONFLICT (test_id, student_id) WHERE completed_at IS NULL DO NOTHING
		 RETURNING id, started_at`,
		s.TestID, s.StudentID,
	).Scan(&s.ID, &s.StartedAt)
}

// CloseAndMarkTaken finalizes a session and flags the student as having
// taken the test, in one transaction. The close is conditional on the
// session still being open; closed reports whether this call won. When
// it did not (a concurrent submission got there first), the student flag
// is left alone and the caller reads back the recorded result.
func (r *TestSessionRepository) CloseAndMarkTaken(ctx context.Context, sessionID uuid.UUID, studentID int, score, totalQuestions int) (closed bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE test_sessions
		 SET completed_at = NOW(), total_score = $1, total_questions = $2
		 WHERE id = $3 AND completed_at IS NULL`,
		score, totalQuestions, sessionID,
	)
	if err != nil {
		return false, fmt.Errorf("close session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE students SET has_taken_test = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
		studentID,
	); err != nil {
		return false, fmt.Errorf("mark student: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// ListAnswers returns the persisted answers of a session keyed by
// question ID. The rows are written by the answer worker and read back
// when the Redis buffer is gone.
func (r *TestSessionRepository) ListAnswers(ctx context.Context, sessionID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, option_index FROM session_answers WHERE session_id = $1`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[uuid.UUID]int)
	for rows.Next() {
		var qid uuid.UUID
		var idx int
		if err := rows.Scan(&qid, &idx); err != nil {
			return nil, err
		}
		answers[qid] = idx
	}
	return answers, rows.Err()
}

// ListExpiredOpen finds open sessions whose started_at plus the test
// duration plus grace has passed.
func (r *TestSessionRepository) ListExpiredOpen(ctx context.Context, grace time.Duration) ([]ExpiredSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.test_id, s.student_id
		 FROM test_sessions s
		 JOIN tests t ON t.id = s.test_id
		 WHERE s.completed_at IS NULL
		   AND s.started_at + make_interval(mins => t.duration_minutes) + make_interval(secs => $1) < NOW()`,
		grace.Seconds(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []ExpiredSession
	for rows.Next() {
		var e ExpiredSession
		if err := rows.Scan(&e.ID, &e.TestID, &e.StudentID); err != nil {
			return nil, err
		}
		expired = append(expired, e)
	}
	return expired, rows.Err()
}

// ListByTest retrieves all sessions for a test with student info, paginated.
func (r *TestSessionRepository) ListByTest(ctx context.Context, testID uuid.UUID, page, perPage int) ([]TestResult, int64, error) {
	offset := (page - 1) * perPage

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM test_sessions WHERE test_id = $1`, testID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT ts.id, s.id, s.name, s.email, ts.total_score, ts.total_questions, ts.started_at, ts.completed_at
		 FROM test_sessions ts
		 JOIN students s ON ts.student_id = s.id
		 WHERE ts.test_id = $1
		 ORDER BY s.name
		 LIMIT $2 OFFSET $3`,
		testID, perPage, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []TestResult
	for rows.Next() {
		var tr TestResult
		if err := rows.Scan(&tr.SessionID, &tr.StudentID, &tr.Name, &tr.Email, &tr.TotalScore, &tr.TotalQuestions, &tr.StartedAt, &tr.CompletedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, tr)
	}
	return results, total, rows.Err()
}
