package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
)

type fakeTestStore struct {
	tests map[uuid.UUID]*model.Test
}

func newFakeTestStore(tests ...*model.Test) *fakeTestStore {
	f := &fakeTestStore{tests: make(map[uuid.UUID]*model.Test)}
	for _, t := range tests {
		f.tests[t.ID] = t
	}
	return f
}

func (f *fakeTestStore) GetByID(_ context.Context, id uuid.UUID) (*model.Test, error) {
	t, ok := f.tests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

type fakeStudentStore struct {
	students map[string]*model.Student
}

func newFakeStudentStore(students ...*model.Student) *fakeStudentStore {
	f := &fakeStudentStore{students: make(map[string]*model.Student)}
	for _, s := range students {
		f.students[s.Email] = s
	}
	return f
}

func (f *fakeStudentStore) GetByEmail(_ context.Context, email string) (*model.Student, error) {
	s, ok := f.students[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s, nil
}

type fakeSessionStore struct {
	sessions    map[uuid.UUID]*model.TestSession
	persisted   map[uuid.UUID]map[uuid.UUID]int
	createCalls int
	closeCalls  int

	// failNextCreate simulates losing the insert race: Create reports
	// the conflict and a concurrent session appears in the store.
	failNextCreate *model.TestSession
	closeErr       error
}

func newFakeSessionStore(sessions ...*model.TestSession) *fakeSessionStore {
	f := &fakeSessionStore{
		sessions:  make(map[uuid.UUID]*model.TestSession),
		persisted: make(map[uuid.UUID]map[uuid.UUID]int),
	}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *fakeSessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.TestSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionStore) GetOpen(_ context.Context, testID uuid.UUID, studentID int) (*model.TestSession, error) {
	for _, s := range f.sessions {
		if s.TestID == testID && s.StudentID == studentID && s.CompletedAt == nil {
			copied := *s
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSessionStore) Create(_ context.Context, s *model.TestSession) error {
	f.createCalls++
	if f.failNextCreate != nil {
		winner := f.failNextCreate
		f.failNextCreate = nil
		f.sessions[winner.ID] = winner
		return pgx.ErrNoRows
	}
	s.ID = uuid.New()
	s.StartedAt = time.Now()
	copied := *s
	f.sessions[s.ID] = &copied
	return nil
}

func (f *fakeSessionStore) CloseAndMarkTaken(_ context.Context, sessionID uuid.UUID, _ int, score, totalQuestions int) (bool, error) {
	f.closeCalls++
	if f.closeErr != nil {
		return false, f.closeErr
	}
	s, ok := f.sessions[sessionID]
	if !ok || s.CompletedAt != nil {
		return false, nil
	}
	now := time.Now()
	s.CompletedAt = &now
	s.TotalScore = &score
	s.TotalQuestions = &totalQuestions
	return true, nil
}

func (f *fakeSessionStore) ListAnswers(_ context.Context, sessionID uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(f.persisted[sessionID]))
	for k, v := range f.persisted[sessionID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSessionStore) ListExpiredOpen(_ context.Context, _ time.Duration) ([]repository.ExpiredSession, error) {
	return nil, nil
}

type fakeAuthorizer struct {
	issued int
}

func (f *fakeAuthorizer) CheckPassword(hash, password string) error {
	if hash != "hash:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

func (f *fakeAuthorizer) IssueAttemptToken(_ context.Context, sessionID uuid.UUID, studentID int, testID uuid.UUID) (string, error) {
	f.issued++
	return "token-" + sessionID.String(), nil
}

func openTest() *model.Test {
	return &model.Test{
		ID:              uuid.New(),
		Title:           "Aptitude Round 1",
		DurationMinutes: 30,
		IsActive:        true,
		BatchID:         1,
	}
}

func activeStudent() *model.Student {
	return &model.Student{
		ID:           7,
		Name:         "Asha Rao",
		Email:        "asha@example.com",
		PasswordHash: "hash:secret",
		BatchID:      1,
	}
}

func TestStartAttemptCreatesSession(t *testing.T) {
	test := openTest()
	student := activeStudent()
	sessions := newFakeSessionStore()
	auth := &fakeAuthorizer{}
	svc := NewSessionService(newFakeTestStore(test), newFakeStudentStore(student), sessions, auth)

	grant, err := svc.StartAttempt(context.Background(), test.ID, student.Email, "secret")
	if err != nil {
		t.Fatalf("StartAttempt returned error: %v", err)
	}
	if grant.Token == "" {
		t.Fatalf("expected a token in the grant")
	}
	if grant.Session == nil || grant.Session.ID == uuid.Nil {
		t.Fatalf("expected a created session, got %+v", grant.Session)
	}
	if sessions.createCalls != 1 {
		t.Fatalf("createCalls = %d, want 1", sessions.createCalls)
	}
}

func TestStartAttemptReusesOpenSession(t *testing.T) {
	test := openTest()
	student := activeStudent()
	existing := &model.TestSession{
		ID:        uuid.New(),
		TestID:    test.ID,
		StudentID: student.ID,
		StartedAt: time.Now().Add(-5 * time.Minute),
	}
	sessions := newFakeSessionStore(existing)
	svc := NewSessionService(newFakeTestStore(test), newFakeStudentStore(student), sessions, &fakeAuthorizer{})

	grant, err := svc.StartAttempt(context.Background(), test.ID, student.Email, "secret")
	if err != nil {
		t.Fatalf("StartAttempt returned error: %v", err)
	}
	if grant.Session.ID != existing.ID {
		t.Fatalf("session ID = %s, want reuse of %s", grant.Session.ID, existing.ID)
	}
	if sessions.createCalls != 0 {
		t.Fatalf("createCalls = %d, want 0", sessions.createCalls)
	}
}

func TestStartAttemptResolvesInsertRace(t *testing.T) {
	test := openTest()
	student := activeStudent()
	winner := &model.TestSession{
		ID:        uuid.New(),
		TestID:    test.ID,
		StudentID: student.ID,
		StartedAt: time.Now(),
	}
	sessions := newFakeSessionStore()
	sessions.failNextCreate = winner
	svc := NewSessionService(newFakeTestStore(test), newFakeStudentStore(student), sessions, &fakeAuthorizer{})

	grant, err := svc.StartAttempt(context.Background(), test.ID, student.Email, "secret")
	if err != nil {
		t.Fatalf("StartAttempt returned error: %v", err)
	}
	if grant.Session.ID != winner.ID {
		t.Fatalf("session ID = %s, want the concurrent winner %s", grant.Session.ID, winner.ID)
	}
}

func TestStartAttemptGateOrder(t *testing.T) {
	student := activeStudent()
	now := time.Now()
	past := now.Add(-2 * time.Hour)
	nearPast := now.Add(-1 * time.Hour)
	future := now.Add(1 * time.Hour)
	farFuture := now.Add(2 * time.Hour)

	inactive := openTest()
	inactive.IsActive = false

	notStarted := openTest()
	notStarted.StartTime = &future
	notStarted.EndTime = &farFuture

	ended := openTest()
	ended.StartTime = &past
	ended.EndTime = &nearPast

	cases := []struct {
		name     string
		test     *model.Test
		email    string
		password string
		wantErr  error
	}{
		{"unknown test", &model.Test{ID: uuid.New()}, student.Email, "secret", ErrTestNotFound},
		{"inactive test", inactive, student.Email, "secret", ErrTestInactive},
		{"before window", notStarted, student.Email, "secret", ErrTestNotStarted},
		{"after window", ended, student.Email, "secret", ErrTestEnded},
		{"unknown email", openTest(), "nobody@example.com", "secret", ErrInvalidCredentials},
		{"wrong password", openTest(), student.Email, "bad", ErrInvalidCredentials},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeTestStore()
			if tc.wantErr != ErrTestNotFound {
				store.tests[tc.test.ID] = tc.test
			}
			sessions := newFakeSessionStore()
			svc := NewSessionService(store, newFakeStudentStore(student), sessions, &fakeAuthorizer{})

			_, err := svc.StartAttempt(context.Background(), tc.test.ID, tc.email, tc.password)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("StartAttempt error = %v, want %v", err, tc.wantErr)
			}
			if sessions.createCalls != 0 {
				t.Fatalf("a failed gate must not create a session")
			}
		})
	}
}

func TestStartAttemptRejectsTakenStudent(t *testing.T) {
	test := openTest()
	student := activeStudent()
	student.HasTakenTest = true
	sessions := newFakeSessionStore()
	svc := NewSessionService(newFakeTestStore(test), newFakeStudentStore(student), sessions, &fakeAuthorizer{})

	_, err := svc.StartAttempt(context.Background(), test.ID, student.Email, "secret")
	if !errors.Is(err, ErrAlreadyTaken) {
		t.Fatalf("StartAttempt error = %v, want ErrAlreadyTaken", err)
	}
	if sessions.createCalls != 0 {
		t.Fatalf("already-taken login must not create a session")
	}
}

func TestCheckTestOpenIgnoresHalfSetWindow(t *testing.T) {
	future := time.Now().Add(time.Hour)
	test := openTest()
	test.StartTime = &future // end bound missing, window not enforced

	if err := checkTestOpen(test, time.Now()); err != nil {
		t.Fatalf("checkTestOpen with half-set window = %v, want nil", err)
	}
}
