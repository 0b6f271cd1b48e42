package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/rs/zerolog"
)

type fakeQuestionStore struct {
	questions map[uuid.UUID][]model.Question
}

func newFakeQuestionStore() *fakeQuestionStore {
	return &fakeQuestionStore{questions: make(map[uuid.UUID][]model.Question)}
}

func (f *fakeQuestionStore) ListByTest(_ context.Context, testID uuid.UUID) ([]model.Question, error) {
	return f.questions[testID], nil
}

type fakeAnswerBuffer struct {
	answers    map[uuid.UUID]map[uuid.UUID]int
	clearCalls int
}

func newFakeAnswerBuffer() *fakeAnswerBuffer {
	return &fakeAnswerBuffer{answers: make(map[uuid.UUID]map[uuid.UUID]int)}
}

func (f *fakeAnswerBuffer) Save(_ context.Context, sessionID, questionID uuid.UUID, optionIndex int) error {
	if f.answers[sessionID] == nil {
		f.answers[sessionID] = make(map[uuid.UUID]int)
	}
	f.answers[sessionID][questionID] = optionIndex
	return nil
}

func (f *fakeAnswerBuffer) All(_ context.Context, sessionID uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(f.answers[sessionID]))
	for k, v := range f.answers[sessionID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeAnswerBuffer) Clear(_ context.Context, sessionID uuid.UUID) error {
	f.clearCalls++
	delete(f.answers, sessionID)
	return nil
}

type attemptFixture struct {
	svc       *AttemptService
	tests     *fakeTestStore
	sessions  *fakeSessionStore
	questions *fakeQuestionStore
	buffer    *fakeAnswerBuffer
	ref       AttemptRef
	test      *model.Test
	session   *model.TestSession
	paper     []model.Question
}

func newAttemptFixture() *attemptFixture {
	test := openTest()
	session := &model.TestSession{
		ID:        uuid.New(),
		TestID:    test.ID,
		StudentID: 7,
		StartedAt: time.Now().Add(-10 * time.Minute),
	}

	paper := []model.Question{
		{ID: uuid.New(), TestID: test.ID, Text: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: 1, OrderNum: 1},
		{ID: uuid.New(), TestID: test.ID, Text: "Capital of France?", Options: []string{"Paris", "Lyon"}, CorrectAnswer: 0, OrderNum: 2},
		{ID: uuid.New(), TestID: test.ID, Text: "Largest planet?", Options: []string{"Mars", "Venus", "Jupiter"}, CorrectAnswer: 2, OrderNum: 3},
	}

	tests := newFakeTestStore(test)
	sessions := newFakeSessionStore(session)
	questions := newFakeQuestionStore()
	questions.questions[test.ID] = paper
	buffer := newFakeAnswerBuffer()

	return &attemptFixture{
		svc:       NewAttemptService(sessions, tests, questions, buffer, zerolog.Nop()),
		tests:     tests,
		sessions:  sessions,
		questions: questions,
		buffer:    buffer,
		ref:       AttemptRef{SessionID: session.ID, StudentID: session.StudentID, TestID: test.ID},
		test:      test,
		session:   session,
		paper:     paper,
	}
}

func TestVerifyRejectsStaleReferences(t *testing.T) {
	fx := newAttemptFixture()

	cases := []struct {
		name string
		ref  AttemptRef
	}{
		{"unknown session", AttemptRef{SessionID: uuid.New(), StudentID: 7, TestID: fx.test.ID}},
		{"wrong student", AttemptRef{SessionID: fx.session.ID, StudentID: 8, TestID: fx.test.ID}},
		{"wrong test", AttemptRef{SessionID: fx.session.ID, StudentID: 7, TestID: uuid.New()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := fx.svc.Verify(context.Background(), tc.ref); !errors.Is(err, ErrSessionExpired) {
				t.Fatalf("Verify error = %v, want ErrSessionExpired", err)
			}
		})
	}
}

func TestVerifyRejectsCompletedSession(t *testing.T) {
	fx := newAttemptFixture()
	now := time.Now()
	fx.sessions.sessions[fx.session.ID].CompletedAt = &now

	if _, err := fx.svc.Verify(context.Background(), fx.ref); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Verify error = %v, want ErrSessionExpired", err)
	}
}

func TestGetPaperStripsAnswerKeys(t *testing.T) {
	fx := newAttemptFixture()

	paper, err := fx.svc.GetPaper(context.Background(), fx.ref)
	if err != nil {
		t.Fatalf("GetPaper returned error: %v", err)
	}

	if len(paper.Questions) != 3 {
		t.Fatalf("paper has %d questions, want 3", len(paper.Questions))
	}
	for i, q := range paper.Questions {
		if q.ID != fx.paper[i].ID {
			t.Fatalf("question %d out of order", i)
		}
		if len(q.Options) != len(fx.paper[i].Options) {
			t.Fatalf("question %d lost options", i)
		}
	}

	// 30 minute test started 10 minutes ago: about 20 minutes remain.
	if paper.RemainingSeconds <= 0 || paper.RemainingSeconds > 20*60 {
		t.Fatalf("RemainingSeconds = %d, want within (0, 1200]", paper.RemainingSeconds)
	}
}

func TestGetPaperRechecksTestGate(t *testing.T) {
	fx := newAttemptFixture()
	fx.test.IsActive = false

	if _, err := fx.svc.GetPaper(context.Background(), fx.ref); !errors.Is(err, ErrTestInactive) {
		t.Fatalf("GetPaper error = %v, want ErrTestInactive", err)
	}
}

func TestSaveAnswerLastClickWins(t *testing.T) {
	fx := newAttemptFixture()
	qid := fx.paper[0].ID

	if err := fx.svc.SaveAnswer(context.Background(), fx.ref, qid, 0); err != nil {
		t.Fatalf("first SaveAnswer returned error: %v", err)
	}
	if err := fx.svc.SaveAnswer(context.Background(), fx.ref, qid, 1); err != nil {
		t.Fatalf("second SaveAnswer returned error: %v", err)
	}

	state, err := fx.svc.GetState(context.Background(), fx.ref)
	if err != nil {
		t.Fatalf("GetState returned error: %v", err)
	}
	if got := state.Answers[qid]; got != 1 {
		t.Fatalf("buffered answer = %d, want last write 1", got)
	}
}

func TestSubmitScoresAndClosesOnce(t *testing.T) {
	fx := newAttemptFixture()

	// Correct key is [1 0 2]; submit [1 0 -1] for 2 points.
	result, err := fx.svc.Submit(context.Background(), fx.ref, []int{1, 0, NoAnswer})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if result.TotalScore != 2 || result.TotalQuestions != 3 {
		t.Fatalf("result = %d/%d, want 2/3", result.TotalScore, result.TotalQuestions)
	}
	if result.AlreadySubmitted {
		t.Fatalf("first Submit must not report AlreadySubmitted")
	}
	if fx.buffer.clearCalls != 1 {
		t.Fatalf("clearCalls = %d, want 1", fx.buffer.clearCalls)
	}

	// Second submit must not rescore: the recorded result comes back.
	repeat, err := fx.svc.Submit(context.Background(), fx.ref, []int{1, 0, 2})
	if err != nil {
		t.Fatalf("repeat Submit returned error: %v", err)
	}
	if !repeat.AlreadySubmitted {
		t.Fatalf("repeat Submit must report AlreadySubmitted")
	}
	if repeat.TotalScore != 2 {
		t.Fatalf("repeat TotalScore = %d, want the recorded 2", repeat.TotalScore)
	}
	if fx.sessions.closeCalls != 1 {
		t.Fatalf("closeCalls = %d, want exactly 1", fx.sessions.closeCalls)
	}
}

func TestSubmitKeepsBufferOnPersistenceError(t *testing.T) {
	fx := newAttemptFixture()
	fx.sessions.closeErr = errors.New("connection reset")

	qid := fx.paper[0].ID
	if err := fx.svc.SaveAnswer(context.Background(), fx.ref, qid, 1); err != nil {
		t.Fatalf("SaveAnswer returned error: %v", err)
	}

	_, err := fx.svc.Submit(context.Background(), fx.ref, []int{1, NoAnswer, NoAnswer})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Submit error = %v, want ErrPersistence", err)
	}
	if fx.buffer.clearCalls != 0 {
		t.Fatalf("buffer must survive a failed close")
	}

	// Retry after the store recovers.
	fx.sessions.closeErr = nil
	result, err := fx.svc.Submit(context.Background(), fx.ref, []int{1, NoAnswer, NoAnswer})
	if err != nil {
		t.Fatalf("retry Submit returned error: %v", err)
	}
	if result.TotalScore != 1 {
		t.Fatalf("retry TotalScore = %d, want 1", result.TotalScore)
	}
}

func TestSubmitBufferedBuildsVectorFromBuffer(t *testing.T) {
	fx := newAttemptFixture()

	// Answer q1 correctly, q3 wrong, leave q2 unanswered.
	if err := fx.svc.SaveAnswer(context.Background(), fx.ref, fx.paper[0].ID, 1); err != nil {
		t.Fatalf("SaveAnswer returned error: %v", err)
	}
	if err := fx.svc.SaveAnswer(context.Background(), fx.ref, fx.paper[2].ID, 0); err != nil {
		t.Fatalf("SaveAnswer returned error: %v", err)
	}

	result, err := fx.svc.SubmitBuffered(context.Background(), fx.ref)
	if err != nil {
		t.Fatalf("SubmitBuffered returned error: %v", err)
	}
	if result.TotalScore != 1 || result.TotalQuestions != 3 {
		t.Fatalf("result = %d/%d, want 1/3", result.TotalScore, result.TotalQuestions)
	}
}

func TestSubmitBufferedRecoversPersistedAnswers(t *testing.T) {
	fx := newAttemptFixture()

	// Every answer correct, then the Redis buffer is wiped. The rows
	// the answer worker wrote to session_answers remain.
	for i, q := range fx.paper {
		if err := fx.svc.SaveAnswer(context.Background(), fx.ref, q.ID, fx.paper[i].CorrectAnswer); err != nil {
			t.Fatalf("SaveAnswer returned error: %v", err)
		}
	}
	fx.sessions.persisted[fx.session.ID] = map[uuid.UUID]int{
		fx.paper[0].ID: fx.paper[0].CorrectAnswer,
		fx.paper[1].ID: fx.paper[1].CorrectAnswer,
		fx.paper[2].ID: fx.paper[2].CorrectAnswer,
	}
	fx.buffer.answers = make(map[uuid.UUID]map[uuid.UUID]int)

	result, err := fx.svc.SubmitBuffered(context.Background(), fx.ref)
	if err != nil {
		t.Fatalf("SubmitBuffered returned error: %v", err)
	}
	if result.TotalScore != 3 || result.TotalQuestions != 3 {
		t.Fatalf("result = %d/%d, want 3/3 from persisted answers", result.TotalScore, result.TotalQuestions)
	}
}

func TestGetStateRecoversPersistedAnswers(t *testing.T) {
	fx := newAttemptFixture()
	qid := fx.paper[0].ID

	fx.sessions.persisted[fx.session.ID] = map[uuid.UUID]int{qid: 1}

	state, err := fx.svc.GetState(context.Background(), fx.ref)
	if err != nil {
		t.Fatalf("GetState returned error: %v", err)
	}
	if got := state.Answers[qid]; got != 1 {
		t.Fatalf("recovered answer = %d, want 1", got)
	}

	// A live buffer still takes precedence over the persisted rows.
	if err := fx.svc.SaveAnswer(context.Background(), fx.ref, qid, 0); err != nil {
		t.Fatalf("SaveAnswer returned error: %v", err)
	}
	state, err = fx.svc.GetState(context.Background(), fx.ref)
	if err != nil {
		t.Fatalf("GetState returned error: %v", err)
	}
	if got := state.Answers[qid]; got != 0 {
		t.Fatalf("buffered answer = %d, want 0", got)
	}
}

func TestRemainingSecondsFloorsAtZero(t *testing.T) {
	start := time.Now().Add(-2 * time.Hour)
	if got := remainingSeconds(start, 30, time.Now()); got != 0 {
		t.Fatalf("remainingSeconds past deadline = %d, want 0", got)
	}

	now := time.Now()
	if got := remainingSeconds(now, 1, now); got != 60 {
		t.Fatalf("remainingSeconds at start = %d, want 60", got)
	}
}
