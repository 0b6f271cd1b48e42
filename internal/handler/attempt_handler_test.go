package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/quizdesk/quizdesk-backend/internal/middleware"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/quizdesk/quizdesk-backend/internal/response"
	"github.com/quizdesk/quizdesk-backend/internal/service"
	"github.com/quizdesk/quizdesk-backend/internal/validator"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

// In-memory stores backing the services under the handler.

type memTestStore struct {
	tests map[uuid.UUID]*model.Test
}

func (m *memTestStore) GetByID(_ context.Context, id uuid.UUID) (*model.Test, error) {
	t, ok := m.tests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

type memStudentStore struct {
	students map[string]*model.Student
}

func (m *memStudentStore) GetByEmail(_ context.Context, email string) (*model.Student, error) {
	s, ok := m.students[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

type memSessionStore struct {
	sessions map[uuid.UUID]*model.TestSession
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[uuid.UUID]*model.TestSession)}
}

func (m *memSessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.TestSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionStore) GetOpen(_ context.Context, testID uuid.UUID, studentID int) (*model.TestSession, error) {
	for _, s := range m.sessions {
		if s.TestID == testID && s.StudentID == studentID && s.CompletedAt == nil {
			cp := *s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memSessionStore) Create(_ context.Context, s *model.TestSession) error {
	s.ID = uuid.New()
	s.StartedAt = time.Now()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessionStore) CloseAndMarkTaken(_ context.Context, sessionID uuid.UUID, _ int, score, totalQuestions int) (bool, error) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if s.CompletedAt != nil {
		return false, nil
	}
	now := time.Now()
	s.CompletedAt = &now
	s.TotalScore = &score
	s.TotalQuestions = &totalQuestions
	return true, nil
}

func (m *memSessionStore) ListAnswers(_ context.Context, _ uuid.UUID) (map[uuid.UUID]int, error) {
	return map[uuid.UUID]int{}, nil
}

func (m *memSessionStore) ListExpiredOpen(_ context.Context, _ time.Duration) ([]repository.ExpiredSession, error) {
	return nil, nil
}

type memQuestionStore struct {
	questions map[uuid.UUID][]model.Question
}

func (m *memQuestionStore) ListByTest(_ context.Context, testID uuid.UUID) ([]model.Question, error) {
	return m.questions[testID], nil
}

type memAnswerBuffer struct {
	answers map[uuid.UUID]map[uuid.UUID]int
}

func newMemAnswerBuffer() *memAnswerBuffer {
	return &memAnswerBuffer{answers: make(map[uuid.UUID]map[uuid.UUID]int)}
}

func (m *memAnswerBuffer) Save(_ context.Context, sessionID, questionID uuid.UUID, optionIndex int) error {
	if m.answers[sessionID] == nil {
		m.answers[sessionID] = make(map[uuid.UUID]int)
	}
	m.answers[sessionID][questionID] = optionIndex
	return nil
}

func (m *memAnswerBuffer) All(_ context.Context, sessionID uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(m.answers[sessionID]))
	for k, v := range m.answers[sessionID] {
		out[k] = v
	}
	return out, nil
}

func (m *memAnswerBuffer) Clear(_ context.Context, sessionID uuid.UUID) error {
	delete(m.answers, sessionID)
	return nil
}

type staticAuthorizer struct{}

func (staticAuthorizer) CheckPassword(hash, password string) error {
	if hash != "hash:"+password {
		return errors.New("password mismatch")
	}
	return nil
}

func (staticAuthorizer) IssueAttemptToken(_ context.Context, sessionID uuid.UUID, _ int, _ uuid.UUID) (string, error) {
	return "token-" + sessionID.String(), nil
}

type attemptEnv struct {
	router   *gin.Engine
	handler  *AttemptHandler
	test     *model.Test
	student  *model.Student
	sessions *memSessionStore
}

func newAttemptEnv(t *testing.T) *attemptEnv {
	t.Helper()

	testID := uuid.New()
	tst := &model.Test{
		ID:              testID,
		Title:           "Aptitude Round 1",
		DurationMinutes: 30,
		IsActive:        true,
		BatchID:         1,
	}
	student := &model.Student{
		ID:           7,
		Name:         "Asha Rao",
		Email:        "asha@example.com",
		PasswordHash: "hash:secret",
		BatchID:      1,
	}

	questions := []model.Question{
		{ID: uuid.New(), TestID: testID, Text: "Q1", Options: []string{"a", "b"}, CorrectAnswer: 1, OrderNum: 1},
		{ID: uuid.New(), TestID: testID, Text: "Q2", Options: []string{"a", "b"}, CorrectAnswer: 0, OrderNum: 2},
		{ID: uuid.New(), TestID: testID, Text: "Q3", Options: []string{"a", "b", "c"}, CorrectAnswer: 2, OrderNum: 3},
	}

	tests := &memTestStore{tests: map[uuid.UUID]*model.Test{testID: tst}}
	students := &memStudentStore{students: map[string]*model.Student{student.Email: student}}
	sessions := newMemSessionStore()
	qs := &memQuestionStore{questions: map[uuid.UUID][]model.Question{testID: questions}}

	sessionService := service.NewSessionService(tests, students, sessions, staticAuthorizer{})
	attemptService := service.NewAttemptService(sessions, tests, qs, newMemAnswerBuffer(), zerolog.Nop())
	h := NewAttemptHandler(sessionService, attemptService, nil)

	r := gin.New()
	r.POST("/attempt/login", h.Login)

	return &attemptEnv{router: r, handler: h, test: tst, student: student, sessions: sessions}
}

func encodeBody(t *testing.T, body interface{}) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	return &buf
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, encodeBody(t, body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// doAuthed invokes a handler directly with claims preloaded into the
// context. Token parsing itself is covered by the e2e suite.
func doAuthed(t *testing.T, h gin.HandlerFunc, method, path string, body interface{}, claims *service.Claims) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, encodeBody(t, body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(middleware.ContextKeyClaims, claims)
	h(c)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) (json.RawMessage, *response.ErrorBody) {
	t.Helper()

	var env struct {
		Data  json.RawMessage     `json:"data"`
		Error *response.ErrorBody `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env.Data, env.Error
}

func attemptClaims(sessionID uuid.UUID, studentID int, testID uuid.UUID) *service.Claims {
	return &service.Claims{
		TokenType: service.TokenTypeAttempt,
		UserID:    studentID,
		SessionID: sessionID.String(),
		TestID:    testID.String(),
	}
}

func loginBody(env *attemptEnv, password string) map[string]string {
	return map[string]string{
		"test_id":  env.test.ID.String(),
		"email":    env.student.Email,
		"password": password,
	}
}

func TestAttemptLoginSuccess(t *testing.T) {
	env := newAttemptEnv(t)

	w := doJSON(t, env.router, http.MethodPost, "/attempt/login", loginBody(env, "secret"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	data, errBody := decodeEnvelope(t, w)
	if errBody != nil {
		t.Fatalf("unexpected error body: %+v", errBody)
	}

	var payload struct {
		Token   string `json:"token"`
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
		Student struct {
			Name string `json:"name"`
		} `json:"student"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if payload.Token == "" {
		t.Error("token missing from login response")
	}
	if payload.Session.ID == "" {
		t.Error("session id missing from login response")
	}
	if payload.Student.Name != env.student.Name {
		t.Errorf("student name = %q, want %q", payload.Student.Name, env.student.Name)
	}
}

func TestAttemptLoginStatusMapping(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	future := time.Now().Add(2 * time.Hour)

	cases := []struct {
		name       string
		mutate     func(env *attemptEnv)
		body       func(env *attemptEnv) map[string]string
		wantStatus int
		wantCode   response.ErrCode
	}{
		{
			name:   "unknown test",
			mutate: func(env *attemptEnv) {},
			body: func(env *attemptEnv) map[string]string {
				b := loginBody(env, "secret")
				b["test_id"] = uuid.NewString()
				return b
			},
			wantStatus: http.StatusNotFound,
			wantCode:   response.ErrNotFound,
		},
		{
			name:       "inactive test",
			mutate:     func(env *attemptEnv) { env.test.IsActive = false },
			body:       func(env *attemptEnv) map[string]string { return loginBody(env, "secret") },
			wantStatus: http.StatusForbidden,
			wantCode:   response.ErrTestInactive,
		},
		{
			name:       "before window",
			mutate:     func(env *attemptEnv) { env.test.StartTime = &future },
			body:       func(env *attemptEnv) map[string]string { return loginBody(env, "secret") },
			wantStatus: http.StatusForbidden,
			wantCode:   response.ErrTestNotStarted,
		},
		{
			name:       "after window",
			mutate:     func(env *attemptEnv) { env.test.EndTime = &past },
			body:       func(env *attemptEnv) map[string]string { return loginBody(env, "secret") },
			wantStatus: http.StatusForbidden,
			wantCode:   response.ErrTestEnded,
		},
		{
			name:       "wrong password",
			mutate:     func(env *attemptEnv) {},
			body:       func(env *attemptEnv) map[string]string { return loginBody(env, "nope") },
			wantStatus: http.StatusUnauthorized,
			wantCode:   response.ErrInvalidCredentials,
		},
		{
			name:       "already taken",
			mutate:     func(env *attemptEnv) { env.student.HasTakenTest = true },
			body:       func(env *attemptEnv) map[string]string { return loginBody(env, "secret") },
			wantStatus: http.StatusConflict,
			wantCode:   response.ErrAlreadyTaken,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newAttemptEnv(t)
			tc.mutate(env)

			w := doJSON(t, env.router, http.MethodPost, "/attempt/login", tc.body(env))
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d, body %s", w.Code, tc.wantStatus, w.Body.String())
			}

			_, errBody := decodeEnvelope(t, w)
			if errBody == nil {
				t.Fatal("expected error body")
			}
			if errBody.Code != tc.wantCode {
				t.Errorf("code = %s, want %s", errBody.Code, tc.wantCode)
			}
		})
	}
}

func TestAttemptLoginValidation(t *testing.T) {
	env := newAttemptEnv(t)

	w := doJSON(t, env.router, http.MethodPost, "/attempt/login", map[string]string{
		"test_id":  env.test.ID.String(),
		"password": "secret",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", w.Code, w.Body.String())
	}

	_, errBody := decodeEnvelope(t, w)
	if errBody == nil || errBody.Code != response.ErrValidation {
		t.Fatalf("error body = %+v, want %s", errBody, response.ErrValidation)
	}
	if _, ok := errBody.Fields["email"]; !ok {
		t.Errorf("validation fields = %v, want email entry", errBody.Fields)
	}
}

func TestSubmitScoresAndRepeats(t *testing.T) {
	env := newAttemptEnv(t)

	// Open a session through login so the store holds it.
	w := doJSON(t, env.router, http.MethodPost, "/attempt/login", loginBody(env, "secret"))
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
	session, err := env.sessions.GetOpen(context.Background(), env.test.ID, env.student.ID)
	if err != nil {
		t.Fatalf("no open session after login: %v", err)
	}

	claims := attemptClaims(session.ID, env.student.ID, env.test.ID)

	w = doAuthed(t, env.handler.Submit, http.MethodPost, "/attempt/submit", model.SubmitAnswersRequest{
		Answers: []int{1, 0, -1},
	}, claims)
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body %s", w.Code, w.Body.String())
	}

	data, _ := decodeEnvelope(t, w)
	var result service.SubmitResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.TotalScore != 2 || result.TotalQuestions != 3 {
		t.Fatalf("score = %d/%d, want 2/3", result.TotalScore, result.TotalQuestions)
	}
	if result.AlreadySubmitted {
		t.Error("first submit reported already_submitted")
	}

	// Repeat with a different vector: the recorded result wins.
	w = doAuthed(t, env.handler.Submit, http.MethodPost, "/attempt/submit", model.SubmitAnswersRequest{
		Answers: []int{1, 0, 2},
	}, claims)
	if w.Code != http.StatusOK {
		t.Fatalf("repeat submit status = %d, body %s", w.Code, w.Body.String())
	}
	data, _ = decodeEnvelope(t, w)
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode repeat result: %v", err)
	}
	if !result.AlreadySubmitted {
		t.Error("repeat submit must report already_submitted")
	}
	if result.TotalScore != 2 {
		t.Errorf("repeat score = %d, want recorded 2", result.TotalScore)
	}
}

func TestSubmitRejectsForeignSession(t *testing.T) {
	env := newAttemptEnv(t)

	w := doJSON(t, env.router, http.MethodPost, "/attempt/login", loginBody(env, "secret"))
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d", w.Code)
	}
	session, err := env.sessions.GetOpen(context.Background(), env.test.ID, env.student.ID)
	if err != nil {
		t.Fatalf("no open session after login: %v", err)
	}

	// Token bound to a different student must not close this session.
	claims := attemptClaims(session.ID, env.student.ID+1, env.test.ID)
	w = doAuthed(t, env.handler.Submit, http.MethodPost, "/attempt/submit", model.SubmitAnswersRequest{
		Answers: []int{1, 0, 2},
	}, claims)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401, body %s", w.Code, w.Body.String())
	}

	_, errBody := decodeEnvelope(t, w)
	if errBody == nil || errBody.Code != response.ErrSessionExpired {
		t.Fatalf("error body = %+v, want %s", errBody, response.ErrSessionExpired)
	}

	if _, err := env.sessions.GetOpen(context.Background(), env.test.ID, env.student.ID); err != nil {
		t.Fatal("session must remain open after rejected submit")
	}
}

func TestGetPaperGateCodesMatchLogin(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	future := time.Now().Add(2 * time.Hour)

	cases := []struct {
		name     string
		mutate   func(env *attemptEnv)
		wantCode response.ErrCode
	}{
		{"inactive test", func(env *attemptEnv) { env.test.IsActive = false }, response.ErrTestInactive},
		{"before window", func(env *attemptEnv) { env.test.StartTime = &future }, response.ErrTestNotStarted},
		{"after window", func(env *attemptEnv) { env.test.EndTime = &past }, response.ErrTestEnded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newAttemptEnv(t)

			w := doJSON(t, env.router, http.MethodPost, "/attempt/login", loginBody(env, "secret"))
			if w.Code != http.StatusOK {
				t.Fatalf("login status = %d", w.Code)
			}
			session, err := env.sessions.GetOpen(context.Background(), env.test.ID, env.student.ID)
			if err != nil {
				t.Fatalf("no open session after login: %v", err)
			}

			// The gate changes between login and paper load.
			tc.mutate(env)

			claims := attemptClaims(session.ID, env.student.ID, env.test.ID)
			w = doAuthed(t, env.handler.GetPaper, http.MethodGet, "/attempt/paper", nil, claims)
			if w.Code != http.StatusForbidden {
				t.Fatalf("status = %d, want 403, body %s", w.Code, w.Body.String())
			}

			_, errBody := decodeEnvelope(t, w)
			if errBody == nil || errBody.Code != tc.wantCode {
				t.Fatalf("error body = %+v, want %s", errBody, tc.wantCode)
			}
		})
	}
}

func TestGetPaperHidesAnswerKeys(t *testing.T) {
	env := newAttemptEnv(t)

	w := doJSON(t, env.router, http.MethodPost, "/attempt/login", loginBody(env, "secret"))
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d", w.Code)
	}
	session, err := env.sessions.GetOpen(context.Background(), env.test.ID, env.student.ID)
	if err != nil {
		t.Fatalf("no open session after login: %v", err)
	}

	claims := attemptClaims(session.ID, env.student.ID, env.test.ID)
	w = doAuthed(t, env.handler.GetPaper, http.MethodGet, "/attempt/paper", nil, claims)
	if w.Code != http.StatusOK {
		t.Fatalf("paper status = %d, body %s", w.Code, w.Body.String())
	}

	if bytes.Contains(w.Body.Bytes(), []byte("correct_answer")) {
		t.Fatal("paper payload leaks answer keys")
	}

	data, _ := decodeEnvelope(t, w)
	var paper model.TestPaper
	if err := json.Unmarshal(data, &paper); err != nil {
		t.Fatalf("decode paper: %v", err)
	}
	if len(paper.Questions) != 3 {
		t.Fatalf("paper has %d questions, want 3", len(paper.Questions))
	}
	for i := 1; i < len(paper.Questions); i++ {
		if paper.Questions[i].OrderNum < paper.Questions[i-1].OrderNum {
			t.Fatalf("questions out of order: %v before %v",
				paper.Questions[i-1].OrderNum, paper.Questions[i].OrderNum)
		}
	}
	if paper.RemainingSeconds <= 0 || paper.RemainingSeconds > env.test.DurationMinutes*60 {
		t.Errorf("remaining seconds = %d, want within (0, %d]",
			paper.RemainingSeconds, env.test.DurationMinutes*60)
	}
}
