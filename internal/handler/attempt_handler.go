package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quizdesk/quizdesk-backend/internal/middleware"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/response"
	"github.com/quizdesk/quizdesk-backend/internal/service"
	"github.com/quizdesk/quizdesk-backend/internal/validator"
)

// AttemptHandler handles student-facing attempt endpoints (login, paper,
// answer buffering, submission).
type AttemptHandler struct {
	sessionService *service.SessionService
	attemptService *service.AttemptService
	authService    *service.AuthService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(
	sessionService *service.SessionService,
	attemptService *service.AttemptService,
	authService *service.AuthService,
) *AttemptHandler {
	return &AttemptHandler{
		sessionService: sessionService,
		attemptService: attemptService,
		authService:    authService,
	}
}

// Login godoc
// POST /api/v1/attempt/login
// Validates test availability and student credentials, then returns the
// open session for the pair (creating one on first login) plus a token.
func (h *AttemptHandler) Login(c *gin.Context) {
	var req model.AttemptLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	grant, err := h.sessionService.StartAttempt(c.Request.Context(), req.TestID, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTestNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrTestInactive):
			response.Fail(c, http.StatusForbidden, response.ErrTestInactive)
		case errors.Is(err, service.ErrTestNotStarted):
			response.Fail(c, http.StatusForbidden, response.ErrTestNotStarted)
		case errors.Is(err, service.ErrTestEnded):
			response.Fail(c, http.StatusForbidden, response.ErrTestEnded)
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		case errors.Is(err, service.ErrAlreadyTaken):
			response.Fail(c, http.StatusConflict, response.ErrAlreadyTaken)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": grant.Token,
		"session": gin.H{
			"id":         grant.Session.ID,
			"test_id":    grant.TestID,
			"started_at": grant.Session.StartedAt,
		},
		"student": gin.H{
			"id":   grant.StudentID,
			"name": grant.StudentName,
		},
	})
}

// GetPaper godoc
// GET /api/v1/attempt/paper
// Returns the questions for the attempt bound to the token, with the
// answer keys stripped, plus the remaining time.
func (h *AttemptHandler) GetPaper(c *gin.Context) {
	ref, ok := middleware.GetAttemptRef(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	paper, err := h.attemptService.GetPaper(c.Request.Context(), ref)
	if err != nil {
		h.failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// GetState godoc
// GET /api/v1/attempt/state
// Returns buffered answers and remaining time, covering page reloads.
func (h *AttemptHandler) GetState(c *gin.Context) {
	ref, ok := middleware.GetAttemptRef(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	state, err := h.attemptService.GetState(c.Request.Context(), ref)
	if err != nil {
		h.failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SaveAnswer godoc
// POST /api/v1/attempt/answers
// Buffers a single answer for the attempt. HTTP fallback for clients
// without a WebSocket connection.
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	ref, ok := middleware.GetAttemptRef(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), ref, req.QuestionID, req.OptionIndex); err != nil {
		h.failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// Submit godoc
// POST /api/v1/attempt/submit
// Scores the attempt and closes the session. Safe to call more than
// once: a repeat returns the recorded result.
func (h *AttemptHandler) Submit(c *gin.Context) {
	ref, ok := middleware.GetAttemptRef(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attemptService.Submit(c.Request.Context(), ref, req.Answers)
	if err != nil {
		h.failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Logout godoc
// POST /api/v1/attempt/logout
// Invalidates the current login so the token stops working.
func (h *AttemptHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.ResetStudentLogin(c.Request.Context(), claims.UserID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

func (h *AttemptHandler) failAttempt(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionExpired):
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionExpired)
	case errors.Is(err, service.ErrTestInactive):
		response.Fail(c, http.StatusForbidden, response.ErrTestInactive)
	case errors.Is(err, service.ErrTestNotStarted):
		response.Fail(c, http.StatusForbidden, response.ErrTestNotStarted)
	case errors.Is(err, service.ErrTestEnded):
		response.Fail(c, http.StatusForbidden, response.ErrTestEnded)
	case errors.Is(err, service.ErrPersistence):
		response.Fail(c, http.StatusInternalServerError, response.ErrPersistence)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
