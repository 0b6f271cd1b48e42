package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quizdesk/quizdesk-backend/internal/middleware"
	"github.com/quizdesk/quizdesk-backend/internal/service"
	ws "github.com/quizdesk/quizdesk-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the WebSocket attempt stream.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempt/stream?token=...
// Upgrades to WebSocket for real-time answer buffering and submission.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	ref, ok := middleware.GetAttemptRef(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Validate the session binding before streaming anything.
	if _, err := h.attemptService.Verify(c.Request.Context(), ref); err != nil {
		ws.WriteError(conn, "no open session for this attempt")
		return
	}

	wsLog := h.log.With().
		Int("student_id", ref.StudentID).
		Str("session_id", ref.SessionID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			ws.WriteError(conn, "malformed message")
			continue
		}

		switch envelope.Action {
		case ws.ActionSaveAnswer:
			h.handleSaveAnswer(conn, wsLog, ref, raw)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, ref, raw)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(envelope.Action))
		}
	}
}

// handleSaveAnswer buffers a single answer in Redis and queues it for
// persistence.
func (h *WSHandler) handleSaveAnswer(conn *websocket.Conn, wsLog zerolog.Logger, ref service.AttemptRef, raw []byte) {
	var msg ws.SaveAnswerRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		ws.WriteError(conn, "malformed save_answer message")
		return
	}

	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		ws.WriteError(conn, "invalid question_id format")
		return
	}

	if err := h.attemptService.SaveAnswer(context.Background(), ref, questionID, msg.OptionIndex); err != nil {
		if errors.Is(err, service.ErrSessionExpired) {
			ws.WriteError(conn, "session is no longer open")
			return
		}
		wsLog.Error().Err(err).Msg("Save answer error")
		ws.WriteError(conn, "save failed")
		return
	}

	ws.WriteTyped(conn, ws.SaveAnswerResponse{Event: ws.EventSuccess, Status: "saved"})
}

// handleSubmit scores the attempt and closes the session.
func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, ref service.AttemptRef, raw []byte) {
	var msg ws.SubmitRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		ws.WriteError(conn, "malformed submit message")
		return
	}

	var result *service.SubmitResult
	var err error
	if msg.Answers != nil {
		result, err = h.attemptService.Submit(context.Background(), ref, msg.Answers)
	} else {
		result, err = h.attemptService.SubmitBuffered(context.Background(), ref)
	}
	if err != nil {
		if errors.Is(err, service.ErrSessionExpired) {
			ws.WriteError(conn, "session is no longer open")
			return
		}
		wsLog.Error().Err(err).Msg("Submit error")
		ws.WriteError(conn, "submit failed")
		return
	}

	status := "completed"
	if result.AlreadySubmitted {
		status = "already_submitted"
	}

	ws.WriteTyped(conn, ws.ScoredResponse{
		Event:          ws.EventScored,
		Status:         status,
		TotalScore:     result.TotalScore,
		TotalQuestions: result.TotalQuestions,
	})
}
