package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSaveAnswer Action = "save_answer"
	ActionSubmit     Action = "submit"
	ActionPing       Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SaveAnswerRequest is sent by the client to buffer a single answer.
type SaveAnswerRequest struct {
	Action      Action `json:"action"`
	QuestionID  string `json:"question_id"`
	OptionIndex int    `json:"option_index"`
}

// SubmitRequest is sent by the client to finish and score the attempt.
type SubmitRequest struct {
	Action  Action `json:"action"`
	Answers []int  `json:"answers"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventScored  Event = "scored"
	EventPong    Event = "pong"
)

type SaveAnswerResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

type ScoredResponse struct {
	Event          Event  `json:"event"`
	Status         string `json:"status"`
	TotalScore     int    `json:"total_score"`
	TotalQuestions int    `json:"total_questions"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
