package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionNavigate Action = "navigate"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest is sent by the client to record a single answer. Option and
// text are independent channels; either or both may be present.
type AnswerRequest struct {
	Action  Action `json:"action"`
	Ordinal int    `json:"ordinal"`
	Option  string `json:"option,omitempty"`
	Text    string `json:"text,omitempty"`
}

// NavigateRequest moves the current question by a relative delta (±1).
type NavigateRequest struct {
	Action Action `json:"action"`
	Delta  int    `json:"delta"`
}

// SubmitRequest is sent by the client to commit the attempt.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventSuccess   Event = "success"
	EventPosition  Event = "position"
	EventSubmitted Event = "submitted"
	EventPong      Event = "pong"
)

type AnswerResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

type PositionResponse struct {
	Event   Event `json:"event"`
	Current int   `json:"current"`
}

// SubmittedResponse announces the terminal transition. Forced is true when
// the countdown, not the candidate, triggered the submission.
type SubmittedResponse struct {
	Event  Event `json:"event"`
	Forced bool  `json:"forced"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

// PongResponse carries the server-side remaining seconds so the client
// countdown can resynchronize on every ping.
type PongResponse struct {
	Event            Event   `json:"event"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}
