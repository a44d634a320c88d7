package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSubmit Action = "submit"
	ActionFinal  Action = "final"
	ActionPing   Action = "ping"
)

// Request is every client message. Question, Answers and Start are only
// meaningful for ActionSubmit.
type Request struct {
	Action   Action   `json:"action"`
	ID       string   `json:"id,omitempty"`
	Question string   `json:"question,omitempty"`
	Answers  []string `json:"answers,omitempty"`
	Start    bool     `json:"start,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventGraded  Event = "graded"
	EventSummary Event = "summary"
	EventError   Event = "error"
	EventPong    Event = "pong"
)

type GradedResponse struct {
	Event     Event  `json:"event"`
	ID        string `json:"id"`
	Feedback  string `json:"feedback"`
	IsCorrect bool   `json:"isCorrect"`
	Session   string `json:"session,omitempty"`
}

type SummaryResponse struct {
	Event    Event  `json:"event"`
	ID       string `json:"id"`
	Feedback string `json:"feedback"`
}

type ErrorResponse struct {
	Event     Event  `json:"event"`
	ID        string `json:"id,omitempty"`
	Error     string `json:"error"`
	IsCorrect *bool  `json:"isCorrect,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// Envelope decodes any server event.
type Envelope struct {
	Event     Event   `json:"event"`
	ID        string  `json:"id"`
	Feedback  *string `json:"feedback"`
	IsCorrect *bool   `json:"isCorrect"`
	Error     string  `json:"error"`
	Session   string  `json:"session"`
}
