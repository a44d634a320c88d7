package model

import (
	"time"

	"github.com/google/uuid"
)

// Correctness labels a graded answer in feedback prompts and history.
type Correctness string

const (
	CorrectnessCorrect   Correctness = "correct"
	CorrectnessIncorrect Correctness = "incorrect"
)

// CorrectnessOf maps a verdict to its label.
func CorrectnessOf(correct bool) Correctness {
	if correct {
		return CorrectnessCorrect
	}
	return CorrectnessIncorrect
}

// Exchange is one graded submission, as handed to the feedback generator.
type Exchange struct {
	Question       string      `json:"question"`
	Correctness    Correctness `json:"correctness"`
	CorrectAnswers []string    `json:"correct_answers"`
	Answers        []string    `json:"answers"`
}

// TurnRole distinguishes the two sides of the feedback conversation.
type TurnRole string

const (
	TurnUser      TurnRole = "user"
	TurnAssistant TurnRole = "assistant"
)

// Turn is one message of a session's feedback history.
type Turn struct {
	Role     TurnRole  `json:"role"`
	Content  string    `json:"content"`
	Exchange *Exchange `json:"exchange,omitempty"`
	At       time.Time `json:"at"`
}

// AttemptRecord is a graded submission queued for persistence.
type AttemptRecord struct {
	SessionID uuid.UUID `json:"session_id"`
	Question  string    `json:"question"`
	Answers   []string  `json:"answers"`
	IsCorrect bool      `json:"is_correct"`
	Feedback  string    `json:"feedback"`
	GradedAt  time.Time `json:"graded_at"`
}
