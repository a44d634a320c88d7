package model

import "time"

// SessionHeader carries the signed quiz session token in both directions.
const SessionHeader = "X-Quiz-Session"

// SessionCookie mirrors SessionHeader for browser clients.
const SessionCookie = "quiz_session"

// QuizQuestion is a question as served to quiz takers (no answers).
type QuizQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// QuizPayload is the body of GET /api/data.
type QuizPayload struct {
	Quiz []QuizQuestion `json:"quiz"`
}

// QuestionAnswers is the answer key of a single question.
type QuestionAnswers struct {
	Question string   `json:"question"`
	Answers  []string `json:"answers"`
}

// StoredQuestion is a question row with its answer key.
type StoredQuestion struct {
	ID       int       `json:"id"`
	Position int       `json:"position"`
	Question string    `json:"question"`
	Options  []string  `json:"options"`
	Answers  []string  `json:"answers"`
	Created  time.Time `json:"created_at"`
}

// QuizDetails describe the quiz and its audience. They shape the feedback
// prompt.
type QuizDetails struct {
	Theme       string `json:"task_theme"`
	Description string `json:"task_description"`
	Goal        string `json:"task_goal"`
	UserLevel   int    `json:"user_level"`
}

// AnswerRequest is the body of POST /api/handler.
type AnswerRequest struct {
	Question string   `json:"question" binding:"required,notblank,max=2000"`
	Answers  []string `json:"answers" binding:"required,min=1,max=50,dive,notblank,max=1000"`
	Start    bool     `json:"start"`
}

// FeedbackResponse is the successful body of POST /api/handler.
type FeedbackResponse struct {
	Feedback  string `json:"feedback"`
	IsCorrect bool   `json:"isCorrect"`
}

// FinalFeedbackResponse is the successful body of GET /api/final.
type FinalFeedbackResponse struct {
	Feedback string `json:"feedback"`
}
