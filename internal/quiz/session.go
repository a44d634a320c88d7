package quiz

import (
	"math"
	"slices"
)

const (
	// Points is the score a question is worth when answered on the first attempt.
	Points = 10
	// MaxAttempts bounds the number of submissions per question.
	MaxAttempts = 2
)

// GradingErrorMessage replaces the feedback when the grading call fails.
const GradingErrorMessage = "An error occurred while sending the answers to the server. Please try again later."

// Phase is the discrete state of a quiz session.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseAnswering
	PhaseSubmitting
	PhaseFeedback
	PhaseCompleted
	PhaseDataError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseAnswering:
		return "answering"
	case PhaseSubmitting:
		return "submitting"
	case PhaseFeedback:
		return "feedback"
	case PhaseCompleted:
		return "completed"
	case PhaseDataError:
		return "data_error"
	default:
		return "unknown"
	}
}

// Question is a single multiple-choice question.
type Question struct {
	Text    string
	Options []string
}

// GradingResult is the Grading Service's verdict on one submission.
// Failed marks a degraded result that is still shown to the user.
type GradingResult struct {
	Correct  bool
	Feedback string
	Failed   bool
}

// SessionResult is the outcome shown once the quiz is completed.
type SessionResult struct {
	ScorePercent int
	Summary      string
	Failed       bool
	// Ready is false until the Summary Service has answered.
	Ready bool
}

// Submission is what gets sent to the Grading Service.
type Submission struct {
	Question string
	Answers  []string
	Start    bool
}

// Session is the whole client-side state of a quiz. It is a value: Apply
// returns a new Session and never mutates the one it was given.
type Session struct {
	Questions []Question
	Index     int
	Selected  []string
	Attempt   int
	Score     float64
	Phase     Phase

	// Feedback is set while Phase is PhaseFeedback.
	Feedback *GradingResult
	// Pending is the submission awaiting a grading response.
	Pending *Submission
	// Result is set once Phase is PhaseCompleted.
	Result *SessionResult
	// LoadErr is set when Phase is PhaseDataError.
	LoadErr error

	// Generation identifies the request currently in flight. Responses
	// carrying another generation are stale.
	Generation uint64

	started bool
}

// NewSession returns a session waiting for its questions.
func NewSession() Session {
	return Session{Phase: PhaseLoading}
}

// Reset discards all progress and returns a loading session whose
// generation is past every request issued by s.
func (s Session) Reset() Session {
	return Session{Phase: PhaseLoading, Generation: s.Generation + 1}
}

// Current returns the question being answered.
func (s Session) Current() (Question, bool) {
	if s.Index < 0 || s.Index >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.Index], true
}

// IsSelected reports whether option is part of the current selection.
func (s Session) IsSelected(option string) bool {
	return slices.Contains(s.Selected, option)
}

// LastIndex is the index of the final question.
func (s Session) LastIndex() int {
	return len(s.Questions) - 1
}

// CanSubmit reports whether a submission would be accepted.
func (s Session) CanSubmit() bool {
	return s.Phase == PhaseAnswering && len(s.Selected) > 0
}

func (s Session) submission() Submission {
	q, _ := s.Current()
	return Submission{
		Question: q.Text,
		Answers:  slices.Clone(s.Selected),
		Start:    !s.started,
	}
}

// Percent normalizes a raw score into an integer percentage.
func Percent(score float64, questions int) int {
	if questions <= 0 {
		return 0
	}
	p := math.Round(score / float64(questions*Points) * 100)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(p)
}
