package quiz

import (
	"errors"
	"fmt"
	"slices"
)

// Transition errors. A rejected event leaves the session unchanged.
var (
	ErrInvalidTransition = errors.New("event not allowed in current phase")
	ErrEmptySelection    = errors.New("no option selected")
	ErrUnknownOption     = errors.New("option does not belong to the current question")
	ErrStaleResponse     = errors.New("response belongs to a previous request")
	ErrMalformedQuiz     = errors.New("quiz payload is malformed")
)

// Event is anything that can move a session forward.
type Event interface {
	event()
}

// QuizLoaded carries the questions returned by the data source.
type QuizLoaded struct {
	Generation uint64
	Questions  []Question
}

// QuizLoadFailed reports that the quiz could not be fetched.
type QuizLoadFailed struct {
	Generation uint64
	Err        error
}

// OptionToggled adds the option to the selection or removes it.
type OptionToggled struct {
	Option string
}

// AnswerSubmitted sends the current selection for grading.
type AnswerSubmitted struct{}

// GradingReceived delivers the grading response for a submission.
type GradingReceived struct {
	Generation uint64
	Result     GradingResult
}

// Advanced is the user's confirmation after reading the feedback.
type Advanced struct{}

// SummaryReceived delivers the final narrative.
type SummaryReceived struct {
	Generation uint64
	Text       string
	Failed     bool
}

func (QuizLoaded) event()      {}
func (QuizLoadFailed) event()  {}
func (OptionToggled) event()   {}
func (AnswerSubmitted) event() {}
func (GradingReceived) event() {}
func (Advanced) event()        {}
func (SummaryReceived) event() {}

// Apply is the single transition function of the quiz. It returns the next
// session, or the unchanged session and an error when ev is not allowed.
func Apply(s Session, ev Event) (Session, error) {
	switch ev := ev.(type) {
	case QuizLoaded:
		return applyLoaded(s, ev)
	case QuizLoadFailed:
		return applyLoadFailed(s, ev)
	case OptionToggled:
		return applyToggle(s, ev)
	case AnswerSubmitted:
		return applySubmit(s)
	case GradingReceived:
		return applyGraded(s, ev)
	case Advanced:
		return applyAdvance(s)
	case SummaryReceived:
		return applySummary(s, ev)
	default:
		return s, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev)
	}
}

func applyLoaded(s Session, ev QuizLoaded) (Session, error) {
	if s.Phase != PhaseLoading {
		return s, fmt.Errorf("%w: quiz loaded while %s", ErrInvalidTransition, s.Phase)
	}
	if ev.Generation != s.Generation {
		return s, fmt.Errorf("%w: quiz generation %d, current %d", ErrStaleResponse, ev.Generation, s.Generation)
	}
	if err := validateQuestions(ev.Questions); err != nil {
		s.Phase = PhaseDataError
		s.LoadErr = err
		return s, nil
	}

	questions := make([]Question, len(ev.Questions))
	for i, q := range ev.Questions {
		questions[i] = Question{Text: q.Text, Options: slices.Clone(q.Options)}
	}

	s.Questions = questions
	s.Index = 0
	s.Attempt = 1
	s.Selected = nil
	s.Phase = PhaseAnswering
	return s, nil
}

func validateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrMalformedQuiz)
	}
	for i, q := range questions {
		if q.Text == "" {
			return fmt.Errorf("%w: question %d has no text", ErrMalformedQuiz, i+1)
		}
		if len(q.Options) == 0 {
			return fmt.Errorf("%w: question %d has no options", ErrMalformedQuiz, i+1)
		}
		seen := make(map[string]struct{}, len(q.Options))
		for _, o := range q.Options {
			if _, dup := seen[o]; dup {
				return fmt.Errorf("%w: question %d repeats option %q", ErrMalformedQuiz, i+1, o)
			}
			seen[o] = struct{}{}
		}
	}
	return nil
}

func applyLoadFailed(s Session, ev QuizLoadFailed) (Session, error) {
	if s.Phase != PhaseLoading {
		return s, fmt.Errorf("%w: load failure while %s", ErrInvalidTransition, s.Phase)
	}
	if ev.Generation != s.Generation {
		return s, fmt.Errorf("%w: quiz generation %d, current %d", ErrStaleResponse, ev.Generation, s.Generation)
	}
	s.Phase = PhaseDataError
	s.LoadErr = ev.Err
	return s, nil
}

func applyToggle(s Session, ev OptionToggled) (Session, error) {
	if s.Phase != PhaseAnswering {
		return s, fmt.Errorf("%w: toggle while %s", ErrInvalidTransition, s.Phase)
	}
	q, _ := s.Current()
	if !slices.Contains(q.Options, ev.Option) {
		return s, fmt.Errorf("%w: %q", ErrUnknownOption, ev.Option)
	}

	if i := slices.Index(s.Selected, ev.Option); i >= 0 {
		s.Selected = slices.Delete(slices.Clone(s.Selected), i, i+1)
	} else {
		s.Selected = append(slices.Clone(s.Selected), ev.Option)
	}
	return s, nil
}

func applySubmit(s Session) (Session, error) {
	if s.Phase != PhaseAnswering {
		return s, fmt.Errorf("%w: submit while %s", ErrInvalidTransition, s.Phase)
	}
	if len(s.Selected) == 0 {
		return s, ErrEmptySelection
	}

	sub := s.submission()
	s.Pending = &sub
	s.started = true
	s.Generation++
	s.Phase = PhaseSubmitting
	return s, nil
}

func applyGraded(s Session, ev GradingReceived) (Session, error) {
	if s.Phase != PhaseSubmitting || ev.Generation != s.Generation {
		return s, fmt.Errorf("%w: grading generation %d, current %d (%s)",
			ErrStaleResponse, ev.Generation, s.Generation, s.Phase)
	}
	result := ev.Result
	s.Feedback = &result
	s.Pending = nil
	s.Phase = PhaseFeedback
	return s, nil
}

func applyAdvance(s Session) (Session, error) {
	if s.Phase != PhaseFeedback || s.Feedback == nil {
		return s, fmt.Errorf("%w: advance while %s", ErrInvalidTransition, s.Phase)
	}
	correct := s.Feedback.Correct

	switch {
	case correct && s.Index < s.LastIndex():
		s.Score += float64(Points) / float64(s.Attempt)
		s.Index++
		s.Attempt = 1
		s.Selected = nil
		s.Feedback = nil
		s.Phase = PhaseAnswering

	case !correct && s.Attempt < MaxAttempts:
		s.Attempt++
		s.Selected = nil
		s.Feedback = nil
		s.Phase = PhaseAnswering

	default:
		if correct {
			s.Score += float64(Points) / float64(s.Attempt)
		}
		s.Feedback = nil
		s.Selected = nil
		s.Generation++
		s.Phase = PhaseCompleted
		s.Result = &SessionResult{
			ScorePercent: Percent(s.Score, len(s.Questions)),
		}
	}
	return s, nil
}

func applySummary(s Session, ev SummaryReceived) (Session, error) {
	if s.Phase != PhaseCompleted || s.Result == nil || ev.Generation != s.Generation {
		return s, fmt.Errorf("%w: summary generation %d, current %d (%s)",
			ErrStaleResponse, ev.Generation, s.Generation, s.Phase)
	}
	if s.Result.Ready {
		return s, fmt.Errorf("%w: summary already received", ErrInvalidTransition)
	}

	result := *s.Result
	result.Ready = true
	result.Failed = ev.Failed
	if ev.Failed {
		result.Summary = ""
	} else {
		result.Summary = ev.Text
	}
	s.Result = &result
	return s, nil
}
