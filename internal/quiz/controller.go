package quiz

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// QuizSource returns the ordered questions of the quiz.
type QuizSource interface {
	FetchQuiz(ctx context.Context) ([]Question, error)
}

// Grader judges a submission. A degraded response that could still be
// decoded is returned with Failed set and a nil error.
type Grader interface {
	Grade(ctx context.Context, sub Submission) (GradingResult, error)
}

// Summarizer returns the final narrative of a completed session.
type Summarizer interface {
	Summarize(ctx context.Context) (string, error)
}

// Backend bundles the three remote collaborators of the controller.
type Backend interface {
	QuizSource
	Grader
	Summarizer
}

// Option configures a Controller.
type Option func(*Controller)

// WithOnChange registers a hook called after every accepted transition.
// The hook runs while the controller is locked and must not call back into it.
func WithOnChange(fn func(Session)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// Controller owns a quiz Session and runs the remote calls it needs.
// All state changes go through Apply under a single mutex, and every async
// completion carries the generation of the request that produced it.
type Controller struct {
	backend  Backend
	log      zerolog.Logger
	onChange func(Session)

	mu      sync.Mutex
	session Session
	wg      sync.WaitGroup
}

// NewController creates a Controller in the loading phase.
func NewController(backend Backend, log zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		backend: backend,
		log:     log.With().Str("component", "quiz_controller").Logger(),
		session: NewSession(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Wait blocks until every in-flight remote call has been applied.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Start fetches the quiz. It must be called once, before any other action.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	gen := c.session.Generation
	c.mu.Unlock()

	c.goFetch(ctx, gen)
}

// Restart throws the session away and loads the quiz again. Responses to
// requests issued before the restart are ignored.
func (c *Controller) Restart(ctx context.Context) {
	c.mu.Lock()
	c.session = c.session.Reset()
	gen := c.session.Generation
	c.notify()
	c.mu.Unlock()

	c.log.Info().Uint64("generation", gen).Msg("Session restarted")
	c.goFetch(ctx, gen)
}

// Toggle adds the option to the selection, or removes it if already selected.
func (c *Controller) Toggle(option string) error {
	_, err := c.dispatch(OptionToggled{Option: option})
	return err
}

// Submit sends the current selection for grading.
func (c *Controller) Submit(ctx context.Context) error {
	next, err := c.dispatch(AnswerSubmitted{})
	if err != nil {
		return err
	}

	sub := *next.Pending
	gen := next.Generation
	c.log.Debug().
		Int("question", next.Index+1).
		Int("attempt", next.Attempt).
		Strs("answers", sub.Answers).
		Msg("Submitting answer")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.grade(ctx, gen, sub)
	}()
	return nil
}

// Advance applies the advance rule after the feedback has been read. When
// the session completes, the summary is requested.
func (c *Controller) Advance(ctx context.Context) error {
	next, err := c.dispatch(Advanced{})
	if err != nil {
		return err
	}
	if next.Phase != PhaseCompleted {
		return nil
	}

	c.log.Info().
		Float64("score", next.Score).
		Int("percent", next.Result.ScorePercent).
		Msg("Quiz completed")

	gen := next.Generation
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.summarize(ctx, gen)
	}()
	return nil
}

func (c *Controller) goFetch(ctx context.Context, gen uint64) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.fetch(ctx, gen)
	}()
}

func (c *Controller) fetch(ctx context.Context, gen uint64) {
	questions, err := c.backend.FetchQuiz(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to fetch quiz data")
		c.dispatchAsync(QuizLoadFailed{Generation: gen, Err: err})
		return
	}

	next, ok := c.dispatchAsync(QuizLoaded{Generation: gen, Questions: questions})
	if ok && next.Phase == PhaseDataError {
		c.log.Error().Err(next.LoadErr).Msg("Quiz payload rejected")
	}
}

func (c *Controller) grade(ctx context.Context, gen uint64, sub Submission) {
	result, err := c.backend.Grade(ctx, sub)
	if err != nil {
		c.log.Error().Err(err).Msg("An error occurred while sending the answers")
		result = GradingResult{Correct: true, Feedback: GradingErrorMessage, Failed: true}
	} else if result.Failed {
		c.log.Warn().Bool("is_correct", result.Correct).Msg("Grading service returned a degraded response")
		result.Feedback = GradingErrorMessage
	}
	// A failed grading never holds the user on the question.
	if result.Failed {
		result.Correct = true
	}

	c.dispatchAsync(GradingReceived{Generation: gen, Result: result})
}

func (c *Controller) summarize(ctx context.Context, gen uint64) {
	text, err := c.backend.Summarize(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to fetch final feedback")
		c.dispatchAsync(SummaryReceived{Generation: gen, Failed: true})
		return
	}
	c.dispatchAsync(SummaryReceived{Generation: gen, Text: text})
}

func (c *Controller) dispatch(ev Event) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := Apply(c.session, ev)
	if err != nil {
		return c.session, err
	}
	c.session = next
	c.notify()
	return next, nil
}

// dispatchAsync applies the completion of a remote call. Stale completions
// are dropped.
func (c *Controller) dispatchAsync(ev Event) (Session, bool) {
	next, err := c.dispatch(ev)
	if err != nil {
		if errors.Is(err, ErrStaleResponse) {
			c.log.Debug().Err(err).Msg("Discarding stale response")
		} else {
			c.log.Warn().Err(err).Msg("Response rejected")
		}
		return next, false
	}
	return next, true
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange(c.session)
	}
}
