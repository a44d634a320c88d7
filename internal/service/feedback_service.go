package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizcoach/internal/feedback"
	"github.com/stemsi/quizcoach/internal/model"
)

// Feedback errors.
var (
	ErrQuestionNotFound    = errors.New("question not found")
	ErrNoSession           = errors.New("no quiz session")
	ErrFeedbackUnavailable = errors.New("feedback unavailable")
)

// HistoryStore keeps the feedback conversation of each session.
type HistoryStore interface {
	Load(ctx context.Context, sessionID string) ([]model.Turn, error)
	Append(ctx context.Context, sessionID string, turns ...model.Turn) error
}

// AttemptQueue hands attempt records to the attempt worker.
type AttemptQueue interface {
	Enqueue(ctx context.Context, rec model.AttemptRecord) error
}

// Recorder receives grading metrics.
type Recorder interface {
	ObserveGrade(correct bool)
	FeedbackFailed(kind string)
}

// GradeInput is one submission as received by the server.
type GradeInput struct {
	SessionToken string
	Question     string
	Answers      []string
	Start        bool
}

// GradeResult is the verdict of a submission. SessionToken is set only when
// the submission opened a new session.
type GradeResult struct {
	Feedback     string
	IsCorrect    bool
	SessionToken string
}

// FeedbackService grades submissions and writes the tutor feedback.
type FeedbackService struct {
	quiz     *QuizService
	sessions *SessionService
	history  HistoryStore
	queue    AttemptQueue
	gen      feedback.Generator
	metrics  Recorder
	log      zerolog.Logger
	now      func() time.Time
}

// NewFeedbackService creates a new FeedbackService.
func NewFeedbackService(
	quiz *QuizService,
	sessions *SessionService,
	history HistoryStore,
	queue AttemptQueue,
	gen feedback.Generator,
	metrics Recorder,
	log zerolog.Logger,
) *FeedbackService {
	return &FeedbackService{
		quiz:     quiz,
		sessions: sessions,
		history:  history,
		queue:    queue,
		gen:      gen,
		metrics:  metrics,
		log:      log.With().Str("component", "feedback_service").Logger(),
		now:      time.Now,
	}
}

// Grade compares the answers with the key as a set and asks the generator
// for feedback. On ErrFeedbackUnavailable the returned result still carries
// the verdict and any new session token.
func (s *FeedbackService) Grade(ctx context.Context, in GradeInput) (GradeResult, error) {
	key, err := s.quiz.AnswerKey(ctx)
	if err != nil {
		return GradeResult{}, err
	}
	correctAnswers, ok := key[in.Question]
	if !ok {
		return GradeResult{}, ErrQuestionNotFound
	}
	correct := sameSet(correctAnswers, in.Answers)

	sessionID, token, err := s.session(in)
	if err != nil {
		return GradeResult{}, err
	}
	result := GradeResult{IsCorrect: correct, SessionToken: token}
	s.metrics.ObserveGrade(correct)

	history, err := s.history.Load(ctx, sessionID.String())
	if err != nil {
		return result, fmt.Errorf("load history: %w", err)
	}
	details, err := s.quiz.Details(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Grading without quiz details")
	}

	ex := model.Exchange{
		Question:       in.Question,
		Correctness:    model.CorrectnessOf(correct),
		CorrectAnswers: correctAnswers,
		Answers:        in.Answers,
	}

	text, genErr := s.gen.Feedback(ctx, details, history, ex)
	s.enqueue(ctx, model.AttemptRecord{
		SessionID: sessionID,
		Question:  in.Question,
		Answers:   in.Answers,
		IsCorrect: correct,
		Feedback:  text,
		GradedAt:  s.now().UTC(),
	})
	if genErr != nil {
		s.metrics.FeedbackFailed("answer")
		return result, fmt.Errorf("%w: %v", ErrFeedbackUnavailable, genErr)
	}

	now := s.now().UTC()
	if err := s.history.Append(ctx, sessionID.String(),
		model.Turn{Role: model.TurnUser, Content: feedback.Message(ex), Exchange: &ex, At: now},
		model.Turn{Role: model.TurnAssistant, Content: text, At: now},
	); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Failed to append history")
	}

	result.Feedback = text
	return result, nil
}

// Summarize writes the narrative of a whole session.
func (s *FeedbackService) Summarize(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNoSession
	}
	sessionID, err := s.sessions.Parse(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	history, err := s.history.Load(ctx, sessionID.String())
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	if len(history) == 0 {
		return "", ErrNoSession
	}

	details, err := s.quiz.Details(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Summarizing without quiz details")
	}

	text, err := s.gen.Summary(ctx, details, history)
	if err != nil {
		s.metrics.FeedbackFailed("summary")
		return "", fmt.Errorf("%w: %v", ErrFeedbackUnavailable, err)
	}
	return text, nil
}

// session resolves the submission's session. start, a missing token or an
// unverifiable one opens a new session.
func (s *FeedbackService) session(in GradeInput) (uuid.UUID, string, error) {
	if !in.Start && in.SessionToken != "" {
		id, err := s.sessions.Parse(in.SessionToken)
		if err == nil {
			return id, "", nil
		}
		s.log.Debug().Err(err).Msg("Replacing unusable session token")
	}
	return s.sessions.Issue()
}

func (s *FeedbackService) enqueue(ctx context.Context, rec model.AttemptRecord) {
	if err := s.queue.Enqueue(ctx, rec); err != nil {
		s.log.Error().Err(err).
			Str("session_id", rec.SessionID.String()).
			Msg("Failed to enqueue attempt")
	}
}

// sameSet reports whether a and b hold the same distinct values.
func sameSet(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, v := range a {
		as[v] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, v := range b {
		if _, ok := as[v]; !ok {
			return false
		}
		bs[v] = struct{}{}
	}
	return len(as) == len(bs)
}
