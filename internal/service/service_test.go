package service_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/quizcoach/internal/config"
	"github.com/stemsi/quizcoach/internal/feedback"
	"github.com/stemsi/quizcoach/internal/model"
	"github.com/stemsi/quizcoach/internal/service"
)

/* ---------------- In-memory fakes ---------------- */

type fakeStore struct {
	questions []model.StoredQuestion
	details   model.QuizDetails
	err       error
	lists     int
}

func (f *fakeStore) ListQuestions(ctx context.Context) ([]model.StoredQuestion, error) {
	f.lists++
	return f.questions, f.err
}

func (f *fakeStore) GetDetails(ctx context.Context) (model.QuizDetails, error) {
	return f.details, nil
}

func (f *fakeStore) Replace(ctx context.Context, questions []model.StoredQuestion, details model.QuizDetails) error {
	f.questions, f.details = questions, details
	return nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = val
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

type fakeHistory struct {
	mu    sync.Mutex
	turns map[string][]model.Turn
}

func (f *fakeHistory) Load(ctx context.Context, id string) ([]model.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Turn(nil), f.turns[id]...), nil
}

func (f *fakeHistory) Append(ctx context.Context, id string, turns ...model.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns[id] = append(f.turns[id], turns...)
	return nil
}

type fakeQueue struct {
	records []model.AttemptRecord
}

func (f *fakeQueue) Enqueue(ctx context.Context, rec model.AttemptRecord) error {
	f.records = append(f.records, rec)
	return nil
}

type failingGenerator struct{}

func (failingGenerator) Feedback(context.Context, model.QuizDetails, []model.Turn, model.Exchange) (string, error) {
	return "", feedback.ErrNoFeedbackTag
}

func (failingGenerator) Summary(context.Context, model.QuizDetails, []model.Turn) (string, error) {
	return "", feedback.ErrNoFeedbackTag
}

type nopRecorder struct{}

func (nopRecorder) ObserveGrade(bool)     {}
func (nopRecorder) FeedbackFailed(string) {}

/* ---------------- Fixtures ---------------- */

func storedQuiz() []model.StoredQuestion {
	return []model.StoredQuestion{
		{Position: 1, Question: "Pick primary colors", Options: []string{"Red", "Green", "Blue"}, Answers: []string{"Red", "Blue"}},
		{Position: 2, Question: "2 + 2", Options: []string{"3", "4"}, Answers: []string{"4"}},
	}
}

type env struct {
	store   *fakeStore
	cache   *fakeCache
	history *fakeHistory
	queue   *fakeQueue
	quiz    *service.QuizService
	svc     *service.FeedbackService
}

func newEnv(gen feedback.Generator) *env {
	log := zerolog.New(io.Discard)
	e := &env{
		store:   &fakeStore{questions: storedQuiz(), details: model.QuizDetails{Theme: "basics"}},
		cache:   newFakeCache(),
		history: &fakeHistory{turns: map[string][]model.Turn{}},
		queue:   &fakeQueue{},
	}
	e.quiz = service.NewQuizService(e.store, e.cache, time.Hour, log)
	sessions := service.NewSessionService("test-secret", time.Hour)
	e.svc = service.NewFeedbackService(e.quiz, sessions, e.history, e.queue, gen, nopRecorder{}, log)
	return e
}

/* ---------------- QuizService ---------------- */

func TestQuizPayloadIsCached(t *testing.T) {
	e := newEnv(feedback.NewTemplateGenerator())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		p, err := e.quiz.Payload(ctx)
		if err != nil {
			t.Fatalf("Payload: %v", err)
		}
		if len(p.Quiz) != 2 || p.Quiz[0].Question != "Pick primary colors" {
			t.Fatalf("payload = %+v", p)
		}
	}
	if e.store.lists != 1 {
		t.Errorf("store hit %d times, want 1", e.store.lists)
	}
	if _, ok, _ := e.cache.Get(ctx, config.CacheKey.QuizPayloadKey()); !ok {
		t.Error("payload not cached")
	}

	if err := e.quiz.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := e.quiz.Payload(ctx); err != nil {
		t.Fatal(err)
	}
	if e.store.lists != 2 {
		t.Errorf("store hit %d times after invalidate, want 2", e.store.lists)
	}
}

func TestQuizPayloadUnavailable(t *testing.T) {
	tests := []struct {
		name      string
		questions []model.StoredQuestion
		err       error
	}{
		{name: "Empty"},
		{name: "StoreError", err: errors.New("connection refused")},
		{name: "NoOptions", questions: []model.StoredQuestion{{Position: 1, Question: "Q"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(feedback.NewTemplateGenerator())
			e.store.questions, e.store.err = tt.questions, tt.err

			if _, err := e.quiz.Payload(context.Background()); !errors.Is(err, service.ErrQuizUnavailable) {
				t.Fatalf("err = %v, want ErrQuizUnavailable", err)
			}
		})
	}
}

/* ---------------- SessionService ---------------- */

func TestSessionRoundTrip(t *testing.T) {
	s := service.NewSessionService("secret", time.Hour)
	id, token, err := s.Issue()
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Parse(token)
	if err != nil || got != id {
		t.Fatalf("Parse = %v, %v; want %v", got, err, id)
	}

	other := service.NewSessionService("other-secret", time.Hour)
	if _, err := other.Parse(token); !errors.Is(err, service.ErrInvalidSession) {
		t.Errorf("foreign token err = %v", err)
	}

	expired := service.NewSessionService("secret", -time.Minute)
	_, stale, _ := expired.Issue()
	if _, err := s.Parse(stale); !errors.Is(err, service.ErrInvalidSession) {
		t.Errorf("expired token err = %v", err)
	}
}

/* ---------------- FeedbackService ---------------- */

func TestGradeComparesAsSet(t *testing.T) {
	tests := []struct {
		name    string
		answers []string
		want    bool
	}{
		{name: "Exact", answers: []string{"Red", "Blue"}, want: true},
		{name: "Reordered", answers: []string{"Blue", "Red"}, want: true},
		{name: "Subset", answers: []string{"Red"}, want: false},
		{name: "Superset", answers: []string{"Red", "Blue", "Green"}, want: false},
		{name: "Duplicate", answers: []string{"Red", "Red", "Blue"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(feedback.NewTemplateGenerator())
			res, err := e.svc.Grade(context.Background(), service.GradeInput{
				Question: "Pick primary colors",
				Answers:  tt.answers,
				Start:    true,
			})
			if err != nil {
				t.Fatalf("Grade: %v", err)
			}
			if res.IsCorrect != tt.want {
				t.Errorf("IsCorrect = %v, want %v", res.IsCorrect, tt.want)
			}
		})
	}
}

func TestGradeUnknownQuestion(t *testing.T) {
	e := newEnv(feedback.NewTemplateGenerator())
	_, err := e.svc.Grade(context.Background(), service.GradeInput{Question: "nope", Answers: []string{"x"}, Start: true})
	if !errors.Is(err, service.ErrQuestionNotFound) {
		t.Fatalf("err = %v, want ErrQuestionNotFound", err)
	}
	if len(e.queue.records) != 0 {
		t.Errorf("enqueued %d records for an unknown question", len(e.queue.records))
	}
}

func TestGradeSessionFlow(t *testing.T) {
	e := newEnv(feedback.NewTemplateGenerator())
	ctx := context.Background()

	first, err := e.svc.Grade(ctx, service.GradeInput{Question: "Pick primary colors", Answers: []string{"Red", "Blue"}, Start: true})
	if err != nil {
		t.Fatal(err)
	}
	if first.SessionToken == "" {
		t.Fatal("start did not issue a session token")
	}

	second, err := e.svc.Grade(ctx, service.GradeInput{SessionToken: first.SessionToken, Question: "2 + 2", Answers: []string{"3"}})
	if err != nil {
		t.Fatal(err)
	}
	if second.SessionToken != "" {
		t.Error("continuing submission issued a new token")
	}

	summary, err := e.svc.Summarize(ctx, first.SessionToken)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary == "" {
		t.Error("empty summary")
	}

	if len(e.queue.records) != 2 {
		t.Fatalf("enqueued %d records, want 2", len(e.queue.records))
	}
	if e.queue.records[0].SessionID != e.queue.records[1].SessionID {
		t.Error("records belong to different sessions")
	}
	if e.queue.records[1].IsCorrect {
		t.Error("second record marked correct")
	}

	// A new start opens a fresh, empty session.
	third, err := e.svc.Grade(ctx, service.GradeInput{SessionToken: first.SessionToken, Question: "2 + 2", Answers: []string{"4"}, Start: true})
	if err != nil {
		t.Fatal(err)
	}
	if third.SessionToken == "" || third.SessionToken == first.SessionToken {
		t.Error("start did not rotate the session")
	}
	if len(e.history.turns) != 2 {
		t.Errorf("sessions with history = %d, want 2", len(e.history.turns))
	}
}

func TestGradeFeedbackUnavailable(t *testing.T) {
	e := newEnv(failingGenerator{})
	res, err := e.svc.Grade(context.Background(), service.GradeInput{Question: "2 + 2", Answers: []string{"3"}, Start: true})
	if !errors.Is(err, service.ErrFeedbackUnavailable) {
		t.Fatalf("err = %v, want ErrFeedbackUnavailable", err)
	}
	if res.IsCorrect || res.SessionToken == "" {
		t.Errorf("result = %+v, want verdict false and a token", res)
	}
	if len(e.queue.records) != 1 {
		t.Errorf("enqueued %d records, want 1", len(e.queue.records))
	}
	for id, turns := range e.history.turns {
		t.Errorf("history written for %s: %d turns", id, len(turns))
	}
}

func TestSummarizeWithoutSession(t *testing.T) {
	e := newEnv(feedback.NewTemplateGenerator())
	ctx := context.Background()

	if _, err := e.svc.Summarize(ctx, ""); !errors.Is(err, service.ErrNoSession) {
		t.Errorf("empty token err = %v", err)
	}
	if _, err := e.svc.Summarize(ctx, "garbage"); !errors.Is(err, service.ErrNoSession) {
		t.Errorf("bad token err = %v", err)
	}

	_, token, _ := service.NewSessionService("test-secret", time.Hour).Issue()
	if _, err := e.svc.Summarize(ctx, token); !errors.Is(err, service.ErrNoSession) {
		t.Errorf("empty history err = %v", err)
	}
}
