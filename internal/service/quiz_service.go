package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/quizcoach/internal/config"
	"github.com/stemsi/quizcoach/internal/model"
)

// ErrQuizUnavailable is returned when there is no servable quiz.
var ErrQuizUnavailable = errors.New("quiz unavailable")

// QuizStore is the persistent quiz storage.
type QuizStore interface {
	ListQuestions(ctx context.Context) ([]model.StoredQuestion, error)
	GetDetails(ctx context.Context) (model.QuizDetails, error)
	Replace(ctx context.Context, questions []model.StoredQuestion, details model.QuizDetails) error
}

// Cache is a byte cache; Get reports a miss with ok=false.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// QuizService serves the quiz, its answer key and its details, warming the
// cache from the store on a miss.
type QuizService struct {
	store QuizStore
	cache Cache
	ttl   time.Duration
	log   zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(store QuizStore, cache Cache, ttl time.Duration, log zerolog.Logger) *QuizService {
	return &QuizService{
		store: store,
		cache: cache,
		ttl:   ttl,
		log:   log.With().Str("component", "quiz_service").Logger(),
	}
}

// Payload returns the questions as served to quiz takers.
func (s *QuizService) Payload(ctx context.Context) (*model.QuizPayload, error) {
	var payload model.QuizPayload
	err := s.cached(ctx, config.CacheKey.QuizPayloadKey(), &payload, func(questions []model.StoredQuestion) (interface{}, error) {
		p := model.QuizPayload{Quiz: make([]model.QuizQuestion, 0, len(questions))}
		for _, q := range questions {
			if q.Question == "" || len(q.Options) == 0 {
				return nil, fmt.Errorf("%w: question %d is incomplete", ErrQuizUnavailable, q.Position)
			}
			p.Quiz = append(p.Quiz, model.QuizQuestion{Question: q.Question, Options: q.Options})
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return &payload, nil
}

// AnswerKey returns the correct answers by question text.
func (s *QuizService) AnswerKey(ctx context.Context) (map[string][]string, error) {
	var key map[string][]string
	err := s.cached(ctx, config.CacheKey.QuizAnswerKey(), &key, func(questions []model.StoredQuestion) (interface{}, error) {
		k := make(map[string][]string, len(questions))
		for _, q := range questions {
			k[q.Question] = q.Answers
		}
		return k, nil
	})
	return key, err
}

// Details returns the quiz details.
func (s *QuizService) Details(ctx context.Context) (model.QuizDetails, error) {
	key := config.CacheKey.QuizDetailsKey()
	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var d model.QuizDetails
		if err := json.Unmarshal(data, &d); err == nil {
			return d, nil
		}
	} else if err != nil {
		s.log.Warn().Err(err).Msg("Details cache read failed")
	}

	d, err := s.store.GetDetails(ctx)
	if err != nil {
		return model.QuizDetails{}, fmt.Errorf("load details: %w", err)
	}
	s.put(ctx, key, d)
	return d, nil
}

// Replace stores a new quiz and drops every cached view of the old one.
func (s *QuizService) Replace(ctx context.Context, questions []model.StoredQuestion, details model.QuizDetails) error {
	if len(questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrQuizUnavailable)
	}
	if err := s.store.Replace(ctx, questions, details); err != nil {
		return fmt.Errorf("replace quiz: %w", err)
	}
	return s.Invalidate(ctx)
}

// Invalidate drops the cached payload, answer key and details.
func (s *QuizService) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx,
		config.CacheKey.QuizPayloadKey(),
		config.CacheKey.QuizAnswerKey(),
		config.CacheKey.QuizDetailsKey(),
	)
}

// cached decodes key into dst, or builds the value from the stored
// questions, caches it and decodes that. Cache failures only degrade to the
// store.
func (s *QuizService) cached(ctx context.Context, key string, dst interface{}, build func([]model.StoredQuestion) (interface{}, error)) error {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	}
	if ok {
		if err := json.Unmarshal(data, dst); err == nil {
			return nil
		}
		s.log.Warn().Str("key", key).Msg("Discarding undecodable cache entry")
	}

	questions, err := s.store.ListQuestions(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQuizUnavailable, err)
	}
	if len(questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrQuizUnavailable)
	}

	v, err := build(questions)
	if err != nil {
		return err
	}
	data, err = json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.write(ctx, key, data)
	return json.Unmarshal(data, dst)
}

func (s *QuizService) put(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.write(ctx, key, data)
}

func (s *QuizService) write(ctx context.Context, key string, data []byte) {
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}
