package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizcoach/internal/model"
	"github.com/stemsi/quizcoach/internal/quiz"
)

// Client errors.
var (
	ErrStatus    = errors.New("unexpected status")
	ErrMalformed = errors.New("malformed response")
	ErrService   = errors.New("service reported an error")
)

const maxBodyBytes = 1 << 20

// Client talks to the quiz backend over HTTP. It implements quiz.Backend.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger

	mu    sync.Mutex
	token string
}

var _ quiz.Backend = (*Client)(nil)

// New creates a Client for the backend rooted at baseURL.
func New(baseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log.With().Str("component", "quiz_client").Logger(),
	}
}

// SessionToken returns the session token issued by the backend, if any.
func (c *Client) SessionToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetSessionToken makes later calls continue an existing session.
func (c *Client) SetSessionToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// quizBody accepts both the success and the failure shape of /api/data.
type quizBody struct {
	Quiz  *[]model.QuizQuestion `json:"quiz"`
	Error *string               `json:"error"`
}

// gradingBody accepts both the success and the failure shape of /api/handler.
type gradingBody struct {
	Feedback  *string `json:"feedback"`
	IsCorrect *bool   `json:"isCorrect"`
	Error     *string `json:"error"`
}

// finalBody accepts both the success and the failure shape of /api/final.
type finalBody struct {
	Feedback *string `json:"feedback"`
	Error    *string `json:"error"`
}

// FetchQuiz loads the questions. Any non-2xx status, an error field or a
// missing quiz field is a failure.
func (c *Client) FetchQuiz(ctx context.Context) ([]quiz.Question, error) {
	status, raw, err := c.do(ctx, http.MethodGet, "/api/data", nil)
	if err != nil {
		return nil, err
	}

	var body quizBody
	decodeErr := json.Unmarshal(raw, &body)

	if status < 200 || status > 299 {
		if decodeErr == nil && body.Error != nil {
			return nil, fmt.Errorf("%w %d: %s", ErrStatus, status, *body.Error)
		}
		return nil, fmt.Errorf("%w %d", ErrStatus, status)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, decodeErr)
	}
	if body.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrService, *body.Error)
	}
	if body.Quiz == nil {
		return nil, fmt.Errorf("%w: missing quiz field", ErrMalformed)
	}

	questions := make([]quiz.Question, len(*body.Quiz))
	for i, q := range *body.Quiz {
		questions[i] = quiz.Question{Text: q.Question, Options: q.Options}
	}
	return questions, nil
}

// Grade submits an answer set. A response that decodes but signals an error
// is returned as a degraded result (Failed set); isCorrect defaults to true
// when the error payload omits it.
func (c *Client) Grade(ctx context.Context, sub quiz.Submission) (quiz.GradingResult, error) {
	req := model.AnswerRequest{
		Question: sub.Question,
		Answers:  sub.Answers,
		Start:    sub.Start,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return quiz.GradingResult{}, fmt.Errorf("encode answers: %w", err)
	}

	status, raw, err := c.do(ctx, http.MethodPost, "/api/handler", payload)
	if err != nil {
		return quiz.GradingResult{}, err
	}

	var body gradingBody
	if err := json.Unmarshal(raw, &body); err != nil {
		if status < 200 || status > 299 {
			return quiz.GradingResult{}, fmt.Errorf("%w %d", ErrStatus, status)
		}
		return quiz.GradingResult{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return gradingResult(status, body), nil
}

func gradingResult(status int, body gradingBody) quiz.GradingResult {
	ok := status >= 200 && status <= 299 && body.Error == nil && body.Feedback != nil
	if ok {
		correct := body.IsCorrect != nil && *body.IsCorrect
		return quiz.GradingResult{Correct: correct, Feedback: *body.Feedback}
	}

	correct := true
	if body.IsCorrect != nil {
		correct = *body.IsCorrect
	}
	msg := "missing feedback"
	if body.Error != nil {
		msg = *body.Error
	}
	return quiz.GradingResult{Correct: correct, Feedback: msg, Failed: true}
}

// Summarize fetches the final narrative of the session.
func (c *Client) Summarize(ctx context.Context) (string, error) {
	status, raw, err := c.do(ctx, http.MethodGet, "/api/final", nil)
	if err != nil {
		return "", err
	}

	var body finalBody
	decodeErr := json.Unmarshal(raw, &body)

	if status < 200 || status > 299 {
		if decodeErr == nil && body.Error != nil {
			return "", fmt.Errorf("%w %d: %s", ErrStatus, status, *body.Error)
		}
		return "", fmt.Errorf("%w %d", ErrStatus, status)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, decodeErr)
	}
	if body.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrService, *body.Error)
	}
	if body.Feedback == nil {
		return "", fmt.Errorf("%w: missing feedback field", ErrMalformed)
	}
	return *body.Feedback, nil
}

// do performs one request and returns the status and the (bounded) body.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.New().String()
	req.Header.Set("X-Request-ID", reqID)
	if token := c.SessionToken(); token != "" {
		req.Header.Set(model.SessionHeader, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if token := resp.Header.Get(model.SessionHeader); token != "" {
		c.SetSessionToken(token)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read %s response: %w", path, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Msg("Backend call")

	return resp.StatusCode, raw, nil
}
