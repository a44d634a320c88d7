package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizcoach/internal/model"
	"github.com/stemsi/quizcoach/internal/quiz"
	ws "github.com/stemsi/quizcoach/internal/websocket"
)

const defaultStreamWait = 2 * time.Minute

// StreamClient grades answers and fetches the summary over a single
// WebSocket connection. Calls are serialized; every reply is matched to its
// request id.
type StreamClient struct {
	conn *websocket.Conn
	log  zerolog.Logger

	mu sync.Mutex
}

var (
	_ quiz.Grader     = (*StreamClient)(nil)
	_ quiz.Summarizer = (*StreamClient)(nil)
)

// DialStream opens the WebSocket at url. token, when set, continues an
// existing quiz session.
func DialStream(ctx context.Context, url, token string, log zerolog.Logger) (*StreamClient, error) {
	header := http.Header{}
	if token != "" {
		header.Set(model.SessionHeader, token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (%w %d)", url, err, ErrStatus, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	return &StreamClient{
		conn: conn,
		log:  log.With().Str("component", "quiz_stream").Logger(),
	}, nil
}

// Close closes the connection.
func (s *StreamClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}

// Grade submits an answer set; see Client.Grade for the degraded semantics.
func (s *StreamClient) Grade(ctx context.Context, sub quiz.Submission) (quiz.GradingResult, error) {
	env, err := s.roundTrip(ctx, ws.Request{
		Action:   ws.ActionSubmit,
		Question: sub.Question,
		Answers:  sub.Answers,
		Start:    sub.Start,
	})
	if err != nil {
		return quiz.GradingResult{}, err
	}

	switch env.Event {
	case ws.EventGraded:
		if env.Feedback == nil {
			return quiz.GradingResult{Correct: true, Feedback: "missing feedback", Failed: true}, nil
		}
		correct := env.IsCorrect != nil && *env.IsCorrect
		return quiz.GradingResult{Correct: correct, Feedback: *env.Feedback}, nil
	case ws.EventError:
		correct := true
		if env.IsCorrect != nil {
			correct = *env.IsCorrect
		}
		return quiz.GradingResult{Correct: correct, Feedback: env.Error, Failed: true}, nil
	default:
		return quiz.GradingResult{}, fmt.Errorf("%w: unexpected event %q", ErrMalformed, env.Event)
	}
}

// Summarize asks for the final narrative.
func (s *StreamClient) Summarize(ctx context.Context) (string, error) {
	env, err := s.roundTrip(ctx, ws.Request{Action: ws.ActionFinal})
	if err != nil {
		return "", err
	}

	switch env.Event {
	case ws.EventSummary:
		if env.Feedback == nil {
			return "", fmt.Errorf("%w: missing feedback field", ErrMalformed)
		}
		return *env.Feedback, nil
	case ws.EventError:
		return "", fmt.Errorf("%w: %s", ErrService, env.Error)
	default:
		return "", fmt.Errorf("%w: unexpected event %q", ErrMalformed, env.Event)
	}
}

func (s *StreamClient) roundTrip(ctx context.Context, req ws.Request) (ws.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req.ID = uuid.New().String()
	if err := ws.WriteTyped(s.conn, req); err != nil {
		return ws.Envelope{}, fmt.Errorf("send %s: %w", req.Action, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultStreamWait)
	}

	for {
		if err := ctx.Err(); err != nil {
			return ws.Envelope{}, err
		}

		var env ws.Envelope
		if err := ws.ReadJSONUntil(s.conn, deadline, &env); err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return ws.Envelope{}, fmt.Errorf("wait for %s reply: %w", req.Action, context.DeadlineExceeded)
			}
			return ws.Envelope{}, fmt.Errorf("read %s reply: %w", req.Action, err)
		}

		if env.ID != req.ID {
			s.log.Debug().
				Str("event", string(env.Event)).
				Str("id", env.ID).
				Msg("Skipping uncorrelated event")
			continue
		}
		return env, nil
	}
}

// streamBackend loads the quiz over HTTP and grades over the stream.
type streamBackend struct {
	quiz.QuizSource
	*StreamClient
}

// NewStreamBackend combines a quiz source with a StreamClient.
func NewStreamBackend(src quiz.QuizSource, stream *StreamClient) quiz.Backend {
	return streamBackend{QuizSource: src, StreamClient: stream}
}
