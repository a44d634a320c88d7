package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizcoach/internal/middleware"
	"github.com/stemsi/quizcoach/internal/model"
	"github.com/stemsi/quizcoach/internal/response"
	"github.com/stemsi/quizcoach/internal/service"
	"github.com/stemsi/quizcoach/internal/validator"
	ws "github.com/stemsi/quizcoach/internal/websocket"
)

const streamRequestTimeout = 90 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// StreamObserver tracks open streams.
type StreamObserver interface {
	StreamOpened()
	StreamClosed()
}

// SubmitLimiter throttles grading requests per client.
type SubmitLimiter interface {
	Allow(key string) bool
}

// WSHandler serves grading and summaries over a WebSocket.
type WSHandler struct {
	coach    Coach
	observer StreamObserver
	limiter  SubmitLimiter
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
// Submits share limiter with POST /api/handler.
func NewWSHandler(coach Coach, observer StreamObserver, limiter SubmitLimiter, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		coach:    coach,
		observer: observer,
		limiter:  limiter,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// QuizStream godoc
// WS /ws/api/stream
// One connection carries one quiz session at a time; a submit with start
// set rotates it.
func (h *WSHandler) QuizStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	h.observer.StreamOpened()
	defer h.observer.StreamClosed()

	token := middleware.GetSessionToken(c)
	clientIP := c.ClientIP()
	wsLog := h.log.With().Str("request_id", response.RequestID(c)).Logger()
	wsLog.Info().Msg("Quiz stream connected")

	for {
		var msg ws.Request
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var reply interface{}
		switch msg.Action {
		case ws.ActionSubmit:
			if !h.limiter.Allow(clientIP) {
				wsLog.Warn().Str("client_ip", clientIP).Msg("Submit rate limited")
				reply = errorReply(msg.ID, response.ErrRateLimitExceeded)
				break
			}
			reply = h.handleSubmit(c.Request.Context(), wsLog, &token, &msg)
		case ws.ActionFinal:
			reply = h.handleFinal(c.Request.Context(), wsLog, token, msg.ID)
		case ws.ActionPing:
			reply = ws.PongResponse{Event: ws.EventPong}
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			reply = errorReply(msg.ID, response.ErrUnknownAction)
		}

		if err := ws.WriteTyped(conn, reply); err != nil {
			wsLog.Warn().Err(err).Msg("Write failed")
			return
		}
	}
}

// handleSubmit grades one answer set. token is updated when the
// submission opens a new session.
func (h *WSHandler) handleSubmit(ctx context.Context, wsLog zerolog.Logger, token *string, msg *ws.Request) interface{} {
	req := model.AnswerRequest{Question: msg.Question, Answers: msg.Answers, Start: msg.Start}
	if fields := validator.Validate(&req); fields != nil {
		return errorReply(msg.ID, response.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, streamRequestTimeout)
	defer cancel()

	res, err := h.coach.Grade(ctx, service.GradeInput{
		SessionToken: *token,
		Question:     req.Question,
		Answers:      req.Answers,
		Start:        req.Start,
	})
	if res.SessionToken != "" {
		*token = res.SessionToken
	}

	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuestionNotFound):
			return errorReply(msg.ID, response.ErrInvalidInput)
		case errors.Is(err, service.ErrFeedbackUnavailable):
			wsLog.Error().Err(err).Msg("Feedback generation failed")
			reply := errorReply(msg.ID, response.ErrFeedbackUnavailable)
			reply.IsCorrect = &res.IsCorrect
			return reply
		default:
			wsLog.Error().Err(err).Msg("Grading failed")
			return errorReply(msg.ID, response.ErrInternal)
		}
	}

	return ws.GradedResponse{
		Event:     ws.EventGraded,
		ID:        msg.ID,
		Feedback:  res.Feedback,
		IsCorrect: res.IsCorrect,
		Session:   res.SessionToken,
	}
}

func (h *WSHandler) handleFinal(ctx context.Context, wsLog zerolog.Logger, token, id string) interface{} {
	ctx, cancel := context.WithTimeout(ctx, streamRequestTimeout)
	defer cancel()

	text, err := h.coach.Summarize(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoSession):
			return errorReply(id, response.ErrSessionRequired)
		case errors.Is(err, service.ErrFeedbackUnavailable):
			wsLog.Error().Err(err).Msg("Summary generation failed")
			return errorReply(id, response.ErrFeedbackUnavailable)
		default:
			wsLog.Error().Err(err).Msg("Summary failed")
			return errorReply(id, response.ErrInternal)
		}
	}

	return ws.SummaryResponse{Event: ws.EventSummary, ID: id, Feedback: text}
}

func errorReply(id string, code response.ErrCode) ws.ErrorResponse {
	return ws.ErrorResponse{Event: ws.EventError, ID: id, Error: response.GetMessage(code)}
}
