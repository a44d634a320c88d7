package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizcoach/internal/middleware"
	"github.com/stemsi/quizcoach/internal/model"
	"github.com/stemsi/quizcoach/internal/response"
	"github.com/stemsi/quizcoach/internal/service"
	"github.com/stemsi/quizcoach/internal/validator"
)

// QuizProvider serves the quiz payload.
type QuizProvider interface {
	Payload(ctx context.Context) (*model.QuizPayload, error)
}

// Coach grades submissions and summarizes sessions.
type Coach interface {
	Grade(ctx context.Context, in service.GradeInput) (service.GradeResult, error)
	Summarize(ctx context.Context, token string) (string, error)
}

// QuizHandler serves the three quiz endpoints.
type QuizHandler struct {
	quiz          QuizProvider
	coach         Coach
	sessionExpiry time.Duration
	log           zerolog.Logger
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quiz QuizProvider, coach Coach, sessionExpiry time.Duration, log zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		quiz:          quiz,
		coach:         coach,
		sessionExpiry: sessionExpiry,
		log:           log.With().Str("component", "quiz_handler").Logger(),
	}
}

// GetData godoc
// GET /api/data
func (h *QuizHandler) GetData(c *gin.Context) {
	payload, err := h.quiz.Payload(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg("Quiz data unavailable")
		response.Fail(c, http.StatusInternalServerError, response.ErrInvalidData)
		return
	}
	response.Success(c, http.StatusOK, payload)
}

// HandleAnswer godoc
// POST /api/handler
func (h *QuizHandler) HandleAnswer(c *gin.Context) {
	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidInput, fields)
		return
	}

	res, err := h.coach.Grade(c.Request.Context(), service.GradeInput{
		SessionToken: middleware.GetSessionToken(c),
		Question:     req.Question,
		Answers:      req.Answers,
		Start:        req.Start,
	})
	if res.SessionToken != "" {
		middleware.WriteSessionToken(c, res.SessionToken, h.sessionExpiry)
	}

	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuestionNotFound):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidInput)
		case errors.Is(err, service.ErrFeedbackUnavailable):
			h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg("Feedback generation failed")
			response.FailGrading(c, http.StatusInternalServerError, response.ErrFeedbackUnavailable, res.IsCorrect)
		default:
			h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg("Grading failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, model.FeedbackResponse{
		Feedback:  res.Feedback,
		IsCorrect: res.IsCorrect,
	})
}

// GetFinal godoc
// GET /api/final
func (h *QuizHandler) GetFinal(c *gin.Context) {
	text, err := h.coach.Summarize(c.Request.Context(), middleware.GetSessionToken(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoSession):
			response.Fail(c, http.StatusBadRequest, response.ErrSessionRequired)
		case errors.Is(err, service.ErrFeedbackUnavailable):
			h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg("Summary generation failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrFeedbackUnavailable)
		default:
			h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg("Summary failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, model.FinalFeedbackResponse{Feedback: text})
}
