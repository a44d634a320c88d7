package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/quizcoach/internal/model"
	"google.golang.org/genai"
)

// GeminiGenerator asks a Gemini model for feedback, replaying the session
// history as the conversation.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

var _ Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a generator for model. An empty apiKey lets the
// SDK read GEMINI_API_KEY / GOOGLE_API_KEY itself.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, log zerolog.Logger) (*GeminiGenerator, error) {
	cfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGenerator{
		client: client,
		model:  model,
		log:    log.With().Str("component", "gemini_feedback").Logger(),
	}, nil
}

func (g *GeminiGenerator) Feedback(ctx context.Context, details model.QuizDetails, history []model.Turn, ex model.Exchange) (string, error) {
	contents := append(historyContents(history), genai.NewContentFromText(Message(ex), genai.RoleUser))
	return g.generate(ctx, details, contents)
}

func (g *GeminiGenerator) Summary(ctx context.Context, details model.QuizDetails, history []model.Turn) (string, error) {
	if len(history) == 0 {
		return "", ErrEmptyHistory
	}
	contents := append(historyContents(history), genai.NewContentFromText(summaryInstruction, genai.RoleUser))
	return g.generate(ctx, details, contents)
}

func (g *GeminiGenerator) generate(ctx context.Context, details model.QuizDetails, contents []*genai.Content) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt(details), genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.5),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	raw := result.Text()
	if raw == "" {
		return "", errors.New("empty model response")
	}

	text, err := ParseFeedback(raw)
	if err != nil {
		g.log.Warn().Str("raw", raw).Msg("Model reply without feedback tag")
		return "", err
	}
	return text, nil
}

// historyContents replays the turns; assistant replies are re-wrapped in the
// tag the model was asked to use.
func historyContents(history []model.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		switch t.Role {
		case model.TurnAssistant:
			contents = append(contents, genai.NewContentFromText("<feedback>"+t.Content+"</feedback>", genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleUser))
		}
	}
	return contents
}
