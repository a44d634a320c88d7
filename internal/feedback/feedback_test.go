package feedback

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stemsi/quizcoach/internal/model"
	"google.golang.org/genai"
)

func TestParseFeedback(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "Plain", in: "<feedback>Good job</feedback>", want: "Good job"},
		{name: "Surrounded", in: "Sure!\n<feedback>\n  Line one\nLine two \n</feedback>\nBye", want: "Line one\nLine two"},
		{name: "FirstTagWins", in: "<feedback>a</feedback><feedback>b</feedback>", want: "a"},
		{name: "Missing", in: "no tag here", wantErr: ErrNoFeedbackTag},
		{name: "Unclosed", in: "<feedback>oops", wantErr: ErrNoFeedbackTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFeedback(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func userTurn(question string, correct bool) model.Turn {
	ex := model.Exchange{
		Question:       question,
		Correctness:    model.CorrectnessOf(correct),
		CorrectAnswers: []string{"A"},
		Answers:        []string{"B"},
	}
	return model.Turn{Role: model.TurnUser, Content: Message(ex), Exchange: &ex}
}

func TestTemplateFeedback(t *testing.T) {
	g := NewTemplateGenerator()
	ctx := context.Background()
	wrong := model.Exchange{Question: "Q1", Correctness: model.CorrectnessIncorrect, CorrectAnswers: []string{"A", "C"}, Answers: []string{"B"}}

	first, err := g.Feedback(ctx, model.QuizDetails{}, nil, wrong)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(first, "A; C") {
		t.Errorf("first miss reveals the answer: %q", first)
	}

	history := []model.Turn{userTurn("Q1", false), {Role: model.TurnAssistant, Content: first}}
	second, err := g.Feedback(ctx, model.QuizDetails{}, history, wrong)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(second, "A; C") {
		t.Errorf("second miss hides the answer: %q", second)
	}
}

func TestTemplateSummary(t *testing.T) {
	g := NewTemplateGenerator()
	details := model.QuizDetails{Theme: "colors", Goal: "learn primaries"}
	history := []model.Turn{
		userTurn("Q1", true),
		{Role: model.TurnAssistant, Content: "ok"},
		userTurn("Q2", false),
		{Role: model.TurnAssistant, Content: "no"},
		userTurn("Q2", true),
		{Role: model.TurnAssistant, Content: "ok"},
		userTurn("Q3", false),
		userTurn("Q3", false),
	}

	got, err := g.Summary(context.Background(), details, history)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"3 questions about colors", "1 right on the first try", "1 after a retry", "1 missed", "Review: Q3.", "learn primaries"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary %q missing %q", got, want)
		}
	}

	if _, err := g.Summary(context.Background(), details, nil); !errors.Is(err, ErrEmptyHistory) {
		t.Errorf("empty history err = %v", err)
	}
}

func TestMessage(t *testing.T) {
	got := Message(model.Exchange{
		Question:       "Pick colors",
		Correctness:    model.CorrectnessIncorrect,
		CorrectAnswers: []string{"Red", "Blue"},
		Answers:        []string{"Red"},
	})
	want := "Question: Pick colors\nThe student's answer is incorrect.\nCorrect answers: Red; Blue\nStudent's answers: Red"
	if got != want {
		t.Errorf("Message =\n%s\nwant\n%s", got, want)
	}
}

func TestHistoryContents(t *testing.T) {
	got := historyContents([]model.Turn{
		{Role: model.TurnUser, Content: "question"},
		{Role: model.TurnAssistant, Content: "answer"},
	})
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Role != string(genai.RoleUser) || got[1].Role != string(genai.RoleModel) {
		t.Errorf("roles = %s/%s", got[0].Role, got[1].Role)
	}
	if got[1].Parts[0].Text != "<feedback>answer</feedback>" {
		t.Errorf("assistant part = %q", got[1].Parts[0].Text)
	}
}
