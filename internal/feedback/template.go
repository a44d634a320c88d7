package feedback

import (
	"context"
	"fmt"
	"strings"

	"github.com/stemsi/quizcoach/internal/model"
)

// TemplateGenerator writes fixed-form feedback without calling a model.
type TemplateGenerator struct{}

var _ Generator = TemplateGenerator{}

// NewTemplateGenerator creates a TemplateGenerator.
func NewTemplateGenerator() TemplateGenerator {
	return TemplateGenerator{}
}

// Feedback reveals the correct answers only once the question cannot be
// retried, i.e. on a correct answer or a second miss.
func (TemplateGenerator) Feedback(_ context.Context, _ model.QuizDetails, history []model.Turn, ex model.Exchange) (string, error) {
	retry := priorAttempts(history, ex.Question) > 0

	switch {
	case ex.Correctness == model.CorrectnessCorrect && !retry:
		return fmt.Sprintf("Correct! %s is the right answer.", joinAnswers(ex.CorrectAnswers)), nil
	case ex.Correctness == model.CorrectnessCorrect:
		return fmt.Sprintf("Correct on the second try. %s is the right answer.", joinAnswers(ex.CorrectAnswers)), nil
	case !retry:
		return fmt.Sprintf("Not quite. You chose %s. Read the question again and give it another try.", joinAnswers(ex.Answers)), nil
	default:
		return fmt.Sprintf("Not quite. You chose %s, but the correct answer is %s.",
			joinAnswers(ex.Answers), joinAnswers(ex.CorrectAnswers)), nil
	}
}

// Summary tallies the outcome of every question in the history.
func (TemplateGenerator) Summary(_ context.Context, details model.QuizDetails, history []model.Turn) (string, error) {
	outcomes := tally(history)
	if len(outcomes) == 0 {
		return "", ErrEmptyHistory
	}

	var first, second int
	var missed []string
	for _, o := range outcomes {
		switch {
		case o.correct && o.attempts == 1:
			first++
		case o.correct:
			second++
		default:
			missed = append(missed, o.question)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You answered %d questions", len(outcomes))
	if details.Theme != "" {
		fmt.Fprintf(&b, " about %s", details.Theme)
	}
	fmt.Fprintf(&b, ": %d right on the first try, %d after a retry and %d missed.", first, second, len(missed))
	if len(missed) > 0 {
		fmt.Fprintf(&b, " Review: %s.", strings.Join(missed, "; "))
	} else {
		b.WriteString(" Great work.")
	}
	if details.Goal != "" {
		fmt.Fprintf(&b, " Keep working toward your goal: %s", details.Goal)
	}
	return b.String(), nil
}

type outcome struct {
	question string
	attempts int
	correct  bool
}

// tally folds the user turns into one outcome per question, in the order
// questions were first answered.
func tally(history []model.Turn) []outcome {
	var out []outcome
	index := make(map[string]int)
	for _, t := range history {
		if t.Role != model.TurnUser || t.Exchange == nil {
			continue
		}
		i, ok := index[t.Exchange.Question]
		if !ok {
			i = len(out)
			index[t.Exchange.Question] = i
			out = append(out, outcome{question: t.Exchange.Question})
		}
		out[i].attempts++
		out[i].correct = t.Exchange.Correctness == model.CorrectnessCorrect
	}
	return out
}

func priorAttempts(history []model.Turn, question string) int {
	n := 0
	for _, t := range history {
		if t.Role == model.TurnUser && t.Exchange != nil && t.Exchange.Question == question {
			n++
		}
	}
	return n
}
