// Package feedback writes the tutor feedback for graded answers and the
// narrative summary of a finished quiz session.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/stemsi/quizcoach/internal/model"
)

// Generator errors.
var (
	ErrNoFeedbackTag = errors.New("output does not contain a <feedback> tag")
	ErrEmptyHistory  = errors.New("session history is empty")
)

// Generator produces feedback text. history holds the earlier turns of the
// session, oldest first, and never includes the exchange being graded.
type Generator interface {
	Feedback(ctx context.Context, details model.QuizDetails, history []model.Turn, ex model.Exchange) (string, error)
	Summary(ctx context.Context, details model.QuizDetails, history []model.Turn) (string, error)
}

var feedbackTag = regexp.MustCompile(`<feedback>([\s\S]*?)</feedback>`)

// ParseFeedback extracts the trimmed body of the first <feedback> tag.
func ParseFeedback(text string) (string, error) {
	m := feedbackTag.FindStringSubmatch(text)
	if m == nil {
		return "", ErrNoFeedbackTag
	}
	return strings.TrimSpace(m[1]), nil
}

// Message renders the user turn recorded for an exchange.
func Message(ex model.Exchange) string {
	return fmt.Sprintf("Question: %s\nThe student's answer is %s.\nCorrect answers: %s\nStudent's answers: %s",
		ex.Question, ex.Correctness, joinAnswers(ex.CorrectAnswers), joinAnswers(ex.Answers))
}

func systemPrompt(details model.QuizDetails) string {
	return fmt.Sprintf(`You are a patient tutor reviewing a student's quiz answers.
Theme: %s
Description: %s
Goal: %s
Student level: %d (1 = beginner, 5 = expert)

For every answer, explain briefly why it is right or wrong and what to
remember, at the student's level. Address the student directly. Always put
your whole reply inside <feedback></feedback> tags.`,
		details.Theme, details.Description, details.Goal, details.UserLevel)
}

const summaryInstruction = `The quiz is over. Looking at every answer above,
write the final feedback for the student: what they mastered, what they
should review, and one concrete next step. Put it inside <feedback></feedback> tags.`

func joinAnswers(answers []string) string {
	return strings.Join(answers, "; ")
}
