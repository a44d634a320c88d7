package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/stemsi/quizcoach/internal/quiz"
)

const defaultWidth = 72

// renderer prints sessions as plain text.
type renderer struct {
	out   io.Writer
	width int
}

func (r renderer) rule() {
	fmt.Fprintln(r.out, strings.Repeat("─", r.width))
}

func (r renderer) question(s quiz.Session) {
	q, ok := s.Current()
	if !ok {
		return
	}
	r.rule()
	fmt.Fprintf(r.out, "Question %d/%d", s.Index+1, len(s.Questions))
	if s.Attempt > 0 {
		fmt.Fprintf(r.out, "  (attempt %d/%d)", s.Attempt+1, quiz.MaxAttempts)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, wrap(q.Text, r.width))
	fmt.Fprintln(r.out)
	for i, opt := range q.Options {
		mark := " "
		if s.IsSelected(opt) {
			mark = "x"
		}
		fmt.Fprintf(r.out, "  [%s] %d. %s\n", mark, i+1, opt)
	}
	fmt.Fprintln(r.out)
	fmt.Fprint(r.out, "Option number to toggle, Enter to submit, r to restart, q to quit: ")
}

func (r renderer) feedback(s quiz.Session) {
	if s.Feedback == nil {
		return
	}
	r.rule()
	switch {
	case s.Feedback.Failed:
		fmt.Fprintln(r.out, "! "+quiz.GradingErrorMessage)
	case s.Feedback.Correct:
		fmt.Fprintln(r.out, "✓ Correct")
	default:
		fmt.Fprintln(r.out, "✗ Incorrect")
	}
	fmt.Fprintln(r.out, wrap(s.Feedback.Feedback, r.width))
	fmt.Fprintln(r.out)
	fmt.Fprint(r.out, "Press Enter to continue: ")
}

func (r renderer) result(s quiz.Session) {
	if s.Result == nil {
		return
	}
	r.rule()
	fmt.Fprintf(r.out, "Quiz completed: %d%%\n", s.Result.ScorePercent)
	switch {
	case !s.Result.Ready:
		fmt.Fprintln(r.out, "Preparing your summary...")
	case s.Result.Failed:
		fmt.Fprintln(r.out, "The summary is unavailable right now.")
	default:
		fmt.Fprintln(r.out, wrap(s.Result.Summary, r.width))
	}
	fmt.Fprintln(r.out)
	fmt.Fprint(r.out, "r to restart, q to quit: ")
}

func (r renderer) loadError(s quiz.Session) {
	r.rule()
	fmt.Fprintln(r.out, "Could not load the quiz.")
	if s.LoadErr != nil {
		fmt.Fprintln(r.out, wrap(s.LoadErr.Error(), r.width))
	}
	fmt.Fprint(r.out, "r to retry, q to quit: ")
}

// wrap breaks text on spaces so no line exceeds width. Existing newlines
// are kept.
func wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	var b strings.Builder
	for i, para := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		n := 0
		for j, word := range strings.Fields(para) {
			l := len([]rune(word))
			if j > 0 && n+1+l > width {
				b.WriteByte('\n')
				n = 0
			} else if j > 0 {
				b.WriteByte(' ')
				n++
			}
			b.WriteString(word)
			n += l
		}
	}
	return b.String()
}
