package quiz_test

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/stemsi/quizcoach/internal/quiz"
)

func twoQuestions() []quiz.Question {
	return []quiz.Question{
		{Text: "Which are primary colours?", Options: []string{"Red", "Green", "Blue", "Yellow"}},
		{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}},
	}
}

func mustApply(t *testing.T, s quiz.Session, ev quiz.Event) quiz.Session {
	t.Helper()
	next, err := quiz.Apply(s, ev)
	if err != nil {
		t.Fatalf("Apply(%T) failed: %v", ev, err)
	}
	return next
}

func loaded(t *testing.T, questions []quiz.Question) quiz.Session {
	t.Helper()
	return mustApply(t, quiz.NewSession(), quiz.QuizLoaded{Questions: questions})
}

// answer toggles the options, submits and delivers the verdict.
func answer(t *testing.T, s quiz.Session, correct bool, options ...string) quiz.Session {
	t.Helper()
	for _, o := range options {
		s = mustApply(t, s, quiz.OptionToggled{Option: o})
	}
	s = mustApply(t, s, quiz.AnswerSubmitted{})
	return mustApply(t, s, quiz.GradingReceived{
		Generation: s.Generation,
		Result:     quiz.GradingResult{Correct: correct, Feedback: "ok"},
	})
}

func TestLoad(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		s := loaded(t, twoQuestions())
		if s.Phase != quiz.PhaseAnswering {
			t.Fatalf("phase = %s, want answering", s.Phase)
		}
		if s.Index != 0 || s.Attempt != 1 {
			t.Errorf("index=%d attempt=%d, want 0 and 1", s.Index, s.Attempt)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		s := loaded(t, nil)
		if s.Phase != quiz.PhaseDataError {
			t.Fatalf("phase = %s, want data_error", s.Phase)
		}
		if !errors.Is(s.LoadErr, quiz.ErrMalformedQuiz) {
			t.Errorf("LoadErr = %v, want ErrMalformedQuiz", s.LoadErr)
		}
	})

	t.Run("QuestionWithoutOptions", func(t *testing.T) {
		s := loaded(t, []quiz.Question{{Text: "?"}})
		if s.Phase != quiz.PhaseDataError {
			t.Fatalf("phase = %s, want data_error", s.Phase)
		}
	})

	t.Run("DuplicateOptions", func(t *testing.T) {
		s := loaded(t, []quiz.Question{{Text: "?", Options: []string{"Red", "Blue", "Red"}}})
		if s.Phase != quiz.PhaseDataError {
			t.Fatalf("phase = %s, want data_error", s.Phase)
		}
		if !errors.Is(s.LoadErr, quiz.ErrMalformedQuiz) {
			t.Errorf("LoadErr = %v, want ErrMalformedQuiz", s.LoadErr)
		}
	})

	t.Run("Failure", func(t *testing.T) {
		s := mustApply(t, quiz.NewSession(), quiz.QuizLoadFailed{Err: errors.New("x")})
		if s.Phase != quiz.PhaseDataError {
			t.Fatalf("phase = %s, want data_error", s.Phase)
		}
		if _, err := quiz.Apply(s, quiz.OptionToggled{Option: "Red"}); !errors.Is(err, quiz.ErrInvalidTransition) {
			t.Errorf("toggle in data_error: err = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("StaleGeneration", func(t *testing.T) {
		s := quiz.NewSession().Reset()
		_, err := quiz.Apply(s, quiz.QuizLoaded{Generation: 0, Questions: twoQuestions()})
		if !errors.Is(err, quiz.ErrStaleResponse) {
			t.Fatalf("err = %v, want ErrStaleResponse", err)
		}
	})
}

func TestToggle(t *testing.T) {
	t.Run("AddRemove", func(t *testing.T) {
		s := loaded(t, twoQuestions())
		s = mustApply(t, s, quiz.OptionToggled{Option: "Red"})
		s = mustApply(t, s, quiz.OptionToggled{Option: "Blue"})
		s = mustApply(t, s, quiz.OptionToggled{Option: "Red"})

		if !slices.Equal(s.Selected, []string{"Blue"}) {
			t.Errorf("selected = %v, want [Blue]", s.Selected)
		}
	})

	t.Run("UnknownOption", func(t *testing.T) {
		s := loaded(t, twoQuestions())
		next, err := quiz.Apply(s, quiz.OptionToggled{Option: "Purple"})
		if !errors.Is(err, quiz.ErrUnknownOption) {
			t.Fatalf("err = %v, want ErrUnknownOption", err)
		}
		if len(next.Selected) != 0 {
			t.Errorf("selected = %v, want empty", next.Selected)
		}
	})

	t.Run("DoesNotMutateInput", func(t *testing.T) {
		s := loaded(t, twoQuestions())
		s = mustApply(t, s, quiz.OptionToggled{Option: "Red"})
		before := slices.Clone(s.Selected)

		_ = mustApply(t, s, quiz.OptionToggled{Option: "Green"})
		_ = mustApply(t, s, quiz.OptionToggled{Option: "Red"})

		if !slices.Equal(s.Selected, before) {
			t.Errorf("original selection changed: %v, want %v", s.Selected, before)
		}
	})

	t.Run("RandomSequencesMatchOddCounts", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		options := twoQuestions()[0].Options

		for run := 0; run < 200; run++ {
			s := loaded(t, twoQuestions())
			counts := map[string]int{}

			for step := rng.Intn(30); step > 0; step-- {
				o := options[rng.Intn(len(options))]
				counts[o]++
				s = mustApply(t, s, quiz.OptionToggled{Option: o})
			}

			seen := map[string]bool{}
			for _, o := range s.Selected {
				if seen[o] {
					t.Fatalf("run %d: duplicate %q in %v", run, o, s.Selected)
				}
				seen[o] = true
			}
			for _, o := range options {
				if want := counts[o]%2 == 1; seen[o] != want {
					t.Fatalf("run %d: %q selected=%v, toggled %d times", run, o, seen[o], counts[o])
				}
			}
		}
	})
}

func TestSubmit(t *testing.T) {
	t.Run("RequiresSelection", func(t *testing.T) {
		s := loaded(t, twoQuestions())
		if _, err := quiz.Apply(s, quiz.AnswerSubmitted{}); !errors.Is(err, quiz.ErrEmptySelection) {
			t.Fatalf("err = %v, want ErrEmptySelection", err)
		}
	})

	t.Run("LocksInputs", func(t *testing.T) {
		s := loaded(t, twoQuestions())
		s = mustApply(t, s, quiz.OptionToggled{Option: "Red"})
		s = mustApply(t, s, quiz.AnswerSubmitted{})

		if s.Phase != quiz.PhaseSubmitting {
			t.Fatalf("phase = %s, want submitting", s.Phase)
		}
		if _, err := quiz.Apply(s, quiz.OptionToggled{Option: "Blue"}); !errors.Is(err, quiz.ErrInvalidTransition) {
			t.Errorf("toggle while submitting: err = %v", err)
		}
		if _, err := quiz.Apply(s, quiz.AnswerSubmitted{}); !errors.Is(err, quiz.ErrInvalidTransition) {
			t.Errorf("second submit: err = %v", err)
		}
	})

	t.Run("StartFlagOnlyOnFirstSubmission", func(t *testing.T) {
		s := loaded(t, twoQuestions())
		s = mustApply(t, s, quiz.OptionToggled{Option: "Red"})
		s = mustApply(t, s, quiz.AnswerSubmitted{})
		if !s.Pending.Start {
			t.Fatal("first submission should carry start=true")
		}
		if s.Pending.Question != "Which are primary colours?" {
			t.Errorf("question = %q", s.Pending.Question)
		}

		s = mustApply(t, s, quiz.GradingReceived{Generation: s.Generation, Result: quiz.GradingResult{Correct: false}})
		s = mustApply(t, s, quiz.Advanced{})
		s = mustApply(t, s, quiz.OptionToggled{Option: "Blue"})
		s = mustApply(t, s, quiz.AnswerSubmitted{})
		if s.Pending.Start {
			t.Error("retry submission should carry start=false")
		}
	})

	t.Run("StaleGradingIgnored", func(t *testing.T) {
		s := loaded(t, twoQuestions())
		s = mustApply(t, s, quiz.OptionToggled{Option: "Red"})
		s = mustApply(t, s, quiz.AnswerSubmitted{})

		_, err := quiz.Apply(s, quiz.GradingReceived{Generation: s.Generation - 1})
		if !errors.Is(err, quiz.ErrStaleResponse) {
			t.Fatalf("err = %v, want ErrStaleResponse", err)
		}
	})
}

func TestAdvance(t *testing.T) {
	t.Run("CorrectMovesOn", func(t *testing.T) {
		s := answer(t, loaded(t, twoQuestions()), true, "Red")
		s = mustApply(t, s, quiz.Advanced{})

		if s.Phase != quiz.PhaseAnswering || s.Index != 1 || s.Attempt != 1 {
			t.Fatalf("phase=%s index=%d attempt=%d", s.Phase, s.Index, s.Attempt)
		}
		if len(s.Selected) != 0 || s.Feedback != nil {
			t.Errorf("selection/feedback not cleared: %v %v", s.Selected, s.Feedback)
		}
		if s.Score != 10 {
			t.Errorf("score = %v, want 10", s.Score)
		}
	})

	t.Run("IncorrectRetries", func(t *testing.T) {
		s := answer(t, loaded(t, twoQuestions()), false, "Red")
		s = mustApply(t, s, quiz.Advanced{})

		if s.Phase != quiz.PhaseAnswering || s.Index != 0 || s.Attempt != 2 {
			t.Fatalf("phase=%s index=%d attempt=%d", s.Phase, s.Index, s.Attempt)
		}
		if len(s.Selected) != 0 {
			t.Errorf("selected = %v, want empty", s.Selected)
		}
		if s.Score != 0 {
			t.Errorf("score = %v, want 0", s.Score)
		}
	})

	t.Run("ExhaustedAttemptsCompleteLastQuestion", func(t *testing.T) {
		s := loaded(t, twoQuestions()[:1])
		s = answer(t, s, false, "Red")
		s = mustApply(t, s, quiz.Advanced{})
		s = answer(t, s, false, "Green")
		s = mustApply(t, s, quiz.Advanced{})

		if s.Phase != quiz.PhaseCompleted {
			t.Fatalf("phase = %s, want completed", s.Phase)
		}
		if s.Result.ScorePercent != 0 {
			t.Errorf("percent = %d, want 0", s.Result.ScorePercent)
		}
		if s.Attempt != quiz.MaxAttempts {
			t.Errorf("attempt = %d, want %d", s.Attempt, quiz.MaxAttempts)
		}
	})

	t.Run("CompletedIsTerminal", func(t *testing.T) {
		s := loaded(t, twoQuestions()[:1])
		s = answer(t, s, true, "Red")
		s = mustApply(t, s, quiz.Advanced{})

		for _, ev := range []quiz.Event{
			quiz.OptionToggled{Option: "Red"},
			quiz.AnswerSubmitted{},
			quiz.Advanced{},
			quiz.QuizLoaded{Generation: s.Generation, Questions: twoQuestions()},
		} {
			next, err := quiz.Apply(s, ev)
			if err == nil {
				t.Errorf("%T accepted in completed phase", ev)
			}
			if next.Index != s.Index || next.Attempt != s.Attempt || len(next.Selected) != 0 {
				t.Errorf("%T mutated a completed session", ev)
			}
		}
	})

	t.Run("RequiresFeedback", func(t *testing.T) {
		s := loaded(t, twoQuestions())
		if _, err := quiz.Apply(s, quiz.Advanced{}); !errors.Is(err, quiz.ErrInvalidTransition) {
			t.Fatalf("err = %v, want ErrInvalidTransition", err)
		}
	})
}

func TestScenarioSeventyFivePercent(t *testing.T) {
	s := loaded(t, twoQuestions())

	s = answer(t, s, true, "Red", "Blue", "Yellow")
	s = mustApply(t, s, quiz.Advanced{})

	s = answer(t, s, false, "3")
	s = mustApply(t, s, quiz.Advanced{})
	s = answer(t, s, true, "4")
	s = mustApply(t, s, quiz.Advanced{})

	if s.Phase != quiz.PhaseCompleted {
		t.Fatalf("phase = %s, want completed", s.Phase)
	}
	if s.Score != 15 {
		t.Errorf("score = %v, want 15", s.Score)
	}
	if s.Result.ScorePercent != 75 {
		t.Errorf("percent = %d, want 75", s.Result.ScorePercent)
	}
}

func TestScoreInvariantsRandomWalk(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	questions := []quiz.Question{
		{Text: "a", Options: []string{"1", "2"}},
		{Text: "b", Options: []string{"1", "2"}},
		{Text: "c", Options: []string{"1", "2"}},
		{Text: "d", Options: []string{"1", "2"}},
	}

	for run := 0; run < 300; run++ {
		s := loaded(t, questions)
		var want float64
		lastScore := 0.0

		for s.Phase != quiz.PhaseCompleted {
			correct := rng.Intn(2) == 0
			attempt := s.Attempt
			s = answer(t, s, correct, "1")
			s = mustApply(t, s, quiz.Advanced{})

			if correct {
				want += float64(quiz.Points) / float64(attempt)
			}
			if s.Attempt > quiz.MaxAttempts {
				t.Fatalf("run %d: attempt %d exceeds max", run, s.Attempt)
			}
			if s.Score < lastScore {
				t.Fatalf("run %d: score decreased from %v to %v", run, lastScore, s.Score)
			}
			lastScore = s.Score
		}

		if s.Score != want {
			t.Fatalf("run %d: score = %v, want %v", run, s.Score, want)
		}
		if p := s.Result.ScorePercent; p < 0 || p > 100 {
			t.Fatalf("run %d: percent %d out of range", run, p)
		}
	}
}

func TestSummary(t *testing.T) {
	complete := func(t *testing.T) quiz.Session {
		s := loaded(t, twoQuestions()[:1])
		s = answer(t, s, true, "Red")
		return mustApply(t, s, quiz.Advanced{})
	}

	t.Run("Success", func(t *testing.T) {
		s := complete(t)
		s = mustApply(t, s, quiz.SummaryReceived{Generation: s.Generation, Text: "Well done"})
		if !s.Result.Ready || s.Result.Failed || s.Result.Summary != "Well done" {
			t.Errorf("result = %+v", *s.Result)
		}
		if s.Result.ScorePercent != 100 {
			t.Errorf("percent = %d, want 100", s.Result.ScorePercent)
		}
	})

	t.Run("FailureKeepsScore", func(t *testing.T) {
		s := complete(t)
		s = mustApply(t, s, quiz.SummaryReceived{Generation: s.Generation, Text: "ignored", Failed: true})
		if !s.Result.Ready || !s.Result.Failed || s.Result.Summary != "" {
			t.Errorf("result = %+v", *s.Result)
		}
		if s.Result.ScorePercent != 100 {
			t.Errorf("percent = %d, want 100", s.Result.ScorePercent)
		}
	})

	t.Run("OnlyOnce", func(t *testing.T) {
		s := complete(t)
		s = mustApply(t, s, quiz.SummaryReceived{Generation: s.Generation, Text: "first"})
		if _, err := quiz.Apply(s, quiz.SummaryReceived{Generation: s.Generation, Text: "second"}); err == nil {
			t.Fatal("second summary accepted")
		}
	})
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name      string
		score     float64
		questions int
		want      int
	}{
		{"NoQuestions", 0, 0, 0},
		{"Zero", 0, 3, 0},
		{"Full", 30, 3, 100},
		{"Half", 5, 1, 50},
		{"Rounds", 25, 3, 83},
		{"Clamped", 50, 1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quiz.Percent(tt.score, tt.questions); got != tt.want {
				t.Errorf("Percent(%v, %d) = %d, want %d", tt.score, tt.questions, got, tt.want)
			}
		})
	}
}
