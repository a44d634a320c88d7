package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/stemsi/quizcoach/internal/client"
	"github.com/stemsi/quizcoach/internal/config"
	"github.com/stemsi/quizcoach/internal/logger"
	"github.com/stemsi/quizcoach/internal/quiz"
)

func main() {
	var (
		transport string
		baseURL   string
		logLevel  string
	)
	cfg := config.Load()
	flag.StringVar(&transport, "transport", "http", "Grading transport: http or ws")
	flag.StringVar(&baseURL, "url", cfg.QuizAPIURL, "Quiz backend base URL")
	flag.StringVar(&logLevel, "log", "warn", "Log level (written to stderr)")
	flag.Parse()

	log := logger.SetupTo(os.Stderr, logLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeFn, err := newBackend(ctx, transport, baseURL, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("transport", transport).Msg("Failed to connect to the quiz backend")
	}
	defer closeFn()

	r := renderer{out: os.Stdout, width: terminalWidth()}
	ctrl := quiz.NewController(backend, log)
	if err := run(ctx, ctrl, r, bufio.NewScanner(os.Stdin)); err != nil {
		log.Error().Err(err).Msg("Quiz aborted")
	}
	ctrl.Wait()
}

func newBackend(ctx context.Context, transport, baseURL string, cfg *config.Config, log zerolog.Logger) (quiz.Backend, func(), error) {
	httpClient := client.New(baseURL, &http.Client{Timeout: cfg.QuizHTTPTimeout}, log)

	switch transport {
	case "http":
		return httpClient, func() {}, nil
	case "ws":
		stream, err := client.DialStream(ctx, streamURL(baseURL), "", log)
		if err != nil {
			return nil, nil, err
		}
		return client.NewStreamBackend(httpClient, stream), func() { _ = stream.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", transport)
	}
}

// streamURL maps the HTTP base URL onto the WebSocket endpoint.
func streamURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws/api/stream"
}

func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	if w > 100 {
		return 100
	}
	return w
}

// run drives the controller from line input until the user quits, input
// ends or ctx is cancelled.
func run(ctx context.Context, ctrl *quiz.Controller, r renderer, in *bufio.Scanner) error {
	ctrl.Start(ctx)

	for {
		ctrl.Wait()
		if err := ctx.Err(); err != nil {
			return err
		}

		s := ctrl.Snapshot()
		switch s.Phase {
		case quiz.PhaseAnswering:
			r.question(s)
		case quiz.PhaseFeedback:
			r.feedback(s)
		case quiz.PhaseCompleted:
			r.result(s)
		case quiz.PhaseDataError:
			r.loadError(s)
		default:
			continue
		}

		if !in.Scan() {
			fmt.Fprintln(r.out)
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())

		switch line {
		case "q":
			return nil
		case "r":
			if s.Phase != quiz.PhaseFeedback {
				ctrl.Restart(ctx)
				continue
			}
		}

		switch s.Phase {
		case quiz.PhaseAnswering:
			answer(ctx, ctrl, r, s, line)
		case quiz.PhaseFeedback:
			if err := ctrl.Advance(ctx); err != nil {
				fmt.Fprintln(r.out, err)
			}
		}
	}
}

func answer(ctx context.Context, ctrl *quiz.Controller, r renderer, s quiz.Session, line string) {
	if line == "" {
		if !s.CanSubmit() {
			fmt.Fprintln(r.out, "Select at least one option first.")
			return
		}
		if err := ctrl.Submit(ctx); err != nil {
			fmt.Fprintln(r.out, err)
		}
		return
	}

	q, _ := s.Current()
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(q.Options) {
		fmt.Fprintf(r.out, "Enter a number between 1 and %d.\n", len(q.Options))
		return
	}
	if err := ctrl.Toggle(q.Options[n-1]); err != nil {
		fmt.Fprintln(r.out, err)
	}
}
