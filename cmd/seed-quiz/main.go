package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stemsi/quizcoach/internal/config"
	"github.com/stemsi/quizcoach/internal/database"
	"github.com/stemsi/quizcoach/internal/logger"
	"github.com/stemsi/quizcoach/internal/model"
	"github.com/stemsi/quizcoach/internal/repository"
	"github.com/stemsi/quizcoach/internal/service"
)

func main() {
	var dataDir string
	flag.StringVar(&dataDir, "data", "data", "Directory holding quiz.json, answers.json and details.json")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	questions, details, err := loadQuiz(dataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", dataDir).Msg("Failed to load quiz files")
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	quizService := service.NewQuizService(
		repository.NewQuizRepository(pool),
		repository.NewCache(rdb),
		cfg.QuizCacheTTL,
		log,
	)

	fmt.Printf("=== Seeding %d questions (%s) ===\n", len(questions), details.Theme)
	if err := quizService.Replace(ctx, questions, details); err != nil {
		log.Fatal().Err(err).Msg("Failed to replace quiz")
	}
	fmt.Println("Seed completed!")
}

type quizFile struct {
	Quiz []model.QuizQuestion `json:"quiz"`
}

type answersFile struct {
	Answers []model.QuestionAnswers `json:"answers"`
}

type detailsFile struct {
	Details *model.QuizDetails `json:"details"`
}

// loadQuiz reads the three data files and joins questions with their
// answer keys.
func loadQuiz(dir string) ([]model.StoredQuestion, model.QuizDetails, error) {
	var (
		qf quizFile
		af answersFile
		df detailsFile
	)
	for name, dst := range map[string]interface{}{
		"quiz.json":    &qf,
		"answers.json": &af,
		"details.json": &df,
	} {
		if err := readJSON(filepath.Join(dir, name), dst); err != nil {
			return nil, model.QuizDetails{}, err
		}
	}

	if len(qf.Quiz) == 0 {
		return nil, model.QuizDetails{}, fmt.Errorf("quiz.json: no questions")
	}
	if df.Details == nil {
		return nil, model.QuizDetails{}, fmt.Errorf("details.json: missing details object")
	}
	if df.Details.UserLevel <= 0 {
		return nil, model.QuizDetails{}, fmt.Errorf("details.json: user_level must be positive")
	}

	keys := make(map[string][]string, len(af.Answers))
	for _, a := range af.Answers {
		keys[a.Question] = a.Answers
	}

	questions := make([]model.StoredQuestion, 0, len(qf.Quiz))
	for i, q := range qf.Quiz {
		answers, ok := keys[q.Question]
		if !ok || len(answers) == 0 {
			return nil, model.QuizDetails{}, fmt.Errorf("answers.json: no answer key for %q", q.Question)
		}
		if len(q.Options) == 0 {
			return nil, model.QuizDetails{}, fmt.Errorf("quiz.json: %q has no options", q.Question)
		}
		questions = append(questions, model.StoredQuestion{
			Position: i + 1,
			Question: q.Question,
			Options:  q.Options,
			Answers:  answers,
		})
	}
	return questions, *df.Details, nil
}

func readJSON(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}
