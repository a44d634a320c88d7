package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/quizcoach/internal/model"
)

// QuizRepository handles quiz question and details data access.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// ListQuestions retrieves every question with its answer key, ordered by position.
func (r *QuizRepository) ListQuestions(ctx context.Context) ([]model.StoredQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, position, question_text, options, answers, created_at
		 FROM questions
		 ORDER BY position`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.StoredQuestion
	for rows.Next() {
		var q model.StoredQuestion
		if err := rows.Scan(&q.ID, &q.Position, &q.Question, &q.Options, &q.Answers, &q.Created); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetDetails retrieves the quiz details. A quiz seeded without details
// yields the zero value.
func (r *QuizRepository) GetDetails(ctx context.Context) (model.QuizDetails, error) {
	var d model.QuizDetails
	err := r.pool.QueryRow(ctx,
		`SELECT theme, description, goal, user_level FROM quiz_details WHERE id = 1`,
	).Scan(&d.Theme, &d.Description, &d.Goal, &d.UserLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.QuizDetails{}, nil
	}
	return d, err
}

// Replace swaps the whole quiz in a single transaction.
func (r *QuizRepository) Replace(ctx context.Context, questions []model.StoredQuestion, details model.QuizDetails) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions`); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}

	rows := make([][]interface{}, 0, len(questions))
	for i, q := range questions {
		rows = append(rows, []interface{}{i + 1, q.Question, q.Options, q.Answers})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"position", "question_text", "options", "answers"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO quiz_details (id, theme, description, goal, user_level)
		 VALUES (1, $1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET theme = EXCLUDED.theme, description = EXCLUDED.description,
		     goal = EXCLUDED.goal, user_level = EXCLUDED.user_level, updated_at = NOW()`,
		details.Theme, details.Description, details.Goal, details.UserLevel,
	); err != nil {
		return fmt.Errorf("upsert details: %w", err)
	}

	return tx.Commit(ctx)
}
