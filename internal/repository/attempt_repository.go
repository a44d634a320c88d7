package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/quizcoach/internal/model"
)

// AttemptRepository persists graded answer attempts.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

var attemptColumns = []string{"session_id", "question_text", "answers", "is_correct", "feedback", "graded_at"}

// InsertBatch bulk-inserts attempts with COPY. Any bad row fails the batch.
func (r *AttemptRepository) InsertBatch(ctx context.Context, batch []model.AttemptRecord) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, a := range batch {
		rows = append(rows, []interface{}{a.SessionID, a.Question, a.Answers, a.IsCorrect, a.Feedback, a.GradedAt})
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"answer_attempts"},
		attemptColumns,
		pgx.CopyFromRows(rows),
	)
	return err
}

// Insert inserts a single attempt.
func (r *AttemptRepository) Insert(ctx context.Context, a model.AttemptRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO answer_attempts (session_id, question_text, answers, is_correct, feedback, graded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.SessionID, a.Question, a.Answers, a.IsCorrect, a.Feedback, a.GradedAt,
	)
	return err
}

// CountBySession returns how many attempts were persisted for a session.
func (r *AttemptRepository) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM answer_attempts WHERE session_id = $1`, sessionID,
	).Scan(&n)
	return n, err
}
