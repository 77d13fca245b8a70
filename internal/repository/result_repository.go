package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scoreveda/scoreveda-backend/internal/model"
)

// ResultRepository handles result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Create inserts a result for a completed attempt. The (user_id, exam_id)
// uniqueness constraint makes this safe under races: the losing insert hits
// ON CONFLICT DO NOTHING, RETURNING yields no row, and pgx reports
// pgx.ErrNoRows, which callers resolve by re-reading the winner's row.
func (r *ResultRepository) Create(ctx context.Context, res *model.Result) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO results (user_id, exam_id, score, total_marks, user_answers,
		                      marks_per_question, is_passed, status, remarks, question_remarks)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id, exam_id) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		res.UserID, res.ExamID, res.Score, res.TotalMarks, res.UserAnswers,
		res.MarksPerQuestion, res.IsPassed, res.Status, res.Remarks, res.QuestionRemarks,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
}

const resultColumns = `r.id, r.user_id, r.exam_id, e.title, r.score, r.total_marks,
	 r.user_answers, r.marks_per_question, r.is_passed, r.status,
	 r.remarks, r.question_remarks, r.created_at, r.updated_at`

func scanResult(row interface{ Scan(dest ...any) error }) (*model.Result, error) {
	res := &model.Result{}
	err := row.Scan(&res.ID, &res.UserID, &res.ExamID, &res.ExamTitle, &res.Score,
		&res.TotalMarks, &res.UserAnswers, &res.MarksPerQuestion, &res.IsPassed,
		&res.Status, &res.Remarks, &res.QuestionRemarks, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetByID retrieves a result by its UUID.
func (r *ResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Result, error) {
	return scanResult(r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+`
		 FROM results r JOIN exams e ON r.exam_id = e.id
		 WHERE r.id = $1`, id))
}

// GetByUserAndExam retrieves the result for a (user, exam) pair.
func (r *ResultRepository) GetByUserAndExam(ctx context.Context, examID uuid.UUID, userID int) (*model.Result, error) {
	return scanResult(r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+`
		 FROM results r JOIN exams e ON r.exam_id = e.id
		 WHERE r.exam_id = $1 AND r.user_id = $2`, examID, userID))
}

// Exists reports whether a (user, exam) pair already has a result.
func (r *ResultRepository) Exists(ctx context.Context, examID uuid.UUID, userID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM results WHERE exam_id = $1 AND user_id = $2)`,
		examID, userID,
	).Scan(&exists)
	return exists, err
}

// ListByUser retrieves all results for a student, newest first.
func (r *ResultRepository) ListByUser(ctx context.Context, userID int) ([]model.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+`
		 FROM results r JOIN exams e ON r.exam_id = e.id
		 WHERE r.user_id = $1
		 ORDER BY r.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectResults(rows)
}

// CountByExam returns the number of results recorded for an exam.
func (r *ResultRepository) CountByExam(ctx context.Context, examID uuid.UUID) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM results WHERE exam_id = $1`, examID).Scan(&total)
	return total, err
}

// ListByExam retrieves a page of results for an exam, newest first.
func (r *ResultRepository) ListByExam(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultColumns+`
		 FROM results r JOIN exams e ON r.exam_id = e.id
		 WHERE r.exam_id = $1
		 ORDER BY r.created_at DESC LIMIT $2 OFFSET $3`, examID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectResults(rows)
}

func collectResults(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]model.Result, error) {
	var results []model.Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, rows.Err()
}

// Update applies an admin grading decision to a result and publishes it.
func (r *ResultRepository) Update(ctx context.Context, res *model.Result) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE results
		 SET score = $1, is_passed = $2, user_answers = $3, marks_per_question = $4,
		     status = $5, remarks = $6, question_remarks = $7, updated_at = NOW()
		 WHERE id = $8`,
		res.Score, res.IsPassed, res.UserAnswers, res.MarksPerQuestion,
		res.Status, res.Remarks, res.QuestionRemarks, res.ID)
	return err
}
