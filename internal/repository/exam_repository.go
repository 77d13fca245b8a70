package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scoreveda/scoreveda-backend/internal/model"
)

// ExamRepository handles exam data access. Questions live embedded in the
// exam row as JSONB, addressed by dense index.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, title, description, access_code, is_published, created_by,
	 duration_minutes, total_marks, passing_marks, exam_rules, questions,
	 created_at, updated_at`

func scanExam(row interface{ Scan(dest ...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.AccessCode, &e.IsPublished,
		&e.CreatedBy, &e.DurationMinutes, &e.TotalMarks, &e.PassingMarks,
		&e.ExamRules, &e.Questions, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// GetByAccessCode retrieves a published exam by its access code.
func (r *ExamRepository) GetByAccessCode(ctx context.Context, code string) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE access_code = $1 AND is_published = TRUE`, code))
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, description, access_code, is_published, created_by,
		                    duration_minutes, total_marks, passing_marks, exam_rules, questions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.Description, e.AccessCode, e.IsPublished, e.CreatedBy,
		e.DurationMinutes, e.TotalMarks, e.PassingMarks, e.ExamRules, e.Questions,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// SetPublished flips an exam's published flag.
func (r *ExamRepository) SetPublished(ctx context.Context, id uuid.UUID, published bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET is_published = $1, updated_at = NOW() WHERE id = $2`,
		published, id)
	return err
}

// CountByCreator returns the number of exams created by the given admin.
func (r *ExamRepository) CountByCreator(ctx context.Context, createdBy int) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exams WHERE created_by = $1`, createdBy).Scan(&total)
	return total, err
}

// ListByCreator retrieves a page of exams created by the given admin,
// newest first.
func (r *ExamRepository) ListByCreator(ctx context.Context, createdBy, limit, offset int) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams WHERE created_by = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		createdBy, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// ListPublished returns all published exams. Used for cache prewarming on
// application startup.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams WHERE is_published = TRUE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}
