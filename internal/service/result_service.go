package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/scoreveda/scoreveda-backend/internal/grading"
	"github.com/scoreveda/scoreveda-backend/internal/model"
	"github.com/scoreveda/scoreveda-backend/internal/repository"
	"github.com/scoreveda/scoreveda-backend/internal/response"
)

// ErrScoreExceedsTotal is returned when an admin grades a result above the
// exam's total marks.
var ErrScoreExceedsTotal = errors.New("score exceeds total marks")

// ResultService grades submissions and manages the durable result records.
// It is the attempt engine's submission backend.
type ResultService struct {
	resultRepo *repository.ResultRepository
	examRepo   *repository.ExamRepository
	log        zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(resultRepo *repository.ResultRepository, examRepo *repository.ExamRepository, log zerolog.Logger) *ResultService {
	return &ResultService{
		resultRepo: resultRepo,
		examRepo:   examRepo,
		log:        log.With().Str("component", "result_service").Logger(),
	}
}

// Submit grades an attempt and persists its result. It is idempotent: a
// second submission for the same (user, exam) pair returns the stored
// result unchanged, whichever trigger it came from. Grading is
// deterministic, so the first write always wins and retries are harmless.
func (s *ResultService) Submit(ctx context.Context, examID uuid.UUID, userID int, answers map[int]model.Answer) (*model.Result, error) {
	existing, err := s.resultRepo.GetByUserAndExam(ctx, examID, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing result: %w", err)
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	outcome := grading.Grade(exam, answers)
	result := &model.Result{
		UserID:           userID,
		ExamID:           examID,
		ExamTitle:        exam.Title,
		Score:            outcome.Score,
		TotalMarks:       outcome.TotalMarks,
		UserAnswers:      answers,
		MarksPerQuestion: outcome.MarksPerQuestion,
		IsPassed:         outcome.IsPassed,
		Status:           outcome.Status,
	}

	if err := s.resultRepo.Create(ctx, result); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A concurrent submission won the insert; return its row.
			winner, fetchErr := s.resultRepo.GetByUserAndExam(ctx, examID, userID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent submission detected, fetch failed: %w", fetchErr)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("create result: %w", err)
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("user_id", userID).
		Float64("score", result.Score).
		Str("status", string(result.Status)).
		Msg("Result created")
	return result, nil
}

// HasResult satisfies the attempt engine's lockout port.
func (s *ResultService) HasResult(ctx context.Context, examID uuid.UUID, userID int) (bool, error) {
	return s.resultRepo.Exists(ctx, examID, userID)
}

// GetByUserAndExam returns the result for a (user, exam) pair.
func (s *ResultService) GetByUserAndExam(ctx context.Context, examID uuid.UUID, userID int) (*model.Result, error) {
	return s.resultRepo.GetByUserAndExam(ctx, examID, userID)
}

// ListMine returns all results for a student.
func (s *ResultService) ListMine(ctx context.Context, userID int) ([]model.Result, error) {
	results, err := s.resultRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []model.Result{}
	}
	return results, nil
}

// GetByID returns a single result for admin review.
func (s *ResultService) GetByID(ctx context.Context, id uuid.UUID) (*model.Result, error) {
	return s.resultRepo.GetByID(ctx, id)
}

// ListByExam returns a page of results for an exam the admin authored.
func (s *ResultService) ListByExam(ctx context.Context, examID uuid.UUID, adminID, page, perPage int) ([]model.Result, *response.Pagination, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.CreatedBy != adminID {
		return nil, nil, ErrNotExamAuthor
	}

	page, perPage = clampPage(page, perPage)
	total, err := s.resultRepo.CountByExam(ctx, examID)
	if err != nil {
		return nil, nil, fmt.Errorf("count results: %w", err)
	}
	results, err := s.resultRepo.ListByExam(ctx, examID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if results == nil {
		results = []model.Result{}
	}
	return results, paginationFor(page, perPage, total), nil
}

// AdminUpdate applies a grading decision to a pending result and publishes
// it. The caller's score is trusted as the confirmed total; the only server
// check is that it does not exceed the exam's total marks.
func (s *ResultService) AdminUpdate(ctx context.Context, id uuid.UUID, req *model.UpdateResultRequest) (*model.Result, error) {
	result, err := s.resultRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}

	if *req.Score > result.TotalMarks {
		return nil, ErrScoreExceedsTotal
	}

	result.Score = *req.Score
	result.IsPassed = *req.IsPassed
	result.Status = model.ResultStatusPublished
	if req.UserAnswers != nil {
		result.UserAnswers = req.UserAnswers
	}
	if req.MarksPerQuestion != nil {
		result.MarksPerQuestion = req.MarksPerQuestion
	}
	if req.Remarks != nil {
		result.Remarks = *req.Remarks
	}
	if req.QuestionRemarks != nil {
		result.QuestionRemarks = req.QuestionRemarks
	}

	if err := s.resultRepo.Update(ctx, result); err != nil {
		return nil, fmt.Errorf("update result: %w", err)
	}

	s.log.Info().
		Str("result_id", id.String()).
		Float64("score", result.Score).
		Msg("Result graded and published")
	return result, nil
}
