package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/scoreveda/scoreveda-backend/internal/config"
	"github.com/scoreveda/scoreveda-backend/internal/model"
	"github.com/scoreveda/scoreveda-backend/internal/repository"
	"github.com/scoreveda/scoreveda-backend/internal/response"
)

// Domain errors.
var (
	ErrNotExamAuthor    = errors.New("not the author of this exam")
	ErrNoQuestions      = errors.New("exam has no questions")
	ErrExamNotPublished = errors.New("exam is not published")
	ErrInvalidAccess    = errors.New("invalid access code")
)

// ExamService handles exam business logic and Redis payload caching.
type ExamService struct {
	examRepo *repository.ExamRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(examRepo *repository.ExamRepository, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		examRepo: examRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// Create validates and stores a new exam authored by the given admin.
func (s *ExamService) Create(ctx context.Context, createdBy int, req *model.CreateExamRequest) (*model.Exam, error) {
	questions := make([]model.Question, len(req.Questions))
	for i, q := range req.Questions {
		qt := model.QuestionType(q.Type)
		if qt == model.QuestionTypeMCQ {
			if len(q.Options) < 2 {
				return nil, fmt.Errorf("question %d: mcq requires at least 2 options", i)
			}
			if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
				return nil, fmt.Errorf("question %d: correct_option out of range", i)
			}
		}
		questions[i] = model.Question{
			Type:          qt,
			QuestionText:  q.QuestionText,
			Options:       q.Options,
			CorrectOption: q.CorrectOption,
			Marks:         q.Marks,
		}
	}

	exam := &model.Exam{
		Title:           req.Title,
		Description:     req.Description,
		AccessCode:      req.AccessCode,
		IsPublished:     req.IsPublished,
		CreatedBy:       createdBy,
		DurationMinutes: req.DurationMinutes,
		TotalMarks:      req.TotalMarks,
		PassingMarks:    req.PassingMarks,
		ExamRules:       req.ExamRules,
		Questions:       questions,
	}
	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	if exam.IsPublished {
		if err := s.WarmExamCache(ctx, exam); err != nil {
			s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Failed to warm exam cache")
		}
	}
	return exam, nil
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// GetExam satisfies the attempt engine's exam port.
func (s *ExamService) GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exam.IsPublished {
		return nil, ErrExamNotPublished
	}
	if len(exam.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	return exam, nil
}

// ListByCreator retrieves a page of exams authored by the given admin.
func (s *ExamService) ListByCreator(ctx context.Context, createdBy, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	page, perPage = clampPage(page, perPage)

	total, err := s.examRepo.CountByCreator(ctx, createdBy)
	if err != nil {
		return nil, nil, fmt.Errorf("count exams: %w", err)
	}
	exams, err := s.examRepo.ListByCreator(ctx, createdBy, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, paginationFor(page, perPage, total), nil
}

func clampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

func paginationFor(page, perPage, total int) *response.Pagination {
	return &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
}

// Publish flips an exam live and warms its payload cache.
func (s *ExamService) Publish(ctx context.Context, examID uuid.UUID, adminID int) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	if exam.CreatedBy != adminID {
		return ErrNotExamAuthor
	}
	if len(exam.Questions) == 0 {
		return ErrNoQuestions
	}

	if err := s.examRepo.SetPublished(ctx, examID, true); err != nil {
		return fmt.Errorf("publish exam: %w", err)
	}

	exam.IsPublished = true
	if err := s.WarmExamCache(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to warm exam cache")
	}
	return nil
}

// JoinByCode resolves an access code to the exam's student payload. The
// code is the only credential a student needs besides their login.
func (s *ExamService) JoinByCode(ctx context.Context, code string) (*model.ExamPayload, error) {
	exam, err := s.examRepo.GetByAccessCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidAccess
		}
		return nil, fmt.Errorf("get exam by code: %w", err)
	}
	if len(exam.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	return buildPayload(exam), nil
}

// GetPayloadForStudent returns the sanitized exam payload, from Redis when
// warm with a DB fallback that self-heals the cache.
func (s *ExamService) GetPayloadForStudent(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	key := config.CacheKey.ExamPayloadKey(examID.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var payload model.ExamPayload
		if jsonErr := json.Unmarshal(data, &payload); jsonErr == nil {
			return &payload, nil
		}
		// Corrupt cache entry: fall through to the DB and rewrite it.
		s.log.Warn().Str("exam_id", examID.String()).Msg("Corrupt exam payload in cache, rebuilding")
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get payload: %w", err)
	}

	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.WarmExamCache(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to warm exam cache")
	}
	return buildPayload(exam), nil
}

// WarmExamCache writes the student payload for one exam into Redis.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	if len(exam.Questions) == 0 {
		return ErrNoQuestions
	}

	data, err := json.Marshal(buildPayload(exam))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.ExamPayloadKey(exam.ID.String()), data, 0).Err(); err != nil {
		return fmt.Errorf("cache payload: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(exam.Questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads every published exam payload into Redis on
// application startup, avoiding lazy-load stampedes at exam time.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}
	if len(exams) == 0 {
		s.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	warmed := 0
	for i := range exams {
		if err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

// buildPayload strips grading data from an exam for student consumption.
func buildPayload(exam *model.Exam) *model.ExamPayload {
	questions := make([]model.StudentQuestion, len(exam.Questions))
	for i, q := range exam.Questions {
		questions[i] = model.StudentQuestion{
			Type:         q.Type,
			QuestionText: q.QuestionText,
			Options:      q.Options,
			Marks:        q.Marks,
		}
	}
	return &model.ExamPayload{
		ExamID:          exam.ID,
		Title:           exam.Title,
		Description:     exam.Description,
		DurationMinutes: exam.DurationMinutes,
		TotalMarks:      exam.TotalMarks,
		PassingMarks:    exam.PassingMarks,
		ExamRules:       exam.ExamRules,
		Questions:       questions,
	}
}
