package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scoreveda/scoreveda-backend/internal/attempt"
	"github.com/scoreveda/scoreveda-backend/internal/middleware"
	"github.com/scoreveda/scoreveda-backend/internal/model"
	"github.com/scoreveda/scoreveda-backend/internal/response"
	"github.com/scoreveda/scoreveda-backend/internal/service"
	"github.com/scoreveda/scoreveda-backend/internal/validator"
)

// StudentPortalHandler handles the student-facing exam endpoints.
type StudentPortalHandler struct {
	examService   *service.ExamService
	resultService *service.ResultService
	engine        *attempt.Engine
	log           zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	examService *service.ExamService,
	resultService *service.ResultService,
	engine *attempt.Engine,
	log zerolog.Logger,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		examService:   examService,
		resultService: resultService,
		engine:        engine,
		log:           log.With().Str("component", "student_portal").Logger(),
	}
}

// Join godoc
// POST /api/v1/student/exams/join
// Resolves an access code to the exam payload.
func (h *StudentPortalHandler) Join(c *gin.Context) {
	var req model.JoinExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	payload, err := h.examService.JoinByCode(c.Request.Context(), req.AccessCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAccess):
			response.Fail(c, http.StatusNotFound, response.ErrInvalidAccessCode)
		case errors.Is(err, service.ErrNoQuestions):
			response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": payload})
}

// GetExam godoc
// GET /api/v1/student/exams/:exam_id
// Returns the sanitized exam payload for the attempt screen.
func (h *StudentPortalHandler) GetExam(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	payload, err := h.examService.GetPayloadForStudent(c.Request.Context(), examID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotPublished):
			response.Fail(c, http.StatusForbidden, response.ErrExamNotPublished)
		case errors.Is(err, service.ErrNoQuestions):
			response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
		default:
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": payload})
}

// Start godoc
// POST /api/v1/student/exams/:exam_id/start
// Loads or resumes the attempt and returns its snapshot. Starting is
// idempotent: a second call returns the same attempt, not a fresh one.
func (h *StudentPortalHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	a, err := h.engine.Load(c.Request.Context(), examID, claims.UserID, c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, attempt.ErrAlreadyAttempted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadyAttempted)
		case errors.Is(err, service.ErrExamNotPublished):
			response.Fail(c, http.StatusForbidden, response.ErrExamNotPublished)
		case errors.Is(err, service.ErrNoQuestions):
			response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
		default:
			h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Attempt load failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": a.Overview()})
}

// Submit godoc
// POST /api/v1/student/exams/submit
// Merges any final answers and triggers a manual submission. Submitting an
// already-graded exam echoes the stored result.
func (h *StudentPortalHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.SubmitExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	examID, err := uuid.Parse(req.ExamID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	a, err := h.engine.Load(c.Request.Context(), examID, claims.UserID, c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, attempt.ErrAlreadyAttempted) {
			result, fetchErr := h.resultService.GetByUserAndExam(c.Request.Context(), examID, claims.UserID)
			if fetchErr != nil {
				response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
				return
			}
			response.Success(c, http.StatusOK, gin.H{"result": result})
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	a.MergeAnswers(req.UserAnswers)
	out := a.Submit(c.Request.Context(), attempt.ReasonManual)
	if out.Err != nil && !out.Terminal {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal)
		return
	}
	if out.Dropped {
		// Another trigger won the race; the result is already durable.
		result, fetchErr := h.resultService.GetByUserAndExam(c.Request.Context(), examID, claims.UserID)
		if fetchErr != nil {
			response.Fail(c, http.StatusConflict, response.ErrAttemptNotActive)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"result": result})
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": out.Result})
}

// Flush godoc
// POST /api/v1/student/exams/:exam_id/flush
// Best-effort terminal flush fired from unload handlers. Always answers
// 202: the sender is about to disappear and cannot act on errors anyway.
func (h *StudentPortalHandler) Flush(c *gin.Context) {
	claims := middleware.GetClaims(c)

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.Status(http.StatusAccepted)
		return
	}

	var req model.FlushRequest
	// Unload payloads are fired blind; tolerate malformed bodies.
	_ = c.ShouldBindJSON(&req)

	if a, ok := h.engine.Get(examID, claims.UserID); ok {
		a.MergeAnswers(req.UserAnswers)
		// Detached context: the keepalive connection dies with the page,
		// and its cancellation must not abort the submit mid-flight.
		out := a.Submit(context.Background(), attempt.ReasonUnload)
		if out.Err != nil {
			h.log.Warn().Err(out.Err).
				Str("exam_id", examID.String()).
				Int("user_id", claims.UserID).
				Msg("Unload flush submission failed")
		}
	}

	c.Status(http.StatusAccepted)
}

// MyResults godoc
// GET /api/v1/student/results
// Lists the authenticated student's results.
func (h *StudentPortalHandler) MyResults(c *gin.Context) {
	claims := middleware.GetClaims(c)

	results, err := h.resultService.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}
