package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/scoreveda/scoreveda-backend/internal/model"
	"github.com/scoreveda/scoreveda-backend/internal/response"
	"github.com/scoreveda/scoreveda-backend/internal/service"
	"github.com/scoreveda/scoreveda-backend/internal/validator"
)

// ResultHandler handles admin result review and grading endpoints.
type ResultHandler struct {
	resultService *service.ResultService
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService) *ResultHandler {
	return &ResultHandler{resultService: resultService}
}

// Get godoc
// GET /api/v1/admin/results/:result_id
// Returns a single result with answers for manual grading.
func (h *ResultHandler) Get(c *gin.Context) {
	resultID, err := uuid.Parse(c.Param("result_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.resultService.GetByID(c.Request.Context(), resultID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// Update godoc
// PUT /api/v1/admin/results/:result_id
// Applies a grading decision and publishes the result.
func (h *ResultHandler) Update(c *gin.Context) {
	resultID, err := uuid.Parse(c.Param("result_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateResultRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.resultService.AdminUpdate(c.Request.Context(), resultID, &req)
	if err != nil {
		if errors.Is(err, service.ErrScoreExceedsTotal) {
			response.Fail(c, http.StatusBadRequest, response.ErrScoreExceedsTotal)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}
