package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/schoolyard-io/timetable-api/internal/models"
	"github.com/schoolyard-io/timetable-api/internal/service"
	appErrors "github.com/schoolyard-io/timetable-api/pkg/errors"
	"github.com/schoolyard-io/timetable-api/pkg/response"
)

type timetableService interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, *models.Pagination, error)
	Create(ctx context.Context, schoolID, createdBy string, req service.CreateTimetableRequest) (*models.Timetable, error)
	Grid(ctx context.Context, schoolID, timetableID string) (*models.TimetableGrid, error)
	GridByClass(ctx context.Context, schoolID, classID string) (*models.TimetableGrid, error)
	Delete(ctx context.Context, schoolID, timetableID string) error
	UpdatePeriodTime(ctx context.Context, schoolID, periodID string, req service.UpdatePeriodTimeRequest) (*models.Period, error)
	DeletePeriod(ctx context.Context, schoolID, periodID string) error
}

type cloneService interface {
	Clone(ctx context.Context, schoolID, createdBy, sourceID string, req service.CloneTimetableRequest) (*models.CloneResult, error)
}

// TimetableHandler manages timetable lifecycle and grid endpoints.
type TimetableHandler struct {
	timetables timetableService
	clones     cloneService
}

// NewTimetableHandler constructs handler.
func NewTimetableHandler(timetables timetableService, clones cloneService) *TimetableHandler {
	return &TimetableHandler{timetables: timetables, clones: clones}
}

// List godoc
// @Summary List timetables
// @Tags Timetables
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.TimetableFilter
	filter.SchoolID = claims.SchoolID
	filter.Status = strings.ToLower(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	timetables, pagination, err := h.timetables.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetables, pagination)
}

// Create godoc
// @Summary Create a timetable with its weekly period grid
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body service.CreateTimetableRequest true "Timetable payload"
// @Success 201 {object} response.Envelope
// @Router /timetables [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	timetable, err := h.timetables.Create(c.Request.Context(), claims.SchoolID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, timetable)
}

// Grid godoc
// @Summary Get the full weekly grid of a timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/grid [get]
func (h *TimetableHandler) Grid(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	grid, err := h.timetables.Grid(c.Request.Context(), claims.SchoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, nil)
}

// GridByClass godoc
// @Summary Get the active timetable grid for a class
// @Tags Timetables
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/grid [get]
func (h *TimetableHandler) GridByClass(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	grid, err := h.timetables.GridByClass(c.Request.Context(), claims.SchoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, nil)
}

// Delete godoc
// @Summary Delete a timetable with all periods and assignments
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 204
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.timetables.Delete(c.Request.Context(), claims.SchoolID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdatePeriodTime godoc
// @Summary Change a period's start and end time
// @Tags Periods
// @Accept json
// @Produce json
// @Param id path string true "Period ID"
// @Param payload body service.UpdatePeriodTimeRequest true "Time payload"
// @Success 200 {object} response.Envelope
// @Router /periods/{id}/time [put]
func (h *TimetableHandler) UpdatePeriodTime(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdatePeriodTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	period, err := h.timetables.UpdatePeriodTime(c.Request.Context(), claims.SchoolID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// DeletePeriod godoc
// @Summary Remove a period and its assignment from a timetable
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 204
// @Router /periods/{id} [delete]
func (h *TimetableHandler) DeletePeriod(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.timetables.DeletePeriod(c.Request.Context(), claims.SchoolID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Clone godoc
// @Summary Clone a timetable onto another class
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Source timetable ID"
// @Param payload body service.CloneTimetableRequest true "Clone payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/clone [post]
func (h *TimetableHandler) Clone(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CloneTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.clones.Clone(c.Request.Context(), claims.SchoolID, claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
