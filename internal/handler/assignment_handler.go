package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prof-roster-api/internal/service"
	appErrors "github.com/noah-isme/prof-roster-api/pkg/errors"
	"github.com/noah-isme/prof-roster-api/pkg/response"
)

// AssignmentHandler wires assignment, year membership and schedule routes.
type AssignmentHandler struct {
	assignments *service.AssignmentService
	schedules   *service.ScheduleService
	exports     *service.ExportService
}

// NewAssignmentHandler constructs an AssignmentHandler.
func NewAssignmentHandler(assignments *service.AssignmentService, schedules *service.ScheduleService, exports *service.ExportService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments, schedules: schedules, exports: exports}
}

// Get godoc
// @Summary Editable assignment of a professor
// @Description Entries referring to filieres or classes missing from the year are left out.
// @Tags Assignments
// @Produce json
// @Param id path string true "Professor ID"
// @Param yearId path string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /professors/{id}/years/{yearId}/assignment [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	draft, err := h.assignments.Load(c.Request.Context(), c.Param("yearId"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft)
}

// AddEntry godoc
// @Summary Add an entry to an assignment draft
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Professor ID"
// @Param yearId path string true "Academic year ID"
// @Param payload body service.AddDraftEntryRequest true "Draft and new entry"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /professors/{id}/years/{yearId}/assignment/entries [post]
func (h *AssignmentHandler) AddEntry(c *gin.Context) {
	var req service.AddDraftEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	draft, err := h.assignments.AddDraftEntry(req.Draft, req.Entry)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft)
}

// Save godoc
// @Summary Save the assignment of a professor
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Professor ID"
// @Param yearId path string true "Academic year ID"
// @Param payload body service.SaveAssignmentRequest true "Assignment entries"
// @Success 200 {object} response.Envelope
// @Router /professors/{id}/years/{yearId}/assignment [put]
func (h *AssignmentHandler) Save(c *gin.Context) {
	var req service.SaveAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	assignment, err := h.assignments.Save(c.Request.Context(), c.Param("yearId"), c.Param("id"), req.Entries)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment)
}

// Transfer godoc
// @Summary Transfer a professor to another year
// @Tags Assignments
// @Accept json
// @Param id path string true "Professor ID"
// @Param payload body service.TransferRequest true "Destination year"
// @Success 204 {string} string ""
// @Router /professors/{id}/transfer [post]
func (h *AssignmentHandler) Transfer(c *gin.Context) {
	var req service.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transfer payload"))
		return
	}
	if err := h.assignments.TransferToYear(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveFromYear godoc
// @Summary Remove a professor from a year
// @Description Deletes the assignment; the professor record is kept.
// @Tags Assignments
// @Param id path string true "Professor ID"
// @Param yearId path string true "Academic year ID"
// @Success 204 {string} string ""
// @Router /professors/{id}/years/{yearId} [delete]
func (h *AssignmentHandler) RemoveFromYear(c *gin.Context) {
	if err := h.assignments.RemoveFromYear(c.Request.Context(), c.Param("id"), c.Param("yearId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// TakeForYear godoc
// @Summary Bring existing professors into a year
// @Tags Assignments
// @Accept json
// @Produce json
// @Param yearId path string true "Academic year ID"
// @Param payload body service.TakeForYearRequest true "Professor IDs"
// @Success 200 {object} response.Envelope
// @Router /academic-years/{yearId}/professors [post]
func (h *AssignmentHandler) TakeForYear(c *gin.Context) {
	var req service.TakeForYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid take for year payload"))
		return
	}
	taken, err := h.assignments.TakeForYear(c.Request.Context(), c.Param("yearId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"prof_ids": taken})
}

// Schedule godoc
// @Summary Weekly schedule of a professor
// @Tags Schedules
// @Produce json
// @Param id path string true "Professor ID"
// @Param yearId path string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /professors/{id}/years/{yearId}/schedule [get]
func (h *AssignmentHandler) Schedule(c *gin.Context) {
	slots, err := h.schedules.ScheduleFor(c.Request.Context(), c.Param("yearId"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots)
}

// SchedulePDF godoc
// @Summary Weekly schedule of a professor as PDF
// @Tags Schedules
// @Produce application/pdf
// @Param id path string true "Professor ID"
// @Param yearId path string true "Academic year ID"
// @Success 200 {file} file
// @Router /professors/{id}/years/{yearId}/schedule.pdf [get]
func (h *AssignmentHandler) SchedulePDF(c *gin.Context) {
	file, err := h.exports.SchedulePDF(c.Request.Context(), c.Param("yearId"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
