package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prof-roster-api/internal/middleware"
	"github.com/noah-isme/prof-roster-api/internal/models"
	"github.com/noah-isme/prof-roster-api/internal/service"
	appErrors "github.com/noah-isme/prof-roster-api/pkg/errors"
	"github.com/noah-isme/prof-roster-api/pkg/response"
)

// StaleHeader flags roster responses superseded by a newer selection.
const StaleHeader = response.StaleHeader

// ProfessorHandler wires professor services to HTTP routes.
type ProfessorHandler struct {
	professors *service.ProfessorService
	sessions   *service.RosterSessions
	exports    *service.ExportService
}

// NewProfessorHandler constructs a ProfessorHandler.
func NewProfessorHandler(professors *service.ProfessorService, sessions *service.RosterSessions, exports *service.ExportService) *ProfessorHandler {
	return &ProfessorHandler{professors: professors, sessions: sessions, exports: exports}
}

// Roster godoc
// @Summary Roster of an academic year
// @Description Professors belonging to the selected year, sorted by name. Results of a selection superseded by a newer one are flagged stale.
// @Tags Professors
// @Produce json
// @Param year_id query string false "Academic year ID"
// @Param year_label query string false "Academic year label"
// @Success 200 {object} response.Envelope
// @Router /professors [get]
func (h *ProfessorHandler) Roster(c *gin.Context) {
	sel := selectorFromQuery(c)
	snapshot, err := h.sessions.View(sessionID(c)).Select(c.Request.Context(), sel)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Roster(c, snapshot.Rows, len(snapshot.Rows), snapshot.Stale, middleware.ExtractMeta(c))
}

// CurrentRoster godoc
// @Summary Roster currently shown to the session
// @Tags Professors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /professors/current [get]
func (h *ProfessorHandler) CurrentRoster(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.sessions.View(sessionID(c)).Current())
}

// ExportCSV godoc
// @Summary Export roster as CSV
// @Tags Professors
// @Produce text/csv
// @Param year_id query string false "Academic year ID"
// @Param year_label query string false "Academic year label"
// @Success 200 {file} file
// @Router /professors/export.csv [get]
func (h *ProfessorHandler) ExportCSV(c *gin.Context) {
	file, err := h.exports.RosterCSV(c.Request.Context(), selectorFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Availability godoc
// @Summary Check login and email availability
// @Description Best effort: store failures report available with checked=false.
// @Tags Professors
// @Produce json
// @Param login query string false "Login"
// @Param email query string false "Email"
// @Param exclude_id query string false "Professor being edited"
// @Success 200 {object} response.Envelope
// @Router /professors/availability [get]
func (h *ProfessorHandler) Availability(c *gin.Context) {
	result := h.professors.CheckAvailability(c.Request.Context(),
		strings.TrimSpace(c.Query("login")),
		strings.TrimSpace(c.Query("email")),
		strings.TrimSpace(c.Query("exclude_id")),
	)
	response.JSON(c, http.StatusOK, result)
}

// Get godoc
// @Summary Get professor detail
// @Tags Professors
// @Produce json
// @Param id path string true "Professor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /professors/{id} [get]
func (h *ProfessorHandler) Get(c *gin.Context) {
	professor, err := h.professors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, professor)
}

// Create godoc
// @Summary Create professor
// @Tags Professors
// @Accept json
// @Produce json
// @Param payload body service.CreateProfessorRequest true "Professor payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /professors [post]
func (h *ProfessorHandler) Create(c *gin.Context) {
	var req service.CreateProfessorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid professor payload"))
		return
	}
	professor, err := h.professors.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, professor)
}

// Update godoc
// @Summary Update professor
// @Tags Professors
// @Accept json
// @Produce json
// @Param id path string true "Professor ID"
// @Param payload body service.UpdateProfessorRequest true "Professor payload"
// @Success 200 {object} response.Envelope
// @Router /professors/{id} [put]
func (h *ProfessorHandler) Update(c *gin.Context) {
	var req service.UpdateProfessorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid professor payload"))
		return
	}
	professor, err := h.professors.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, professor)
}

// Delete godoc
// @Summary Delete professor permanently
// @Tags Professors
// @Param id path string true "Professor ID"
// @Success 204 {string} string ""
// @Router /professors/{id} [delete]
func (h *ProfessorHandler) Delete(c *gin.Context) {
	if err := h.professors.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func selectorFromQuery(c *gin.Context) models.YearSelector {
	return models.YearSelector{
		YearID:    strings.TrimSpace(c.Query("year_id")),
		YearLabel: strings.TrimSpace(c.Query("year_label")),
	}
}
