package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prof-roster-api/internal/service"
	"github.com/noah-isme/prof-roster-api/pkg/response"
)

// AcademicYearHandler exposes academic years and their reference data.
type AcademicYearHandler struct {
	years *service.AcademicYearService
}

// NewAcademicYearHandler constructs an AcademicYearHandler.
func NewAcademicYearHandler(years *service.AcademicYearService) *AcademicYearHandler {
	return &AcademicYearHandler{years: years}
}

// List godoc
// @Summary List academic years
// @Tags Academic Years
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /academic-years [get]
func (h *AcademicYearHandler) List(c *gin.Context) {
	years, err := h.years.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, years)
}

// Current godoc
// @Summary Default academic year
// @Description Returns the active year, else the most recent one
// @Tags Academic Years
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /academic-years/current [get]
func (h *AcademicYearHandler) Current(c *gin.Context) {
	year, err := h.years.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, year)
}

// Reference godoc
// @Summary Year reference data
// @Tags Academic Years
// @Produce json
// @Param yearId path string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /academic-years/{yearId}/reference [get]
func (h *AcademicYearHandler) Reference(c *gin.Context) {
	ref, err := h.years.Reference(c.Request.Context(), c.Param("yearId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ref)
}
