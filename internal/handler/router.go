package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prof-roster-api/internal/middleware"
	"github.com/noah-isme/prof-roster-api/internal/models"
	"github.com/noah-isme/prof-roster-api/internal/service"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Auth         *AuthHandler
	Years        *AcademicYearHandler
	Professors   *ProfessorHandler
	Assignments  *AssignmentHandler
	Metrics      *MetricsHandler
	TokenChecker *service.AuthService
}

// Register mounts the public health endpoints on r and the API on prefix.
func (rt Routes) Register(r gin.IRouter, prefix string) {
	if rt.Metrics != nil {
		r.GET("/health", rt.Metrics.Health)
		r.GET("/ready", rt.Metrics.Ready)
		r.GET("/metrics", rt.Metrics.Prometheus)
	}

	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())
	api.POST("/auth/login", rt.Auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(rt.TokenChecker), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))

	years := secured.Group("/academic-years")
	years.GET("", rt.Years.List)
	years.GET("/current", rt.Years.Current)
	years.GET("/:yearId/reference", rt.Years.Reference)
	years.POST("/:yearId/professors", rt.Assignments.TakeForYear)

	professors := secured.Group("/professors")
	professors.GET("", rt.Professors.Roster)
	professors.GET("/current", rt.Professors.CurrentRoster)
	professors.GET("/export.csv", rt.Professors.ExportCSV)
	professors.GET("/availability", rt.Professors.Availability)
	professors.POST("", rt.Professors.Create)
	professors.GET("/:id", rt.Professors.Get)
	professors.PUT("/:id", rt.Professors.Update)
	professors.DELETE("/:id", rt.Professors.Delete)
	professors.POST("/:id/transfer", rt.Assignments.Transfer)
	professors.DELETE("/:id/years/:yearId", rt.Assignments.RemoveFromYear)
	professors.GET("/:id/years/:yearId/assignment", rt.Assignments.Get)
	professors.PUT("/:id/years/:yearId/assignment", rt.Assignments.Save)
	professors.POST("/:id/years/:yearId/assignment/entries", rt.Assignments.AddEntry)
	professors.GET("/:id/years/:yearId/schedule", rt.Assignments.Schedule)
	professors.GET("/:id/years/:yearId/schedule.pdf", rt.Assignments.SchedulePDF)
}
