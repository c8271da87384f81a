package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prof-roster-api/internal/middleware"
)

const anonymousSession = "anonymous"

// sessionID identifies the roster view of the caller by token subject.
func sessionID(c *gin.Context) string {
	claims := middleware.Claims(c)
	if claims == nil {
		return anonymousSession
	}
	if claims.Subject != "" {
		return claims.Subject
	}
	if claims.UserID != "" {
		return claims.UserID
	}
	return anonymousSession
}
