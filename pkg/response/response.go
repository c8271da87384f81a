package response

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/prof-roster-api/pkg/errors"
)

// StaleHeader is set on roster responses superseded by a newer selection of
// the same session.
const StaleHeader = "X-Roster-Stale"

// Envelope is the body of every JSON response: data on success, error
// otherwise, meta when the handler recorded any.
type Envelope struct {
	Data  interface{}            `json:"data,omitempty"`
	Error *appErrors.Error       `json:"error,omitempty"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// Roster payloads depend on the caller's session and are never cached by
// intermediaries.
func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

// JSON writes data with optional metadata.
func JSON(c *gin.Context, status int, data interface{}, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data}
	if len(meta) > 0 && len(meta[0]) > 0 {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Roster writes a roster with its count and staleness in meta. Stale rosters
// also carry StaleHeader so clients can drop them without parsing the body.
func Roster(c *gin.Context, rows interface{}, count int, stale bool, meta map[string]interface{}) {
	if meta == nil {
		meta = make(map[string]interface{}, 2)
	}
	meta["count"] = count
	meta["stale"] = stale
	if stale {
		c.Header(StaleHeader, "true")
	}
	JSON(c, http.StatusOK, rows, meta)
}

// Created responds with 201.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Error renders err. Server side failures keep their message but never
// expose the wrapped cause; the cause is attached to the gin context for the
// access log.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		appErr = appErrors.Clone(appErrors.ErrInternal, appErr.Message)
		appErr.Err = nil
	}
	_ = c.Error(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// Attachment sends a file download. Non ASCII filenames are encoded per
// RFC 2231.
func Attachment(c *gin.Context, filename, contentType string, body []byte) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if disposition == "" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, contentType, body)
}

// NoContent responds with 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
