// Package respond writes the JSON envelope shared by the public and admin APIs.
package respond

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"intake/internal/contact"
	"intake/internal/lifecycle"
	"intake/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// OK writes a success envelope.
func OK(c *gin.Context, status int, message string, data any) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// Fail writes a failure envelope.
func Fail(c *gin.Context, status int, message string, errs ...string) {
	body := gin.H{"success": false, "message": message}
	if len(errs) > 0 {
		body["errors"] = errs
	}
	c.JSON(status, body)
}

// BindError answers a request body that could not be decoded or failed its binding rules.
func BindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msg := fmt.Sprintf("failed on the '%s' rule", fe.Tag())
			fields[fe.Field()] = msg
			msgs = append(msgs, fe.Field()+" "+msg)
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"success":      false,
			"message":      "Invalid request",
			"errors":       msgs,
			"field_errors": fields,
		})
		return
	}
	Fail(c, http.StatusBadRequest, "Invalid request body", "invalid_body")
}

// Error maps a domain error to its status code. Unknown errors are logged
// and answered with 500 without detail.
func Error(c *gin.Context, logger *slog.Logger, err error) {
	var (
		verrs lifecycle.ValidationErrors
		verr  *lifecycle.ValidationError
		terr  *lifecycle.TransitionError
	)
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{
			"success":      false,
			"message":      "Invalid request",
			"errors":       messages(verrs),
			"field_errors": verrs.Fields(),
		})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success":      false,
			"message":      verr.Error(),
			"field_errors": map[string]string{verr.Field: verr.Message},
		})
	case errors.Is(err, lifecycle.ErrDuplicate):
		c.JSON(http.StatusBadRequest, gin.H{
			"success":      false,
			"message":      err.Error(),
			"field_errors": map[string]string{"email": err.Error()},
		})
	case errors.Is(err, contact.ErrValidation):
		Fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, lifecycle.ErrNotFound):
		Fail(c, http.StatusNotFound, "Application not found", "not_found")
	case errors.Is(err, contact.ErrNotFound):
		Fail(c, http.StatusNotFound, "Message not found", "not_found")
	case errors.As(err, &terr):
		c.JSON(http.StatusConflict, gin.H{
			"success":        false,
			"message":        terr.Error(),
			"errors":         []string{"invalid_transition"},
			"event":          terr.Event,
			"current_status": terr.From,
		})
	case errors.Is(err, contact.ErrInvalidStatus):
		Fail(c, http.StatusConflict, err.Error(), "invalid_status")
	case errors.Is(err, ratelimit.ErrRateLimitExceeded):
		Fail(c, http.StatusTooManyRequests, "Too many requests", "rate_limit_exceeded")
	default:
		logger.Error("Request failed", "path", c.FullPath(), "error", err)
		Fail(c, http.StatusInternalServerError, "An internal error occurred", "server_error")
	}
}

func messages(verrs lifecycle.ValidationErrors) []string {
	out := make([]string, len(verrs))
	for i, e := range verrs {
		out[i] = e.Error()
	}
	return out
}
