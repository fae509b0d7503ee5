package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// respondServiceError maps service error text onto an HTTP status. Services
// return plain wrapped errors rather than sentinel types, so the mapping is
// by message shape.
func respondServiceError(c *gin.Context, code string, err error) {
	status := http.StatusBadRequest
	if err != nil {
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "not found"):
			status = http.StatusNotFound
		case strings.Contains(msg, "only coaches"),
			strings.Contains(msg, "not a member"),
			strings.Contains(msg, "forbidden"):
			status = http.StatusForbidden
		case strings.Contains(msg, "not enrolled"):
			status = http.StatusForbidden
		case strings.Contains(msg, "already enrolled"),
			strings.Contains(msg, "already exists"),
			strings.Contains(msg, "busy, retry"),
			strings.Contains(msg, "limit reached"):
			status = http.StatusConflict
		case strings.Contains(msg, "locked"):
			status = http.StatusLocked
		}
	}
	RespondError(c, status, code, err)
}
