package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/hireloop/ats-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithCreated sends a 201 response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError maps an application error to an HTTP status. errors.As
// keeps the mapping working when the AppError arrives wrapped by a service
// layer's fmt.Errorf.
func RespondWithError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	message := "internal server error"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
		switch appErr.Code {
		case apperrors.ErrNotFound:
			statusCode = http.StatusNotFound
		case apperrors.ErrBadRequest:
			statusCode = http.StatusBadRequest
		case apperrors.ErrUnauthorized:
			statusCode = http.StatusUnauthorized
		case apperrors.ErrForbidden:
			statusCode = http.StatusForbidden
		case apperrors.ErrInvalidTransition:
			statusCode = http.StatusUnprocessableEntity
		case apperrors.ErrConcurrentModification:
			statusCode = http.StatusConflict
		}
	}

	c.JSON(statusCode, Response{
		Success: false,
		Error: &Error{
			Code:    statusCode,
			Message: message,
		},
	})
}
