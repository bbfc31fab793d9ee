package utils

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func SendSuccess(c *gin.Context, statusCode int, message string, data any) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func SendError(c *gin.Context, statusCode int, code, message, details string) {
	c.JSON(statusCode, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func SendValidationError(c *gin.Context, err error) {
	SendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation Failed", err.Error())
}

func SendNotFoundError(c *gin.Context, details string) {
	SendError(c, http.StatusNotFound, "NOT_FOUND", "Resource Not Found", details)
}

func SendConflictError(c *gin.Context, details string) {
	SendError(c, http.StatusConflict, "CONFLICT", "Request Conflicts With Current State", details)
}

func SendInternalError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message, "An internal error has occurred")
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
