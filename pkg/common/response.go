package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the standard API response envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody carries error details in a response
type ErrorBody struct {
	Message string `json:"message"`
}

// SuccessResponse writes a 200 response with data
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// SuccessResponseWithMeta writes a 200 response with data and pagination meta
func SuccessResponseWithMeta(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Meta: meta})
}

// CreatedResponse writes a 201 response with data
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// ErrorResponse writes an error response with the given status code
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, Response{Success: false, Error: &ErrorBody{Message: message}})
}

// AppErrorResponse writes an error response from an AppError
func AppErrorResponse(c *gin.Context, err *AppError) {
	ErrorResponse(c, err.Code, err.Message)
}
