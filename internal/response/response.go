package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorBody is the failure body of every quiz endpoint. Error is the field
// quiz clients read; Code and RequestID are for operators.
type ErrorBody struct {
	Error     string            `json:"error"`
	Code      ErrCode           `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	IsCorrect *bool             `json:"isCorrect,omitempty"`
	RequestID string            `json:"request_id"`
}

// ────────────────────────────────────────────────────────────────────────────
// Helper builders
// ────────────────────────────────────────────────────────────────────────────

// Success sends a successful JSON response. Quiz clients expect the payload
// at the top level, so there is no envelope.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// Fail sends an error response with an error code and no field-level details.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	c.JSON(statusCode, build(c, code))
}

// FailWithFields sends an error response with field-level validation details.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	body := build(c, code)
	body.Fields = fields
	c.JSON(statusCode, body)
}

// FailGrading sends a grading failure that still carries a verdict.
func FailGrading(c *gin.Context, statusCode int, code ErrCode, isCorrect bool) {
	body := build(c, code)
	body.IsCorrect = &isCorrect
	c.JSON(statusCode, body)
}

// AbortFail aborts the middleware chain and sends an error response.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.AbortWithStatusJSON(statusCode, build(c, code))
}

// ────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ────────────────────────────────────────────────────────────────────────────

func build(c *gin.Context, code ErrCode) ErrorBody {
	return ErrorBody{
		Error:     GetMessage(code),
		Code:      code,
		RequestID: RequestID(c),
	}
}

// RequestID returns the id assigned by RequestIDMiddleware.
func RequestID(c *gin.Context) string {
	reqID, _ := c.Get(ContextKeyRequestID)
	id, ok := reqID.(string)
	if !ok || id == "" {
		id = uuid.New().String() // Fallback if middleware not applied
	}
	return id
}
