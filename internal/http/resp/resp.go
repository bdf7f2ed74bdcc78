package resp

import (
	"github.com/gin-gonic/gin"
	"notify_poller/internal/http/dto"
)

const (
	CodeOK            = 0
	CodeQueued        = 1
	CodeBadRequest    = 40000
	CodeUnauthorized  = 40100
	CodeNotFound      = 40400
	CodeInternalError = 50000
)

// Data writes v inside the {"data": ...} envelope.
func Data(c *gin.Context, status int, v any) {
	c.JSON(status, dto.Envelope{Data: v})
}

func Error(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Code: code, Message: message})
}
