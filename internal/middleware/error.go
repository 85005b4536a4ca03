package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
)

// ErrorHandler logs the errors handlers attached to the context. The
// response itself is written by the handler; 5xx details stay in the log.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, e := range c.Errors {
			log.Error(e.Err, "Request error",
				"request_id", c.GetString(ContextRequestID),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"client_ip", c.ClientIP(),
				"code", errors.CodeOf(e.Err).String())
		}
	}
}
