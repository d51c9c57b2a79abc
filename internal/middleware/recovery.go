package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/student-clearance-api/pkg/errors"
	"github.com/noah-isme/student-clearance-api/pkg/middleware/requestid"
	"github.com/noah-isme/student-clearance-api/pkg/response"
)

// Recovery converts panics into the standard INTERNAL_ERROR envelope.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", requestid.Value(c)),
		)
		response.Error(c, appErrors.ErrInternal)
		c.Abort()
	})
}
