package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/bubblevault/bubble-backup-service/pkg/app"
	"github.com/bubblevault/bubble-backup-service/pkg/code"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery 创建带日志器的 Recovery 中间件（支持依赖注入）
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		defer func() {
			if err := recover(); err != nil {
				var errorMsg string
				switch v := err.(type) {
				case string:
					errorMsg = v
				case error:
					errorMsg = v.Error()
				default:
					errorMsg = fmt.Sprintf("%v", err)
				}

				logger.Error("recovered from panic",
					zap.Int("status", c.Writer.Status()),
					zap.String("router", path),
					zap.String("method", c.Request.Method),
					zap.String("query", query),
					zap.String("ip", c.ClientIP()),
					zap.String("user-agent", c.Request.UserAgent()),
					zap.String("traceId", GetTraceIDFromGin(c)),
					zap.String("panic", errorMsg),
					zap.String("stack", string(debug.Stack())),
				)

				app.NewResponse(c).ToResponse(code.Failed.WithDetails(errorMsg))
				c.Abort()
			}
		}()

		c.Next()
	}
}
