package middleware

import (
	"github.com/bubblevault/bubble-backup-service/pkg/app"
	"github.com/bubblevault/bubble-backup-service/pkg/code"

	"github.com/gin-gonic/gin"
)

// NoFound 处理未匹配到路由的请求
func NoFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		app.NewResponse(c).ToResponse(code.ErrorNotFound)
	}
}
