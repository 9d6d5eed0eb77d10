package middleware

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/solite/pkg/errors"
	"github.com/charlesng35/solite/pkg/logger"
	"github.com/charlesng35/solite/pkg/metrics"
	"github.com/charlesng35/solite/pkg/response"
)

// Recovery turns a handler panic into the standard 500 envelope. The panic
// value and stack go to the log, never to the client.
func Recovery() gin.HandlerFunc {
	log := logger.WithModule("http")
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		metrics.PanicsRecovered.Inc()
		log.Error("handler panic",
			zap.String("method", c.Request.Method),
			zap.String("route", routeLabel(c)),
			zap.String("client_ip", c.ClientIP()),
			zap.Any("panic", recovered),
			zap.Stack("stack"),
		)
		if c.Writer.Written() {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		response.Error(c, errors.ErrInternalServer)
	})
}

// NotFoundHandler answers unknown routes with a JSON 404.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.ErrNotFound.WithMessage("route "+c.Request.URL.Path+" not found"))
}
