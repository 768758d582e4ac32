package ddns

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// NewRouter maps the public paths onto svc:
// "/" answers with a greeting, "/update" runs the update flow for any method,
// and every other path is 404 Not Found.
func NewRouter(svc *Service, logger logr.Logger) *gin.Engine {
	r := gin.New()
	// "/update/" is a different path, not a redirect.
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.Use(requestLogger(logger), gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, err any) {
		logr.FromContextOrDiscard(c.Request.Context()).Error(fmt.Errorf("panic: %v", err), "handler panicked")
		c.AbortWithStatus(http.StatusInternalServerError)
	}))

	r.Any("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Hello World!")
	})
	r.Any("/update", func(c *gin.Context) {
		resp := svc.HandleUpdate(c.Request)
		if resp.JSON {
			c.JSON(resp.Status, gin.H{"message": resp.Message})
			return
		}
		c.String(resp.Status, resp.Message)
	})
	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "Not Found")
	})
	return r
}

// requestLogger tags each request with an id and stores a logger carrying it in the request context.
func requestLogger(logger logr.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Header("X-Request-Id", id)
		l := logger.WithValues("requestID", id)
		c.Request = c.Request.WithContext(logr.NewContext(c.Request.Context(), l))

		start := time.Now()
		c.Next()
		l.V(1).Info("request served",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
