package api

import (
	"net/http"
	"strconv"
	"time"

	"storefront/config"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const sessionIDKey = "sid"

// NewSessionStore builds the signed cookie store holding visitor session ids
func NewSessionStore(cfg config.SessionConfig) sessions.Store {
	st := sessions.NewCookieStore([]byte(cfg.Secret))
	st.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return st
}

// sessionMiddleware makes sure every request carries a session id, issuing
// a new cookie when the visitor has none or the old one fails verification.
func sessionMiddleware(st sessions.Store, cookieName string) gin.HandlerFunc {
	logger := util.Component("session")

	return func(c *gin.Context) {
		sess, err := st.Get(c.Request, cookieName)
		if err != nil {
			logger.Debug("Discarding unreadable session cookie", zap.Error(err))
		}

		sid, _ := sess.Values[sessionIDKey].(string)
		if sid == "" {
			sid = uuid.New().String()
			sess.Values[sessionIDKey] = sid
			if err := sess.Save(c.Request, c.Writer); err != nil {
				logger.Error("Failed to save session", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
				return
			}
		}

		c.Set(sessionIDKey, sid)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}

// requestLogger logs one line per request with the global zap logger
func requestLogger() gin.HandlerFunc {
	logger := util.Component("http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("Request failed", fields...)
			return
		}
		logger.Debug("Request served", fields...)
	}
}
