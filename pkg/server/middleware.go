package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/matt-steen/taskflow/pkg/auth"
	"github.com/matt-steen/taskflow/pkg/telemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	actorKey        = "actor"
)

// requestID tags the request with the caller's X-Request-ID or a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}

		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}

		event.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("request_id", c.GetString(requestIDKey)).
			Str("actor", c.GetString(actorKey)).
			Msg("request")
	}
}

func requestMetrics() gin.HandlerFunc {
	m := telemetry.Meter("github.com/matt-steen/taskflow/server")

	requests, _ := m.Int64Counter("taskflow.http.requests",
		metric.WithDescription("HTTP requests by route and status"),
	)

	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		requests.Add(c.Request.Context(), 1, metric.WithAttributes(
			attribute.String("route", route),
			attribute.String("status", strconv.Itoa(c.Writer.Status())),
		))
	}
}

// requireSession resolves the session cookie to an active account and stores its username
// as the actor of the request.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(auth.CookieName)

		username, err := s.Sessions.Verify(token, c.ClientIP(), c.Request.UserAgent())
		if err != nil {
			fail(c, err)

			return
		}

		if _, err = s.Accounts.Active(c.Request.Context(), username); err != nil {
			s.clearSession(c)
			fail(c, err)

			return
		}

		c.Set(actorKey, username)
		c.Next()
	}
}

func actor(c *gin.Context) string {
	return c.GetString(actorKey)
}

func (s *Server) setSession(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(s.Sessions.TTL().Seconds()), "/", "", s.SecureCookie, true)
}

func (s *Server) clearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", s.SecureCookie, true)
}
