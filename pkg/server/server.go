// Package server exposes taskflow over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/matt-steen/taskflow/pkg/accounts"
	"github.com/matt-steen/taskflow/pkg/auth"
	"github.com/matt-steen/taskflow/pkg/registry"
	"github.com/matt-steen/taskflow/pkg/workflow"
	"github.com/rs/zerolog/log"
)

const maxBodySize = 1 << 20

func init() {
	binding.EnableDecoderDisallowUnknownFields = true
}

// Deps are the services behind the routes.
type Deps struct {
	Accounts *accounts.Service
	Registry *registry.Registry
	Engine   *workflow.Engine
	Sessions *auth.Sessions
	// Health reports whether the store answers.
	Health func(ctx context.Context) error
	// SecureCookie marks the session cookie as HTTPS only.
	SecureCookie bool
	// TrustedProxies may set the client IP through X-Forwarded-For. Nil trusts none.
	TrustedProxies []string
}

// Server is the taskflow API.
type Server struct {
	Deps
	router *gin.Engine
}

// New creates a Server with every route registered.
func New(deps Deps) (*Server, error) {
	router := gin.New()

	if err := router.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, fmt.Errorf("error setting trusted proxies: %w", err)
	}

	router.Use(gin.Recovery(), requestID(), limitBody(maxBodySize), requestLogger(), requestMetrics())

	s := &Server{Deps: deps, router: router}

	router.GET("/healthz", s.handleHealth)
	router.POST("/login", s.handleLogin)
	router.POST("/logout", s.handleLogout)

	session := router.Group("/", s.requireSession())
	{
		session.GET("/applications", s.handleGetApplications)
		session.GET("/applications/:acronym", s.handleGetApplication)
		session.POST("/create-application", s.handleCreateApplication)
		session.PUT("/update-application", s.handleUpdateApplication)

		session.POST("/create-plan", s.handleCreatePlan)
		session.POST("/get-plans", s.handleGetPlans)
		session.PUT("/update-plan", s.handleUpdatePlan)

		session.POST("/create-task", s.handleCreateTask)
		session.POST("/get-tasks", s.handleGetTasks)
		session.GET("/tasks/:id", s.handleGetTask)
		session.POST("/release-task", s.transition(workflow.ActionRelease))
		session.POST("/assign-task", s.transition(workflow.ActionAssign))
		session.POST("/review-task", s.transition(workflow.ActionReview))
		session.POST("/complete-task", s.transition(workflow.ActionReview))
		session.POST("/approve-task", s.transition(workflow.ActionApprove))
		session.POST("/reject-task", s.transition(workflow.ActionReject))
		session.POST("/unassign-task", s.transition(workflow.ActionUnassign))
		session.POST("/save-notes", s.transition(workflow.ActionNotes))

		session.GET("/usermanagement", s.handleListUsers)
		session.POST("/usermanagement", s.handleCreateUser)
		session.PUT("/update-user", s.handleUpdateUser)
		session.GET("/groups", s.handleListGroups)
		session.POST("/create-group", s.handleCreateGroup)
		session.PUT("/profile", s.handleUpdateProfile)
	}

	legacy := router.Group("/")
	{
		legacy.POST("/CreateTask", s.handleLegacyCreateTask)
		legacy.POST("/GetTaskByState", s.handleLegacyGetTaskByState)
		legacy.PUT("/PromoteTask2Done", s.handleLegacyPromoteTask2Done)
	}

	router.NoRoute(func(c *gin.Context) {
		respond(c, http.StatusNotFound, "NOT_FOUND", "no such route", nil)
	})

	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then drains open requests.
func (s *Server) Run(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}

	errc := make(chan error, 1)

	go func() {
		log.Info().Str("addr", addr).Msg("listening")

		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.Health != nil {
		if err := s.Health(c.Request.Context()); err != nil {
			log.Error().Err(err).Msg("health check failed")
			respond(c, http.StatusServiceUnavailable, "INTERNAL", "database unavailable", nil)

			return
		}
	}

	ok(c, "healthy", nil)
}
