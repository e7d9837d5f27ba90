package server

import (
	"github.com/gin-gonic/gin"
	"github.com/matt-steen/taskflow/pkg/workflow"
)

// The legacy routes carry the credentials in the body instead of a session cookie. They answer
// with the same envelope as the session routes.

func (s *Server) authenticateBody(c *gin.Context, cred credentials) (string, bool) {
	acc, err := s.Accounts.Authenticate(c.Request.Context(), cred.Username, cred.Password)
	if err != nil {
		fail(c, err)

		return "", false
	}

	c.Set(actorKey, acc.Username)

	return acc.Username, true
}

type legacyCreateTask struct {
	credentials
	taskForm
}

type legacyTaskID struct {
	TaskID string `json:"Task_id"`
}

func (s *Server) handleLegacyCreateTask(c *gin.Context) {
	var body legacyCreateTask
	if err := bind(c, &body); err != nil {
		fail(c, err)

		return
	}

	username, authenticated := s.authenticateBody(c, body.credentials)
	if !authenticated {
		return
	}

	task, err := s.Engine.Create(c.Request.Context(), username, body.input())
	if err != nil {
		fail(c, err)

		return
	}

	created(c, "task created", legacyTaskID{TaskID: task.ID})
}

type legacyTaskQuery struct {
	credentials
	taskQuery
}

func (s *Server) handleLegacyGetTaskByState(c *gin.Context) {
	var body legacyTaskQuery
	if err := bind(c, &body); err != nil {
		fail(c, err)

		return
	}

	if _, authenticated := s.authenticateBody(c, body.credentials); !authenticated {
		return
	}

	tasks, err := s.Engine.ListTasksByState(c.Request.Context(), body.acronym(), body.State)
	if err != nil {
		fail(c, err)

		return
	}

	ok(c, "", tasks)
}

type legacyPromote struct {
	credentials
	TaskID string `json:"Task_id"`
}

func (s *Server) handleLegacyPromoteTask2Done(c *gin.Context) {
	var body legacyPromote
	if err := bind(c, &body); err != nil {
		fail(c, err)

		return
	}

	username, authenticated := s.authenticateBody(c, body.credentials)
	if !authenticated {
		return
	}

	task, err := s.Engine.Review(c.Request.Context(), username, workflow.Request{TaskID: body.TaskID})
	if err != nil {
		fail(c, err)

		return
	}

	ok(c, "task reviewed", legacyTaskID{TaskID: task.ID})
}
