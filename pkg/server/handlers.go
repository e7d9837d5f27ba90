package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/matt-steen/taskflow/pkg/accounts"
	"github.com/matt-steen/taskflow/pkg/apperr"
	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/matt-steen/taskflow/pkg/registry"
	"github.com/matt-steen/taskflow/pkg/workflow"
	"github.com/rs/zerolog/log"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResult struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Groups   []string `json:"groups"`
	IsAdmin  bool     `json:"isAdmin"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var body credentials
	if err := bind(c, &body); err != nil {
		fail(c, err)

		return
	}

	acc, err := s.Accounts.Authenticate(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		fail(c, err)

		return
	}

	token, err := s.Sessions.Issue(acc.Username, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		fail(c, err)

		return
	}

	s.setSession(c, token)
	c.Set(actorKey, acc.Username)

	isAdmin := false

	for _, g := range acc.Groups {
		if g == db.AdminGroup {
			isAdmin = true
		}
	}

	log.Info().Str("username", acc.Username).Str("ip", c.ClientIP()).Msg("logged in")
	ok(c, "logged in", loginResult{Username: acc.Username, Email: acc.Email, Groups: acc.Groups, IsAdmin: isAdmin})
}

func (s *Server) handleLogout(c *gin.Context) {
	s.clearSession(c)
	ok(c, "logged out", nil)
}

func (s *Server) handleGetApplications(c *gin.Context) {
	apps, err := s.Registry.GetApplications(c.Request.Context())
	if err != nil {
		fail(c, err)

		return
	}

	ok(c, "", apps)
}

func (s *Server) handleGetApplication(c *gin.Context) {
	app, err := s.Registry.GetApplication(c.Request.Context(), c.Param("acronym"))
	if err != nil {
		fail(c, err)

		return
	}

	ok(c, "", app)
}

func (s *Server) handleCreateApplication(c *gin.Context) {
	var body registry.ApplicationInput
	if err := bind(c, &body); err != nil {
		fail(c, err)

		return
	}

	app, err := s.Registry.CreateApplication(c.Request.Context(), actor(c), body)
	if err != nil {
		fail(c, err)

		return
	}

	created(c, "application created", app)
}

func (s *Server) handleUpdateApplication(c *gin.Context) {
	var body registry.ApplicationUpdate
	if err := bind(c, &body); err != nil {
		fail(c, err)

		return
	}

	app, err := s.Registry.UpdateApplication(c.Request.Context(), actor(c), body)
	if err != nil {
		fail(c, err)

		return
	}

	ok(c, "application updated", app)
}

func (s *Server) handleCreatePlan(c *gin.Context) {
	var body registry.PlanInput
	if err := bind(c, &body); err != nil {
		fail(c, err)

		return
	}

	plan, err := s.Registry.CreatePlan(c.Request.Context(), actor(c), body)
	if err != nil {
		fail(c, err)

		return
	}

	created(c, "plan created", plan)
}

func (s *Server) handleUpdatePlan(c *gin.Context) {
	var body registry.PlanInput
	if err := bind(c, &body); err != nil {
		fail(c, err)

		return
	}

	plan, err := s.Registry.UpdatePlan(c.Request.Context(), actor(c), body)
	if err != nil {
		fail(c, err)

		return
	}

	ok(c, "plan updated", plan)
}

// appRef names an application under either of the keys the clients send.
type appRef struct {
	AppAcronym     string `json:"App_Acronym"`
	PlanAppAcronym string `json:"Plan_app_Acronym"`
}

func (r appRef) acronym() string {
	if r.AppAcronym != "" {
		return strings.TrimSpace(r.AppAcronym)
	}

	return strings.TrimSpace(r.PlanAppAcronym)
}

func (s *Server) handleGetPlans(c *gin.Context) {
	var body appRef
	if err := bind(c, &body); err != nil {
		fail(c, err)

		return
	}

	if body.acronym() == "" {
		fail(c, apperr.Validation("App_Acronym is required"))

		return
	}

	plans, err := s.Registry.GetPlans(c.Request.Context(), body.acronym())
	if err != nil {
		fail(c, err)

		return
	}

	ok(c, "", plans)
}

// taskForm is the new-task body; the application may also be named by App_Acronym.
type taskForm struct {
	workflow.NewTaskInput
	Acronym string `json:"App_Acronym"`
}

func (f taskForm) input() workflow.NewTaskInput {
	in := f.NewTaskInput
	if in.AppAcronym == "" {
		in.AppAcronym = f.Acronym
	}

	return in
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var body taskForm
	if err := bind(c, &body); err != nil {
		fail(c, err)

		return
	}

	task, err := s.Engine.Create(c.Request.Context(), actor(c), body.input())
	if err != nil {
		fail(c, err)

		return
	}

	created(c, "task created", task)
}

// taskQuery selects the tasks of an application, optionally in one state.
type taskQuery struct {
	TaskAppAcronym string   `json:"Task_app_Acronym"`
	AppAcronym     string   `json:"App_Acronym"`
	State          db.State `json:"Task_state"`
}

func (q taskQuery) acronym() string {
	if q.TaskAppAcronym != "" {
		return strings.TrimSpace(q.TaskAppAcronym)
	}

	return strings.TrimSpace(q.AppAcronym)
}

func (s *Server) handleGetTasks(c *gin.Context) {
	var body taskQuery
	if err := bind(c, &body); err != nil {
		fail(c, err)

		return
	}

	tasks, err := s.Engine.ListTasks(c.Request.Context(), body.acronym(), body.State)
	if err != nil {
		fail(c, err)

		return
	}

	ok(c, "", tasks)
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.Engine.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)

		return
	}

	ok(c, "", task)
}

func (s *Server) transition(action workflow.Action) gin.HandlerFunc {
	remark := "task " + strings.ToLower(string(action))

	return func(c *gin.Context) {
		var body workflow.Request
		if err := bind(c, &body); err != nil {
			fail(c, err)

			return
		}

		task, err := s.Engine.Apply(c.Request.Context(), actor(c), action, body)
		if err != nil {
			fail(c, err)

			return
		}

		ok(c, remark, task)
	}
}

func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.Accounts.ListUsers(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)

		return
	}

	ok(c, "", users)
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var body accounts.NewUser
	if err := bind(c, &body); err != nil {
		fail(c, err)

		return
	}

	acc, err := s.Accounts.CreateUser(c.Request.Context(), actor(c), body)
	if err != nil {
		fail(c, err)

		return
	}

	created(c, "user created", acc)
}

func (s *Server) handleUpdateUser(c *gin.Context) {
	var body accounts.UserUpdate
	if err := bind(c, &body); err != nil {
		fail(c, err)

		return
	}

	acc, err := s.Accounts.UpdateUser(c.Request.Context(), actor(c), body)
	if err != nil {
		fail(c, err)

		return
	}

	ok(c, "user updated", acc)
}

func (s *Server) handleListGroups(c *gin.Context) {
	groups, err := s.Accounts.ListGroups(c.Request.Context())
	if err != nil {
		fail(c, err)

		return
	}

	ok(c, "", groups)
}

type groupForm struct {
	Name string `json:"group_name"`
}

func (s *Server) handleCreateGroup(c *gin.Context) {
	var body groupForm
	if err := bind(c, &body); err != nil {
		fail(c, err)

		return
	}

	name, err := s.Accounts.CreateGroup(c.Request.Context(), actor(c), body.Name)
	if err != nil {
		fail(c, err)

		return
	}

	created(c, "group created", name)
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	var body accounts.ProfileUpdate
	if err := bind(c, &body); err != nil {
		fail(c, err)

		return
	}

	acc, err := s.Accounts.UpdateProfile(c.Request.Context(), actor(c), body)
	if err != nil {
		fail(c, err)

		return
	}

	ok(c, "profile updated", acc)
}
