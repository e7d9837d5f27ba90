// Package workflow is the task state machine. It numbers new tasks, moves tasks between
// states on behalf of authorized users, and keeps each task's audit notes.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/matt-steen/taskflow/pkg/apperr"
	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/matt-steen/taskflow/pkg/notify"
	"github.com/rs/zerolog/log"
)

// Store is the part of the database the engine needs.
type Store interface {
	GetApplication(ctx context.Context, acronym string) (*db.Application, error)
	GetPlan(ctx context.Context, appAcronym, name string) (*db.Plan, error)
	CreateTask(ctx context.Context, nt db.NewTask) (*db.Task, error)
	GetTask(ctx context.Context, id string) (*db.Task, error)
	GetTasks(ctx context.Context, appAcronym string, state db.State) ([]*db.Task, error)
	ChangeTaskState(ctx context.Context, c db.StateChange) error
}

// Members answers group questions about users.
type Members interface {
	IsMember(ctx context.Context, username string, groups ...string) (bool, error)
	MemberEmails(ctx context.Context, group string) ([]string, error)
}

// Engine applies task operations.
type Engine struct {
	store    Store
	members  Members
	notifier notify.Notifier
	now      func() time.Time
	metrics  *metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the notifier used after a task is sent for review.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithClock replaces the clock used for note timestamps and creation dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine.
func New(store Store, members Members, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		members:  members,
		notifier: notify.LogNotifier{},
		now:      time.Now,
		metrics:  newMetrics(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Engine) authorize(ctx context.Context, actor string, action Action, group, appAcronym string) error {
	if group == "" {
		return apperr.Authorization("no group may %s tasks of %s", verb(action), appAcronym)
	}

	ok, err := e.members.IsMember(ctx, actor, group)
	if err != nil {
		return apperr.From(err)
	}

	if !ok {
		return apperr.Authorization("%s is not in group '%s' required to %s tasks of %s",
			actor, group, verb(action), appAcronym)
	}

	return nil
}

func (e *Engine) checkPlan(ctx context.Context, appAcronym, plan string) error {
	if plan == "" {
		return nil
	}

	if _, err := e.store.GetPlan(ctx, appAcronym, plan); err != nil {
		return db.Classify(err, fmt.Sprintf("plan '%s' of %s", plan, appAcronym))
	}

	return nil
}

func (e *Engine) application(ctx context.Context, acronym string) (*db.Application, error) {
	app, err := e.store.GetApplication(ctx, acronym)
	if err != nil {
		return nil, db.Classify(err, "application "+acronym)
	}

	return app, nil
}

// Create adds a task in state Open and gives it the next number of its application.
func (e *Engine) Create(ctx context.Context, actor string, in NewTaskInput) (task *db.Task, err error) {
	defer e.metrics.observe(ctx, ActionCreate, time.Now(), &err)

	nt, err := in.normalize()
	if err != nil {
		return nil, err
	}

	app, err := e.application(ctx, nt.appAcronym)
	if err != nil {
		return nil, err
	}

	if err = e.authorize(ctx, actor, ActionCreate, app.PermitCreate, app.Acronym); err != nil {
		return nil, err
	}

	if err = e.checkPlan(ctx, app.Acronym, nt.plan); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	lines := []string{}

	if nt.plan != "" {
		lines = append(lines, planLine("", nt.plan))
	}

	block := noteBlock(ActionCreate, actor, noState, string(db.StateOpen), now, append(lines, nt.note)...)

	task, err = e.store.CreateTask(ctx, db.NewTask{
		AppAcronym:  app.Acronym,
		Name:        nt.name,
		Description: nt.description,
		Plan:        nt.plan,
		Creator:     actor,
		Notes:       block,
		CreateDate:  now,
	})
	if err != nil {
		return nil, db.Classify(err, "application "+app.Acronym)
	}

	log.Info().Str("actor", actor).Str("task", task.ID).Msg("created task")

	return task, nil
}

// Release moves a task from Open to To-Do.
func (e *Engine) Release(ctx context.Context, actor string, req Request) (*db.Task, error) {
	return e.Apply(ctx, actor, ActionRelease, req)
}

// Assign moves a task from To-Do to Doing; the actor becomes its owner.
func (e *Engine) Assign(ctx context.Context, actor string, req Request) (*db.Task, error) {
	return e.Apply(ctx, actor, ActionAssign, req)
}

// Review moves a task from Doing to Done and notifies the group that may approve it.
func (e *Engine) Review(ctx context.Context, actor string, req Request) (*db.Task, error) {
	return e.Apply(ctx, actor, ActionReview, req)
}

// Approve closes a task that is Done.
func (e *Engine) Approve(ctx context.Context, actor string, req Request) (*db.Task, error) {
	return e.Apply(ctx, actor, ActionApprove, req)
}

// Reject sends a task that is Done back to Doing, optionally moving it to another plan.
func (e *Engine) Reject(ctx context.Context, actor string, req Request) (*db.Task, error) {
	return e.Apply(ctx, actor, ActionReject, req)
}

// Unassign gives a task in Doing back to To-Do. Only its current owner may do that.
func (e *Engine) Unassign(ctx context.Context, actor string, req Request) (*db.Task, error) {
	return e.Apply(ctx, actor, ActionUnassign, req)
}

// SaveNotes adds a note to a task in any state, optionally moving it to another plan.
func (e *Engine) SaveNotes(ctx context.Context, actor string, req Request) (*db.Task, error) {
	return e.Apply(ctx, actor, ActionNotes, req)
}

// Apply performs action on the task named by req. Checks run in this order: input, task and
// application lookup, authorization, current state, plan. The update itself only happens
// while the task is still in the state that was checked.
func (e *Engine) Apply(ctx context.Context, actor string, action Action, req Request) (task *db.Task, err error) {
	defer e.metrics.observe(ctx, action, time.Now(), &err)

	tr, ok := transitions[action]
	if !ok || action == ActionCreate {
		return nil, apperr.Validation("unknown task operation %q", action)
	}

	r, err := req.normalize(tr)
	if err != nil {
		return nil, err
	}

	task, err = e.store.GetTask(ctx, r.taskID)
	if err != nil {
		return nil, db.Classify(err, "task "+r.taskID)
	}

	app, err := e.application(ctx, task.AppAcronym)
	if err != nil {
		return nil, err
	}

	switch {
	case tr.ownerOnly:
		if task.Owner != actor {
			return nil, apperr.Authorization("only %s, who holds task %s, may %s it", task.Owner, task.ID, verb(action))
		}
	case tr.permit != nil:
		if err = e.authorize(ctx, actor, action, tr.permit(app), app.Acronym); err != nil {
			return nil, err
		}
	}

	from, to := task.State, tr.to
	if tr.from != anyState && from != tr.from {
		return nil, apperr.StateConflict("task %s is %s, it must be %s to %s it", task.ID, from, tr.from, verb(action))
	}

	if to == anyState {
		to = from
	}

	lines := []string{}

	if r.setPlan && r.plan != task.Plan {
		if err = e.checkPlan(ctx, app.Acronym, r.plan); err != nil {
			return nil, err
		}

		lines = append(lines, planLine(task.Plan, r.plan))
	}

	change := db.StateChange{
		TaskID:    task.ID,
		From:      from,
		To:        to,
		Actor:     actor,
		NoteBlock: noteBlock(action, actor, stateName(from), stateName(to), e.now(), append(lines, r.note)...),
		SetPlan:   r.setPlan,
		Plan:      r.plan,
	}

	if tr.ownerOnly {
		change.ExpectOwner = actor
	}

	if err = e.store.ChangeTaskState(ctx, change); err != nil {
		return nil, db.Classify(err, "task "+task.ID)
	}

	log.Info().Str("actor", actor).Str("task", task.ID).Str("action", string(action)).
		Str("from", string(from)).Str("to", string(to)).Msg("changed task")

	// The change is committed; a failed read must not report it as lost.
	updated, err := e.store.GetTask(ctx, task.ID)
	if err != nil {
		log.Warn().Err(err).Str("task", task.ID).Msg("error reading changed task, returning the applied change")

		updated = applied(task, change)
	}

	if action == ActionReview {
		e.notifyReview(ctx, app, updated, actor)
	}

	return updated, nil
}

// applied returns task as change leaves it.
func applied(task *db.Task, change db.StateChange) *db.Task {
	t := *task
	t.State = change.To
	t.Owner = change.Actor
	t.Notes = PrependNote(change.NoteBlock, task.Notes)

	if change.SetPlan {
		t.Plan = change.Plan
	}

	return &t
}

// notifyReview tells the members of the Done permit group that a task awaits approval.
// Nothing it does can fail the transition.
func (e *Engine) notifyReview(ctx context.Context, app *db.Application, task *db.Task, actor string) {
	logger := log.With().Str("task", task.ID).Str("group", app.PermitDone).Logger()

	if app.PermitDone == "" {
		logger.Warn().Msg("no approver group configured, nobody to notify")

		return
	}

	recipients, err := e.members.MemberEmails(ctx, app.PermitDone)
	if err != nil {
		logger.Error().Err(err).Msg("error looking up approvers, notification skipped")

		return
	}

	if len(recipients) == 0 {
		logger.Info().Msg("approver group has no email addresses, notification skipped")

		return
	}

	subject := fmt.Sprintf("[%s] %s is ready for approval", app.Acronym, task.ID)
	body := fmt.Sprintf("%s sent task %s (%s) of application %s for review.\n\nIt is waiting for approval by group '%s'.\n",
		actor, task.ID, task.Name, app.Acronym, app.PermitDone)

	e.notifier.Notify(ctx, recipients, subject, body)
}

// GetTask returns one task.
func (e *Engine) GetTask(ctx context.Context, id string) (*db.Task, error) {
	task, err := e.store.GetTask(ctx, id)
	if err != nil {
		return nil, db.Classify(err, "task "+id)
	}

	return task, nil
}

// ListTasks returns the tasks of an application in creation order. An empty state means
// every state.
func (e *Engine) ListTasks(ctx context.Context, appAcronym string, state db.State) ([]*db.Task, error) {
	if state != "" && !state.Valid() {
		return nil, apperr.Validation("Task_state '%s' is not a task state", state)
	}

	app, err := e.application(ctx, appAcronym)
	if err != nil {
		return nil, err
	}

	tasks, err := e.store.GetTasks(ctx, app.Acronym, state)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return tasks, nil
}

// ListTasksByState returns the tasks of an application that are in state.
func (e *Engine) ListTasksByState(ctx context.Context, appAcronym string, state db.State) ([]*db.Task, error) {
	if state == "" {
		return nil, apperr.Validation("Task_state is required")
	}

	return e.ListTasks(ctx, appAcronym, state)
}

func verb(action Action) string {
	switch action {
	case ActionCreate:
		return "create"
	case ActionRelease:
		return "release"
	case ActionAssign:
		return "assign"
	case ActionReview:
		return "review"
	case ActionApprove:
		return "approve"
	case ActionReject:
		return "reject"
	case ActionUnassign:
		return "unassign"
	default:
		return "annotate"
	}
}
