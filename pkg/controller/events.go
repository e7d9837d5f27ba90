package controller

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/matt-steen/taskflow/pkg/workflow"
	"github.com/rs/zerolog/log"
)

func (c *Controller) initEvents() {
	c.events = map[tcell.Key]KeyEvent{}
	c.formEvents = map[tcell.Key]KeyEvent{}

	c.initShowEvents(c.events)
	c.initTaskEvents(c.events)

	c.events[KeyN] = KeyEvent{
		Description: "New task",
		Action:      c.switchToForm,
	}

	c.events[KeyE] = KeyEvent{
		Description: "Add note",
		Op:          workflow.ActionNotes,
		Action:      c.switchToNotesForm,
	}

	c.events[KeyG] = KeyEvent{
		Description: "Refresh",
		Action:      c.refresh,
	}

	c.events[KeyQ] = KeyEvent{
		Description: "Exit",
		Action:      c.exit,
	}

	c.formEvents[tcell.KeyEscape] = KeyEvent{
		Description: "Cancel",
		Action:      func() { c.showState(c.selectedState) },
	}
}

func (c *Controller) exit() {
	log.Info().Msg("terminating board")

	c.app.Stop()
}

func (c *Controller) refresh() {
	if err := c.reload(); err != nil {
		c.setError(err)

		return
	}

	c.setMessage("")
	c.showState(c.selectedState)
}

func (c *Controller) getShowAction(state db.State) func() {
	return func() {
		c.showState(state)
	}
}

func (c *Controller) initShowEvents(events map[tcell.Key]KeyEvent) {
	events[KeyShiftO] = KeyEvent{
		Description: "Show Open",
		Action:      c.getShowAction(db.StateOpen),
	}

	events[KeyShiftT] = KeyEvent{
		Description: "Show To-Do",
		Action:      c.getShowAction(db.StateToDo),
	}

	events[KeyShiftD] = KeyEvent{
		Description: "Show Doing",
		Action:      c.getShowAction(db.StateDoing),
	}

	events[KeyShiftN] = KeyEvent{
		Description: "Show Done",
		Action:      c.getShowAction(db.StateDone),
	}

	events[KeyShiftC] = KeyEvent{
		Description: "Show Closed",
		Action:      c.getShowAction(db.StateClosed),
	}
}

// getTaskAction returns the handler applying action to the selected task. The board follows
// the task to the page of its new state.
func (c *Controller) getTaskAction(action workflow.Action) func() {
	return func() {
		if c.selectedTask == nil {
			c.setMessage("[red]no task selected")

			return
		}

		task, err := c.engine.Apply(c.ctx, c.actor, action, workflow.Request{TaskID: c.selectedTask.ID})
		if err != nil {
			c.setError(err)

			return
		}

		if err = c.reload(); err != nil {
			c.setError(err)

			return
		}

		c.setMessage(fmt.Sprintf("[green]%s %s", task.ID, task.State))
		c.showTask(task)
	}
}

func (c *Controller) initTaskEvents(events map[tcell.Key]KeyEvent) {
	events[KeyR] = KeyEvent{
		Description: "Release",
		Op:          workflow.ActionRelease,
		Action:      c.getTaskAction(workflow.ActionRelease),
	}

	events[KeyA] = KeyEvent{
		Description: "Assign to me",
		Op:          workflow.ActionAssign,
		Action:      c.getTaskAction(workflow.ActionAssign),
	}

	events[KeyU] = KeyEvent{
		Description: "Unassign",
		Op:          workflow.ActionUnassign,
		Action:      c.getTaskAction(workflow.ActionUnassign),
	}

	events[KeyV] = KeyEvent{
		Description: "Send for review",
		Op:          workflow.ActionReview,
		Action:      c.getTaskAction(workflow.ActionReview),
	}

	events[KeyP] = KeyEvent{
		Description: "Approve",
		Op:          workflow.ActionApprove,
		Action:      c.getTaskAction(workflow.ActionApprove),
	}

	events[KeyJ] = KeyEvent{
		Description: "Reject",
		Op:          workflow.ActionReject,
		Action:      c.getTaskAction(workflow.ActionReject),
	}
}
