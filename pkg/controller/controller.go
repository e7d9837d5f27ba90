// Package controller is the terminal board: one page per task state, with keys for the task
// operations allowed from that state.
package controller

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/taskflow/pkg/apperr"
	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/matt-steen/taskflow/pkg/workflow"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	descNameRatio = 2

	formPage  = "form"
	notesPage = "notes"
)

// Engine is the part of the workflow engine the board drives.
type Engine interface {
	ListTasks(ctx context.Context, appAcronym string, state db.State) ([]*db.Task, error)
	Create(ctx context.Context, actor string, in workflow.NewTaskInput) (*db.Task, error)
	Apply(ctx context.Context, actor string, action workflow.Action, req workflow.Request) (*db.Task, error)
}

// Controller mediates between the workflow engine and the view.
type Controller struct {
	ctx        context.Context
	engine     Engine
	actor      string
	appAcronym string

	app           *tview.Application
	pages         *tview.Pages
	contents      map[db.State]*StateContent
	stateTables   map[db.State]*tview.Table
	stateHeaders  map[db.State]*tview.Table
	selectedState db.State
	selectedTask  *db.Task
	message       string

	events     map[tcell.Key]KeyEvent
	formEvents map[tcell.Key]KeyEvent

	taskForm   *tview.Form
	notesForm  *tview.Form
	formHeader map[string]*tview.Table
}

// KeyEvent defines an event associated with a keypress. A non-empty Op limits the key to the
// pages of the states the task operation is allowed from.
type KeyEvent struct {
	Description string
	Op          workflow.Action
	Action      func()
}

// NewController creates a new Controller showing the tasks of appAcronym to actor.
func NewController(ctx context.Context, engine Engine, actor, appAcronym string) (*Controller, error) {
	c := &Controller{
		ctx:          ctx,
		engine:       engine,
		actor:        actor,
		appAcronym:   appAcronym,
		app:          tview.NewApplication(),
		pages:        tview.NewPages(),
		contents:     map[db.State]*StateContent{},
		stateTables:  map[db.State]*tview.Table{},
		stateHeaders: map[db.State]*tview.Table{},
		formHeader:   map[string]*tview.Table{},
	}

	c.initEvents()

	for _, state := range db.States() {
		c.contents[state] = &StateContent{state: state}
		c.pages.AddPage(pageName(string(state)), c.getStateGrid(state), true, false)
	}

	c.pages.AddPage(pageName(formPage), c.getFormGrid(), true, false)
	c.pages.AddPage(pageName(notesPage), c.getNotesGrid(), true, false)

	if err := c.reload(); err != nil {
		return nil, err
	}

	c.showState(db.StateOpen)

	return c, nil
}

// Go runs the board until the user quits.
func (c *Controller) Go() error {
	if err := c.app.SetRoot(c.pages, true).Run(); err != nil {
		return fmt.Errorf("error running the board: %w", err)
	}

	return nil
}

// reload fetches every task of the application and spreads them over the state pages.
func (c *Controller) reload() error {
	tasks, err := c.engine.ListTasks(c.ctx, c.appAcronym, "")
	if err != nil {
		return err
	}

	byState := map[db.State][]*db.Task{}
	for _, task := range tasks {
		byState[task.State] = append(byState[task.State], task)
	}

	for _, state := range db.States() {
		c.contents[state].tasks = byState[state]
	}

	return nil
}

// setMessage shows msg in the page headers until the next operation.
func (c *Controller) setMessage(msg string) {
	c.message = msg

	for _, state := range db.States() {
		c.fillStateHeader(state)
	}
}

func (c *Controller) setError(err error) {
	e := apperr.From(err)

	log.Warn().Err(err).Str("actor", c.actor).Str("app", c.appAcronym).Msg("board operation failed")
	c.setMessage(fmt.Sprintf("[red]%s: %s", e.Kind.Code(), e.Remark))
}

func (c *Controller) handleKeys(evt *tcell.EventKey) *tcell.EventKey {
	event, ok := c.events[AsKey(evt)]
	if !ok {
		return evt
	}

	if event.Op != "" && !c.allowed(event.Op) {
		c.setMessage(fmt.Sprintf("[red]%s is not possible from %s", event.Description, c.selectedState))

		return nil
	}

	event.Action()

	return nil
}

func (c *Controller) handleFormKeys(evt *tcell.EventKey) *tcell.EventKey {
	if event, ok := c.formEvents[AsKey(evt)]; ok {
		event.Action()

		return nil
	}

	return evt
}

// allowed reports whether action is possible from the selected state.
func (c *Controller) allowed(action workflow.Action) bool {
	for _, a := range workflow.Allowed(c.selectedState) {
		if a == action {
			return true
		}
	}

	return false
}

func pageName(name string) string {
	return "page-" + name
}
