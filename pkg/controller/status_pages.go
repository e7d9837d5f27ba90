package controller

import (
	"fmt"
	"sort"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/matt-steen/taskflow/pkg/workflow"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

func (c *Controller) getStateGrid(state db.State) *tview.Grid {
	c.stateHeaders[state] = tview.NewTable().SetBorders(false).SetSelectable(false, false)
	c.fillStateHeader(state)

	c.stateTables[state] = c.getTable(state)

	grid := tview.NewGrid().SetRows(headerRows, 0).SetBorders(true)

	grid.AddItem(c.stateHeaders[state], 0, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.stateTables[state], 1, 0, 1, 1, 0, 0, true)

	return grid
}

// headerRows fits the title, the message and the longest shortcut column.
const headerRows = 9

// fillStateHeader writes the header shown above the tasks of a state: the application and
// state, the last message, then 3 columns of keyboard shortcuts. The first column holds misc
// shortcuts, the second the "Show <state>" shortcuts and the third the task operations allowed
// from this state. All three columns are sorted alphabetically.
func (c *Controller) fillStateHeader(state db.State) {
	table := c.stateHeaders[state]
	if table == nil {
		return
	}

	table.Clear()

	table.SetCell(0, 0, tview.NewTableCell(fmt.Sprintf("[yellow]%s: %s", c.appAcronym, state)))
	table.SetCell(0, 1, tview.NewTableCell(fmt.Sprintf("[white]signed in as %s", c.actor)))
	table.SetCell(1, 0, tview.NewTableCell(c.message))

	shortcuts := c.shortcuts(state)

	for col := 0; col < 3; col++ {
		for i, text := range shortcuts[col] {
			table.SetCell(i+2, col, tview.NewTableCell(text).SetExpansion(1))
		}
	}
}

// shortcuts returns the header lines for the keys usable on the page of state.
func (c *Controller) shortcuts(state db.State) map[int][]string {
	shortcuts := map[int][]string{
		0: {},
		1: {},
		2: {},
	}

	allowed := map[workflow.Action]bool{}
	for _, action := range workflow.Allowed(state) {
		allowed[action] = true
	}

	for key, event := range c.events {
		text := fmt.Sprintf("[orange]<%s>[white] %s", tcell.KeyNames[key], event.Description)

		switch {
		case event.Op != "" && !allowed[event.Op]:
			continue
		case event.Op != "":
			shortcuts[2] = append(shortcuts[2], text)
		case len(event.Description) > 4 && event.Description[:4] == "Show":
			shortcuts[1] = append(shortcuts[1], text)
		default:
			shortcuts[0] = append(shortcuts[0], text)
		}
	}

	for col := 0; col < 3; col++ {
		sort.Strings(shortcuts[col])
	}

	return shortcuts
}

func (c *Controller) getTaskForRow(state db.State, row int) *db.Task {
	tasks := c.contents[state].tasks

	// adjust for the header row
	if idx := row - 1; idx < len(tasks) && idx >= 0 {
		return tasks[idx]
	}

	return nil
}

func (c *Controller) getTable(state db.State) *tview.Table {
	table := tview.NewTable().SetBorders(false)

	table.SetContent(c.contents[state])
	table.SetSelectable(true, false)
	table.SetFixed(1, 0)

	table.SetSelectionChangedFunc(func(row, _ int) {
		if state == c.selectedState {
			c.setSelectedTask(row, c.getTaskForRow(state, row))
		}
	})

	return table
}

func (c *Controller) setSelectedTask(row int, task *db.Task) {
	c.selectedTask = task

	id := "nil"
	if task != nil {
		id = task.ID
	}

	log.Debug().
		Str("selectedState", string(c.selectedState)).
		Int("row", row).
		Msgf("setting selectedTask to '%s'", id)
}

// showState switches to the page of state, keeping the row selection in range.
func (c *Controller) showState(state db.State) {
	c.selectedState = state

	c.app.SetInputCapture(c.handleKeys)

	table := c.stateTables[state]
	tasks := c.contents[state].tasks
	row, _ := table.GetSelection()

	switch {
	case len(tasks) == 0:
		c.setSelectedTask(-1, nil)
	case row-1 >= len(tasks):
		row = len(tasks)
		table.Select(row, 0)
		c.setSelectedTask(row, tasks[row-1])
	case row < 1:
		row = 1
		table.Select(row, 0)
		c.setSelectedTask(row, tasks[row-1])
	default:
		c.setSelectedTask(row, tasks[row-1])
	}

	c.fillStateHeader(state)
	c.pages.SwitchToPage(pageName(string(state)))
}

// showTask switches to the page of the task's state and selects it.
func (c *Controller) showTask(task *db.Task) {
	for i, t := range c.contents[task.State].tasks {
		if t.ID == task.ID {
			c.stateTables[task.State].Select(i+1, 0)

			break
		}
	}

	c.showState(task.State)
}
