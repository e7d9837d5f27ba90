package controller

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/taskflow/pkg/validate"
	"github.com/matt-steen/taskflow/pkg/workflow"
	"github.com/rivo/tview"
)

func (c *Controller) switchToForm() {
	c.setFormTitle(formPage, fmt.Sprintf("New task in %s", c.appAcronym))

	c.taskForm.SetFocus(0)

	c.pages.SwitchToPage(pageName(formPage))

	c.app.SetInputCapture(c.handleFormKeys)
}

func (c *Controller) switchToNotesForm() {
	if c.selectedTask == nil {
		c.setMessage("[red]no task selected")

		return
	}

	c.setFormTitle(notesPage, fmt.Sprintf("Notes of %s: %s", c.selectedTask.ID, c.selectedTask.Name))

	formField(c.notesForm, "Plan").SetText(c.selectedTask.Plan)
	formField(c.notesForm, "Note").SetText("")
	c.notesForm.SetFocus(0)

	c.pages.SwitchToPage(pageName(notesPage))

	c.app.SetInputCapture(c.handleFormKeys)
}

func (c *Controller) getFormGrid() *tview.Grid {
	c.initFormHeader(formPage)
	c.initForm()

	return c.formGrid(formPage, c.taskForm)
}

func (c *Controller) getNotesGrid() *tview.Grid {
	c.initFormHeader(notesPage)
	c.initNotesForm()

	return c.formGrid(notesPage, c.notesForm)
}

func (c *Controller) formGrid(name string, form *tview.Form) *tview.Grid {
	grid := tview.NewGrid().SetRows(3, 0).SetBorders(true)

	grid.AddItem(c.formHeader[name], 0, 0, 1, 1, 0, 0, false)
	grid.AddItem(form, 1, 0, 1, 1, 0, 0, true)

	return grid
}

func (c *Controller) setFormTitle(name, title string) {
	c.formHeader[name].SetCell(0, 0, tview.NewTableCell(fmt.Sprintf("[yellow]%s", title)))
}

func (c *Controller) initFormHeader(name string) {
	c.formHeader[name] = tview.NewTable().SetBorders(false).SetSelectable(false, false)
	row := 1

	for key, event := range c.formEvents {
		text := fmt.Sprintf("[orange]<%s>[white] %s", tcell.KeyNames[key], event.Description)
		c.formHeader[name].SetCell(row, 0, tview.NewTableCell(text))
		row++
	}
}

func formField(form *tview.Form, label string) *tview.InputField {
	field, _ := form.GetFormItemByLabel(label).(*tview.InputField)

	return field
}

func (c *Controller) initForm() {
	c.taskForm = tview.NewForm().
		AddInputField("Name", "", validate.MaxNameLength, nil, nil).
		AddInputField("Description", "", 0, nil, nil).
		AddInputField("Plan", "", validate.MaxNameLength, nil, nil).
		AddInputField("Note", "", 0, nil, nil)

	c.taskForm.AddButton("Save", c.saveTask)
}

// saveTask creates a task from the form and shows it on the Open page.
func (c *Controller) saveTask() {
	in := workflow.NewTaskInput{
		AppAcronym:  c.appAcronym,
		Name:        formField(c.taskForm, "Name").GetText(),
		Description: formField(c.taskForm, "Description").GetText(),
		Plan:        formField(c.taskForm, "Plan").GetText(),
		Note:        formField(c.taskForm, "Note").GetText(),
	}

	task, err := c.engine.Create(c.ctx, c.actor, in)
	if err != nil {
		c.setError(err)
		c.setFormTitle(formPage, c.message)

		return
	}

	for _, label := range []string{"Name", "Description", "Plan", "Note"} {
		formField(c.taskForm, label).SetText("")
	}

	if err = c.reload(); err != nil {
		c.setError(err)
	} else {
		c.setMessage(fmt.Sprintf("[green]created %s", task.ID))
	}

	c.showTask(task)
}

func (c *Controller) initNotesForm() {
	c.notesForm = tview.NewForm().
		AddInputField("Note", "", 0, nil, nil).
		AddInputField("Plan", "", validate.MaxNameLength, nil, nil)

	c.notesForm.AddButton("Save", c.saveNotes)
}

// saveNotes adds the note to the selected task. An edited plan field moves the task to that
// plan.
func (c *Controller) saveNotes() {
	if c.selectedTask == nil {
		c.showState(c.selectedState)

		return
	}

	req := workflow.Request{
		TaskID: c.selectedTask.ID,
		Note:   formField(c.notesForm, "Note").GetText(),
	}

	if plan := formField(c.notesForm, "Plan").GetText(); plan != c.selectedTask.Plan {
		req.Plan = &plan
	}

	task, err := c.engine.Apply(c.ctx, c.actor, workflow.ActionNotes, req)
	if err != nil {
		c.setError(err)
		c.setFormTitle(notesPage, c.message)

		return
	}

	if err = c.reload(); err != nil {
		c.setError(err)
	} else {
		c.setMessage(fmt.Sprintf("[green]saved notes of %s", task.ID))
	}

	c.showTask(task)
}
