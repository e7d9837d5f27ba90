package workflow

import (
	"strings"

	"github.com/matt-steen/taskflow/pkg/apperr"
	"github.com/matt-steen/taskflow/pkg/validate"
)

// NewTaskInput is the raw new-task form.
type NewTaskInput struct {
	AppAcronym  string `json:"Task_app_Acronym" validate:"required,acronym"`
	Name        string `json:"Task_name" validate:"required,max=50"`
	Description string `json:"Task_description" validate:"max=255"`
	Plan        string `json:"Task_plan" validate:"max=50"`
	Note        string `json:"Task_notes" validate:"max=4000"`
}

type newTask struct {
	appAcronym  string
	name        string
	description string
	plan        string
	note        string
}

func (in NewTaskInput) normalize() (newTask, error) {
	for _, s := range []*string{&in.AppAcronym, &in.Name, &in.Description, &in.Plan, &in.Note} {
		*s = strings.TrimSpace(*s)
	}

	if err := validate.Struct(in); err != nil {
		return newTask{}, err
	}

	return newTask{
		appAcronym:  in.AppAcronym,
		name:        in.Name,
		description: in.Description,
		plan:        in.Plan,
		note:        in.Note,
	}, nil
}

// Request is the raw input of every operation on an existing task. Plan is only accepted by
// Reject and SaveNotes: nil keeps the current plan and an empty string clears it.
type Request struct {
	TaskID string  `json:"Task_id" validate:"required"`
	Note   string  `json:"Task_notes" validate:"max=4000"`
	Plan   *string `json:"Task_plan" validate:"omitempty,max=50"`
}

type request struct {
	taskID  string
	note    string
	setPlan bool
	plan    string
}

func (in Request) normalize(tr transition) (request, error) {
	in.TaskID = strings.TrimSpace(in.TaskID)
	in.Note = strings.TrimSpace(in.Note)

	if in.Plan != nil {
		plan := strings.TrimSpace(*in.Plan)
		in.Plan = &plan
	}

	if err := validate.Struct(in); err != nil {
		return request{}, err
	}

	r := request{taskID: in.TaskID, note: in.Note}

	if in.Plan != nil {
		if !tr.planChange {
			return request{}, apperr.Validation("Task_plan cannot be changed by this operation")
		}

		r.setPlan = true
		r.plan = *in.Plan
	}

	return r, nil
}
