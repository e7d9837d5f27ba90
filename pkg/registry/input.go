package registry

import (
	"strings"

	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/matt-steen/taskflow/pkg/validate"
)

// ApplicationInput is the raw application form.
type ApplicationInput struct {
	Acronym      string `json:"App_Acronym" validate:"required,acronym"`
	Description  string `json:"App_Description" validate:"max=4000"`
	RNumber      int    `json:"App_Rnumber" validate:"gte=0"`
	StartDate    string `json:"App_startDate" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"App_endDate" validate:"required,datetime=2006-01-02,gtedate=StartDate"`
	PermitCreate string `json:"App_permit_Create" validate:"omitempty,groupname"`
	PermitOpen   string `json:"App_permit_Open" validate:"omitempty,groupname"`
	PermitToDo   string `json:"App_permit_toDoList" validate:"omitempty,groupname"`
	PermitDoing  string `json:"App_permit_Doing" validate:"omitempty,groupname"`
	PermitDone   string `json:"App_permit_Done" validate:"omitempty,groupname"`
}

func (in ApplicationInput) trimmed() ApplicationInput {
	for _, s := range []*string{
		&in.Acronym, &in.Description, &in.StartDate, &in.EndDate,
		&in.PermitCreate, &in.PermitOpen, &in.PermitToDo, &in.PermitDoing, &in.PermitDone,
	} {
		*s = strings.TrimSpace(*s)
	}

	return in
}

func (in ApplicationInput) application() *db.Application {
	return &db.Application{
		Acronym:      in.Acronym,
		Description:  in.Description,
		RNumber:      in.RNumber,
		StartDate:    validate.Date(in.StartDate),
		EndDate:      validate.Date(in.EndDate),
		PermitCreate: in.PermitCreate,
		PermitOpen:   in.PermitOpen,
		PermitToDo:   in.PermitToDo,
		PermitDoing:  in.PermitDoing,
		PermitDone:   in.PermitDone,
	}
}

func (in ApplicationInput) normalize() (*db.Application, error) {
	in = in.trimmed()

	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	return in.application(), nil
}

// ApplicationUpdate is the raw application form plus the acronym it currently has. An empty
// Original means the acronym is unchanged. The counter in the form is ignored.
type ApplicationUpdate struct {
	Original string `json:"original_App_Acronym" validate:"omitempty,acronym"`
	ApplicationInput
}

func (in ApplicationUpdate) normalize() (string, *db.Application, error) {
	in.Original = strings.TrimSpace(in.Original)
	in.ApplicationInput = in.ApplicationInput.trimmed()

	if err := validate.Struct(in); err != nil {
		return "", nil, err
	}

	app := in.application()

	original := in.Original
	if original == "" {
		original = app.Acronym
	}

	return original, app, nil
}

// PlanInput is the raw plan form.
type PlanInput struct {
	Name       string `json:"Plan_MVP_name" validate:"required,max=50"`
	AppAcronym string `json:"Plan_app_Acronym" validate:"required,acronym"`
	StartDate  string `json:"Plan_startDate" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"Plan_endDate" validate:"required,datetime=2006-01-02,gtedate=StartDate"`
	Color      string `json:"Plan_color" validate:"omitempty,rgbcolor"`
}

func (in PlanInput) normalize() (*db.Plan, error) {
	for _, s := range []*string{&in.Name, &in.AppAcronym, &in.StartDate, &in.EndDate, &in.Color} {
		*s = strings.TrimSpace(*s)
	}

	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	return &db.Plan{
		Name:       in.Name,
		AppAcronym: in.AppAcronym,
		StartDate:  validate.Date(in.StartDate),
		EndDate:    validate.Date(in.EndDate),
		Color:      strings.ToLower(in.Color),
	}, nil
}
