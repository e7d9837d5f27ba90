package db

import "time"

// State is a task lifecycle state.
type State string

// These constants refer to the task states supported by the app. Closed is terminal.
const (
	StateOpen   State = "Open"
	StateToDo   State = "To-Do"
	StateDoing  State = "Doing"
	StateDone   State = "Done"
	StateClosed State = "Closed"
)

// States returns every state in lifecycle order.
func States() []State {
	return []State{StateOpen, StateToDo, StateDoing, StateDone, StateClosed}
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	for _, state := range States() {
		if s == state {
			return true
		}
	}

	return false
}

// AccountStatus is either Active or Disabled.
type AccountStatus string

// These constants refer to the account statuses.
const (
	StatusActive   AccountStatus = "Active"
	StatusDisabled AccountStatus = "Disabled"
)

// AdminGroup is seeded by the schema and gates the administration endpoints.
const AdminGroup = "admin"

// Account is a row of the accounts table plus the account's group names.
type Account struct {
	Username     string        `json:"username"`
	PasswordHash string        `json:"-"`
	Email        string        `json:"email"`
	Status       AccountStatus `json:"accountStatus"`
	Groups       []string      `json:"groups"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Application is a project. RNumber is the authoritative task counter: it only increases,
// and each increment corresponds to exactly one created task.
type Application struct {
	Acronym      string    `json:"App_Acronym"`
	Description  string    `json:"App_Description"`
	RNumber      int       `json:"App_Rnumber"`
	StartDate    time.Time `json:"App_startDate"`
	EndDate      time.Time `json:"App_endDate"`
	PermitCreate string    `json:"App_permit_Create"`
	PermitOpen   string    `json:"App_permit_Open"`
	PermitToDo   string    `json:"App_permit_toDoList"`
	PermitDoing  string    `json:"App_permit_Doing"`
	PermitDone   string    `json:"App_permit_Done"`
}

// Plan is a milestone scoped to one application.
type Plan struct {
	Name       string    `json:"Plan_MVP_name"`
	AppAcronym string    `json:"Plan_app_Acronym"`
	StartDate  time.Time `json:"Plan_startDate"`
	EndDate    time.Time `json:"Plan_endDate"`
	Color      string    `json:"Plan_color"`
}

// Task is a unit of work. ID is "<acronym>_<n>" and Notes is newest-first.
type Task struct {
	ID          string    `json:"Task_id"`
	Name        string    `json:"Task_name"`
	Description string    `json:"Task_description"`
	Notes       string    `json:"Task_notes"`
	Plan        string    `json:"Task_plan"`
	AppAcronym  string    `json:"Task_app_Acronym"`
	State       State     `json:"Task_state"`
	Creator     string    `json:"Task_creator"`
	Owner       string    `json:"Task_owner"`
	CreateDate  time.Time `json:"Task_createDate"`
}
