package workflow

import "github.com/matt-steen/taskflow/pkg/db"

// Action names a task operation. The value is the verb written into the audit note.
type Action string

// These constants refer to the task operations.
const (
	ActionCreate   Action = "CREATED"
	ActionRelease  Action = "RELEASED"
	ActionAssign   Action = "ASSIGNED"
	ActionReview   Action = "REVIEWED"
	ActionApprove  Action = "APPROVED"
	ActionReject   Action = "REJECTED"
	ActionUnassign Action = "UNASSIGNED"
	ActionNotes    Action = "NOTES UPDATED"
)

// anyState marks an operation that is allowed in every state and keeps it.
const anyState db.State = ""

type transition struct {
	from db.State
	to   db.State
	// permit returns the group allowed to perform the operation; nil means no group is
	// consulted.
	permit func(app *db.Application) string
	// ownerOnly restricts the operation to the current owner of the task.
	ownerOnly bool
	// planChange allows the request to move the task to another plan.
	planChange bool
}

var transitions = map[Action]transition{
	ActionCreate: {
		to:     db.StateOpen,
		permit: func(app *db.Application) string { return app.PermitCreate },
	},
	ActionRelease: {
		from:   db.StateOpen,
		to:     db.StateToDo,
		permit: func(app *db.Application) string { return app.PermitOpen },
	},
	ActionAssign: {
		from:   db.StateToDo,
		to:     db.StateDoing,
		permit: func(app *db.Application) string { return app.PermitToDo },
	},
	ActionReview: {
		from:   db.StateDoing,
		to:     db.StateDone,
		permit: func(app *db.Application) string { return app.PermitDoing },
	},
	ActionApprove: {
		from:   db.StateDone,
		to:     db.StateClosed,
		permit: func(app *db.Application) string { return app.PermitDone },
	},
	ActionReject: {
		from:       db.StateDone,
		to:         db.StateDoing,
		permit:     func(app *db.Application) string { return app.PermitDone },
		planChange: true,
	},
	ActionUnassign: {
		from:      db.StateDoing,
		to:        db.StateToDo,
		ownerOnly: true,
	},
	ActionNotes: {
		from:       anyState,
		to:         anyState,
		planChange: true,
	},
}

// Allowed returns the operations that can be applied to a task in state, creation excluded.
func Allowed(state db.State) []Action {
	actions := []Action{}

	for _, action := range []Action{
		ActionRelease, ActionAssign, ActionReview, ActionApprove, ActionReject, ActionUnassign, ActionNotes,
	} {
		tr := transitions[action]
		if tr.from == anyState || tr.from == state {
			actions = append(actions, action)
		}
	}

	return actions
}
