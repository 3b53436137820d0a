package users

import "time"

// SuccessTTL is how long a role change confirmation stays visible.
const SuccessTTL = 3 * time.Second

// RoleEdit is the state of the role selector of one account row.
type RoleEdit struct {
	SelectedRole string    `json:"selected_role"`
	Submitting   bool      `json:"submitting,omitempty"`
	Error        string    `json:"error,omitempty"`
	Success      string    `json:"success,omitempty"`
	SuccessUntil time.Time `json:"success_until,omitempty"`
}

// RoleEdits maps account ids to their row state. Every action on a row replaces the
// previous state of that row, which also cancels a pending success expiry.
type RoleEdits map[int64]RoleEdit

// Select records a role choice and clears the row's messages.
func (e RoleEdits) Select(id int64, role string) {
	e[id] = RoleEdit{SelectedRole: role}
}

// Begin marks the row as submitting role.
func (e RoleEdits) Begin(id int64, role string) {
	e[id] = RoleEdit{SelectedRole: role, Submitting: true}
}

// Succeed records the backend confirmation, visible until now+SuccessTTL.
func (e RoleEdits) Succeed(id int64, message string, now time.Time) {
	edit := e[id]
	e[id] = RoleEdit{SelectedRole: edit.SelectedRole, Success: message, SuccessUntil: now.Add(SuccessTTL)}
}

// Fail records an error for the row. The selection is kept.
func (e RoleEdits) Fail(id int64, message string) {
	edit := e[id]
	e[id] = RoleEdit{SelectedRole: edit.SelectedRole, Error: message}
}

// At returns the row state as seen at now, with an expired success removed.
func (e RoleEdits) At(id int64, now time.Time) RoleEdit {
	edit := e[id]
	if edit.Success != "" && !now.Before(edit.SuccessUntil) {
		edit.Success = ""
		edit.SuccessUntil = time.Time{}
	}
	return edit
}

// Prune drops rows with nothing left to show at now.
func (e RoleEdits) Prune(now time.Time) {
	for id := range e {
		edit := e.At(id, now)
		if edit.Error == "" && edit.Success == "" && !edit.Submitting {
			delete(e, id)
			continue
		}
		e[id] = edit
	}
}
