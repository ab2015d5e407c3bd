package domain

import (
	"net/http"
	"strings"
)

// Action is the verb half of a permission name.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var methodActions = map[string]Action{
	http.MethodGet:    ActionView,
	http.MethodPost:   ActionCreate,
	http.MethodPut:    ActionUpdate,
	http.MethodPatch:  ActionUpdate,
	http.MethodDelete: ActionDelete,
}

// ActionForMethod maps an HTTP method onto the permission action it needs.
func ActionForMethod(method string) (Action, bool) {
	action, ok := methodActions[strings.ToUpper(method)]
	return action, ok
}

// Permission names are "<resource>.<action>", e.g. "ticket.update".
func Permission(resource string, action Action) string {
	return resource + "." + string(action)
}

// Role groups permissions granted to staff members.
type Role struct {
	ID          string
	Name        string
	Permissions []string
}
