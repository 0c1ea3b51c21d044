package acl

import "errors"

// ErrAccessDenied is returned when a user lacks the required permission.
var ErrAccessDenied = errors.New("access denied")

// Action represents an operation a user wants to perform.
type Action int

const (
	ActionRead Action = iota
	ActionWrite
	ActionAdminister
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionWrite:
		return "write"
	case ActionAdminister:
		return "administer"
	default:
		return "unknown"
	}
}

// Resource is a document with one owner and a collaborator set.
type Resource interface {
	OwnerID() string
	Members() []Collaborator
}

// IsOwner reports whether userID owns the resource.
func IsOwner(r Resource, userID string) bool {
	return userID != "" && r.OwnerID() == userID
}

// RoleOf returns the user's effective role. The owner is always Owner,
// whatever the collaborator set says.
func RoleOf(r Resource, userID string) (Role, bool) {
	if userID == "" {
		return 0, false
	}

	if IsOwner(r, userID) {
		return Owner, true
	}

	for _, c := range r.Members() {
		if c.UserID == userID {
			return c.Role, true
		}
	}

	return 0, false
}

// CanEdit reports whether the user may change the document's content.
func CanEdit(r Resource, userID string) bool {
	role, ok := RoleOf(r, userID)

	return ok && role.CanWrite()
}

// CanPerform reports whether the user may perform action on the resource.
func CanPerform(r Resource, userID string, action Action) bool {
	switch action {
	case ActionRead:
		role, ok := RoleOf(r, userID)

		return ok && role.CanRead()
	case ActionWrite:
		return CanEdit(r, userID)
	case ActionAdminister:
		return IsOwner(r, userID)
	default:
		return false
	}
}

// Require returns ErrAccessDenied unless the user may perform action.
func Require(r Resource, userID string, action Action) error {
	if !CanPerform(r, userID, action) {
		return ErrAccessDenied
	}

	return nil
}
