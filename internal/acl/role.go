package acl

import (
	"fmt"
	"time"
)

// Role represents a collaborator's access level for a document.
type Role int

const (
	// Read can only view document content.
	Read Role = iota
	// Write can view and edit document content and its history.
	Write
	// Owner has the same content rights as Write. Sharing and deletion
	// stay reserved for the document's owning user.
	Owner
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case Read:
		return "read"
	case Write:
		return "write"
	case Owner:
		return "owner"
	default:
		return "unknown"
	}
}

// ParseRole parses the string form of a role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "read":
		return Read, nil
	case "write":
		return Write, nil
	case "owner":
		return Owner, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if r < Read || r > Owner {
		return nil, fmt.Errorf("unknown role %d", int(r))
	}

	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}

	*r = role

	return nil
}

// CanRead returns true if the role allows reading.
func (r Role) CanRead() bool {
	return r >= Read
}

// CanWrite returns true if the role allows writing.
func (r Role) CanWrite() bool {
	return r >= Write
}

// Collaborator grants a non-owning user access to a document.
type Collaborator struct {
	UserID   string    `json:"userId"`
	Role     Role      `json:"permission"`
	JoinedAt time.Time `json:"joinedAt"`
}
