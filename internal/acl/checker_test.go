package acl_test

import (
	"errors"
	"testing"

	"github.com/serroba/notesync/internal/acl"
	"github.com/stretchr/testify/require"
)

// resource is a fixed owner plus collaborator list.
type resource struct {
	owner   string
	members []acl.Collaborator
}

func (r resource) OwnerID() string { return r.owner }
func (r resource) Members() []acl.Collaborator { return r.members }

func TestAction_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		action   acl.Action
		expected string
	}{
		{acl.ActionRead, "read"},
		{acl.ActionWrite, "write"},
		{acl.ActionAdminister, "administer"},
		{acl.Action(99), "unknown"},
	}

	for _, tt := range tests {
		if tt.action.String() != tt.expected {
			t.Errorf("expected %q, got %q", tt.expected, tt.action.String())
		}
	}
}

func TestCanEdit_OwnerAlways(t *testing.T) {
	t.Parallel()

	cases := [][]acl.Collaborator{
		nil,
		{{UserID: "owner", Role: acl.Read}},
		{{UserID: "bob", Role: acl.Write}, {UserID: "owner", Role: acl.Read}},
	}

	for _, members := range cases {
		r := resource{owner: "owner", members: members}
		if !acl.CanEdit(r, "owner") {
			t.Errorf("owner must always be able to edit, members=%v", members)
		}
	}
}

func TestCanEdit_Collaborators(t *testing.T) {
	t.Parallel()

	r := resource{
		owner: "owner",
		members: []acl.Collaborator{
			{UserID: "reader", Role: acl.Read},
			{UserID: "writer", Role: acl.Write},
			{UserID: "coowner", Role: acl.Owner},
		},
	}

	tests := []struct {
		userID   string
		expected bool
	}{
		{"reader", false},
		{"writer", true},
		{"coowner", true},
		{"stranger", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := acl.CanEdit(r, tt.userID); got != tt.expected {
			t.Errorf("user %q: expected %v, got %v", tt.userID, tt.expected, got)
		}
	}
}

func TestRoleOf(t *testing.T) {
	t.Parallel()

	r := resource{owner: "owner", members: []acl.Collaborator{{UserID: "bob", Role: acl.Read}}}

	role, ok := acl.RoleOf(r, "owner")
	require.True(t, ok)
	require.Equal(t, acl.Owner, role)

	role, ok = acl.RoleOf(r, "bob")
	require.True(t, ok)
	require.Equal(t, acl.Read, role)

	_, ok = acl.RoleOf(r, "carol")
	require.False(t, ok)
}

func TestCanPerform(t *testing.T) {
	t.Parallel()

	r := resource{
		owner: "owner",
		members: []acl.Collaborator{
			{UserID: "reader", Role: acl.Read},
			{UserID: "coowner", Role: acl.Owner},
		},
	}

	tests := []struct {
		userID   string
		action   acl.Action
		expected bool
	}{
		{"owner", acl.ActionRead, true},
		{"owner", acl.ActionWrite, true},
		{"owner", acl.ActionAdminister, true},
		{"reader", acl.ActionRead, true},
		{"reader", acl.ActionWrite, false},
		{"coowner", acl.ActionWrite, true},
		{"coowner", acl.ActionAdminister, false},
		{"stranger", acl.ActionRead, false},
		{"owner", acl.Action(99), false},
	}

	for _, tt := range tests {
		if got := acl.CanPerform(r, tt.userID, tt.action); got != tt.expected {
			t.Errorf("%s/%s: expected %v, got %v", tt.userID, tt.action, tt.expected, got)
		}
	}
}

func TestRequire(t *testing.T) {
	t.Parallel()

	r := resource{owner: "owner"}

	require.NoError(t, acl.Require(r, "owner", acl.ActionAdminister))

	err := acl.Require(r, "stranger", acl.ActionRead)
	if !errors.Is(err, acl.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got %v", err)
	}
}
