package model

import (
	"slices"
	"time"

	"github.com/serroba/notesync/internal/acl"
	"github.com/serroba/notesync/internal/history"
)

// ContentType describes how a note body is formatted.
type ContentType string

const (
	ContentPlain    ContentType = "plain"
	ContentMarkdown ContentType = "markdown"
	ContentHTML     ContentType = "html"
)

// Valid reports whether c is a known content type.
func (c ContentType) Valid() bool {
	switch c {
	case ContentPlain, ContentMarkdown, ContentHTML:
		return true
	default:
		return false
	}
}

// Document is the editable note. It owns its collaborator set and its
// version ledger.
type Document struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Body        string      `json:"content"`
	Tags        []string    `json:"tags"`
	ContentType ContentType `json:"contentType"`
	Folder      string      `json:"folder,omitempty"`
	Owner       string      `json:"userId"`

	Collaborators []acl.Collaborator `json:"collaborators"`

	IsFavorite       bool       `json:"isFavorite"`
	IsPublic         bool       `json:"isPublic"`
	IsShared         bool       `json:"isShared"`
	ShareCode        string     `json:"shareCode,omitempty"`
	ShareCodeExpires *time.Time `json:"shareCodeExpires,omitempty"`

	History history.Ledger `json:"history"`

	LastEditedBy string    `json:"lastEditedBy,omitempty"`
	LastEditedAt time.Time `json:"lastEditedAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// Revision increments on every stored write.
	Revision int64 `json:"revision"`
}

// OwnerID implements acl.Resource.
func (d *Document) OwnerID() string {
	return d.Owner
}

// Members implements acl.Resource.
func (d *Document) Members() []acl.Collaborator {
	return d.Collaborators
}

// Live implements history.Versioned.
func (d *Document) Live() (string, string) {
	return d.Title, d.Body
}

// Restore implements history.Versioned.
func (d *Document) Restore(title, body string) {
	d.Title = title
	d.Body = body
}

// Ledger implements history.Versioned.
func (d *Document) Ledger() *history.Ledger {
	return &d.History
}

// HasMember reports whether userID is the owner or a collaborator.
func (d *Document) HasMember(userID string) bool {
	_, ok := acl.RoleOf(d, userID)

	return ok
}

// AddCollaborator adds userID with role unless the user is the owner or
// already present. Reports whether the set changed.
func (d *Document) AddCollaborator(userID string, role acl.Role, at time.Time) bool {
	if d.HasMember(userID) {
		return false
	}

	d.Collaborators = append(d.Collaborators, acl.Collaborator{
		UserID:   userID,
		Role:     role,
		JoinedAt: at,
	})

	return true
}

// ShareActive reports whether the share code is set and unexpired at now.
func (d *Document) ShareActive(now time.Time) bool {
	return d.ShareCode != "" && d.ShareCodeExpires != nil && now.Before(*d.ShareCodeExpires)
}

// ClearShareCode drops the share code and its expiry.
func (d *Document) ClearShareCode() {
	d.ShareCode = ""
	d.ShareCodeExpires = nil
}

// Touch stamps the last editor.
func (d *Document) Touch(userID string, at time.Time) {
	d.LastEditedBy = userID
	d.LastEditedAt = at
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := *d
	c.Tags = slices.Clone(d.Tags)
	c.Collaborators = slices.Clone(d.Collaborators)
	c.History = d.History.Clone()

	if d.ShareCodeExpires != nil {
		expires := *d.ShareCodeExpires
		c.ShareCodeExpires = &expires
	}

	return &c
}
